package catalog

import (
	"bytes"
	"fmt"
	"os"

	"rulelens/pkg/yaml"
)

// Validator validates catalog data against a schema.
type Validator interface {
	Validate(data any) error
}

// Loader parses and validates a catalog document.
type Loader struct {
	validator Validator
	yamlError *yaml.ErrorWrapper
	data      []byte
}

type LoaderOpt func(*Loader)

func WithValidator(v Validator) LoaderOpt {
	return func(l *Loader) {
		l.validator = v
	}
}

func NewLoaderFromBytes(data []byte, opts ...LoaderOpt) *Loader {
	l := &Loader{
		validator: DefaultValidator,
		data:      data,
		yamlError: yaml.NewErrorWrapper(data),
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

func NewLoaderFromFile(path string) (*Loader, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is user input by design.
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	return NewLoaderFromBytes(data), nil
}

// Validate validates the catalog data against the schema without loading it
// into a [Catalog].
func (l *Loader) Validate() error {
	var anyCatalog any

	dec := yaml.NewDecoder(bytes.NewReader(l.data))

	err := dec.Decode(&anyCatalog)
	if err != nil {
		return l.yamlError.Wrap(err)
	}

	if l.validator != nil {
		err = l.validator.Validate(anyCatalog)
		if err != nil {
			return l.yamlError.Wrap(err)
		}
	}

	return nil
}

// Load parses, defaults, and validates the catalog. Structural authoring
// errors (missing default branch, dependency cycles) fail here, once.
func (l *Loader) Load() (*Catalog, error) {
	err := l.Validate()
	if err != nil {
		return nil, err
	}

	c := &Catalog{}

	dec := yaml.NewDecoder(bytes.NewReader(l.data))

	err = dec.Decode(c)
	if err != nil {
		return nil, l.yamlError.Wrap(err)
	}

	c.EnsureDefaults()

	err = c.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	return c, nil
}

// Default loads the embedded default catalog. It panics on error, since the
// embedded catalog is part of the build.
func Default() *Catalog {
	c, err := NewLoaderFromBytes(defaultCatalogYAML).Load()
	if err != nil {
		panic(fmt.Errorf("embedded catalog: %w", err))
	}

	return c
}
