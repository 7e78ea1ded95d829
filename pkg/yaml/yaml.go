// Package yaml wraps [github.com/goccy/go-yaml] with the decode, encode, and
// error annotation settings used across rulelens.
package yaml

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/token"
)

type Decoder struct {
	d *yaml.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		d: yaml.NewDecoder(r, yaml.AllowDuplicateMapKey()),
	}
}

func (d *Decoder) Decode(v any) error {
	err := d.d.Decode(v)
	if err == nil {
		return nil
	}

	var yamlErr yaml.Error
	if errors.As(err, &yamlErr) {
		return &Error{
			Err:   errors.New(yamlErr.GetMessage()),
			Token: yamlErr.GetToken(),
		}
	}

	//nolint:wrapcheck // Return the original error if it's not a [yaml.Error].
	return err
}

type Encoder struct {
	e *yaml.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		e: yaml.NewEncoder(w, yaml.Indent(2), yaml.IndentSequence(true)),
	}
}

func (e *Encoder) Encode(v any) error {
	return e.e.Encode(v) //nolint:wrapcheck // Return the original error.
}

func (e *Encoder) Close() error {
	return e.e.Close() //nolint:wrapcheck // Return the original error.
}

// Error is a YAML handling error, optionally bound to a source location via a
// token or a path.
type Error struct {
	Err   error
	Token *token.Token
	Path  *yaml.Path
}

func (e *Error) Error() string {
	switch {
	case e.Token != nil:
		return fmt.Sprintf("%s (line %d, column %d)",
			e.Err.Error(), e.Token.Position.Line, e.Token.Position.Column)

	case e.Path != nil:
		return fmt.Sprintf("%s (at %s)", e.Err.Error(), e.Path.String())
	}

	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorWrapper annotates [Error]s with a snippet of the source document, so
// that catalog authoring mistakes point at the offending line.
type ErrorWrapper struct {
	source []byte
}

func NewErrorWrapper(source []byte) *ErrorWrapper {
	return &ErrorWrapper{source: source}
}

// Wrap attaches source context to err. Errors that are not [Error]s are
// returned unmodified.
func (ew *ErrorWrapper) Wrap(err error) error {
	if err == nil {
		return nil
	}

	var yamlErr *Error
	if !errors.As(err, &yamlErr) {
		return err
	}

	if yamlErr.Path == nil || len(ew.source) == 0 {
		return yamlErr
	}

	annotated, aErr := yamlErr.Path.AnnotateSource(ew.source, false)
	if aErr != nil {
		// Annotation is best-effort; fall back to the plain error.
		return yamlErr
	}

	return fmt.Errorf("%w:\n%s", yamlErr, strings.TrimRight(string(annotated), "\n"))
}
