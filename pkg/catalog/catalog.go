package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	_ "embed"

	"rulelens/pkg/yaml"
)

//go:generate go run ../../internal/schemagen/main.go -o catalog.v1beta1.json

var (
	//go:embed catalog.yaml
	defaultCatalogYAML []byte

	//go:embed catalog.v1beta1.json
	schemaJSON []byte

	ValidAPIVersions = []string{
		"rulelens.dev/v1beta1",
	}
	ValidKinds = []string{
		"Catalog",
	}

	DefaultValidator = yaml.MustNewValidator("/catalog.v1beta1.json", schemaJSON)

	ErrDuplicatePurpose  = errors.New("duplicate purpose")
	ErrDuplicateRule     = errors.New("duplicate rule")
	ErrNoBranches        = errors.New("rule has no branches")
	ErrNoDefaultBranch   = errors.New("rule has no default branch")
	ErrDefaultNotLast    = errors.New("default branch must be the last branch")
	ErrUnknownField      = errors.New("rule references undeclared field")
	ErrUnknownDependency = errors.New("rule depends on unknown rule")
	ErrDependencyCycle   = errors.New("dependency cycle between rules")
)

// FieldKind is the expected value kind of a rule-field.
type FieldKind string

const (
	FieldNumeric     FieldKind = "numeric"
	FieldCategorical FieldKind = "categorical"
	FieldDate        FieldKind = "date"
	FieldTime        FieldKind = "time"
)

// Catalog is the static rule catalog: every purpose rulelens can detect,
// with its keywords, rule-fields, and rule cascades. It is loaded once at
// startup, validated, and never mutated afterwards.
type Catalog struct {
	// APIVersion specifies the API version for this catalog.
	APIVersion string `json:"apiVersion" jsonschema:"title=API Version"`
	// Kind defines the type of configuration.
	Kind string `json:"kind" jsonschema:"title=Kind"`
	// Purposes lists every known purpose, in declaration order. Order is
	// significant: it breaks detection ties.
	Purposes []*Purpose `json:"purposes" jsonschema:"title=Purposes"`
}

// Purpose is one detectable dataset domain.
type Purpose struct {
	// Name identifies the purpose, e.g. "Employee Analysis".
	Name string `json:"name" jsonschema:"title=Name"`
	// Keywords are lower-cased tokens matched against dataset column names.
	Keywords []string `json:"keywords" jsonschema:"title=Keywords"`
	// Fields declares the abstract rule-fields this purpose's rules need.
	Fields []*FieldSpec `json:"fields,omitempty" jsonschema:"title=Rule Fields"`
	// Rules declares the rule cascades, in authoring order.
	Rules []*Rule `json:"rules,omitempty" jsonschema:"title=Rules"`

	ordered []*Rule // Topological rule order, resolved by Validate.
}

// FieldSpec declares an abstract rule-field and how to find it in a dataset.
type FieldSpec struct {
	// Name is the abstract field name, e.g. "punch_in".
	Name string `json:"name" jsonschema:"title=Name"`
	// Kind is the expected value kind.
	Kind FieldKind `json:"kind" jsonschema:"title=Kind,enum=numeric,enum=categorical,enum=date,enum=time"`
	// Synonyms are alternative column tokens accepted for this field.
	Synonyms []string `json:"synonyms,omitempty" jsonschema:"title=Synonyms"`
	// Required marks fields counted towards overall mapping confidence.
	Required bool `json:"required,omitempty" jsonschema:"title=Required"`
}

// Rule is one decision cascade: an ordered list of branches evaluated
// first-match-wins, ending in a mandatory default branch.
type Rule struct {
	// Name is the decision name, e.g. "Salary Level".
	Name string `json:"name" jsonschema:"title=Name"`
	// Output is the variable name under which this rule's decision is
	// exposed to dependent rules, e.g. "performance".
	Output string `json:"output" jsonschema:"title=Output Variable"`
	// Fields lists the abstract fields the branch predicates read.
	Fields []string `json:"fields,omitempty" jsonschema:"title=Fields"`
	// Needs lists rules whose outputs feed this rule's predicates.
	Needs []string `json:"needs,omitempty" jsonschema:"title=Dependencies"`
	// Branches are evaluated top to bottom. A branch with no `when`
	// expression is the default and must come last.
	Branches []*Branch `json:"branches" jsonschema:"title=Branches"`
}

// Branch is one (predicate, decision, explanation template) triple.
type Branch struct {
	// When is a CEL predicate over the rule's fields and dependency
	// outputs. Empty marks the default branch.
	When string `json:"when,omitempty" jsonschema:"title=Predicate"`
	// Decision is the value produced when the predicate holds.
	Decision string `json:"decision" jsonschema:"title=Decision"`
	// Explain is the explanation template. Placeholders like {salary}
	// interpolate the record's actual values.
	Explain string `json:"explain" jsonschema:"title=Explanation Template"`
}

// Default returns true for the default branch.
func (b *Branch) Default() bool {
	return strings.TrimSpace(b.When) == ""
}

func (c Catalog) JSONSchemaExtend(jss *jsonschema.Schema) {
	apiVersion, ok := jss.Properties.Get("apiVersion")
	if !ok {
		panic("apiVersion property not found in schema")
	}

	for _, version := range ValidAPIVersions {
		apiVersion.OneOf = append(apiVersion.OneOf, &jsonschema.Schema{
			Type:  "string",
			Const: version,
			Title: "API Version",
		})
	}

	_, _ = jss.Properties.Set("apiVersion", apiVersion)

	kind, ok := jss.Properties.Get("kind")
	if !ok {
		panic("kind property not found in schema")
	}

	for _, kindValue := range ValidKinds {
		kind.OneOf = append(kind.OneOf, &jsonschema.Schema{
			Type:  "string",
			Const: kindValue,
			Title: "Kind",
		})
	}

	_, _ = jss.Properties.Set("kind", kind)
}

func New() *Catalog {
	c := &Catalog{
		APIVersion: ValidAPIVersions[0],
		Kind:       ValidKinds[0],
	}
	c.EnsureDefaults()

	return c
}

func (c *Catalog) EnsureDefaults() {
	if c.APIVersion == "" {
		c.APIVersion = ValidAPIVersions[0]
	}

	if c.Kind == "" {
		c.Kind = ValidKinds[0]
	}

	for _, p := range c.Purposes {
		for i, kw := range p.Keywords {
			p.Keywords[i] = strings.ToLower(strings.TrimSpace(kw))
		}
	}
}

// Purpose returns the purpose with the given name, or nil.
func (c *Catalog) Purpose(name string) *Purpose {
	for _, p := range c.Purposes {
		if p.Name == name {
			return p
		}
	}

	return nil
}

// Keywords returns the keyword set for a purpose. Unknown purposes return an
// empty set, since purposes are internally enumerated.
func (c *Catalog) Keywords(purpose string) []string {
	p := c.Purpose(purpose)
	if p == nil {
		return nil
	}

	return p.Keywords
}

// Field returns the field spec with the given name, or nil.
func (p *Purpose) Field(name string) *FieldSpec {
	for _, f := range p.Fields {
		if f.Name == name {
			return f
		}
	}

	return nil
}

// Rule returns the rule with the given name, or nil.
func (p *Purpose) Rule(name string) *Rule {
	for _, r := range p.Rules {
		if r.Name == name {
			return r
		}
	}

	return nil
}

// OrderedRules returns the purpose's rules in dependency order.
// Only valid after [Catalog.Validate] has succeeded.
func (p *Purpose) OrderedRules() []*Rule {
	return p.ordered
}

// RequiredFields returns the names of all required rule-fields.
func (p *Purpose) RequiredFields() []string {
	var names []string

	for _, f := range p.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}

	return names
}

// Validate checks catalog integrity. These are authoring errors in the static
// catalog, so any failure here is fatal at load time, never per record.
func (c *Catalog) Validate() error {
	seen := make(map[string]struct{})

	for _, p := range c.Purposes {
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicatePurpose, p.Name)
		}

		seen[p.Name] = struct{}{}

		err := p.validate()
		if err != nil {
			return fmt.Errorf("purpose %q: %w", p.Name, err)
		}
	}

	return nil
}

func (p *Purpose) validate() error {
	ruleNames := make(map[string]struct{}, len(p.Rules))
	for _, r := range p.Rules {
		if _, ok := ruleNames[r.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateRule, r.Name)
		}

		ruleNames[r.Name] = struct{}{}
	}

	for _, r := range p.Rules {
		err := p.validateRule(r)
		if err != nil {
			return fmt.Errorf("rule %q: %w", r.Name, err)
		}
	}

	ordered, err := p.sortRules()
	if err != nil {
		return err
	}

	p.ordered = ordered

	return nil
}

func (p *Purpose) validateRule(r *Rule) error {
	if len(r.Branches) == 0 {
		return ErrNoBranches
	}

	defaults := 0
	for i, b := range r.Branches {
		if !b.Default() {
			continue
		}

		defaults++

		if i != len(r.Branches)-1 {
			return ErrDefaultNotLast
		}
	}

	if defaults == 0 {
		return ErrNoDefaultBranch
	}

	for _, f := range r.Fields {
		if p.Field(f) == nil {
			return fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
	}

	for _, need := range r.Needs {
		if p.Rule(need) == nil {
			return fmt.Errorf("%w: %q", ErrUnknownDependency, need)
		}
	}

	return nil
}

// sortRules resolves the dependency order among rules once, at load time.
// Catalog authoring order is preserved among independent rules, so the result
// is deterministic.
func (p *Purpose) sortRules() ([]*Rule, error) {
	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(p.Rules))
	ordered := make([]*Rule, 0, len(p.Rules))

	var visit func(r *Rule) error

	visit = func(r *Rule) error {
		switch state[r.Name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %q", ErrDependencyCycle, r.Name)
		}

		state[r.Name] = visiting

		for _, need := range r.Needs {
			err := visit(p.Rule(need))
			if err != nil {
				return err
			}
		}

		state[r.Name] = done
		ordered = append(ordered, r)

		return nil
	}

	for _, r := range p.Rules {
		err := visit(r)
		if err != nil {
			return nil, err
		}
	}

	return ordered, nil
}
