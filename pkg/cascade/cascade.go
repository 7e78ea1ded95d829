package cascade

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"rulelens/pkg/catalog"
	"rulelens/pkg/dataset"
	"rulelens/pkg/expr"
	"rulelens/pkg/mapping"
)

// FieldValue records one (field, column, value) actually read while deciding.
type FieldValue struct {
	Field  string `json:"field"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value"`
}

// Decision is the outcome of applying one rule cascade to one record.
// NA marks decisions that could not be made because a required input was
// unmapped, null, or uncoercible.
type Decision struct {
	Rule        string       `json:"rule"`
	Decision    string       `json:"decision"`
	Explanation string       `json:"explanation"`
	FieldsUsed  []FieldValue `json:"fields_used,omitempty"`
	RecordIndex int          `json:"record_index"`
	NA          bool         `json:"na,omitempty"`
}

// The decision value reported when a cascade cannot run for a record.
const DecisionNA = "N/A"

type compiledBranch struct {
	branch  *catalog.Branch
	program cel.Program // nil for the default branch
}

type compiledRule struct {
	rule     *catalog.Rule
	branches []compiledBranch
}

// Set holds the compiled cascades for one purpose, in dependency order.
// A Set is immutable after Compile and safe for concurrent use; evaluating a
// record is a pure function of (record, mapping).
type Set struct {
	purpose *catalog.Purpose
	rules   []compiledRule
}

// Compile compiles every branch predicate of the purpose's rules. Compile
// errors are catalog authoring errors and fail startup, never a record.
func Compile(p *catalog.Purpose) (*Set, error) {
	s := &Set{purpose: p}

	for _, r := range p.OrderedRules() {
		cr, err := compileRule(p, r)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}

		s.rules = append(s.rules, cr)
	}

	return s, nil
}

// MustCompile compiles the purpose's rules and panics on error.
func MustCompile(p *catalog.Purpose) *Set {
	s, err := Compile(p)
	if err != nil {
		panic(err)
	}

	return s
}

func compileRule(p *catalog.Purpose, r *catalog.Rule) (compiledRule, error) {
	opts := make([]cel.EnvOption, 0, len(r.Fields)+len(r.Needs))

	for _, f := range r.Fields {
		opts = append(opts, cel.Variable(f, celFieldType(p.Field(f))))
	}

	for _, need := range r.Needs {
		opts = append(opts, cel.Variable(p.Rule(need).Output, cel.StringType))
	}

	env, err := expr.NewEnvironment(opts...)
	if err != nil {
		return compiledRule{}, err
	}

	cr := compiledRule{rule: r}

	for _, b := range r.Branches {
		cb := compiledBranch{branch: b}

		if !b.Default() {
			program, err := env.Compile(b.When)
			if err != nil {
				return compiledRule{}, fmt.Errorf("branch %q: %w", b.When, err)
			}

			cb.program = program
		}

		cr.branches = append(cr.branches, cb)
	}

	return cr, nil
}

func celFieldType(f *catalog.FieldSpec) *cel.Type {
	if f != nil && f.Kind == catalog.FieldNumeric {
		return cel.DoubleType
	}

	// Categorical, date, and time values are bound as strings. Times use the
	// "15:04" layout, so lexicographic comparison orders them correctly.
	return cel.StringType
}

// Rules returns the rule names in evaluation order.
func (s *Set) Rules() []string {
	names := make([]string, len(s.rules))
	for i, cr := range s.rules {
		names[i] = cr.rule.Name
	}

	return names
}

// EvaluateRecord applies every cascade to one record, in dependency order.
// Exactly one [Decision] is produced per rule, including N/A outcomes.
func (s *Set) EvaluateRecord(idx int, rec dataset.Record, m *mapping.Mapping) []Decision {
	outputs := make(map[string]string, len(s.rules))
	display := make(map[string]string)
	decisions := make([]Decision, 0, len(s.rules))

	for _, cr := range s.rules {
		d := s.evaluateRule(cr, idx, rec, m, outputs, display)
		decisions = append(decisions, d)

		if !d.NA {
			outputs[cr.rule.Output] = d.Decision
			display[cr.rule.Output] = d.Decision
		}
	}

	return decisions
}

//nolint:gocognit // Single pass over branch inputs and branches.
func (s *Set) evaluateRule(
	cr compiledRule,
	idx int,
	rec dataset.Record,
	m *mapping.Mapping,
	outputs map[string]string,
	display map[string]string,
) Decision {
	d := Decision{
		Rule:        cr.rule.Name,
		RecordIndex: idx,
	}

	activation := make(map[string]any, len(cr.rule.Fields)+len(cr.rule.Needs))

	for _, fieldName := range cr.rule.Fields {
		col, ok := m.Column(fieldName)
		if !ok {
			return naDecision(d, fmt.Sprintf(
				"%s could not be located in the dataset", fieldName))
		}

		v := rec.Value(col)
		if v.IsNull() {
			return naDecision(d, fmt.Sprintf(
				"value for %s (column %q) is missing", fieldName, col))
		}

		bound, ok := bindValue(s.purpose.Field(fieldName), v)
		if !ok {
			// Coercion failure reads the same as a null value: this record
			// only, other rules and records proceed.
			return naDecision(d, fmt.Sprintf(
				"value %q for %s (column %q) is not %s",
				v.Display(), fieldName, col, s.purpose.Field(fieldName).Kind))
		}

		activation[fieldName] = bound
		display[fieldName] = v.Display()

		d.FieldsUsed = append(d.FieldsUsed, FieldValue{
			Field:  fieldName,
			Column: col,
			Value:  v.Display(),
		})
	}

	for _, need := range cr.rule.Needs {
		needRule := s.purpose.Rule(need)

		out, ok := outputs[needRule.Output]
		if !ok {
			return naDecision(d, fmt.Sprintf(
				"depends on %s, which produced no decision", need))
		}

		activation[needRule.Output] = out

		d.FieldsUsed = append(d.FieldsUsed, FieldValue{
			Field: needRule.Output,
			Value: out,
		})
	}

	for _, cb := range cr.branches {
		if !cb.matches(activation) {
			continue
		}

		d.Decision = cb.branch.Decision
		d.Explanation = interpolate(cb.branch.Explain, display)

		return d
	}

	// Unreachable: catalog validation guarantees a trailing default branch.
	return naDecision(d, "no branch matched")
}

func (cb compiledBranch) matches(activation map[string]any) bool {
	if cb.program == nil {
		return true
	}

	result, _, err := cb.program.Eval(activation)
	if err != nil {
		// If evaluation fails, consider it a non-match.
		return false
	}

	boolVal, ok := result.Value().(bool)

	return ok && boolVal
}

func naDecision(d Decision, reason string) Decision {
	d.NA = true
	d.Decision = DecisionNA
	d.Explanation = reason

	return d
}

// bindValue converts a cell value into the CEL representation for its
// declared field kind. Categorical values are lower-cased and trimmed, so
// predicates compare case-insensitively against lower-case literals.
func bindValue(f *catalog.FieldSpec, v dataset.Value) (any, bool) {
	switch f.Kind {
	case catalog.FieldNumeric:
		n, ok := v.AsNumber()

		return n, ok

	case catalog.FieldCategorical:
		s, ok := v.AsText()

		return strings.ToLower(strings.TrimSpace(s)), ok

	case catalog.FieldTime:
		if t, ok := v.AsTime(); ok {
			return t.Format("15:04"), true
		}

		s, ok := v.AsText()

		return s, ok

	case catalog.FieldDate:
		if t, ok := v.AsTime(); ok {
			return t.Format("2006-01-02"), true
		}

		s, ok := v.AsText()

		return s, ok
	}

	return nil, false
}
