// Package mapping resolves abstract rule-fields to concrete dataset columns.
//
// Resolution is deterministic: strategies are tried in a fixed priority
// order, and within a strategy the first column in dataset order wins. Fields
// that no strategy can place are left unmapped; they surface per record as
// N/A decisions rather than failing the analysis.
package mapping

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"

	"rulelens/pkg/catalog"
)

const maxSuggestions = 3

// Pair associates one rule-field with the column it resolved to.
type Pair struct {
	Field  string `json:"field"`
	Column string `json:"column"`
}

// Mapping is the resolved field→column association for one analysis run.
// Built once, read-only during cascade evaluation.
type Mapping struct {
	fields map[string]string

	// Unmapped lists fields no strategy could place, in catalog order.
	Unmapped []string `json:"unmapped,omitempty"`
	// Suggestions offers fuzzy-ranked candidate columns for unmapped
	// fields. Suggestions never influence the mapping itself.
	Suggestions map[string][]string `json:"suggestions,omitempty"`
	// Warnings flags suspect mappings, e.g. two fields sharing a column.
	Warnings []string `json:"warnings,omitempty"`

	order []string
}

// Column returns the column mapped to field.
func (m *Mapping) Column(field string) (string, bool) {
	col, ok := m.fields[field]

	return col, ok
}

// Pairs returns the resolved pairs in catalog field order.
func (m *Mapping) Pairs() []Pair {
	pairs := make([]Pair, 0, len(m.fields))

	for _, f := range m.order {
		if col, ok := m.fields[f]; ok {
			pairs = append(pairs, Pair{Field: f, Column: col})
		}
	}

	return pairs
}

// MappedRequiredFraction is the fraction of required fields that resolved.
// Purposes with no required fields count as fully mapped.
func (m *Mapping) MappedRequiredFraction(p *catalog.Purpose) float64 {
	required := p.RequiredFields()
	if len(required) == 0 {
		return 1.0
	}

	mapped := 0

	for _, f := range required {
		if _, ok := m.fields[f]; ok {
			mapped++
		}
	}

	return float64(mapped) / float64(len(required))
}

// Resolve maps every rule-field of the purpose onto the dataset columns.
// Side-effect free: same inputs, same mapping.
func Resolve(p *catalog.Purpose, columns []string) *Mapping {
	m := &Mapping{
		fields: make(map[string]string, len(p.Fields)),
	}

	for _, f := range p.Fields {
		m.order = append(m.order, f.Name)

		col, ok := resolveField(f, columns)
		if !ok {
			m.Unmapped = append(m.Unmapped, f.Name)

			continue
		}

		m.fields[f.Name] = col
	}

	m.warnSharedColumns(p)
	m.suggest(columns)

	return m
}

// resolveField tries each strategy in priority order:
//
//  1. Exact case-insensitive match of the field name.
//  2. Exact case-insensitive match of any synonym.
//  3. Whole-segment match of the field name or a synonym within the
//     column's underscore/space/camelCase segments.
func resolveField(f *catalog.FieldSpec, columns []string) (string, bool) {
	for _, col := range columns {
		if strings.EqualFold(f.Name, col) {
			return col, true
		}
	}

	for _, col := range columns {
		for _, syn := range f.Synonyms {
			if strings.EqualFold(syn, col) {
				return col, true
			}
		}
	}

	tokens := append([]string{f.Name}, f.Synonyms...)

	for _, col := range columns {
		colSegs := segments(col)

		for _, token := range tokens {
			if containsSegments(colSegs, segments(token)) {
				return col, true
			}
		}
	}

	return "", false
}

// segments splits a name into lower-cased tokens at underscores, spaces,
// hyphens, and camelCase transitions. "attendancePct" -> [attendance, pct].
func segments(s string) []string {
	var (
		segs []string
		cur  strings.Builder
	)

	flush := func() {
		if cur.Len() > 0 {
			segs = append(segs, cur.String())
			cur.Reset()
		}
	}

	prevLower := false

	for _, r := range s {
		switch {
		case r == '_' || r == ' ' || r == '-' || r == '.':
			flush()
			prevLower = false

		case unicode.IsUpper(r):
			if prevLower {
				flush()
			}

			cur.WriteRune(unicode.ToLower(r))
			prevLower = false

		default:
			cur.WriteRune(unicode.ToLower(r))
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}

	flush()

	return segs
}

// containsSegments reports whether want appears as a consecutive run inside
// have. Requiring aligned segment boundaries stops "age" from matching
// "average".
func containsSegments(have, want []string) bool {
	if len(want) == 0 || len(want) > len(have) {
		return false
	}

	for i := 0; i+len(want) <= len(have); i++ {
		match := true

		for j, w := range want {
			if have[i+j] != w {
				match = false

				break
			}
		}

		if match {
			return true
		}
	}

	return false
}

// warnSharedColumns flags two fields resolving to the same column. The
// catalog does not define a preference here, so this is surfaced as a
// warning instead of silently picking one.
func (m *Mapping) warnSharedColumns(p *catalog.Purpose) {
	byColumn := make(map[string]string)

	for _, f := range p.Fields {
		col, ok := m.fields[f.Name]
		if !ok {
			continue
		}

		if prev, ok := byColumn[col]; ok {
			m.Warnings = append(m.Warnings, fmt.Sprintf(
				"fields %q and %q both map to column %q", prev, f.Name, col))

			continue
		}

		byColumn[col] = f.Name
	}
}

func (m *Mapping) suggest(columns []string) {
	if len(m.Unmapped) == 0 {
		return
	}

	m.Suggestions = make(map[string][]string, len(m.Unmapped))

	for _, field := range m.Unmapped {
		matches := fuzzy.Find(field, columns)

		var cols []string
		for i, match := range matches {
			if i == maxSuggestions {
				break
			}

			cols = append(cols, match.Str)
		}

		if len(cols) > 0 {
			m.Suggestions[field] = cols
		}
	}
}
