// Package detect infers the business purpose of a dataset from its column
// names, by scoring them against the keyword catalog.
package detect

import (
	"strings"

	"rulelens/pkg/catalog"
)

// Tier is a coarse confidence grade.
type Tier string

const (
	TierHigh   Tier = "High"
	TierMedium Tier = "Medium"
	TierLow    Tier = "Low"
	TierNone   Tier = "None"
)

// PurposeUnknown is reported when no purpose matches any column.
const PurposeUnknown = "Unknown"

// Match is the result of purpose detection. Immutable once created.
type Match struct {
	// Purpose is the winning purpose name, or [PurposeUnknown].
	Purpose string `json:"purpose"`
	// Confidence grades the match by the number of matched keywords.
	Confidence Tier `json:"confidence"`
	// MatchedKeywords lists matched keywords in catalog order.
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	// ColumnsMatched counts distinct columns that matched any keyword.
	ColumnsMatched int `json:"columns_matched"`
}

// Detect scores every purpose in the catalog against the column list and
// returns the best match. Ties break by catalog declaration order, so the
// result is deterministic. A dataset with no columns, or no matching purpose,
// yields [PurposeUnknown] with confidence [TierNone]; this is not an error.
func Detect(c *catalog.Catalog, columns []string) Match {
	normCols := make([]string, len(columns))
	for i, col := range columns {
		normCols[i] = normalize(col)
	}

	best := Match{Purpose: PurposeUnknown, Confidence: TierNone}

	for _, p := range c.Purposes {
		m := scorePurpose(p, normCols)
		if m.ColumnsMatched > best.ColumnsMatched {
			best = m
		}
	}

	if best.ColumnsMatched == 0 {
		return Match{Purpose: PurposeUnknown, Confidence: TierNone}
	}

	return best
}

func scorePurpose(p *catalog.Purpose, normCols []string) Match {
	m := Match{Purpose: p.Name}

	matchedCols := make(map[int]struct{})

	for _, kw := range p.Keywords {
		normKw := normalize(kw)
		if normKw == "" {
			continue
		}

		matched := false

		for i, col := range normCols {
			if col == "" {
				continue
			}

			// Substring match in both directions tolerates prefixes and
			// suffixes, e.g. emp_id vs employee_id.
			if strings.Contains(col, normKw) || strings.Contains(normKw, col) {
				matchedCols[i] = struct{}{}
				matched = true
			}
		}

		if matched {
			m.MatchedKeywords = append(m.MatchedKeywords, kw)
		}
	}

	m.ColumnsMatched = len(matchedCols)
	m.Confidence = tierFor(len(m.MatchedKeywords))

	return m
}

func tierFor(matchedKeywords int) Tier {
	switch {
	case matchedKeywords >= 5:
		return TierHigh
	case matchedKeywords >= 2:
		return TierMedium
	case matchedKeywords == 1:
		return TierLow
	}

	return TierNone
}

// normalize lower-cases and strips non-alphanumeric runes, so that
// "Employee_ID", "employee id", and "employeeId" all compare equal.
func normalize(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}
