// Package report aggregates per-record decisions into the final analysis
// report: outcome distributions, overall confidence, and the merged ML facts.
package report

import (
	"sort"

	"rulelens/pkg/cascade"
	"rulelens/pkg/catalog"
	"rulelens/pkg/dataset"
	"rulelens/pkg/detect"
	"rulelens/pkg/facts"
	"rulelens/pkg/mapping"
)

// Outcome is one decision value and its frequency across all records.
type Outcome struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// NumericStats summarizes the numeric driver column of a rule, over the
// records that received a decision.
type NumericStats struct {
	Column string  `json:"column"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
}

// RuleReport is the dataset-wide view of one rule cascade.
type RuleReport struct {
	Name string `json:"name"`
	// Distribution counts each decision value, N/A included, sorted by
	// value for stable output.
	Distribution []Outcome     `json:"distribution"`
	Stats        *NumericStats `json:"stats,omitempty"`
}

// RecordDecisions groups one record's decisions, in rule evaluation order.
type RecordDecisions struct {
	Decisions []cascade.Decision `json:"decisions"`
	Index     int                `json:"index"`
}

// MappingReport is the serialized view of a [mapping.Mapping].
type MappingReport struct {
	Fields      []mapping.Pair      `json:"fields,omitempty"`
	Unmapped    []string            `json:"unmapped,omitempty"`
	Suggestions map[string][]string `json:"suggestions,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// Report is the terminal artifact of one analysis run. Produced once,
// serialized outward, never mutated afterwards.
type Report struct {
	Purpose           detect.Match      `json:"purpose"`
	OverallConfidence detect.Tier       `json:"overall_confidence"`
	Mapping           MappingReport     `json:"mapping"`
	Profile           dataset.Profile   `json:"profile"`
	Rules             []RuleReport      `json:"rules,omitempty"`
	Records           []RecordDecisions `json:"records,omitempty"`
	// Facts is the external ML section, merged verbatim. It never alters
	// cascade decisions.
	Facts *facts.Facts `json:"ml_facts,omitempty"`
}

// Build assembles the report. purpose and m are nil when detection found no
// purpose; decisions must already be sorted by record index.
func Build(
	purpose *catalog.Purpose,
	match detect.Match,
	m *mapping.Mapping,
	ds *dataset.Dataset,
	decisions []cascade.Decision,
	mlFacts *facts.Facts,
) *Report {
	r := &Report{
		Purpose:           match,
		OverallConfidence: overallConfidence(purpose, match, m),
		Profile:           ds.Profile(),
		Facts:             mlFacts,
	}

	if m != nil {
		r.Mapping = MappingReport{
			Fields:      m.Pairs(),
			Unmapped:    m.Unmapped,
			Suggestions: m.Suggestions,
			Warnings:    m.Warnings,
		}
	}

	r.Records = groupByRecord(decisions)

	if purpose != nil {
		for _, rule := range purpose.OrderedRules() {
			r.Rules = append(r.Rules, buildRuleReport(purpose, rule, m, ds, decisions))
		}
	}

	return r
}

// overallConfidence combines the purpose match tier with the fraction of
// required rule-fields that mapped.
func overallConfidence(purpose *catalog.Purpose, match detect.Match, m *mapping.Mapping) detect.Tier {
	if purpose == nil || m == nil {
		return detect.TierLow
	}

	frac := m.MappedRequiredFraction(purpose)

	switch {
	case match.Confidence == detect.TierHigh && frac >= 0.8:
		return detect.TierHigh

	case (match.Confidence == detect.TierHigh || match.Confidence == detect.TierMedium) && frac >= 0.5:
		return detect.TierMedium
	}

	return detect.TierLow
}

func groupByRecord(decisions []cascade.Decision) []RecordDecisions {
	var records []RecordDecisions

	for _, d := range decisions {
		if len(records) == 0 || records[len(records)-1].Index != d.RecordIndex {
			records = append(records, RecordDecisions{Index: d.RecordIndex})
		}

		last := &records[len(records)-1]
		last.Decisions = append(last.Decisions, d)
	}

	return records
}

func buildRuleReport(
	purpose *catalog.Purpose,
	rule *catalog.Rule,
	m *mapping.Mapping,
	ds *dataset.Dataset,
	decisions []cascade.Decision,
) RuleReport {
	rr := RuleReport{Name: rule.Name}

	counts := make(map[string]int)
	decided := make(map[int]struct{})

	for _, d := range decisions {
		if d.Rule != rule.Name {
			continue
		}

		counts[d.Decision]++

		if !d.NA {
			decided[d.RecordIndex] = struct{}{}
		}
	}

	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}

	sort.Strings(values)

	for _, v := range values {
		rr.Distribution = append(rr.Distribution, Outcome{Value: v, Count: counts[v]})
	}

	rr.Stats = driverStats(purpose, rule, m, ds, decided)

	return rr
}

// driverStats computes min/max/mean of the rule's first mapped numeric field
// across the records that received a decision.
func driverStats(
	purpose *catalog.Purpose,
	rule *catalog.Rule,
	m *mapping.Mapping,
	ds *dataset.Dataset,
	decided map[int]struct{},
) *NumericStats {
	if m == nil {
		return nil
	}

	var col string

	for _, fieldName := range rule.Fields {
		f := purpose.Field(fieldName)
		if f == nil || f.Kind != catalog.FieldNumeric {
			continue
		}

		if c, ok := m.Column(fieldName); ok {
			col = c

			break
		}
	}

	if col == "" {
		return nil
	}

	var (
		sum   float64
		count int
		stats *NumericStats
	)

	for idx, rec := range ds.Records {
		if _, ok := decided[idx]; !ok {
			continue
		}

		n, ok := rec.Value(col).AsNumber()
		if !ok {
			continue
		}

		if stats == nil {
			stats = &NumericStats{Column: col, Min: n, Max: n}
		} else {
			if n < stats.Min {
				stats.Min = n
			}
			if n > stats.Max {
				stats.Max = n
			}
		}

		sum += n
		count++
	}

	if stats != nil {
		stats.Mean = sum / float64(count)
	}

	return stats
}
