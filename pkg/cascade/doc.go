// Package cascade evaluates ordered rule cascades against dataset records.
//
// Each rule is a list of branches tried top to bottom; the first branch whose
// CEL predicate holds wins, and the trailing default branch guarantees every
// record receives exactly one decision per rule (N/A included). Branch
// predicates see one variable per declared rule-field, plus one variable per
// dependency rule output. Record field values are bound by declared kind:
// numeric fields as doubles, categorical fields as lower-cased strings, time
// and date fields as "15:04" / "2006-01-02" strings.
//
// Evaluation is a pure function of (record, mapping, compiled set): records
// share no state and may be processed in any order or in parallel.
package cascade
