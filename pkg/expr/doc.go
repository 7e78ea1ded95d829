// Package expr provides CEL (Common Expression Language) functionality for
// evaluating rule branch predicates against record field values.
//
// Each rule cascade compiles its branch predicates once at catalog load time.
// Predicates have access to one variable per declared rule-field (for example
// `salary`), plus one variable per dependency rule output (for example
// `performance`). Predicates must return a boolean value.
package expr
