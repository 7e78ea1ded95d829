// Package facts carries externally discovered ML facts. The core merges
// these into the report verbatim; they never influence cascade decisions.
package facts

import (
	"bytes"
	"fmt"
	"os"

	"rulelens/pkg/yaml"
)

// Facts is the opaque output of the statistical collaborator. Absent or
// partial facts are valid.
type Facts struct {
	// DiscoveredRules lists mined IF-THEN rule strings.
	DiscoveredRules []string `json:"discovered_rules,omitempty"`
	// FeatureImportance maps column name to importance percentage.
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	// Patterns lists mined association pattern strings.
	Patterns []string `json:"patterns,omitempty"`
}

// FromFile reads facts from a YAML or JSON document.
func FromFile(path string) (*Facts, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is user input by design.
	if err != nil {
		return nil, fmt.Errorf("read facts file: %w", err)
	}

	f := &Facts{}

	dec := yaml.NewDecoder(bytes.NewReader(data))

	err = dec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return f, nil
}
