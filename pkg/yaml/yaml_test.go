package yaml_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulelens/pkg/yaml"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	var doc struct {
		Name     string   `json:"name"`
		Keywords []string `json:"keywords"`
	}

	dec := yaml.NewDecoder(strings.NewReader("name: Employee Analysis\nkeywords: [salary, leave]\n"))
	require.NoError(t, dec.Decode(&doc))

	assert.Equal(t, "Employee Analysis", doc.Name)
	assert.Equal(t, []string{"salary", "leave"}, doc.Keywords)
}

func TestDecodeErrorCarriesLocation(t *testing.T) {
	t.Parallel()

	var doc map[string]any

	dec := yaml.NewDecoder(strings.NewReader("a: [1, 2\nb: 3\n"))
	err := dec.Decode(&doc)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "line")
}

func TestEncode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	require.NoError(t, enc.Encode(map[string]any{
		"purpose": "Employee Analysis",
		"rows":    4,
	}))
	require.NoError(t, enc.Close())

	out := buf.String()
	assert.Contains(t, out, "purpose: Employee Analysis")
	assert.Contains(t, out, "rows: 4")
}

func TestValidator(t *testing.T) {
	t.Parallel()

	schema := []byte(`{
		"type": "object",
		"additionalProperties": false,
		"required": ["name"],
		"properties": {
			"name": {"type": "string"},
			"count": {"type": "integer"}
		}
	}`)

	v, err := yaml.NewValidator("/test.json", schema)
	require.NoError(t, err)

	require.NoError(t, v.Validate(map[string]any{"name": "x"}))

	err = v.Validate(map[string]any{"count": 1})
	require.Error(t, err, "missing required property")

	err = v.Validate(map[string]any{"name": "x", "extra": true})
	require.Error(t, err, "unknown property")
}

func TestValidatorBadSchema(t *testing.T) {
	t.Parallel()

	_, err := yaml.NewValidator("/test.json", []byte("not json"))
	require.Error(t, err)
}

func TestErrorWrapperAnnotatesSource(t *testing.T) {
	t.Parallel()

	source := []byte("name: 42\n")

	schema := []byte(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"}
		}
	}`)

	v, err := yaml.NewValidator("/test.json", schema)
	require.NoError(t, err)

	var doc any

	dec := yaml.NewDecoder(bytes.NewReader(source))
	require.NoError(t, dec.Decode(&doc))

	vErr := v.Validate(doc)
	require.Error(t, vErr)

	wrapped := yaml.NewErrorWrapper(source).Wrap(vErr)
	require.Error(t, wrapped)

	// The annotated error points at the offending line in the document.
	assert.Contains(t, wrapped.Error(), "name: 42")
}

func TestErrorWrapperPassesThroughOtherErrors(t *testing.T) {
	t.Parallel()

	plain := assert.AnError

	assert.Equal(t, plain, yaml.NewErrorWrapper(nil).Wrap(plain))
	assert.NoError(t, yaml.NewErrorWrapper(nil).Wrap(nil))
}
