package expr_test

import (
	"testing"

	"github.com/google/cel-go/cel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulelens/pkg/expr"
)

func TestCompileAndEvaluate(t *testing.T) {
	t.Parallel()

	env, err := expr.NewEnvironment(
		cel.Variable("salary", cel.DoubleType),
		cel.Variable("leave_type", cel.StringType),
	)
	require.NoError(t, err)

	tests := []struct {
		activation map[string]any
		name       string
		expression string
		expected   bool
	}{
		{
			name:       "numeric comparison",
			expression: "salary >= 80000.0",
			activation: map[string]any{"salary": 95000.0},
			expected:   true,
		},
		{
			name:       "numeric comparison below threshold",
			expression: "salary >= 80000.0",
			activation: map[string]any{"salary": 50000.0},
			expected:   false,
		},
		{
			name:       "string equality",
			expression: `leave_type == "casual"`,
			activation: map[string]any{"leave_type": "casual"},
			expected:   true,
		},
		{
			name:       "conjunction",
			expression: `leave_type == "casual" && salary < 40000.0`,
			activation: map[string]any{"leave_type": "casual", "salary": 30000.0},
			expected:   true,
		},
		{
			name:       "strings extension",
			expression: `leave_type.lowerAscii() == "sick"`,
			activation: map[string]any{"leave_type": "SICK"},
			expected:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			program, err := env.Compile(tt.expression)
			require.NoError(t, err)

			result, _, err := program.Eval(tt.activation)
			require.NoError(t, err)

			assert.Equal(t, tt.expected, result.Value())
		})
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	env, err := expr.NewEnvironment(cel.Variable("salary", cel.DoubleType))
	require.NoError(t, err)

	tests := []struct {
		name       string
		expression string
	}{
		{name: "syntax error", expression: "salary >>> 1.0"},
		{name: "unknown variable", expression: "bonus > 1.0"},
		{name: "type mismatch", expression: `salary == "high"`},
		{name: "non-boolean result", expression: "salary + 1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := env.Compile(tt.expression)
			require.Error(t, err)
		})
	}
}

func TestMustNewEnvironment(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		expr.MustNewEnvironment()
	})
}
