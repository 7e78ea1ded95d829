package expr

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// Protect CEL environment creation and compilation from concurrent access.
var celMutex sync.Mutex

// Extension libraries available to all predicates.
var stdlibOptions = []cel.EnvOption{
	ext.Math(),
	ext.Strings(),
	ext.Lists(),
}

// Environment is a thread-safe wrapper around a [*cel.Env] configured for
// branch predicates.
type Environment struct {
	env *cel.Env
}

// NewEnvironment creates an [Environment]. Pass one [cel.Variable] per
// rule-field and dependency output the predicates may reference.
func NewEnvironment(opts ...cel.EnvOption) (*Environment, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	opts = append(opts, stdlibOptions...)

	celEnv, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &Environment{env: celEnv}, nil
}

// MustNewEnvironment creates a new [Environment] and panics on error.
func MustNewEnvironment(opts ...cel.EnvOption) *Environment {
	env, err := NewEnvironment(opts...)
	if err != nil {
		panic(err)
	}

	return env
}

// Compile compiles a predicate expression and returns a program. Expressions
// that do not evaluate to a boolean are rejected here, at load time, rather
// than failing per record.
//
//nolint:ireturn // Following CEL's function signature.
func (e *Environment) Compile(expression string) (cel.Program, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression %q evaluates to %s, expected bool", expression, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	return program, nil
}
