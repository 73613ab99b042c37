package expr

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/interpreter"

	"github.com/macropower/cablecat/pkg/record"
)

var ErrNotBoolean = errors.New("expression must return a bool")

// Protect CEL environment creation and compilation from concurrent access.
var celMutex sync.Mutex

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Environment provides a thread-safe wrapper around a [*cel.Env] whose
// variables are the fields of a record scope.
type Environment struct {
	env  *cel.Env
	vars map[string]record.FieldType
}

// NewEnvironment creates a new [Environment] declaring one variable per
// field in vars. Fields whose names are not CEL identifiers are not
// declared and cannot be referenced.
func NewEnvironment(vars map[string]record.FieldType, opts ...cel.EnvOption) (*Environment, error) {
	declared := make(map[string]record.FieldType, len(vars))
	for name, ft := range vars {
		if !identRe.MatchString(name) {
			continue
		}

		declared[name] = ft
		opts = append(opts, cel.Variable(name, celType(ft)))
	}

	env, err := createEnvironment(opts...)
	if err != nil {
		return nil, err
	}

	return &Environment{env: env, vars: declared}, nil
}

// MustNewEnvironment creates a new [Environment] and panics on error.
func MustNewEnvironment(vars map[string]record.FieldType, opts ...cel.EnvOption) *Environment {
	env, err := NewEnvironment(vars, opts...)
	if err != nil {
		panic(err)
	}

	return env
}

func createEnvironment(opts ...cel.EnvOption) (*cel.Env, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	opts = append(opts, cel.Lib(&lib{}))

	celEnv, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return celEnv, nil
}

// Program is a compiled boolean expression.
type Program struct {
	prg    cel.Program
	source string
	refs   []string
}

// Compile compiles a boolean CEL expression.
func (e *Environment) Compile(expression string) (*Program, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(types.BoolType) {
		return nil, fmt.Errorf("%w, got %s", ErrNotBoolean, ast.OutputType())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	var refs []string
	for _, ref := range ast.NativeRep().ReferenceMap() {
		if _, ok := e.vars[ref.Name]; ok && !slices.Contains(refs, ref.Name) {
			refs = append(refs, ref.Name)
		}
	}

	slices.Sort(refs)

	return &Program{prg: prg, source: expression, refs: refs}, nil
}

// Eval evaluates the program against r. The second result is false when
// the expression could not be decided, for example because it reads a
// field that r does not carry.
func (p *Program) Eval(r record.Record) (bool, bool) {
	out, _, err := p.prg.Eval(activation{r: r})
	if err != nil {
		return false, false
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, false
	}

	return b, true
}

// References returns the sorted field names the expression reads.
func (p *Program) References() []string {
	return slices.Clone(p.refs)
}

func (p *Program) String() string {
	return p.source
}

func celType(ft record.FieldType) *cel.Type {
	switch ft {
	case record.TypeInteger:
		return cel.IntType
	case record.TypeReal:
		return cel.DoubleType
	default:
		return cel.StringType
	}
}

// activation resolves CEL variables against a record without copying it.
// Absent and unset values are unresolved.
type activation struct {
	r record.Record
}

func (a activation) ResolveName(name string) (any, bool) {
	v, ok := a.r.Lookup(name)
	if !ok || !v.Present() {
		return nil, false
	}

	return v.Any(), true
}

//nolint:ireturn // Following CEL's interface.
func (activation) Parent() interpreter.Activation {
	return nil
}
