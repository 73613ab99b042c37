package predicate

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/macropower/cablecat/pkg/expr"
	"github.com/macropower/cablecat/pkg/record"
)

var (
	ErrUndeclaredField  = errors.New("undeclared field")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrInvalidPredicate = errors.New("invalid predicate")
)

// Error is a predicate configuration error. Path locates the offending
// node relative to the predicate root, using the same keys as [Spec].
type Error struct {
	Err  error
	Path []string
}

func (e *Error) Error() string {
	if len(e.Path) == 0 {
		return e.Err.Error()
	}

	return strings.Join(e.Path, ".") + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// prefix returns err with path prepended to its location.
func prefix(err error, path ...string) error {
	var pe *Error
	if errors.As(err, &pe) {
		return &Error{Err: pe.Err, Path: append(path, pe.Path...)}
	}

	return &Error{Err: err, Path: path}
}

// Scope is the set of fields a predicate may read, with their types.
type Scope struct {
	types map[string]record.FieldType
	env   *expr.Environment
}

// NewScope creates a [Scope] containing the schema's fields and the named
// derived attributes, which are categorical.
func NewScope(schema *record.Schema, attrs ...string) *Scope {
	s := &Scope{types: make(map[string]record.FieldType)}
	if schema != nil {
		for _, f := range schema.Fields {
			s.types[f.Name] = f.Type
		}
	}
	for _, a := range attrs {
		s.types[a] = record.TypeCategorical
	}

	return s
}

// With returns a new [Scope] that also contains the named attributes.
func (s *Scope) With(attrs ...string) *Scope {
	out := &Scope{types: make(map[string]record.FieldType, len(s.types)+len(attrs))}
	for k, v := range s.types {
		out.types[k] = v
	}
	for _, a := range attrs {
		out.types[a] = record.TypeCategorical
	}

	return out
}

// Type returns the type of the named field.
func (s *Scope) Type(name string) (record.FieldType, bool) {
	ft, ok := s.types[name]

	return ft, ok
}

// environment builds the CEL environment on first use, so binding against
// one Scope must not happen concurrently.
func (s *Scope) environment() (*expr.Environment, error) {
	if s.env != nil {
		return s.env, nil
	}

	env, err := expr.NewEnvironment(s.types)
	if err != nil {
		return nil, err
	}

	s.env = env

	return env, nil
}

// Bind type-checks p against s and returns an equivalent predicate ready
// for evaluation. Errors are [*Error] values wrapping
// [ErrUndeclaredField], [ErrTypeMismatch] or [ErrInvalidPredicate].
//
//nolint:ireturn // Predicate trees are heterogeneous.
func Bind(p Predicate, s *Scope) (Predicate, error) {
	if p == nil {
		return nil, &Error{Err: fmt.Errorf("%w: empty predicate", ErrInvalidPredicate)}
	}

	return p.bind(s)
}

func (s *Scope) field(name string) (record.FieldType, error) {
	if name == "" {
		return "", &Error{Err: fmt.Errorf("%w: field name is required", ErrInvalidPredicate), Path: []string{"field"}}
	}

	ft, ok := s.Type(name)
	if !ok {
		return "", &Error{Err: fmt.Errorf("%w: %q", ErrUndeclaredField, name), Path: []string{"field"}}
	}

	return ft, nil
}

//nolint:ireturn // Predicate trees are heterogeneous.
func (p *inSet) bind(s *Scope) (Predicate, error) {
	ft, err := s.field(p.field)
	if err != nil {
		return nil, prefix(err, "in")
	}
	if len(p.members) == 0 {
		return nil, &Error{Err: fmt.Errorf("%w: values must not be empty", ErrInvalidPredicate), Path: []string{"in", "values"}}
	}

	members := make([]record.Value, 0, len(p.members))
	for i, m := range p.members {
		v, err := coerce(ft, m)
		if err != nil {
			raw := any(m)
			if i < len(p.raw) {
				raw = p.raw[i]
			}

			return nil, &Error{
				Err:  fmt.Errorf("%w: %s field %q cannot hold %v", ErrTypeMismatch, ft, p.field, raw),
				Path: []string{"in", "values", strconv.Itoa(i)},
			}
		}

		members = append(members, v)
	}

	return &inSet{field: p.field, members: members, raw: p.raw, ft: ft}, nil
}

//nolint:ireturn // Predicate trees are heterogeneous.
func (p *between) bind(s *Scope) (Predicate, error) {
	ft, err := s.field(p.field)
	if err != nil {
		return nil, prefix(err, "between")
	}
	if !ft.Numeric() {
		return nil, &Error{
			Err:  fmt.Errorf("%w: range on %s field %q", ErrTypeMismatch, ft, p.field),
			Path: []string{"between", "field"},
		}
	}
	if math.IsNaN(p.low) || math.IsNaN(p.high) || p.low > p.high {
		return nil, &Error{
			Err:  fmt.Errorf("%w: low %v is greater than high %v", ErrInvalidPredicate, p.low, p.high),
			Path: []string{"between"},
		}
	}

	return &between{field: p.field, low: p.low, high: p.high}, nil
}

//nolint:ireturn // Predicate trees are heterogeneous.
func (p *not) bind(s *Scope) (Predicate, error) {
	if p.p == nil {
		return nil, &Error{Err: fmt.Errorf("%w: empty negation", ErrInvalidPredicate), Path: []string{"not"}}
	}

	c, err := p.p.bind(s)
	if err != nil {
		return nil, prefix(err, "not")
	}

	return &not{p: c}, nil
}

//nolint:ireturn // Predicate trees are heterogeneous.
func (p *and) bind(s *Scope) (Predicate, error) {
	ps, err := bindAll(s, "and", p.ps)
	if err != nil {
		return nil, err
	}

	return &and{ps: ps}, nil
}

//nolint:ireturn // Predicate trees are heterogeneous.
func (p *or) bind(s *Scope) (Predicate, error) {
	ps, err := bindAll(s, "or", p.ps)
	if err != nil {
		return nil, err
	}

	return &or{ps: ps}, nil
}

//nolint:ireturn // Predicate trees are heterogeneous.
func (p *exprNode) bind(s *Scope) (Predicate, error) {
	if strings.TrimSpace(p.source) == "" {
		return nil, &Error{Err: fmt.Errorf("%w: empty expression", ErrInvalidPredicate), Path: []string{"expr"}}
	}

	env, err := s.environment()
	if err != nil {
		return nil, &Error{Err: err, Path: []string{"expr"}}
	}

	prg, err := env.Compile(p.source)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("%w: %w", ErrInvalidPredicate, err), Path: []string{"expr"}}
	}

	return &exprNode{source: p.source, prg: prg}, nil
}

func bindAll(s *Scope, key string, ps []Predicate) ([]Predicate, error) {
	if len(ps) == 0 {
		return nil, &Error{Err: fmt.Errorf("%w: %s needs at least one operand", ErrInvalidPredicate, key), Path: []string{key}}
	}

	out := make([]Predicate, 0, len(ps))
	for i, c := range ps {
		if c == nil {
			return nil, &Error{Err: fmt.Errorf("%w: empty operand", ErrInvalidPredicate), Path: []string{key, strconv.Itoa(i)}}
		}

		b, err := c.bind(s)
		if err != nil {
			return nil, prefix(err, key, strconv.Itoa(i))
		}

		out = append(out, b)
	}

	return out, nil
}

// coerce converts a set member to the representation used by fields of
// type ft. Integral reals are accepted for integer fields.
func coerce(ft record.FieldType, v record.Value) (record.Value, error) {
	switch ft {
	case record.TypeCategorical:
		if v.Kind() == record.KindString {
			return v, nil
		}
	case record.TypeInteger:
		if i, ok := v.Int(); ok {
			return record.Integer(i), nil
		}
		if f, ok := v.Float(); ok && f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
			return record.Integer(int64(f)), nil
		}
	case record.TypeReal:
		if f, ok := v.Float(); ok {
			return record.Real(f), nil
		}
	}

	return record.Absent(), ErrTypeMismatch
}
