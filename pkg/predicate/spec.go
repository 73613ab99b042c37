package predicate

import (
	"fmt"
	"strconv"

	"github.com/invopop/jsonschema"
)

// Spec is the configuration form of a predicate. Exactly one field is set.
type Spec struct {
	// In tests set membership.
	In *InSpec `json:"in,omitempty" jsonschema:"title=Set Membership"`
	// Between tests an inclusive numeric range.
	Between *BetweenSpec `json:"between,omitempty" jsonschema:"title=Range"`
	// Not negates a predicate.
	Not *Spec `json:"not,omitempty" jsonschema:"title=Negation"`
	// And holds when every operand holds.
	And []*Spec `json:"and,omitempty" jsonschema:"title=Conjunction"`
	// Or holds when any operand holds.
	Or []*Spec `json:"or,omitempty" jsonschema:"title=Disjunction"`
	// Expr is a CEL expression returning a bool. Field names are variables,
	// and between(x, low, high) is available.
	Expr string `json:"expr,omitempty" jsonschema:"title=CEL Expression"`
}

// InSpec is the configuration form of [InSet].
type InSpec struct {
	// Field is the field to test.
	Field string `json:"field" jsonschema:"title=Field"`
	// Values are the accepted values.
	Values []any `json:"values" jsonschema:"title=Values"`
}

// BetweenSpec is the configuration form of [Between].
type BetweenSpec struct {
	// Field is the numeric field to test.
	Field string `json:"field" jsonschema:"title=Field"`
	// Low is the inclusive lower bound.
	Low float64 `json:"low" jsonschema:"title=Low"`
	// High is the inclusive upper bound.
	High float64 `json:"high" jsonschema:"title=High"`
}

// JSONSchemaExtend requires exactly one operator per node.
func (Spec) JSONSchemaExtend(js *jsonschema.Schema) {
	one := uint64(1)
	js.MinProperties = &one
	js.MaxProperties = &one
}

// Predicate converts s into an unbound [Predicate].
//
//nolint:ireturn // Predicate trees are heterogeneous.
func (s *Spec) Predicate() (Predicate, error) {
	if s == nil {
		return nil, &Error{Err: fmt.Errorf("%w: empty predicate", ErrInvalidPredicate)}
	}

	set := 0
	for _, ok := range []bool{s.In != nil, s.Between != nil, s.Not != nil, s.And != nil, s.Or != nil, s.Expr != ""} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, &Error{Err: fmt.Errorf("%w: expected exactly one operator, got %d", ErrInvalidPredicate, set)}
	}

	switch {
	case s.In != nil:
		return InSet(s.In.Field, s.In.Values...), nil

	case s.Between != nil:
		return Between(s.Between.Field, s.Between.Low, s.Between.High), nil

	case s.Not != nil:
		p, err := s.Not.Predicate()
		if err != nil {
			return nil, prefix(err, "not")
		}

		return Not(p), nil

	case s.And != nil:
		ps, err := specsToPredicates("and", s.And)
		if err != nil {
			return nil, err
		}

		return And(ps...), nil

	case s.Or != nil:
		ps, err := specsToPredicates("or", s.Or)
		if err != nil {
			return nil, err
		}

		return Or(ps...), nil
	}

	return Expr(s.Expr), nil
}

// Compile converts s into a [Predicate] bound to scope.
//
//nolint:ireturn // Predicate trees are heterogeneous.
func Compile(s *Spec, scope *Scope) (Predicate, error) {
	p, err := s.Predicate()
	if err != nil {
		return nil, err
	}

	return Bind(p, scope)
}

func specsToPredicates(key string, specs []*Spec) ([]Predicate, error) {
	if len(specs) == 0 {
		return nil, &Error{Err: fmt.Errorf("%w: %s needs at least one operand", ErrInvalidPredicate, key), Path: []string{key}}
	}

	ps := make([]Predicate, 0, len(specs))
	for i, spec := range specs {
		p, err := spec.Predicate()
		if err != nil {
			return nil, prefix(err, key, strconv.Itoa(i))
		}

		ps = append(ps, p)
	}

	return ps, nil
}
