// Package predicate implements the boolean expression language that rules
// use to test records.
//
// Evaluation is three-valued. A leaf that reads an absent or unset field
// yields [Unknown], and the combinators follow Kleene logic, so a predicate
// that depends on missing data never matches. [Matches] maps the result
// to a bool.
package predicate

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/macropower/cablecat/pkg/expr"
	"github.com/macropower/cablecat/pkg/record"
)

// Tri is a three-valued truth value.
type Tri int8

const (
	False Tri = iota
	True
	Unknown
)

func (t Tri) String() string {
	switch t {
	case False:
		return "false"
	case True:
		return "true"
	default:
		return "unknown"
	}
}

// Predicate is a node in a predicate tree.
type Predicate interface {
	// Eval evaluates the predicate against a record.
	Eval(r record.Record) Tri
	// Fields returns the sorted, distinct field names the predicate reads.
	Fields() []string
	String() string

	bind(s *Scope) (Predicate, error)
}

// Matches reports whether p is definitely true for r.
func Matches(p Predicate, r record.Record) bool {
	return p.Eval(r) == True
}

// InSet is true when the field's value equals one of values. Values are
// strings for categorical fields and numbers for numeric fields.
func InSet(field string, values ...any) Predicate {
	members := make([]record.Value, 0, len(values))
	for _, v := range values {
		members = append(members, toValue(v))
	}

	return &inSet{field: field, members: members, raw: values}
}

// Between is true when low <= value <= high.
func Between(field string, low, high float64) Predicate {
	return &between{field: field, low: low, high: high}
}

// Not negates p. Unknown stays unknown.
func Not(p Predicate) Predicate {
	return &not{p: p}
}

// And is true when every child is true.
func And(ps ...Predicate) Predicate {
	return &and{ps: ps}
}

// Or is true when any child is true.
func Or(ps ...Predicate) Predicate {
	return &or{ps: ps}
}

// Expr is a CEL boolean expression over the fields in scope. It evaluates
// to [Unknown] until bound with [Bind].
func Expr(source string) Predicate {
	return &exprNode{source: source}
}

type inSet struct {
	field   string
	members []record.Value
	raw     []any
	ft      record.FieldType
}

func (p *inSet) Eval(r record.Record) Tri {
	v := r.Get(p.field)
	if !v.Present() || !compatible(p.ft, v) {
		return Unknown
	}
	for _, m := range p.members {
		if v.Equal(m) {
			return True
		}
	}

	return False
}

func (p *inSet) Fields() []string { return []string{p.field} }

func (p *inSet) String() string {
	parts := make([]string, 0, len(p.members))
	for _, m := range p.members {
		if s, ok := m.Str(); ok {
			parts = append(parts, strconv.Quote(s))
		} else {
			parts = append(parts, m.String())
		}
	}

	return fmt.Sprintf("%s in {%s}", p.field, strings.Join(parts, ", "))
}

type between struct {
	field     string
	low, high float64
}

func (p *between) Eval(r record.Record) Tri {
	f, ok := r.Get(p.field).Float()
	if !ok || math.IsNaN(f) {
		return Unknown
	}
	if p.low <= f && f <= p.high {
		return True
	}

	return False
}

func (p *between) Fields() []string { return []string{p.field} }

func (p *between) String() string {
	return fmt.Sprintf("%s <= %s <= %s", formatNumber(p.low), p.field, formatNumber(p.high))
}

type not struct {
	p Predicate
}

func (p *not) Eval(r record.Record) Tri {
	switch p.p.Eval(r) {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

func (p *not) Fields() []string { return p.p.Fields() }

func (p *not) String() string { return "!(" + p.p.String() + ")" }

type and struct {
	ps []Predicate
}

func (p *and) Eval(r record.Record) Tri {
	result := True
	for _, c := range p.ps {
		switch c.Eval(r) {
		case False:
			return False
		case Unknown:
			result = Unknown
		case True:
		}
	}

	return result
}

func (p *and) Fields() []string { return collectFields(p.ps) }

func (p *and) String() string { return join(p.ps, " && ") }

type or struct {
	ps []Predicate
}

func (p *or) Eval(r record.Record) Tri {
	result := False
	for _, c := range p.ps {
		switch c.Eval(r) {
		case True:
			return True
		case Unknown:
			result = Unknown
		case False:
		}
	}

	return result
}

func (p *or) Fields() []string { return collectFields(p.ps) }

func (p *or) String() string { return join(p.ps, " || ") }

type exprNode struct {
	prg    *expr.Program
	source string
}

func (p *exprNode) Eval(r record.Record) Tri {
	if p.prg == nil {
		return Unknown
	}

	b, ok := p.prg.Eval(r)
	switch {
	case !ok:
		return Unknown
	case b:
		return True
	default:
		return False
	}
}

func (p *exprNode) Fields() []string {
	if p.prg == nil {
		return nil
	}

	return p.prg.References()
}

func (p *exprNode) String() string { return "expr(" + strconv.Quote(p.source) + ")" }

func collectFields(ps []Predicate) []string {
	var fields []string
	for _, p := range ps {
		fields = append(fields, p.Fields()...)
	}

	slices.Sort(fields)

	return slices.Compact(fields)
}

func join(ps []Predicate, sep string) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, p.String())
	}

	return "(" + strings.Join(parts, sep) + ")"
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// compatible reports whether a record value may be compared against
// members declared for a field of type ft. An empty ft accepts anything.
func compatible(ft record.FieldType, v record.Value) bool {
	switch ft {
	case record.TypeCategorical:
		return v.Kind() == record.KindString
	case record.TypeInteger, record.TypeReal:
		_, ok := v.Float()
		return ok
	default:
		return true
	}
}

func toValue(v any) record.Value {
	switch x := v.(type) {
	case record.Value:
		return x
	case string:
		return record.String(x)
	case int:
		return record.Integer(int64(x))
	case int64:
		return record.Integer(x)
	case int32:
		return record.Integer(int64(x))
	case uint64:
		if x > math.MaxInt64 {
			return record.Real(float64(x))
		}

		return record.Integer(int64(x))
	case uint32:
		return record.Integer(int64(x))
	case uint:
		if uint64(x) > math.MaxInt64 {
			return record.Real(float64(x))
		}

		return record.Integer(int64(x))
	case float64:
		return record.Real(x)
	case float32:
		return record.Real(float64(x))
	default:
		return record.Absent()
	}
}
