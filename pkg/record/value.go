package record

import (
	"cmp"
	"math"
	"strconv"
)

// Kind identifies the variant held by a [Value].
type Kind uint8

const (
	// KindAbsent is the zero Kind. The field carried no value.
	KindAbsent Kind = iota
	KindString
	KindInteger
	KindReal
	// KindUnset marks a derived attribute that no rule assigned.
	KindUnset
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindUnset:
		return "unset"
	}

	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a typed field value. The zero Value is absent.
type Value struct {
	s    string
	f    float64
	i    int64
	kind Kind
}

// String returns a categorical [Value].
func String(s string) Value { return Value{kind: KindString, s: s} }

// Integer returns an integer [Value].
func Integer(i int64) Value { return Value{kind: KindInteger, i: i} }

// Real returns a real [Value].
func Real(f float64) Value { return Value{kind: KindReal, f: f} }

// Absent returns the absent [Value].
func Absent() Value { return Value{} }

// Unset returns the no-classification marker. It is never equal to any
// label and predicates treat it the same as an absent value.
func Unset() Value { return Value{kind: KindUnset} }

func (v Value) Kind() Kind { return v.kind }

// Present reports whether v holds data a predicate can test.
func (v Value) Present() bool {
	return v.kind == KindString || v.kind == KindInteger || v.kind == KindReal
}

func (v Value) IsUnset() bool { return v.kind == KindUnset }

// Str returns the categorical value.
func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

// Int returns the integer value.
func (v Value) Int() (int64, bool) {
	return v.i, v.kind == KindInteger
}

// Float returns the numeric value of an integer or real.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), true
	case KindReal:
		return v.f, true
	default:
		return 0, false
	}
}

// Equal reports exact equality. Strings compare case-sensitively, and
// values of different kinds are never equal, except that integer and real
// compare by numeric value.
func (v Value) Equal(o Value) bool {
	switch {
	case v.kind == KindString && o.kind == KindString:
		return v.s == o.s
	case v.kind == KindInteger && o.kind == KindInteger:
		return v.i == o.i
	case v.isNumber() && o.isNumber():
		a, _ := v.Float()
		b, _ := o.Float()

		return a == b
	default:
		return v.kind == o.kind && !v.Present()
	}
}

// Compare orders values for catalog output: numbers numerically, strings by
// byte order, and mixed kinds by [Kind].
func Compare(a, b Value) int {
	if a.isNumber() && b.isNumber() {
		if a.kind == KindInteger && b.kind == KindInteger {
			return cmp.Compare(a.i, b.i)
		}

		x, _ := a.Float()
		y, _ := b.Float()

		return cmp.Compare(x, y)
	}
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}

	return cmp.Compare(a.s, b.s)
}

// Any returns v as a plain Go value: string, int64, float64 or nil.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInteger:
		return v.i
	case KindReal:
		return v.f
	default:
		return nil
	}
}

// String renders v for tabular output. Absent and unset render as the
// empty string; writers substitute their own marker for unset.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		if v.f == math.Trunc(v.f) && math.Abs(v.f) < 1e15 {
			return strconv.FormatFloat(v.f, 'f', 1, 64)
		}

		return strconv.FormatFloat(v.f, 'f', -1, 64)
	default:
		return ""
	}
}

func (v Value) isNumber() bool {
	return v.kind == KindInteger || v.kind == KindReal
}
