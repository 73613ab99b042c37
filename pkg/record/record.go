// Package record defines typed field values, the field schema, and the
// immutable records that flow through classification.
package record

import (
	"maps"
	"slices"
)

// Attr is a derived attribute written onto a [Record].
type Attr struct {
	Name  string
	Value Value
}

// Record is an immutable mapping from field name to [Value]. Derived
// attributes are layered over the input fields and never replace them.
//
// The zero Record is empty and ready to use.
type Record struct {
	fields  map[string]Value
	derived []Attr
}

// New creates a new [Record]. The map is copied.
func New(fields map[string]Value) Record {
	return Record{fields: maps.Clone(fields)}
}

// Get returns the value of the named field or attribute, or an absent
// value when there is none.
func (r Record) Get(name string) Value {
	v, _ := r.Lookup(name)

	return v
}

// Lookup returns the value of the named field or attribute.
func (r Record) Lookup(name string) (Value, bool) {
	for i := len(r.derived) - 1; i >= 0; i-- {
		if r.derived[i].Name == name {
			return r.derived[i].Value, true
		}
	}

	v, ok := r.fields[name]

	return v, ok
}

// With returns a copy of r with the named attribute set to v.
func (r Record) With(name string, v Value) Record {
	derived := make([]Attr, len(r.derived), len(r.derived)+1)
	copy(derived, r.derived)

	return Record{
		fields:  r.fields,
		derived: append(derived, Attr{Name: name, Value: v}),
	}
}

// Derived returns the attributes written onto r, in write order.
func (r Record) Derived() []Attr {
	return slices.Clone(r.derived)
}

// Names returns the sorted names of all input fields.
func (r Record) Names() []string {
	return slices.Sorted(maps.Keys(r.fields))
}

// Map returns the input fields and derived attributes as a plain map.
// Unset attributes map to unsetMarker.
func (r Record) Map(unsetMarker string) map[string]any {
	out := make(map[string]any, len(r.fields)+len(r.derived))
	for k, v := range r.fields {
		out[k] = v.Any()
	}
	for _, a := range r.derived {
		if a.Value.IsUnset() {
			out[a.Name] = unsetMarker
		} else {
			out[a.Name] = a.Value.Any()
		}
	}

	return out
}
