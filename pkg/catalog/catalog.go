// Package catalog lists the distinct values observed per field, so analysts
// can check a rulebook's coverage against real data.
package catalog

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/macropower/cablecat/pkg/record"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrNoFields     = errors.New("no fields to catalog")
)

// ValueCount is a distinct value and the number of records holding it.
type ValueCount struct {
	Value record.Value
	Count int
}

// Entry is the catalog of one field.
type Entry struct {
	Field string
	// Values are the distinct values in ascending order.
	Values []ValueCount
	// Absent counts records without a value.
	Absent int
	// Unset counts records whose derived attribute was left unset.
	Unset int
}

// Distinct returns the distinct values without counts.
func (e Entry) Distinct() []record.Value {
	out := make([]record.Value, 0, len(e.Values))
	for _, vc := range e.Values {
		out = append(out, vc.Value)
	}

	return out
}

// Cataloger builds catalogs for a fixed set of known fields.
// It is not safe for concurrent use when a collation is configured.
type Cataloger struct {
	known    map[string]bool
	collator *collate.Collator
}

// Option configures a [Cataloger].
type Option func(c *Cataloger) error

// WithCollation sorts categorical values using the collation rules of the
// given BCP 47 language tag, e.g. "th".
func WithCollation(tag string) Option {
	return func(c *Cataloger) error {
		if tag == "" {
			return nil
		}

		lang, err := language.Parse(tag)
		if err != nil {
			return fmt.Errorf("collation %q: %w", tag, err)
		}

		c.collator = collate.New(lang)

		return nil
	}
}

// New creates a new [Cataloger] that accepts the given field names. With
// no names, any field is accepted.
func New(known []string, opts ...Option) (*Cataloger, error) {
	c := &Cataloger{}
	if len(known) > 0 {
		c.known = make(map[string]bool, len(known))
		for _, k := range known {
			c.known[k] = true
		}
	}

	for _, opt := range opts {
		err := opt(c)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Catalog returns one [Entry] per field, in the order requested. Fields
// must be known before any record is read.
func (c *Cataloger) Catalog(records []record.Record, fields ...string) ([]Entry, error) {
	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	for _, f := range fields {
		if c.known != nil && !c.known[f] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
	}

	entries := make([]Entry, len(fields))
	counts := make([]map[record.Value]int, len(fields))
	for i, f := range fields {
		entries[i].Field = f
		counts[i] = map[record.Value]int{}
	}

	for _, r := range records {
		for i, f := range fields {
			v := r.Get(f)

			switch {
			case v.IsUnset():
				entries[i].Unset++
			case !v.Present():
				entries[i].Absent++
			default:
				counts[i][v]++
			}
		}
	}

	for i := range entries {
		values := make([]ValueCount, 0, len(counts[i]))
		for v, n := range counts[i] {
			values = append(values, ValueCount{Value: v, Count: n})
		}

		slices.SortFunc(values, func(a, b ValueCount) int {
			return c.compare(a.Value, b.Value)
		})

		entries[i].Values = values
	}

	return entries, nil
}

func (c *Cataloger) compare(a, b record.Value) int {
	if c.collator != nil {
		as, aok := a.Str()
		bs, bok := b.Str()
		if aok && bok {
			if n := c.collator.CompareString(as, bs); n != 0 {
				return n
			}
		}
	}

	return record.Compare(a, b)
}
