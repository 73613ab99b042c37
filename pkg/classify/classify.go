// Package classify applies ordered passes of rule sets to records.
//
// Each pass writes one derived attribute. Later passes see the attributes
// written by earlier ones through an accumulator record, and the input
// fields are never modified. Classification of one record is a pure
// function of the record and the classifier, so records may be processed
// concurrently and in any order.
package classify

import (
	"errors"
	"fmt"
	"slices"

	"github.com/macropower/cablecat/pkg/record"
	"github.com/macropower/cablecat/pkg/rule"
)

var (
	ErrDuplicateAttribute = errors.New("duplicate attribute")
	ErrAttributeCollision = errors.New("attribute collides with a schema field")
	ErrUncompiledPass     = errors.New("pass is not compiled")
)

// Classifier runs its passes in order against each record.
type Classifier struct {
	schema  *record.Schema
	passes  []*rule.Set
	catalog []string
}

// New creates a new [Classifier]. Every pass must already be compiled
// against a scope containing the schema and the attributes of the passes
// before it.
func New(schema *record.Schema, passes ...*rule.Set) (*Classifier, error) {
	seen := make(map[string]bool, len(passes))
	for i, p := range passes {
		if p == nil || !p.Compiled() {
			return nil, fmt.Errorf("passes[%d]: %w", i, ErrUncompiledPass)
		}
		if schema != nil {
			if _, ok := schema.Lookup(p.Attribute); ok {
				return nil, fmt.Errorf("passes[%d]: %w: %q", i, ErrAttributeCollision, p.Attribute)
			}
		}
		if seen[p.Attribute] {
			return nil, fmt.Errorf("passes[%d]: %w: %q", i, ErrDuplicateAttribute, p.Attribute)
		}

		seen[p.Attribute] = true
	}

	return &Classifier{schema: schema, passes: slices.Clone(passes)}, nil
}

// Schema returns the field schema the passes were compiled against.
func (c *Classifier) Schema() *record.Schema {
	return c.schema
}

// Passes returns the passes in execution order.
func (c *Classifier) Passes() []*rule.Set {
	return slices.Clone(c.passes)
}

// Attributes returns the derived attribute names in pass order.
func (c *Classifier) Attributes() []string {
	attrs := make([]string, 0, len(c.passes))
	for _, p := range c.passes {
		attrs = append(attrs, p.Attribute)
	}

	return attrs
}

// WithCatalog returns a copy of c whose [Classifier.CatalogFields] are
// fields.
func (c *Classifier) WithCatalog(fields ...string) *Classifier {
	out := *c
	out.catalog = slices.Clone(fields)

	return &out
}

// CatalogFields returns the fields analysts review in value catalogs: the
// list given to [Classifier.WithCatalog], or every schema field a pass
// reads, in schema order.
func (c *Classifier) CatalogFields() []string {
	if len(c.catalog) > 0 {
		return slices.Clone(c.catalog)
	}
	if c.schema == nil {
		return nil
	}

	read := map[string]bool{}
	for _, p := range c.passes {
		for _, f := range p.Fields() {
			read[f] = true
		}
	}

	var fields []string
	for _, name := range c.schema.Names() {
		if read[name] {
			fields = append(fields, name)
		}
	}

	return fields
}

// Result is a classified record.
type Result struct {
	// Record is the input record with one attribute per pass.
	Record record.Record
	// Labels holds each pass's result in pass order. Unset entries are
	// classification gaps.
	Labels []record.Value
}

// Gaps returns the attributes left unset.
func (r Result) Gaps(c *Classifier) []string {
	var gaps []string
	for i, l := range r.Labels {
		if l.IsUnset() {
			gaps = append(gaps, c.passes[i].Attribute)
		}
	}

	return gaps
}

// Classify runs every pass against r.
func (c *Classifier) Classify(r record.Record) Result {
	acc := r
	labels := make([]record.Value, 0, len(c.passes))

	for _, p := range c.passes {
		label := p.Apply(acc)
		acc = acc.With(p.Attribute, label)
		labels = append(labels, label)
	}

	return Result{Record: acc, Labels: labels}
}

// Step is one pass of an [Explanation].
type Step struct {
	Attribute string
	rule.Trace
}

// Explanation is a [Result] with the rule trace of every pass.
type Explanation struct {
	Result
	Steps []Step
}

// Explain runs every pass against r and records which rules matched.
func (c *Classifier) Explain(r record.Record) Explanation {
	acc := r
	ex := Explanation{
		Steps: make([]Step, 0, len(c.passes)),
	}

	for _, p := range c.passes {
		tr := p.Explain(acc)
		acc = acc.With(p.Attribute, tr.Label)
		ex.Labels = append(ex.Labels, tr.Label)
		ex.Steps = append(ex.Steps, Step{Attribute: p.Attribute, Trace: tr})
	}

	ex.Record = acc

	return ex
}
