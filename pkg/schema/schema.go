// Package schema generates JSON schemas for configuration types.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Generator reflects Go types into JSON schemas.
// Uses [github.com/invopop/jsonschema].
type Generator struct {
	r *jsonschema.Reflector
}

// GeneratorOpt configures a [Generator].
type GeneratorOpt func(g *Generator) error

// WithGoComments uses the doc comments of the given packages as schema
// descriptions. The source must be available under base at generation
// time, so this is only useful in generators run from the repository.
func WithGoComments(base string, paths ...string) GeneratorOpt {
	return func(g *Generator) error {
		for _, p := range paths {
			err := g.r.AddGoComments(base, p)
			if err != nil {
				return fmt.Errorf("add go comments for %s: %w", p, err)
			}
		}

		return nil
	}
}

// NewGenerator creates a new [Generator].
func NewGenerator(opts ...GeneratorOpt) (*Generator, error) {
	g := &Generator{
		r: &jsonschema.Reflector{
			Anonymous:      true,
			ExpandedStruct: true,
		},
	}
	for _, opt := range opts {
		err := opt(g)
		if err != nil {
			return nil, err
		}
	}

	return g, nil
}

// Generate returns the indented JSON schema for the type of v.
func (g *Generator) Generate(v any) ([]byte, error) {
	js := g.r.Reflect(v)

	data, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return data, nil
}

// MustGenerate generates the schema for v with default settings and
// panics on error.
func MustGenerate(v any) []byte {
	g, err := NewGenerator()
	if err != nil {
		panic(err)
	}

	data, err := g.Generate(v)
	if err != nil {
		panic(err)
	}

	return data
}
