// Package rulebook defines the rulebook document: a field schema, the
// ordered classification passes, and the fields analysts review in
// catalogs. A rulebook is data; revising one never requires rebuilding the
// engine.
package rulebook

import (
	"errors"
	"fmt"
	"slices"

	"github.com/macropower/cablecat/pkg/classify"
	"github.com/macropower/cablecat/pkg/predicate"
	"github.com/macropower/cablecat/pkg/record"
	"github.com/macropower/cablecat/pkg/rule"
	"github.com/macropower/cablecat/pkg/yaml"
)

var (
	ErrMissingSchema      = errors.New("schema is required")
	ErrMissingPasses      = errors.New("at least one pass is required")
	ErrMissingAttribute   = errors.New("attribute is required")
	ErrDuplicateAttribute = errors.New("duplicate attribute")
	ErrAttributeCollision = errors.New("attribute collides with a schema field")
	ErrUnknownField       = errors.New("unknown field")
)

// Rulebook is the classification configuration.
type Rulebook struct {
	// Schema declares the input fields.
	Schema *record.Schema `json:"schema" jsonschema:"title=Schema"`
	// Passes run in order. Each pass may read the attributes written by the
	// passes before it.
	Passes []*rule.Set `json:"passes" jsonschema:"title=Passes"`
	// Catalog lists the fields to include in value catalogs. Defaults to
	// every field the passes read.
	Catalog []string `json:"catalog,omitempty" jsonschema:"title=Catalog Fields"`
}

// Compile validates the rulebook and returns a ready [classify.Classifier].
// Errors are [*yaml.Error] values located at the offending key.
func (rb *Rulebook) Compile() (*classify.Classifier, error) {
	pb := yaml.NewPathBuilder().Root()

	if rb.Schema == nil {
		return nil, yaml.NewError(ErrMissingSchema, yaml.WithPath(pb.Child("schema").Build()))
	}

	err := rb.Schema.Build()
	if err != nil {
		return nil, yaml.NewError(err, yaml.WithPath(pb.Child("schema").Build()))
	}
	if len(rb.Passes) == 0 {
		return nil, yaml.NewError(ErrMissingPasses, yaml.WithPath(pb.Child("passes").Build()))
	}

	scope := predicate.NewScope(rb.Schema)
	seen := make(map[string]bool, len(rb.Passes))

	for i, pass := range rb.Passes {
		passPath := yaml.NewPathBuilder().Root().Child("passes").Index(uint(i))

		if pass == nil || pass.Attribute == "" {
			return nil, yaml.NewError(ErrMissingAttribute, yaml.WithPath(passPath.Build()))
		}
		if _, ok := rb.Schema.Lookup(pass.Attribute); ok {
			return nil, yaml.NewError(
				fmt.Errorf("%w: %q", ErrAttributeCollision, pass.Attribute),
				yaml.WithPath(passPath.Child("attribute").Build()),
			)
		}
		if seen[pass.Attribute] {
			return nil, yaml.NewError(
				fmt.Errorf("%w: %q", ErrDuplicateAttribute, pass.Attribute),
				yaml.WithPath(passPath.Child("attribute").Build()),
			)
		}

		err := pass.Compile(scope)
		if err != nil {
			return nil, ruleError(err, i)
		}

		seen[pass.Attribute] = true
		scope = scope.With(pass.Attribute)
	}

	for i, f := range rb.Catalog {
		if _, ok := scope.Type(f); !ok {
			return nil, yaml.NewError(
				fmt.Errorf("%w: %q", ErrUnknownField, f),
				yaml.WithPath(yaml.NewPathBuilder().Root().Child("catalog").Index(uint(i)).Build()),
			)
		}
	}

	c, err := classify.New(rb.Schema, rb.Passes...)
	if err != nil {
		return nil, fmt.Errorf("create classifier: %w", err)
	}

	return c.WithCatalog(rb.Catalog...), nil
}

// CatalogFields returns the fields to catalog: the configured list, or every
// schema field read by a predicate, in schema order.
func (rb *Rulebook) CatalogFields() []string {
	if len(rb.Catalog) > 0 {
		return slices.Clone(rb.Catalog)
	}

	read := map[string]bool{}
	for _, p := range rb.Passes {
		for _, f := range p.Fields() {
			read[f] = true
		}
	}

	var fields []string
	if rb.Schema != nil {
		for _, f := range rb.Schema.Fields {
			if read[f.Name] {
				fields = append(fields, f.Name)
			}
		}
	}

	return fields
}

// Attributes returns the pass attributes in order.
func (rb *Rulebook) Attributes() []string {
	attrs := make([]string, 0, len(rb.Passes))
	for _, p := range rb.Passes {
		attrs = append(attrs, p.Attribute)
	}

	return attrs
}

// Finding is a lint result for one rule.
type Finding struct {
	Path    string
	Rule    *rule.Rule
	Message string
}

// Lint reports rules carrying review notes and rules that can never win
// because a later rule in the same pass has the same predicate. The
// rulebook must be compiled.
func (rb *Rulebook) Lint() []Finding {
	var findings []Finding

	for i, pass := range rb.Passes {
		index := make(map[*rule.Rule]int, len(pass.Rules))
		for j, r := range pass.Rules {
			index[r] = j
		}

		for j, r := range pass.Rules {
			if r.Review != "" {
				findings = append(findings, Finding{
					Path:    rulePath(i, j),
					Rule:    r,
					Message: "needs review: " + r.Review,
				})
			}
		}

		for _, pair := range pass.Shadowed() {
			findings = append(findings, Finding{
				Path: rulePath(i, index[pair[0]]),
				Rule: pair[0],
				Message: fmt.Sprintf("never wins: overridden by %s (order %d) with the same predicate",
					pair[1].Name(), pair[1].EffectiveOrder()),
			})
		}
	}

	return findings
}

func rulePath(pass, r int) string {
	return yaml.NewPathBuilder().Root().
		Child("passes").Index(uint(pass)).
		Child("rules").Index(uint(r)).
		Build().String()
}

func ruleError(err error, pass int) error {
	pb := yaml.NewPathBuilder().Root().Child("passes").Index(uint(pass))

	var re *rule.Error
	if !errors.As(err, &re) {
		return yaml.NewError(err, yaml.WithPath(pb.Build()))
	}
	if re.Rule >= 0 {
		pb = pb.Child("rules").Index(uint(re.Rule))
	}

	return yaml.NewError(re.Err, yaml.WithPath(yaml.AppendPath(pb, re.Path...).Build()))
}
