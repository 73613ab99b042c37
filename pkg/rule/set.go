package rule

import (
	"fmt"
	"slices"

	"github.com/macropower/cablecat/pkg/predicate"
	"github.com/macropower/cablecat/pkg/record"
)

// Set is an ordered sequence of rules producing one derived attribute.
type Set struct {
	sorted []*Rule

	// Attribute is the name of the attribute this set writes.
	Attribute string `json:"attribute" jsonschema:"title=Attribute"`
	// Description is free text shown in listings.
	Description string `json:"description,omitempty" jsonschema:"title=Description"`
	// Default is the label for records that no rule matched. When nil,
	// such records receive the unset marker.
	Default *string `json:"default,omitempty" jsonschema:"title=Default Label"`
	// Rules are the set's rules. Their order keys decide evaluation order.
	Rules []*Rule `json:"rules" jsonschema:"title=Rules"`
}

// NewSet creates a new [Set] and compiles it against scope.
func NewSet(attribute string, def *string, scope *predicate.Scope, rules ...*Rule) (*Set, error) {
	s := &Set{Attribute: attribute, Default: def, Rules: rules}

	err := s.Compile(scope)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// MustNewSet creates a new [Set] and panics on error.
func MustNewSet(attribute string, def *string, scope *predicate.Scope, rules ...*Rule) *Set {
	s, err := NewSet(attribute, def, scope, rules...)
	if err != nil {
		panic(err)
	}

	return s
}

// Compile validates every rule, binds their predicates to scope, and fixes
// the evaluation order. Nothing is evaluated until every rule compiles.
func (s *Set) Compile(scope *predicate.Scope) error {
	if s.Default != nil && *s.Default == "" {
		return &Error{Err: ErrInvalidDefault, Path: []string{"default"}, Rule: -1}
	}

	seen := make(map[int]int, len(s.Rules))
	sorted := make([]*Rule, 0, len(s.Rules))

	for i, r := range s.Rules {
		if r == nil {
			return &Error{Err: ErrMissingPredicate, Rule: i}
		}

		r.position = i + 1

		err := r.Compile(scope)
		if err != nil {
			return atRule(err, i)
		}

		order := r.EffectiveOrder()
		if prev, ok := seen[order]; ok {
			return &Error{
				Err:  fmt.Errorf("%w %d, also used by rules[%d]", ErrDuplicateOrder, order, prev),
				Path: []string{"order"},
				Rule: i,
			}
		}

		seen[order] = i
		sorted = append(sorted, r)
	}

	slices.SortStableFunc(sorted, func(a, b *Rule) int {
		return a.EffectiveOrder() - b.EffectiveOrder()
	})

	s.sorted = sorted

	return nil
}

// Compiled reports whether [Set.Compile] succeeded.
func (s *Set) Compiled() bool {
	return s.sorted != nil
}

// Apply returns the label of the highest-ordered matching rule, the
// default when no rule matched, or [record.Unset].
func (s *Set) Apply(r record.Record) record.Value {
	result := record.Unset()
	for _, rl := range s.sorted {
		if rl.Matches(r) {
			result = record.String(rl.Label)
		}
	}
	if result.IsUnset() && s.Default != nil {
		result = record.String(*s.Default)
	}

	return result
}

// Trace describes how a [Set] labelled one record.
type Trace struct {
	// Label is the value [Set.Apply] returns.
	Label record.Value
	// Winner is the rule that assigned Label, or nil.
	Winner *Rule
	// Matched lists every matching rule in evaluation order. All but the
	// last were overridden.
	Matched []*Rule
	// Defaulted is true when Label came from the default.
	Defaulted bool
}

// Explain applies s to r and reports every matching rule.
func (s *Set) Explain(r record.Record) Trace {
	var t Trace
	for _, rl := range s.sorted {
		if rl.Matches(r) {
			t.Matched = append(t.Matched, rl)
		}
	}

	switch {
	case len(t.Matched) > 0:
		t.Winner = t.Matched[len(t.Matched)-1]
		t.Label = record.String(t.Winner.Label)
	case s.Default != nil:
		t.Label = record.String(*s.Default)
		t.Defaulted = true
	default:
		t.Label = record.Unset()
	}

	return t
}

// Ordered returns the compiled rules in evaluation order.
func (s *Set) Ordered() []*Rule {
	return slices.Clone(s.sorted)
}

// Labels returns the distinct labels the set can produce, including the
// default, sorted.
func (s *Set) Labels() []string {
	labels := make([]string, 0, len(s.Rules)+1)
	for _, r := range s.Rules {
		labels = append(labels, r.Label)
	}
	if s.Default != nil {
		labels = append(labels, *s.Default)
	}

	slices.Sort(labels)

	return slices.Compact(labels)
}

// Fields returns the sorted fields read by the set's predicates.
func (s *Set) Fields() []string {
	var fields []string
	for _, r := range s.sorted {
		if p := r.Predicate(); p != nil {
			fields = append(fields, p.Fields()...)
		}
	}

	slices.Sort(fields)

	return slices.Compact(fields)
}

// Shadowed returns pairs of rules where the earlier rule can never win
// because a later rule has the same predicate.
func (s *Set) Shadowed() [][2]*Rule {
	var out [][2]*Rule

	last := make(map[string]int, len(s.sorted))
	for i, r := range s.sorted {
		last[r.Predicate().String()] = i
	}
	for i, r := range s.sorted {
		if j := last[r.Predicate().String()]; j != i {
			out = append(out, [2]*Rule{r, s.sorted[j]})
		}
	}

	return out
}

func atRule(err error, i int) error {
	if re, ok := err.(*Error); ok { //nolint:errorlint // Errors from Rule.Compile are never wrapped.
		return &Error{Err: re.Err, Path: re.Path, Rule: i}
	}

	return &Error{Err: err, Rule: i}
}
