// Package rule implements ordered predicate-to-label rules and the rule
// sets that apply them with last-match-wins semantics.
package rule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/macropower/cablecat/pkg/predicate"
	"github.com/macropower/cablecat/pkg/record"
)

var (
	ErrMissingLabel     = errors.New("label is required")
	ErrNegativeOrder    = errors.New("order must not be negative")
	ErrDuplicateOrder   = errors.New("duplicate order")
	ErrMissingPredicate = errors.New("predicate is required")
	ErrInvalidDefault   = errors.New("default label must not be empty")
	ErrNotCompiled      = errors.New("rule set is not compiled")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Error is a rule configuration error. Rule is the zero-based index of the
// rule in its set, or -1 for set-level errors. Path locates the offending
// key relative to the rule, using the configuration keys.
type Error struct {
	Err  error
	Path []string
	Rule int
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Rule >= 0 {
		sb.WriteString("rules[" + strconv.Itoa(e.Rule) + "]")
	}
	if len(e.Path) > 0 {
		if sb.Len() > 0 {
			sb.WriteString(".")
		}

		sb.WriteString(strings.Join(e.Path, "."))
	}
	if sb.Len() > 0 {
		sb.WriteString(": ")
	}

	sb.WriteString(e.Err.Error())

	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Rule assigns Label to records matching its predicate.
//
// Rules are evaluated in ascending Order, and every matching rule
// overwrites the label assigned by earlier ones, so the matching rule with
// the highest Order wins. Author rules from general to specific.
type Rule struct {
	pred     predicate.Predicate // Unbound predicate for rules built in code.
	bound    predicate.Predicate // Predicate bound to the set's scope.
	position int

	// ID is an optional display name, e.g. a category code like "2.2.1".
	ID string `json:"id,omitempty" jsonschema:"title=ID"`
	// Order is the rule's priority. Defaults to its 1-based position.
	Order *int `json:"order,omitempty" jsonschema:"title=Order,minimum=0" validate:"omitempty,gte=0"`
	// Label is the value assigned when the rule matches.
	Label string `json:"label" jsonschema:"title=Label" validate:"required"`
	// When is the predicate that selects records.
	When *predicate.Spec `json:"when,omitempty" jsonschema:"title=Predicate"`
	// Review records an open question for analysts about this rule.
	Review string `json:"review,omitempty" jsonschema:"title=Review Note"`
}

// New creates a new [Rule] with an explicit order.
func New(order int, label string, p predicate.Predicate) *Rule {
	return &Rule{Order: &order, Label: label, pred: p}
}

// FromSpec creates a new [Rule] from a predicate [predicate.Spec].
func FromSpec(order int, label string, when *predicate.Spec) *Rule {
	return &Rule{Order: &order, Label: label, When: when}
}

// EffectiveOrder returns Order, or the rule's position when Order is nil.
func (r *Rule) EffectiveOrder() int {
	if r.Order != nil {
		return *r.Order
	}

	return r.position
}

// Compile validates r and binds its predicate to scope.
func (r *Rule) Compile(scope *predicate.Scope) error {
	err := validate.Struct(r)
	if err != nil {
		return translateValidation(err)
	}

	var p predicate.Predicate

	switch {
	case r.When != nil:
		p, err = r.When.Predicate()
		if err != nil {
			return withPredicatePath(err)
		}
	case r.pred != nil:
		p = r.pred
	default:
		return &Error{Err: ErrMissingPredicate, Path: []string{"when"}, Rule: -1}
	}

	bound, err := predicate.Bind(p, scope)
	if err != nil {
		return withPredicatePath(err)
	}

	r.bound = bound

	return nil
}

// Predicate returns the bound predicate, or the unbound one before
// [Rule.Compile].
//
//nolint:ireturn // Predicate trees are heterogeneous.
func (r *Rule) Predicate() predicate.Predicate {
	if r.bound != nil {
		return r.bound
	}

	return r.pred
}

// Matches reports whether the compiled predicate is true for rec.
func (r *Rule) Matches(rec record.Record) bool {
	if r.bound == nil {
		return false
	}

	return predicate.Matches(r.bound, rec)
}

// Name returns the ID, or the label when no ID is set.
func (r *Rule) Name() string {
	if r.ID != "" {
		return r.ID
	}

	return r.Label
}

func (r *Rule) String() string {
	p := r.Predicate()
	if p == nil {
		return fmt.Sprintf("%d: -> %s", r.EffectiveOrder(), r.Label)
	}

	return fmt.Sprintf("%d: %s -> %s", r.EffectiveOrder(), p, r.Label)
}

func withPredicatePath(err error) error {
	var pe *predicate.Error
	if errors.As(err, &pe) {
		return &Error{Err: pe.Err, Path: append([]string{"when"}, pe.Path...), Rule: -1}
	}

	return &Error{Err: err, Path: []string{"when"}, Rule: -1}
}

func translateValidation(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return &Error{Err: err, Rule: -1}
	}

	switch ves[0].StructField() {
	case "Label":
		return &Error{Err: ErrMissingLabel, Path: []string{"label"}, Rule: -1}
	case "Order":
		return &Error{Err: ErrNegativeOrder, Path: []string{"order"}, Rule: -1}
	}

	return &Error{Err: ves[0], Rule: -1}
}
