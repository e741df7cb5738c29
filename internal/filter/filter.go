// Package filter declares the output-gating contract spec.md leaves
// external ("we specify only that one exists and returns a boolean over
// a field set"), plus one concrete evaluator: a conjunction of named
// field predicates, which covers the common "only successes for this
// classification" case without a full expression-language parser.
package filter

import "github.com/netreach/gozmap/internal/fieldset"

// Expr evaluates to true or false against one field set. The receive
// engine drops a response when Eval returns false (spec.md's output
// gate, step 10).
type Expr interface {
	Eval(fs *fieldset.Set) bool
}

// Always is an Expr that never filters anything out.
type Always struct{}

func (Always) Eval(*fieldset.Set) bool { return true }

// Predicate compares one named field against a fixed value.
type Predicate struct {
	Field string
	Want  any
}

func (p Predicate) Eval(fs *fieldset.Set) bool {
	schema := fs.Schema()
	idx := schema.IndexOf(p.Field)
	if idx < 0 {
		return false
	}
	return fs.Value(idx) == p.Want
}

// All is an Expr requiring every one of its predicates to hold.
type All []Expr

func (a All) Eval(fs *fieldset.Set) bool {
	for _, e := range a {
		if !e.Eval(fs) {
			return false
		}
	}
	return true
}

// Any is an Expr requiring at least one of its predicates to hold. An
// empty Any evaluates to false.
type Any []Expr

func (a Any) Eval(fs *fieldset.Set) bool {
	for _, e := range a {
		if e.Eval(fs) {
			return true
		}
	}
	return false
}
