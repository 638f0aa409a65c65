// Package constraint evaluates configured rule sets against proposed phase
// transitions. Rules are pure predicates over an epoch snapshot and a target
// phase; the checker performs no I/O of its own.
package constraint

import (
	"github.com/fyrsmithlabs/epochd/internal/epoch"
)

// Violation describes one failed rule. Any violation blocks the attempted
// transition with the same non-fatal semantics as an unmet gate.
type Violation struct {
	Rule        string `json:"rule"`
	Description string `json:"description"`
}

// Rule validates one aspect of a proposed transition.
type Rule interface {
	// Name returns the rule identifier.
	Name() string

	// Check evaluates the rule against the proposed move, returning
	// violations if any.
	Check(state epoch.Snapshot, target epoch.Phase) []Violation
}

// Checker runs a configured rule set. The rule set is supplied by the
// caller; this package only ships defaults.
type Checker struct {
	rules []Rule
}

// NewChecker creates a checker over the given rules.
func NewChecker(rules ...Rule) *Checker {
	return &Checker{rules: rules}
}

// NewDefaultChecker creates a checker with the built-in rule set.
func NewDefaultChecker() *Checker {
	return NewChecker(DefaultRules()...)
}

// Check evaluates every rule against (state, target) and returns all
// violations. An empty result means the transition may be attempted.
func (c *Checker) Check(state epoch.Snapshot, target epoch.Phase) []Violation {
	var violations []Violation
	for _, r := range c.rules {
		violations = append(violations, r.Check(state, target)...)
	}
	return violations
}
