package constraint

import (
	"fmt"

	"github.com/fyrsmithlabs/epochd/internal/epoch"
)

// DefaultRules returns the built-in rule set: state-level preconditions
// plus transition-specific rules.
func DefaultRules() []Rule {
	return []Rule{
		NewIdentityRule(),
		NewSliceCompletionRule(),
		NewRevisePathRule(),
	}
}

// IdentityRule is a state-level precondition: an epoch must carry a full
// identity before it may move at all.
type IdentityRule struct{}

// NewIdentityRule creates a new identity precondition rule.
func NewIdentityRule() *IdentityRule {
	return &IdentityRule{}
}

// Name returns the rule identifier.
func (r *IdentityRule) Name() string {
	return "identity"
}

// Check validates the epoch identity fields.
func (r *IdentityRule) Check(state epoch.Snapshot, target epoch.Phase) []Violation {
	var violations []Violation
	if state.EpochID == "" {
		violations = append(violations, Violation{Rule: r.Name(), Description: "epoch id must be set"})
	}
	if state.Role == "" {
		violations = append(violations, Violation{Rule: r.Name(), Description: "epoch role must be set"})
	}
	if state.Domain == "" {
		violations = append(violations, Violation{Rule: r.Name(), Description: "epoch domain must be set"})
	}
	return violations
}

// SliceCompletionRule is transition-specific: leaving the implementing phase
// for integration requires every slice that reported progress to have
// reported completion, and the epoch must not be blocked by a failed
// fan-out.
type SliceCompletionRule struct{}

// NewSliceCompletionRule creates a new slice completion rule.
func NewSliceCompletionRule() *SliceCompletionRule {
	return &SliceCompletionRule{}
}

// Name returns the rule identifier.
func (r *SliceCompletionRule) Name() string {
	return "slice-completion"
}

// Check validates slice outcomes on the implementing -> integrating edge.
func (r *SliceCompletionRule) Check(state epoch.Snapshot, target epoch.Phase) []Violation {
	if state.Phase != epoch.PhaseImplementing || target != epoch.PhaseIntegrating {
		return nil
	}

	var violations []Violation
	if state.Status == epoch.StatusBlocked {
		violations = append(violations, Violation{
			Rule:        r.Name(),
			Description: "epoch is blocked by a failed slice fan-out",
		})
	}

	done := map[string]bool{}
	seen := map[string]bool{}
	var order []string
	for _, p := range state.Progress {
		if !seen[p.SliceID] {
			seen[p.SliceID] = true
			order = append(order, p.SliceID)
		}
		if p.Done {
			done[p.SliceID] = true
		}
	}
	for _, id := range order {
		if !done[id] {
			violations = append(violations, Violation{
				Rule:        r.Name(),
				Description: fmt.Sprintf("slice %s has not reported completion", id),
			})
		}
	}
	return violations
}

// RevisePathRule is transition-specific: the review -> revising back edge
// may only be taken when at least one revise vote is on record. Going back
// to rework without anyone asking for rework is a request error.
type RevisePathRule struct{}

// NewRevisePathRule creates a new revise path rule.
func NewRevisePathRule() *RevisePathRule {
	return &RevisePathRule{}
}

// Name returns the rule identifier.
func (r *RevisePathRule) Name() string {
	return "revise-path"
}

// Check validates the review -> revising edge.
func (r *RevisePathRule) Check(state epoch.Snapshot, target epoch.Phase) []Violation {
	if state.Phase != epoch.PhaseReview || target != epoch.PhaseRevising {
		return nil
	}
	for _, v := range state.Votes {
		if v.Verdict == epoch.VerdictRevise {
			return nil
		}
	}
	return []Violation{{
		Rule:        r.Name(),
		Description: "no revise vote on record; the revising edge requires one",
	}}
}
