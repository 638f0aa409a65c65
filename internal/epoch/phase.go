// Package epoch implements the pure epoch lifecycle state machine.
// It owns the fixed 12-phase graph, gated edges, the review vote ledger,
// and the append-only transition history. Everything here is deterministic:
// no I/O, no clock reads — callers supply timestamps.
package epoch

// Phase represents one stage in the epoch lifecycle graph.
type Phase string

const (
	// PhaseDraft is the initial phase of every epoch.
	PhaseDraft Phase = "draft"

	// PhaseScoped means the epoch's boundaries have been agreed.
	PhaseScoped Phase = "scoped"

	// PhasePlanned means an approach has been laid out.
	PhasePlanned Phase = "planned"

	// PhaseSliced means the work has been cut into implementation slices.
	PhaseSliced Phase = "sliced"

	// PhaseImplementing is the slice fan-out phase.
	PhaseImplementing Phase = "implementing"

	// PhaseIntegrating merges completed slices together.
	PhaseIntegrating Phase = "integrating"

	// PhaseTesting verifies the integrated result.
	PhaseTesting Phase = "testing"

	// PhaseReview is the consensus review phase; its forward edge is gated
	// on three-axis accept consensus.
	PhaseReview Phase = "review"

	// PhaseRevising is the rework loop entered from review.
	PhaseRevising Phase = "revising"

	// PhaseFinalizing prepares the epoch for shipping.
	PhaseFinalizing Phase = "finalizing"

	// PhaseShipped means the work has landed.
	PhaseShipped Phase = "shipped"

	// PhaseRetrospective captures learnings before completion.
	PhaseRetrospective Phase = "retrospective"

	// PhaseComplete is the terminal phase. No edges leave it.
	PhaseComplete Phase = "complete"
)

// AllPhases returns the 12 lifecycle phases in their canonical order,
// excluding the terminal PhaseComplete.
func AllPhases() []Phase {
	return []Phase{
		PhaseDraft, PhaseScoped, PhasePlanned, PhaseSliced,
		PhaseImplementing, PhaseIntegrating, PhaseTesting, PhaseReview,
		PhaseRevising, PhaseFinalizing, PhaseShipped, PhaseRetrospective,
	}
}

// Valid reports whether p is a declared lifecycle phase (terminal included).
func (p Phase) Valid() bool {
	if p == PhaseComplete {
		return true
	}
	for _, known := range AllPhases() {
		if p == known {
			return true
		}
	}
	return false
}

// Terminal reports whether p is the terminal phase.
func (p Phase) Terminal() bool {
	return p == PhaseComplete
}

// GateReviewConsensus names the gate on the review → finalizing edge.
const GateReviewConsensus = "review-consensus"

// edge is one statically declared transition in the phase graph.
type edge struct {
	to   Phase
	gate string // empty when ungated
}

// phaseGraph is the static transition graph shared by all epochs. Only
// votes and history are per-epoch state; the graph never changes.
var phaseGraph = map[Phase][]edge{
	PhaseDraft:        {{to: PhaseScoped}},
	PhaseScoped:       {{to: PhasePlanned}},
	PhasePlanned:      {{to: PhaseSliced}},
	PhaseSliced:       {{to: PhaseImplementing}},
	PhaseImplementing: {{to: PhaseIntegrating}},
	PhaseIntegrating:  {{to: PhaseTesting}},
	PhaseTesting:      {{to: PhaseReview}},
	PhaseReview: {
		{to: PhaseFinalizing, gate: GateReviewConsensus},
		{to: PhaseRevising},
	},
	PhaseRevising: {
		{to: PhaseImplementing},
		{to: PhaseTesting},
	},
	PhaseFinalizing:    {{to: PhaseShipped}},
	PhaseShipped:       {{to: PhaseRetrospective}},
	PhaseRetrospective: {{to: PhaseComplete}},
	PhaseComplete:      {},
}

// Axis is one of the three fixed review dimensions.
type Axis string

const (
	AxisCorrectness Axis = "CORRECTNESS"
	AxisTestQuality Axis = "TEST_QUALITY"
	AxisElegance    Axis = "ELEGANCE"
)

// Axes returns the three review axes in canonical order.
func Axes() []Axis {
	return []Axis{AxisCorrectness, AxisTestQuality, AxisElegance}
}

// Valid reports whether a is a declared review axis.
func (a Axis) Valid() bool {
	for _, known := range Axes() {
		if a == known {
			return true
		}
	}
	return false
}

// Verdict is a reviewer's judgment on one axis.
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictRevise Verdict = "revise"
)

// Status is the coarse externally visible state of an epoch.
type Status string

const (
	// StatusRunning means the epoch is progressing normally.
	StatusRunning Status = "running"

	// StatusBlocked means a slice fan-out failed and the epoch is waiting
	// on an external decision.
	StatusBlocked Status = "blocked"

	// StatusComplete means the terminal phase has been reached.
	StatusComplete Status = "complete"
)
