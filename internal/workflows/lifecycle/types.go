// Package lifecycle implements the durable epoch lifecycle orchestration:
// the signal-driven parent workflow owning one epoch state machine, the
// slice fan-out child workflow, and the review vote-collection child
// workflow, together with the activities forming the impure boundary.
package lifecycle

import (
	"github.com/fyrsmithlabs/epochd/internal/epoch"
)

// TaskQueue is the Temporal task queue for epoch lifecycle workers.
const TaskQueue = "epoch-lifecycle-queue"

// Signal names accepted by the lifecycle workflow. Signals are
// fire-and-forget; failures surface only through snapshots and history.
const (
	// SignalAdvance requests a phase transition.
	SignalAdvance = "advance-phase"

	// SignalVote submits one review vote.
	SignalVote = "submit-vote"

	// SignalSliceProgress appends to the slice observability log. It never
	// drives a transition.
	SignalSliceProgress = "slice-progress"
)

// Query names answerable at any time without mutating state.
const (
	QuerySnapshot    = "epoch-snapshot"
	QueryTransitions = "available-transitions"
	QueryProgressLog = "slice-progress-log"
)

// SliceSpec describes one implementation slice. The engine treats the
// specification as opaque.
type SliceSpec struct {
	SliceID     string `json:"slice_id"`
	Description string `json:"description,omitempty"`
}

// EpochInput starts one epoch lifecycle.
type EpochInput struct {
	EpochID string      `json:"epoch_id"`
	Role    string      `json:"role"`
	Domain  string      `json:"domain"`
	Slices  []SliceSpec `json:"slices,omitempty"`
}

// EpochResult is returned when the epoch reaches the terminal phase.
// SuccessfulTransitions counts successful transitions only; refused
// attempts never increment it.
type EpochResult struct {
	EpochID               string      `json:"epoch_id"`
	FinalPhase            epoch.Phase `json:"final_phase"`
	SuccessfulTransitions int         `json:"successful_transitions"`
}

// AdvanceRequest is the advance-phase signal payload.
type AdvanceRequest struct {
	Target    epoch.Phase `json:"target"`
	Trigger   string      `json:"trigger"`
	Condition string      `json:"condition,omitempty"`
}

// VoteSubmission is the submit-vote signal payload.
type VoteSubmission struct {
	Axis    epoch.Axis    `json:"axis"`
	Verdict epoch.Verdict `json:"verdict"`
	VoterID string        `json:"voter_id"`
}

// ProgressNotice is the slice-progress signal payload.
type ProgressNotice struct {
	SliceID string `json:"slice_id"`
	UnitID  string `json:"unit_id"`
	Stage   string `json:"stage"`
	Done    bool   `json:"done"`
}

// SliceInput starts one slice child workflow. The parent's workflow id is
// passed explicitly so the child can run and be tested without discovering
// a real parent.
type SliceInput struct {
	EpochID  string    `json:"epoch_id"`
	Slice    SliceSpec `json:"slice"`
	ParentID string    `json:"parent_id,omitempty"`
}

// SliceResult is the immutable completion record of one slice unit.
type SliceResult struct {
	SliceID string `json:"slice_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SliceExecution is what the RunSlice activity reports back.
type SliceExecution struct {
	SliceID string `json:"slice_id"`
	Stage   string `json:"stage"`
}

// ReviewInput starts one review child workflow.
type ReviewInput struct {
	EpochID string      `json:"epoch_id"`
	Phase   epoch.Phase `json:"phase"`
}

// ReviewResult is the immutable completion record of one review unit.
// Success is true on any normal completion: receiving a vote on all three
// axes completes the unit regardless of verdict content. Routing the
// verdicts into a gate decision is the parent's job.
type ReviewResult struct {
	Phase    epoch.Phase                  `json:"phase"`
	Success  bool                         `json:"success"`
	Votes    []VoteSubmission             `json:"votes"`
	Verdicts map[epoch.Axis]epoch.Verdict `json:"verdicts"`
}
