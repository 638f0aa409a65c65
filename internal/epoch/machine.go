package epoch

import (
	"fmt"
	"sort"
	"time"
)

// FailureKind distinguishes why an advance attempt was refused.
type FailureKind string

const (
	// FailureUnreachableEdge means the target is not a declared edge from
	// the current phase.
	FailureUnreachableEdge FailureKind = "unreachable-edge"

	// FailureGateNotMet means the edge exists but its gate does not hold.
	FailureGateNotMet FailureKind = "gate-not-met"

	// FailureConstraintViolation means an external constraint rule blocked
	// the transition.
	FailureConstraintViolation FailureKind = "constraint-violation"
)

// TransitionError reports a refused advance. It is a recoverable outcome:
// the machine records it in history and stays in its current phase.
type TransitionError struct {
	From   Phase
	To     Phase
	Kind   FailureKind
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot advance %s -> %s: %s", e.From, e.To, e.Reason)
}

// Transition is one append-only history entry. Entries are never mutated
// or removed once appended.
type Transition struct {
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Trigger   string    `json:"trigger"`
	Condition string    `json:"condition,omitempty"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Vote is one recorded review vote, keyed by (axis, voter).
type Vote struct {
	Axis    Axis    `json:"axis"`
	Verdict Verdict `json:"verdict"`
	VoterID string  `json:"voter_id"`
}

// SliceProgress is one observability entry from a slice unit. Entries only
// append to the log; they never drive transitions.
type SliceProgress struct {
	SliceID string    `json:"slice_id"`
	UnitID  string    `json:"unit_id"`
	Stage   string    `json:"stage"`
	Done    bool      `json:"done"`
	At      time.Time `json:"at"`
}

// TransitionOption annotates one declared outgoing edge with its gate state.
type TransitionOption struct {
	Target    Phase  `json:"target"`
	Gated     bool   `json:"gated"`
	GateName  string `json:"gate_name,omitempty"`
	GateHolds bool   `json:"gate_holds"`
}

// Snapshot is an immutable, independent copy of machine state. Re-querying
// without intervening mutation yields structurally identical snapshots.
type Snapshot struct {
	EpochID   string          `json:"epoch_id"`
	Role      string          `json:"role"`
	Domain    string          `json:"domain"`
	Phase     Phase           `json:"phase"`
	Status    Status          `json:"status"`
	LastError string          `json:"last_error,omitempty"`
	History   []Transition    `json:"history"`
	Votes     []Vote          `json:"votes"`
	Progress  []SliceProgress `json:"progress"`
}

type voteKey struct {
	axis  Axis
	voter string
}

// Machine is the per-epoch state machine. It is exclusively owned by one
// orchestrator instance; no concurrent mutator ever exists, so there is no
// internal locking.
type Machine struct {
	epochID string
	role    string
	domain  string

	phase    Phase
	status   Status
	lastErr  string
	history  []Transition
	votes    map[voteKey]Verdict
	progress []SliceProgress
}

// NewMachine creates a machine at PhaseDraft for the given epoch identity.
func NewMachine(epochID, role, domain string) *Machine {
	return &Machine{
		epochID: epochID,
		role:    role,
		domain:  domain,
		phase:   PhaseDraft,
		status:  StatusRunning,
		votes:   make(map[voteKey]Verdict),
	}
}

// EpochID returns the immutable epoch identifier.
func (m *Machine) EpochID() string { return m.epochID }

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Status returns the coarse epoch status.
func (m *Machine) Status() Status { return m.status }

// SuccessfulTransitions counts history entries with Success set. Failed
// attempts never increment it.
func (m *Machine) SuccessfulTransitions() int {
	n := 0
	for _, t := range m.history {
		if t.Success {
			n++
		}
	}
	return n
}

// Advance moves the machine to target if target is a declared edge from the
// current phase and any gate on that edge holds. On refusal the phase is
// unchanged, a failed Transition is appended with a distinguishing reason,
// and a *TransitionError is returned for inspection. Refusal is recoverable;
// the caller's loop continues.
func (m *Machine) Advance(target Phase, trigger, condition string, now time.Time) error {
	found := false
	var gate string
	for _, e := range phaseGraph[m.phase] {
		if e.to == target {
			found = true
			gate = e.gate
			break
		}
	}

	if !found {
		reason := fmt.Sprintf("%s is not a declared transition from %s", target, m.phase)
		m.recordFailure(target, trigger, condition, FailureUnreachableEdge, reason, now)
		return &TransitionError{From: m.phase, To: target, Kind: FailureUnreachableEdge, Reason: reason}
	}

	if gate != "" {
		if holds, reason := m.gateHolds(gate); !holds {
			full := fmt.Sprintf("gate not met: %s", reason)
			m.recordFailure(target, trigger, condition, FailureGateNotMet, full, now)
			return &TransitionError{From: m.phase, To: target, Kind: FailureGateNotMet, Reason: full}
		}
	}

	from := m.phase
	m.phase = target
	m.lastErr = ""
	m.history = append(m.history, Transition{
		From:      from,
		To:        target,
		Trigger:   trigger,
		Condition: condition,
		Success:   true,
		At:        now,
	})

	// Votes belong to the review phase they were cast in.
	if from == PhaseReview {
		m.votes = make(map[voteKey]Verdict)
	}
	if target.Terminal() {
		m.status = StatusComplete
	}
	return nil
}

// RecordConstraintFailure appends a failed Transition for a blocked attempt
// whose refusal came from the external constraint checker rather than the
// graph or a gate.
func (m *Machine) RecordConstraintFailure(target Phase, trigger, condition, reason string, now time.Time) {
	m.recordFailure(target, trigger, condition, FailureConstraintViolation, reason, now)
}

func (m *Machine) recordFailure(target Phase, trigger, condition string, kind FailureKind, reason string, now time.Time) {
	m.lastErr = reason
	m.history = append(m.history, Transition{
		From:      m.phase,
		To:        target,
		Trigger:   trigger,
		Condition: condition,
		Success:   false,
		Reason:    fmt.Sprintf("%s: %s", kind, reason),
		At:        now,
	})
}

// RecordVote records a vote keyed by (axis, voter). Resubmission by the same
// voter on the same axis overwrites the prior verdict. Recording a vote
// never transitions phase.
func (m *Machine) RecordVote(axis Axis, verdict Verdict, voterID string) {
	m.votes[voteKey{axis: axis, voter: voterID}] = verdict
}

// AppendSliceProgress appends one entry to the slice-progress log. The log
// is observability only and is never pruned.
func (m *Machine) AppendSliceProgress(p SliceProgress) {
	m.progress = append(m.progress, p)
}

// MarkBlocked records a child-failure outcome: the epoch stays in its
// current phase with blocked status and the failure visible as last error.
func (m *Machine) MarkBlocked(reason string) {
	m.status = StatusBlocked
	m.lastErr = reason
}

// gateHolds evaluates the named gate against the current vote ledger.
// The review consensus gate requires at least one vote per axis and every
// recorded vote to be an accept; "three votes recorded" and "three accepts
// recorded" are distinct conditions.
func (m *Machine) gateHolds(name string) (bool, string) {
	switch name {
	case GateReviewConsensus:
		for _, axis := range Axes() {
			voted := false
			for k := range m.votes {
				if k.axis == axis {
					voted = true
					break
				}
			}
			if !voted {
				return false, fmt.Sprintf("axis %s has no recorded vote", axis)
			}
		}
		for k, v := range m.votes {
			if v == VerdictRevise {
				return false, fmt.Sprintf("axis %s holds a revise vote from %s", k.axis, k.voter)
			}
		}
		return true, ""
	default:
		return false, fmt.Sprintf("unknown gate %q", name)
	}
}

// AvailableTransitions returns the statically declared outgoing edges from
// the current phase, annotated with whether each gate currently holds.
// Empty at the terminal phase.
func (m *Machine) AvailableTransitions() []TransitionOption {
	edges := phaseGraph[m.phase]
	opts := make([]TransitionOption, 0, len(edges))
	for _, e := range edges {
		opt := TransitionOption{Target: e.to}
		if e.gate != "" {
			opt.Gated = true
			opt.GateName = e.gate
			opt.GateHolds, _ = m.gateHolds(e.gate)
		} else {
			opt.GateHolds = true
		}
		opts = append(opts, opt)
	}
	return opts
}

// Snapshot returns an independent deep copy of the machine state. Votes are
// sorted by axis then voter so snapshots are deterministic.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		EpochID:   m.epochID,
		Role:      m.role,
		Domain:    m.domain,
		Phase:     m.phase,
		Status:    m.status,
		LastError: m.lastErr,
		History:   make([]Transition, len(m.history)),
		Votes:     make([]Vote, 0, len(m.votes)),
		Progress:  make([]SliceProgress, len(m.progress)),
	}
	copy(s.History, m.history)
	copy(s.Progress, m.progress)
	for k, v := range m.votes {
		s.Votes = append(s.Votes, Vote{Axis: k.axis, Verdict: v, VoterID: k.voter})
	}
	sort.Slice(s.Votes, func(i, j int) bool {
		if s.Votes[i].Axis != s.Votes[j].Axis {
			return s.Votes[i].Axis < s.Votes[j].Axis
		}
		return s.Votes[i].VoterID < s.Votes[j].VoterID
	})
	return s
}

// Restore rebuilds a machine from a snapshot. Used by the orchestrator when
// the checker needs state and by tests; the snapshot itself stays immutable.
func Restore(s Snapshot) *Machine {
	m := NewMachine(s.EpochID, s.Role, s.Domain)
	m.phase = s.Phase
	m.status = s.Status
	m.lastErr = s.LastError
	m.history = append(m.history, s.History...)
	m.progress = append(m.progress, s.Progress...)
	for _, v := range s.Votes {
		m.votes[voteKey{axis: v.Axis, voter: v.VoterID}] = v.Verdict
	}
	return m
}
