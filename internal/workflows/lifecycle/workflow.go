package lifecycle

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/fyrsmithlabs/epochd/internal/constraint"
	"github.com/fyrsmithlabs/epochd/internal/epoch"
)

// Typed search attributes kept in sync with every successful transition so
// running epochs can be indexed across the cluster.
var (
	attrEpochID = temporal.NewSearchAttributeKeyKeyword("EpochID")
	attrPhase   = temporal.NewSearchAttributeKeyKeyword("EpochPhase")
	attrRole    = temporal.NewSearchAttributeKeyKeyword("EpochRole")
	attrStatus  = temporal.NewSearchAttributeKeyKeyword("EpochStatus")
	attrDomain  = temporal.NewSearchAttributeKeyKeyword("EpochDomain")
)

// activityRef resolves activity method names for ExecuteActivity without a
// live receiver; the worker registers the real instance.
var activityRef *Activities

// epochRun carries the per-instance orchestration state.
type epochRun struct {
	input  EpochInput
	sm     *epoch.Machine
	logger log.Logger

	advCh  workflow.ReceiveChannel
	voteCh workflow.ReceiveChannel
	progCh workflow.ReceiveChannel

	// fanOutRound and reviewRound disambiguate child workflow ids when the
	// revising loop re-enters a phase.
	fanOutRound int
	reviewRound int
}

// EpochLifecycleWorkflow owns exactly one epoch. It consumes advance, vote
// and progress signals, gates transitions through the constraint checker
// and the state machine, records history through the audit boundary, and
// fans out slice and review child workflows on the corresponding phases.
//
// The loop itself performs no I/O and reads no wall clock; everything
// non-deterministic goes through activities or the runtime's own
// deterministic primitives, so replay from history is exact.
func EpochLifecycleWorkflow(ctx workflow.Context, input EpochInput) (*EpochResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("epoch lifecycle starting",
		"epoch_id", input.EpochID,
		"role", input.Role,
		"domain", input.Domain,
		"slices", len(input.Slices),
	)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	r := &epochRun{
		input:  input,
		sm:     epoch.NewMachine(input.EpochID, input.Role, input.Domain),
		logger: logger,
		advCh:  workflow.GetSignalChannel(ctx, SignalAdvance),
		voteCh: workflow.GetSignalChannel(ctx, SignalVote),
		progCh: workflow.GetSignalChannel(ctx, SignalSliceProgress),
	}

	if err := r.registerQueries(ctx); err != nil {
		return nil, fmt.Errorf("registering query handlers: %w", err)
	}
	r.syncSearchAttributes(ctx)

	for !r.sm.Phase().Terminal() {
		pending := r.awaitSignals(ctx)
		for _, req := range pending {
			r.handleAdvance(ctx, req)
		}
	}

	result := &EpochResult{
		EpochID:               r.sm.EpochID(),
		FinalPhase:            r.sm.Phase(),
		SuccessfulTransitions: r.sm.SuccessfulTransitions(),
	}
	logger.Info("epoch lifecycle complete",
		"epoch_id", result.EpochID,
		"transitions", result.SuccessfulTransitions,
	)
	return result, nil
}

// registerQueries exposes the non-mutating query surface.
func (r *epochRun) registerQueries(ctx workflow.Context) error {
	if err := workflow.SetQueryHandler(ctx, QuerySnapshot, func() (epoch.Snapshot, error) {
		return r.sm.Snapshot(), nil
	}); err != nil {
		return err
	}
	if err := workflow.SetQueryHandler(ctx, QueryTransitions, func() ([]epoch.TransitionOption, error) {
		return r.sm.AvailableTransitions(), nil
	}); err != nil {
		return err
	}
	return workflow.SetQueryHandler(ctx, QueryProgressLog, func() ([]epoch.SliceProgress, error) {
		return r.sm.Snapshot().Progress, nil
	})
}

// awaitSignals suspends until at least one signal is pending, then drains
// the buffers. All buffered votes (and progress notices) apply to the state
// machine before any advance request from the same wake cycle is returned
// for evaluation; within each kind, arrival order is preserved.
func (r *epochRun) awaitSignals(ctx workflow.Context) []AdvanceRequest {
	var pending []AdvanceRequest

	sel := workflow.NewSelector(ctx)
	sel.AddReceive(r.voteCh, func(c workflow.ReceiveChannel, _ bool) {
		var v VoteSubmission
		c.Receive(ctx, &v)
		r.applyVote(v)
	})
	sel.AddReceive(r.progCh, func(c workflow.ReceiveChannel, _ bool) {
		var p ProgressNotice
		c.Receive(ctx, &p)
		r.appendProgress(ctx, p)
	})
	sel.AddReceive(r.advCh, func(c workflow.ReceiveChannel, _ bool) {
		var req AdvanceRequest
		c.Receive(ctx, &req)
		pending = append(pending, req)
	})
	sel.Select(ctx)

	r.drainVotes()
	r.drainProgress(ctx)
	for {
		var req AdvanceRequest
		if !r.advCh.ReceiveAsync(&req) {
			break
		}
		pending = append(pending, req)
	}
	return pending
}

func (r *epochRun) drainVotes() {
	for {
		var v VoteSubmission
		if !r.voteCh.ReceiveAsync(&v) {
			return
		}
		r.applyVote(v)
	}
}

func (r *epochRun) drainProgress(ctx workflow.Context) {
	for {
		var p ProgressNotice
		if !r.progCh.ReceiveAsync(&p) {
			return
		}
		r.appendProgress(ctx, p)
	}
}

func (r *epochRun) applyVote(v VoteSubmission) {
	if !v.Axis.Valid() {
		r.logger.Warn("dropping vote on unknown axis", "axis", v.Axis, "voter_id", v.VoterID)
		return
	}
	if v.Verdict != epoch.VerdictAccept && v.Verdict != epoch.VerdictRevise {
		r.logger.Warn("dropping vote with unknown verdict", "verdict", v.Verdict, "voter_id", v.VoterID)
		return
	}
	r.sm.RecordVote(v.Axis, v.Verdict, v.VoterID)
}

func (r *epochRun) appendProgress(ctx workflow.Context, p ProgressNotice) {
	r.sm.AppendSliceProgress(epoch.SliceProgress{
		SliceID: p.SliceID,
		UnitID:  p.UnitID,
		Stage:   p.Stage,
		Done:    p.Done,
		At:      workflow.Now(ctx),
	})
}

// handleAdvance runs one advance request through the constraint checker and
// the state machine. Refusals of any kind are recorded in history and the
// loop continues; nothing here crashes the workflow.
func (r *epochRun) handleAdvance(ctx workflow.Context, req AdvanceRequest) {
	state := r.sm.Snapshot()

	var violations []constraint.Violation
	err := workflow.ExecuteActivity(ctx, activityRef.CheckConstraints, CheckConstraintsInput{
		State:  state,
		Target: req.Target,
	}).Get(ctx, &violations)
	if err != nil {
		r.sm.RecordConstraintFailure(req.Target, req.Trigger, req.Condition,
			fmt.Sprintf("constraint check failed: %v", err), workflow.Now(ctx))
		r.logger.Error("constraint check failed", "target", req.Target, "error", err)
		return
	}
	if len(violations) > 0 {
		r.sm.RecordConstraintFailure(req.Target, req.Trigger, req.Condition,
			describeViolations(violations), workflow.Now(ctx))
		r.logger.Info("advance blocked by constraints",
			"target", req.Target,
			"violations", len(violations),
		)
		r.recordLastTransition(ctx)
		return
	}

	if err := r.sm.Advance(req.Target, req.Trigger, req.Condition, workflow.Now(ctx)); err != nil {
		r.logger.Info("advance refused", "target", req.Target, "error", err)
		r.recordLastTransition(ctx)
		return
	}

	// Tags move in the same workflow task as the phase change so external
	// readers never observe them out of step.
	r.syncSearchAttributes(ctx)
	r.recordLastTransition(ctx)

	r.logger.Info("phase advanced", "phase", r.sm.Phase(), "trigger", req.Trigger)

	switch r.sm.Phase() {
	case epoch.PhaseImplementing:
		r.fanOutRound++
		r.runSliceFanOut(ctx)
	case epoch.PhaseReview:
		r.reviewRound++
		r.runReview(ctx)
	}
}

// recordLastTransition sends the newest history entry to the transition
// sink. Best-effort: a sink failure is logged and forgotten.
func (r *epochRun) recordLastTransition(ctx workflow.Context) {
	hist := r.sm.Snapshot().History
	if len(hist) == 0 {
		return
	}
	last := hist[len(hist)-1]
	err := workflow.ExecuteActivity(ctx, activityRef.RecordTransition, RecordTransitionInput{
		EpochID:    r.sm.EpochID(),
		Role:       r.input.Role,
		Transition: last,
	}).Get(ctx, nil)
	if err != nil {
		r.logger.Warn("transition record failed (non-fatal)", "error", err)
	}
}

func (r *epochRun) syncSearchAttributes(ctx workflow.Context) {
	err := workflow.UpsertTypedSearchAttributes(ctx,
		attrEpochID.ValueSet(r.sm.EpochID()),
		attrPhase.ValueSet(string(r.sm.Phase())),
		attrRole.ValueSet(r.input.Role),
		attrStatus.ValueSet(string(r.sm.Status())),
		attrDomain.ValueSet(r.input.Domain),
	)
	if err != nil {
		r.logger.Warn("search attribute sync failed", "error", err)
	}
}

func describeViolations(violations []constraint.Violation) string {
	msg := "constraint violations:"
	for _, v := range violations {
		msg += fmt.Sprintf(" [%s] %s;", v.Rule, v.Description)
	}
	return msg
}

// runSliceFanOut starts one slice child per configured slice and blocks on
// their joint outcome. On the first failure every sibling is cancelled
// rather than left to finish; cancelled units are terminal. Progress
// signals keep draining into the log while blocked, but no advance request
// is evaluated until the fan-out resolves.
func (r *epochRun) runSliceFanOut(ctx workflow.Context) {
	if len(r.input.Slices) == 0 {
		r.logger.Info("no slices configured; fan-out is a no-op")
		return
	}

	parentID := workflow.GetInfo(ctx).WorkflowExecution.ID
	fanCtx, cancel := workflow.WithCancel(ctx)
	defer cancel()

	futures := make([]workflow.ChildWorkflowFuture, len(r.input.Slices))
	for i, spec := range r.input.Slices {
		childCtx := workflow.WithChildOptions(fanCtx, workflow.ChildWorkflowOptions{
			WorkflowID: fmt.Sprintf("%s-slice-%s-r%d", r.input.EpochID, spec.SliceID, r.fanOutRound),
		})
		futures[i] = workflow.ExecuteChildWorkflow(childCtx, SliceWorkflow, SliceInput{
			EpochID:  r.input.EpochID,
			Slice:    spec,
			ParentID: parentID,
		})
	}

	remaining := len(futures)
	settled := make([]bool, len(futures))
	var firstFailure string

	for remaining > 0 {
		sel := workflow.NewSelector(ctx)
		sel.AddReceive(r.progCh, func(c workflow.ReceiveChannel, _ bool) {
			var p ProgressNotice
			c.Receive(ctx, &p)
			r.appendProgress(ctx, p)
		})
		for i, fut := range futures {
			if settled[i] {
				continue
			}
			i, fut := i, fut
			sel.AddFuture(fut, func(f workflow.Future) {
				settled[i] = true
				remaining--

				var res SliceResult
				if err := f.Get(ctx, &res); err != nil {
					if firstFailure == "" {
						firstFailure = fmt.Sprintf("slice %s: %v", r.input.Slices[i].SliceID, err)
						cancel()
					}
					return
				}
				if !res.Success {
					if firstFailure == "" {
						firstFailure = fmt.Sprintf("slice %s: %s", res.SliceID, res.Error)
						cancel()
					}
					return
				}
				r.logger.Info("slice completed", "slice_id", res.SliceID)
			})
		}
		sel.Select(ctx)
	}

	if firstFailure != "" {
		r.sm.MarkBlocked("slice fan-out failed: " + firstFailure)
		r.logger.Error("slice fan-out failed", "reason", firstFailure)
	}
}

// runReview starts exactly one review child and blocks until it completes.
// While blocked, incoming votes are applied to the state machine and
// forwarded to the child; the child decides nothing about gates, it only
// collects. There is no timeout: a reviewer who never votes blocks the
// epoch until an operator intervenes.
func (r *epochRun) runReview(ctx workflow.Context) {
	childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID: fmt.Sprintf("%s-review-r%d", r.input.EpochID, r.reviewRound),
	})
	fut := workflow.ExecuteChildWorkflow(childCtx, ReviewWorkflow, ReviewInput{
		EpochID: r.input.EpochID,
		Phase:   r.sm.Phase(),
	})

	var started workflow.Execution
	if err := fut.GetChildWorkflowExecution().Get(ctx, &started); err != nil {
		r.sm.MarkBlocked(fmt.Sprintf("review unit failed to start: %v", err))
		r.logger.Error("review unit failed to start", "error", err)
		return
	}

	var result ReviewResult
	done := false
	var childErr error
	for !done {
		sel := workflow.NewSelector(ctx)
		sel.AddReceive(r.voteCh, func(c workflow.ReceiveChannel, _ bool) {
			var v VoteSubmission
			c.Receive(ctx, &v)
			r.applyVote(v)
			if err := fut.SignalChildWorkflow(ctx, SignalVote, v).Get(ctx, nil); err != nil {
				r.logger.Warn("vote forward to review unit failed", "error", err)
			}
		})
		sel.AddReceive(r.progCh, func(c workflow.ReceiveChannel, _ bool) {
			var p ProgressNotice
			c.Receive(ctx, &p)
			r.appendProgress(ctx, p)
		})
		sel.AddFuture(fut, func(f workflow.Future) {
			done = true
			childErr = f.Get(ctx, &result)
		})
		sel.Select(ctx)
	}

	if childErr != nil {
		r.sm.MarkBlocked(fmt.Sprintf("review unit failed: %v", childErr))
		r.logger.Error("review unit failed", "error", childErr)
		return
	}

	// The unit's ledger is authoritative for votes delivered to it
	// directly; re-applying forwarded votes is a no-op overwrite.
	for _, v := range result.Votes {
		r.applyVote(v)
	}
	r.logger.Info("review unit complete", "verdicts", result.Verdicts)
}
