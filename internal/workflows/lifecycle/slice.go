package lifecycle

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// SliceWorkflow runs one implementation slice. It executes the slice work
// through the RunSlice activity and sends exactly one progress notification
// to the parent before completing. Failures are reported in the result
// record; the parent never retries a slice.
func SliceWorkflow(ctx workflow.Context, input SliceInput) (*SliceResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("slice unit starting",
		"epoch_id", input.EpochID,
		"slice_id", input.Slice.SliceID,
	)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	var exec SliceExecution
	err := workflow.ExecuteActivity(ctx, activityRef.RunSlice, input).Get(ctx, &exec)
	if err != nil && (temporal.IsCanceledError(err) || ctx.Err() != nil) {
		// Cancelled by the parent's fail-fast policy: terminal, no
		// notification, no result record.
		return nil, err
	}

	result := &SliceResult{SliceID: input.Slice.SliceID}
	notice := ProgressNotice{
		SliceID: input.Slice.SliceID,
		UnitID:  workflow.GetInfo(ctx).WorkflowExecution.ID,
	}
	if err != nil {
		result.Error = err.Error()
		notice.Stage = "failed"
	} else {
		result.Success = true
		notice.Stage = exec.Stage
		notice.Done = true
	}

	if input.ParentID != "" {
		serr := workflow.SignalExternalWorkflow(ctx, input.ParentID, "", SignalSliceProgress, notice).Get(ctx, nil)
		if serr != nil {
			logger.Warn("progress notification failed", "error", serr)
		}
	}

	logger.Info("slice unit finished",
		"slice_id", result.SliceID,
		"success", result.Success,
	)
	return result, nil
}
