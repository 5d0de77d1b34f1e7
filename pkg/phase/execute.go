package phase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/datamorph/datamorph/pkg/gateway"
	"github.com/datamorph/datamorph/pkg/model"
	"github.com/datamorph/datamorph/pkg/retry"
)

// Executor submits generated code to the batch backend and waits for a
// terminal status. Submission is retried; the poll loop is not, it carries
// its own wait budget.
type Executor struct {
	Gateway *gateway.ExecutionGateway
	Retry   retry.Policy
	Logger  *zap.Logger
}

func (e *Executor) Run(ctx context.Context, rec Recorder, runID string, code *GeneratedCode) (*gateway.ExecutionResult, error) {
	job := gateway.Job{
		RunID:      runID,
		Script:     code.Script,
		ScriptPath: code.ArtifactPath,
	}

	var handle gateway.JobHandle
	err := retry.Do(ctx, e.Retry, func(ctx context.Context) error {
		var submitErr error
		handle, submitErr = e.Gateway.Submit(ctx, job)
		return submitErr
	})
	if err != nil {
		return nil, err
	}

	result, err := e.Gateway.WaitForCompletion(ctx, handle)
	if err != nil {
		return nil, err
	}

	entry := model.NewLogEntry(model.LogGlueExecutionCompleted,
		"Transformation execution completed",
		fmt.Sprintf("Job %s finished with status %s", handle.ID, result.State),
		model.JSONB{
			"job_id":           handle.ID,
			"status":           string(result.State),
			"duration_seconds": result.Duration.Seconds(),
		})
	if err := rec.Record(ctx, entry); err != nil {
		return nil, err
	}

	if result.State == gateway.JobFailed {
		return nil, &gateway.ExecutionError{Err: fmt.Errorf("job %s failed: %s", handle.ID, result.Message)}
	}

	return &result, nil
}
