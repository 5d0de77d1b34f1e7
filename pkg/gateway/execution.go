package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type JobState string

const (
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job is one submission of generated transformation code to the batch
// backend. ScriptPath points at the uploaded artifact; Script carries the
// code inline for backends that take it directly.
type Job struct {
	RunID      string
	Script     string
	ScriptPath string
}

type JobHandle struct {
	ID string
}

type ExecutionResult struct {
	State    JobState
	Duration time.Duration
	Message  string
}

// ExecutionBackend submits a job and reports its status. Implementations:
// the HTTP batch-service backend, the Kubernetes pod backend, and the
// synchronous invoke backend.
type ExecutionBackend interface {
	Submit(ctx context.Context, job Job) (JobHandle, error)
	PollStatus(ctx context.Context, handle JobHandle) (JobState, error)
}

// JobCleaner is implemented by backends whose jobs leave resources behind,
// such as the Kubernetes backend's pods. The gateway invokes it once the job
// reaches a terminal state.
type JobCleaner interface {
	Cleanup(ctx context.Context, handle JobHandle) error
}

// ExecutionGateway drives a backend with bounded-interval polling and a
// wall-clock wait budget. Budget exhaustion surfaces ErrExecutionTimeout,
// distinct from a job the backend reports as failed.
type ExecutionGateway struct {
	backend      ExecutionBackend
	pollInterval time.Duration
	waitBudget   time.Duration
	logger       *zap.Logger
}

func NewExecutionGateway(backend ExecutionBackend, pollInterval, waitBudget time.Duration, logger *zap.Logger) *ExecutionGateway {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	if waitBudget <= 0 {
		waitBudget = 15 * time.Minute
	}
	return &ExecutionGateway{
		backend:      backend,
		pollInterval: pollInterval,
		waitBudget:   waitBudget,
		logger:       logger,
	}
}

func (g *ExecutionGateway) Submit(ctx context.Context, job Job) (JobHandle, error) {
	handle, err := g.backend.Submit(ctx, job)
	if err != nil {
		return JobHandle{}, err
	}
	g.logger.Info("job submitted",
		zap.String("run_id", job.RunID),
		zap.String("job_id", handle.ID))
	return handle, nil
}

// WaitForCompletion polls until the job reaches a terminal state or the wait
// budget runs out.
func (g *ExecutionGateway) WaitForCompletion(ctx context.Context, handle JobHandle) (ExecutionResult, error) {
	start := time.Now()
	deadline := start.Add(g.waitBudget)

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		state, err := g.backend.PollStatus(ctx, handle)
		if err != nil {
			return ExecutionResult{}, err
		}

		if state.Terminal() {
			result := ExecutionResult{State: state, Duration: time.Since(start)}
			if state == JobFailed {
				result.Message = fmt.Sprintf("job %s failed", handle.ID)
			}
			if cleaner, ok := g.backend.(JobCleaner); ok {
				if err := cleaner.Cleanup(ctx, handle); err != nil {
					g.logger.Warn("job cleanup failed",
						zap.String("job_id", handle.ID),
						zap.Error(err))
				}
			}
			return result, nil
		}

		if time.Now().After(deadline) {
			return ExecutionResult{}, fmt.Errorf("%w: job %s still %s after %s",
				ErrExecutionTimeout, handle.ID, state, g.waitBudget)
		}

		select {
		case <-ctx.Done():
			return ExecutionResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
