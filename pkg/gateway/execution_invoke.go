package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/datamorph/datamorph/pkg/config"
)

// InvokeExecutionBackend delegates the whole job to a function-style runner
// in one synchronous call. The invocation blocks until the runner finishes,
// so Submit already knows the terminal state and PollStatus answers from it.
type InvokeExecutionBackend struct {
	invoker *InvocationClient
	target  string

	mu      sync.Mutex
	results map[string]JobState
}

func NewInvokeExecutionBackend(invoker *InvocationClient, cfg *config.ExecutionConfig) *InvokeExecutionBackend {
	return &InvokeExecutionBackend{
		invoker: invoker,
		target:  cfg.Endpoint,
		results: make(map[string]JobState),
	}
}

type invokeJobRequest struct {
	RunID      string `json:"run_id"`
	Script     string `json:"script,omitempty"`
	ScriptPath string `json:"script_path,omitempty"`
}

type invokeJobResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (b *InvokeExecutionBackend) Submit(ctx context.Context, job Job) (JobHandle, error) {
	raw, err := b.invoker.Invoke(ctx, b.target, invokeJobRequest{
		RunID:      job.RunID,
		Script:     job.Script,
		ScriptPath: job.ScriptPath,
	})
	if err != nil {
		return JobHandle{}, err
	}

	var parsed invokeJobResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return JobHandle{}, &InvocationError{Target: b.target, Err: fmt.Errorf("unmarshal runner response: %w", err)}
	}

	state := JobFailed
	if parsed.Status == "succeeded" || parsed.Status == "success" {
		state = JobSucceeded
	}

	handle := JobHandle{ID: "invoke-" + uuid.NewString()[:8]}
	b.mu.Lock()
	b.results[handle.ID] = state
	b.mu.Unlock()

	return handle, nil
}

func (b *InvokeExecutionBackend) PollStatus(ctx context.Context, handle JobHandle) (JobState, error) {
	b.mu.Lock()
	state, ok := b.results[handle.ID]
	b.mu.Unlock()
	if !ok {
		return "", &ExecutionError{Err: fmt.Errorf("unknown job %s", handle.ID)}
	}
	return state, nil
}
