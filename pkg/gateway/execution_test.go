package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type scriptedBackend struct {
	mu     sync.Mutex
	states []JobState
	polls  int
}

func (b *scriptedBackend) Submit(ctx context.Context, job Job) (JobHandle, error) {
	return JobHandle{ID: "job-1"}, nil
}

func (b *scriptedBackend) PollStatus(ctx context.Context, handle JobHandle) (JobState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state := b.states[b.polls]
	if b.polls < len(b.states)-1 {
		b.polls++
	}
	return state, nil
}

func TestWaitForCompletionSucceeds(t *testing.T) {
	backend := &scriptedBackend{states: []JobState{JobRunning, JobRunning, JobSucceeded}}
	gw := NewExecutionGateway(backend, time.Millisecond, time.Second, zap.NewNop())

	handle, err := gw.Submit(context.Background(), Job{RunID: "run-1"})
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}

	result, err := gw.WaitForCompletion(context.Background(), handle)
	if err != nil {
		t.Fatalf("wait error: %v", err)
	}
	if result.State != JobSucceeded {
		t.Fatalf("expected succeeded, got %s", result.State)
	}
	if result.Duration <= 0 {
		t.Fatal("expected positive duration")
	}
}

func TestWaitForCompletionReportsFailure(t *testing.T) {
	backend := &scriptedBackend{states: []JobState{JobFailed}}
	gw := NewExecutionGateway(backend, time.Millisecond, time.Second, zap.NewNop())

	result, err := gw.WaitForCompletion(context.Background(), JobHandle{ID: "job-1"})
	if err != nil {
		t.Fatalf("wait error: %v", err)
	}
	if result.State != JobFailed {
		t.Fatalf("expected failed, got %s", result.State)
	}
	if result.Message == "" {
		t.Fatal("expected failure message")
	}
}

func TestWaitForCompletionTimesOut(t *testing.T) {
	backend := &scriptedBackend{states: []JobState{JobRunning}}
	gw := NewExecutionGateway(backend, time.Millisecond, 5*time.Millisecond, zap.NewNop())

	_, err := gw.WaitForCompletion(context.Background(), JobHandle{ID: "job-1"})
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("expected ErrExecutionTimeout, got %v", err)
	}

	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		t.Fatal("timeout must not be an ExecutionError")
	}
}

func TestWaitForCompletionContextCancelled(t *testing.T) {
	backend := &scriptedBackend{states: []JobState{JobRunning}}
	gw := NewExecutionGateway(backend, 50*time.Millisecond, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.WaitForCompletion(ctx, JobHandle{ID: "job-1"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
