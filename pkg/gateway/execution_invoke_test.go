package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/datamorph/datamorph/pkg/config"
)

func invokeBackendFor(t *testing.T, handler http.HandlerFunc) *InvokeExecutionBackend {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewInvokeExecutionBackend(
		NewInvocationClient(time.Second),
		&config.ExecutionConfig{Endpoint: server.URL},
	)
}

func TestInvokeBackendSucceededRun(t *testing.T) {
	backend := invokeBackendFor(t, func(w http.ResponseWriter, r *http.Request) {
		var req invokeJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode error: %v", err)
		}
		if req.RunID != "run-1" || req.Script == "" {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(invokeJobResponse{Status: "succeeded"})
	})

	handle, err := backend.Submit(context.Background(), Job{RunID: "run-1", Script: "df = 1"})
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}

	state, err := backend.PollStatus(context.Background(), handle)
	if err != nil {
		t.Fatalf("poll error: %v", err)
	}
	if state != JobSucceeded {
		t.Fatalf("expected succeeded, got %s", state)
	}
}

func TestInvokeBackendFailedRun(t *testing.T) {
	backend := invokeBackendFor(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(invokeJobResponse{Status: "failed", Error: "spark error"})
	})

	handle, err := backend.Submit(context.Background(), Job{RunID: "run-1"})
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}

	state, err := backend.PollStatus(context.Background(), handle)
	if err != nil {
		t.Fatalf("poll error: %v", err)
	}
	if state != JobFailed {
		t.Fatalf("expected failed, got %s", state)
	}
}

func TestInvokeBackendRunnerError(t *testing.T) {
	backend := invokeBackendFor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	_, err := backend.Submit(context.Background(), Job{RunID: "run-1"})
	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvocationError, got %v", err)
	}
}

func TestInvokeBackendUnknownHandle(t *testing.T) {
	backend := NewInvokeExecutionBackend(NewInvocationClient(time.Second), &config.ExecutionConfig{})

	_, err := backend.PollStatus(context.Background(), JobHandle{ID: "nope"})
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
}
