package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/datamorph/datamorph/pkg/config"
)

// HTTPExecutionBackend submits jobs to a managed batch-execution service
// over its REST API.
type HTTPExecutionBackend struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPExecutionBackend(cfg *config.ExecutionConfig) *HTTPExecutionBackend {
	return &HTTPExecutionBackend{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type submitJobRequest struct {
	RunID      string `json:"run_id"`
	Script     string `json:"script,omitempty"`
	ScriptPath string `json:"script_path,omitempty"`
}

type submitJobResponse struct {
	JobID string `json:"job_id"`
}

type jobStatusResponse struct {
	State string `json:"state"`
}

func (b *HTTPExecutionBackend) Submit(ctx context.Context, job Job) (JobHandle, error) {
	body, err := json.Marshal(submitJobRequest{
		RunID:      job.RunID,
		Script:     job.Script,
		ScriptPath: job.ScriptPath,
	})
	if err != nil {
		return JobHandle{}, &ExecutionError{Err: fmt.Errorf("marshal job: %w", err)}
	}

	data, err := b.doRequest(ctx, http.MethodPost, "/jobs", body)
	if err != nil {
		return JobHandle{}, err
	}

	var parsed submitJobResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return JobHandle{}, &ExecutionError{Err: fmt.Errorf("unmarshal submit response: %w", err)}
	}
	if parsed.JobID == "" {
		return JobHandle{}, &ExecutionError{Err: fmt.Errorf("backend returned no job id")}
	}

	return JobHandle{ID: parsed.JobID}, nil
}

func (b *HTTPExecutionBackend) PollStatus(ctx context.Context, handle JobHandle) (JobState, error) {
	data, err := b.doRequest(ctx, http.MethodGet, "/jobs/"+handle.ID, nil)
	if err != nil {
		return "", err
	}

	var parsed jobStatusResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &ExecutionError{Err: fmt.Errorf("unmarshal status response: %w", err)}
	}

	switch JobState(parsed.State) {
	case JobRunning, JobSucceeded, JobFailed:
		return JobState(parsed.State), nil
	default:
		return "", &ExecutionError{Err: fmt.Errorf("unknown job state %q", parsed.State)}
	}
}

func (b *HTTPExecutionBackend) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.endpoint+path, reader)
	if err != nil {
		return nil, &ExecutionError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExecutionError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return nil, &ExecutionError{Err: fmt.Errorf("execution API error %d: %s", resp.StatusCode, string(data))}
	}

	return data, nil
}
