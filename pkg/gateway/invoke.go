package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// InvocationClient delegates a unit of work to another component over HTTP.
// The read timeout is sized to the slowest known downstream phase and
// retries are disabled here; callers compose with the retrier at the call
// site if they want one retry layer, never two.
type InvocationClient struct {
	httpClient *http.Client
}

func NewInvocationClient(readTimeout time.Duration) *InvocationClient {
	if readTimeout <= 0 {
		readTimeout = 15 * time.Minute
	}
	return &InvocationClient{
		httpClient: &http.Client{Timeout: readTimeout},
	}
}

func (c *InvocationClient) Invoke(ctx context.Context, target string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &InvocationError{Target: target, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, &InvocationError{Target: target, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &InvocationError{Target: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &InvocationError{Target: target, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return nil, &InvocationError{Target: target, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(data))}
	}

	return data, nil
}
