// Package gateway wraps each external dependency of the pipeline behind a
// narrow fail/succeed contract. Retry policy lives with the caller, not here.
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

// Inference is the single request/response LLM contract used by every
// generation phase.
type Inference interface {
	Infer(ctx context.Context, prompt string) (string, error)
}

// InferenceClient talks to a messages-style inference HTTP API.
type InferenceClient struct {
	endpoint    string
	apiKey      string
	modelID     string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

func NewInferenceClient(cfg *config.InferenceConfig) *InferenceClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &InferenceClient{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		modelID:     cfg.ModelID,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type inferenceRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []inferenceMessage `json:"messages"`
}

type inferenceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type inferenceResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *InferenceClient) Infer(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(inferenceRequest{
		Model:       c.modelID,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages:    []inferenceMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", &InferenceError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", &InferenceError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &InferenceError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &InferenceError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return "", &InferenceError{Err: fmt.Errorf("inference API error %d: %s", resp.StatusCode, string(data))}
	}

	var parsed inferenceResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &InferenceError{Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if len(parsed.Content) == 0 {
		return "", &InferenceError{Err: fmt.Errorf("empty model response")}
	}

	return parsed.Content[0].Text, nil
}
