package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/datamorph/datamorph/pkg/auth"
	"github.com/datamorph/datamorph/pkg/model"
	"github.com/datamorph/datamorph/pkg/store"
)

// RunManager is the subset of the orchestrator manager the handler needs.
type RunManager interface {
	StartRun(ctx context.Context, prompt string) (string, error)
}

type RunHandler struct {
	manager RunManager
	logs    store.RunLogStore
	tokens  *auth.RunTokenManager
	logger  *zap.Logger
}

func NewRunHandler(manager RunManager, logs store.RunLogStore, tokens *auth.RunTokenManager, logger *zap.Logger) *RunHandler {
	return &RunHandler{manager: manager, logs: logs, tokens: tokens, logger: logger}
}

type startRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

type startResponse struct {
	RunID string `json:"run_id"`
	Token string `json:"token,omitempty"`
}

type logEntryResponse struct {
	ID          uint64      `json:"id"`
	Timestamp   string      `json:"timestamp"`
	Type        string      `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Metadata    model.JSONB `json:"metadata,omitempty"`
}

type logsResponse struct {
	RunID    string             `json:"run_id"`
	Status   string             `json:"status"`
	LogCount int                `json:"log_count"`
	Logs     []logEntryResponse `json:"logs"`
}

// Start accepts a prompt and begins orchestration. The response returns
// immediately; callers poll the log endpoint for progress.
func (h *RunHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	runID, err := h.manager.StartRun(c.Request.Context(), req.Prompt)
	if err != nil {
		h.logger.Error("failed to start run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start run"})
		return
	}

	resp := startResponse{RunID: runID}
	if h.tokens != nil {
		token, err := h.tokens.GenerateRunToken(runID)
		if err != nil {
			h.logger.Error("failed to issue run token", zap.String("run_id", runID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue run token"})
			return
		}
		resp.Token = token
	}

	c.JSON(http.StatusAccepted, resp)
}

// GetLogs returns the run's full log. The run's status is derived from the
// last entry: a terminal type is the run's final state, anything else means
// the run is still in progress.
func (h *RunHandler) GetLogs(c *gin.Context) {
	runID := c.Param("run_id")

	entries, err := h.logs.ReadAll(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		h.logger.Error("failed to read run log", zap.String("run_id", runID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read run log"})
		return
	}

	status := string(model.RunRunning)
	if len(entries) > 0 {
		if last := entries[len(entries)-1]; last.Type.Terminal() {
			status = string(last.Type)
		}
	}

	logs := make([]logEntryResponse, 0, len(entries))
	for _, entry := range entries {
		logs = append(logs, logEntryResponse{
			ID:          entry.ID,
			Timestamp:   entry.Timestamp.UTC().Format(time.RFC3339Nano),
			Type:        string(entry.Type),
			Title:       entry.Title,
			Description: entry.Description,
			Metadata:    entry.Metadata,
		})
	}

	c.JSON(http.StatusOK, logsResponse{
		RunID:    runID,
		Status:   status,
		LogCount: len(logs),
		Logs:     logs,
	})
}
