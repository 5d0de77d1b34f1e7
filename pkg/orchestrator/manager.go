package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/datamorph/datamorph/pkg/model"
)

// Manager launches and tracks one orchestrator goroutine per run. Runs are
// independent; the manager only fans them out and drains them on shutdown.
type Manager struct {
	orch   *Orchestrator
	runs   RunStore
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders wg.Add against Shutdown's cancel so a run cannot slip in
	// after the drain has started.
	mu sync.Mutex
	wg sync.WaitGroup
}

func NewManager(orch *Orchestrator, runs RunStore, logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		orch:   orch,
		runs:   runs,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// StartRun creates the run, appends its start entry, and begins
// orchestration asynchronously. The returned run id is immediately
// pollable.
func (m *Manager) StartRun(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}
	if err := m.ctx.Err(); err != nil {
		return "", fmt.Errorf("manager is shut down: %w", err)
	}

	run := &model.Run{
		RunID:  model.NewRunID(),
		Prompt: prompt,
		Status: model.RunRunning,
	}

	if err := m.runs.Create(ctx, run); err != nil {
		return "", err
	}

	rec := &recorder{runID: run.RunID, logs: m.orch.logs, bus: m.orch.bus, logger: m.logger}
	start := model.NewLogEntry(model.LogStart,
		"ETL workflow started",
		"Pipeline orchestration started for the submitted request",
		model.JSONB{"prompt": prompt})
	if err := rec.Record(ctx, start); err != nil {
		return "", err
	}

	m.mu.Lock()
	if err := m.ctx.Err(); err != nil {
		m.mu.Unlock()
		return "", fmt.Errorf("manager is shut down: %w", err)
	}
	m.wg.Add(1)
	m.mu.Unlock()
	go func() {
		defer m.wg.Done()
		// Orchestration outlives the HTTP request; it is tied to the
		// manager's lifecycle instead.
		m.orch.Execute(m.ctx, run)
	}()

	m.logger.Info("run started", zap.String("run_id", run.RunID))
	return run.RunID, nil
}

// Shutdown cancels in-flight runs and waits for their goroutines to exit.
// A cancelled run's last log entry remains its permanent state.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()
	m.wg.Wait()
}
