package store

import (
	"context"
	"errors"

	"github.com/datamorph/datamorph/pkg/model"
)

var (
	// ErrRunNotFound is returned when a run has no log entries.
	ErrRunNotFound = errors.New("run not found")

	// ErrStoreUnavailable wraps any backend failure. An append that returns
	// it has not been durably written; the orchestrator must not proceed.
	ErrStoreUnavailable = errors.New("log store unavailable")
)

// RunLogStore is the append-only, per-run ordered audit log. Appends are
// durable before they return; entries are never mutated or removed. Per-run
// writes are single-writer (the owning orchestrator); concurrent appends for
// distinct runs are safe.
type RunLogStore interface {
	// Append durably writes one entry to the run's log.
	Append(ctx context.Context, runID string, entry *model.LogEntry) error

	// ReadAll returns the run's entries in append order.
	ReadAll(ctx context.Context, runID string) ([]model.LogEntry, error)

	// ReadLatest returns only the most recent entry.
	ReadLatest(ctx context.Context, runID string) (*model.LogEntry, error)
}
