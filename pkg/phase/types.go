// Package phase holds the pipeline's phase executors. Each executor turns
// the previous phase's output into its own, calling gateways through the
// retrier and appending log entries via the Recorder it is handed.
package phase

import (
	"context"

	"github.com/datamorph/datamorph/pkg/model"
)

// Recorder appends one entry to the owning run's audit log. An error means
// the entry was not durably written and the phase must stop.
type Recorder interface {
	Record(ctx context.Context, entry *model.LogEntry) error
}

// ArtifactStore uploads a generated artifact and returns its path.
type ArtifactStore interface {
	Put(ctx context.Context, path, content string) (string, error)
}

// ETLSpec is the structured specification derived from the user's prompt.
type ETLSpec struct {
	SourceTables    []string         `json:"source_tables"`
	TargetTable     string           `json:"target_table"`
	Transformations []Transformation `json:"transformations"`
}

type Transformation struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// GeneratedCode is the executable transformation script plus its uploaded
// location.
type GeneratedCode struct {
	Script       string
	ArtifactPath string
}

// TestCase validates one aspect of the executed transformation.
// ExpectedResult is one of "non_empty", "empty", or a literal value the
// query's first column must equal.
type TestCase struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	ExpectedResult string `json:"expected_result"`
}

// GeneratedQuery pairs a test case with the SQL that checks it.
type GeneratedQuery struct {
	Test TestCase
	SQL  string
}

// QueryOutcome is the pass/fail verdict for one executed query. A query
// that could not run is a failed case, not a run-level error.
type QueryOutcome struct {
	Test   TestCase
	SQL    string
	Passed bool
	Rows   int
	Error  string
}

// PhaseReport aggregates a validation phase's outcomes.
type PhaseReport struct {
	Phase    string
	Passed   int
	Failed   int
	PassRate float64
	Status   string // pass or fail
	Failures []QueryOutcome
}

// Remediation carries corrective guidance for the next code-generation
// attempt.
type Remediation struct {
	Iteration int
	Guidance  string
}
