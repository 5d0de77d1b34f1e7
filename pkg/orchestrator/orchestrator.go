// Package orchestrator drives one run through the pipeline's phase sequence
// and owns the run's audit log. One orchestrator goroutine per run; runs
// share nothing but the log store.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/datamorph/datamorph/pkg/eventbus"
	"github.com/datamorph/datamorph/pkg/gateway"
	"github.com/datamorph/datamorph/pkg/metrics"
	"github.com/datamorph/datamorph/pkg/model"
	"github.com/datamorph/datamorph/pkg/phase"
	"github.com/datamorph/datamorph/pkg/store"
)

// ErrRemediationExhausted ends a run whose validation still fails after the
// configured number of remediation iterations.
var ErrRemediationExhausted = errors.New("remediation iterations exhausted")

type State string

const (
	StateStarted         State = "started"
	StateSpecGenerated   State = "spec_generated"
	StateCodeGenerated   State = "code_generated"
	StateExecuted        State = "executed"
	StateTestsGenerated  State = "tests_generated"
	StateQueriesGenerated State = "queries_generated"
	StateQueriesExecuted State = "queries_executed"
	StatePhaseEvaluated  State = "phase_evaluated"
	StateRemediating     State = "remediating"
	StateSuccess         State = "success"
	StateError           State = "error"
)

// RunStore is the subset of the run repository the orchestrator needs.
type RunStore interface {
	Create(ctx context.Context, run *model.Run) error
	UpdateStatus(ctx context.Context, runID string, status model.RunStatus) error
}

// EventPublisher notifies live observers of log appends. Optional.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, event eventbus.Event) error
}

type Phases struct {
	Specs     *phase.SpecGenerator
	Code      *phase.CodeGenerator
	Execute   *phase.Executor
	Tests     *phase.TestGenerator
	Queries   *phase.QueryGenerator
	QueryRun  *phase.QueryRunner
	Aggregate *phase.Aggregator
	Remediate *phase.Remediator
}

type Orchestrator struct {
	logs           store.RunLogStore
	runs           RunStore
	bus            EventPublisher
	phases         Phases
	maxRemediation int
	logger         *zap.Logger
}

func New(logs store.RunLogStore, runs RunStore, bus EventPublisher, phases Phases, maxRemediation int, logger *zap.Logger) *Orchestrator {
	if maxRemediation < 0 {
		maxRemediation = 0
	}
	return &Orchestrator{
		logs:           logs,
		runs:           runs,
		bus:            bus,
		phases:         phases,
		maxRemediation: maxRemediation,
		logger:         logger,
	}
}

// recorder is the single writer for one run's log. Every append is durable
// before it returns; a failed append stops the run.
type recorder struct {
	runID  string
	logs   store.RunLogStore
	bus    EventPublisher
	logger *zap.Logger
}

func (r *recorder) Record(ctx context.Context, entry *model.LogEntry) error {
	if err := r.logs.Append(ctx, r.runID, entry); err != nil {
		return err
	}
	metrics.LogAppendsTotal.WithLabelValues(string(entry.Type)).Inc()

	if r.bus != nil {
		event, err := eventbus.NewEvent("run_log", eventbus.RunEvent{
			RunID:   r.runID,
			LogType: string(entry.Type),
			Title:   entry.Title,
		})
		if err == nil {
			if err := r.bus.Publish(ctx, eventbus.ChannelRun, event); err != nil {
				r.logger.Warn("run event publish failed", zap.String("run_id", r.runID), zap.Error(err))
			}
		}
	}
	return nil
}

// Execute drives the run to its terminal entry. It is called on the run's
// own goroutine after the start entry has been appended.
func (o *Orchestrator) Execute(ctx context.Context, run *model.Run) {
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	rec := &recorder{runID: run.RunID, logs: o.logs, bus: o.bus, logger: o.logger}

	outcome, err := o.drive(ctx, rec, run)
	if err != nil {
		o.finishError(ctx, rec, run, err)
		return
	}
	o.finishSuccess(ctx, rec, run, outcome)
}

// runOutcome is the orchestrator-local state threaded between phases.
type runOutcome struct {
	spec       *phase.ETLSpec
	report     *phase.PhaseReport
	iterations int
}

func (o *Orchestrator) drive(ctx context.Context, rec *recorder, run *model.Run) (*runOutcome, error) {
	state := StateStarted
	advance := func(next State) {
		o.logger.Debug("run state transition",
			zap.String("run_id", run.RunID),
			zap.String("from", string(state)),
			zap.String("to", string(next)))
		state = next
	}

	spec, err := timedPhase(o, "spec_generation", func() (*phase.ETLSpec, error) {
		return o.phases.Specs.Run(ctx, rec, run.RunID, run.Prompt)
	})
	if err != nil {
		return nil, err
	}
	advance(StateSpecGenerated)

	outcome := &runOutcome{spec: spec}
	guidance := ""

	// The remediation back-edge is the only cycle: each pass re-enters at
	// code generation, and the iteration counter bounds it.
	for iteration := 0; ; iteration++ {
		code, err := timedPhase(o, "code_generation", func() (*phase.GeneratedCode, error) {
			return o.phases.Code.Run(ctx, rec, run.RunID, spec, guidance)
		})
		if err != nil {
			return nil, err
		}
		advance(StateCodeGenerated)

		if _, err := timedPhase(o, "execution", func() (*gateway.ExecutionResult, error) {
			return o.phases.Execute.Run(ctx, rec, run.RunID, code)
		}); err != nil {
			return nil, err
		}
		advance(StateExecuted)

		validationPhase := fmt.Sprintf("phase%d", iteration+1)

		tests, err := timedPhase(o, "test_generation", func() ([]phase.TestCase, error) {
			return o.phases.Tests.Run(ctx, rec, run.RunID, spec, validationPhase)
		})
		if err != nil {
			return nil, err
		}
		advance(StateTestsGenerated)

		queries, err := timedPhase(o, "query_generation", func() ([]phase.GeneratedQuery, error) {
			return o.phases.Queries.Run(ctx, rec, run.RunID, spec, tests)
		})
		if err != nil {
			return nil, err
		}
		advance(StateQueriesGenerated)

		outcomes, err := timedPhase(o, "query_execution", func() ([]phase.QueryOutcome, error) {
			return o.phases.QueryRun.Run(ctx, rec, run.RunID, queries)
		})
		if err != nil {
			return nil, err
		}
		advance(StateQueriesExecuted)

		report, err := o.phases.Aggregate.Run(ctx, rec, run.RunID, validationPhase, outcomes)
		if err != nil {
			return nil, err
		}
		advance(StatePhaseEvaluated)

		outcome.report = report
		outcome.iterations = iteration

		if report.Status == "pass" {
			return outcome, nil
		}

		if iteration >= o.maxRemediation {
			return nil, fmt.Errorf("%w: validation still failing after %d iteration(s)",
				ErrRemediationExhausted, iteration)
		}

		advance(StateRemediating)
		remediation, err := timedPhase(o, "remediation", func() (*phase.Remediation, error) {
			return o.phases.Remediate.Run(ctx, rec, run.RunID, spec, report, iteration+1)
		})
		if err != nil {
			return nil, err
		}
		guidance = remediation.Guidance
		metrics.RemediationIterations.Inc()
	}
}

func (o *Orchestrator) finishSuccess(ctx context.Context, rec *recorder, run *model.Run, outcome *runOutcome) {
	result := model.NewLogEntry(model.LogResult,
		"Pipeline result",
		fmt.Sprintf("All validation checks passed for table %s", outcome.spec.TargetTable),
		model.JSONB{
			"target_table":        outcome.spec.TargetTable,
			"pass_rate":           outcome.report.PassRate,
			"all_steps_completed": true,
		})
	if err := rec.Record(ctx, result); err != nil {
		o.logger.Error("failed to append result entry", zap.String("run_id", run.RunID), zap.Error(err))
		o.finishError(ctx, rec, run, err)
		return
	}

	terminal := model.NewLogEntry(model.LogSuccess,
		"ETL pipeline completed successfully",
		fmt.Sprintf("Run %s finished after %d remediation iteration(s)", run.RunID, outcome.iterations),
		model.JSONB{
			"target_table":           outcome.spec.TargetTable,
			"validation_status":      outcome.report.Status,
			"remediation_iterations": outcome.iterations,
		})
	if err := rec.Record(ctx, terminal); err != nil {
		o.logger.Error("failed to append terminal success entry", zap.String("run_id", run.RunID), zap.Error(err))
		return
	}

	if err := o.runs.UpdateStatus(ctx, run.RunID, model.RunSuccess); err != nil {
		o.logger.Error("failed to update run status", zap.String("run_id", run.RunID), zap.Error(err))
	}

	metrics.RunsTotal.WithLabelValues(string(model.RunSuccess)).Inc()
	o.logger.Info("run succeeded", zap.String("run_id", run.RunID))
}

func (o *Orchestrator) finishError(ctx context.Context, rec *recorder, run *model.Run, cause error) {
	kind := classify(cause)

	terminal := model.NewLogEntry(model.LogError,
		"ETL pipeline failed",
		cause.Error(),
		model.JSONB{
			"error_type": kind,
		})
	if err := rec.Record(ctx, terminal); err != nil {
		// The log store itself is down; nothing more can be made durable.
		o.logger.Error("failed to append terminal error entry",
			zap.String("run_id", run.RunID),
			zap.String("error_type", kind),
			zap.Error(err))
	}

	if err := o.runs.UpdateStatus(ctx, run.RunID, model.RunError); err != nil {
		o.logger.Error("failed to update run status", zap.String("run_id", run.RunID), zap.Error(err))
	}

	metrics.RunsTotal.WithLabelValues(string(model.RunError)).Inc()
	o.logger.Warn("run failed",
		zap.String("run_id", run.RunID),
		zap.String("error_type", kind),
		zap.Error(cause))
}

func classify(err error) string {
	var (
		infErr   *gateway.InferenceError
		execErr  *gateway.ExecutionError
		queryErr *gateway.QueryError
	)
	switch {
	case errors.Is(err, ErrRemediationExhausted):
		return "RemediationExhausted"
	case errors.Is(err, gateway.ErrExecutionTimeout):
		return "ExecutionTimeout"
	case errors.Is(err, store.ErrStoreUnavailable):
		return "StoreUnavailable"
	case errors.As(err, &infErr):
		return "InferenceFailure"
	case errors.As(err, &execErr):
		return "ExecutionFailure"
	case errors.As(err, &queryErr):
		return "QueryFailure"
	default:
		return "InternalError"
	}
}

func (o *Orchestrator) observePhase(name string, start time.Time) {
	metrics.PhaseDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func timedPhase[T any](o *Orchestrator, name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	defer o.observePhase(name, start)
	return fn()
}
