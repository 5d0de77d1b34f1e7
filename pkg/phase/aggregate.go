package phase

import (
	"context"
	"fmt"

	"github.com/datamorph/datamorph/pkg/model"
)

// Aggregator tallies a validation phase's outcomes into a pass/fail verdict.
type Aggregator struct{}

func (a *Aggregator) Run(ctx context.Context, rec Recorder, runID, validationPhase string, outcomes []QueryOutcome) (*PhaseReport, error) {
	report := &PhaseReport{Phase: validationPhase}

	for _, outcome := range outcomes {
		if outcome.Passed {
			report.Passed++
		} else {
			report.Failed++
			report.Failures = append(report.Failures, outcome)
		}
	}

	total := report.Passed + report.Failed
	if total > 0 {
		report.PassRate = float64(report.Passed) / float64(total) * 100
	}

	report.Status = "pass"
	if report.Failed > 0 || total == 0 {
		report.Status = "fail"
	}

	executed := model.NewLogEntry(model.LogTestCasesExecuted,
		"Test cases executed",
		fmt.Sprintf("%d of %d test case(s) passed", report.Passed, total),
		model.JSONB{
			"validation_phase": validationPhase,
			"passed":           report.Passed,
			"failed":           report.Failed,
		})
	if err := rec.Record(ctx, executed); err != nil {
		return nil, err
	}

	completed := model.NewLogEntry(model.LogValidationPhaseCompleted,
		"Validation phase completed",
		fmt.Sprintf("Phase %s finished with status %s", validationPhase, report.Status),
		model.JSONB{
			"validation_phase": validationPhase,
			"status":           report.Status,
			"passed":           report.Passed,
			"failed":           report.Failed,
			"pass_rate":        report.PassRate,
		})
	if err := rec.Record(ctx, completed); err != nil {
		return nil, err
	}

	return report, nil
}
