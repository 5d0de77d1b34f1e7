package phase

import (
	"context"
	"fmt"
	"strings"

	"github.com/datamorph/datamorph/pkg/gateway"
	"github.com/datamorph/datamorph/pkg/model"
	"github.com/datamorph/datamorph/pkg/retry"
)

// Remediator asks the model for corrective guidance after a failed
// validation phase. The guidance feeds the next code-generation attempt.
type Remediator struct {
	Inference gateway.Inference
	Retry     retry.Policy
}

func (r *Remediator) Run(ctx context.Context, rec Recorder, runID string, spec *ETLSpec, report *PhaseReport, iteration int) (*Remediation, error) {
	var response string
	err := retry.Do(ctx, r.Retry, func(ctx context.Context) error {
		var inferErr error
		response, inferErr = r.Inference.Infer(ctx, remediationPrompt(spec, report))
		return inferErr
	})
	if err != nil {
		return nil, err
	}

	guidance := strings.TrimSpace(response)
	if guidance == "" {
		return nil, fmt.Errorf("remediation: model returned no guidance")
	}

	entry := model.NewLogEntry(model.LogRemediationCompleted,
		"Remediation completed",
		fmt.Sprintf("Iteration %d produced corrective guidance for %d failing check(s)", iteration, report.Failed),
		model.JSONB{
			"iteration":      iteration,
			"status":         "completed",
			"failing_checks": report.Failed,
		})
	if err := rec.Record(ctx, entry); err != nil {
		return nil, err
	}

	return &Remediation{Iteration: iteration, Guidance: guidance}, nil
}
