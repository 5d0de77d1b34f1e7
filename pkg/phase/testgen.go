package phase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/datamorph/datamorph/pkg/gateway"
	"github.com/datamorph/datamorph/pkg/model"
	"github.com/datamorph/datamorph/pkg/retry"
)

// TestGenerator derives validation test cases for a named validation phase.
type TestGenerator struct {
	Inference gateway.Inference
	Retry     retry.Policy
}

func (g *TestGenerator) Run(ctx context.Context, rec Recorder, runID string, spec *ETLSpec, validationPhase string) ([]TestCase, error) {
	var response string
	err := retry.Do(ctx, g.Retry, func(ctx context.Context) error {
		var inferErr error
		response, inferErr = g.Inference.Infer(ctx, testPrompt(spec, validationPhase))
		return inferErr
	})
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(response)
	if err != nil {
		return nil, fmt.Errorf("test generation: %w", err)
	}

	var tests []TestCase
	if err := json.Unmarshal([]byte(raw), &tests); err != nil {
		return nil, fmt.Errorf("test generation: unmarshal tests: %w", err)
	}
	if len(tests) == 0 {
		return nil, fmt.Errorf("test generation: model returned no test cases")
	}

	entry := model.NewLogEntry(model.LogTestCasesGenerated,
		"Validation test cases generated",
		fmt.Sprintf("Generated %d test case(s) for %s", len(tests), validationPhase),
		model.JSONB{
			"validation_phase": validationPhase,
			"test_count":       len(tests),
		})
	if err := rec.Record(ctx, entry); err != nil {
		return nil, err
	}

	return tests, nil
}
