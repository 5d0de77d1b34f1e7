package phase

import (
	"context"
	"fmt"

	"github.com/datamorph/datamorph/pkg/gateway"
	"github.com/datamorph/datamorph/pkg/model"
	"github.com/datamorph/datamorph/pkg/retry"
)

// QueryGenerator produces one SQL check per test case.
type QueryGenerator struct {
	Inference gateway.Inference
	Retry     retry.Policy
}

func (g *QueryGenerator) Run(ctx context.Context, rec Recorder, runID string, spec *ETLSpec, tests []TestCase) ([]GeneratedQuery, error) {
	queries := make([]GeneratedQuery, 0, len(tests))

	for _, test := range tests {
		var response string
		err := retry.Do(ctx, g.Retry, func(ctx context.Context) error {
			var inferErr error
			response, inferErr = g.Inference.Infer(ctx, queryPrompt(spec, test))
			return inferErr
		})
		if err != nil {
			return nil, err
		}

		sqlText := ExtractCode(response)
		if sqlText == "" {
			return nil, fmt.Errorf("query generation: model returned no SQL for test %s", test.Name)
		}

		entry := model.NewLogEntry(model.LogQueryGenerated,
			"Validation query generated",
			fmt.Sprintf("Generated query for test %s", test.Name),
			model.JSONB{
				"test_name": test.Name,
				"query":     sqlText,
			})
		if err := rec.Record(ctx, entry); err != nil {
			return nil, err
		}

		queries = append(queries, GeneratedQuery{Test: test, SQL: sqlText})
	}

	return queries, nil
}
