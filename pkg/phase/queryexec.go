package phase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/datamorph/datamorph/pkg/gateway"
	"github.com/datamorph/datamorph/pkg/model"
	"github.com/datamorph/datamorph/pkg/retry"
)

// QueryRunner executes validation queries and scores each against its test
// case expectation. A query that cannot run after retries becomes a failed
// outcome; it does not abort the run.
type QueryRunner struct {
	Query  gateway.Query
	Retry  retry.Policy
	Logger *zap.Logger
}

func (r *QueryRunner) Run(ctx context.Context, rec Recorder, runID string, queries []GeneratedQuery) ([]QueryOutcome, error) {
	outcomes := make([]QueryOutcome, 0, len(queries))

	for _, query := range queries {
		outcome := QueryOutcome{Test: query.Test, SQL: query.SQL}

		var rows []map[string]interface{}
		err := retry.Do(ctx, r.Retry, func(ctx context.Context) error {
			var queryErr error
			rows, queryErr = r.Query.Execute(ctx, query.SQL)
			return queryErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			outcome.Error = err.Error()
			r.Logger.Warn("validation query failed",
				zap.String("run_id", runID),
				zap.String("test", query.Test.Name),
				zap.Error(err))
		} else {
			outcome.Rows = len(rows)
			outcome.Passed = evaluate(query.Test, rows)
		}

		metadata := model.JSONB{
			"test_name": query.Test.Name,
			"passed":    outcome.Passed,
			"row_count": outcome.Rows,
		}
		if outcome.Error != "" {
			metadata["error"] = outcome.Error
		}

		entry := model.NewLogEntry(model.LogQueryExecuted,
			"Validation query executed",
			fmt.Sprintf("Test %s: passed=%t", query.Test.Name, outcome.Passed),
			metadata)
		if err := rec.Record(ctx, entry); err != nil {
			return nil, err
		}

		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// evaluate scores rows against the test expectation: "non_empty"/"empty"
// check row presence, anything else is a literal the first row must contain.
func evaluate(test TestCase, rows []map[string]interface{}) bool {
	switch strings.ToLower(strings.TrimSpace(test.ExpectedResult)) {
	case "non_empty":
		return len(rows) > 0
	case "empty":
		return len(rows) == 0
	default:
		if len(rows) == 0 {
			return false
		}
		want := strings.TrimSpace(test.ExpectedResult)
		for _, value := range rows[0] {
			if strings.TrimSpace(fmt.Sprint(value)) == want {
				return true
			}
		}
		return false
	}
}
