package phase

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/datamorph/datamorph/pkg/gateway"
	"github.com/datamorph/datamorph/pkg/model"
	"github.com/datamorph/datamorph/pkg/retry"
)

// SpecGenerator turns the user's prompt into a structured ETL specification.
type SpecGenerator struct {
	Inference gateway.Inference
	Retry     retry.Policy
	Artifacts ArtifactStore
	SpecsPath string
	Logger    *zap.Logger
}

func (g *SpecGenerator) Run(ctx context.Context, rec Recorder, runID, prompt string) (*ETLSpec, error) {
	var response string
	err := retry.Do(ctx, g.Retry, func(ctx context.Context) error {
		var inferErr error
		response, inferErr = g.Inference.Infer(ctx, specPrompt(prompt))
		return inferErr
	})
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(response)
	if err != nil {
		return nil, fmt.Errorf("spec generation: %w", err)
	}

	var spec ETLSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil, fmt.Errorf("spec generation: unmarshal spec: %w", err)
	}
	if spec.TargetTable == "" {
		return nil, fmt.Errorf("spec generation: specification has no target table")
	}
	if len(spec.Transformations) == 0 {
		return nil, fmt.Errorf("spec generation: specification has no transformations")
	}

	metadata := model.JSONB{
		"target_table":         spec.TargetTable,
		"source_tables":        spec.SourceTables,
		"transformation_count": len(spec.Transformations),
	}

	if g.Artifacts != nil && g.SpecsPath != "" {
		path, err := g.Artifacts.Put(ctx, joinArtifact(g.SpecsPath, runID+".json"), raw)
		if err != nil {
			g.Logger.Warn("spec artifact upload failed", zap.String("run_id", runID), zap.Error(err))
		} else {
			metadata["artifact_path"] = path
		}
	}

	entry := model.NewLogEntry(model.LogSpecsGenerated,
		"ETL specification generated",
		fmt.Sprintf("Derived %d transformation(s) targeting table %s", len(spec.Transformations), spec.TargetTable),
		metadata)
	if err := rec.Record(ctx, entry); err != nil {
		return nil, err
	}

	return &spec, nil
}
