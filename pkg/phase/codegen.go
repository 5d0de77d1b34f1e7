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

// CodeGenerator turns a specification into an executable transformation
// script. On remediation iterations the corrective guidance is folded into
// the prompt.
type CodeGenerator struct {
	Inference gateway.Inference
	Retry     retry.Policy
	Artifacts ArtifactStore
	CodePath  string
	Logger    *zap.Logger
}

func (g *CodeGenerator) Run(ctx context.Context, rec Recorder, runID string, spec *ETLSpec, guidance string) (*GeneratedCode, error) {
	var response string
	err := retry.Do(ctx, g.Retry, func(ctx context.Context) error {
		var inferErr error
		response, inferErr = g.Inference.Infer(ctx, codePrompt(spec, guidance))
		return inferErr
	})
	if err != nil {
		return nil, err
	}

	script := ExtractCode(response)
	if script == "" {
		return nil, fmt.Errorf("code generation: model returned no code")
	}

	code := &GeneratedCode{Script: script}
	metadata := model.JSONB{
		"code_length": len(script),
		"line_count":  strings.Count(script, "\n") + 1,
	}

	if g.Artifacts != nil && g.CodePath != "" {
		path, err := g.Artifacts.Put(ctx, joinArtifact(g.CodePath, runID, "script.py"), script)
		if err != nil {
			g.Logger.Warn("code artifact upload failed", zap.String("run_id", runID), zap.Error(err))
		} else {
			code.ArtifactPath = path
			metadata["artifact_path"] = path
		}
	}

	entry := model.NewLogEntry(model.LogGlueCodeGenerated,
		"Transformation code generated",
		fmt.Sprintf("Generated %d bytes of transformation code", len(script)),
		metadata)
	if err := rec.Record(ctx, entry); err != nil {
		return nil, err
	}

	return code, nil
}

func joinArtifact(base string, elems ...string) string {
	joined := strings.TrimRight(base, "/")
	for _, elem := range elems {
		joined += "/" + strings.Trim(elem, "/")
	}
	return joined
}
