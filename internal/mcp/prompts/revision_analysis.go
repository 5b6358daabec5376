package prompts

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// HandleRevisionAnalysis implements the model revision workflow.
func HandleRevisionAnalysis(cfg *Config) func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
	return func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
		modelID := argument(req, "model_id")
		if modelID == "" {
			modelID = "<model_id>"
		}
		source := "source={files: [...]}"
		if files := argument(req, "files"); files != "" {
			source = fmt.Sprintf("source={files: %s}", quotedList(files))
		}

		var sb strings.Builder

		sb.WriteString("# Revision Analysis\n\n")
		sb.WriteString("You are checking whether a learned behavioral model still describes the system. ")
		sb.WriteString("New traces that the model cannot replay, or replays with unusual timing, point to changed behavior.\n\n")

		sb.WriteString("## Revision Score\n\n")
		sb.WriteString("The score is in [0,1]. It blends two similarities along the path a trace takes through the model:\n")
		sb.WriteString("- **Frequency**: how often each transition was taken in the traces versus its learned probability\n")
		sb.WriteString("- **Timing**: observed time in each state versus the learned mean exit time\n\n")
		sb.WriteString(fmt.Sprintf("`frequency_weight` sets the blend (server default %.2f). Mode `%s` is the default:\n", cfg.FrequencyWeight, cfg.ScoreMode))
		sb.WriteString("- `best`: each trace on its best matching path\n")
		sb.WriteString("- `rooted`: each trace on its path from the initial state\n")
		sb.WriteString("- `global`: all traces pooled into one score\n\n")

		sb.WriteString("## Workflow Steps\n\n")
		sb.WriteString("1. **Score the collection** - look at `mean` and `stddev` first\n")
		sb.WriteString("2. **Rank traces** - low per-trace scores are the candidates for changed behavior\n")
		sb.WriteString("3. **Replay outliers** - `alergia_match_trace` shows whether the trace matches at all and where the likelihood drops\n")
		sb.WriteString("4. **Decide** - if many traces score low, learn a new model from old and new traces and compare state counts\n\n")

		sb.WriteString("## Suggested Tools\n\n")
		sb.WriteString("```\n")
		sb.WriteString(fmt.Sprintf("alergia_revision_score(model_id=%q, %s)\n", modelID, source))
		sb.WriteString(fmt.Sprintf("alergia_revision_score(model_id=%q, %s, mode=\"global\")\n", modelID, source))
		sb.WriteString(fmt.Sprintf("alergia_match_trace(model_id=%q, trace={head: ..., steps: [...]})\n", modelID))
		sb.WriteString("```\n\n")

		sb.WriteString("## Expected Output Format\n\n")
		sb.WriteString("1. **Summary**: mean score, spread, and the number of traces below 0.5\n")
		sb.WriteString("2. **Outliers**: the lowest scoring traces with the reason (no match, unusual timing, rare transitions)\n")
		sb.WriteString("3. **Recommendation**: keep the model, or relearn with the new traces\n\n")

		sb.WriteString("## Constraints\n\n")
		sb.WriteString("- Do NOT replay every trace; replay the five lowest scoring ones\n")
		sb.WriteString("- Score 0 means the trace has no matching path. Say so instead of reporting it as bad timing\n\n")

		sb.WriteString("## If Things Go Wrong\n\n")
		sb.WriteString("- **INVALID_INPUT input alphabet does not match?** The traces use inputs the model never saw; the behavior changed structurally\n")
		sb.WriteString("- **All scores 0?** Traces may start in a different output; retry with `source.root=true` if the model was learned that way\n")

		return &sdkmcp.GetPromptResult{
			Description: "Guide for evaluating a model against new traces",
			Messages: []*sdkmcp.PromptMessage{
				{
					Role:    "user",
					Content: &sdkmcp.TextContent{Text: sb.String()},
				},
			},
		}, nil
	}
}
