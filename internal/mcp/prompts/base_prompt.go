package prompts

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// HandleBasePrompt serves the tool usage guide.
func HandleBasePrompt(cfg *Config) func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
	return func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
		var sb strings.Builder

		sb.WriteString("# Efficient Tool Usage Guide\n\n")

		sb.WriteString("## Which Tool Answers Which Question\n\n")
		sb.WriteString("| Question | Tool |\n")
		sb.WriteString("|----------|------|\n")
		sb.WriteString("| What does a trace file look like? | `alergia_trace_schema` |\n")
		sb.WriteString("| What model explains these traces? | `alergia_learn_model` |\n")
		sb.WriteString("| Which models exist? | `alergia_list_models` |\n")
		sb.WriteString("| What states and transitions does a model have? | `alergia_get_model`, `alergia_query_model` |\n")
		sb.WriteString("| Can the model produce this trace? | `alergia_match_trace` |\n")
		sb.WriteString("| Does the model still fit new traces? | `alergia_revision_score` |\n")
		sb.WriteString("| How long until output X appears? | `alergia_hitting_times`, `alergia_hitting_delta` |\n")
		sb.WriteString("| Draw the model | `alergia_export_model` (DOT) |\n\n")

		sb.WriteString("## Keep Responses Small\n")
		sb.WriteString("- `alergia_get_model` omits states and transitions unless `include_model=true`\n")
		sb.WriteString("- For large models prefer `alergia_query_model` with a narrow JQ expression over `include_model`\n")
		sb.WriteString("- Resources `alergia://model/{id}` (JSON) and `alergia://model/{id}/dot` return the full model; fetch them only to render or archive\n\n")

		sb.WriteString("## Trace Sources\n")
		sb.WriteString("Every tool that reads traces takes a `source` object:\n")
		sb.WriteString("- `traces`: inline `[{name, head, steps: [{elapsed, input, output}]}]`\n")
		sb.WriteString("- `files`: paths or `**` patterns relative to `base_dir`; `.json`, `.yaml`/`.yml` and `.log`\n")
		sb.WriteString(fmt.Sprintf("- `root`: prepend output `%s` so traces with different heads share an initial state\n\n", cfg.RootOutput))

		sb.WriteString("## JQ Quick Reference (alergia_query_model)\n")
		sb.WriteString("- `.model.states[] | {id, output, mean_exit_ns}` - state overview\n")
		sb.WriteString("- `.model.transitions[] | select(.probability < 0.05)` - rare transitions\n")
		sb.WriteString("- `[.model.states[].output] | unique` - output alphabet\n")
		sb.WriteString("- `.options` - learner options the model was built with\n\n")

		sb.WriteString("## Error Codes\n")
		sb.WriteString("- `NOT_FOUND`: unknown model_id; call `alergia_list_models`\n")
		sb.WriteString("- `INVALID_INPUT`: fix the request; the message names the field\n")
		sb.WriteString("- `UNUSABLE_MODEL`: some state cannot reach the hitting targets\n")
		sb.WriteString("- `TIMEOUT`: learning exceeded the server time limit\n")

		return &sdkmcp.GetPromptResult{
			Description: "Essential guide for efficient tool usage",
			Messages: []*sdkmcp.PromptMessage{
				{
					Role:    "user",
					Content: &sdkmcp.TextContent{Text: sb.String()},
				},
			},
		}, nil
	}
}
