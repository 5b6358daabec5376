package prompts

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// argument returns the named prompt argument, or "" when absent.
func argument(req *sdkmcp.GetPromptRequest, name string) string {
	if req == nil || req.Params == nil || req.Params.Arguments == nil {
		return ""
	}
	return strings.TrimSpace(req.Params.Arguments[name])
}

// quotedList renders a comma separated argument as a JSON string array.
func quotedList(raw string) string {
	var parts []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, fmt.Sprintf("%q", p))
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// HandleLearnModel implements the model learning workflow.
func HandleLearnModel(cfg *Config) func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
	return func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
		files := argument(req, "files")
		name := argument(req, "name")

		var sb strings.Builder

		sb.WriteString("# Learn a Timed Automaton from Traces\n\n")
		sb.WriteString("You are a systems analyst building a behavioral model of a reactive system from recorded executions. ")
		sb.WriteString("The model is a timed automaton: states carry an output and a mean time until the system moves on, transitions carry an input and a probability.\n\n")

		sb.WriteString("## Task Overview\n\n")
		sb.WriteString("Learn a compact model that reproduces the recorded behavior, then sanity check it before using it for analysis.\n\n")

		sb.WriteString("## Trace Formats\n\n")
		sb.WriteString("- **JSON/YAML**: `{traces: [{name, head, steps: [{elapsed, input, output}]}]}`; `elapsed` is a Go duration such as `90s`. Call `alergia_trace_schema` for the full schema and an example.\n")
		sb.WriteString(fmt.Sprintf("- **Log (.log)**: one `<timestamp> <output>` per line, RFC 3339 or Unix seconds. Every step gets input `%s`.\n", cfg.DefaultInput))
		sb.WriteString("- **Inline**: pass `source.traces` directly for small experiments.\n\n")

		sb.WriteString("## Workflow Steps\n\n")
		sb.WriteString("1. **Validate input** - if unsure about a JSON file, run `alergia_trace_schema(validate=...)` on it first\n")
		sb.WriteString("2. **Learn** - all traces must start with the same output. If they do not, set `source.root=true`; ")
		sb.WriteString(fmt.Sprintf("every trace then starts in the synthetic output `%s`\n", cfg.RootOutput))
		sb.WriteString("3. **Inspect** - `alergia_get_model` shows sink states and learner options; `include_model=true` lists every state\n")
		sb.WriteString("4. **Check fit** - `alergia_revision_score` on the training traces should be close to 1\n\n")

		sb.WriteString("## Suggested Tools\n\n")
		sb.WriteString("```\n")
		sb.WriteString("# Step 1: Learn\n")
		source := "source={traces: [...]}"
		if files != "" {
			source = fmt.Sprintf("source={files: %s}", quotedList(files))
		}
		if name != "" {
			sb.WriteString(fmt.Sprintf("alergia_learn_model(%s, name=%q)\n", source, name))
		} else {
			sb.WriteString(fmt.Sprintf("alergia_learn_model(%s)\n", source))
		}
		sb.WriteString("\n# Step 2: Inspect\n")
		sb.WriteString("alergia_get_model(model_id=\"<model_id>\")\n")
		sb.WriteString("\n# Step 3: Check fit against the training traces\n")
		sb.WriteString(fmt.Sprintf("alergia_revision_score(model_id=\"<model_id>\", %s)\n", source))
		sb.WriteString("```\n\n")

		sb.WriteString("## Learner Options\n\n")
		sb.WriteString("| Goal | Option |\n")
		sb.WriteString("|------|--------|\n")
		sb.WriteString("| Fewer, coarser states | raise `frequency_significance` / `timing_significance` toward 1 |\n")
		sb.WriteString("| More, finer states | lower the significances toward 0 |\n")
		sb.WriteString("| Trust shallow evidence more than deep | `frequency_decay` / `timing_decay` below 1 |\n")
		sb.WriteString("| Stop comparing deep subtrees | `tail_length` (negative for unlimited) |\n")
		sb.WriteString("| Compare against the unmerged tree | `tree_only=true` |\n\n")

		sb.WriteString("## Expected Output Format\n\n")
		sb.WriteString("1. **Model**: ID, state and transition counts, inputs and outputs\n")
		sb.WriteString("2. **Structure**: initial state, sink states, the dominant cycle if any\n")
		sb.WriteString("3. **Fit**: mean revision score on the training traces\n\n")

		sb.WriteString("## If Things Go Wrong\n\n")
		sb.WriteString("- **INVALID_INPUT divergent initial state output?** Set `source.root=true`\n")
		sb.WriteString("- **TIMEOUT?** Learn on a subset of files first, or lower the significances so merges are accepted earlier\n")
		sb.WriteString("- **Model as large as the tree?** Too little data per state; collect more traces or raise the significances\n")

		return &sdkmcp.GetPromptResult{
			Description: "Guide for learning a timed automaton",
			Messages: []*sdkmcp.PromptMessage{
				{
					Role:    "user",
					Content: &sdkmcp.TextContent{Text: sb.String()},
				},
			},
		}, nil
	}
}
