package prompts

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// HandleHittingTimeReport implements the hitting time workflow.
func HandleHittingTimeReport(cfg *Config) func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
	return func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
		modelID := argument(req, "model_id")
		if modelID == "" {
			modelID = "<model_id>"
		}
		targets := `["<output>"]`
		if raw := argument(req, "target_outputs"); raw != "" {
			targets = quotedList(raw)
		}

		var sb strings.Builder

		sb.WriteString("# Hitting Time Report\n\n")
		sb.WriteString("You are estimating how long the system takes, from each of its states, until it first shows one of the target outputs. ")
		sb.WriteString(fmt.Sprintf("The model is driven with a single input (default `%s`); transitions on other inputs are ignored.\n\n", cfg.DefaultInput))

		sb.WriteString("## Workflow Steps\n\n")
		sb.WriteString("1. **Predict** - `alergia_hitting_times` returns the mean time per state\n")
		sb.WriteString("   - `usable=false` lists states that can never reach a target. Report them; they are the states where the target is impossible\n")
		sb.WriteString("2. **Validate** - `alergia_hitting_delta` compares predictions with times observed in traces at sampled prefixes\n")
		sb.WriteString("   - A positive delta means the model predicts later than observed\n")
		sb.WriteString("3. **Explain** - link long predictions to states with large mean exit times (`alergia_get_model(include_model=true)`)\n\n")

		sb.WriteString("## Suggested Tools\n\n")
		sb.WriteString("```\n")
		sb.WriteString(fmt.Sprintf("alergia_hitting_times(model_id=%q, target_outputs=%s)\n", modelID, targets))
		sb.WriteString(fmt.Sprintf("alergia_hitting_delta(model_id=%q, target_outputs=%s, source={files: [...]})\n", modelID, targets))
		sb.WriteString(fmt.Sprintf("alergia_query_model(model_ids=[%q], expression=\".model.states | sort_by(-.mean_exit_ns) | .[:5]\")\n", modelID))
		sb.WriteString("```\n\n")

		sb.WriteString("## Expected Output Format\n\n")
		sb.WriteString("1. **Predictions**: time to target from the initial state and from the slowest states\n")
		sb.WriteString("2. **Accuracy**: mean and max absolute error from the delta summary\n")
		sb.WriteString("3. **Unreachable states**: listed with their outputs, if any\n\n")

		sb.WriteString("## If Things Go Wrong\n\n")
		sb.WriteString("- **Few samples?** Raise `sample_rate` toward 1 or `max_samples`\n")
		sb.WriteString("- **Samples without prediction?** The model cannot replay that prefix; check it with `alergia_match_trace`\n")

		return &sdkmcp.GetPromptResult{
			Description: "Guide for predicting and validating hitting times",
			Messages: []*sdkmcp.PromptMessage{
				{
					Role:    "user",
					Content: &sdkmcp.TextContent{Text: sb.String()},
				},
			},
		}, nil
	}
}
