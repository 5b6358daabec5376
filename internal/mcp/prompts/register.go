package prompts

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Register registers all prompts with the MCP server.
func Register(srv *sdkmcp.Server, cfg *Config) {
	// Prompt 1: Learn a model from trace files
	srv.AddPrompt(&sdkmcp.Prompt{
		Name:        "learn_model",
		Description: "RECOMMENDED: Learn a timed automaton from recorded traces. Start here - covers trace formats, learner options and how to check the result.",
		Arguments: []*sdkmcp.PromptArgument{
			{
				Name:        "files",
				Description: "Trace files or patterns, comma separated (e.g., 'traces/**/*.yaml')",
				Required:    false,
			},
			{
				Name:        "name",
				Description: "Name for the learned model",
				Required:    false,
			},
		},
	}, HandleLearnModel(cfg))

	// Prompt 2: Evaluate a model against new traces
	srv.AddPrompt(&sdkmcp.Prompt{
		Name:        "revision_analysis",
		Description: "Check whether a learned model still explains newly recorded behavior, and locate the traces that diverge.",
		Arguments: []*sdkmcp.PromptArgument{
			{
				Name:        "model_id",
				Description: "Model to evaluate",
				Required:    true,
			},
			{
				Name:        "files",
				Description: "Trace files or patterns with the new behavior, comma separated",
				Required:    false,
			},
		},
	}, HandleRevisionAnalysis(cfg))

	// Prompt 3: Predict time until an output
	srv.AddPrompt(&sdkmcp.Prompt{
		Name:        "hitting_time_report",
		Description: "Predict how long the system takes to reach given outputs from each state, and validate the prediction against traces.",
		Arguments: []*sdkmcp.PromptArgument{
			{
				Name:        "model_id",
				Description: "Model to analyze",
				Required:    true,
			},
			{
				Name:        "target_outputs",
				Description: "Outputs that count as reached, comma separated (e.g., 'alarm,failure')",
				Required:    false,
			},
		},
	}, HandleHittingTimeReport(cfg))

	// Prompt 4: Tool usage guide
	srv.AddPrompt(&sdkmcp.Prompt{
		Name:        "tool_guide",
		Description: "Reference for the alergia tools: which tool answers which question and how to keep responses small.",
	}, HandleBasePrompt(cfg))
}
