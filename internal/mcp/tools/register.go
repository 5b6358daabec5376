package tools

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Register registers all tools with the MCP server.
func Register(srv *sdkmcp.Server, d *Deps) {
	// Tool 1: alergia_learn_model
	AddTool(srv, &sdkmcp.Tool{
		Name:        "alergia_learn_model",
		Description: "Learn a timed automaton from traces with the Alergia state-merging algorithm and store it. Traces come inline (source.traces) or from files (source.files: .json, .yaml, or timestamped .log). Returns the new model_id plus learner statistics. Set source.root=true when traces start in different outputs. Set tree_only=true to store the unmerged prefix tree for comparison.",
	}, ToolLearnModel(d))

	// Tool 2: alergia_list_models
	AddTool(srv, &sdkmcp.Tool{
		Name:        "alergia_list_models",
		Description: "List stored models, newest first, with state/transition counts and alphabets",
	}, ToolListModels(d))

	// Tool 3: alergia_get_model
	AddTool(srv, &sdkmcp.Tool{
		Name:        "alergia_get_model",
		Description: "Describe a stored model: learner options, initial state and sink states. Set include_model=true for every state (output, mean exit time, frequency) and transition (probability).",
	}, ToolGetModel(d))

	// Tool 4: alergia_export_model
	AddTool(srv, &sdkmcp.Tool{
		Name:        "alergia_export_model",
		Description: "Export a stored model as Graphviz DOT (default) or JSON. DOT output renders with 'dot -Tsvg' and can be re-imported with alergia_import_model.",
	}, ToolExportModel(d))

	// Tool 5: alergia_import_model
	AddTool(srv, &sdkmcp.Tool{
		Name:        "alergia_import_model",
		Description: "Import an automaton from DOT (as written by alergia_export_model) or JSON and store it as a new model",
	}, ToolImportModel(d))

	// Tool 6: alergia_delete_model
	AddTool(srv, &sdkmcp.Tool{
		Name:        "alergia_delete_model",
		Description: "Delete a stored model",
	}, ToolDeleteModel(d))

	// Tool 7: alergia_match_trace
	AddTool(srv, &sdkmcp.Tool{
		Name:        "alergia_match_trace",
		Description: "Replay one trace on a model. Returns every matching path ranked by normalized Viterbi likelihood, whether the trace replays from the initial state, and the best revision score. Zero matches means the model never saw this behavior.",
	}, ToolMatchTrace(d))

	// Tool 8: alergia_revision_score
	AddTool(srv, &sdkmcp.Tool{
		Name:        "alergia_revision_score",
		Description: "Score how well a model explains a trace collection, in [0,1]. Combines transition frequency similarity and exit time similarity (frequency_weight). Mode best scores each trace on its best path, rooted on its path from the initial state, global scores all traces together.",
	}, ToolRevisionScore(d))

	// Tool 9: alergia_hitting_times
	AddTool(srv, &sdkmcp.Tool{
		Name:        "alergia_hitting_times",
		Description: "Predict the mean time from every state until a state with one of target_outputs is reached. usable=false lists states that can never reach a target.",
	}, ToolHittingTimes(d))

	// Tool 10: alergia_hitting_delta
	AddTool(srv, &sdkmcp.Tool{
		Name:        "alergia_hitting_delta",
		Description: "Compare predicted hitting times against the times observed in traces at sampled prefixes. Reports per-sample deltas and a mean absolute error summary.",
	}, ToolHittingDelta(d))

	// Tool 11: alergia_query_model
	AddTool(srv, &sdkmcp.Tool{
		Name:        "alergia_query_model",
		Description: "Run a JQ expression over stored models. Each model is one input document with id, name, source, created_at, options and model (initial, states[], transitions[]). Example: '.model.transitions[] | select(.probability < 0.05)'.",
	}, ToolQueryModel(d))

	// Tool 12: alergia_trace_schema
	AddTool(srv, &sdkmcp.Tool{
		Name:        "alergia_trace_schema",
		Description: "Get the JSON schema and an example of trace files. Pass validate to check a JSON trace document before learning.",
	}, ToolTraceSchema(d))
}
