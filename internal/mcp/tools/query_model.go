package tools

import (
	"context"
	"encoding/json"
	"errors"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/alergia-mcp/internal/alergia"
	"github.com/usestring/alergia-mcp/internal/query"
	"github.com/usestring/alergia-mcp/internal/store"
	"github.com/usestring/alergia-mcp/internal/traceio"
	"github.com/usestring/alergia-mcp/pkg/automaton"
)

// QueryModelInput is the input for alergia_query_model.
type QueryModelInput struct {
	ModelIDs    []string       `json:"model_ids" jsonschema:"Models to query; each is one JQ input document"`
	Expression  string         `json:"expression" jsonschema:"JQ expression, e.g. .model.states[] | select(.mean_exit_ns > 1e9) | .output"`
	Variables   map[string]any `json:"variables,omitempty" jsonschema:"Values bound to $name variables in the expression"`
	Deduplicate bool           `json:"deduplicate,omitempty" jsonschema:"Remove duplicate values (default: false)"`
	MaxResults  int            `json:"max_results,omitempty" jsonschema:"Max results to return (default: 100)"`
}

// QueryModelOutput is the output for alergia_query_model.
type QueryModelOutput struct {
	Values      []any          `json:"values,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
	RawCount    int            `json:"raw_count"`
	Truncated   bool           `json:"truncated,omitempty"`
	ValueCounts map[string]int `json:"value_counts,omitempty"`
	Hints       []string       `json:"hints,omitempty"`
}

// modelDocument is the JQ input for one stored model.
type modelDocument struct {
	ID      string              `json:"id"`
	Name    string              `json:"name,omitempty"`
	Source  store.Source        `json:"source"`
	Created string              `json:"created_at"`
	Options *alergia.Config     `json:"options,omitempty"`
	Model   *automaton.Document `json:"model"`
}

// ToolQueryModel runs a JQ expression over stored models.
func ToolQueryModel(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input QueryModelInput) (*sdkmcp.CallToolResult, QueryModelOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input QueryModelInput) (*sdkmcp.CallToolResult, QueryModelOutput, error) {
		if input.Expression == "" {
			return nil, QueryModelOutput{}, ErrInvalidInput("expression is required")
		}
		if len(input.ModelIDs) == 0 {
			return nil, QueryModelOutput{}, ErrInvalidInput("model_ids is required")
		}

		names := make([]string, 0, len(input.Variables))
		for name := range input.Variables {
			names = append(names, name)
		}
		if err := d.Query.ValidateExpression(input.Expression, names...); err != nil {
			return nil, QueryModelOutput{}, ErrInvalidInput(err.Error())
		}

		docs := make([]query.Document, 0, len(input.ModelIDs))
		for _, id := range input.ModelIDs {
			a, meta, err := d.LoadModel(id)
			if err != nil {
				return nil, QueryModelOutput{}, err
			}
			docs = append(docs, query.Document{
				Label: meta.ID,
				Data: modelDocument{
					ID:      meta.ID,
					Name:    meta.Name,
					Source:  meta.Source,
					Created: summarize(meta).CreatedAt,
					Options: meta.Options,
					Model:   a.Document(),
				},
			})
		}

		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = d.Config.DefaultQueryLimit
		}

		result, err := d.Query.QueryDocuments(docs, input.Expression, query.Options{
			Deduplicate: input.Deduplicate,
			MaxResults:  maxResults,
			Variables:   input.Variables,
		})
		if err != nil {
			return nil, QueryModelOutput{}, ErrInvalidInput(err.Error())
		}

		output := QueryModelOutput{
			Values:      result.Values,
			Errors:      result.Errors,
			RawCount:    result.RawCount,
			Truncated:   result.Truncated,
			ValueCounts: result.LabelCounts,
		}
		if len(output.Values) == 0 && len(output.Errors) == 0 {
			output.Hints = append(output.Hints, "expression produced no values; inspect one model with '.' or 'keys' first")
		}
		if output.Truncated {
			output.Hints = append(output.Hints, "results truncated; raise max_results or narrow the expression")
		}
		return nil, output, nil
	}
}

// TraceSchemaInput is the input for alergia_trace_schema.
type TraceSchemaInput struct {
	Validate string `json:"validate,omitempty" jsonschema:"Optional JSON trace document to validate against the schema"`
}

// TraceSchemaOutput is the output for alergia_trace_schema.
type TraceSchemaOutput struct {
	SchemaID         string   `json:"schema_id"`
	Schema           any      `json:"schema"`
	Example          any      `json:"example"`
	Valid            *bool    `json:"valid,omitempty"`
	ValidationErrors []string `json:"validation_errors,omitempty"`
}

// traceExample is a minimal valid trace document.
const traceExample = `{
  "traces": [
    {
      "name": "pump-1",
      "head": "idle",
      "steps": [
        {"elapsed": "30s", "input": "start", "output": "pumping"},
        {"elapsed": "2m", "input": "tick", "output": "idle"}
      ]
    }
  ]
}`

// ToolTraceSchema returns the JSON schema of trace files and optionally
// validates a document against it.
func ToolTraceSchema(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input TraceSchemaInput) (*sdkmcp.CallToolResult, TraceSchemaOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input TraceSchemaInput) (*sdkmcp.CallToolResult, TraceSchemaOutput, error) {
		data, err := traceio.SchemaJSON()
		if err != nil {
			return nil, TraceSchemaOutput{}, WrapDomainError(err)
		}
		schema, err := query.Normalize(json.RawMessage(data))
		if err != nil {
			return nil, TraceSchemaOutput{}, WrapDomainError(err)
		}
		example, err := query.Normalize(json.RawMessage(traceExample))
		if err != nil {
			return nil, TraceSchemaOutput{}, WrapDomainError(err)
		}

		output := TraceSchemaOutput{SchemaID: traceio.SchemaID, Schema: schema, Example: example}
		if input.Validate != "" {
			valid := true
			if err := traceio.ValidateJSON([]byte(input.Validate)); err != nil {
				valid = false
				var verr *traceio.ValidationError
				if errors.As(err, &verr) {
					output.ValidationErrors = verr.Problems
				} else {
					output.ValidationErrors = []string{err.Error()}
				}
			}
			output.Valid = &valid
		}
		return nil, output, nil
	}
}
