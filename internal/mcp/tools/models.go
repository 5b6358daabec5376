package tools

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/alergia-mcp/internal/alergia"
	"github.com/usestring/alergia-mcp/internal/store"
	"github.com/usestring/alergia-mcp/pkg/automaton"
)

// ListModelsInput is the input for alergia_list_models.
type ListModelsInput struct {
	NameContains string `json:"name_contains,omitempty" jsonschema:"Only list models whose name contains this text (case-insensitive)"`
	Limit        int    `json:"limit,omitempty" jsonschema:"Max models to return, newest first (default: 50)"`
}

// ListModelsOutput is the output for alergia_list_models.
type ListModelsOutput struct {
	Models    []ModelSummary `json:"models,omitempty"`
	Total     int            `json:"total"`
	Truncated bool           `json:"truncated,omitempty"`
}

// ToolListModels lists stored models.
func ToolListModels(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input ListModelsInput) (*sdkmcp.CallToolResult, ListModelsOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input ListModelsInput) (*sdkmcp.CallToolResult, ListModelsOutput, error) {
		all, err := d.Store.List()
		if err != nil {
			return nil, ListModelsOutput{}, WrapDomainError(err)
		}

		limit := input.Limit
		if limit <= 0 {
			limit = d.Config.DefaultListLimit
		}
		needle := strings.ToLower(input.NameContains)

		output := ListModelsOutput{Models: make([]ModelSummary, 0)}
		for _, meta := range all {
			if needle != "" && !strings.Contains(strings.ToLower(meta.Name), needle) {
				continue
			}
			output.Total++
			if len(output.Models) < limit {
				output.Models = append(output.Models, summarize(meta))
			}
		}
		output.Truncated = output.Total > len(output.Models)
		return nil, output, nil
	}
}

// GetModelInput is the input for alergia_get_model.
type GetModelInput struct {
	ModelID      string `json:"model_id" jsonschema:"Model ID"`
	IncludeModel bool   `json:"include_model,omitempty" jsonschema:"Include states and transitions (default: false)"`
}

// StateInfo describes one state of a model.
type StateInfo struct {
	ID         int     `json:"id"`
	Output     string  `json:"output"`
	Samples    int     `json:"samples"`
	MeanExitMs float64 `json:"mean_exit_ms"`
	Frequency  int     `json:"frequency"`
}

// TransitionInfo describes one transition of a model.
type TransitionInfo struct {
	Source      int     `json:"source"`
	Input       string  `json:"input"`
	Output      string  `json:"output"`
	Target      int     `json:"target"`
	Frequency   int     `json:"frequency"`
	Probability float64 `json:"probability"`
}

// GetModelOutput is the output for alergia_get_model.
type GetModelOutput struct {
	Model       ModelSummary     `json:"model"`
	Options     *alergia.Config  `json:"options,omitempty"`
	Initial     int              `json:"initial"`
	Sinks       []int            `json:"sinks,omitempty"`
	States      []StateInfo      `json:"states,omitempty"`
	Transitions []TransitionInfo `json:"transitions,omitempty"`
}

// ToolGetModel describes a stored model.
func ToolGetModel(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input GetModelInput) (*sdkmcp.CallToolResult, GetModelOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input GetModelInput) (*sdkmcp.CallToolResult, GetModelOutput, error) {
		if input.ModelID == "" {
			return nil, GetModelOutput{}, ErrInvalidInput("model_id is required")
		}
		a, meta, err := d.LoadModel(input.ModelID)
		if err != nil {
			return nil, GetModelOutput{}, err
		}

		output := GetModelOutput{Model: summarize(meta), Options: meta.Options, Initial: a.Initial()}
		for _, s := range a.States() {
			if len(a.Outgoing(s.ID)) == 0 {
				output.Sinks = append(output.Sinks, s.ID)
			}
		}
		if input.IncludeModel {
			output.States, output.Transitions = describe(a)
		}
		return nil, output, nil
	}
}

func describe(a *automaton.Automaton) ([]StateInfo, []TransitionInfo) {
	states := make([]StateInfo, a.NumStates())
	for i, s := range a.States() {
		states[i] = StateInfo{
			ID:         s.ID,
			Output:     s.Output,
			Samples:    len(s.ExitTimes),
			MeanExitMs: durationMs(a.ExitTime(s.ID)),
			Frequency:  a.StateFrequency(s.ID),
		}
	}
	transitions := make([]TransitionInfo, a.NumTransitions())
	for i := range transitions {
		t := a.TransitionByID(i)
		transitions[i] = TransitionInfo{
			Source:      t.Source,
			Input:       t.Input,
			Output:      a.TransitionOutput(t),
			Target:      t.Target,
			Frequency:   t.Frequency,
			Probability: a.Probability(t),
		}
	}
	return states, transitions
}

// Serialized model encodings.
const (
	FormatDOT  = "dot"
	FormatJSON = "json"
)

// ExportModelInput is the input for alergia_export_model.
type ExportModelInput struct {
	ModelID string `json:"model_id" jsonschema:"Model ID"`
	Format  string `json:"format,omitempty" jsonschema:"Export format: dot or json (default: dot)"`
}

// ExportModelOutput is the output for alergia_export_model.
type ExportModelOutput struct {
	ModelID  string `json:"model_id"`
	Format   string `json:"format"`
	MIMEType string `json:"mime_type"`
	Content  string `json:"content"`
}

// ToolExportModel serializes a stored model as DOT or JSON. The DOT form is
// round-trip compatible with alergia_import_model.
func ToolExportModel(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input ExportModelInput) (*sdkmcp.CallToolResult, ExportModelOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input ExportModelInput) (*sdkmcp.CallToolResult, ExportModelOutput, error) {
		if input.ModelID == "" {
			return nil, ExportModelOutput{}, ErrInvalidInput("model_id is required")
		}
		format := strings.ToLower(input.Format)
		if format == "" {
			format = FormatDOT
		}
		if format != FormatDOT && format != FormatJSON {
			return nil, ExportModelOutput{}, ErrInvalidInput("format must be 'dot' or 'json'")
		}

		a, meta, err := d.LoadModel(input.ModelID)
		if err != nil {
			return nil, ExportModelOutput{}, err
		}
		content, mime, err := encodeModel(a, format)
		if err != nil {
			return nil, ExportModelOutput{}, WrapDomainError(err)
		}
		output := ExportModelOutput{ModelID: meta.ID, Format: format, MIMEType: mime, Content: content}
		return textResult(content), output, nil
	}
}

func encodeModel(a *automaton.Automaton, format string) (string, string, error) {
	if format == FormatJSON {
		data, err := a.MarshalJSON()
		if err != nil {
			return "", "", err
		}
		return string(data), MimeJSON, nil
	}
	return a.DOT(), MimeDOT, nil
}

// ImportModelInput is the input for alergia_import_model.
type ImportModelInput struct {
	Content string `json:"content" jsonschema:"Serialized automaton"`
	Format  string `json:"format,omitempty" jsonschema:"Content format: dot or json (default: detected)"`
	Name    string `json:"name,omitempty" jsonschema:"Human-readable model name"`
}

// ImportModelOutput is the output for alergia_import_model.
type ImportModelOutput struct {
	Model ModelSummary `json:"model"`
}

// ToolImportModel parses a DOT or JSON automaton and stores it.
func ToolImportModel(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input ImportModelInput) (*sdkmcp.CallToolResult, ImportModelOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input ImportModelInput) (*sdkmcp.CallToolResult, ImportModelOutput, error) {
		content := strings.TrimSpace(input.Content)
		if content == "" {
			return nil, ImportModelOutput{}, ErrInvalidInput("content is required")
		}
		format := strings.ToLower(input.Format)
		if format == "" {
			format = FormatDOT
			if strings.HasPrefix(content, "{") {
				format = FormatJSON
			}
		}

		var a *automaton.Automaton
		var err error
		switch format {
		case FormatDOT:
			a, err = automaton.ParseDOT(strings.NewReader(content))
		case FormatJSON:
			a, err = automaton.ParseJSON([]byte(content))
		default:
			return nil, ImportModelOutput{}, ErrInvalidInput(fmt.Sprintf("unknown format %q", input.Format))
		}
		if err != nil {
			return nil, ImportModelOutput{}, WrapDomainError(err)
		}

		saved, err := d.SaveModel(store.Metadata{Name: input.Name, Source: store.SourceImported}, a)
		if err != nil {
			return nil, ImportModelOutput{}, err
		}
		return nil, ImportModelOutput{Model: summarize(saved)}, nil
	}
}

// DeleteModelInput is the input for alergia_delete_model.
type DeleteModelInput struct {
	ModelID string `json:"model_id" jsonschema:"Model ID"`
}

// DeleteModelOutput is the output for alergia_delete_model.
type DeleteModelOutput struct {
	ModelID string `json:"model_id"`
	Deleted bool   `json:"deleted"`
}

// ToolDeleteModel removes a stored model.
func ToolDeleteModel(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input DeleteModelInput) (*sdkmcp.CallToolResult, DeleteModelOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input DeleteModelInput) (*sdkmcp.CallToolResult, DeleteModelOutput, error) {
		if input.ModelID == "" {
			return nil, DeleteModelOutput{}, ErrInvalidInput("model_id is required")
		}
		if err := d.DeleteModel(input.ModelID); err != nil {
			return nil, DeleteModelOutput{}, err
		}
		return nil, DeleteModelOutput{ModelID: input.ModelID, Deleted: true}, nil
	}
}
