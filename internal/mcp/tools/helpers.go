// Package tools contains MCP tool implementations for learning and analyzing
// timed automata.
package tools

import (
	"encoding/json"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/alergia-mcp/internal/store"
	"github.com/usestring/alergia-mcp/internal/traceio"
	"github.com/usestring/alergia-mcp/pkg/trace"
)

// MIME type constants.
const (
	MimeJSON = "application/json"
	MimeDOT  = "text/vnd.graphviz"
)

// ModelURI returns the resource URI of a stored model.
func ModelURI(id string) string {
	return "alergia://model/" + id
}

// MakeJSONToolResult creates a CallToolResult with JSON text content.
func MakeJSONToolResult(v any) (*sdkmcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{
			&sdkmcp.TextContent{Text: string(b)},
		},
	}, nil
}

// textResult wraps plain text in a CallToolResult.
func textResult(text string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{
			&sdkmcp.TextContent{Text: text},
		},
	}
}

// StepSpec is one timed step of an inline trace.
type StepSpec struct {
	Elapsed string `json:"elapsed" jsonschema:"Time since the previous observation as a Go duration such as 90s or 1h30m"`
	Input   string `json:"input" jsonschema:"Input symbol that triggered the step"`
	Output  string `json:"output" jsonschema:"Output observed after the step"`
}

// TraceSpec is an inline trace.
type TraceSpec struct {
	Name  string     `json:"name,omitempty" jsonschema:"Optional trace name used in reports"`
	Head  string     `json:"head" jsonschema:"Output observed at the start of the trace"`
	Steps []StepSpec `json:"steps,omitempty" jsonschema:"Timed steps in order"`
}

// TraceSource selects the traces a tool operates on. Inline traces come
// first, followed by file traces in pattern order.
type TraceSource struct {
	Traces       []TraceSpec `json:"traces,omitempty" jsonschema:"Inline traces"`
	Files        []string    `json:"files,omitempty" jsonschema:"Trace files or doublestar patterns such as data/**/*.yaml (.json, .yaml, .log)"`
	BaseDir      string      `json:"base_dir,omitempty" jsonschema:"Directory that relative file patterns resolve against (default: working directory)"`
	DefaultInput string      `json:"default_input,omitempty" jsonschema:"Input symbol assigned to timestamp log steps (default: tick)"`
	Root         bool        `json:"root,omitempty" jsonschema:"Prepend a synthetic root output so traces with different heads share one initial state"`
}

// toTrace converts an inline trace.
func (s TraceSpec) toTrace() (trace.Trace, error) {
	doc := traceio.TraceDocument{Name: s.Name, Head: s.Head, Steps: make([]traceio.StepDocument, len(s.Steps))}
	for i, st := range s.Steps {
		doc.Steps[i] = traceio.StepDocument{Elapsed: st.Elapsed, Input: st.Input, Output: st.Output}
	}
	f := traceio.File{Traces: []traceio.TraceDocument{doc}}
	traces, err := f.ToTraces()
	if err != nil {
		return trace.Trace{}, err
	}
	return traces[0], nil
}

// ResolveTraces loads the traces selected by src and enforces the configured
// size caps.
func (d *Deps) ResolveTraces(src TraceSource) ([]trace.Trace, error) {
	if len(src.Traces) == 0 && len(src.Files) == 0 {
		return nil, ErrInvalidInput("traces or files is required")
	}
	input := src.DefaultInput
	if input == "" {
		input = d.Config.DefaultInput
	}

	traces := make([]trace.Trace, 0, len(src.Traces))
	for i, spec := range src.Traces {
		tr, err := spec.toTrace()
		if err != nil {
			return nil, ErrInvalidInput(fmt.Sprintf("trace %d: %v", i, err))
		}
		traces = append(traces, tr)
	}
	if len(src.Files) > 0 {
		loaded, err := traceio.LoadFiles(src.BaseDir, src.Files, input)
		if err != nil {
			return nil, ErrInvalidInput(err.Error())
		}
		traces = append(traces, loaded...)
	}

	if len(traces) > d.Config.MaxTraces {
		return nil, ErrInvalidInput(fmt.Sprintf("%d traces exceed the limit of %d", len(traces), d.Config.MaxTraces))
	}
	steps := 0
	for _, tr := range traces {
		steps += tr.Len()
	}
	if steps > d.Config.MaxTraceSteps {
		return nil, ErrInvalidInput(fmt.Sprintf("%d steps exceed the limit of %d", steps, d.Config.MaxTraceSteps))
	}

	if src.Root {
		traces = trace.RootAll(traces, d.Config.RootOutput, input)
	}
	return traces, nil
}

// ModelSummary describes a stored model in tool output.
type ModelSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Source      string   `json:"source"`
	CreatedAt   string   `json:"created_at"`
	Traces      int      `json:"traces,omitempty"`
	States      int      `json:"states"`
	Transitions int      `json:"transitions"`
	Inputs      []string `json:"inputs,omitempty"`
	Outputs     []string `json:"outputs,omitempty"`
	URI         string   `json:"uri"`
}

func summarize(meta store.Metadata) ModelSummary {
	return ModelSummary{
		ID:          meta.ID,
		Name:        meta.Name,
		Source:      string(meta.Source),
		CreatedAt:   meta.CreatedAt.Format(time.RFC3339),
		Traces:      meta.Traces,
		States:      meta.States,
		Transitions: meta.Transitions,
		Inputs:      meta.Inputs,
		Outputs:     meta.Outputs,
		URI:         ModelURI(meta.ID),
	}
}

// durationMs converts d to fractional milliseconds for display.
func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
