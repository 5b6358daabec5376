// Package traceio reads and writes timed trace collections.
//
// Traces are exchanged as JSON or YAML documents validated against a JSON
// Schema generated from the document types, or as plain timestamp logs with
// one (timestamp, output) observation per line.
package traceio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/usestring/alergia-mcp/pkg/trace"
)

// Format identifies a trace encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatLog  Format = "log"
)

// ErrUnknownFormat is returned for unsupported encodings.
var ErrUnknownFormat = errors.New("unknown trace format")

// ParseFormat converts a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatLog:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatForPath infers the format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".log", ".txt", ".csv", ".tsv":
		return FormatLog, nil
	default:
		return "", fmt.Errorf("%w: cannot infer format of %s", ErrUnknownFormat, path)
	}
}

// StepDocument is the serialized form of a trace.Step.
type StepDocument struct {
	Elapsed string `json:"elapsed" yaml:"elapsed" jsonschema:"minLength=1" jsonschema_description:"Time since the previous observation as a Go duration such as 90s or 1h30m"`
	Input   string `json:"input" yaml:"input" jsonschema_description:"Input symbol that triggered the step"`
	Output  string `json:"output" yaml:"output" jsonschema_description:"Output observed after the step"`
}

// TraceDocument is the serialized form of a trace.Trace.
type TraceDocument struct {
	Name  string         `json:"name,omitempty" yaml:"name,omitempty" jsonschema_description:"Optional trace name used in reports"`
	Head  string         `json:"head" yaml:"head" jsonschema_description:"Output observed at the start of the trace"`
	Steps []StepDocument `json:"steps" yaml:"steps"`
}

// File is a trace collection document.
type File struct {
	Traces []TraceDocument `json:"traces" yaml:"traces" jsonschema:"minItems=1"`
}

// FromTraces converts traces to their document form.
func FromTraces(traces []trace.Trace) *File {
	f := &File{Traces: make([]TraceDocument, len(traces))}
	for i, tr := range traces {
		doc := TraceDocument{Name: tr.Name, Head: tr.Head, Steps: make([]StepDocument, len(tr.Steps))}
		for j, s := range tr.Steps {
			doc.Steps[j] = StepDocument{Elapsed: s.Elapsed.String(), Input: s.Input, Output: s.Output}
		}
		f.Traces[i] = doc
	}
	return f
}

// ToTraces converts the document to validated traces.
func (f *File) ToTraces() ([]trace.Trace, error) {
	out := make([]trace.Trace, len(f.Traces))
	for i, doc := range f.Traces {
		tr := trace.Trace{Name: doc.Name, Head: doc.Head, Steps: make([]trace.Step, len(doc.Steps))}
		for j, s := range doc.Steps {
			d, err := time.ParseDuration(s.Elapsed)
			if err != nil {
				return nil, fmt.Errorf("trace %d step %d: %w", i, j, err)
			}
			tr.Steps[j] = trace.Step{Elapsed: d, Input: s.Input, Output: s.Output}
		}
		if err := tr.Validate(); err != nil {
			return nil, fmt.Errorf("trace %d: %w", i, err)
		}
		out[i] = tr
	}
	return out, nil
}

// Decode parses a trace collection. JSON and YAML documents are validated
// against Schema first. Logs produce a single trace using defaultInput.
func Decode(data []byte, format Format, defaultInput string) ([]trace.Trace, error) {
	switch format {
	case FormatJSON:
		var value any
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
		if err := ValidateValue(value); err != nil {
			return nil, err
		}
		var f File
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decoding traces: %w", err)
		}
		return f.ToTraces()

	case FormatYAML:
		var value any
		if err := yaml.Unmarshal(data, &value); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
		if err := ValidateValue(value); err != nil {
			return nil, err
		}
		var f File
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decoding traces: %w", err)
		}
		return f.ToTraces()

	case FormatLog:
		tr, err := ParseTimestampLog(bytes.NewReader(data), "", defaultInput)
		if err != nil {
			return nil, err
		}
		return []trace.Trace{tr}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Encode serializes traces as a JSON or YAML document.
func Encode(traces []trace.Trace, format Format) ([]byte, error) {
	f := FromTraces(traces)
	switch format {
	case FormatJSON:
		return json.MarshalIndent(f, "", "  ")
	case FormatYAML:
		return yaml.Marshal(f)
	default:
		return nil, fmt.Errorf("%w: cannot encode as %q", ErrUnknownFormat, format)
	}
}
