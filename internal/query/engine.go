// Package query provides JQ-based querying over learned models and analysis
// reports.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/itchyny/gojq"
)

// Engine executes JQ queries against JSON documents.
type Engine struct{}

// NewEngine creates a new query engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Document is one labeled query input. Data is any JSON-marshalable value.
type Document struct {
	Label string
	Data  any
}

// Options controls a query run.
type Options struct {
	Deduplicate bool
	MaxResults  int // 0 means unlimited
	// Variables are bound as $name in the expression.
	Variables map[string]any
}

// Result contains the values produced by a query.
type Result struct {
	Values      []any          `json:"values"`
	Errors      []string       `json:"errors,omitempty"`      // Per-document runtime errors
	RawCount    int            `json:"raw_count"`             // Count before deduplication
	Truncated   bool           `json:"truncated,omitempty"`   // MaxResults was reached
	LabelCounts map[string]int `json:"label_counts,omitempty"` // Value count per document label
}

// Normalize converts v to the generic JSON shape gojq operates on.
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding query input: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding query input: %w", err)
	}
	return out, nil
}

// Query runs expression against a single document.
func (e *Engine) Query(data any, expression string, opts Options) (*Result, error) {
	return e.QueryDocuments([]Document{{Label: "input", Data: data}}, expression, opts)
}

// QueryDocuments runs expression against each document in order and combines
// the results. Runtime errors are reported per document and do not stop the
// run.
func (e *Engine) QueryDocuments(docs []Document, expression string, opts Options) (*Result, error) {
	names, values := variables(opts.Variables)
	code, err := e.compile(expression, names)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Values:      make([]any, 0),
		LabelCounts: make(map[string]int),
	}
	seen := make(map[string]bool)
	seenErrors := make(map[string]bool)

	full := func() bool {
		return opts.MaxResults > 0 && len(result.Values) >= opts.MaxResults
	}

	for i, doc := range docs {
		if full() {
			result.Truncated = true
			break
		}
		label := doc.Label
		if label == "" {
			label = fmt.Sprintf("document[%d]", i)
		}

		input, err := Normalize(doc.Data)
		if err != nil {
			addError(result, seenErrors, fmt.Sprintf("%s: %v", label, err))
			continue
		}

		iter := code.Run(input, values...)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				addError(result, seenErrors, formatJQError(label, err))
				continue
			}
			if v == nil {
				continue
			}
			if full() {
				result.Truncated = true
				break
			}

			result.RawCount++
			result.LabelCounts[label]++
			if opts.Deduplicate {
				key := valueKey(v)
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			result.Values = append(result.Values, v)
		}
	}
	return result, nil
}

// ValidateExpression checks that expression parses and compiles with the
// given variable names.
func (e *Engine) ValidateExpression(expression string, variableNames ...string) error {
	names := make([]string, len(variableNames))
	for i, n := range variableNames {
		names[i] = "$" + strings.TrimPrefix(n, "$")
	}
	_, err := e.compile(expression, names)
	return err
}

func (e *Engine) compile(expression string, names []string) (*gojq.Code, error) {
	q, err := gojq.Parse(expression)
	if err != nil {
		var parseErr *gojq.ParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("invalid jq expression at position %d: %w", parseErr.Offset, err)
		}
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(q, gojq.WithVariables(names))
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq expression: %w", err)
	}
	return code, nil
}

// variables returns sorted $-prefixed names with their normalized values.
func variables(vars map[string]any) ([]string, []any) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make([]string, len(keys))
	values := make([]any, len(keys))
	for i, k := range keys {
		names[i] = "$" + strings.TrimPrefix(k, "$")
		v, err := Normalize(vars[k])
		if err != nil {
			v = nil
		}
		values[i] = v
	}
	return names, values
}

func addError(r *Result, seen map[string]bool, msg string) {
	if seen[msg] {
		return
	}
	seen[msg] = true
	r.Errors = append(r.Errors, msg)
}

// formatJQError decorates common runtime errors with a hint about the
// automaton document layout.
func formatJQError(label string, err error) string {
	var haltErr *gojq.HaltError
	if errors.As(err, &haltErr) {
		if haltErr.Value() == nil {
			return fmt.Sprintf("%s: query halted", label)
		}
		return fmt.Sprintf("%s: query halted with: %v", label, haltErr.Value())
	}

	// gojq runtime errors are untyped; match on the message.
	msg := err.Error()
	var hint string
	switch {
	case strings.Contains(msg, "cannot iterate over: null"):
		hint = " (the path may not exist in this document)"
	case strings.Contains(msg, "cannot index") && strings.Contains(msg, "with"):
		hint = " (field not found or wrong type; models expose .states and .transitions)"
	case strings.Contains(msg, "object") && strings.Contains(msg, "cannot be iterated"):
		hint = " (expected array but got object, try removing '[]')"
	}
	return fmt.Sprintf("%s: %s%s", label, msg, hint)
}

func valueKey(v any) string {
	switch val := v.(type) {
	case string:
		return "s:" + val
	case float64:
		return fmt.Sprintf("n:%v", val)
	case int:
		return fmt.Sprintf("n:%v", val)
	case bool:
		return fmt.Sprintf("b:%v", val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("?:%v", val)
		}
		return "j:" + string(b)
	}
}
