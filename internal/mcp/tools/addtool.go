package tools

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// AddTool registers a tool after checking its output type with
// CheckOutputSchema. It panics on a bad output type, so broken tools fail at
// server start instead of on the first call.
func AddTool[In, Out any](srv *sdkmcp.Server, t *sdkmcp.Tool, h sdkmcp.ToolHandlerFor[In, Out]) {
	CheckOutputSchema[Out](t.Name)
	sdkmcp.AddTool(srv, t, h)
}

var (
	rawMessageType = reflect.TypeFor[json.RawMessage]()
	durationType   = reflect.TypeFor[time.Duration]()
)

// CheckOutputSchema panics when the output type T of a tool cannot round-trip
// through the schema the SDK infers for it:
//
//   - nil slices marshal as null where the schema demands an array; tag them
//     omitempty/omitzero or initialize them
//   - json.RawMessage is inferred as an array of integers
//   - time.Duration marshals as bare nanoseconds, so its JSON name must end
//     in _ns
//
// The untyped "any" output is not checked. Inference failures are left for
// the SDK to report.
func CheckOutputSchema[T any](toolName string) {
	rt := reflect.TypeFor[T]()
	if rt == reflect.TypeFor[any]() {
		return
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}

	w := fieldWalker{seen: make(map[reflect.Type]bool)}
	w.walk(rt, nil, "")
	if len(w.problems) > 0 {
		panic(fmt.Sprintf("AddTool %q: output type %s:\n  %s", toolName, rt, strings.Join(w.problems, "\n  ")))
	}

	schema, err := jsonschema.ForType(rt, &jsonschema.ForOptions{})
	if err != nil {
		return
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return
	}
	data, err := json.Marshal(reflect.Zero(rt).Interface())
	if err != nil {
		return
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return
	}
	if err := resolved.Validate(&v); err != nil {
		panic(fmt.Sprintf(
			"AddTool %q: zero value of output type %s fails schema validation: %v\n"+
				"  JSON: %s\n"+
				"  Fix: add `omitempty` to nil-defaulting slice fields, or initialize them to empty slices",
			toolName, rt, err, data,
		))
	}
}

// fieldWalker collects problems found in a type graph.
type fieldWalker struct {
	seen     map[reflect.Type]bool
	problems []string
}

// walk visits t, reached through path; jsonName is the name of the field
// holding t, empty for elements and the root.
func (w *fieldWalker) walk(t reflect.Type, path []string, jsonName string) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	at := strings.Join(path, ".")

	switch t {
	case rawMessageType:
		w.problems = append(w.problems, fmt.Sprintf("%s is json.RawMessage; use any and decode the raw JSON into it", at))
		return
	case durationType:
		if jsonName != "" && !strings.HasSuffix(jsonName, "_ns") {
			w.problems = append(w.problems, fmt.Sprintf("%s is a time.Duration named %q; suffix the JSON name with _ns", at, jsonName))
		}
		return
	}

	if w.seen[t] {
		return
	}
	w.seen[t] = true
	defer delete(w.seen, t)

	switch t.Kind() {
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = f.Name
			}
			w.walk(f.Type, append(path, f.Name), name)
		}
	case reflect.Slice, reflect.Array:
		// Elements inherit the field name: []time.Duration still needs _ns.
		w.walk(t.Elem(), append(path, "[]"), jsonName)
	case reflect.Map:
		w.walk(t.Elem(), append(path, "[value]"), jsonName)
	}
}
