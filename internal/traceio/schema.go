package traceio

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SchemaID is the identifier of the trace document schema.
const SchemaID = "https://usestring.dev/alergia/traces.schema.json"

// ValidationError lists the problems found in a trace document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid trace document: " + strings.Join(e.Problems, "; ")
}

// Schema returns the JSON Schema of trace documents.
func Schema() *invopop.Schema {
	r := &invopop.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	s := r.Reflect(&File{})
	s.ID = SchemaID
	s.Title = "Timed trace collection"
	s.Description = "Traces of timed input/output observations used to learn automata."
	return s
}

// SchemaJSON returns Schema as indented JSON.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	data, err := json.Marshal(Schema())
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("unmarshaling schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("traces.json", value); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	s, err := compiler.Compile("traces.json")
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return s, nil
})

// ValidateValue validates a decoded JSON or YAML value against Schema.
func ValidateValue(value any) error {
	s, err := compiled()
	if err != nil {
		return err
	}
	if err := s.Validate(value); err != nil {
		return &ValidationError{Problems: problems(err)}
	}
	return nil
}

// ValidateJSON validates raw JSON against Schema.
func ValidateJSON(data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return &ValidationError{Problems: []string{fmt.Sprintf("invalid JSON: %s", err)}}
	}
	return ValidateValue(value)
}

var printer = message.NewPrinter(language.English)

func problems(err error) []string {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}
	byPath := make(map[string][]string)
	collect(verr, byPath)

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []string
	for _, p := range paths {
		seen := make(map[string]bool)
		for _, msg := range byPath[p] {
			if seen[msg] {
				continue
			}
			seen[msg] = true
			if p != "" {
				out = append(out, fmt.Sprintf("%s: %s", p, msg))
			} else {
				out = append(out, msg)
			}
		}
	}
	return out
}

// collect gathers leaf errors by instance location.
func collect(err *jsonschema.ValidationError, byPath map[string][]string) {
	path := ""
	if len(err.InstanceLocation) > 0 {
		path = "/" + strings.Join(err.InstanceLocation, "/")
	}
	if err.ErrorKind != nil && len(err.Causes) == 0 {
		msg := err.ErrorKind.LocalizedString(printer)
		if !strings.HasPrefix(msg, "$ref ") && !strings.HasPrefix(msg, "doesn't validate with") {
			byPath[path] = append(byPath[path], msg)
		}
	}
	for _, cause := range err.Causes {
		collect(cause, byPath)
	}
}
