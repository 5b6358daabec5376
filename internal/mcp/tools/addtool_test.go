package tools

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckOutputSchema(t *testing.T) {
	type inner struct {
		Schema json.RawMessage `json:"schema,omitempty"`
	}

	tests := []struct {
		name   string
		check  func()
		panics bool
	}{
		{name: "nil slice", panics: true, check: func() {
			type out struct {
				States []int `json:"states"`
			}
			CheckOutputSchema[out]("nil_slice")
		}},
		{name: "omitempty slice", check: func() {
			type out struct {
				States []int `json:"states,omitempty"`
			}
			CheckOutputSchema[out]("omitempty_slice")
		}},
		{name: "omitzero slice", check: func() {
			type out struct {
				States []int `json:"states,omitzero"`
			}
			CheckOutputSchema[out]("omitzero_slice")
		}},
		{name: "pointer to slice", check: func() {
			type out struct {
				States *[]int `json:"states"`
			}
			CheckOutputSchema[out]("pointer_slice")
		}},
		{name: "untyped any", check: func() {
			CheckOutputSchema[any]("any")
		}},
		{name: "raw message", panics: true, check: func() {
			type out struct {
				Model json.RawMessage `json:"model,omitempty"`
			}
			CheckOutputSchema[out]("raw_message")
		}},
		{name: "nested raw message", panics: true, check: func() {
			type out struct {
				Nested inner `json:"nested"`
			}
			CheckOutputSchema[out]("nested_raw_message")
		}},
		{name: "duration with unit", check: func() {
			type out struct {
				Elapsed time.Duration   `json:"elapsed_ns"`
				Times   []time.Duration `json:"times_ns,omitempty"`
			}
			CheckOutputSchema[out]("duration_ns")
		}},
		{name: "duration without unit", panics: true, check: func() {
			type out struct {
				Elapsed time.Duration `json:"elapsed"`
			}
			CheckOutputSchema[out]("duration_bare")
		}},
		{name: "duration slice without unit", panics: true, check: func() {
			type out struct {
				Times []time.Duration `json:"times,omitempty"`
			}
			CheckOutputSchema[out]("duration_slice")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.panics {
				assert.Panics(t, tt.check)
			} else {
				assert.NotPanics(t, tt.check)
			}
		})
	}
}
