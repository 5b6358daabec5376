// Package trace defines timed input/output traces, the unit of observation
// the learner and the analyses consume.
package trace

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// DefaultRoot is the synthetic output prepended by Rooted.
const DefaultRoot = "$init"

// ErrNegativeDuration is returned by Validate for steps with a negative elapsed time.
var ErrNegativeDuration = errors.New("negative step duration")

// Step is one observation: the time elapsed since the previous event, the
// input that was active and the output that was observed.
type Step struct {
	Elapsed time.Duration `json:"elapsed"`
	Input   string        `json:"input"`
	Output  string        `json:"output"`
}

// Trace is an initial output followed by timed input/output steps.
type Trace struct {
	Name  string `json:"name,omitempty"`
	Head  string `json:"head"`
	Steps []Step `json:"steps"`
}

// New creates a trace from a head output and steps.
func New(head string, steps ...Step) Trace {
	return Trace{Head: head, Steps: steps}
}

// Len returns the number of steps.
func (t Trace) Len() int {
	return len(t.Steps)
}

// Validate checks that all durations are non-negative.
func (t Trace) Validate() error {
	for i, s := range t.Steps {
		if s.Elapsed < 0 {
			return fmt.Errorf("step %d of trace %q: %w", i, t.Name, ErrNegativeDuration)
		}
	}
	return nil
}

// Outputs returns the head followed by every step output.
func (t Trace) Outputs() []string {
	out := make([]string, 0, len(t.Steps)+1)
	out = append(out, t.Head)
	for _, s := range t.Steps {
		out = append(out, s.Output)
	}
	return out
}

// Inputs returns the input of every step.
func (t Trace) Inputs() []string {
	in := make([]string, len(t.Steps))
	for i, s := range t.Steps {
		in[i] = s.Input
	}
	return in
}

// Times returns the elapsed duration of every step.
func (t Trace) Times() []time.Duration {
	ts := make([]time.Duration, len(t.Steps))
	for i, s := range t.Steps {
		ts[i] = s.Elapsed
	}
	return ts
}

// Prefix returns the trace truncated to its first n steps. The step slice is
// shared with the receiver.
func (t Trace) Prefix(n int) Trace {
	if n > len(t.Steps) {
		n = len(t.Steps)
	}
	return Trace{Name: t.Name, Head: t.Head, Steps: t.Steps[:n:n]}
}

// Prefixes returns all prefixes ordered by length, from the bare head up to
// the full trace.
func (t Trace) Prefixes() []Trace {
	ps := make([]Trace, 0, len(t.Steps)+1)
	for n := 0; n <= len(t.Steps); n++ {
		ps = append(ps, t.Prefix(n))
	}
	return ps
}

// AbsoluteTimes returns, for every step, the time since the head was observed.
func (t Trace) AbsoluteTimes() []time.Duration {
	abs := make([]time.Duration, len(t.Steps))
	var running time.Duration
	for i, s := range t.Steps {
		running += s.Elapsed
		abs[i] = running
	}
	return abs
}

// End returns the absolute time of the last step, zero for a bare head.
func (t Trace) End() time.Duration {
	var running time.Duration
	for _, s := range t.Steps {
		running += s.Elapsed
	}
	return running
}

// Rooted returns a copy of the trace with root as head. The former head
// becomes the first step, reached after zero time via input.
func (t Trace) Rooted(root, input string) Trace {
	if root == "" {
		root = DefaultRoot
	}
	steps := make([]Step, 0, len(t.Steps)+1)
	steps = append(steps, Step{Input: input, Output: t.Head})
	steps = append(steps, t.Steps...)
	return Trace{Name: t.Name, Head: root, Steps: steps}
}

// RootAll roots every trace in traces.
func RootAll(traces []Trace, root, input string) []Trace {
	out := make([]Trace, len(traces))
	for i, t := range traces {
		out[i] = t.Rooted(root, input)
	}
	return out
}

// InputAlphabet returns the sorted set of inputs used across traces.
func InputAlphabet(traces []Trace) []string {
	seen := make(map[string]struct{})
	for _, t := range traces {
		for _, s := range t.Steps {
			seen[s.Input] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// OutputAlphabet returns the sorted set of outputs used across traces.
func OutputAlphabet(traces []Trace) []string {
	seen := make(map[string]struct{})
	for _, t := range traces {
		seen[t.Head] = struct{}{}
		for _, s := range t.Steps {
			seen[s.Output] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
