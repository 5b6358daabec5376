// Package analysis replays traces on learned automata: path matching, Viterbi
// decoding, revision scores and mean hitting times.
package analysis

import (
	"errors"
	"fmt"

	"github.com/usestring/alergia-mcp/pkg/automaton"
	"github.com/usestring/alergia-mcp/pkg/trace"
)

// ErrAlphabetMismatch is returned when a trace uses inputs the model has never seen.
var ErrAlphabetMismatch = errors.New("trace input alphabet does not match automaton")

// Path is a run of an automaton. States has one more element than Transitions.
type Path struct {
	States      []int                  `json:"states"`
	Transitions []automaton.Transition `json:"transitions"`
}

// Last returns the final state of the path.
func (p Path) Last() int { return p.States[len(p.States)-1] }

func (p Path) extend(t automaton.Transition) Path {
	states := make([]int, len(p.States), len(p.States)+1)
	copy(states, p.States)
	ts := make([]automaton.Transition, len(p.Transitions), len(p.Transitions)+1)
	copy(ts, p.Transitions)
	return Path{States: append(states, t.Target), Transitions: append(ts, t)}
}

// startStates returns the states whose output matches the trace head.
func startStates(a *automaton.Automaton, tr trace.Trace) []int {
	var out []int
	for _, s := range a.States() {
		if s.Output == tr.Head {
			out = append(out, s.ID)
		}
	}
	return out
}

// MatchingPaths returns every path that replays tr, starting from any state
// whose output equals the trace head.
func MatchingPaths(a *automaton.Automaton, tr trace.Trace) []Path {
	var paths []Path
	for _, s := range startStates(a, tr) {
		paths = append(paths, Path{States: []int{s}})
	}
	for _, step := range tr.Steps {
		next := paths[:0:0]
		for _, p := range paths {
			if t, ok := a.Transition(p.Last(), step.Input, step.Output); ok {
				next = append(next, p.extend(t))
			}
		}
		paths = next
		if len(paths) == 0 {
			return nil
		}
	}
	return paths
}

// RootedPath replays tr from the initial state.
func RootedPath(a *automaton.Automaton, tr trace.Trace) (Path, bool) {
	if a.Output(a.Initial()) != tr.Head {
		return Path{}, false
	}
	p := Path{States: []int{a.Initial()}}
	for _, step := range tr.Steps {
		t, ok := a.Transition(p.Last(), step.Input, step.Output)
		if !ok {
			return Path{}, false
		}
		p = p.extend(t)
	}
	return p, true
}

// CheckAlphabet verifies that every input of traces is known to a.
func CheckAlphabet(a *automaton.Automaton, traces []trace.Trace) error {
	for i, tr := range traces {
		for _, in := range tr.Inputs() {
			if !a.HasInput(in) {
				name := tr.Name
				if name == "" {
					name = fmt.Sprintf("#%d", i)
				}
				return fmt.Errorf("%w: trace %s uses input %q", ErrAlphabetMismatch, name, in)
			}
		}
	}
	return nil
}
