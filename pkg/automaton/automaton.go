// Package automaton provides the read-only model of a deterministic,
// frequency-annotated, probabilistic timed input/output automaton.
//
// States and transitions are addressed by dense integer IDs. Transition
// probabilities are derived from frequencies: a transition's probability is
// its frequency divided by the total frequency of its (state, input) group.
package automaton

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/usestring/alergia-mcp/pkg/stats"
)

var (
	// ErrMalformed is returned when a persisted automaton cannot be loaded.
	ErrMalformed = errors.New("malformed automaton")
	// ErrDuplicateTransition is returned when a (state, input, output) key is used twice.
	ErrDuplicateTransition = errors.New("duplicate transition")
	// ErrNoStates is returned when building an automaton without states.
	ErrNoStates = errors.New("automaton has no states")
)

// State is a state of the automaton together with its observed exit times.
type State struct {
	ID        int             `json:"id"`
	Output    string          `json:"output"`
	ExitTimes []time.Duration `json:"exit_times"`
}

// Transition is a frequency-annotated edge.
type Transition struct {
	ID        int    `json:"id"`
	Source    int    `json:"source"`
	Input     string `json:"input"`
	Target    int    `json:"target"`
	Frequency int    `json:"frequency"`
}

type transitionKey struct {
	state  int
	input  string
	output string
}

type groupKey struct {
	state int
	input string
}

// Automaton is an immutable learned model. It is safe for concurrent use.
type Automaton struct {
	states      []State
	transitions []Transition
	initial     int

	outgoing [][]int
	byKey    map[transitionKey]int
	byGroup  map[groupKey][]int
	totals   map[groupKey]int
	exitAvg  []time.Duration
	inputs   []string
}

// NumStates returns the number of states.
func (a *Automaton) NumStates() int { return len(a.states) }

// NumTransitions returns the number of transitions.
func (a *Automaton) NumTransitions() int { return len(a.transitions) }

// States returns all states ordered by ID. The slice must not be modified.
func (a *Automaton) States() []State { return a.states }

// State returns the state with the given ID.
func (a *Automaton) State(id int) State { return a.states[id] }

// Initial returns the ID of the initial state.
func (a *Automaton) Initial() int { return a.initial }

// Output returns the output label of a state.
func (a *Automaton) Output(state int) string { return a.states[state].Output }

// ExitTimes returns the observed sojourn times of a state.
func (a *Automaton) ExitTimes(state int) []time.Duration { return a.states[state].ExitTimes }

// ExitTime returns the mean sojourn time of a state, zero if none was observed.
func (a *Automaton) ExitTime(state int) time.Duration { return a.exitAvg[state] }

// TransitionByID returns the transition with the given ID.
func (a *Automaton) TransitionByID(id int) Transition { return a.transitions[id] }

// Transitions returns the outgoing transitions of state under input.
func (a *Automaton) Transitions(state int, input string) []Transition {
	ids := a.byGroup[groupKey{state, input}]
	out := make([]Transition, len(ids))
	for i, id := range ids {
		out[i] = a.transitions[id]
	}
	return out
}

// Outgoing returns all outgoing transitions of state in insertion order.
func (a *Automaton) Outgoing(state int) []Transition {
	ids := a.outgoing[state]
	out := make([]Transition, len(ids))
	for i, id := range ids {
		out[i] = a.transitions[id]
	}
	return out
}

// Transition looks up the transition of state for the given input and the
// output of its target.
func (a *Automaton) Transition(state int, input, output string) (Transition, bool) {
	id, ok := a.byKey[transitionKey{state, input, output}]
	if !ok {
		return Transition{}, false
	}
	return a.transitions[id], true
}

// TransitionOutput returns the output of the transition's target.
func (a *Automaton) TransitionOutput(t Transition) string { return a.states[t.Target].Output }

// TotalFrequency returns the summed frequency of all transitions of state under input.
func (a *Automaton) TotalFrequency(state int, input string) int {
	return a.totals[groupKey{state, input}]
}

// StateFrequency returns the summed frequency of all outgoing transitions of state.
func (a *Automaton) StateFrequency(state int) int {
	total := 0
	for _, id := range a.outgoing[state] {
		total += a.transitions[id].Frequency
	}
	return total
}

// Probability returns the probability of taking t from its (state, input) group.
func (a *Automaton) Probability(t Transition) float64 {
	total := a.TotalFrequency(t.Source, t.Input)
	if total == 0 {
		return 0
	}
	return float64(t.Frequency) / float64(total)
}

// ProbabilityRat returns Probability as an exact fraction.
func (a *Automaton) ProbabilityRat(t Transition) *big.Rat {
	total := a.TotalFrequency(t.Source, t.Input)
	if total == 0 {
		return new(big.Rat)
	}
	return big.NewRat(int64(t.Frequency), int64(total))
}

// Inputs returns the sorted input alphabet.
func (a *Automaton) Inputs() []string { return a.inputs }

// Outputs returns the sorted set of state outputs.
func (a *Automaton) Outputs() []string {
	seen := make(map[string]struct{}, len(a.states))
	for _, s := range a.states {
		seen[s.Output] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for o := range seen {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

// HasInput reports whether input belongs to the alphabet.
func (a *Automaton) HasInput(input string) bool {
	i := sort.SearchStrings(a.inputs, input)
	return i < len(a.inputs) && a.inputs[i] == input
}

// StatesWithOutputs returns the set of states whose output is one of outputs.
func (a *Automaton) StatesWithOutputs(outputs ...string) *roaring.Bitmap {
	want := make(map[string]struct{}, len(outputs))
	for _, o := range outputs {
		want[o] = struct{}{}
	}
	set := roaring.New()
	for _, s := range a.states {
		if _, ok := want[s.Output]; ok {
			set.Add(uint32(s.ID))
		}
	}
	return set
}

// AllStates returns the set of all state IDs.
func (a *Automaton) AllStates() *roaring.Bitmap {
	set := roaring.New()
	set.AddRange(0, uint64(len(a.states)))
	return set
}

// BackwardReach returns every state that can reach one of targets using
// only the given inputs, targets included. Transitions with zero frequency
// are ignored.
func (a *Automaton) BackwardReach(targets *roaring.Bitmap, inputs []string) *roaring.Bitmap {
	allowed := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		allowed[in] = struct{}{}
	}

	preds := make([][]int, len(a.states))
	for _, t := range a.transitions {
		if _, ok := allowed[t.Input]; !ok || t.Frequency == 0 {
			continue
		}
		preds[t.Target] = append(preds[t.Target], t.Source)
	}

	reach := targets.Clone()
	queue := make([]int, 0, reach.GetCardinality())
	it := reach.Iterator()
	for it.HasNext() {
		queue = append(queue, int(it.Next()))
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, p := range preds[s] {
			if reach.CheckedAdd(uint32(p)) {
				queue = append(queue, p)
			}
		}
	}
	return reach
}

// Builder assembles an Automaton. The first error encountered is reported by Build.
type Builder struct {
	a   *Automaton
	err error
}

// NewBuilder returns an empty builder. The first added state is initial
// unless SetInitial is called.
func NewBuilder() *Builder {
	return &Builder{a: &Automaton{
		byKey:   make(map[transitionKey]int),
		byGroup: make(map[groupKey][]int),
		totals:  make(map[groupKey]int),
	}}
}

// AddState appends a state and returns its ID.
func (b *Builder) AddState(output string, exitTimes []time.Duration) int {
	id := len(b.a.states)
	times := make([]time.Duration, len(exitTimes))
	copy(times, exitTimes)
	b.a.states = append(b.a.states, State{ID: id, Output: output, ExitTimes: times})
	b.a.outgoing = append(b.a.outgoing, nil)
	return id
}

// SetInitial marks state as initial.
func (b *Builder) SetInitial(state int) {
	b.a.initial = state
}

// AddTransition appends a transition and returns its ID.
func (b *Builder) AddTransition(source int, input string, target int, frequency int) int {
	if b.err != nil {
		return -1
	}
	if !b.valid(source) || !b.valid(target) {
		b.err = fmt.Errorf("transition %d -%s-> %d references unknown state", source, input, target)
		return -1
	}
	if frequency < 0 {
		b.err = fmt.Errorf("transition %d -%s-> %d has negative frequency %d", source, input, target, frequency)
		return -1
	}
	key := transitionKey{source, input, b.a.states[target].Output}
	if _, dup := b.a.byKey[key]; dup {
		b.err = fmt.Errorf("%w: state %d input %q output %q", ErrDuplicateTransition, source, input, key.output)
		return -1
	}

	id := len(b.a.transitions)
	b.a.transitions = append(b.a.transitions, Transition{
		ID: id, Source: source, Input: input, Target: target, Frequency: frequency,
	})
	b.a.byKey[key] = id
	g := groupKey{source, input}
	b.a.byGroup[g] = append(b.a.byGroup[g], id)
	b.a.totals[g] += frequency
	b.a.outgoing[source] = append(b.a.outgoing[source], id)
	return id
}

func (b *Builder) valid(state int) bool {
	return state >= 0 && state < len(b.a.states)
}

// Build finalizes the automaton. The builder must not be used afterwards.
func (b *Builder) Build() (*Automaton, error) {
	if b.err != nil {
		return nil, b.err
	}
	a := b.a
	if len(a.states) == 0 {
		return nil, ErrNoStates
	}
	if a.initial < 0 || a.initial >= len(a.states) {
		return nil, fmt.Errorf("initial state %d out of range", a.initial)
	}

	a.exitAvg = make([]time.Duration, len(a.states))
	for i, s := range a.states {
		a.exitAvg[i] = stats.AverageOrZero(s.ExitTimes)
	}

	seen := make(map[string]struct{})
	for _, t := range a.transitions {
		seen[t.Input] = struct{}{}
	}
	a.inputs = make([]string, 0, len(seen))
	for in := range seen {
		a.inputs = append(a.inputs, in)
	}
	sort.Strings(a.inputs)

	b.a = nil
	return a, nil
}
