package automaton

import (
	"encoding/json"
	"fmt"
	"time"
)

// Document is the JSON representation of an automaton.
type Document struct {
	Initial     int                  `json:"initial"`
	States      []StateDocument      `json:"states"`
	Transitions []TransitionDocument `json:"transitions"`
}

// StateDocument describes one state in a Document.
type StateDocument struct {
	ID        int             `json:"id"`
	Output    string          `json:"output"`
	ExitTimes []time.Duration `json:"exit_times_ns"`
	MeanExit  time.Duration   `json:"mean_exit_ns"`
	Frequency int             `json:"frequency"`
}

// TransitionDocument describes one transition in a Document. Output and
// Probability are derived and ignored when loading.
type TransitionDocument struct {
	Source      int     `json:"source"`
	Input       string  `json:"input"`
	Output      string  `json:"output"`
	Target      int     `json:"target"`
	Frequency   int     `json:"frequency"`
	Probability float64 `json:"probability"`
}

// Document converts the automaton to its JSON representation.
func (a *Automaton) Document() *Document {
	doc := &Document{
		Initial:     a.initial,
		States:      make([]StateDocument, len(a.states)),
		Transitions: make([]TransitionDocument, len(a.transitions)),
	}
	for i, s := range a.states {
		times := s.ExitTimes
		if times == nil {
			times = []time.Duration{}
		}
		doc.States[i] = StateDocument{
			ID:        s.ID,
			Output:    s.Output,
			ExitTimes: times,
			MeanExit:  a.exitAvg[i],
			Frequency: a.StateFrequency(i),
		}
	}
	for i, t := range a.transitions {
		doc.Transitions[i] = TransitionDocument{
			Source:      t.Source,
			Input:       t.Input,
			Output:      a.TransitionOutput(t),
			Target:      t.Target,
			Frequency:   t.Frequency,
			Probability: a.Probability(t),
		}
	}
	return doc
}

// FromDocument rebuilds an automaton. State IDs must be dense and ordered.
func FromDocument(doc *Document) (*Automaton, error) {
	b := NewBuilder()
	for i, s := range doc.States {
		if s.ID != i {
			return nil, fmt.Errorf("%w: state at position %d has id %d", ErrMalformed, i, s.ID)
		}
		b.AddState(s.Output, s.ExitTimes)
	}
	b.SetInitial(doc.Initial)
	for _, t := range doc.Transitions {
		b.AddTransition(t.Source, t.Input, t.Target, t.Frequency)
	}
	a, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return a, nil
}

// MarshalJSON implements json.Marshaler.
func (a *Automaton) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Document())
}

// ParseJSON loads an automaton from its JSON representation.
func ParseJSON(data []byte) (*Automaton, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return FromDocument(&doc)
}
