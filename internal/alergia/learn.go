// Package alergia implements RTI/O-ALERGIA, a state-merging learner for
// timed probabilistic input/output automata.
//
// The learner starts from the timed frequency prefix tree of a set of traces.
// States are colored red (kept), blue (frontier candidates) or left unpromoted.
// Each blue state is either merged into the first red state whose subtree
// passes output, Hoeffding and F-test compatibility checks, or promoted to
// red. The result contains only red states.
package alergia

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/usestring/alergia-mcp/internal/pta"
	"github.com/usestring/alergia-mcp/pkg/automaton"
	"github.com/usestring/alergia-mcp/pkg/trace"
)

// ErrNoTraces is returned when learning from an empty trace collection.
var ErrNoTraces = pta.ErrNoTraces

// Stats summarizes a learner run.
type Stats struct {
	TreeNodes  int           `json:"tree_nodes"`
	Traces     int           `json:"traces"`
	States     int           `json:"states"`
	Merges     int           `json:"merges"`
	Promotions int           `json:"promotions"` // includes the root; equals States
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// Result is a learned model with run statistics.
type Result struct {
	Automaton *automaton.Automaton
	Stats     Stats
}

// Learn builds the prefix tree of traces and merges it.
func Learn(ctx context.Context, traces []trace.Trace, cfg Config) (*Result, error) {
	if len(traces) == 0 {
		return nil, ErrNoTraces
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tree, err := pta.FromTraces(traces)
	if err != nil {
		return nil, err
	}
	return LearnTree(ctx, tree, cfg)
}

// LearnTree merges an existing prefix tree. The tree is not modified.
func LearnTree(ctx context.Context, tree *pta.Tree, cfg Config) (*Result, error) {
	if tree.NumTraces() == 0 {
		return nil, ErrNoTraces
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	s := newSession(tree, cfg)
	root := &s.states[pta.Root]
	root.access = rootAccess(root.output)
	if err := s.promote(pta.Root); err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		blue, ok := s.blue.pop()
		if !ok {
			break
		}
		red, found, err := s.findCompatibleRed(ctx, blue)
		if err != nil {
			return nil, err
		}
		if found {
			slog.Debug("merging state",
				slog.String("blue", s.states[blue].access.String()),
				slog.String("red", s.states[red].access.String()))
			err = s.merge(red, blue)
		} else {
			slog.Debug("promoting state", slog.String("blue", s.states[blue].access.String()))
			err = s.promote(blue)
		}
		if err != nil {
			return nil, err
		}
	}

	a, err := s.automaton()
	if err != nil {
		return nil, err
	}
	res := &Result{
		Automaton: a,
		Stats: Stats{
			TreeNodes:  tree.NumNodes(),
			Traces:     tree.NumTraces(),
			States:     a.NumStates(),
			Merges:     s.merges,
			Promotions: s.promotions,
			Elapsed:    time.Since(start),
		},
	}
	slog.Info("learned automaton",
		slog.Int("traces", res.Stats.Traces),
		slog.Int("tree_nodes", res.Stats.TreeNodes),
		slog.Int("states", res.Stats.States),
		slog.Int("merges", res.Stats.Merges),
		slog.Duration("elapsed", res.Stats.Elapsed))
	return res, nil
}

// automaton exports the red states in promotion order.
func (s *session) automaton() (*automaton.Automaton, error) {
	ids := make(map[int]int, len(s.red))
	b := automaton.NewBuilder()
	for _, r := range s.red {
		var exits []time.Duration
		for _, n := range s.states[r].nodes {
			exits = append(exits, s.tree.Node(n).Timings...)
		}
		ids[r] = b.AddState(s.states[r].output, exits)
	}
	b.SetInitial(ids[pta.Root])

	for _, r := range s.red {
		for _, t := range s.states[r].out {
			tr := &s.trans[t]
			target, ok := ids[tr.target]
			if !ok {
				return nil, fmt.Errorf("%w: transition from red state %d leads to non-red state %d", ErrInvariant, r, tr.target)
			}
			b.AddTransition(ids[r], tr.input, target, tr.frequency)
		}
	}
	return b.Build()
}
