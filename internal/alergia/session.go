package alergia

import (
	"errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/usestring/alergia-mcp/internal/pta"
	"github.com/usestring/alergia-mcp/pkg/stats"
)

// ErrInvariant reports a violated merge invariant. It indicates a bug.
var ErrInvariant = errors.New("learner invariant violated")

type state struct {
	node   int   // originating prefix-tree node
	nodes  []int // prefix-tree nodes folded into this state
	output string

	access      *accessString // nil until promoted
	accessTrans int           // -1 for the root

	out    []int // live outgoing transitions, ordered
	red    bool
	merged bool
}

type transition struct {
	source int
	target int
	input  string
	// parts lists the prefix-tree transitions folded into this one. The first
	// is the one it originated from.
	parts     []int
	frequency int
	original  int
	live      bool
}

type edgeKey struct {
	state  int
	input  string
	output string
}

// session holds the mutable merge state of one learner run.
type session struct {
	cfg  Config
	tree *pta.Tree

	states []state
	trans  []transition
	index  map[edgeKey]int

	red  []int
	blue *frontier

	merges     int
	promotions int
}

func newSession(tree *pta.Tree, cfg Config) *session {
	s := &session{
		cfg:    cfg,
		tree:   tree,
		states: make([]state, tree.NumNodes()),
		trans:  make([]transition, tree.NumTransitions()),
		index:  make(map[edgeKey]int, tree.NumTransitions()),
	}
	for id := range s.states {
		n := tree.Node(id)
		s.states[id] = state{
			node:        id,
			nodes:       []int{id},
			output:      n.Output,
			accessTrans: -1,
			out:         slices.Clone(n.Out),
		}
	}
	for id := range s.trans {
		t := tree.Transition(id)
		s.trans[id] = transition{
			source:    t.Source,
			target:    t.Target,
			input:     t.Input,
			parts:     []int{id},
			frequency: t.Frequency,
			original:  t.Frequency,
			live:      true,
		}
		s.index[edgeKey{t.Source, t.Input, s.states[t.Target].output}] = id
	}
	s.blue = newFrontier(cfg.Order, len(s.states), func(id int) *accessString { return s.states[id].access })
	return s
}

func (s *session) lookup(st int, input, output string) (int, bool) {
	id, ok := s.index[edgeKey{st, input, output}]
	return id, ok
}

func (s *session) key(t int) edgeKey {
	tr := &s.trans[t]
	return edgeKey{tr.source, tr.input, s.states[tr.target].output}
}

func (s *session) detach(t int) {
	tr := &s.trans[t]
	delete(s.index, s.key(t))
	src := &s.states[tr.source]
	if i := slices.Index(src.out, t); i >= 0 {
		src.out = slices.Delete(src.out, i, i+1)
	}
}

func (s *session) attach(t int) error {
	k := s.key(t)
	if other, ok := s.index[k]; ok && other != t {
		return fmt.Errorf("%w: state %d already has a transition for (%s, %s)", ErrInvariant, k.state, k.input, k.output)
	}
	s.index[k] = t
	s.states[k.state].out = append(s.states[k.state].out, t)
	return nil
}

// foldTransition merges transition src into dst.
func (s *session) foldTransition(src, dst int) error {
	if src == dst {
		return fmt.Errorf("%w: transition %d merged into itself", ErrInvariant, src)
	}
	a, b := &s.trans[src], &s.trans[dst]
	if a.input != b.input {
		return fmt.Errorf("%w: merging transitions with inputs %q and %q", ErrInvariant, a.input, b.input)
	}
	s.detach(src)
	b.parts = append(b.parts, a.parts...)
	b.frequency += a.frequency
	a.live = false
	return nil
}

// moveTransition re-targets t to run from source to target.
func (s *session) moveTransition(t, source, target int) error {
	tr := &s.trans[t]
	if tr.source == source && tr.target == target {
		return fmt.Errorf("%w: transition %d moved onto itself", ErrInvariant, t)
	}
	s.detach(t)
	tr.source = source
	tr.target = target
	return s.attach(t)
}

// foldState merges the evidence of src into dst.
func (s *session) foldState(src, dst int) error {
	if src == dst {
		return fmt.Errorf("%w: state %d merged into itself", ErrInvariant, src)
	}
	a, b := &s.states[src], &s.states[dst]
	if a.output != b.output {
		return fmt.Errorf("%w: merging states with outputs %q and %q", ErrInvariant, a.output, b.output)
	}
	b.nodes = append(b.nodes, a.nodes...)
	a.merged = true
	return nil
}

func (s *session) promote(st int) error {
	if s.states[st].red {
		return fmt.Errorf("%w: state %d promoted twice", ErrInvariant, st)
	}
	s.states[st].red = true
	s.red = append(s.red, st)
	s.promotions++
	return s.promoteSuccessors(st)
}

func (s *session) promoteSuccessors(st int) error {
	parent := s.states[st].access
	for _, t := range s.states[st].out {
		tr := &s.trans[t]
		succ := &s.states[tr.target]
		if succ.access != nil {
			continue
		}
		if succ.red {
			return fmt.Errorf("%w: red state %d has no access string", ErrInvariant, tr.target)
		}
		succ.access = parent.extend(tr.input, succ.output)
		succ.accessTrans = t
		s.blue.push(tr.target)
	}
	return nil
}

// sample summarizes the timing evidence of a state.
type sample struct {
	avg   time.Duration
	count int
}

func (s *session) timing(st int) sample {
	if !s.cfg.AnalyzeMergedSamples {
		ts := s.tree.Node(s.states[st].node).Timings
		return sample{avg: stats.AverageOrZero(ts), count: len(ts)}
	}
	sum := new(big.Int)
	count := 0
	for _, n := range s.states[st].nodes {
		ts := s.tree.Node(n).Timings
		sum.Add(sum, stats.SumNanoseconds(ts))
		count += len(ts)
	}
	if count == 0 {
		return sample{}
	}
	return sample{avg: stats.FromNanoseconds(sum.Quo(sum, big.NewInt(int64(count)))), count: count}
}

func (s *session) frequency(t int) int {
	if s.cfg.AnalyzeMergedSamples {
		return s.trans[t].frequency
	}
	return s.trans[t].original
}

func (s *session) totalFrequency(st int) int {
	total := 0
	for _, t := range s.states[st].out {
		total += s.frequency(t)
	}
	return total
}

func (s *session) inputFrequency(st int, input string) int {
	total := 0
	for _, t := range s.states[st].out {
		if s.trans[t].input == input {
			total += s.frequency(t)
		}
	}
	return total
}
