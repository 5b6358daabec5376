// Package pta builds timed frequency prefix trees from traces.
//
// Nodes and transitions are stored in flat tables and addressed by index.
// The tree only grows: adding a trace appends nodes, transitions, frequency
// counts and sojourn samples but never removes anything.
package pta

import (
	"errors"
	"fmt"
	"time"

	"github.com/usestring/alergia-mcp/pkg/automaton"
	"github.com/usestring/alergia-mcp/pkg/trace"
)

var (
	// ErrDivergentRoot is returned when a trace's head differs from the root output.
	ErrDivergentRoot = errors.New("divergent initial state output")
	// ErrNoTraces is returned when building a tree from an empty collection.
	ErrNoTraces = errors.New("no traces")
)

// Root is the index of the root node.
const Root = 0

// Node is a prefix-tree node.
type Node struct {
	Output string
	// Timings holds the sojourn time of every step that left this node.
	Timings []time.Duration
	// Access is the transition leading to this node, -1 for the root.
	Access int
	// Out lists outgoing transitions in creation order.
	Out []int
}

// Transition is a prefix-tree edge.
type Transition struct {
	Source    int
	Input     string
	Target    int
	Frequency int
}

type edgeKey struct {
	node   int
	input  string
	output string
}

// Tree is a timed frequency prefix tree.
type Tree struct {
	nodes       []Node
	transitions []Transition
	index       map[edgeKey]int
	traces      int
}

// New returns a tree whose root emits rootOutput.
func New(rootOutput string) *Tree {
	return &Tree{
		nodes: []Node{{Output: rootOutput, Access: -1}},
		index: make(map[edgeKey]int),
	}
}

// FromTraces builds a tree from traces. The first trace fixes the root output.
func FromTraces(traces []trace.Trace) (*Tree, error) {
	if len(traces) == 0 {
		return nil, ErrNoTraces
	}
	t := New(traces[0].Head)
	for i, tr := range traces {
		if err := t.Add(tr); err != nil {
			return nil, fmt.Errorf("trace %d: %w", i, err)
		}
	}
	return t, nil
}

// Add records a trace.
func (t *Tree) Add(tr trace.Trace) error {
	if tr.Head != t.nodes[Root].Output {
		return fmt.Errorf("%w: expected %q, got %q", ErrDivergentRoot, t.nodes[Root].Output, tr.Head)
	}
	if err := tr.Validate(); err != nil {
		return err
	}

	node := Root
	for _, step := range tr.Steps {
		t.nodes[node].Timings = append(t.nodes[node].Timings, step.Elapsed)
		id := t.child(node, step.Input, step.Output)
		t.transitions[id].Frequency++
		node = t.transitions[id].Target
	}
	t.traces++
	return nil
}

func (t *Tree) child(node int, input, output string) int {
	key := edgeKey{node, input, output}
	if id, ok := t.index[key]; ok {
		return id
	}
	id := len(t.transitions)
	target := len(t.nodes)
	t.nodes = append(t.nodes, Node{Output: output, Access: id})
	t.transitions = append(t.transitions, Transition{Source: node, Input: input, Target: target})
	t.nodes[node].Out = append(t.nodes[node].Out, id)
	t.index[key] = id
	return id
}

// RootOutput returns the output of the root node.
func (t *Tree) RootOutput() string { return t.nodes[Root].Output }

// NumNodes returns the number of nodes.
func (t *Tree) NumNodes() int { return len(t.nodes) }

// NumTransitions returns the number of transitions.
func (t *Tree) NumTransitions() int { return len(t.transitions) }

// NumTraces returns the number of traces added.
func (t *Tree) NumTraces() int { return t.traces }

// Node returns the node with the given index. The returned value shares its
// slices with the tree.
func (t *Tree) Node(id int) Node { return t.nodes[id] }

// Transition returns the transition with the given index.
func (t *Tree) Transition(id int) Transition { return t.transitions[id] }

// Lookup returns the transition of node for (input, output).
func (t *Tree) Lookup(node int, input, output string) (int, bool) {
	id, ok := t.index[edgeKey{node, input, output}]
	return id, ok
}

// Automaton exposes the unmerged tree as a model, one state per node.
func (t *Tree) Automaton() (*automaton.Automaton, error) {
	b := automaton.NewBuilder()
	for _, n := range t.nodes {
		b.AddState(n.Output, n.Timings)
	}
	b.SetInitial(Root)
	for _, tr := range t.transitions {
		b.AddTransition(tr.Source, tr.Input, tr.Target, tr.Frequency)
	}
	return b.Build()
}
