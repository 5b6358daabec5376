package alergia

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/usestring/alergia-mcp/pkg/stats"
)

type compatTask struct {
	red, blue int
	freqEps   float64
	timeEps   float64
	tail      int
	bounded   bool
}

// compatible reports whether the subtree rooted at blue can be folded onto
// red. It only reads session state and is safe to call concurrently.
func (s *session) compatible(red, blue int) bool {
	root := compatTask{
		red:     red,
		blue:    blue,
		freqEps: s.cfg.FrequencySignificance,
		timeEps: s.cfg.TimingSignificance,
	}
	if s.cfg.TailLength != nil {
		root.tail = *s.cfg.TailLength
		root.bounded = true
	}

	stack := []compatTask{root}
	for len(stack) > 0 {
		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if s.states[task.red].output != s.states[task.blue].output {
			return false
		}
		if (!task.bounded || task.tail != 0) && !s.stochasticallyCompatible(task) {
			return false
		}

		children := make([]compatTask, 0, len(s.states[task.blue].out))
		s.pairs(task.blue, task.red, func(bt, rt int) {
			child := compatTask{
				red:     s.trans[rt].target,
				blue:    s.trans[bt].target,
				freqEps: task.freqEps * s.cfg.FrequencyDecay,
				timeEps: task.timeEps * s.cfg.TimingDecay,
				bounded: task.bounded,
				tail:    max(task.tail-1, 0),
			}
			children = append(children, child)
		})
		// push in reverse so that children are explored in transition order
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return true
}

func (s *session) stochasticallyCompatible(task compatTask) bool {
	rt, bt := s.timing(task.red), s.timing(task.blue)
	if !stats.FTest(rt.avg, s.totalFrequency(task.red), bt.avg, s.totalFrequency(task.blue), task.timeEps) {
		return false
	}

	ok := true
	s.pairs(task.blue, task.red, func(bt, rt int) {
		if !ok {
			return
		}
		input := s.trans[rt].input
		ok = stats.HoeffdingTest(
			s.frequency(rt), s.inputFrequency(task.red, input),
			s.frequency(bt), s.inputFrequency(task.blue, input),
			task.freqEps,
		)
	})
	return ok
}

// pairs calls fn for every transition of from that has a counterpart in to
// with the same input and target output.
func (s *session) pairs(from, to int, fn func(fromT, toT int)) {
	for _, ft := range s.states[from].out {
		tr := &s.trans[ft]
		if tt, ok := s.lookup(to, tr.input, s.states[tr.target].output); ok {
			fn(ft, tt)
		}
	}
}

var errCompatibleFound = errors.New("compatible red state found")

// findCompatibleRed returns the red state blue should be merged into. In
// deterministic mode it is the first compatible red state in promotion order,
// otherwise any compatible one.
func (s *session) findCompatibleRed(ctx context.Context, blue int) (int, bool, error) {
	reds := s.red
	if !s.cfg.Parallel || len(reds) < 2 {
		for _, r := range reds {
			if s.compatible(r, blue) {
				return r, true, nil
			}
		}
		return -1, false, nil
	}

	none := int64(len(reds))
	var best atomic.Int64
	best.Store(none)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.workers())
	for i, r := range reds {
		if int64(i) >= best.Load() {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil || int64(i) >= best.Load() {
				return nil
			}
			if !s.compatible(r, blue) {
				return nil
			}
			if !s.cfg.Deterministic {
				best.CompareAndSwap(none, int64(i))
				return errCompatibleFound
			}
			for {
				cur := best.Load()
				if int64(i) >= cur || best.CompareAndSwap(cur, int64(i)) {
					return nil
				}
			}
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, errCompatibleFound) {
		return -1, false, err
	}
	if idx := best.Load(); idx < none {
		return reds[idx], true, nil
	}
	return -1, false, ctx.Err()
}
