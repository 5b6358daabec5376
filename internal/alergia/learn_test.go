package alergia

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/alergia-mcp/internal/pta"
	"github.com/usestring/alergia-mcp/pkg/automaton"
	"github.com/usestring/alergia-mcp/pkg/trace"
)

const day = 24 * time.Hour

func repeat[T any](v T, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func steps(inputs []string, times []time.Duration, outputs []string) []trace.Step {
	out := make([]trace.Step, len(times))
	for i := range times {
		out[i] = trace.Step{Elapsed: times[i], Input: inputs[i], Output: outputs[i]}
	}
	return out
}

func learn(t *testing.T, cfg Config, traces ...trace.Trace) *automaton.Automaton {
	t.Helper()
	res, err := Learn(context.Background(), traces, cfg)
	require.NoError(t, err)
	return res.Automaton
}

// follow asserts a transition exists and returns it.
func follow(t *testing.T, a *automaton.Automaton, state int, input, output string, freq int, prob float64) int {
	t.Helper()
	tr, ok := a.Transition(state, input, output)
	require.True(t, ok, "missing %d --%s/%s-->", state, input, output)
	assert.Equal(t, freq, tr.Frequency)
	assert.InDelta(t, prob, a.Probability(tr), 1e-9)
	return tr.Target
}

func assertState(t *testing.T, a *automaton.Automaton, state int, output string, exit time.Duration, exits []time.Duration) {
	t.Helper()
	assert.Equal(t, output, a.Output(state))
	assert.Equal(t, exit, a.ExitTime(state))
	assert.ElementsMatch(t, exits, a.ExitTimes(state))
}

func TestLearn_singleWord(t *testing.T) {
	tr := trace.New("z", steps(
		[]string{"a", "b", "c"},
		[]time.Duration{time.Second, 2 * time.Second, 3 * time.Second},
		[]string{"i", "j", "k"})...)
	a := learn(t, DefaultConfig(), tr)

	require.Equal(t, 4, a.NumStates())
	s := a.Initial()
	assertState(t, a, s, "z", time.Second, []time.Duration{time.Second})
	s = follow(t, a, s, "a", "i", 1, 1.0)
	assertState(t, a, s, "i", 2*time.Second, []time.Duration{2 * time.Second})
	s = follow(t, a, s, "b", "j", 1, 1.0)
	assertState(t, a, s, "j", 3*time.Second, []time.Duration{3 * time.Second})
	s = follow(t, a, s, "c", "k", 1, 1.0)
	assertState(t, a, s, "k", 0, nil)
	assert.Empty(t, a.Outgoing(s))
}

func TestLearn_twoWords(t *testing.T) {
	a := learn(t, DefaultConfig(),
		trace.New("z", steps(
			[]string{"a", "b", "c"},
			[]time.Duration{time.Second, 2 * time.Second, 3 * time.Second},
			[]string{"i", "j", "k"})...),
		trace.New("z", steps(
			[]string{"a", "b", "d"},
			[]time.Duration{time.Second, 4 * time.Second, 3 * time.Second},
			[]string{"i", "j", "l"})...),
	)

	require.Equal(t, 5, a.NumStates())
	s := a.Initial()
	assertState(t, a, s, "z", time.Second, repeat(time.Second, 2))
	s = follow(t, a, s, "a", "i", 2, 1.0)
	assertState(t, a, s, "i", 3*time.Second, []time.Duration{2 * time.Second, 4 * time.Second})
	s = follow(t, a, s, "b", "j", 2, 1.0)
	assertState(t, a, s, "j", 3*time.Second, repeat(3*time.Second, 2))
	k := follow(t, a, s, "c", "k", 1, 1.0)
	l := follow(t, a, s, "d", "l", 1, 1.0)
	assertState(t, a, k, "k", 0, nil)
	assertState(t, a, l, "l", 0, nil)
}

func TestLearn_loop(t *testing.T) {
	a := learn(t, DefaultConfig(),
		trace.New("z", steps(repeat("a", 3), repeat(time.Second, 3), repeat("z", 3))...))

	require.Equal(t, 1, a.NumStates())
	s := a.Initial()
	assertState(t, a, s, "z", time.Second, repeat(time.Second, 3))
	assert.Equal(t, s, follow(t, a, s, "a", "z", 3, 1.0))
}

func TestLearn_timeDifferencePreventsMerges(t *testing.T) {
	tr := trace.New("z", steps(
		repeat("a", 3),
		[]time.Duration{100_000 * day, 100_000 * day, time.Second},
		repeat("z", 3))...)
	a := learn(t, DefaultConfig(), tr, tr, tr)

	require.Equal(t, 3, a.NumStates())
	root := a.Initial()
	assertState(t, a, root, "z", 100_000*day, repeat(100_000*day, 3))
	s := follow(t, a, root, "a", "z", 3, 1.0)
	assertState(t, a, s, "z", 100_000*day, repeat(100_000*day, 3))
	s = follow(t, a, s, "a", "z", 3, 1.0)
	assertState(t, a, s, "z", time.Second, repeat(time.Second, 3))
	assert.Equal(t, root, follow(t, a, s, "a", "z", 3, 1.0))
}

func TestLearn_relaxationCollapsesUnlabeledLoop(t *testing.T) {
	tr := trace.New("z", steps(
		repeat("a", 3),
		[]time.Duration{100_000 * day, 100_000 * day, time.Second},
		repeat("z", 3))...)
	cfg := DefaultConfig()
	cfg.TimingDecay = 0
	a := learn(t, cfg, tr, tr, tr)

	require.Equal(t, 1, a.NumStates())
	s := a.Initial()
	wantExit := 100_000*day/3*2 + time.Second/3
	assertState(t, a, s, "z", wantExit, append(repeat(100_000*day, 6), repeat(time.Second, 3)...))
	assert.Equal(t, s, follow(t, a, s, "a", "z", 9, 1.0))
}

func TestLearn_relaxationPartiallyCollapsesLabeledLoop(t *testing.T) {
	tr := trace.New("z", steps(
		repeat("a", 3),
		[]time.Duration{100_000 * day, 100_000 * day, time.Second},
		[]string{"z", "i", "z"})...)
	cfg := DefaultConfig()
	cfg.TimingDecay = 0
	a := learn(t, cfg, tr, tr, tr)

	require.Equal(t, 2, a.NumStates())
	root := a.Initial()
	assertState(t, a, root, "z", 100_000*day, repeat(100_000*day, 6))
	assert.Equal(t, root, follow(t, a, root, "a", "z", 3, 0.5))
	i := follow(t, a, root, "a", "i", 3, 0.5)
	assertState(t, a, i, "i", time.Second, repeat(time.Second, 3))
	assert.Equal(t, root, follow(t, a, i, "a", "z", 3, 1.0))
}

func TestLearn_errors(t *testing.T) {
	_, err := Learn(context.Background(), nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoTraces)

	_, err = LearnTree(context.Background(), pta.New("z"), DefaultConfig())
	assert.ErrorIs(t, err, ErrNoTraces)

	cfg := DefaultConfig()
	cfg.FrequencySignificance = 1.5
	_, err = Learn(context.Background(), []trace.Trace{trace.New("z")}, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Learn(context.Background(), []trace.Trace{trace.New("z"), trace.New("y")}, DefaultConfig())
	assert.ErrorIs(t, err, pta.ErrDivergentRoot)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Learn(ctx, []trace.Trace{trace.New("z", trace.Step{Input: "a", Output: "b"})}, DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bounds inclusive", mutate: func(c *Config) { c.FrequencySignificance, c.TimingDecay = 0, 1 }},
		{name: "negative significance", mutate: func(c *Config) { c.TimingSignificance = -0.1 }, wantErr: true},
		{name: "decay above one", mutate: func(c *Config) { c.FrequencyDecay = 1.01 }, wantErr: true},
		{name: "negative tail", mutate: func(c *Config) { c.TailLength = Tail(-1) }, wantErr: true},
		{name: "zero tail", mutate: func(c *Config) { c.TailLength = Tail(0) }},
		{name: "unknown order", mutate: func(c *Config) { c.Order = "random" }, wantErr: true},
		{name: "negative workers", mutate: func(c *Config) { c.Workers = -2 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseOrder(t *testing.T) {
	for _, o := range Orders {
		got, err := ParseOrder(" " + string(o) + " ")
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}
	got, err := ParseOrder("LEX")
	require.NoError(t, err)
	assert.Equal(t, OrderLex, got)

	_, err = ParseOrder("bfs")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// randomTraces generates traces over a small alphabet with two timing regimes.
func randomTraces(seed int64, n, length int) []trace.Trace {
	rng := rand.New(rand.NewSource(seed))
	inputs := []string{"a", "b"}
	outputs := []string{"x", "y", "z"}
	traces := make([]trace.Trace, n)
	for i := range traces {
		ss := make([]trace.Step, length)
		for j := range ss {
			out := outputs[rng.Intn(len(outputs))]
			d := time.Duration(1+rng.Intn(3)) * time.Second
			if out == "y" {
				d = time.Duration(60+rng.Intn(10)) * time.Minute
			}
			ss[j] = trace.Step{Elapsed: d, Input: inputs[rng.Intn(len(inputs))], Output: out}
		}
		traces[i] = trace.New("x", ss...)
	}
	return traces
}

func TestLearn_conservesEvidence(t *testing.T) {
	traces := randomTraces(7, 40, 12)
	totalSteps := 0
	for _, tr := range traces {
		totalSteps += tr.Len()
	}

	for _, order := range Orders {
		for _, tail := range []*int{nil, Tail(0), Tail(2)} {
			name := fmt.Sprintf("%s/tail=%v", order, tail)
			if tail != nil {
				name = fmt.Sprintf("%s/tail=%d", order, *tail)
			}
			t.Run(name, func(t *testing.T) {
				cfg := DefaultConfig()
				cfg.Order = order
				cfg.TailLength = tail
				res, err := Learn(context.Background(), traces, cfg)
				require.NoError(t, err)
				a := res.Automaton

				freq, exits := 0, 0
				for _, s := range a.States() {
					exits += len(s.ExitTimes)
					for _, tr := range a.Outgoing(s.ID) {
						freq += tr.Frequency
					}
					for _, in := range a.Inputs() {
						outs := map[string]bool{}
						for _, tr := range a.Transitions(s.ID, in) {
							out := a.TransitionOutput(tr)
							assert.False(t, outs[out], "nondeterministic transition")
							outs[out] = true
						}
					}
				}
				assert.Equal(t, totalSteps, freq)
				assert.Equal(t, totalSteps, exits)
				assert.GreaterOrEqual(t, res.Stats.TreeNodes-a.NumStates(), res.Stats.Merges)
				assert.Equal(t, a.NumStates(), res.Stats.Promotions)
			})
		}
	}
}

func TestLearn_parallelMatchesSequential(t *testing.T) {
	traces := randomTraces(42, 60, 10)

	seqCfg := DefaultConfig()
	seq, err := Learn(context.Background(), traces, seqCfg)
	require.NoError(t, err)

	parCfg := DefaultConfig()
	parCfg.Parallel = true
	parCfg.Workers = 4
	par, err := Learn(context.Background(), traces, parCfg)
	require.NoError(t, err)

	assert.Equal(t, seq.Automaton.DOT(), par.Automaton.DOT())
}

func TestLearn_parallelNondeterministicIsValid(t *testing.T) {
	traces := randomTraces(3, 30, 8)
	cfg := DefaultConfig()
	cfg.Parallel = true
	cfg.Deterministic = false
	res, err := Learn(context.Background(), traces, cfg)
	require.NoError(t, err)
	assert.Equal(t, "x", res.Automaton.Output(res.Automaton.Initial()))
}

func TestLearn_zeroSignificanceMergesByOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrequencySignificance = 0
	cfg.TimingSignificance = 0
	res, err := Learn(context.Background(), randomTraces(11, 20, 6), cfg)
	require.NoError(t, err)

	assert.Len(t, res.Automaton.States(), len(res.Automaton.Outputs()))
}

func TestAccessString_ordering(t *testing.T) {
	root := rootAccess("z")
	a := root.extend("a", "x")
	b := root.extend("b", "x")
	ab := a.extend("b", "y")

	assert.Negative(t, compareCanonical(root, a))
	assert.Negative(t, compareCanonical(a, b))
	assert.Negative(t, compareCanonical(b, ab))
	assert.Zero(t, compareCanonical(a, root.extend("a", "x")))

	assert.Negative(t, compareLex(ab, a))
	assert.Negative(t, compareLex(a, b))
	assert.Positive(t, compareLex(root, b))

	assert.Equal(t, "[z, a, x, b, y]", ab.String())
}

func TestFrontier_orders(t *testing.T) {
	access := []*accessString{rootAccess("z")}
	access = append(access, access[0].extend("b", "x"))
	access = append(access, access[0].extend("a", "x"))
	access = append(access, access[2].extend("a", "y"))
	get := func(id int) *accessString { return access[id] }

	tests := []struct {
		order Order
		want  []int
	}{
		{order: OrderFIFO, want: []int{1, 3, 2}},
		{order: OrderLIFO, want: []int{2, 3, 1}},
		{order: OrderCanonical, want: []int{2, 1}},
		{order: OrderLex, want: []int{3, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			f := newFrontier(tt.order, len(access), get)
			f.push(1)
			f.push(3)
			f.push(1)
			f.push(2)
			assert.Equal(t, 3, f.len())
			if tt.order == OrderCanonical {
				f.remove(3)
			}
			var got []int
			for {
				s, ok := f.pop()
				if !ok {
					break
				}
				got = append(got, s)
			}
			assert.Equal(t, tt.want, got)
			assert.Zero(t, f.len())
		})
	}
}
