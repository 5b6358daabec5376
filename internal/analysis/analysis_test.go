package analysis

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/alergia-mcp/pkg/automaton"
	"github.com/usestring/alergia-mcp/pkg/trace"
)

func step(d time.Duration, in, out string) trace.Step {
	return trace.Step{Elapsed: d, Input: in, Output: out}
}

func build(t *testing.T, fn func(b *automaton.Builder)) *automaton.Automaton {
	t.Helper()
	b := automaton.NewBuilder()
	fn(b)
	a, err := b.Build()
	require.NoError(t, err)
	return a
}

// twoStarts has two states emitting x with different mean exit times.
func twoStarts(t *testing.T) *automaton.Automaton {
	return build(t, func(b *automaton.Builder) {
		x1 := b.AddState("x", []time.Duration{time.Second})
		x2 := b.AddState("x", []time.Duration{2 * time.Second})
		y := b.AddState("y", nil)
		b.AddTransition(x1, "a", y, 1)
		b.AddTransition(x2, "a", y, 1)
		b.AddTransition(y, "a", x1, 1)
	})
}

func TestMatchingPaths(t *testing.T) {
	a := twoStarts(t)

	paths := MatchingPaths(a, trace.New("x", step(time.Second, "a", "y")))
	require.Len(t, paths, 2)
	assert.Equal(t, []int{0, 2}, paths[0].States)
	assert.Equal(t, []int{1, 2}, paths[1].States)

	paths = MatchingPaths(a, trace.New("x", step(time.Second, "a", "y"), step(0, "a", "x")))
	require.Len(t, paths, 2)
	assert.Equal(t, 0, paths[1].Last())

	assert.Empty(t, MatchingPaths(a, trace.New("x", step(time.Second, "a", "x"))))
	assert.Empty(t, MatchingPaths(a, trace.New("q")))

	rooted, ok := RootedPath(a, trace.New("x", step(time.Second, "a", "y")))
	require.True(t, ok)
	assert.Equal(t, []int{0, 2}, rooted.States)
	_, ok = RootedPath(a, trace.New("y"))
	assert.False(t, ok)
}

func TestViterbiPaths(t *testing.T) {
	a := twoStarts(t)
	tr := trace.New("x", step(time.Second, "a", "y"))

	normalized := ViterbiPaths(a, tr, true)
	require.Len(t, normalized, 2)
	assert.InDelta(t, 0.5*math.Exp(-1), normalized[0].Likelihood, 1e-12)
	assert.InDelta(t, 0.5*math.Exp(-0.5)/2, normalized[1].Likelihood, 1e-12)

	raw := ViterbiPaths(a, tr, false)
	require.Len(t, raw, 2)
	assert.InDelta(t, 0.5*math.Exp(-1), raw[0].Likelihood, 1e-12)
	assert.InDelta(t, 0.5*math.Exp(-0.5), raw[1].Likelihood, 1e-12)

	best, ok := MostLikelyPath(a, tr)
	require.True(t, ok)
	assert.Equal(t, 0, best.States[0])

	_, ok = MostLikelyPath(a, trace.New("z"))
	assert.False(t, ok)
}

func TestTransitionLikelihood_zeroExitTime(t *testing.T) {
	a := twoStarts(t)
	back, ok := a.Transition(2, "a", "x")
	require.True(t, ok)

	assert.Equal(t, 1.0, TransitionLikelihood(a, 2, back, 0, true))
	assert.Equal(t, 1.0, TransitionLikelihood(a, 2, back, 0, false))
	assert.Zero(t, TransitionLikelihood(a, 2, back, time.Millisecond, true))
}

// loop is a single z state with a self loop observed three times.
func loop(t *testing.T) *automaton.Automaton {
	return build(t, func(b *automaton.Builder) {
		z := b.AddState("z", []time.Duration{time.Second, time.Second, time.Second})
		b.AddTransition(z, "a", z, 3)
	})
}

func TestRevisionScore(t *testing.T) {
	a := loop(t)
	matching := trace.New("z", step(time.Second, "a", "z"), step(time.Second, "a", "z"), step(time.Second, "a", "z"))
	foreign := trace.New("q", step(time.Second, "a", "z"))

	tests := []struct {
		name  string
		score func() (float64, error)
		want  float64
	}{
		{name: "best", score: func() (float64, error) { return BestRevisionScore(a, matching, 0.5) }, want: 1},
		{name: "rooted", score: func() (float64, error) { return RootedRevisionScore(a, matching, 0.5) }, want: 1},
		{name: "global", score: func() (float64, error) {
			return GlobalRevisionScore(a, []trace.Trace{matching, matching}, 0.5)
		}, want: 1},
		{name: "best without path", score: func() (float64, error) { return BestRevisionScore(a, foreign, 0.5) }, want: 0},
		{name: "rooted without path", score: func() (float64, error) { return RootedRevisionScore(a, foreign, 0.5) }, want: 0},
		{name: "global with one unmatched", score: func() (float64, error) {
			return GlobalRevisionScore(a, []trace.Trace{matching, foreign}, 0.5)
		}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.score()
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestRevisionScore_frequencyDisagreement(t *testing.T) {
	a := build(t, func(b *automaton.Builder) {
		z := b.AddState("z", []time.Duration{time.Second})
		w := b.AddState("w", nil)
		b.AddTransition(z, "a", z, 3)
		b.AddTransition(z, "a", w, 1)
	})
	tr := trace.New("z",
		step(time.Second, "a", "z"), step(time.Second, "a", "z"),
		step(time.Second, "a", "z"), step(time.Second, "a", "z"))

	score, err := RootedRevisionScore(a, tr, 1)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-0.125), score, 1e-12)

	score, err = RootedRevisionScore(a, tr, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)
}

func TestRevisionScore_invalidWeight(t *testing.T) {
	a := loop(t)
	tr := trace.New("z")
	for _, w := range []float64{-0.1, 1.1, math.NaN()} {
		_, err := BestRevisionScore(a, tr, w)
		assert.ErrorIs(t, err, ErrInvalidWeight)
		_, err = RevisionScore(a, nil, w)
		assert.ErrorIs(t, err, ErrInvalidWeight)
	}
}

func TestScoreTraces(t *testing.T) {
	a := loop(t)
	traces := []trace.Trace{
		{Name: "one", Head: "z", Steps: []trace.Step{step(time.Second, "a", "z")}},
		{Name: "other", Head: "q"},
	}

	report, err := ScoreTraces(context.Background(), a, traces, ScoreRooted, 0.5, 2)
	require.NoError(t, err)
	require.Len(t, report.Traces, 2)
	assert.Equal(t, "one", report.Traces[0].Name)
	assert.InDelta(t, 1.0, report.Traces[0].Score, 1e-12)
	assert.Zero(t, report.Traces[1].Score)
	assert.InDelta(t, 0.5, report.Mean, 1e-12)
	require.NotNil(t, report.StdDev)
	assert.InDelta(t, math.Sqrt(0.5), *report.StdDev, 1e-12)

	report, err = ScoreTraces(context.Background(), a, traces, ScoreGlobal, 0.5, 0)
	require.NoError(t, err)
	assert.Zero(t, report.Mean)
	assert.Nil(t, report.StdDev)

	_, err = ScoreTraces(context.Background(), a, []trace.Trace{trace.New("z", step(0, "b", "z"))}, ScoreBest, 0.5, 0)
	assert.ErrorIs(t, err, ErrAlphabetMismatch)

	_, err = ScoreTraces(context.Background(), a, traces, "median", 0.5, 0)
	assert.Error(t, err)
}

func TestParseScoreMode(t *testing.T) {
	m, err := ParseScoreMode("global")
	require.NoError(t, err)
	assert.Equal(t, ScoreGlobal, m)
	_, err = ParseScoreMode("worst")
	assert.Error(t, err)
}

// chain returns
//
//	a(2s) --tick--> b(4s) --tick/1--> t
//	                b     --tick/1--> a
func chain(t *testing.T) *automaton.Automaton {
	return build(t, func(b *automaton.Builder) {
		sa := b.AddState("a", []time.Duration{2 * time.Second})
		sb := b.AddState("b", []time.Duration{4 * time.Second})
		st := b.AddState("t", nil)
		b.AddTransition(sa, "tick", sb, 1)
		b.AddTransition(sb, "tick", st, 1)
		b.AddTransition(sb, "tick", sa, 1)
	})
}

func TestMeanHittingTimes(t *testing.T) {
	a := chain(t)
	times, err := MeanHittingTimes(a, "tick", a.StatesWithOutputs("t"))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{12 * time.Second, 10 * time.Second, 0}, times)

	_, err = MeanHittingTimes(a, "tick", roaring.New())
	assert.ErrorIs(t, err, ErrNoTargets)

	var unconnected *UnconnectedAutomatonError
	_, err = MeanHittingTimes(a, "other", a.StatesWithOutputs("t"))
	require.ErrorAs(t, err, &unconnected)
	assert.Equal(t, []int{0, 1}, unconnected.States)
}

func TestMeanHittingTimes_truncatesToNanoseconds(t *testing.T) {
	a := build(t, func(b *automaton.Builder) {
		s := b.AddState("s", []time.Duration{time.Nanosecond})
		done := b.AddState("done", nil)
		b.AddTransition(s, "x", s, 1)
		b.AddTransition(s, "x", done, 2)
	})
	// E = 1ns + E/3, so E = 3/2 ns.
	times, err := MeanHittingTimes(a, "x", a.StatesWithOutputs("done"))
	require.NoError(t, err)
	assert.Equal(t, time.Nanosecond, times[0])
}

func TestHittingTimeDelta(t *testing.T) {
	a := chain(t)
	traces := []trace.Trace{
		trace.New("a", step(2*time.Second, "tick", "b"), step(5*time.Second, "tick", "t")),
		trace.New("a", step(time.Second, "tick", "t")),
		trace.New("a", step(time.Second, "tick", "b")),
	}
	cfg := HittingConfig{Input: "tick", TargetOutputs: []string{"t"}, SampleRate: 1, MaxSamples: 10, Parallel: true}

	report, err := HittingTimeDelta(context.Background(), a, traces, cfg)
	require.NoError(t, err)
	require.True(t, report.Usable)
	require.Len(t, report.Traces, 3)

	first := report.Traces[0].Samples
	require.Len(t, first, 3)
	wantActual := []time.Duration{7 * time.Second, 5 * time.Second, 0}
	wantDelta := []time.Duration{5 * time.Second, 5 * time.Second, 0}
	for i, s := range first {
		assert.Equal(t, i, s.PrefixLength)
		assert.Equal(t, wantActual[i], s.Actual)
		require.NotNil(t, s.Delta)
		assert.Equal(t, wantDelta[i], *s.Delta)
	}

	second := report.Traces[1].Samples
	require.Len(t, second, 2)
	assert.NotNil(t, second[0].Delta)
	assert.Nil(t, second[1].Delta, "a --tick/t--> is not in the model")

	assert.Empty(t, report.Traces[2].Samples)
}

func TestHittingTimeDelta_unusable(t *testing.T) {
	a := build(t, func(b *automaton.Builder) {
		s := b.AddState("a", []time.Duration{time.Second})
		target := b.AddState("t", nil)
		sink := b.AddState("s", nil)
		b.AddTransition(s, "tick", target, 1)
		b.AddTransition(s, "tick", sink, 1)
	})
	cfg := HittingConfig{Input: "tick", TargetOutputs: []string{"t"}, SampleRate: 0.5, MaxSamples: 5}

	report, err := HittingTimeDelta(context.Background(), a, []trace.Trace{trace.New("a", step(time.Second, "tick", "t"))}, cfg)
	require.NoError(t, err)
	assert.False(t, report.Usable)
	assert.Equal(t, []int{2}, report.Unconnected)
	assert.Empty(t, report.Traces)
}

func TestHittingTimeDelta_invalidSampling(t *testing.T) {
	a := chain(t)
	for _, cfg := range []HittingConfig{
		{Input: "tick", TargetOutputs: []string{"t"}, SampleRate: 0, MaxSamples: 1},
		{Input: "tick", TargetOutputs: []string{"t"}, SampleRate: 1.5, MaxSamples: 1},
		{Input: "tick", TargetOutputs: []string{"t"}, SampleRate: 1, MaxSamples: 0},
	} {
		_, err := HittingTimeDelta(context.Background(), a, nil, cfg)
		assert.ErrorIs(t, err, ErrInvalidSampling)
	}
}

func TestTakeEvenlySpaced(t *testing.T) {
	xs := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	tests := []struct {
		n    int
		want []int
	}{
		{n: 1, want: []int{0}},
		{n: 3, want: []int{0, 4, 7}},
		{n: 5, want: []int{0, 2, 4, 6, 8}},
		{n: 10, want: xs},
	}
	for _, tt := range tests {
		got := takeEvenlySpaced(xs, tt.n)
		assert.Equal(t, tt.want, got, "n=%d", tt.n)
		assert.Len(t, got, tt.n)
	}
}
