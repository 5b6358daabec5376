package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/usestring/alergia-mcp/pkg/automaton"
	"github.com/usestring/alergia-mcp/pkg/stats"
	"github.com/usestring/alergia-mcp/pkg/trace"
)

// ErrInvalidWeight is returned for a frequency weight outside [0, 1].
var ErrInvalidWeight = errors.New("frequency weight must be in [0, 1]")

// ScoreMode selects how traces are aggregated into revision scores.
type ScoreMode string

const (
	// ScoreBest scores each trace on its best matching path.
	ScoreBest ScoreMode = "best"
	// ScoreRooted scores each trace on its path from the initial state.
	ScoreRooted ScoreMode = "rooted"
	// ScoreGlobal scores all traces together on their rooted paths.
	ScoreGlobal ScoreMode = "global"
)

// ParseScoreMode converts a string to a ScoreMode.
func ParseScoreMode(s string) (ScoreMode, error) {
	switch m := ScoreMode(s); m {
	case ScoreBest, ScoreRooted, ScoreGlobal:
		return m, nil
	default:
		return "", fmt.Errorf("unknown score mode %q", s)
	}
}

// Observation pairs a trace with the path that replays it.
type Observation struct {
	Trace trace.Trace
	Path  Path
}

type stateInput struct {
	state int
	input string
}

// RevisionScore measures how well the model's frequencies and sojourn times
// agree with the observations. Frequency agreement is the mean Hoeffding
// similarity over all model transitions, timing agreement the mean F-test
// similarity over all states. The result is weight·frequency +
// (1-weight)·timing in [0, 1].
func RevisionScore(a *automaton.Automaton, observations []Observation, weight float64) (float64, error) {
	if !stats.InUnitInterval(weight) {
		return 0, fmt.Errorf("%w: got %g", ErrInvalidWeight, weight)
	}

	transitionCounts := make(map[int]int)
	groupCounts := make(map[stateInput]int)
	timings := make(map[int][]time.Duration)
	for _, o := range observations {
		for i, t := range o.Path.Transitions {
			step := o.Trace.Steps[i]
			state := o.Path.States[i]
			transitionCounts[t.ID]++
			groupCounts[stateInput{state, step.Input}]++
			timings[state] = append(timings[state], step.Elapsed)
		}
	}

	var hSum float64
	hCount := 0
	for _, s := range a.States() {
		for _, in := range a.Inputs() {
			total := a.TotalFrequency(s.ID, in)
			observed := groupCounts[stateInput{s.ID, in}]
			for _, t := range a.Transitions(s.ID, in) {
				hSum += stats.HoeffdingSimilarity(t.Frequency, total, transitionCounts[t.ID], observed)
				hCount++
			}
		}
	}
	frequency := 1.0
	if hCount > 0 {
		frequency = hSum / float64(hCount)
	}

	var fSum float64
	for _, s := range a.States() {
		observed := timings[s.ID]
		fSum += stats.FTestSimilarity(a.ExitTime(s.ID), a.StateFrequency(s.ID), stats.AverageOrZero(observed), len(observed))
	}
	timing := fSum / float64(a.NumStates())

	score := weight*frequency + (1-weight)*timing
	return math.Min(1, math.Max(0, score)), nil
}

// PathRevisionScore scores a single trace on a given path.
func PathRevisionScore(a *automaton.Automaton, tr trace.Trace, p Path, weight float64) (float64, error) {
	return RevisionScore(a, []Observation{{Trace: tr, Path: p}}, weight)
}

// BestRevisionScore scores tr on each matching path and returns the maximum,
// or 0 when no path replays it.
func BestRevisionScore(a *automaton.Automaton, tr trace.Trace, weight float64) (float64, error) {
	if !stats.InUnitInterval(weight) {
		return 0, fmt.Errorf("%w: got %g", ErrInvalidWeight, weight)
	}
	best := 0.0
	for _, p := range MatchingPaths(a, tr) {
		score, err := PathRevisionScore(a, tr, p, weight)
		if err != nil {
			return 0, err
		}
		best = math.Max(best, score)
	}
	return best, nil
}

// RootedRevisionScore scores tr on its path from the initial state, or 0 when
// there is none.
func RootedRevisionScore(a *automaton.Automaton, tr trace.Trace, weight float64) (float64, error) {
	if !stats.InUnitInterval(weight) {
		return 0, fmt.Errorf("%w: got %g", ErrInvalidWeight, weight)
	}
	p, ok := RootedPath(a, tr)
	if !ok {
		return 0, nil
	}
	return PathRevisionScore(a, tr, p, weight)
}

// GlobalRevisionScore scores all traces together on their rooted paths. It is
// 0 if any trace cannot be replayed from the initial state.
func GlobalRevisionScore(a *automaton.Automaton, traces []trace.Trace, weight float64) (float64, error) {
	if !stats.InUnitInterval(weight) {
		return 0, fmt.Errorf("%w: got %g", ErrInvalidWeight, weight)
	}
	observations := make([]Observation, 0, len(traces))
	for _, tr := range traces {
		p, ok := RootedPath(a, tr)
		if !ok {
			return 0, nil
		}
		observations = append(observations, Observation{Trace: tr, Path: p})
	}
	return RevisionScore(a, observations, weight)
}

// TraceScore is the revision score of one trace.
type TraceScore struct {
	Name  string  `json:"name,omitempty"`
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// ScoreReport summarizes revision scores for a trace collection.
type ScoreReport struct {
	Mode   ScoreMode    `json:"mode"`
	Weight float64      `json:"weight"`
	Traces []TraceScore `json:"traces,omitempty"`
	Mean   float64      `json:"mean"`
	StdDev *float64     `json:"stddev,omitempty"`
}

// ScoreTraces validates the alphabet of traces and computes revision scores
// in the given mode. Per-trace modes score traces concurrently; global mode
// reports a single score as the mean.
func ScoreTraces(ctx context.Context, a *automaton.Automaton, traces []trace.Trace, mode ScoreMode, weight float64, workers int) (*ScoreReport, error) {
	if !stats.InUnitInterval(weight) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidWeight, weight)
	}
	if err := CheckAlphabet(a, traces); err != nil {
		return nil, err
	}

	report := &ScoreReport{Mode: mode, Weight: weight}
	if mode == ScoreGlobal {
		score, err := GlobalRevisionScore(a, traces, weight)
		if err != nil {
			return nil, err
		}
		report.Mean = score
		return report, nil
	}

	var scoreFn func(*automaton.Automaton, trace.Trace, float64) (float64, error)
	switch mode {
	case ScoreBest:
		scoreFn = BestRevisionScore
	case ScoreRooted:
		scoreFn = RootedRevisionScore
	default:
		return nil, fmt.Errorf("unknown score mode %q", mode)
	}

	report.Traces = make([]TraceScore, len(traces))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, tr := range traces {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			score, err := scoreFn(a, tr, weight)
			if err != nil {
				return err
			}
			report.Traces[i] = TraceScore{Name: tr.Name, Index: i, Score: score}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scores := make([]float64, len(report.Traces))
	for i, ts := range report.Traces {
		scores[i] = ts.Score
	}
	report.Mean = stats.MeanFloat(scores)
	if sd, ok := stats.StdDevFloat(scores); ok {
		report.StdDev = &sd
	}
	return report, nil
}
