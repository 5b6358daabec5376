package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/usestring/alergia-mcp/internal/linsolve"
	"github.com/usestring/alergia-mcp/pkg/automaton"
	"github.com/usestring/alergia-mcp/pkg/stats"
	"github.com/usestring/alergia-mcp/pkg/trace"
)

var (
	// ErrNoTargets is returned when no hit target was given or matched.
	ErrNoTargets = errors.New("hit targets are empty")
	// ErrInvalidSampling is returned for a sample rate outside (0, 1] or a
	// non-positive sample cap.
	ErrInvalidSampling = errors.New("invalid prefix sampling")
)

// UnconnectedAutomatonError lists states from which no hit target can be
// reached.
type UnconnectedAutomatonError struct {
	States []int
}

func (e *UnconnectedAutomatonError) Error() string {
	return fmt.Sprintf("automaton has states that cannot reach a hit target: %v", e.States)
}

// MeanHittingTimes returns the expected time until a state in targets is
// reached when the automaton is driven with input. Values are exact up to
// truncation to whole nanoseconds.
func MeanHittingTimes(a *automaton.Automaton, input string, targets *roaring.Bitmap) ([]time.Duration, error) {
	if targets == nil || targets.IsEmpty() {
		return nil, ErrNoTargets
	}

	reach := a.BackwardReach(targets, []string{input})
	if unreached := roaring.AndNot(a.AllStates(), reach); !unreached.IsEmpty() {
		states := make([]int, 0, unreached.GetCardinality())
		for _, s := range unreached.ToArray() {
			states = append(states, int(s))
		}
		return nil, &UnconnectedAutomatonError{States: states}
	}

	n := a.NumStates()
	sys := linsolve.NewSystem(n)
	one := big.NewRat(1, 1)
	for s := 0; s < n; s++ {
		sys.Add(s, s, one)
		if targets.Contains(uint32(s)) {
			continue
		}
		sys.AddConstant(s, new(big.Rat).SetInt(stats.Nanoseconds(a.ExitTime(s))))
		for _, t := range a.Transitions(s, input) {
			p := a.ProbabilityRat(t)
			if p.Sign() <= 0 {
				continue
			}
			sys.Add(s, t.Target, new(big.Rat).Neg(p))
		}
	}

	x, err := sys.Solve()
	if err != nil {
		return nil, fmt.Errorf("solving hitting times: %w", err)
	}
	out := make([]time.Duration, n)
	for s, v := range x {
		out[s] = stats.FromNanoseconds(new(big.Int).Quo(v.Num(), v.Denom()))
	}
	return out, nil
}

// HittingConfig configures HittingTimeDelta.
type HittingConfig struct {
	Input         string   `json:"input"`
	TargetOutputs []string `json:"target_outputs"`
	SampleRate    float64  `json:"sample_rate"`
	MaxSamples    int      `json:"max_samples"`
	Parallel      bool     `json:"parallel"`
	Workers       int      `json:"workers,omitempty"`
}

// HittingSample compares predicted and actual hitting times at the end of a
// trace prefix. Delta is nil when the model cannot replay the prefix.
type HittingSample struct {
	PrefixLength int            `json:"prefix_length"`
	Actual       time.Duration  `json:"actual_ns"`
	Predicted    *time.Duration `json:"predicted_ns,omitempty"`
	Delta        *time.Duration `json:"delta_ns,omitempty"`
}

// TraceHitting holds the samples of one trace.
type TraceHitting struct {
	Name    string          `json:"name,omitempty"`
	Index   int             `json:"index"`
	Samples []HittingSample `json:"samples"`
}

// HittingReport is the result of HittingTimeDelta. Usable is false when some
// state cannot reach a target; Unconnected then lists those states.
type HittingReport struct {
	Usable      bool            `json:"usable"`
	Unconnected []int           `json:"unconnected,omitempty"`
	Predictions []time.Duration `json:"predictions_ns,omitempty"`
	Traces      []TraceHitting  `json:"traces,omitempty"`
}

// HittingTimeDelta compares predicted mean hitting times against the times
// actually observed in traces, at evenly spaced prefixes.
func HittingTimeDelta(ctx context.Context, a *automaton.Automaton, traces []trace.Trace, cfg HittingConfig) (*HittingReport, error) {
	if !(cfg.SampleRate > 0 && cfg.SampleRate <= 1) {
		return nil, fmt.Errorf("%w: sample rate %g not in (0, 1]", ErrInvalidSampling, cfg.SampleRate)
	}
	if cfg.MaxSamples <= 0 {
		return nil, fmt.Errorf("%w: max samples %d", ErrInvalidSampling, cfg.MaxSamples)
	}
	if err := CheckAlphabet(a, traces); err != nil {
		return nil, err
	}

	targets := a.StatesWithOutputs(cfg.TargetOutputs...)
	predictions, err := MeanHittingTimes(a, cfg.Input, targets)
	var unconnected *UnconnectedAutomatonError
	if errors.As(err, &unconnected) {
		return &HittingReport{Usable: false, Unconnected: unconnected.States}, nil
	}
	if err != nil {
		return nil, err
	}

	report := &HittingReport{Usable: true, Predictions: predictions, Traces: make([]TraceHitting, len(traces))}
	targetSet := make(map[string]bool, len(cfg.TargetOutputs))
	for _, o := range cfg.TargetOutputs {
		targetSet[o] = true
	}

	g, ctx := errgroup.WithContext(ctx)
	switch {
	case !cfg.Parallel:
		g.SetLimit(1)
	case cfg.Workers > 0:
		g.SetLimit(cfg.Workers)
	}
	for i, tr := range traces {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report.Traces[i] = TraceHitting{
				Name:    tr.Name,
				Index:   i,
				Samples: traceHittingDelta(a, tr, cfg, predictions, targetSet),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func traceHittingDelta(a *automaton.Automaton, tr trace.Trace, cfg HittingConfig, predictions []time.Duration, targets map[string]bool) []HittingSample {
	prefixes := tr.Prefixes()
	n := int(math.Round(float64(len(prefixes)) * cfg.SampleRate))
	n = max(1, min(n, len(prefixes), cfg.MaxSamples))
	prefixes = takeEvenlySpaced(prefixes, n)

	abs := tr.AbsoluteTimes()
	var hits []time.Duration
	if targets[tr.Head] {
		hits = append(hits, 0)
	}
	for i, step := range tr.Steps {
		if targets[step.Output] {
			hits = append(hits, abs[i])
		}
	}
	slices.Sort(hits)

	samples := make([]HittingSample, 0, len(prefixes))
	for _, prefix := range prefixes {
		end := prefix.End()
		idx, _ := slices.BinarySearch(hits, end)
		if idx == len(hits) {
			continue
		}
		sample := HittingSample{PrefixLength: prefix.Len(), Actual: hits[idx] - end}
		if p, ok := MostLikelyPath(a, prefix); ok {
			predicted := predictions[p.Last()]
			delta := predicted - sample.Actual
			sample.Predicted = &predicted
			sample.Delta = &delta
		}
		samples = append(samples, sample)
	}
	return samples
}

// takeEvenlySpaced returns n elements of xs spread evenly, always including
// the first.
func takeEvenlySpaced[T any](xs []T, n int) []T {
	if n >= len(xs) {
		return xs
	}
	out := make([]T, 0, n)
	acc := len(xs)
	for _, x := range xs {
		if acc >= len(xs) {
			out = append(out, x)
			acc -= len(xs)
		}
		acc += n
	}
	return out
}
