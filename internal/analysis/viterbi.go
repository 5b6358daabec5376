package analysis

import (
	"math"
	"time"

	"github.com/usestring/alergia-mcp/pkg/automaton"
	"github.com/usestring/alergia-mcp/pkg/trace"
)

// ScoredPath is a matching path with its accumulated likelihood.
type ScoredPath struct {
	Path
	Likelihood float64 `json:"likelihood"`
}

// TransitionLikelihood returns the likelihood of leaving state through t after
// elapsed, using an exponential sojourn density with the state's mean exit
// time. Normalized mode includes the density factor 1s/exit.
//
// A state with zero mean exit time is left instantly: the likelihood is the
// transition probability when elapsed is zero and zero otherwise.
func TransitionLikelihood(a *automaton.Automaton, state int, t automaton.Transition, elapsed time.Duration, normalized bool) float64 {
	p := a.Probability(t)
	exit := a.ExitTime(state)
	if exit <= 0 {
		if elapsed == 0 {
			return p
		}
		return 0
	}
	ratio := elapsed.Seconds() / exit.Seconds()
	likelihood := math.Exp(-ratio) * p
	if normalized {
		likelihood /= exit.Seconds()
	}
	return likelihood
}

// ViterbiPaths scores every matching path of tr. Each start state receives an
// equal share of the initial mass.
func ViterbiPaths(a *automaton.Automaton, tr trace.Trace, normalized bool) []ScoredPath {
	starts := startStates(a, tr)
	paths := make([]ScoredPath, 0, len(starts))
	for _, s := range starts {
		paths = append(paths, ScoredPath{Path: Path{States: []int{s}}, Likelihood: 1 / float64(len(starts))})
	}
	for _, step := range tr.Steps {
		next := paths[:0:0]
		for _, p := range paths {
			state := p.Last()
			t, ok := a.Transition(state, step.Input, step.Output)
			if !ok {
				continue
			}
			next = append(next, ScoredPath{
				Path:       p.extend(t),
				Likelihood: p.Likelihood * TransitionLikelihood(a, state, t, step.Elapsed, normalized),
			})
		}
		paths = next
	}
	return paths
}

// MostLikelyPath returns the normalized Viterbi path with the highest
// likelihood. Ties keep the path from the earliest start state.
func MostLikelyPath(a *automaton.Automaton, tr trace.Trace) (ScoredPath, bool) {
	paths := ViterbiPaths(a, tr, true)
	if len(paths) == 0 {
		return ScoredPath{}, false
	}
	best := paths[0]
	for _, p := range paths[1:] {
		if p.Likelihood > best.Likelihood {
			best = p
		}
	}
	return best, true
}
