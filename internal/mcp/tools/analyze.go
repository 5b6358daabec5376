package tools

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/alergia-mcp/internal/analysis"
	"github.com/usestring/alergia-mcp/pkg/automaton"
	"github.com/usestring/alergia-mcp/pkg/trace"
)

// MatchTraceInput is the input for alergia_match_trace.
type MatchTraceInput struct {
	ModelID  string    `json:"model_id" jsonschema:"Model ID"`
	Trace    TraceSpec `json:"trace" jsonschema:"Trace to replay"`
	Root     bool      `json:"root,omitempty" jsonschema:"Prepend the synthetic root output before matching"`
	MaxPaths int       `json:"max_paths,omitempty" jsonschema:"Max matching paths to return, most likely first (default: 10)"`
}

// PathInfo is one run of the model over the trace.
type PathInfo struct {
	States     []int    `json:"states"`
	Outputs    []string `json:"outputs"`
	Likelihood float64  `json:"likelihood"`
	Rooted     bool     `json:"rooted,omitempty"`
}

// MatchTraceOutput is the output for alergia_match_trace.
type MatchTraceOutput struct {
	ModelID   string     `json:"model_id"`
	Matches   int        `json:"matches"`
	Rooted    bool       `json:"rooted"`
	Best      *PathInfo  `json:"best,omitempty"`
	Paths     []PathInfo `json:"paths,omitempty"`
	Truncated bool       `json:"truncated,omitempty"`
	BestScore *float64   `json:"best_score,omitempty"`
	Hint      string     `json:"hint,omitempty"`
}

// ToolMatchTrace replays a trace on a model and scores each matching path
// with the normalized Viterbi likelihood.
func ToolMatchTrace(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input MatchTraceInput) (*sdkmcp.CallToolResult, MatchTraceOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input MatchTraceInput) (*sdkmcp.CallToolResult, MatchTraceOutput, error) {
		if input.ModelID == "" {
			return nil, MatchTraceOutput{}, ErrInvalidInput("model_id is required")
		}
		tr, err := input.Trace.toTrace()
		if err != nil {
			return nil, MatchTraceOutput{}, ErrInvalidInput(err.Error())
		}
		a, meta, err := d.LoadModel(input.ModelID)
		if err != nil {
			return nil, MatchTraceOutput{}, err
		}
		if input.Root {
			tr = tr.Rooted(d.Config.RootOutput, d.Config.DefaultInput)
		}
		if err := analysis.CheckAlphabet(a, []trace.Trace{tr}); err != nil {
			return nil, MatchTraceOutput{}, WrapDomainError(err)
		}

		maxPaths := input.MaxPaths
		if maxPaths <= 0 {
			maxPaths = 10
		}

		scored := analysis.ViterbiPaths(a, tr, true)
		sort.SliceStable(scored, func(i, j int) bool { return scored[i].Likelihood > scored[j].Likelihood })
		rooted, hasRooted := analysis.RootedPath(a, tr)

		output := MatchTraceOutput{ModelID: meta.ID, Matches: len(scored), Rooted: hasRooted}
		for i, sp := range scored {
			if i == maxPaths {
				output.Truncated = true
				break
			}
			output.Paths = append(output.Paths, pathInfo(a, sp, hasRooted && slices.Equal(sp.States, rooted.States)))
		}
		if len(output.Paths) > 0 {
			best := output.Paths[0]
			output.Best = &best
			score, err := analysis.BestRevisionScore(a, tr, d.Config.FrequencyWeight)
			if err != nil {
				return nil, MatchTraceOutput{}, WrapDomainError(err)
			}
			output.BestScore = &score
		} else {
			output.Hint = fmt.Sprintf("no run of the model replays this trace; check that some state outputs %q and every step's (input, output) pair was observed during learning", tr.Head)
		}
		return nil, output, nil
	}
}

func pathInfo(a *automaton.Automaton, sp analysis.ScoredPath, rooted bool) PathInfo {
	outputs := make([]string, len(sp.States))
	for i, s := range sp.States {
		outputs[i] = a.Output(s)
	}
	return PathInfo{States: sp.States, Outputs: outputs, Likelihood: sp.Likelihood, Rooted: rooted}
}

// RevisionScoreInput is the input for alergia_revision_score.
type RevisionScoreInput struct {
	ModelID         string      `json:"model_id" jsonschema:"Model ID"`
	Source          TraceSource `json:"source" jsonschema:"Traces to score"`
	Mode            string      `json:"mode,omitempty" jsonschema:"best (best matching path per trace), rooted (path from the initial state) or global (all traces together); default: best"`
	FrequencyWeight *float64    `json:"frequency_weight,omitempty" jsonschema:"Weight of the frequency similarity against the timing similarity in [0,1] (default: 0.5)"`
}

// RevisionScoreOutput is the output for alergia_revision_score.
type RevisionScoreOutput struct {
	ModelID string                `json:"model_id"`
	Report  *analysis.ScoreReport `json:"report,omitempty"`
}

// ToolRevisionScore measures how well a model explains a trace collection.
func ToolRevisionScore(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input RevisionScoreInput) (*sdkmcp.CallToolResult, RevisionScoreOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input RevisionScoreInput) (*sdkmcp.CallToolResult, RevisionScoreOutput, error) {
		if input.ModelID == "" {
			return nil, RevisionScoreOutput{}, ErrInvalidInput("model_id is required")
		}
		modeName := input.Mode
		if modeName == "" {
			modeName = d.Config.ScoreMode
		}
		mode, err := analysis.ParseScoreMode(modeName)
		if err != nil {
			return nil, RevisionScoreOutput{}, ErrInvalidInput(err.Error())
		}
		weight := d.Config.FrequencyWeight
		if input.FrequencyWeight != nil {
			weight = *input.FrequencyWeight
		}

		a, meta, err := d.LoadModel(input.ModelID)
		if err != nil {
			return nil, RevisionScoreOutput{}, err
		}
		traces, err := d.ResolveTraces(input.Source)
		if err != nil {
			return nil, RevisionScoreOutput{}, err
		}

		report, err := analysis.ScoreTraces(ctx, a, traces, mode, weight, d.Config.AnalysisWorkers)
		if err != nil {
			return nil, RevisionScoreOutput{}, WrapDomainError(err)
		}
		return nil, RevisionScoreOutput{ModelID: meta.ID, Report: report}, nil
	}
}

// HittingTimesInput is the input for alergia_hitting_times.
type HittingTimesInput struct {
	ModelID       string   `json:"model_id" jsonschema:"Model ID"`
	Input         string   `json:"input,omitempty" jsonschema:"Input symbol driving the model (default: tick)"`
	TargetOutputs []string `json:"target_outputs" jsonschema:"Outputs whose states count as hit"`
}

// StateHittingTime is the predicted time to reach a target from one state.
type StateHittingTime struct {
	State  int     `json:"state"`
	Output string  `json:"output"`
	Ms     float64 `json:"ms"`
	Human  string  `json:"human"`
}

// HittingTimesOutput is the output for alergia_hitting_times.
type HittingTimesOutput struct {
	ModelID     string             `json:"model_id"`
	Usable      bool               `json:"usable"`
	Unconnected []int              `json:"unconnected,omitempty"`
	Times       []StateHittingTime `json:"times,omitempty"`
}

// ToolHittingTimes computes the mean time from every state until a state
// with one of the target outputs is reached.
func ToolHittingTimes(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input HittingTimesInput) (*sdkmcp.CallToolResult, HittingTimesOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input HittingTimesInput) (*sdkmcp.CallToolResult, HittingTimesOutput, error) {
		if input.ModelID == "" {
			return nil, HittingTimesOutput{}, ErrInvalidInput("model_id is required")
		}
		if len(input.TargetOutputs) == 0 {
			return nil, HittingTimesOutput{}, ErrInvalidInput("target_outputs is required")
		}
		a, meta, err := d.LoadModel(input.ModelID)
		if err != nil {
			return nil, HittingTimesOutput{}, err
		}
		in := input.Input
		if in == "" {
			in = d.Config.DefaultInput
		}

		targets := a.StatesWithOutputs(input.TargetOutputs...)
		times, err := analysis.MeanHittingTimes(a, in, targets)
		output := HittingTimesOutput{ModelID: meta.ID}
		var unconnected *analysis.UnconnectedAutomatonError
		if errors.As(err, &unconnected) {
			output.Unconnected = unconnected.States
			return nil, output, nil
		}
		if err != nil {
			return nil, HittingTimesOutput{}, WrapDomainError(err)
		}

		output.Usable = true
		output.Times = make([]StateHittingTime, len(times))
		for s, t := range times {
			output.Times[s] = StateHittingTime{State: s, Output: a.Output(s), Ms: durationMs(t), Human: t.String()}
		}
		return nil, output, nil
	}
}

// HittingDeltaInput is the input for alergia_hitting_delta.
type HittingDeltaInput struct {
	ModelID       string      `json:"model_id" jsonschema:"Model ID"`
	Source        TraceSource `json:"source" jsonschema:"Traces with observed hitting times"`
	Input         string      `json:"input,omitempty" jsonschema:"Input symbol driving the model (default: tick)"`
	TargetOutputs []string    `json:"target_outputs" jsonschema:"Outputs whose states count as hit"`
	SampleRate    float64     `json:"sample_rate,omitempty" jsonschema:"Fraction of each trace's prefixes to sample in (0,1] (default: 0.1)"`
	MaxSamples    int         `json:"max_samples,omitempty" jsonschema:"Max sampled prefixes per trace (default: 10)"`
	Parallel      *bool       `json:"parallel,omitempty" jsonschema:"Analyze traces concurrently (default: true)"`
}

// HittingDeltaSummary aggregates the absolute prediction errors.
type HittingDeltaSummary struct {
	Samples       int     `json:"samples"`
	Predicted     int     `json:"predicted"`
	MeanAbsMs     float64 `json:"mean_abs_ms"`
	MaxAbsMs      float64 `json:"max_abs_ms"`
	TracesSkipped int     `json:"traces_skipped"`
}

// HittingDeltaOutput is the output for alergia_hitting_delta.
type HittingDeltaOutput struct {
	ModelID string                  `json:"model_id"`
	Summary HittingDeltaSummary     `json:"summary"`
	Report  *analysis.HittingReport `json:"report,omitempty"`
}

// ToolHittingDelta compares predicted and observed hitting times.
func ToolHittingDelta(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input HittingDeltaInput) (*sdkmcp.CallToolResult, HittingDeltaOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input HittingDeltaInput) (*sdkmcp.CallToolResult, HittingDeltaOutput, error) {
		if input.ModelID == "" {
			return nil, HittingDeltaOutput{}, ErrInvalidInput("model_id is required")
		}
		if len(input.TargetOutputs) == 0 {
			return nil, HittingDeltaOutput{}, ErrInvalidInput("target_outputs is required")
		}
		a, meta, err := d.LoadModel(input.ModelID)
		if err != nil {
			return nil, HittingDeltaOutput{}, err
		}
		traces, err := d.ResolveTraces(input.Source)
		if err != nil {
			return nil, HittingDeltaOutput{}, err
		}

		cfg := analysis.HittingConfig{
			Input:         input.Input,
			TargetOutputs: input.TargetOutputs,
			SampleRate:    input.SampleRate,
			MaxSamples:    input.MaxSamples,
			Parallel:      true,
			Workers:       d.Config.AnalysisWorkers,
		}
		if cfg.Input == "" {
			cfg.Input = d.Config.DefaultInput
		}
		if cfg.SampleRate == 0 {
			cfg.SampleRate = d.Config.HittingSampleRate
		}
		if cfg.MaxSamples == 0 {
			cfg.MaxSamples = d.Config.HittingMaxSamples
		}
		if input.Parallel != nil {
			cfg.Parallel = *input.Parallel
		}

		report, err := analysis.HittingTimeDelta(ctx, a, traces, cfg)
		if err != nil {
			return nil, HittingDeltaOutput{}, WrapDomainError(err)
		}
		return nil, HittingDeltaOutput{ModelID: meta.ID, Summary: summarizeDeltas(report), Report: report}, nil
	}
}

func summarizeDeltas(r *analysis.HittingReport) HittingDeltaSummary {
	var s HittingDeltaSummary
	var total float64
	for _, th := range r.Traces {
		if len(th.Samples) == 0 {
			s.TracesSkipped++
			continue
		}
		for _, sample := range th.Samples {
			s.Samples++
			if sample.Delta == nil {
				continue
			}
			s.Predicted++
			abs := durationMs(*sample.Delta)
			if abs < 0 {
				abs = -abs
			}
			total += abs
			if abs > s.MaxAbsMs {
				s.MaxAbsMs = abs
			}
		}
	}
	if s.Predicted > 0 {
		s.MeanAbsMs = total / float64(s.Predicted)
	}
	return s
}
