package tools

import (
	"context"
	"errors"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/alergia-mcp/internal/alergia"
	"github.com/usestring/alergia-mcp/internal/pta"
	"github.com/usestring/alergia-mcp/internal/store"
	"github.com/usestring/alergia-mcp/pkg/automaton"
)

// LearnerOptions overrides the configured learner defaults. Unset fields keep
// the server defaults.
type LearnerOptions struct {
	Order                 string   `json:"order,omitempty" jsonschema:"Blue state order: fifo, lifo, canonical or lex"`
	Parallel              *bool    `json:"parallel,omitempty" jsonschema:"Scan red states for a compatible partner in parallel"`
	Deterministic         *bool    `json:"deterministic,omitempty" jsonschema:"Keep first-match semantics when scanning in parallel"`
	FrequencySignificance *float64 `json:"frequency_significance,omitempty" jsonschema:"Significance level of the Hoeffding frequency test in [0,1]"`
	FrequencyDecay        *float64 `json:"frequency_decay,omitempty" jsonschema:"Per-depth multiplier of the frequency significance in [0,1]"`
	TimingSignificance    *float64 `json:"timing_significance,omitempty" jsonschema:"Significance level of the F-test on exit times in [0,1]"`
	TimingDecay           *float64 `json:"timing_decay,omitempty" jsonschema:"Per-depth multiplier of the timing significance in [0,1]"`
	TailLength            *int     `json:"tail_length,omitempty" jsonschema:"Depth after which statistical tests are skipped; negative means unlimited"`
	AnalyzeMergedSamples  *bool    `json:"analyze_merged_samples,omitempty" jsonschema:"Test aggregated evidence instead of the evidence each state carried before merging"`
}

// apply returns base with the set options applied.
func (o *LearnerOptions) apply(base alergia.Config) (alergia.Config, error) {
	cfg := base
	if o == nil {
		return cfg, nil
	}
	if o.Order != "" {
		order, err := alergia.ParseOrder(o.Order)
		if err != nil {
			return cfg, err
		}
		cfg.Order = order
	}
	if o.Parallel != nil {
		cfg.Parallel = *o.Parallel
	}
	if o.Deterministic != nil {
		cfg.Deterministic = *o.Deterministic
	}
	if o.FrequencySignificance != nil {
		cfg.FrequencySignificance = *o.FrequencySignificance
	}
	if o.FrequencyDecay != nil {
		cfg.FrequencyDecay = *o.FrequencyDecay
	}
	if o.TimingSignificance != nil {
		cfg.TimingSignificance = *o.TimingSignificance
	}
	if o.TimingDecay != nil {
		cfg.TimingDecay = *o.TimingDecay
	}
	if o.TailLength != nil {
		if *o.TailLength < 0 {
			cfg.TailLength = nil
		} else {
			cfg.TailLength = alergia.Tail(*o.TailLength)
		}
	}
	if o.AnalyzeMergedSamples != nil {
		cfg.AnalyzeMergedSamples = *o.AnalyzeMergedSamples
	}
	return cfg, nil
}

// LearnModelInput is the input for alergia_learn_model.
type LearnModelInput struct {
	Source   TraceSource     `json:"source" jsonschema:"Traces to learn from"`
	Name     string          `json:"name,omitempty" jsonschema:"Human-readable model name"`
	Options  *LearnerOptions `json:"options,omitempty" jsonschema:"Learner options overriding the server defaults"`
	TreeOnly bool            `json:"tree_only,omitempty" jsonschema:"Store the unmerged prefix tree instead of learning"`
}

// LearnStats reports the work done by the learner.
type LearnStats struct {
	TreeNodes  int     `json:"tree_nodes"`
	Traces     int     `json:"traces"`
	Merges     int     `json:"merges"`
	Promotions int     `json:"promotions"`
	ElapsedMs  float64 `json:"elapsed_ms"`
}

// LearnModelOutput is the output for alergia_learn_model.
type LearnModelOutput struct {
	Model   ModelSummary   `json:"model"`
	Stats   LearnStats     `json:"stats"`
	Options alergia.Config `json:"options"`
}

// ToolLearnModel learns a timed automaton from traces and stores it.
func ToolLearnModel(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input LearnModelInput) (*sdkmcp.CallToolResult, LearnModelOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input LearnModelInput) (*sdkmcp.CallToolResult, LearnModelOutput, error) {
		cfg, err := input.Options.apply(d.Config.Learner())
		if err != nil {
			return nil, LearnModelOutput{}, WrapDomainError(err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, LearnModelOutput{}, WrapDomainError(err)
		}

		traces, err := d.ResolveTraces(input.Source)
		if err != nil {
			return nil, LearnModelOutput{}, err
		}

		if d.Config.LearnTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.Config.LearnTimeout)
			defer cancel()
		}

		meta := store.Metadata{Name: input.Name, Options: &cfg, Traces: len(traces)}
		var model *automaton.Automaton
		var stats LearnStats

		if input.TreeOnly {
			tree, err := pta.FromTraces(traces)
			if err != nil {
				return nil, LearnModelOutput{}, WrapDomainError(err)
			}
			model, err = tree.Automaton()
			if err != nil {
				return nil, LearnModelOutput{}, WrapDomainError(err)
			}
			meta.Source = store.SourceTree
			meta.Options = nil
			stats = LearnStats{TreeNodes: tree.NumNodes(), Traces: tree.NumTraces()}
		} else {
			result, err := alergia.Learn(ctx, traces, cfg)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil, LearnModelOutput{}, err
				}
				return nil, LearnModelOutput{}, WrapDomainError(err)
			}
			model = result.Automaton
			meta.Source = store.SourceLearned
			meta.Merges = result.Stats.Merges
			meta.Promotions = result.Stats.Promotions
			stats = LearnStats{
				TreeNodes:  result.Stats.TreeNodes,
				Traces:     result.Stats.Traces,
				Merges:     result.Stats.Merges,
				Promotions: result.Stats.Promotions,
				ElapsedMs:  durationMs(result.Stats.Elapsed),
			}
		}

		saved, err := d.SaveModel(meta, model)
		if err != nil {
			return nil, LearnModelOutput{}, err
		}
		slog.Info("model stored",
			slog.String("id", saved.ID),
			slog.String("source", string(saved.Source)),
			slog.Int("states", saved.States),
		)

		return nil, LearnModelOutput{Model: summarize(saved), Stats: stats, Options: cfg}, nil
	}
}
