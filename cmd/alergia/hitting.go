package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/usestring/alergia-mcp/internal/analysis"
)

func newHittingCmd(opts *globalOptions) *cobra.Command {
	var (
		modelPath  string
		targets    []string
		sampleRate float64
		maxSamples int
		parallel   bool
	)

	cmd := &cobra.Command{
		Use:   "hitting --model FILE --target OUTPUT [flags] [PATTERN...]",
		Short: "Predict mean hitting times, or compare them against traces",
		Long: `Without trace patterns, hitting prints the expected time from every state
until an output in --target is emitted. With patterns, predictions are
compared against the times observed at sampled trace prefixes.`,
		Example: `  alergia hitting -m pump.dot -t pumping
  alergia hitting -m pump.dot -t pumping --sample-rate 0.5 'traces/*.log'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := readModel(modelPath)
			if err != nil {
				return err
			}
			out := report(cmd).to(cmd.OutOrStdout())

			if len(args) == 0 {
				times, err := analysis.MeanHittingTimes(a, opts.defaultInput, a.StatesWithOutputs(targets...))
				var unconnected *analysis.UnconnectedAutomatonError
				if errors.As(err, &unconnected) {
					out.unconnected(unconnected.States)
					return fmt.Errorf("model cannot reach %v from every state", targets)
				}
				if err != nil {
					return err
				}
				out.hittingTimes(a, times)
				return nil
			}

			traces, err := opts.loadTraces(args)
			if err != nil {
				return err
			}
			rep, err := analysis.HittingTimeDelta(cmd.Context(), a, traces, analysis.HittingConfig{
				Input:         opts.defaultInput,
				TargetOutputs: targets,
				SampleRate:    sampleRate,
				MaxSamples:    maxSamples,
				Parallel:      parallel,
				Workers:       opts.cfg.AnalysisWorkers,
			})
			if err != nil {
				return err
			}
			if !rep.Usable {
				out.unconnected(rep.Unconnected)
				return fmt.Errorf("model cannot reach %v from every state", targets)
			}
			out.deltas(summarize(rep))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&modelPath, "model", "m", "", "Model file (.dot or .json)")
	f.StringSliceVarP(&targets, "target", "t", nil, "Target outputs (repeatable or comma separated)")
	f.Float64Var(&sampleRate, "sample-rate", opts.cfg.HittingSampleRate, "Fraction of trace prefixes to sample, in (0, 1]")
	f.IntVar(&maxSamples, "max-samples", opts.cfg.HittingMaxSamples, "Upper bound on samples per trace")
	f.BoolVar(&parallel, "parallel", false, "Process traces in parallel")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}
