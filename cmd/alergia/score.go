package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/usestring/alergia-mcp/internal/analysis"
)

func newScoreCmd(opts *globalOptions) *cobra.Command {
	var (
		modelPath string
		mode      string
		weight    float64
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:     "score --model FILE [flags] PATTERN...",
		Short:   "Compute revision scores of traces against a model",
		Example: `  alergia score -m pump.dot 'traces/new/*.yaml'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := analysis.ParseScoreMode(mode)
			if err != nil {
				return err
			}
			a, err := readModel(modelPath)
			if err != nil {
				return err
			}
			traces, err := opts.loadTraces(args)
			if err != nil {
				return err
			}

			rep, err := analysis.ScoreTraces(cmd.Context(), a, traces, m, weight, opts.cfg.AnalysisWorkers)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			report(cmd).to(cmd.OutOrStdout()).scores(rep)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&modelPath, "model", "m", "", "Model file (.dot or .json)")
	f.StringVar(&mode, "mode", opts.cfg.ScoreMode, "Score mode: best, rooted or global")
	f.Float64Var(&weight, "weight", opts.cfg.FrequencyWeight, "Weight of the frequency term against the timing term")
	f.BoolVar(&asJSON, "json", false, "Print the report as JSON")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}
