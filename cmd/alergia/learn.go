package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/usestring/alergia-mcp/internal/alergia"
	"github.com/usestring/alergia-mcp/internal/pta"
	"github.com/usestring/alergia-mcp/pkg/automaton"
)

func newLearnCmd(opts *globalOptions) *cobra.Command {
	var (
		profile  string
		order    string
		freqSig  float64
		freqDec  float64
		timeSig  float64
		timeDec  float64
		tail     int
		merged   bool
		parallel bool
		treeOnly bool
		out      string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "learn [flags] PATTERN...",
		Short: "Learn a timed automaton from trace files",
		Example: `  alergia learn 'traces/**/*.yaml' -o pump.dot
  alergia learn --profile coarse.yaml --root logs/*.log -o model.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg.Learner()
			if profile != "" {
				var err error
				if cfg, err = loadProfile(profile, cfg); err != nil {
					return err
				}
			}

			flags := cmd.Flags()
			if flags.Changed("order") {
				o, err := alergia.ParseOrder(order)
				if err != nil {
					return err
				}
				cfg.Order = o
			}
			if flags.Changed("freq-significance") {
				cfg.FrequencySignificance = freqSig
			}
			if flags.Changed("freq-decay") {
				cfg.FrequencyDecay = freqDec
			}
			if flags.Changed("timing-significance") {
				cfg.TimingSignificance = timeSig
			}
			if flags.Changed("timing-decay") {
				cfg.TimingDecay = timeDec
			}
			if flags.Changed("tail") {
				cfg.TailLength = nil
				if tail >= 0 {
					cfg.TailLength = alergia.Tail(tail)
				}
			}
			if flags.Changed("analyze-merged") {
				cfg.AnalyzeMergedSamples = merged
			}
			if flags.Changed("parallel") {
				cfg.Parallel = parallel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			traces, err := opts.loadTraces(args)
			if err != nil {
				return err
			}

			var model *automaton.Automaton
			if treeOnly {
				tree, err := pta.FromTraces(traces)
				if err != nil {
					return err
				}
				if model, err = tree.Automaton(); err != nil {
					return err
				}
				report(cmd).learned(model, nil)
			} else {
				result, err := alergia.Learn(cmd.Context(), traces, cfg)
				if err != nil {
					return err
				}
				model = result.Automaton
				report(cmd).learned(model, &result.Stats)
			}

			slog.Debug("writing model", slog.String("path", out), slog.String("format", format))
			return writeModel(cmd, model, out, format)
		},
	}

	f := cmd.Flags()
	f.StringVar(&profile, "profile", "", "YAML file with learner options")
	f.StringVar(&order, "order", "", "Blue state order: fifo, lifo, canonical or lex")
	f.Float64Var(&freqSig, "freq-significance", 0, "Significance level of the frequency test")
	f.Float64Var(&freqDec, "freq-decay", 0, "Per-depth multiplier of the frequency significance")
	f.Float64Var(&timeSig, "timing-significance", 0, "Significance level of the timing test")
	f.Float64Var(&timeDec, "timing-decay", 0, "Per-depth multiplier of the timing significance")
	f.IntVar(&tail, "tail", -1, "Depth after which tests are skipped; negative means unlimited")
	f.BoolVar(&merged, "analyze-merged", false, "Test aggregated evidence of merged states")
	f.BoolVar(&parallel, "parallel", false, "Scan red states in parallel")
	f.BoolVar(&treeOnly, "tree", false, "Write the unmerged prefix tree instead of learning")
	f.StringVarP(&out, "out", "o", "", "Output file (default: stdout)")
	f.StringVar(&format, "format", "", "Model format: dot or json (default: from --out extension, else dot)")
	return cmd
}
