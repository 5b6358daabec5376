package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/usestring/alergia-mcp/internal/config"
	"github.com/usestring/alergia-mcp/internal/logging"
	"github.com/usestring/alergia-mcp/internal/traceio"
	"github.com/usestring/alergia-mcp/pkg/automaton"
	"github.com/usestring/alergia-mcp/pkg/trace"
)

// globalOptions holds flags shared by every subcommand.
type globalOptions struct {
	cfg *config.Config

	logLevel     string
	noColor      bool
	baseDir      string
	defaultInput string
	root         bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{cfg: config.Load()}

	cmd := &cobra.Command{
		Use:   "alergia",
		Short: "Learn and analyze timed automata from traces",
		Long: `alergia learns a timed automaton from recorded traces with the Alergia
state-merging algorithm, then scores new traces against it and predicts
hitting times. Trace files are JSON or YAML documents or timestamped logs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.noColor {
				color.NoColor = true
			}
			_, _, err := logging.Setup(logging.Config{
				Level:  opts.logLevel,
				Format: opts.cfg.LogFormat,
				Writer: cmd.ErrOrStderr(),
			})
			return err
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", "warn", "Logging level (debug, info, warn, error)")
	pf.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	pf.StringVar(&opts.baseDir, "base-dir", "", "Directory that trace patterns resolve against")
	pf.StringVar(&opts.defaultInput, "input", opts.cfg.DefaultInput, "Input symbol for timestamp log steps and hitting times")
	pf.BoolVar(&opts.root, "root", false, "Prepend a synthetic root output to every trace")

	cmd.AddCommand(
		newLearnCmd(opts),
		newScoreCmd(opts),
		newHittingCmd(opts),
		newRenderCmd(opts),
		newSchemaCmd(opts),
	)
	return cmd
}

// loadTraces reads the traces matched by patterns.
func (o *globalOptions) loadTraces(patterns []string) ([]trace.Trace, error) {
	traces, err := traceio.LoadFiles(o.baseDir, patterns, o.defaultInput)
	if err != nil {
		return nil, err
	}
	slog.Info("traces loaded", slog.Int("traces", len(traces)), slog.Int("patterns", len(patterns)))
	if o.root {
		traces = trace.RootAll(traces, o.cfg.RootOutput, o.defaultInput)
	}
	return traces, nil
}

// readModel loads a DOT or JSON model file; the format follows the extension.
func readModel(path string) (*automaton.Automaton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a *automaton.Automaton
	if strings.EqualFold(filepath.Ext(path), ".json") {
		a, err = automaton.ParseJSON(data)
	} else {
		a, err = automaton.ParseDOT(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// writeModel writes a to path, or to the command output when path is empty.
// An empty format follows the extension of path and defaults to DOT.
func writeModel(cmd *cobra.Command, a *automaton.Automaton, path, format string) error {
	if format == "" {
		format = "dot"
		if strings.EqualFold(filepath.Ext(path), ".json") {
			format = "json"
		}
	}

	var data []byte
	switch strings.ToLower(format) {
	case "dot":
		data = []byte(a.DOT())
	case "json":
		raw, err := a.MarshalJSON()
		if err != nil {
			return err
		}
		data = append(raw, '\n')
	default:
		return fmt.Errorf("unknown model format %q (want dot or json)", format)
	}

	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
