package main

import (
	"github.com/spf13/cobra"
)

func newRenderCmd(opts *globalOptions) *cobra.Command {
	var (
		out    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "render MODEL",
		Short: "Convert a model between DOT and JSON",
		Example: `  alergia render pump.json -o pump.dot
  alergia render pump.dot --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := readModel(args[0])
			if err != nil {
				return err
			}
			return writeModel(cmd, a, out, format)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&format, "format", "", "Model format: dot or json (default: from --out extension, else dot)")
	return cmd
}
