package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/usestring/alergia-mcp/internal/traceio"
)

func newSchemaCmd(opts *globalOptions) *cobra.Command {
	var validate []string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the trace file schema or validate trace files",
		Example: `  alergia schema > traces.schema.json
  alergia schema --validate run1.yaml --validate run2.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(validate) == 0 {
				data, err := traceio.SchemaJSON()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}

			failed := 0
			for _, path := range validate {
				traces, err := traceio.ReadFile(path, opts.defaultInput)
				if err != nil {
					failed++
					badColor.Fprintf(cmd.OutOrStdout(), "FAIL %s\n", path)
					fmt.Fprintf(cmd.OutOrStdout(), "  %v\n", err)
					continue
				}
				goodColor.Fprintf(cmd.OutOrStdout(), "ok   %s", path)
				fmt.Fprintf(cmd.OutOrStdout(), " (%d traces)\n", len(traces))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files invalid", failed, len(validate))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&validate, "validate", nil, "Trace file to validate (repeatable)")
	return cmd
}
