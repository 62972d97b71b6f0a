package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/acadimport/internal/core"
	"github.com/JonMunkholm/acadimport/internal/spreadsheet"
)

func newTemplateCmd() *cobra.Command {
	var (
		kind        string
		output      string
		withSamples bool
	)

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write a blank .xlsx template for an import kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := core.Lookup(kind)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("%w (known: %v)", err, core.Kinds()))
			}
			if output == "" {
				output = spreadsheet.TemplateFileName(schema)
			}

			data, err := spreadsheet.WriteTemplate(schema, withSamples)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Import kind, e.g. results or admins (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: <kind>-template.xlsx)")
	cmd.Flags().BoolVar(&withSamples, "samples", false, "Include example rows")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List import kinds and their columns",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			for _, schema := range core.All() {
				fmt.Fprintf(out, "%s: %s\n", schema.Kind, schema.Label)
				for _, f := range schema.Fields {
					req := ""
					if f.Required {
						req = " (required)"
					}
					fmt.Fprintf(out, "  %-12s %s%s\n", f.Name, f.DisplayName(), req)
				}
				if len(schema.Context) > 0 {
					labels := make([]string, len(schema.Context))
					for i, c := range schema.Context {
						labels[i] = c.Label
					}
					fmt.Fprintf(out, "  chosen at upload: %s\n", strings.Join(labels, ", "))
				}
			}
		},
	}
}
