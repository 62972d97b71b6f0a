package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/acadimport/internal/core"
	"github.com/JonMunkholm/acadimport/internal/spreadsheet"
)

type validateOptions struct {
	kind        string
	maxRows     int
	reportLimit int
	asJSON      bool
}

// validateReport is the --json output.
type validateReport struct {
	Kind      string                  `json:"kind"`
	File      string                  `json:"file"`
	TotalRows int                     `json:"totalRows"`
	Accepted  int                     `json:"accepted"`
	Rejected  int                     `json:"rejected"`
	Truncated bool                    `json:"truncated,omitempty"`
	Columns   []core.ColumnAssignment `json:"columns,omitempty"`
	Report    []string                `json:"report,omitempty"`
	Notice    *core.UserMessage       `json:"notice,omitempty"`
	Error     *core.UserMessage       `json:"error,omitempty"`
}

func newValidateCmd() *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Parse and validate a spreadsheet without submitting it",
		Long: "Runs the same column matching and row checks as the import service.\n" +
			"Exit status is 0 when every row is valid, 2 when rows or columns fail validation.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.kind, "kind", "", "Import kind, e.g. results or admins (required)")
	cmd.Flags().IntVar(&opts.maxRows, "max-rows", core.DefaultMaxRows, "Row limit for kinds that declare none")
	cmd.Flags().IntVar(&opts.reportLimit, "report-limit", 10, "Maximum error lines to print; 0 prints all")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}

func runValidate(cmd *cobra.Command, opts validateOptions, path string) error {
	schema, err := core.Lookup(opts.kind)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("%w (known: %v)", err, core.Kinds()))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	report := validateReport{Kind: schema.Kind, File: filepath.Base(path)}
	table, err := spreadsheet.NewParser().Parse(cmd.Context(), path, data)
	var result *core.BatchValidationResult
	if err == nil {
		result, err = core.NewBatchValidator(opts.maxRows).Validate(table, schema)
	}

	if result != nil {
		report.TotalRows = result.TotalRows
		report.Accepted = len(result.Accepted)
		report.Rejected = len(result.Rejected)
		report.Truncated = result.Truncated
		report.Columns = result.Mapping.Assignments()
		report.Report = result.Report(opts.reportLimit)
		if msg, ok := core.OutcomeMessage(result, nil); ok {
			report.Notice = &msg
		}
	}
	if err != nil {
		msg := core.MapError(err)
		report.Error = &msg
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			return encErr
		}
	} else {
		printReport(out, report)
	}

	switch {
	case err != nil && !errors.Is(err, core.ErrMissingRequiredColumn):
		// Nothing was validated; the file itself is the problem.
		return withCode(exitValidation, err)
	case err != nil, report.Rejected > 0, result != nil && len(result.BatchErrors) > 0:
		return withCode(exitValidation, fmt.Errorf("%s failed validation", report.File))
	}
	return nil
}

func printReport(w io.Writer, r validateReport) {
	fmt.Fprintf(w, "%s (%s)\n", r.File, r.Kind)
	if r.Error != nil {
		fmt.Fprintf(w, "  %s (Code: %s). %s\n", r.Error.Message, r.Error.Code, r.Error.Action)
	}
	for _, c := range r.Columns {
		field := c.Field
		if field == "" {
			field = "(ignored)"
		}
		fmt.Fprintf(w, "  column %d %q -> %s\n", c.Index+1, c.Header, field)
	}
	if r.TotalRows > 0 {
		fmt.Fprintf(w, "  rows: %d, accepted: %d, rejected: %d\n", r.TotalRows, r.Accepted, r.Rejected)
	}
	if r.Notice != nil {
		fmt.Fprintf(w, "  %s (Code: %s). %s\n", r.Notice.Message, r.Notice.Code, r.Notice.Action)
	}
	for _, line := range r.Report {
		fmt.Fprintf(w, "  - %s\n", line)
	}
}
