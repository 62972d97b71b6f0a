package core

// batch.go validates a whole table without aborting on row errors.
//
// Flow:
//  1. Skip blank rows; a table with none left is ErrEmptyFile
//  2. Classify the header once (or apply the operator's overrides)
//  3. Stop early if a required column is missing
//  4. Normalize rows up to the row limit; mark the rest as overflow
//  5. Reject later duplicates of an identifier
//  6. Partition into accepted and rejected, keeping input order

import (
	"fmt"
	"strings"
)

const (
	// DefaultMaxRows bounds one import when neither the schema nor config sets a limit.
	DefaultMaxRows = 500

	// DefaultReportLimit caps the error list shown to the operator.
	DefaultReportLimit = 10
)

// BatchValidator validates RawTables against a TargetSchema.
// It holds no per-batch state and is safe for concurrent use.
type BatchValidator struct {
	maxRows int
}

// NewBatchValidator creates a validator. maxRows applies to schemas that do
// not set their own limit; values below 1 fall back to DefaultMaxRows.
func NewBatchValidator(maxRows int) *BatchValidator {
	if maxRows < 1 {
		maxRows = DefaultMaxRows
	}
	return &BatchValidator{maxRows: maxRows}
}

// Limit returns the effective row limit for schema.
func (v *BatchValidator) Limit(schema *TargetSchema) int {
	if schema.MaxRows > 0 {
		return schema.MaxRows
	}
	if v == nil || v.maxRows < 1 {
		return DefaultMaxRows
	}
	return v.maxRows
}

// Validate classifies and validates table.
//
// Fatal problems are returned as errors: ErrEmptyFile when no data rows
// remain, ErrMissingRequiredColumn (with a result holding only batch errors)
// when the header lacks a required column. Everything else is reported in
// the result.
func (v *BatchValidator) Validate(table RawTable, schema *TargetSchema) (*BatchValidationResult, error) {
	return v.ValidateWithOverrides(table, schema, nil)
}

// ValidateWithOverrides is Validate with operator column overrides applied
// on top of the heuristic mapping.
func (v *BatchValidator) ValidateWithOverrides(table RawTable, schema *TargetSchema, overrides map[string]int) (*BatchValidationResult, error) {
	var dataRows []int
	for i, row := range table.Rows {
		if !isBlankRow(row) {
			dataRows = append(dataRows, i)
		}
	}
	if len(dataRows) == 0 {
		return nil, fmt.Errorf("%w: no rows after the header", ErrEmptyFile)
	}

	mapping := Classify(table.Headers, schema)
	if len(overrides) > 0 {
		var err error
		if mapping, err = ApplyOverrides(mapping, overrides, schema); err != nil {
			return nil, err
		}
	}

	result := &BatchValidationResult{
		Mapping:   mapping,
		TotalRows: len(dataRows),
	}
	result.BatchErrors = append(result.BatchErrors, mapping.Warnings...)

	if len(mapping.Missing) > 0 {
		labels := make([]string, len(mapping.Missing))
		for i, name := range mapping.Missing {
			f, _ := schema.Field(name)
			labels[i] = f.DisplayName()
			result.BatchErrors = append(result.BatchErrors, "Missing required column: "+labels[i])
		}
		return result, fmt.Errorf("%w: %s", ErrMissingRequiredColumn, strings.Join(labels, ", "))
	}

	limit := v.Limit(schema)
	rows := make([]NormalizedRow, 0, min(len(dataRows), limit))
	var overflow []NormalizedRow
	for n, i := range dataRows {
		rowNum := table.RowNumber(i)
		if n >= limit {
			overflow = append(overflow, NormalizedRow{SourceRowNumber: rowNum, Overflow: true, Cells: rowText(table.Rows[i])})
			continue
		}
		rows = append(rows, Normalize(table.Rows[i], mapping, schema, rowNum))
	}
	if len(overflow) > 0 {
		result.Truncated = true
		result.BatchErrors = append(result.BatchErrors, fmt.Sprintf(
			"Too many rows: %d data rows, only the first %d were processed", len(dataRows), limit))
	}

	markDuplicates(rows, schema)

	for _, row := range rows {
		if len(row.Errors) == 0 {
			result.Accepted = append(result.Accepted, row)
		} else {
			result.Rejected = append(result.Rejected, row)
		}
	}
	result.Rejected = append(result.Rejected, overflow...)

	return result, nil
}

// markDuplicates keeps one row per identifier and rejects the others.
// The kept row is the first occurrence without errors, so an invalid first
// row does not block a valid repeat; when every occurrence has errors the
// first one is kept. Identifiers compare trimmed and case-insensitively.
func markDuplicates(rows []NormalizedRow, schema *TargetSchema) {
	id := schema.Identifier()
	if id.Name == "" {
		return
	}
	keep := make(map[string]int, len(rows))
	for i := range rows {
		key := identifierKey(rows[i].Fields[id.Name])
		if _, ok := keep[key]; key != "" && !ok && len(rows[i].Errors) == 0 {
			keep[key] = i
		}
	}

	firstSeen := make(map[string]int, len(rows))
	for i := range rows {
		key := identifierKey(rows[i].Fields[id.Name])
		if key == "" {
			continue
		}
		first, seen := firstSeen[key]
		if !seen {
			firstSeen[key], first = i, i
		}
		ref, ok := keep[key]
		if !ok {
			ref = first
		}
		if ref == i {
			continue
		}
		where := "first seen in"
		if ref != first {
			where = "kept in"
		}
		rows[i].Errors = append(rows[i].Errors, fmt.Sprintf(
			"Row %d: Duplicate %s %q (%s row %d)",
			rows[i].SourceRowNumber, id.DisplayName(), CellText(rows[i].Fields[id.Name]), where, rows[ref].SourceRowNumber))
	}
}

// identifierKey is the comparison form of an identifier value.
func identifierKey(v any) string {
	return strings.ToUpper(strings.TrimSpace(CellText(v)))
}

// ErrorCount returns the number of batch and row errors.
func (r *BatchValidationResult) ErrorCount() int {
	n := len(r.BatchErrors)
	for _, row := range r.Rejected {
		n += len(row.Errors)
	}
	return n
}

// OverflowCount returns how many rows were past the row limit.
func (r *BatchValidationResult) OverflowCount() int {
	n := 0
	for _, row := range r.Rejected {
		if row.Overflow {
			n++
		}
	}
	return n
}

// Report returns the operator-facing error list: batch errors first, then
// row errors in row order. When more than limit errors exist the list is cut
// and ends with "...and N more". A limit below 1 returns everything.
func (r *BatchValidationResult) Report(limit int) []string {
	all := make([]string, 0, len(r.BatchErrors))
	all = append(all, r.BatchErrors...)
	for _, row := range r.Rejected {
		all = append(all, row.Errors...)
	}
	if limit < 1 || len(all) <= limit {
		return all
	}
	out := append(all[:limit:limit], fmt.Sprintf("...and %d more", len(all)-limit))
	return out
}
