package core

// normalize.go turns one raw data row into a NormalizedRow.
//
// Validation is exhaustive per row: every field is coerced and every problem
// is recorded, so the operator sees all errors for a row at once. Row rules
// run after the per-field pass and judge presence on the raw cell, so a value
// that failed coercion is not reported a second time as absent.

import (
	"fmt"
	"strings"
)

// Normalize coerces row against schema using mapping. rowNumber is the
// 1-based sheet row used in error messages.
func Normalize(row []CellValue, mapping ColumnMapping, schema *TargetSchema, rowNumber int) NormalizedRow {
	out := NormalizedRow{
		SourceRowNumber: rowNumber,
		Fields:          make(map[string]any, len(schema.Fields)),
		Cells:           rowText(row),
	}

	for _, spec := range schema.Fields {
		label := spec.DisplayName()
		if spec.Derive != nil {
			out.Fields[spec.Derive.Field] = nil
		}

		col, ok := mapping.Fields[spec.Name]
		if !ok {
			out.Fields[spec.Name] = nil
			if spec.Required {
				out.Errors = append(out.Errors, fmt.Sprintf("Row %d: Missing %s", rowNumber, label))
			}
			continue
		}

		val, err := Coerce(cellAt(row, col), spec.Rule, label)
		if err != nil {
			out.Fields[spec.Name] = nil
			out.Errors = append(out.Errors, fmt.Sprintf("Row %d: %s", rowNumber, err.Error()))
			continue
		}
		out.Fields[spec.Name] = val
		if spec.Derive != nil && val != nil {
			out.Fields[spec.Derive.Field] = spec.Derive.Fn(val)
		}
	}

	for _, rule := range schema.RowRules {
		if msg := checkRowRule(rule, row, mapping, schema); msg != "" {
			out.Errors = append(out.Errors, fmt.Sprintf("Row %d: %s", rowNumber, msg))
		}
	}

	for _, col := range mapping.Unmapped {
		text := CellText(cellAt(row, col))
		if text == "" {
			continue
		}
		if out.Extras == nil {
			out.Extras = make(map[string]string)
		}
		out.Extras[extraKey(mapping.Headers, col)] = text
	}

	return out
}

func checkRowRule(rule RowRule, row []CellValue, mapping ColumnMapping, schema *TargetSchema) string {
	switch rule.Kind {
	case RowRuleAtLeastOneOf:
		labels := make([]string, 0, len(rule.Fields))
		for _, name := range rule.Fields {
			if col, ok := mapping.Fields[name]; ok && CellText(cellAt(row, col)) != "" {
				return ""
			}
			if f, ok := schema.Field(name); ok {
				labels = append(labels, f.DisplayName())
			} else {
				labels = append(labels, name)
			}
		}
		return "Provide at least one of " + joinOr(labels)
	default:
		return ""
	}
}

// joinOr renders ["A", "B", "C"] as "A, B or C".
func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
	}
}

func extraKey(headers []string, col int) string {
	if col < len(headers) {
		if h := strings.TrimSpace(headers[col]); h != "" {
			return h
		}
	}
	return fmt.Sprintf("Column %d", col+1)
}

// rowText renders every cell of a row as cleaned text.
func rowText(row []CellValue) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = CellText(c)
	}
	return out
}
