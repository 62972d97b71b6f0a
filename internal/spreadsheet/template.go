package spreadsheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/acadimport/internal/core"
)

const (
	instructionsSheet = "Instructions"
	maxSheetName      = 31
	columnWidth       = 22
)

// TemplateFileName returns the download name for a kind's template.
func TemplateFileName(schema *core.TargetSchema) string {
	return schema.Kind + "-template.xlsx"
}

// WriteTemplate builds an .xlsx template for schema. The first sheet's header
// row holds the canonical field names; withSamples adds the schema's example
// rows under it. A second sheet explains each column.
func WriteTemplate(schema *core.TargetSchema, withSamples bool) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(schema)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	header := make([]any, len(schema.Fields))
	for i, name := range schema.Columns() {
		header[i] = name
	}
	if err := writeRow(f, sheet, 1, header); err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	if withSamples {
		for i, sample := range schema.SampleRows {
			row := make([]any, len(sample))
			for j, v := range sample {
				row[j] = v
			}
			if err := writeRow(f, sheet, i+2, row); err != nil {
				return nil, err
			}
		}
	}

	if len(schema.Fields) > 0 {
		last, err := excelize.ColumnNumberToName(len(schema.Fields))
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, "A", last, columnWidth); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	if err := writeInstructions(f, schema, bold); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write template: %w", err)
	}
	return buf.Bytes(), nil
}

func writeInstructions(f *excelize.File, schema *core.TargetSchema, bold int) error {
	if _, err := f.NewSheet(instructionsSheet); err != nil {
		return fmt.Errorf("add instructions sheet: %w", err)
	}

	n := 1
	put := func(values ...any) error {
		err := writeRow(f, instructionsSheet, n, values)
		n++
		return err
	}

	if err := put("Column", "Label", "Required", "Also accepted", "Notes"); err != nil {
		return err
	}
	for _, field := range schema.Fields {
		required := "no"
		if field.Required {
			required = "yes"
		}
		if err := put(field.Name, field.DisplayName(), required, strings.Join(field.Aliases, ", "), fieldNotes(field)); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(instructionsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style instructions header: %w", err)
	}

	if len(schema.Context) > 0 {
		n++
		contextHeader := n
		if err := put("Chosen when uploading", "", "Required"); err != nil {
			return err
		}
		for _, c := range schema.Context {
			required := "no"
			if c.Required {
				required = "yes"
			}
			if err := put(c.Label, "", required); err != nil {
				return err
			}
		}
		if err := f.SetRowStyle(instructionsSheet, contextHeader, contextHeader, bold); err != nil {
			return fmt.Errorf("style instructions header: %w", err)
		}
	}

	return f.SetColWidth(instructionsSheet, "A", "E", columnWidth)
}

func fieldNotes(field core.FieldSpec) string {
	var notes []string
	if field.Default != nil {
		notes = append(notes, "Filled automatically when blank ("+field.Default.Name+")")
	}
	if field.Derive != nil {
		notes = append(notes, "Also sets "+field.Derive.Field)
	}
	return strings.Join(notes, "; ")
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// sheetName derives a valid worksheet name from the schema label.
func sheetName(schema *core.TargetSchema) string {
	name := schema.Label
	if name == "" {
		name = schema.Kind
	}
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '-'
		}
		return r
	}, name)
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if name == "" || name == instructionsSheet {
		name = "Import"
	}
	return name
}
