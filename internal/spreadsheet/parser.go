// Package spreadsheet reads uploaded workbooks and CSV files into
// core.RawTable values and writes downloadable import templates.
package spreadsheet

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/acadimport/internal/core"
)

// MaxHeaderSearchRows is how many leading rows are scanned for the header.
const MaxHeaderSearchRows = 20

// contextCheckInterval is how often row conversion checks for cancellation.
const contextCheckInterval = 100

var (
	ole2Signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	zipSignature  = []byte{'P', 'K', 0x03, 0x04}
)

// Parser implements core.TableParser for .xlsx workbooks and CSV files.
type Parser struct {
	// HeaderSearchRows overrides MaxHeaderSearchRows when positive.
	HeaderSearchRows int
}

// NewParser creates a parser with default settings.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads the first worksheet of a workbook, or the whole of a CSV file.
// The header is the first non-blank row; every later row is data.
func (p *Parser) Parse(ctx context.Context, fileName string, data []byte) (core.RawTable, error) {
	if len(data) == 0 {
		return core.RawTable{}, fmt.Errorf("%w: %s is empty", core.ErrEmptyFile, fileName)
	}

	var (
		rows [][]string
		err  error
	)
	switch format := detectFormat(fileName, data); format {
	case formatLegacyExcel:
		return core.RawTable{}, fmt.Errorf("%w: %s is a legacy .xls workbook; save it as .xlsx and upload again",
			core.ErrFileUnreadable, fileName)
	case formatWorkbook:
		rows, err = readWorkbook(data)
	case formatCSV:
		rows, err = readCSV(data)
	default:
		return core.RawTable{}, fmt.Errorf("%w: %s is not an .xlsx or .csv file", core.ErrFileUnreadable, fileName)
	}
	if err != nil {
		return core.RawTable{}, err
	}

	return p.toTable(ctx, fileName, rows)
}

func (p *Parser) toTable(ctx context.Context, fileName string, rows [][]string) (core.RawTable, error) {
	limit := p.HeaderSearchRows
	if limit <= 0 {
		limit = MaxHeaderSearchRows
	}

	headerIdx := -1
	for i := 0; i < len(rows) && i < limit; i++ {
		if !blankRow(rows[i]) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return core.RawTable{}, fmt.Errorf("%w: no header row in the first %d rows of %s", core.ErrEmptyFile, limit, fileName)
	}

	headers := make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		headers[i] = core.CleanCell(h)
	}

	body := rows[headerIdx+1:]
	table := core.RawTable{
		Headers:         headers,
		Rows:            make([][]core.CellValue, 0, len(body)),
		HeaderRowNumber: headerIdx + 1,
	}

	dataRows := 0
	for i, row := range body {
		if i%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return core.RawTable{}, err
			}
		}
		cells := make([]core.CellValue, len(row))
		for j, c := range row {
			cells[j] = c
		}
		if !blankRow(row) {
			dataRows++
		}
		table.Rows = append(table.Rows, cells)
	}
	if dataRows == 0 {
		return core.RawTable{}, fmt.Errorf("%w: %s has a header but no data rows", core.ErrEmptyFile, fileName)
	}
	return table, nil
}

type fileFormat int

const (
	formatUnknown fileFormat = iota
	formatWorkbook
	formatLegacyExcel
	formatCSV
)

// detectFormat trusts the file signature over the extension.
func detectFormat(fileName string, data []byte) fileFormat {
	switch {
	case bytes.HasPrefix(data, ole2Signature):
		return formatLegacyExcel
	case bytes.HasPrefix(data, zipSignature):
		return formatWorkbook
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt", "":
		return formatCSV
	case ".xls":
		return formatLegacyExcel
	}
	return formatUnknown
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", core.ErrFileUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", core.ErrFileUnreadable)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", core.ErrFileUnreadable, sheets[0], err)
	}
	return rows, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if core.CleanCell(c) != "" {
			return false
		}
	}
	return true
}
