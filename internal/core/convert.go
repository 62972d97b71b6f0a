package core

// convert.go turns raw spreadsheet cells into clean text.
//
// Cells arrive from two very different sources:
//   - workbook parsers, which hand back strings and sometimes float64s
//   - CSV files, which carry Excel artifacts like ="00123" and stray quotes
//
// Everything downstream works on the cleaned text form so both sources
// behave the same way.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// CellText renders a cell as cleaned text. Numbers are rendered without
// trailing zeros so 85.0 becomes "85".
func CellText(v CellValue) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return CleanCell(c)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(c), 'f', -1, 32)
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	case bool:
		return strconv.FormatBool(c)
	case fmt.Stringer:
		return CleanCell(c.String())
	default:
		return CleanCell(fmt.Sprint(c))
	}
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// NormalizeHeader lower-cases a header and strips every rune that is not a
// letter or digit, so "Student No." and "student_no" compare equal.
func NormalizeHeader(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(CleanCell(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isBlankRow reports whether every cell in the row is blank after cleaning.
func isBlankRow(row []CellValue) bool {
	for _, c := range row {
		if CellText(c) != "" {
			return false
		}
	}
	return true
}

// cellAt returns the cell at col, or nil for short rows.
func cellAt(row []CellValue, col int) CellValue {
	if col < 0 || col >= len(row) {
		return nil
	}
	return row[col]
}

// parseWholeNumber accepts integers and whole-number floats ("85", "85.0",
// float64(85)). Thousands separators are tolerated.
func parseWholeNumber(raw CellValue, text string) (int, bool) {
	var f float64
	switch c := raw.(type) {
	case int:
		return c, true
	case int64:
		return int(c), true
	case float64:
		f = c
	default:
		s := strings.ReplaceAll(text, ",", "")
		if !numericRegex.MatchString(s) {
			return 0, false
		}
		var err error
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}
