package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/acadimport/internal/core"
)

var errCSV = fmt.Errorf("%w: malformed CSV", core.ErrFileUnreadable)

// readCSV parses CSV data leniently: ragged rows and stray quotes are
// accepted, a UTF-8 BOM is dropped and invalid UTF-8 is replaced.
//
// encoding/csv skips blank lines; they are put back as empty rows so row
// numbers match what a spreadsheet program shows for the same file.
func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(newCSVSource(bytes.NewReader(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	next := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errCSV, err)
		}

		start, _ := r.FieldPos(0)
		for ; next < start; next++ {
			rows = append(rows, nil)
		}
		rows = append(rows, rec)
		end, _ := r.FieldPos(len(rec) - 1)
		next = end + 1
	}
}
