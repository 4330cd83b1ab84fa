package table

import (
	"encoding/csv"
	"errors"
	"io"

	"github.com/rotisserie/eris"
)

// readCSVRows reads a raw yard CSV. Banner rows above the header may have a
// different field count, so records are not required to be the same width.
func readCSVRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "table: read csv row")
		}
		rows = append(rows, record)
	}
}
