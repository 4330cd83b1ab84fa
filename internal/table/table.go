// Package table reads the yard spreadsheet into typed records and reads and
// writes the geocoded CSV.
package table

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/yardfinder/internal/model"
)

// MissingColumnError reports a required column absent from the input header.
type MissingColumnError struct {
	Column string
	Source string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("table: %s: missing required column %q", e.Source, e.Column)
}

// ReadRecords parses an .xlsx or .csv yard table at path.
func ReadRecords(path string) ([]model.RawAddressRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		sheets, err := readXLSXSheets(path)
		if err != nil {
			return nil, err
		}
		return recordsFromSheets(path, sheets)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "table: open csv")
		}
		defer f.Close() //nolint:errcheck
		rows, err := readCSVRows(f)
		if err != nil {
			return nil, err
		}
		return recordsFromSheets(path, []sheet{{name: filepath.Base(path), rows: rows}})
	default:
		return nil, eris.Errorf("table: unsupported input format %q (want .xlsx or .csv)", filepath.Ext(path))
	}
}

// sheet is one grid of cell strings.
type sheet struct {
	name string
	rows [][]string
}

// recordsFromSheets concatenates the data rows of every sheet that carries a
// yard header. Row numbers run across sheets in reading order.
func recordsFromSheets(source string, sheets []sheet) ([]model.RawAddressRecord, error) {
	var records []model.RawAddressRecord
	found := false
	for _, sh := range sheets {
		headerIdx := findHeader(sh.rows)
		if headerIdx < 0 {
			zap.L().Debug("table: no header row, skipping sheet", zap.String("sheet", sh.name))
			continue
		}
		found = true

		cols, err := mapColumns(sh.rows[headerIdx], source)
		if err != nil {
			return nil, err
		}

		for _, cells := range sh.rows[headerIdx+1:] {
			rec := cols.record(cells)
			if rec.Yard == "" && rec.Street == "" {
				continue
			}
			rec.Row = len(records)
			records = append(records, rec)
		}
	}
	if !found {
		return nil, &MissingColumnError{Column: model.ColYard, Source: source}
	}
	return records, nil
}

// findHeader returns the index of the first row naming the yard column, or -1.
func findHeader(rows [][]string) int {
	for i, row := range rows {
		for _, cell := range row {
			if headerName(cell) == model.ColYard {
				return i
			}
		}
	}
	return -1
}

func headerName(cell string) string {
	return strings.ToUpper(strings.Join(strings.Fields(cell), " "))
}

// columnIndex maps column names to their cell position; -1 when absent.
type columnIndex map[string]int

func mapColumns(header []string, source string) (columnIndex, error) {
	cols := columnIndex{}
	for i, cell := range header {
		name := headerName(cell)
		if _, dup := cols[name]; !dup && name != "" {
			cols[name] = i
		}
	}
	for _, req := range model.RequiredColumns {
		if _, ok := cols[req]; !ok {
			return nil, &MissingColumnError{Column: req, Source: source}
		}
	}
	return cols, nil
}

func (c columnIndex) get(cells []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func (c columnIndex) record(cells []string) model.RawAddressRecord {
	return model.RawAddressRecord{
		Yard:         c.get(cells, model.ColYard),
		Street:       c.get(cells, model.ColStreet),
		ZipCode:      c.get(cells, model.ColZipCode),
		County:       c.get(cells, model.ColCounty),
		Municipality: c.get(cells, model.ColMunicipality),
		Phone:        c.get(cells, model.ColPhone),
		Supervisor:   c.get(cells, model.ColSupervisor),
	}
}
