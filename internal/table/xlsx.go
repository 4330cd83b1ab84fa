package table

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// readXLSXSheets returns the cell strings of every sheet in workbook order.
func readXLSXSheets(path string) ([]sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "table: open xlsx")
	}

	sheets := make([]sheet, 0, len(f.Sheets))
	for _, sh := range f.Sheets {
		rows := make([][]string, 0, len(sh.Rows))
		for _, row := range sh.Rows {
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			rows = append(rows, rowToStrings(row))
		}
		sheets = append(sheets, sheet{name: sh.Name, rows: rows})
	}
	return sheets, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cell.String()
	}
	return cells
}
