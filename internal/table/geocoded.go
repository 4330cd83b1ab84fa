package table

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/yardfinder/internal/model"
)

// WriteGeocoded writes rows as CSV with a header line. Rows without
// coordinates get empty Latitude and Longitude cells.
func WriteGeocoded(w io.Writer, rows []model.GeocodedRow) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if len(rows) == 0 {
		if err := enc.EncodeHeader(model.GeocodedRow{}); err != nil {
			return eris.Wrap(err, "table: encode header")
		}
	}
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return eris.Wrapf(err, "table: encode row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "table: flush csv")
}

// ReadGeocoded reads a geocoded CSV. Unknown columns are ignored.
func ReadGeocoded(r io.Reader) ([]model.GeocodedRow, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "table: read geocoded header")
	}

	header := map[string]bool{}
	for _, h := range dec.Header() {
		header[h] = true
	}
	for _, col := range []string{model.ColYard, model.ColLatitude, model.ColLongitude} {
		if !header[col] {
			return nil, &MissingColumnError{Column: col, Source: "geocoded table"}
		}
	}

	var rows []model.GeocodedRow
	for {
		var row model.GeocodedRow
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "table: decode geocoded row %d", len(rows))
		}
		rows = append(rows, row)
	}
}

// SaveGeocoded writes rows to path, creating parent directories.
func SaveGeocoded(path string, rows []model.GeocodedRow) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "table: create output dir")
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "table: create geocoded csv")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = eris.Wrap(cerr, "table: close geocoded csv")
		}
	}()
	return WriteGeocoded(f, rows)
}

// LoadGeocoded reads the geocoded CSV at path.
func LoadGeocoded(path string) ([]model.GeocodedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "table: open geocoded csv")
	}
	defer f.Close() //nolint:errcheck
	return ReadGeocoded(f)
}
