// Package facility holds the in-memory fuel yard collection and answers
// nearest-yard queries over it.
package facility

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/yardfinder/internal/model"
)

// ErrEmptyDataset is returned by Load when no row has usable coordinates.
var ErrEmptyDataset = eris.New("facility: no rows with valid coordinates")

// Store is an immutable collection of facilities. It is safe for concurrent
// readers without locking.
type Store struct {
	facilities []model.Facility
}

// Load builds a Store from a geocoded table. Rows missing a coordinate or
// with an out-of-range coordinate are skipped. A facility's ID is its row
// index in rows.
func Load(rows []model.GeocodedRow) (*Store, error) {
	facilities := make([]model.Facility, 0, len(rows))
	skipped := 0
	for i, row := range rows {
		if row.Latitude == nil || row.Longitude == nil {
			skipped++
			continue
		}
		f := model.Facility{
			ID:           i,
			Name:         clean(row.Yard),
			Address:      clean(row.Street),
			Municipality: clean(row.Municipality),
			County:       clean(row.County),
			PostalCode:   clean(row.ZipCode),
			Phone:        clean(row.Phone),
			Supervisor:   clean(row.Supervisor),
			Latitude:     *row.Latitude,
			Longitude:    *row.Longitude,
		}
		if err := f.Coordinate().Validate(); err != nil {
			zap.L().Warn("facility: skipping row with invalid coordinate", zap.Int("row", i), zap.String("yard", f.Name), zap.Error(err))
			skipped++
			continue
		}
		facilities = append(facilities, f)
	}
	if len(facilities) == 0 {
		return nil, ErrEmptyDataset
	}
	zap.L().Debug("facility: store loaded", zap.Int("facilities", len(facilities)), zap.Int("skipped", skipped))
	return &Store{facilities: facilities}, nil
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Len returns the number of facilities.
func (s *Store) Len() int {
	return len(s.facilities)
}

// All returns every facility in load order. The slice is a copy.
func (s *Store) All() []model.Facility {
	out := make([]model.Facility, len(s.facilities))
	copy(out, s.facilities)
	return out
}

// Get returns the facility with the given ID.
func (s *Store) Get(id int) (model.Facility, bool) {
	for _, f := range s.facilities {
		if f.ID == id {
			return f, true
		}
	}
	return model.Facility{}, false
}

// Filter returns the facilities matching pred in load order. A nil predicate
// matches everything. The store is never modified.
func (s *Store) Filter(pred Predicate) []model.Facility {
	if pred == nil {
		return s.All()
	}
	var out []model.Facility
	for _, f := range s.facilities {
		if pred(f) {
			out = append(out, f)
		}
	}
	return out
}

// Counties returns the distinct non-empty county names, sorted.
func (s *Store) Counties() []string {
	return s.distinct(func(f model.Facility) string { return f.County })
}

// Yards returns the distinct yard names, sorted.
func (s *Store) Yards() []string {
	return s.distinct(func(f model.Facility) string { return f.Name })
}

func (s *Store) distinct(field func(model.Facility) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range s.facilities {
		v := field(f)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Predicate selects facilities.
type Predicate func(model.Facility) bool

// ByCounty matches facilities in the named county, ignoring case and
// surrounding space. An empty name matches every facility.
func ByCounty(name string) Predicate {
	return fieldEquals(name, func(f model.Facility) string { return f.County })
}

// ByYard matches facilities with the given yard name, ignoring case and
// surrounding space. An empty name matches every facility.
func ByYard(name string) Predicate {
	return fieldEquals(name, func(f model.Facility) string { return f.Name })
}

func fieldEquals(want string, field func(model.Facility) string) Predicate {
	want = clean(want)
	if want == "" {
		return nil
	}
	return func(f model.Facility) bool {
		return strings.EqualFold(field(f), want)
	}
}

// And matches facilities accepted by every non-nil predicate.
func And(preds ...Predicate) Predicate {
	var active []Predicate
	for _, p := range preds {
		if p != nil {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(f model.Facility) bool {
		for _, p := range active {
			if !p(f) {
				return false
			}
		}
		return true
	}
}
