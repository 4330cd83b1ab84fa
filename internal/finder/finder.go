// Package finder answers "which fuel yard is closest to me" queries: it turns
// a coordinate or a place name into a query point, narrows the facility store
// with the caller's filter and resolves the nearest match.
package finder

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/yardfinder/internal/facility"
	"github.com/sells-group/yardfinder/internal/model"
	"github.com/sells-group/yardfinder/pkg/geocode"
)

var (
	// ErrEmptyQuery means the query carried neither a point nor text.
	ErrEmptyQuery = eris.New("finder: query has neither a point nor place text")
	// ErrLocationDeclined means the user would not share a location.
	ErrLocationDeclined = eris.New("finder: location declined")
	// ErrNoResolver means a text query arrived but no reverse geocoder is configured.
	ErrNoResolver = eris.New("finder: place search is not configured")
)

// Query is a request for the nearest facility, either a coordinate or a
// free-text place. A point takes precedence over text.
type Query struct {
	Point *model.Coordinate
	Text  string
}

// PointQuery returns a query for a coordinate.
func PointQuery(c model.Coordinate) Query {
	return Query{Point: &c}
}

// TextQuery returns a query for a place name.
func TextQuery(text string) Query {
	return Query{Text: text}
}

// IsZero reports whether the query has nothing to search for.
func (q Query) IsZero() bool {
	return q.Point == nil && q.Text == ""
}

// PointSource supplies the user's current location, e.g. a browser
// geolocation prompt. ok is false when the user declines.
type PointSource interface {
	QueryPoint(ctx context.Context) (point model.Coordinate, ok bool, err error)
}

// FromSource builds a point query from src.
func FromSource(ctx context.Context, src PointSource) (Query, error) {
	p, ok, err := src.QueryPoint(ctx)
	if err != nil {
		return Query{}, eris.Wrap(err, "finder: obtain query point")
	}
	if !ok {
		return Query{}, ErrLocationDeclined
	}
	return PointQuery(p), nil
}

// Filter narrows the candidate facilities. Empty fields match everything.
type Filter struct {
	County string `json:"county,omitempty"`
	Yard   string `json:"yard,omitempty"`
}

// Predicate returns the store predicate for f, or nil for no filtering.
func (f Filter) Predicate() facility.Predicate {
	return facility.And(facility.ByCounty(f.County), facility.ByYard(f.Yard))
}

// Finder is the query boundary over a loaded facility store.
type Finder struct {
	store    *facility.Store
	resolver geocode.Resolver
}

// New creates a Finder. resolver may be nil, in which case text queries fail
// with ErrNoResolver.
func New(store *facility.Store, resolver geocode.Resolver) *Finder {
	return &Finder{store: store, resolver: resolver}
}

// Locate turns q into a coordinate. Resolver errors are returned unchanged.
func (f *Finder) Locate(ctx context.Context, q Query) (model.Coordinate, error) {
	if q.IsZero() {
		return model.Coordinate{}, ErrEmptyQuery
	}
	if q.Point != nil {
		return *q.Point, nil
	}
	if f.resolver == nil {
		return model.Coordinate{}, ErrNoResolver
	}
	return f.resolver.Resolve(ctx, q.Text)
}

// FindNearest returns the facility closest to q among those matching filter.
// Geocoding and resolver errors are returned unchanged so callers can match
// them with errors.As and errors.Is.
func (f *Finder) FindNearest(ctx context.Context, q Query, filter Filter) (model.NearestMatch, error) {
	point, err := f.Locate(ctx, q)
	if err != nil {
		return model.NearestMatch{}, err
	}
	match, err := facility.Nearest(point, f.store.Filter(filter.Predicate()))
	if err != nil {
		return model.NearestMatch{}, err
	}
	zap.L().Debug("finder: nearest facility",
		zap.String("query_text", q.Text),
		zap.Stringer("point", point),
		zap.String("facility", match.Facility.Name),
		zap.Float64("miles", match.DistanceMiles),
	)
	return match, nil
}

// RankNearest returns up to n facilities matching filter ordered by distance
// from q. n <= 0 returns all of them.
func (f *Finder) RankNearest(ctx context.Context, q Query, filter Filter, n int) ([]model.NearestMatch, error) {
	point, err := f.Locate(ctx, q)
	if err != nil {
		return nil, err
	}
	return facility.Rank(point, f.store.Filter(filter.Predicate()), n)
}

// ListFacilities returns the facilities matching filter in store order.
func (f *Finder) ListFacilities(filter Filter) []model.Facility {
	return f.store.Filter(filter.Predicate())
}

// Count returns the number of loaded facilities.
func (f *Finder) Count() int {
	return f.store.Len()
}

// Counties lists the distinct counties for filter menus.
func (f *Finder) Counties() []string {
	return f.store.Counties()
}

// Yards lists the distinct yard names for filter menus.
func (f *Finder) Yards() []string {
	return f.store.Yards()
}
