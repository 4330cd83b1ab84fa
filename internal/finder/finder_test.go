package finder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/yardfinder/internal/facility"
	"github.com/sells-group/yardfinder/internal/model"
	"github.com/sells-group/yardfinder/pkg/geocode"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, place string) (model.Coordinate, error) {
	args := m.Called(ctx, place)
	return args.Get(0).(model.Coordinate), args.Error(1)
}

type staticSource struct {
	point model.Coordinate
	ok    bool
	err   error
}

func (s staticSource) QueryPoint(context.Context) (model.Coordinate, bool, error) {
	return s.point, s.ok, s.err
}

func f64(v float64) *float64 { return &v }

func newTestFinder(t *testing.T, r geocode.Resolver) *Finder {
	t.Helper()
	store, err := facility.Load([]model.GeocodedRow{
		{Yard: "Alpha", County: "Mercer", Latitude: f64(40.01), Longitude: f64(-74.01)},
		{Yard: "Bravo", County: "Ocean", Latitude: f64(39.9), Longitude: f64(-74.2)},
		{Yard: "Charlie", County: "Mercer", Latitude: f64(40.3), Longitude: f64(-74.7)},
	})
	require.NoError(t, err)
	return New(store, r)
}

func TestFindNearest_Point(t *testing.T) {
	f := newTestFinder(t, nil)
	m, err := f.FindNearest(context.Background(), PointQuery(model.Coordinate{Latitude: 40, Longitude: -74}), Filter{})
	require.NoError(t, err)
	assert.Equal(t, "Alpha", m.Facility.Name)
	assert.InDelta(t, 0.87, m.DistanceMiles, 0.05)
}

func TestFindNearest_Text(t *testing.T) {
	r := &mockResolver{}
	r.On("Resolve", mock.Anything, "Toms River").Return(model.Coordinate{Latitude: 39.95, Longitude: -74.2}, nil)
	f := newTestFinder(t, r)

	m, err := f.FindNearest(context.Background(), TextQuery("Toms River"), Filter{})
	require.NoError(t, err)
	assert.Equal(t, "Bravo", m.Facility.Name)
	r.AssertExpectations(t)
}

func TestFindNearest_TextNotFoundPropagated(t *testing.T) {
	notFound := &geocode.NotFoundError{Query: "99999 Nowhere"}
	r := &mockResolver{}
	r.On("Resolve", mock.Anything, "99999 Nowhere").Return(model.Coordinate{}, notFound)
	f := newTestFinder(t, r)

	_, err := f.FindNearest(context.Background(), TextQuery("99999 Nowhere"), Filter{})
	assert.Same(t, notFound, err)

	var nf *geocode.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "99999 Nowhere", nf.Query)
}

func TestFindNearest_TimeoutPropagated(t *testing.T) {
	timeout := &geocode.GeocodingError{Kind: geocode.KindTimeout, Query: "Trenton", Err: context.DeadlineExceeded}
	r := &mockResolver{}
	r.On("Resolve", mock.Anything, "Trenton").Return(model.Coordinate{}, timeout)
	f := newTestFinder(t, r)

	_, err := f.FindNearest(context.Background(), TextQuery("Trenton"), Filter{})
	assert.Equal(t, geocode.KindTimeout, geocode.KindOf(err))
}

func TestFindNearest_FilterExcludesAll(t *testing.T) {
	f := newTestFinder(t, nil)
	_, err := f.FindNearest(context.Background(), PointQuery(model.Coordinate{Latitude: 40, Longitude: -74}), Filter{County: "Sussex"})
	assert.ErrorIs(t, err, facility.ErrEmptySet)
}

func TestFindNearest_Filtered(t *testing.T) {
	f := newTestFinder(t, nil)
	m, err := f.FindNearest(context.Background(), PointQuery(model.Coordinate{Latitude: 39.9, Longitude: -74.2}), Filter{County: "mercer"})
	require.NoError(t, err)
	assert.Equal(t, "Alpha", m.Facility.Name)
}

func TestFindNearest_EmptyQuery(t *testing.T) {
	r := &mockResolver{}
	f := newTestFinder(t, r)
	_, err := f.FindNearest(context.Background(), Query{}, Filter{})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = f.Locate(context.Background(), TextQuery(""))
	assert.ErrorIs(t, err, ErrEmptyQuery)
	r.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestFindNearest_TextWithoutResolver(t *testing.T) {
	f := newTestFinder(t, nil)
	_, err := f.FindNearest(context.Background(), TextQuery("Trenton"), Filter{})
	assert.ErrorIs(t, err, ErrNoResolver)
}

func TestFindNearest_InvalidPoint(t *testing.T) {
	f := newTestFinder(t, nil)
	_, err := f.FindNearest(context.Background(), PointQuery(model.Coordinate{Latitude: 100, Longitude: 0}), Filter{})
	var ic *model.InvalidCoordinateError
	assert.True(t, errors.As(err, &ic))
}

func TestFromSource(t *testing.T) {
	q, err := FromSource(context.Background(), staticSource{point: model.Coordinate{Latitude: 40, Longitude: -74}, ok: true})
	require.NoError(t, err)
	require.NotNil(t, q.Point)
	assert.InDelta(t, 40.0, q.Point.Latitude, 1e-9)

	q, err = FromSource(context.Background(), staticSource{})
	assert.ErrorIs(t, err, ErrLocationDeclined)
	assert.True(t, q.IsZero())

	_, err = FromSource(context.Background(), staticSource{err: errors.New("permission prompt failed")})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocationDeclined)
}

func TestListFacilities(t *testing.T) {
	f := newTestFinder(t, nil)
	assert.Equal(t, 3, f.Count())
	assert.Len(t, f.ListFacilities(Filter{}), 3)

	mercer := f.ListFacilities(Filter{County: "Mercer"})
	require.Len(t, mercer, 2)
	assert.Equal(t, "Alpha", mercer[0].Name)
	assert.Equal(t, "Charlie", mercer[1].Name)

	assert.Len(t, f.ListFacilities(Filter{County: "Mercer", Yard: "charlie"}), 1)
	assert.Equal(t, []string{"Mercer", "Ocean"}, f.Counties())
	assert.Equal(t, []string{"Alpha", "Bravo", "Charlie"}, f.Yards())
}

func TestRankNearest(t *testing.T) {
	f := newTestFinder(t, nil)
	ranked, err := f.RankNearest(context.Background(), PointQuery(model.Coordinate{Latitude: 40, Longitude: -74}), Filter{}, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "Alpha", ranked[0].Facility.Name)
	assert.Equal(t, "Bravo", ranked[1].Facility.Name)
}
