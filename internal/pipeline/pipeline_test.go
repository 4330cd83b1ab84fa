package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/yardfinder/internal/model"
	"github.com/sells-group/yardfinder/internal/resilience"
	"github.com/sells-group/yardfinder/pkg/geocode"
)

func timeoutErr(q string) error {
	return &geocode.GeocodingError{Kind: geocode.KindTimeout, Query: q, Err: context.DeadlineExceeded}
}

func transientErr(q string) error {
	return &geocode.GeocodingError{Kind: geocode.KindTransient, Query: q, StatusCode: 503, Err: errors.New("unavailable")}
}

func TestRun_RowTimeoutIsIsolated(t *testing.T) {
	records := []model.RawAddressRecord{
		rec(0, "Alpha", "1 A St", "Trenton", "08608"),
		rec(1, "Bravo", "2 B St", "Ewing", "08628"),
		rec(2, "Charlie", "3 C St", "Lawrence", "08648"),
	}
	g := &mockGeocoder{}
	g.On("Geocode", mock.Anything, "1 A St, Trenton, NJ, 08608").Return(model.Coordinate{Latitude: 40.2, Longitude: -74.7}, nil)
	g.On("Geocode", mock.Anything, "2 B St, Ewing, NJ, 08628").Return(model.Coordinate{}, timeoutErr("2 B St"))
	g.On("Geocode", mock.Anything, "3 C St, Lawrence, NJ, 08648").Return(model.Coordinate{Latitude: 40.3, Longitude: -74.6}, nil)

	out, err := New(g).Run(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, out.Results, 3)
	require.Len(t, out.Table, 2)
	assert.Equal(t, "Alpha", out.Table[0].Yard)
	assert.Equal(t, "Charlie", out.Table[1].Yard)

	failed := out.Results[1]
	assert.Equal(t, model.ResultFailure, failed.Status)
	assert.Equal(t, model.ReasonTimeout, failed.Reason)
	assert.Equal(t, 1, failed.Row)
	assert.Nil(t, failed.Coordinate())

	assert.Equal(t, 2, out.Succeeded())
	assert.Equal(t, 1, out.Failed())
	assert.Equal(t, map[model.FailureReason]int{model.ReasonTimeout: 1}, out.FailureCounts())
	assert.NotEmpty(t, out.RunID)
	g.AssertExpectations(t)
}

func TestRun_ResultsAlignWithInput(t *testing.T) {
	var records []model.RawAddressRecord
	for i := 0; i < 25; i++ {
		records = append(records, rec(i*2, fmt.Sprintf("Yard %d", i), fmt.Sprintf("%d Main St", i), "Trenton", "08608"))
	}
	g := &mockGeocoder{}
	g.On("Geocode", mock.Anything, mock.AnythingOfType("string")).Return(model.Coordinate{Latitude: 40, Longitude: -74}, nil)

	out, err := New(g, WithConcurrency(5)).Run(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, out.Results, len(records))
	for i, r := range out.Results {
		assert.Equal(t, records[i].Row, r.Row)
		assert.Equal(t, records[i].Yard, r.Yard)
	}
	assert.LessOrEqual(t, len(out.Table), len(records))
	for i, row := range out.Table {
		assert.Equal(t, records[i].Yard, row.Yard)
	}
}

func TestRun_MissingAddressNeverReachesGeocoder(t *testing.T) {
	records := []model.RawAddressRecord{
		{Row: 0, ZipCode: "08608"},
		rec(1, "Bravo", "2 B St", "Ewing", "08628"),
	}
	g := &mockGeocoder{}
	g.On("Geocode", mock.Anything, "2 B St, Ewing, NJ, 08628").Return(model.Coordinate{Latitude: 40, Longitude: -74}, nil).Once()

	out, err := New(g).Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, model.ReasonMissingAddress, out.Results[0].Reason)
	assert.Empty(t, out.Results[0].Address)
	assert.Equal(t, 0, out.Results[0].Attempts)
	g.AssertNumberOfCalls(t, "Geocode", 1)
}

func TestRun_YardWithoutStreetOrMunicipality(t *testing.T) {
	g := &mockGeocoder{}

	out, err := New(g).Run(context.Background(), []model.RawAddressRecord{
		{Row: 0, Yard: "X", ZipCode: "07652"},
	})
	require.NoError(t, err)

	require.Len(t, out.Results, 1)
	assert.Equal(t, model.ResultFailure, out.Results[0].Status)
	assert.Equal(t, model.ReasonMissingAddress, out.Results[0].Reason)
	assert.Empty(t, out.Table)
	g.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
}

func TestRun_FailureReasons(t *testing.T) {
	records := []model.RawAddressRecord{
		rec(0, "A", "1 A St", "X", ""),
		rec(1, "B", "2 B St", "X", ""),
		rec(2, "C", "3 C St", "X", ""),
	}
	g := &mockGeocoder{}
	g.On("Geocode", mock.Anything, "1 A St, X, NJ").Return(model.Coordinate{}, &geocode.NotFoundError{Query: "1 A St, X, NJ"})
	g.On("Geocode", mock.Anything, "2 B St, X, NJ").Return(model.Coordinate{}, transientErr("2 B St, X, NJ"))
	g.On("Geocode", mock.Anything, "3 C St, X, NJ").Return(model.Coordinate{}, errors.New("boom"))

	out, err := New(g).Run(context.Background(), records)
	require.NoError(t, err)

	assert.Empty(t, out.Table)
	assert.Equal(t, model.ReasonNotFound, out.Results[0].Reason)
	assert.Equal(t, model.ReasonTransient, out.Results[1].Reason)
	assert.Equal(t, model.ReasonUnknown, out.Results[2].Reason)
	assert.Contains(t, out.Results[2].Error, "boom")
}

func TestRun_RetriesOnlyRetryableFailures(t *testing.T) {
	records := []model.RawAddressRecord{
		rec(0, "A", "1 A St", "X", ""),
		rec(1, "B", "2 B St", "X", ""),
	}
	g := &mockGeocoder{}
	g.On("Geocode", mock.Anything, "1 A St, X, NJ").Return(model.Coordinate{}, transientErr("1 A St")).Once()
	g.On("Geocode", mock.Anything, "1 A St, X, NJ").Return(model.Coordinate{Latitude: 40, Longitude: -74}, nil).Once()
	g.On("Geocode", mock.Anything, "2 B St, X, NJ").Return(model.Coordinate{}, &geocode.NotFoundError{Query: "2 B St"})

	policy := resilience.Policy{Attempts: 3, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	out, err := New(g, WithRetry(policy)).Run(context.Background(), records)
	require.NoError(t, err)

	assert.True(t, out.Results[0].Succeeded())
	assert.Equal(t, 2, out.Results[0].Attempts)
	assert.Equal(t, model.ReasonNotFound, out.Results[1].Reason)
	assert.Equal(t, 1, out.Results[1].Attempts)
	g.AssertNumberOfCalls(t, "Geocode", 3)
}

func TestRun_NoRetryByDefault(t *testing.T) {
	g := &mockGeocoder{}
	g.On("Geocode", mock.Anything, mock.Anything).Return(model.Coordinate{}, transientErr("x"))

	out, err := New(g).Run(context.Background(), []model.RawAddressRecord{rec(0, "A", "1 A St", "X", "")})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Results[0].Attempts)
	g.AssertNumberOfCalls(t, "Geocode", 1)
}

func TestRun_Idempotent(t *testing.T) {
	records := []model.RawAddressRecord{
		rec(0, "Alpha", "1 A St", "Trenton", "8608"),
		rec(1, "Bravo", "", "", ""),
		rec(2, "Charlie", "3 C St", "", "08648"),
	}
	g := &mockGeocoder{}
	g.On("Geocode", mock.Anything, "1 A St, Trenton, NJ, 08608").Return(model.Coordinate{Latitude: 40.1, Longitude: -74.1}, nil)
	g.On("Geocode", mock.Anything, "Bravo, NJ").Return(model.Coordinate{}, &geocode.NotFoundError{Query: "Bravo, NJ"})
	g.On("Geocode", mock.Anything, "3 C St, Charlie, NJ, 08648").Return(model.Coordinate{Latitude: 40.3, Longitude: -74.3}, nil)

	p := New(g, WithConcurrency(3))
	first, err := p.Run(context.Background(), records)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first.Table, second.Table))
	assert.Empty(t, cmp.Diff(first.Results, second.Results))
	assert.Empty(t, cmp.Diff(*first, *second, cmpopts.IgnoreUnexported(Output{}), cmpopts.IgnoreFields(Output{}, "RunID")))
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_ProgressCalledPerRow(t *testing.T) {
	records := []model.RawAddressRecord{
		rec(0, "A", "1 A St", "X", ""),
		{Row: 1},
		rec(2, "C", "3 C St", "X", ""),
	}
	g := &mockGeocoder{}
	g.On("Geocode", mock.Anything, mock.Anything).Return(model.Coordinate{Latitude: 1, Longitude: 2}, nil)

	var mu sync.Mutex
	var rows []int
	_, err := New(g, WithConcurrency(2), WithProgress(func(r model.GeocodingResult) {
		mu.Lock()
		defer mu.Unlock()
		rows = append(rows, r.Row)
	})).Run(context.Background(), records)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 2}, rows)
}

func TestRun_AllRowsKeepsFailures(t *testing.T) {
	records := []model.RawAddressRecord{
		rec(0, "A", "1 A St", "X", ""),
		rec(1, "B", "2 B St", "X", ""),
	}
	g := &mockGeocoder{}
	g.On("Geocode", mock.Anything, "1 A St, X, NJ").Return(model.Coordinate{}, &geocode.NotFoundError{})
	g.On("Geocode", mock.Anything, "2 B St, X, NJ").Return(model.Coordinate{Latitude: 40, Longitude: -74}, nil)

	out, err := New(g).Run(context.Background(), records)
	require.NoError(t, err)

	all := out.AllRows()
	require.Len(t, all, 2)
	assert.Nil(t, all[0].Latitude)
	require.NotNil(t, all[1].Latitude)
	assert.InDelta(t, 40.0, *all[1].Latitude, 1e-9)
}

func TestRun_WithStateOverride(t *testing.T) {
	g := &mockGeocoder{}
	g.On("Geocode", mock.Anything, "1 A St, Philadelphia, PA").Return(model.Coordinate{Latitude: 39.9, Longitude: -75.1}, nil)

	out, err := New(g, WithState("PA")).Run(context.Background(), []model.RawAddressRecord{rec(0, "A", "1 A St", "Philadelphia", "")})
	require.NoError(t, err)
	assert.True(t, out.Results[0].Succeeded())
}

func TestRun_CancelledContext(t *testing.T) {
	g := &mockGeocoder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := New(g).Run(ctx, []model.RawAddressRecord{rec(0, "A", "1 A St", "X", "")})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
	g.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
}

func TestRun_Empty(t *testing.T) {
	out, err := New(&mockGeocoder{}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Empty(t, out.Table)
}
