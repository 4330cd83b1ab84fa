package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/yardfinder/internal/model"
)

// mockGeocoder is a testify mock of geocode.Geocoder.
type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Geocode(ctx context.Context, address string) (model.Coordinate, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(model.Coordinate), args.Error(1)
}

func rec(row int, yard, street, muni, zip string) model.RawAddressRecord {
	return model.RawAddressRecord{Row: row, Yard: yard, Street: street, Municipality: muni, ZipCode: zip}
}
