package facility

import (
	"sort"

	"github.com/jftuga/geodist"
	"github.com/rotisserie/eris"

	"github.com/sells-group/yardfinder/internal/model"
)

// ErrEmptySet is returned when a nearest-facility query has no candidates,
// usually because a filter excluded everything.
var ErrEmptySet = eris.New("facility: no facilities match the query")

// DistanceMiles returns the geodesic distance between a and b in miles on the
// WGS-84 ellipsoid. Vincenty's formula does not converge for nearly antipodal
// points; those pairs fall back to the haversine distance.
func DistanceMiles(a, b model.Coordinate) float64 {
	p1 := geodist.Coord{Lat: a.Latitude, Lon: a.Longitude}
	p2 := geodist.Coord{Lat: b.Latitude, Lon: b.Longitude}
	miles, _, err := geodist.VincentyDistance(p1, p2)
	if err != nil {
		miles, _ = geodist.HaversineDistance(p1, p2)
	}
	return miles
}

// Nearest returns the candidate closest to point. When several candidates
// share the minimum distance, the first in slice order wins.
func Nearest(point model.Coordinate, candidates []model.Facility) (model.NearestMatch, error) {
	if err := point.Validate(); err != nil {
		return model.NearestMatch{}, err
	}
	if len(candidates) == 0 {
		return model.NearestMatch{}, ErrEmptySet
	}

	best := model.NearestMatch{Facility: candidates[0], DistanceMiles: DistanceMiles(point, candidates[0].Coordinate())}
	for _, f := range candidates[1:] {
		if d := DistanceMiles(point, f.Coordinate()); d < best.DistanceMiles {
			best = model.NearestMatch{Facility: f, DistanceMiles: d}
		}
	}
	return best, nil
}

// Rank returns up to n candidates ordered by distance from point, keeping
// slice order among equal distances. n <= 0 returns all of them.
func Rank(point model.Coordinate, candidates []model.Facility, n int) ([]model.NearestMatch, error) {
	if err := point.Validate(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrEmptySet
	}

	matches := make([]model.NearestMatch, len(candidates))
	for i, f := range candidates {
		matches[i] = model.NearestMatch{Facility: f, DistanceMiles: DistanceMiles(point, f.Coordinate())}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DistanceMiles < matches[j].DistanceMiles
	})
	if n > 0 && n < len(matches) {
		matches = matches[:n]
	}
	return matches, nil
}
