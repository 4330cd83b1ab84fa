package facility

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/yardfinder/internal/model"
)

// Feature converts a facility into a GeoJSON point feature. Coordinates are
// in longitude, latitude order.
func Feature(f model.Facility) *geojson.Feature {
	props := map[string]any{
		"name":   f.Name,
		"county": f.County,
	}
	for k, v := range map[string]string{
		"address":      f.Address,
		"municipality": f.Municipality,
		"postal_code":  f.PostalCode,
		"phone":        f.Phone,
		"supervisor":   f.Supervisor,
	} {
		if v != "" {
			props[k] = v
		}
	}
	return &geojson.Feature{
		ID:         strconv.Itoa(f.ID),
		Geometry:   geom.NewPointFlat(geom.XY, []float64{f.Longitude, f.Latitude}),
		Properties: props,
	}
}

// MatchFeature converts a nearest match into a feature carrying the distance.
func MatchFeature(m model.NearestMatch) *geojson.Feature {
	feat := Feature(m.Facility)
	feat.Properties["distance_miles"] = m.RoundedMiles()
	return feat
}

// FeatureCollection converts facilities into a GeoJSON FeatureCollection.
func FeatureCollection(facilities []model.Facility) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(facilities))}
	for _, f := range facilities {
		fc.Features = append(fc.Features, Feature(f))
	}
	return fc
}

// MatchCollection converts ranked matches into a FeatureCollection whose
// features carry distance_miles, nearest first.
func MatchCollection(matches []model.NearestMatch) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(matches))}
	for _, m := range matches {
		fc.Features = append(fc.Features, MatchFeature(m))
	}
	return fc
}

// MarshalMatchesGeoJSON encodes ranked matches as a GeoJSON FeatureCollection.
func MarshalMatchesGeoJSON(matches []model.NearestMatch) ([]byte, error) {
	data, err := json.Marshal(MatchCollection(matches))
	if err != nil {
		return nil, eris.Wrap(err, "facility: encode geojson")
	}
	return data, nil
}

// MarshalGeoJSON encodes facilities as a GeoJSON FeatureCollection document.
func MarshalGeoJSON(facilities []model.Facility) ([]byte, error) {
	data, err := json.Marshal(FeatureCollection(facilities))
	if err != nil {
		return nil, eris.Wrap(err, "facility: encode geojson")
	}
	return data, nil
}
