package main

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/yardfinder/internal/config"
	"github.com/sells-group/yardfinder/internal/facility"
	"github.com/sells-group/yardfinder/internal/finder"
	"github.com/sells-group/yardfinder/internal/table"
	"github.com/sells-group/yardfinder/pkg/geocode"
)

// newGeocodeClient builds the Nominatim client from config. Every command
// builds exactly one, so all of its lookups share one rate gate.
func newGeocodeClient(c *config.Config) *geocode.Client {
	return geocode.NewClient(c.Geocode.UserAgent,
		geocode.WithBaseURL(c.Geocode.BaseURL),
		geocode.WithMinDelay(c.Geocode.MinDelay()),
		geocode.WithTimeout(c.Geocode.Timeout()),
		geocode.WithCountryCodes(c.Geocode.CountryCodes),
	)
}

// loadFinder loads the geocoded table at path into a Finder backed by a
// Nominatim resolver for place queries.
func loadFinder(c *config.Config, path string) (*finder.Finder, error) {
	if path == "" {
		path = c.Data.GeocodedPath
	}
	rows, err := table.LoadGeocoded(path)
	if err != nil {
		return nil, err
	}
	store, err := facility.Load(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "load facilities from %s", path)
	}
	return finder.New(store, newGeocodeClient(c)), nil
}
