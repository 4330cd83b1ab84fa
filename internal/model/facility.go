// Package model holds the data types shared by the geocoding pipeline, the
// facility store and the query surfaces.
package model

import (
	"fmt"
	"math"
)

// Column names of the source yard table.
const (
	ColYard         = "MAINTENANCE YARD"
	ColStreet       = "MAILING ADDRESS"
	ColZipCode      = "ZIP CODE"
	ColCounty       = "COUNTY"
	ColMunicipality = "MUNICIPALITY"
	ColPhone        = "YARD PHONE #"
	ColSupervisor   = "CREW SUPERVISOR"
	ColLatitude     = "Latitude"
	ColLongitude    = "Longitude"
)

// RequiredColumns must be present in every input table.
var RequiredColumns = []string{ColYard, ColStreet, ColZipCode}

// RawAddressRecord is one row of the input table after the validated parse step.
// Optional columns that are absent or blank are empty strings.
type RawAddressRecord struct {
	Row          int    `json:"row"` // 0-based index in the input table
	Yard         string `json:"yard"`
	Street       string `json:"street"`
	ZipCode      string `json:"zip_code"`
	County       string `json:"county,omitempty"`
	Municipality string `json:"municipality,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Supervisor   string `json:"supervisor,omitempty"`
}

// GeocodedRow is a raw record with the coordinates the pipeline found for it.
// Nil coordinates mean the row failed to geocode.
type GeocodedRow struct {
	Yard         string   `csv:"MAINTENANCE YARD"`
	Street       string   `csv:"MAILING ADDRESS"`
	ZipCode      string   `csv:"ZIP CODE"`
	County       string   `csv:"COUNTY"`
	Municipality string   `csv:"MUNICIPALITY"`
	Phone        string   `csv:"YARD PHONE #"`
	Supervisor   string   `csv:"CREW SUPERVISOR"`
	Latitude     *float64 `csv:"Latitude,omitempty"`
	Longitude    *float64 `csv:"Longitude,omitempty"`
}

// NewGeocodedRow builds a table row from a record and optional coordinate.
func NewGeocodedRow(rec RawAddressRecord, c *Coordinate) GeocodedRow {
	row := GeocodedRow{
		Yard:         rec.Yard,
		Street:       rec.Street,
		ZipCode:      rec.ZipCode,
		County:       rec.County,
		Municipality: rec.Municipality,
		Phone:        rec.Phone,
		Supervisor:   rec.Supervisor,
	}
	if c != nil {
		lat, lon := c.Latitude, c.Longitude
		row.Latitude = &lat
		row.Longitude = &lon
	}
	return row
}

// Facility is a geocoded fuel yard held by the facility store.
type Facility struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Address      string  `json:"address"`
	Municipality string  `json:"municipality,omitempty"`
	County       string  `json:"county,omitempty"`
	PostalCode   string  `json:"postal_code,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	Supervisor   string  `json:"supervisor,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// Coordinate returns the facility location.
func (f Facility) Coordinate() Coordinate {
	return Coordinate{Latitude: f.Latitude, Longitude: f.Longitude}
}

// Coordinate is a WGS-84 latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate reports an InvalidCoordinateError when the point is outside the
// valid latitude/longitude ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 ||
		math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return &InvalidCoordinateError{Latitude: c.Latitude, Longitude: c.Longitude}
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Latitude, c.Longitude)
}

// InvalidCoordinateError is returned for a query point outside the valid ranges.
type InvalidCoordinateError struct {
	Latitude  float64
	Longitude float64
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate (%v, %v): latitude must be within [-90, 90] and longitude within [-180, 180]", e.Latitude, e.Longitude)
}

// NearestMatch is the closest facility to a query point.
type NearestMatch struct {
	Facility      Facility `json:"facility"`
	DistanceMiles float64  `json:"distance_miles"`
}

// RoundedMiles returns the distance rounded to two decimals for display.
func (m NearestMatch) RoundedMiles() float64 {
	return math.Round(m.DistanceMiles*100) / 100
}
