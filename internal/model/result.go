package model

// ResultStatus is the outcome of geocoding one input row.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailure ResultStatus = "failure"
)

// FailureReason classifies why a row did not geocode.
type FailureReason string

const (
	ReasonMissingAddress FailureReason = "missing_address_components"
	ReasonNotFound       FailureReason = "not_found"
	ReasonTimeout        FailureReason = "timeout"
	ReasonTransient      FailureReason = "transient"
	ReasonUnknown        FailureReason = "unknown"
)

// GeocodingResult records what happened to one input row. Every input row
// yields exactly one result.
type GeocodingResult struct {
	Row       int           `json:"row" yaml:"row"`
	Yard      string        `json:"yard" yaml:"yard"`
	Address   string        `json:"address,omitempty" yaml:"address,omitempty"`
	Status    ResultStatus  `json:"status" yaml:"status"`
	Latitude  float64       `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude float64       `json:"longitude,omitempty" yaml:"longitude,omitempty"`
	Reason    FailureReason `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	Attempts  int           `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

// Succeeded reports whether the row produced a coordinate.
func (r GeocodingResult) Succeeded() bool {
	return r.Status == ResultSuccess
}

// Coordinate returns the geocoded point, or nil for a failed row.
func (r GeocodingResult) Coordinate() *Coordinate {
	if !r.Succeeded() {
		return nil
	}
	return &Coordinate{Latitude: r.Latitude, Longitude: r.Longitude}
}
