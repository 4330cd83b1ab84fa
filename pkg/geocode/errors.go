package geocode

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sells-group/yardfinder/internal/resilience"
)

// ErrorKind classifies a failed upstream lookup.
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindTransient ErrorKind = "transient"
	KindUnknown   ErrorKind = "unknown"
)

// GeocodingError is returned when the upstream lookup could not be completed.
// A lookup that completed but matched nothing is a NotFoundError instead.
type GeocodingError struct {
	Kind       ErrorKind
	Query      string
	StatusCode int
	Err        error
}

func (e *GeocodingError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("geocode: %s failure for %q (status %d): %v", e.Kind, e.Query, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("geocode: %s failure for %q: %v", e.Kind, e.Query, e.Err)
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a caller may reasonably try the lookup again.
func (e *GeocodingError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindTransient
}

// NotFoundError means the service answered but had no match for the query.
// Callers should ask for a different place rather than retry.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("geocode: no match for %q", e.Query)
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsRetryable reports whether err is a timeout or transient GeocodingError.
func IsRetryable(err error) bool {
	var ge *GeocodingError
	return errors.As(err, &ge) && ge.Retryable()
}

// KindOf returns the kind of a GeocodingError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var ge *GeocodingError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// classify maps a transport error onto an ErrorKind.
func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if resilience.IsTransient(err) {
		return KindTransient
	}
	return KindUnknown
}

// statusError builds the error for a non-200 upstream response.
func statusError(query string, status int) *GeocodingError {
	var err error = fmt.Errorf("upstream returned status %d", status)
	kind := KindUnknown
	if resilience.IsTransientHTTPStatus(status) {
		kind = KindTransient
		err = resilience.NewTransientError(err, status)
	}
	if status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout {
		kind = KindTimeout
	}
	return &GeocodingError{
		Kind:       kind,
		Query:      query,
		StatusCode: status,
		Err:        err,
	}
}
