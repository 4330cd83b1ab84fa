// Package geocode resolves addresses and place names to coordinates through
// OpenStreetMap Nominatim, behind a shared minimum-interval rate gate.
package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/sells-group/yardfinder/internal/model"
)

const (
	defaultBaseURL      = "https://nominatim.openstreetmap.org"
	defaultUserAgent    = "yardfinder"
	defaultMinDelay     = time.Second
	defaultTimeout      = 10 * time.Second
	defaultCountryCodes = "us"
)

// Geocoder converts a single-line address into a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (model.Coordinate, error)
}

// Resolver converts free-text place names into a coordinate.
type Resolver interface {
	Resolve(ctx context.Context, place string) (model.Coordinate, error)
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL points the client at a different Nominatim instance.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMinDelay sets the minimum delay between consecutive upstream calls.
func WithMinDelay(d time.Duration) Option {
	return func(c *Client) {
		c.gate = NewGate(d)
	}
}

// WithGate shares an existing gate, e.g. between two clients that use the
// same client identity.
func WithGate(g *Gate) Option {
	return func(c *Client) {
		if g != nil {
			c.gate = g
		}
	}
}

// WithTimeout sets the per-request timeout. Time spent waiting at the gate
// does not count against it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCountryCodes restricts matches to the given comma-separated ISO codes.
func WithCountryCodes(codes string) Option {
	return func(c *Client) {
		c.countryCodes = codes
	}
}

// Client is a Nominatim client implementing both Geocoder and Resolver.
// Every call from either method passes through the same Gate.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	gate         *Gate
	userAgent    string
	timeout      time.Duration
	countryCodes string
}

// NewClient creates a Client. userAgent identifies this tool to the upstream
// service and is sent with every request.
func NewClient(userAgent string, opts ...Option) *Client {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	c := &Client{
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{},
		gate:         NewGate(defaultMinDelay),
		userAgent:    userAgent,
		timeout:      defaultTimeout,
		countryCodes: defaultCountryCodes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Gate returns the client's rate gate.
func (c *Client) Gate() *Gate {
	return c.gate
}

// Geocode looks up a normalized single-line address. It never retries.
func (c *Client) Geocode(ctx context.Context, address string) (model.Coordinate, error) {
	return c.search(ctx, address)
}

var (
	_ Geocoder = (*Client)(nil)
	_ Resolver = (*Client)(nil)
)
