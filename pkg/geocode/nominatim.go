package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/yardfinder/internal/model"
)

// nominatimPlace is one element of the /search jsonv2 response.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// search runs one gated /search request and returns the first match.
func (c *Client) search(ctx context.Context, query string) (model.Coordinate, error) {
	if err := c.gate.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return model.Coordinate{}, eris.Wrap(err, "geocode: wait for rate gate")
		}
		return model.Coordinate{}, &GeocodingError{Kind: KindTimeout, Query: query, Err: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	if c.countryCodes != "" {
		params.Set("countrycodes", c.countryCodes)
	}
	reqURL := strings.TrimRight(c.baseURL, "/") + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return model.Coordinate{}, &GeocodingError{Kind: KindUnknown, Query: query, Err: eris.Wrap(err, "geocode: build request")}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return model.Coordinate{}, eris.Wrap(err, "geocode: request cancelled")
		}
		return model.Coordinate{}, &GeocodingError{Kind: classify(err), Query: query, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return model.Coordinate{}, statusError(query, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Coordinate{}, &GeocodingError{Kind: classify(err), Query: query, Err: eris.Wrap(err, "geocode: read body")}
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return model.Coordinate{}, &GeocodingError{Kind: KindUnknown, Query: query, Err: eris.Wrap(err, "geocode: parse response")}
	}
	if len(places) == 0 {
		return model.Coordinate{}, &NotFoundError{Query: query}
	}

	coord, err := places[0].coordinate()
	if err != nil {
		return model.Coordinate{}, &GeocodingError{Kind: KindUnknown, Query: query, Err: err}
	}

	zap.L().Debug("geocode: match",
		zap.String("query", query),
		zap.String("display_name", places[0].DisplayName),
		zap.Float64("lat", coord.Latitude),
		zap.Float64("lon", coord.Longitude),
	)
	return coord, nil
}

func (p nominatimPlace) coordinate() (model.Coordinate, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(p.Lat), 64)
	if err != nil {
		return model.Coordinate{}, eris.Wrap(err, "geocode: parse lat")
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(p.Lon), 64)
	if err != nil {
		return model.Coordinate{}, eris.Wrap(err, "geocode: parse lon")
	}
	c := model.Coordinate{Latitude: lat, Longitude: lon}
	if err := c.Validate(); err != nil {
		return model.Coordinate{}, fmt.Errorf("geocode: upstream returned %w", err)
	}
	return c, nil
}
