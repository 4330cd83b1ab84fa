// Package server exposes the facility finder as a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/yardfinder/internal/facility"
	"github.com/sells-group/yardfinder/internal/finder"
	"github.com/sells-group/yardfinder/internal/model"
	"github.com/sells-group/yardfinder/pkg/geocode"
)

// Server routes API requests to a Finder.
type Server struct {
	finder *finder.Finder
	router chi.Router
}

// New builds the API router. allowedOrigins configures CORS; empty allows any
// origin.
func New(f *finder.Finder, allowedOrigins []string) *Server {
	s := &Server{finder: f}

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/facilities", s.handleFacilities)
		r.Get("/facilities.geojson", s.handleFacilitiesGeoJSON)
		r.Get("/filters", s.handleFilters)
		r.Get("/nearest", s.handleNearest)
		r.Get("/ranked", s.handleRanked)
		r.Get("/ranked.geojson", s.handleRankedGeoJSON)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type healthResponse struct {
	Status     string `json:"status"`
	Facilities int    `json:"facilities"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Facilities: s.finder.Count()})
}

type facilitiesResponse struct {
	Count      int              `json:"count"`
	Facilities []model.Facility `json:"facilities"`
}

func (s *Server) handleFacilities(w http.ResponseWriter, r *http.Request) {
	list := s.finder.ListFacilities(filterFrom(r))
	if list == nil {
		list = []model.Facility{}
	}
	writeJSON(w, http.StatusOK, facilitiesResponse{Count: len(list), Facilities: list})
}

func (s *Server) handleFacilitiesGeoJSON(w http.ResponseWriter, r *http.Request) {
	data, err := facility.MarshalGeoJSON(s.finder.ListFacilities(filterFrom(r)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeGeoJSON(w, data)
}

func writeGeoJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"counties": s.finder.Counties(),
		"yards":    s.finder.Yards(),
	})
}

type nearestResponse struct {
	Query           model.Coordinate `json:"query"`
	Facility        model.Facility   `json:"facility"`
	DistanceMiles   float64          `json:"distance_miles"`
	DistanceDisplay string           `json:"distance_display"`
}

func newNearestResponse(point model.Coordinate, m model.NearestMatch) nearestResponse {
	return nearestResponse{
		Query:           point,
		Facility:        m.Facility,
		DistanceMiles:   m.DistanceMiles,
		DistanceDisplay: strconv.FormatFloat(m.RoundedMiles(), 'f', 2, 64) + " mi",
	}
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	point, ok := s.locate(w, r)
	if !ok {
		return
	}
	match, err := s.finder.FindNearest(r.Context(), finder.PointQuery(point), filterFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newNearestResponse(point, match))
}

func (s *Server) handleRanked(w http.ResponseWriter, r *http.Request) {
	point, matches, ok := s.rank(w, r)
	if !ok {
		return
	}
	out := make([]nearestResponse, len(matches))
	for i, m := range matches {
		out[i] = newNearestResponse(point, m)
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": point, "matches": out})
}

func (s *Server) handleRankedGeoJSON(w http.ResponseWriter, r *http.Request) {
	_, matches, ok := s.rank(w, r)
	if !ok {
		return
	}
	data, err := facility.MarshalMatchesGeoJSON(matches)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeGeoJSON(w, data)
}

// rank parses limit, resolves the query point and ranks the filtered
// facilities, writing the error response itself when any step fails.
func (s *Server) rank(w http.ResponseWriter, r *http.Request) (model.Coordinate, []model.NearestMatch, bool) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, &paramError{Param: "limit", Msg: "must be a non-negative integer"})
			return model.Coordinate{}, nil, false
		}
		limit = n
	}

	point, ok := s.locate(w, r)
	if !ok {
		return model.Coordinate{}, nil, false
	}
	matches, err := s.finder.RankNearest(r.Context(), finder.PointQuery(point), filterFrom(r), limit)
	if err != nil {
		writeError(w, r, err)
		return model.Coordinate{}, nil, false
	}
	return point, matches, true
}

// locate resolves the request's query point, writing the error response
// itself when it cannot.
func (s *Server) locate(w http.ResponseWriter, r *http.Request) (model.Coordinate, bool) {
	q, err := queryFrom(r)
	if err != nil {
		writeError(w, r, err)
		return model.Coordinate{}, false
	}
	point, err := s.finder.Locate(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return model.Coordinate{}, false
	}
	return point, true
}

// paramError is a malformed query parameter.
type paramError struct {
	Param string
	Msg   string
}

func (e *paramError) Error() string {
	return "invalid parameter " + e.Param + ": " + e.Msg
}

func queryFrom(r *http.Request) (finder.Query, error) {
	v := r.URL.Query()
	latStr, lonStr := strings.TrimSpace(v.Get("lat")), strings.TrimSpace(v.Get("lon"))
	if latStr != "" || lonStr != "" {
		if latStr == "" || lonStr == "" {
			return finder.Query{}, &paramError{Param: "lat/lon", Msg: "both are required"}
		}
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return finder.Query{}, &paramError{Param: "lat", Msg: "not a number"}
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return finder.Query{}, &paramError{Param: "lon", Msg: "not a number"}
		}
		return finder.PointQuery(model.Coordinate{Latitude: lat, Longitude: lon}), nil
	}
	return finder.TextQuery(strings.TrimSpace(v.Get("q"))), nil
}

func filterFrom(r *http.Request) finder.Filter {
	v := r.URL.Query()
	return finder.Filter{County: v.Get("county"), Yard: v.Get("yard")}
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

// statusClientClosedRequest is the nginx convention for a caller that went
// away before the response was ready.
const statusClientClosedRequest = 499

// statusFor maps a finder error onto an HTTP status and a short kind label.
func statusFor(err error) (int, string) {
	var (
		pe *paramError
		ic *model.InvalidCoordinateError
		nf *geocode.NotFoundError
		ge *geocode.GeocodingError
	)
	switch {
	case errors.As(err, &pe):
		return http.StatusBadRequest, "invalid_parameter"
	case errors.As(err, &ic):
		return http.StatusBadRequest, "invalid_coordinate"
	case errors.Is(err, finder.ErrEmptyQuery):
		return http.StatusBadRequest, "empty_query"
	case errors.As(err, &nf):
		return http.StatusNotFound, "place_not_found"
	case errors.Is(err, facility.ErrEmptySet):
		return http.StatusNotFound, "no_facilities"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "client_closed_request"
	case errors.As(err, &ge) && ge.Retryable():
		return http.StatusServiceUnavailable, "geocoding_" + string(ge.Kind)
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		zap.L().Error("server: request failed", zap.String("path", r.URL.Path), zap.String("request_id", requestIDFrom(r.Context())), zap.Error(err))
		msg = "internal error"
	case statusClientClosedRequest:
		zap.L().Debug("server: client went away", zap.String("path", r.URL.Path), zap.String("request_id", requestIDFrom(r.Context())))
		msg = "request cancelled"
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind, RequestID: requestIDFrom(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

const requestIDHeader = "X-Request-ID"

type ctxKey struct{}

// requestID tags each request with a UUID, reusing a well-formed incoming one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestIDFrom(r.Context())),
		)
	})
}
