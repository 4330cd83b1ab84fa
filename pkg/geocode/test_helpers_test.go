package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sells-group/yardfinder/internal/model"
)

// newTestClient creates a client pointed at srv with no rate spacing.
func newTestClient(srv *httptest.Server, opts ...Option) *Client {
	base := []Option{WithBaseURL(srv.URL), WithMinDelay(0), WithHTTPClient(srv.Client())}
	return NewClient("yardfinder-test", append(base, opts...)...)
}

// newJSONServer serves body with status for every request and records requests.
func newJSONServer(t *testing.T, status int, body string) (*httptest.Server, *requestLog) {
	t.Helper()
	log := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

type requestLog struct {
	mu       sync.Mutex
	requests []*http.Request
	times    []time.Time
}

func (l *requestLog) add(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, r.Clone(context.Background()))
	l.times = append(l.times, time.Now())
}

func (l *requestLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

func (l *requestLog) last() *http.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.requests) == 0 {
		return nil
	}
	return l.requests[len(l.requests)-1]
}

// stubGeocoder answers from a map and counts calls.
type stubGeocoder struct {
	mu      sync.Mutex
	answers map[string]model.Coordinate
	errs    map[string]error
	calls   int
}

func (s *stubGeocoder) Geocode(_ context.Context, address string) (model.Coordinate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err, ok := s.errs[address]; ok {
		return model.Coordinate{}, err
	}
	if c, ok := s.answers[address]; ok {
		return c, nil
	}
	return model.Coordinate{}, &NotFoundError{Query: address}
}
