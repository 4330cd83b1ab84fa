package geocode

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate enforces a minimum interval between consecutive upstream calls. One
// Gate is shared by every caller that uses the same client identity, so
// concurrent lookups are admitted one at a time.
type Gate struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewGate returns a gate admitting one call per minDelay. A non-positive
// minDelay disables spacing.
func NewGate(minDelay time.Duration) *Gate {
	if minDelay <= 0 {
		return &Gate{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Gate{
		limiter:  rate.NewLimiter(rate.Every(minDelay), 1),
		interval: minDelay,
	}
}

// Wait blocks until the next call may start or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// Interval returns the configured minimum delay.
func (g *Gate) Interval() time.Duration {
	return g.interval
}
