package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls how often and how far apart an operation is re-attempted.
type Policy struct {
	// Attempts is the total number of tries, including the first. 1 disables
	// retrying.
	Attempts int

	// Backoff is the delay before the first retry. It doubles on each further
	// retry up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration

	// Jitter randomizes each delay by up to this fraction in either direction.
	Jitter float64

	// ShouldRetry decides whether an error is worth another attempt. Nil means
	// IsTransient.
	ShouldRetry func(err error) bool

	// OnRetry runs before each retry sleep.
	OnRetry func(attempt int, err error)
}

// SingleAttempt is a policy that never retries.
func SingleAttempt() Policy {
	return Policy{Attempts: 1}
}

// NewPolicy builds a policy from configuration values. Non-positive values
// fall back to one attempt and a 2s backoff.
func NewPolicy(attempts, backoffMs int) Policy {
	p := Policy{
		Attempts:   attempts,
		Backoff:    time.Duration(backoffMs) * time.Millisecond,
		MaxBackoff: 30 * time.Second,
		Jitter:     0.2,
	}
	return p.withDefaults()
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Backoff <= 0 {
		p.Backoff = 2 * time.Second
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.MaxBackoff < p.Backoff {
		p.MaxBackoff = p.Backoff
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.ShouldRetry == nil {
		p.ShouldRetry = IsTransient
	}
	return p
}

// Retry runs fn until it succeeds, returns an error the policy will not
// retry, exhausts its attempts, or ctx is done. It returns the value of the
// successful call and the number of attempts made.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, int, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.ShouldRetry(err) || attempt == p.Attempts {
			return zero, attempt, lastErr
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, attempt, lastErr
		case <-timer.C:
		}
	}
	return zero, p.Attempts, lastErr
}

// delay returns the sleep before retry number attempt (1-based).
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.Backoff) * math.Pow(2, float64(attempt-1))
	if d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// LogRetries returns an OnRetry callback that logs each retry of op.
func LogRetries(op string, fields ...zap.Field) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying "+op,
			append([]zap.Field{zap.Int("attempt", attempt), zap.Error(err)}, fields...)...,
		)
	}
}
