package resilience

import (
	"errors"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a non-blocking limiter check fails.
var ErrRateLimited = errors.New("rate limited")

// LimiterOpts configures the token bucket.
type LimiterOpts struct {
	// Rate is tokens added per second.
	Rate float64
	// Burst is the bucket capacity.
	Burst int
}

// Limiter is a thin wrapper over x/time/rate that keeps the engine's
// error vocabulary.
type Limiter struct {
	l *rate.Limiter
}

// NewLimiter creates a token bucket limiter.
func NewLimiter(opts LimiterOpts) *Limiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Limiter{l: rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst)}
}

// Allow reports whether a request may proceed right now.
func (l *Limiter) Allow() bool {
	return l.l.Allow()
}

// Check is Allow as an error, for call sites that propagate failures.
func (l *Limiter) Check() error {
	if l.l.Allow() {
		return nil
	}
	return ErrRateLimited
}
