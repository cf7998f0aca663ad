// Package ratelimit spaces out calls to a remote API.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between permitted calls.
//
// A single Limiter is shared by every worker that talks to the same API;
// the interval applies to all of them collectively.
type Limiter struct {
	limiter *rate.Limiter
}

// New returns a limiter that permits one call per interval. The first call
// is permitted immediately. An interval <= 0 disables limiting.
func New(interval time.Duration) *Limiter {
	if interval <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// PerMinute returns a limiter for a requests-per-minute ceiling.
func PerMinute(rpm int) *Limiter {
	return New(IntervalFor(rpm))
}

// IntervalFor converts a requests-per-minute ceiling to a minimum interval.
func IntervalFor(rpm int) time.Duration {
	if rpm <= 0 {
		return 0
	}
	return time.Minute / time.Duration(rpm)
}

// Acquire blocks until the caller may proceed or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}
