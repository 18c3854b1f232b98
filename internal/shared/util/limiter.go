package util

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// RunLimiter throttles analysis re-runs. It is a token bucket refilled
// perMinute times a minute with room for one pending run.
type RunLimiter struct {
	inner *rate.Limiter
}

// NewRunLimiter returns a limiter allowing perMinute runs a minute. A
// non-positive rate never blocks.
func NewRunLimiter(perMinute int) *RunLimiter {
	return &RunLimiter{inner: rate.NewLimiter(perMinuteLimit(perMinute), 1)}
}

// SetRate changes the refill rate. Goroutines already waiting see the new rate.
func (l *RunLimiter) SetRate(perMinute int) {
	l.inner.SetLimit(perMinuteLimit(perMinute))
}

// Rate returns the configured runs per minute, 0 when unlimited.
func (l *RunLimiter) Rate() int {
	lim := l.inner.Limit()
	if lim == rate.Inf {
		return 0
	}
	return int(math.Round(float64(lim) * 60))
}

func (l *RunLimiter) Allow() bool {
	return l.inner.Allow()
}

// Wait blocks until the next run may start or ctx is done.
func (l *RunLimiter) Wait(ctx context.Context) error {
	if err := l.inner.Wait(ctx); err != nil {
		return fmt.Errorf("wait for run slot: %w", err)
	}
	return nil
}

func perMinuteLimit(perMinute int) rate.Limit {
	if perMinute <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Minute / time.Duration(perMinute))
}
