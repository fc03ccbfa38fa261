// Package backoff provides the retry delay strategies used when a push
// task delivery fails. All strategies are safe for concurrent use (they
// are stateless).
package backoff

import (
	"math"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && d > float64(e.Max) {
		return e.Max
	}
	return time.Duration(d)
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// Default delay bounds used when a task and its queue carry no retry
// parameters.
const (
	DefaultInitial = 100 * time.Millisecond
	DefaultMax     = time.Hour
)

// DefaultStrategy returns the policy applied to tasks without retry
// parameters: 100ms doubling per retry, capped at one hour.
func DefaultStrategy() Strategy {
	return NewExponential(DefaultInitial, DefaultMax)
}
