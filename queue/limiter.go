package queue

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter controls the delivery rate and concurrency of a single push
// queue. It is safe for concurrent use.
type Limiter struct {
	mu             sync.Mutex
	limiter        *rate.Limiter
	perSecond      float64
	burst          int
	maxConcurrency int
	active         int
}

// NewLimiter creates a Limiter releasing perSecond tasks per second with
// the given burst, and at most maxConcurrency in flight. A non-positive
// perSecond disables the token bucket; a non-positive maxConcurrency
// disables the concurrency gate.
func NewLimiter(perSecond float64, burst, maxConcurrency int) *Limiter {
	l := &Limiter{maxConcurrency: maxConcurrency}
	l.setRate(perSecond, burst)
	return l
}

func (l *Limiter) setRate(perSecond float64, burst int) {
	if burst <= 0 {
		burst = 1
	}
	l.perSecond, l.burst = perSecond, burst
	l.limiter = nil
	if perSecond > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// Acquire checks the concurrency gate and then the token bucket. If a
// delivery may start now it increments the active counter and returns
// true; the caller MUST call Release when the delivery completes.
//
// When the token bucket is empty Acquire returns false and how long until
// the next token. When the concurrency gate is full it returns false and a
// zero wait: the caller should wait for a Release.
func (l *Limiter) Acquire(now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxConcurrency > 0 && l.active >= l.maxConcurrency {
		return false, 0
	}
	if l.limiter != nil {
		r := l.limiter.ReserveN(now, 1)
		if !r.OK() {
			return false, 0
		}
		if d := r.DelayFrom(now); d > 0 {
			r.CancelAt(now)
			return false, d
		}
	}
	l.active++
	return true, 0
}

// Force takes a concurrency slot without consulting either gate. It is
// used for administrative out-of-band deliveries, which still count as
// in flight.
func (l *Limiter) Force() {
	l.mu.Lock()
	l.active++
	l.mu.Unlock()
}

// Release decrements the active delivery count.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active > 0 {
		l.active--
	}
}

// SetRate dynamically replaces the token bucket, keeping the active count.
func (l *Limiter) SetRate(perSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setRate(perSecond, burst)
}

// Rate returns the enforced rate in tasks per second.
func (l *Limiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perSecond
}

// Active returns the current number of in-flight deliveries.
func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
