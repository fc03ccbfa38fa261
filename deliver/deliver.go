// Package deliver performs the outbound side of push queue delivery. A
// Deliverer either calls the task's webhook directly (HTTP) or hands the
// task off to a broker (Broker); the push queue applies the same retry,
// backoff and admission control in front of either.
package deliver

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Headers set on every push delivery.
const (
	HeaderQueueName          = "X-AppEngine-QueueName"
	HeaderTaskName           = "X-AppEngine-TaskName"
	HeaderTaskRetryCount     = "X-AppEngine-TaskRetryCount"
	HeaderTaskExecutionCount = "X-AppEngine-TaskExecutionCount"
	HeaderTaskETA            = "X-AppEngine-TaskETA"
	HeaderTaskTag            = "X-AppEngine-TaskTag"
	HeaderTarget             = "X-AppEngine-Target"

	// HeaderFakeIsAdmin tells the receiving application to skip its admin
	// check, since the request originates from the queue itself.
	HeaderFakeIsAdmin = "X-AppEngine-Fake-Is-Admin"
)

// Request is one delivery attempt of a push task.
type Request struct {
	Queue        string
	Task         string
	Method       string
	URL          string
	Header       http.Header
	Body         []byte
	RetryCount   int
	FirstTriedAt time.Time
	ETA          time.Time
}

// Deliverer performs a single delivery attempt. A nil error means the task
// is done and can be deleted; any error makes the queue consider a retry.
type Deliverer interface {
	Deliver(ctx context.Context, req *Request) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, req *Request) error

// Deliver implements Deliverer.
func (f DelivererFunc) Deliver(ctx context.Context, req *Request) error { return f(ctx, req) }

// StatusError reports a webhook response outside the 2xx range.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("deliver: webhook returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// FormatETA renders an ETA as seconds.microseconds since the Unix epoch.
func FormatETA(t time.Time) string {
	usec := t.UnixMicro()
	sec, frac := usec/1_000_000, usec%1_000_000
	if frac < 0 {
		sec, frac = sec-1, frac+1_000_000
	}
	return fmt.Sprintf("%d.%06d", sec, frac)
}
