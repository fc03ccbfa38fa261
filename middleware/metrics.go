package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/appscale/taskqueue/deliver"
	"github.com/appscale/taskqueue/task"
)

// meterName is the instrumentation scope name for task queue metrics.
const meterName = "github.com/appscale/taskqueue"

// Metrics returns middleware that records every delivery attempt with the
// global OTel MeterProvider.
//
// Instruments:
//   - taskqueue.delivery.duration (Float64Histogram, seconds)
//   - taskqueue.delivery.attempts (Int64Counter)
//
// Both carry queue, status ("ok", "http_error" or "error"), retry (whether
// the attempt is a retry) and, when the webhook answered with a non-2xx
// status, http.response.status_code.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the API returns noop instruments.
	duration, _ := meter.Float64Histogram(
		"taskqueue.delivery.duration",
		metric.WithDescription("Duration of push task delivery attempts in seconds"),
		metric.WithUnit("s"),
	)
	attempts, _ := meter.Int64Counter(
		"taskqueue.delivery.attempts",
		metric.WithDescription("Total number of push task delivery attempts"),
		metric.WithUnit("{attempt}"),
	)

	return func(ctx context.Context, t *task.Task, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		kv := []attribute.KeyValue{
			attribute.String("queue", t.Queue),
			attribute.Bool("retry", t.RetryCount > 0),
		}
		switch code := statusCode(err); {
		case err == nil:
			kv = append(kv, attribute.String("status", "ok"))
		case code != 0:
			kv = append(kv,
				attribute.String("status", "http_error"),
				attribute.Int("http.response.status_code", code),
			)
		default:
			kv = append(kv, attribute.String("status", "error"))
		}

		attrs := metric.WithAttributes(kv...)
		duration.Record(ctx, elapsed, attrs)
		attempts.Add(ctx, 1, attrs)

		return err
	}
}

// statusCode returns the HTTP status of a rejected webhook call, or 0 when
// err did not come from a webhook response.
func statusCode(err error) int {
	var se *deliver.StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
