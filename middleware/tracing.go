package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/appscale/taskqueue/task"
)

// tracerName is the instrumentation scope name for task queue tracing.
const tracerName = "github.com/appscale/taskqueue"

// Tracing returns middleware that wraps each delivery attempt in an
// OpenTelemetry span. Without a global TracerProvider the noop tracer is
// used.
//
// Span attributes: taskqueue.queue, taskqueue.task.name,
// taskqueue.task.url, http.request.method, taskqueue.retry_count and, for
// tagged tasks, taskqueue.task.tag. A webhook that answers with a non-2xx
// status adds http.response.status_code.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) error {
		ctx, span := tracer.Start(ctx, "taskqueue.task.deliver",
			trace.WithAttributes(
				attribute.String("taskqueue.queue", t.Queue),
				attribute.String("taskqueue.task.name", t.Name),
				attribute.String("taskqueue.task.url", t.URL),
				attribute.String("http.request.method", t.Method),
				attribute.Int("taskqueue.retry_count", t.RetryCount),
			),
			trace.WithSpanKind(trace.SpanKindClient),
		)
		defer span.End()
		if t.Tag != "" {
			span.SetAttributes(attribute.String("taskqueue.task.tag", t.Tag))
		}

		err := next(ctx)
		if code := statusCode(err); code != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", code))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}
