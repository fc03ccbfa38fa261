package middleware_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/appscale/taskqueue/deliver"
	mw "github.com/appscale/taskqueue/middleware"
	"github.com/appscale/taskqueue/task"
)

func setupTestTracer() (*tracetest.SpanRecorder, trace.Tracer) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, tp.Tracer("test")
}

func newTestTask() *task.Task {
	return &task.Task{
		Name:       "task42",
		Queue:      "default",
		URL:        "/worker",
		RetryCount: 2,
	}
}

func TestTracing_CreatesSpan(t *testing.T) {
	sr, tracer := setupTestTracer()

	err := mw.TracingWithTracer(tracer)(context.Background(), newTestTask(), func(_ context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "taskqueue.task.deliver" {
		t.Errorf("expected span name %q, got %q", "taskqueue.task.deliver", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("expected status Ok, got %v", spans[0].Status().Code)
	}
}

func TestTracing_SpanAttributes(t *testing.T) {
	sr, tracer := setupTestTracer()

	_ = mw.TracingWithTracer(tracer)(context.Background(), newTestTask(), func(_ context.Context) error {
		return nil
	})

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	expected := map[string]interface{}{
		"taskqueue.queue":       "default",
		"taskqueue.task.name":   "task42",
		"taskqueue.task.url":    "/worker",
		"taskqueue.retry_count": int64(2),
	}
	attrMap := make(map[string]interface{})
	for _, a := range spans[0].Attributes() {
		switch a.Value.Type() {
		case attribute.STRING:
			attrMap[string(a.Key)] = a.Value.AsString()
		case attribute.INT64:
			attrMap[string(a.Key)] = a.Value.AsInt64()
		}
	}
	for key, want := range expected {
		if got, ok := attrMap[key]; !ok || got != want {
			t.Errorf("attribute %q = %v, want %v", key, got, want)
		}
	}
}

func TestTracing_Error_SetsErrorStatus(t *testing.T) {
	sr, tracer := setupTestTracer()

	handlerErr := errors.New("webhook returned 500")
	err := mw.TracingWithTracer(tracer)(context.Background(), newTestTask(), func(_ context.Context) error {
		return handlerErr
	})
	if !errors.Is(err, handlerErr) {
		t.Fatalf("expected handler error, got %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected status Error, got %v", spans[0].Status().Code)
	}

	found := false
	for _, ev := range spans[0].Events() {
		if ev.Name == "exception" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected 'exception' event to be recorded on span")
	}
}

func TestTracing_RecordsWebhookStatusAndTag(t *testing.T) {
	sr, tracer := setupTestTracer()

	tk := newTestTask()
	tk.Tag = "billing"
	_ = mw.TracingWithTracer(tracer)(context.Background(), tk, func(_ context.Context) error {
		return &deliver.StatusError{StatusCode: 404}
	})

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	var status int64
	var tag string
	for _, a := range spans[0].Attributes() {
		switch a.Key {
		case "http.response.status_code":
			status = a.Value.AsInt64()
		case "taskqueue.task.tag":
			tag = a.Value.AsString()
		}
	}
	if status != 404 {
		t.Errorf("http.response.status_code = %d, want 404", status)
	}
	if tag != "billing" {
		t.Errorf("taskqueue.task.tag = %q, want billing", tag)
	}
}

func TestTracing_PropagatesContext(t *testing.T) {
	sr, tracer := setupTestTracer()

	var handlerSpanCtx trace.SpanContext
	_ = mw.TracingWithTracer(tracer)(context.Background(), newTestTask(), func(ctx context.Context) error {
		handlerSpanCtx = trace.SpanFromContext(ctx).SpanContext()
		return nil
	})

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if !handlerSpanCtx.IsValid() || handlerSpanCtx.TraceID() != spans[0].SpanContext().TraceID() {
		t.Error("handler did not receive the delivery span context")
	}
}
