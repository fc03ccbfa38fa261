package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/appscale/taskqueue/ext"
	"github.com/appscale/taskqueue/task"
)

const meterName = "github.com/appscale/taskqueue/observability"

// Compile-time interface checks.
var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.TaskAdded     = (*MetricsExtension)(nil)
	_ ext.TaskDelivered = (*MetricsExtension)(nil)
	_ ext.TaskRetrying  = (*MetricsExtension)(nil)
	_ ext.TaskDropped   = (*MetricsExtension)(nil)
	_ ext.TaskDeleted   = (*MetricsExtension)(nil)
	_ ext.TasksLeased   = (*MetricsExtension)(nil)
	_ ext.QueuePurged   = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle counters through an OTel
// meter. Every counter carries a "queue" attribute.
type MetricsExtension struct {
	TaskAdded     metric.Int64Counter
	TaskDelivered metric.Int64Counter
	TaskRetried   metric.Int64Counter
	TaskDropped   metric.Int64Counter
	TaskDeleted   metric.Int64Counter
	TaskLeased    metric.Int64Counter
	QueuePurged   metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension on the given
// meter. Instrument creation errors fall back to noop instruments.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{task}"))
		return c
	}
	return &MetricsExtension{
		TaskAdded:     counter("taskqueue.task.added", "Tasks accepted into a queue"),
		TaskDelivered: counter("taskqueue.task.delivered", "Push tasks delivered successfully"),
		TaskRetried:   counter("taskqueue.task.retried", "Push deliveries rescheduled after a failure"),
		TaskDropped:   counter("taskqueue.task.dropped", "Push tasks dropped after exhausting retries"),
		TaskDeleted:   counter("taskqueue.task.deleted", "Tasks deleted by callers"),
		TaskLeased:    counter("taskqueue.task.leased", "Pull tasks leased by workers"),
		QueuePurged:   counter("taskqueue.queue.purged", "Queue purges"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func queueAttr(queue string) metric.AddOption {
	return metric.WithAttributes(attribute.String("queue", queue))
}

// OnTaskAdded implements ext.TaskAdded.
func (m *MetricsExtension) OnTaskAdded(ctx context.Context, t *task.Task) error {
	m.TaskAdded.Add(ctx, 1, queueAttr(t.Queue))
	return nil
}

// OnTaskDelivered implements ext.TaskDelivered.
func (m *MetricsExtension) OnTaskDelivered(ctx context.Context, t *task.Task, _ time.Duration) error {
	m.TaskDelivered.Add(ctx, 1, queueAttr(t.Queue))
	return nil
}

// OnTaskRetrying implements ext.TaskRetrying.
func (m *MetricsExtension) OnTaskRetrying(ctx context.Context, t *task.Task, _ int, _ time.Time) error {
	m.TaskRetried.Add(ctx, 1, queueAttr(t.Queue))
	return nil
}

// OnTaskDropped implements ext.TaskDropped.
func (m *MetricsExtension) OnTaskDropped(ctx context.Context, t *task.Task, _ error) error {
	m.TaskDropped.Add(ctx, 1, queueAttr(t.Queue))
	return nil
}

// OnTaskDeleted implements ext.TaskDeleted.
func (m *MetricsExtension) OnTaskDeleted(ctx context.Context, queue, _ string) error {
	m.TaskDeleted.Add(ctx, 1, queueAttr(queue))
	return nil
}

// OnTasksLeased implements ext.TasksLeased.
func (m *MetricsExtension) OnTasksLeased(ctx context.Context, queue string, tasks []*task.Task) error {
	m.TaskLeased.Add(ctx, int64(len(tasks)), queueAttr(queue))
	return nil
}

// OnQueuePurged implements ext.QueuePurged.
func (m *MetricsExtension) OnQueuePurged(ctx context.Context, queue string) error {
	m.QueuePurged.Add(ctx, 1, queueAttr(queue))
	return nil
}
