package push

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/appscale/taskqueue/backoff"
	"github.com/appscale/taskqueue/deliver"
	"github.com/appscale/taskqueue/task"
)

// attempt delivers one snapshot and applies the outcome. It runs on its
// own goroutine and always returns the limiter slot.
func (q *Queue) attempt(rec *record, snap *task.Task) {
	defer q.wg.Done()
	defer func() {
		q.limiter.Release()
		q.signal()
	}()

	req := q.request(snap)
	start := time.Now()
	err := q.handler(q.ctx, snap, func(ctx context.Context) error {
		return q.deliverer.Deliver(ctx, req)
	})
	q.finish(rec, snap, err, time.Since(start))
}

// finish applies a delivery outcome unless the task was deleted or
// replaced while it was in flight.
func (q *Queue) finish(rec *record, snap *task.Task, deliveryErr error, elapsed time.Duration) {
	ctx := context.Background()

	q.mu.Lock()
	now := q.now()
	q.executed = append(q.executed, now)
	if cur, ok := q.tasks[snap.Name]; !ok || cur != rec {
		q.mu.Unlock()
		q.logger.Debug("task removed during delivery", slog.String("task", snap.Name))
		return
	}

	if deliveryErr == nil {
		delete(q.tasks, snap.Name)
		q.mu.Unlock()
		q.extensions.EmitTaskDelivered(ctx, snap, elapsed)
		return
	}

	t := rec.task
	params, strategy := backoff.Resolve(t.Retry, q.def.Retry)
	if !backoff.CanRetry(params, t.RetryCount, t.FirstTriedAt, now) {
		delete(q.tasks, snap.Name)
		q.mu.Unlock()
		q.logger.Warn("task dropped after final failure",
			slog.String("task", snap.Name),
			slog.Int("retry_count", snap.RetryCount),
			slog.String("error", deliveryErr.Error()),
		)
		q.extensions.EmitTaskDropped(ctx, snap, deliveryErr)
		return
	}

	t.RetryCount++
	t.ETA = now.Add(strategy.Delay(t.RetryCount))
	rec.inFlight = false
	q.pending.Set(t.Name, t.ETA)
	retried := t.Clone()
	q.mu.Unlock()

	q.logger.Debug("task scheduled for retry",
		slog.String("task", retried.Name),
		slog.Int("retry_count", retried.RetryCount),
		slog.Time("eta", retried.ETA),
	)
	q.extensions.EmitTaskRetrying(ctx, retried, retried.RetryCount, retried.ETA)
}

// request builds the outbound request for snap, adding the
// X-AppEngine-* headers on top of the task's own.
func (q *Queue) request(snap *task.Task) *deliver.Request {
	h := snap.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	retries := strconv.Itoa(snap.RetryCount)
	h.Set(deliver.HeaderQueueName, q.def.Name)
	h.Set(deliver.HeaderTaskName, snap.Name)
	h.Set(deliver.HeaderTaskRetryCount, retries)
	h.Set(deliver.HeaderTaskExecutionCount, retries)
	h.Set(deliver.HeaderTaskETA, deliver.FormatETA(snap.ETA))
	h.Set(deliver.HeaderFakeIsAdmin, "1")
	if snap.Tag != "" {
		h.Set(deliver.HeaderTaskTag, snap.Tag)
	}
	if q.def.Target != "" {
		h.Set(deliver.HeaderTarget, q.def.Target)
	}

	return &deliver.Request{
		Queue:        q.def.Name,
		Task:         snap.Name,
		Method:       snap.Method,
		URL:          strings.TrimRight(q.cfg.TargetURL(q.def.Target), "/") + snap.URL,
		Header:       h,
		Body:         snap.Body,
		RetryCount:   snap.RetryCount,
		FirstTriedAt: snap.FirstTriedAt,
		ETA:          snap.ETA,
	}
}
