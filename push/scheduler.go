package push

import (
	"context"
	"log/slog"
	"time"

	"github.com/appscale/taskqueue"
	"github.com/appscale/taskqueue/task"
)

// Start launches the scheduler goroutine. It returns immediately and is a
// no-op on a running queue.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running || q.stopped {
		return nil
	}
	q.running = true

	q.logger.Info("push queue starting",
		slog.Float64("rate", q.limiter.Rate()),
		slog.Int("bucket_size", q.def.BucketSize),
		slog.Int("max_concurrent_requests", q.def.MaxConcurrentRequests),
	)

	q.wg.Add(1)
	go q.schedule()
	return nil
}

// Stop halts the scheduler and waits for in-flight deliveries. If ctx
// ends first the deliveries are cancelled, which leaves their tasks
// scheduled for retry.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	q.mu.Unlock()

	close(q.stopCh)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		q.logger.Warn("push queue shutdown timed out, cancelling deliveries")
		err = ctx.Err()
	}
	q.cancel()
	<-done
	q.logger.Info("push queue stopped")
	return err
}

// schedule is the queue's scheduler goroutine.
func (q *Queue) schedule() {
	defer q.wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		if wait := q.dispatch(); wait > 0 {
			timer.Reset(wait)
		}

		select {
		case <-q.stopCh:
			return
		case <-q.wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// dispatch starts deliveries for every due task the limiter admits. It
// returns how long to sleep before the next task or token is due; zero
// means sleep until woken.
func (q *Queue) dispatch() time.Duration {
	for {
		q.mu.Lock()
		if q.paused || q.stopped {
			q.mu.Unlock()
			return 0
		}
		name, eta, ok := q.pending.Peek()
		if !ok {
			q.mu.Unlock()
			return 0
		}
		now := q.now()
		if eta.After(now) {
			q.mu.Unlock()
			return eta.Sub(now)
		}
		if admitted, wait := q.limiter.Acquire(now); !admitted {
			q.mu.Unlock()
			return wait
		}
		q.pending.Pop()
		rec := q.tasks[name]
		snap := q.claim(rec, now)
		q.wg.Add(1)
		q.mu.Unlock()

		go q.attempt(rec, snap)
	}
}

// RunTask delivers the named task immediately, bypassing its ETA, the
// pause state and the rate limit. A task already in flight is left alone.
func (q *Queue) RunTask(_ context.Context, name string) error {
	q.mu.Lock()
	rec, ok := q.tasks[name]
	if !ok {
		q.mu.Unlock()
		return taskqueue.Errorf(taskqueue.UnknownTask, "task %s in queue %s", name, q.def.Name)
	}
	if rec.inFlight {
		q.mu.Unlock()
		return nil
	}
	if q.stopped {
		q.mu.Unlock()
		return taskqueue.Errorf(taskqueue.TransientError, "queue %s is stopped", q.def.Name)
	}
	q.pending.Remove(name)
	snap := q.claim(rec, q.now())
	q.limiter.Force()
	q.wg.Add(1)
	q.mu.Unlock()

	go q.attempt(rec, snap)
	return nil
}

// claim marks rec in flight and returns the snapshot to deliver. Callers
// hold q.mu.
func (q *Queue) claim(rec *record, now time.Time) *task.Task {
	rec.inFlight = true
	if rec.task.FirstTriedAt.IsZero() {
		rec.task.FirstTriedAt = now
	}
	return rec.task.Clone()
}
