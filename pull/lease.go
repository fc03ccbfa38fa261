package pull

import (
	"context"
	"log/slog"
	"time"

	"github.com/appscale/taskqueue"
	"github.com/appscale/taskqueue/task"
)

// LeaseOptions selects which tasks a Lease call claims.
type LeaseOptions struct {
	// Lease is how long the claimed tasks stay invisible.
	Lease time.Duration

	// Max is the largest number of tasks to return.
	Max int

	// GroupByTag restricts the lease to tasks carrying Tag. An empty Tag
	// adopts the tag of the earliest available task.
	GroupByTag bool
	Tag        string
}

func (q *Queue) checkLease(lease time.Duration) error {
	if lease < 0 || lease > q.cfg.MaxLease {
		return taskqueue.Errorf(taskqueue.InvalidRequest,
			"lease %v outside [0, %v]", lease, q.cfg.MaxLease)
	}
	return nil
}

// Lease claims up to opts.Max available tasks in ETA order and sets each
// one's ETA to now + opts.Lease. The returned tasks are copies carrying the
// new ETA and lease count. A task whose lease count has reached the
// queue's retry limit is never leased again.
func (q *Queue) Lease(ctx context.Context, opts LeaseOptions) ([]*task.Task, error) {
	if err := q.checkLease(opts.Lease); err != nil {
		return nil, err
	}
	if opts.Max <= 0 || opts.Max > q.cfg.MaxLeaseCount {
		return nil, taskqueue.Errorf(taskqueue.InvalidRequest,
			"max tasks %d outside (0, %d]", opts.Max, q.cfg.MaxLeaseCount)
	}

	q.mu.Lock()
	now := q.clock()
	src := q.index
	if opts.GroupByTag {
		tag, ok := q.resolveTag(now, opts.Tag)
		if !ok {
			q.mu.Unlock()
			return nil, nil
		}
		src = q.byTag[tag]
		if src == nil {
			q.mu.Unlock()
			return nil, nil
		}
	}

	eta := now.Add(opts.Lease).Truncate(time.Microsecond)
	names := src.Due(now, opts.Max, q.leasable)
	out := make([]*task.Task, 0, len(names))
	for _, name := range names {
		t := q.tasks[name]
		t.ETA = eta
		t.RetryCount++
		if t.FirstTriedAt.IsZero() {
			t.FirstTriedAt = now
		}
		q.reindex(t)
		out = append(out, t.Clone())
	}
	q.mu.Unlock()

	if len(out) > 0 {
		q.logger.Debug("tasks leased",
			slog.Int("count", len(out)),
			slog.Duration("lease", opts.Lease),
		)
		q.extensions.EmitTasksLeased(ctx, q.def.Name, out)
	}
	return out, nil
}

// resolveTag returns the tag a grouped lease should use. An explicit tag
// is used as is; otherwise the earliest available task decides. Callers
// hold q.mu.
func (q *Queue) resolveTag(now time.Time, tag string) (string, bool) {
	if tag != "" {
		return tag, true
	}
	first := q.index.Due(now, 1, q.leasable)
	if len(first) == 0 {
		return "", false
	}
	t := q.tasks[first[0]]
	q.index.Set(t.Name, t.ETA)
	return t.Tag, true
}

// leasable reports whether the queue's retry limit still allows leasing
// the named task. A limit of zero is the queue.yaml default and leaves
// leasing unbounded. Callers hold q.mu.
func (q *Queue) leasable(name string) bool {
	r := q.def.Retry
	if r == nil || r.RetryLimit == nil || *r.RetryLimit == 0 {
		return true
	}
	return q.tasks[name].RetryCount < *r.RetryLimit
}

// ModifyLease extends or shortens the lease on a task the caller holds.
// eta must equal the task's current ETA, which proves the caller still
// owns the lease. A zero lease releases the task immediately. It returns
// the task's new ETA.
func (q *Queue) ModifyLease(_ context.Context, name string, eta time.Time, lease time.Duration) (time.Time, error) {
	if err := q.checkLease(lease); err != nil {
		return time.Time{}, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[name]
	if !ok {
		return time.Time{}, taskqueue.Errorf(taskqueue.UnknownTask,
			"task %s in queue %s", name, q.def.Name)
	}
	now := q.clock()
	if !t.ETA.Equal(eta.Truncate(time.Microsecond)) {
		return time.Time{}, taskqueue.Errorf(taskqueue.TaskLeaseExpired,
			"task %s eta %s does not match", name, eta.Format(time.RFC3339Nano))
	}
	if !t.ETA.After(now) {
		return time.Time{}, taskqueue.Errorf(taskqueue.TaskLeaseExpired,
			"task %s lease ran out at %s", name, t.ETA.Format(time.RFC3339Nano))
	}

	t.ETA = now.Add(lease).Truncate(time.Microsecond)
	q.reindex(t)
	return t.ETA, nil
}
