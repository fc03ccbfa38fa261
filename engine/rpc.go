package engine

import (
	"context"
	"time"

	"github.com/appscale/taskqueue"
	"github.com/appscale/taskqueue/pull"
	"github.com/appscale/taskqueue/queue"
	"github.com/appscale/taskqueue/task"
)

// AddResult is the per-task outcome of BulkAdd.
type AddResult struct {
	Code taskqueue.ErrorCode `json:"result"`
	Name string              `json:"chosen_task_name,omitempty"`
}

// LeaseRequest selects pull tasks to lease.
type LeaseRequest struct {
	Queue      string        `json:"queue_name"`
	Lease      time.Duration `json:"lease"`
	MaxTasks   int           `json:"max_tasks"`
	GroupByTag bool          `json:"group_by_tag,omitempty"`
	Tag        string        `json:"tag,omitempty"`
}

// Add validates req and enqueues it, returning the task's name.
func (eng *Engine) Add(ctx context.Context, req AddRequest) (string, error) {
	q, err := eng.validateAdd(req, eng.now())
	if err != nil {
		return "", err
	}
	return q.Add(ctx, req.task())
}

// BulkAdd enqueues reqs as a batch. Every request is validated first; if
// any fails, nothing is added and the valid requests report SKIPPED.
// Otherwise each is added and reports OK with its name. A batch that is
// empty or larger than MaxBulkAdd is rejected as a whole.
func (eng *Engine) BulkAdd(ctx context.Context, reqs []AddRequest) ([]AddResult, error) {
	if len(reqs) == 0 {
		return nil, taskqueue.Errorf(taskqueue.InvalidRequest, "no tasks")
	}
	if len(reqs) > eng.cfg.MaxBulkAdd {
		return nil, taskqueue.Errorf(taskqueue.TooManyTasks,
			"%d tasks exceeds %d", len(reqs), eng.cfg.MaxBulkAdd)
	}

	now := eng.now()
	results := make([]AddResult, len(reqs))
	queues := make([]Queue, len(reqs))
	seen := make(map[[2]string]bool, len(reqs))
	failed := false
	for i, req := range reqs {
		q, err := eng.validateAdd(req, now)
		if err == nil && req.Name != "" {
			key := [2]string{req.Queue, req.Name}
			if seen[key] || q.Has(req.Name) {
				err = taskqueue.Errorf(taskqueue.TaskAlreadyExists, "task %s", req.Name)
			}
			seen[key] = true
		}
		if err != nil {
			results[i].Code = taskqueue.CodeOf(err)
			failed = true
			continue
		}
		results[i].Code = taskqueue.Skipped
		queues[i] = q
	}
	if failed {
		return results, nil
	}

	for i, req := range reqs {
		name, err := queues[i].Add(ctx, req.task())
		if err != nil {
			results[i].Code = taskqueue.CodeOf(err)
			continue
		}
		results[i] = AddResult{Code: taskqueue.OK, Name: name}
	}
	return results, nil
}

// Delete removes the named tasks from a queue and returns one code per
// name: OK, UNKNOWN_TASK or INVALID_TASK_NAME.
func (eng *Engine) Delete(ctx context.Context, queueName string, names []string) ([]taskqueue.ErrorCode, error) {
	q, err := eng.registry.Lookup(queueName)
	if err != nil {
		return nil, err
	}
	codes := make([]taskqueue.ErrorCode, len(names))
	for i, name := range names {
		switch {
		case !task.ValidName(name):
			codes[i] = taskqueue.InvalidTaskName
		case q.Delete(ctx, name):
			codes[i] = taskqueue.OK
		default:
			codes[i] = taskqueue.UnknownTask
		}
	}
	return codes, nil
}

// QueryAndOwnTasks leases available tasks from a pull queue.
func (eng *Engine) QueryAndOwnTasks(ctx context.Context, req LeaseRequest) ([]*task.Task, error) {
	q, err := eng.registry.Pull(req.Queue)
	if err != nil {
		return nil, err
	}
	return q.Lease(ctx, pull.LeaseOptions{
		Lease:      req.Lease,
		Max:        req.MaxTasks,
		GroupByTag: req.GroupByTag,
		Tag:        req.Tag,
	})
}

// ModifyTaskLease renews the lease on a pull task. eta must be the task's
// current ETA. It returns the new ETA.
func (eng *Engine) ModifyTaskLease(ctx context.Context, queueName, name string, eta time.Time, lease time.Duration) (time.Time, error) {
	q, err := eng.registry.Pull(queueName)
	if err != nil {
		return time.Time{}, err
	}
	if !task.ValidName(name) {
		return time.Time{}, taskqueue.Errorf(taskqueue.InvalidTaskName, "%q", name)
	}
	return q.ModifyLease(ctx, name, eta, lease)
}

// FetchQueueStats returns statistics for the named queues, or for every
// queue when names is empty.
func (eng *Engine) FetchQueueStats(_ context.Context, names []string) ([]queue.Stats, error) {
	if len(names) == 0 {
		names = eng.registry.Names()
	}
	out := make([]queue.Stats, 0, len(names))
	for _, name := range names {
		q, err := eng.registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, q.Stats())
	}
	return out, nil
}

// PurgeQueue removes every task from a queue.
func (eng *Engine) PurgeQueue(ctx context.Context, queueName string) error {
	q, err := eng.registry.Lookup(queueName)
	if err != nil {
		return err
	}
	q.Flush(ctx)
	return nil
}
