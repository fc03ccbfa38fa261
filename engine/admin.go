package engine

import (
	"context"

	"github.com/appscale/taskqueue"
	"github.com/appscale/taskqueue/queue"
	"github.com/appscale/taskqueue/task"
)

// Queues returns every queue definition in name order.
func (eng *Engine) Queues() []queue.Definition {
	names := eng.registry.Names()
	out := make([]queue.Definition, 0, len(names))
	for _, name := range names {
		q, _ := eng.registry.Lookup(name)
		out = append(out, q.Definition())
	}
	return out
}

// DeleteTask removes one task, failing UNKNOWN_TASK when it is absent.
func (eng *Engine) DeleteTask(ctx context.Context, queueName, name string) error {
	codes, err := eng.Delete(ctx, queueName, []string{name})
	if err != nil {
		return err
	}
	if codes[0] != taskqueue.OK {
		return taskqueue.Errorf(codes[0], "task %s in queue %s", name, queueName)
	}
	return nil
}

// RunTask delivers a push task immediately, ignoring its ETA and the
// queue's rate.
func (eng *Engine) RunTask(ctx context.Context, queueName, name string) error {
	q, err := eng.registry.Push(queueName)
	if err != nil {
		return err
	}
	return q.RunTask(ctx, name)
}

// FlushQueue removes every task from a queue and returns how many there
// were.
func (eng *Engine) FlushQueue(ctx context.Context, queueName string) (int, error) {
	q, err := eng.registry.Lookup(queueName)
	if err != nil {
		return 0, err
	}
	return q.Flush(ctx), nil
}

// QueueState lists a queue's tasks ordered by ETA.
func (eng *Engine) QueueState(_ context.Context, queueName string) ([]*task.Task, error) {
	q, err := eng.registry.Lookup(queueName)
	if err != nil {
		return nil, err
	}
	return q.State(), nil
}

// PauseQueue suspends deliveries on a push queue.
func (eng *Engine) PauseQueue(_ context.Context, queueName string) error {
	q, err := eng.registry.Push(queueName)
	if err != nil {
		return err
	}
	q.Pause()
	return nil
}

// ResumeQueue restarts deliveries on a paused push queue.
func (eng *Engine) ResumeQueue(_ context.Context, queueName string) error {
	q, err := eng.registry.Push(queueName)
	if err != nil {
		return err
	}
	return q.Resume()
}

// SetQueueRate changes a push queue's rate in tasks per second and its
// bucket size. A zero bucket size keeps the configured one.
func (eng *Engine) SetQueueRate(_ context.Context, queueName string, perSecond float64, bucketSize int) error {
	q, err := eng.registry.Push(queueName)
	if err != nil {
		return err
	}
	return q.SetRate(perSecond, bucketSize)
}
