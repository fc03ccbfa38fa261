package ext

import (
	"context"
	"time"

	"github.com/appscale/taskqueue/task"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// TaskAdded is called after a task is accepted into a queue.
type TaskAdded interface {
	OnTaskAdded(ctx context.Context, t *task.Task) error
}

// TaskDelivered is called after a push task is delivered successfully.
type TaskDelivered interface {
	OnTaskDelivered(ctx context.Context, t *task.Task, elapsed time.Duration) error
}

// TaskRetrying is called when a push delivery fails and the task is
// rescheduled.
type TaskRetrying interface {
	OnTaskRetrying(ctx context.Context, t *task.Task, attempt int, nextETA time.Time) error
}

// TaskDropped is called when a push task is removed after its retry policy
// is exhausted.
type TaskDropped interface {
	OnTaskDropped(ctx context.Context, t *task.Task, err error) error
}

// TaskDeleted is called after a caller deletes a task.
type TaskDeleted interface {
	OnTaskDeleted(ctx context.Context, queue, name string) error
}

// TasksLeased is called after a pull worker leases tasks.
type TasksLeased interface {
	OnTasksLeased(ctx context.Context, queue string, tasks []*task.Task) error
}

// QueuePurged is called after every task of a queue has been removed.
type QueuePurged interface {
	OnQueuePurged(ctx context.Context, queue string) error
}

// Shutdown is called when the engine is stopping.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
