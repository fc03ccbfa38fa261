package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/appscale/taskqueue/task"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type taskAddedEntry struct {
	name string
	hook TaskAdded
}

type taskDeliveredEntry struct {
	name string
	hook TaskDelivered
}

type taskRetryingEntry struct {
	name string
	hook TaskRetrying
}

type taskDroppedEntry struct {
	name string
	hook TaskDropped
}

type taskDeletedEntry struct {
	name string
	hook TaskDeleted
}

type tasksLeasedEntry struct {
	name string
	hook TasksLeased
}

type queuePurgedEntry struct {
	name string
	hook QueuePurged
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register must not be called once the engine has started; the emit
// methods are then safe for concurrent use.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	taskAdded     []taskAddedEntry
	taskDelivered []taskDeliveredEntry
	taskRetrying  []taskRetryingEntry
	taskDropped   []taskDroppedEntry
	taskDeleted   []taskDeletedEntry
	tasksLeased   []tasksLeasedEntry
	queuePurged   []queuePurgedEntry
	shutdown      []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(TaskAdded); ok {
		r.taskAdded = append(r.taskAdded, taskAddedEntry{name, h})
	}
	if h, ok := e.(TaskDelivered); ok {
		r.taskDelivered = append(r.taskDelivered, taskDeliveredEntry{name, h})
	}
	if h, ok := e.(TaskRetrying); ok {
		r.taskRetrying = append(r.taskRetrying, taskRetryingEntry{name, h})
	}
	if h, ok := e.(TaskDropped); ok {
		r.taskDropped = append(r.taskDropped, taskDroppedEntry{name, h})
	}
	if h, ok := e.(TaskDeleted); ok {
		r.taskDeleted = append(r.taskDeleted, taskDeletedEntry{name, h})
	}
	if h, ok := e.(TasksLeased); ok {
		r.tasksLeased = append(r.tasksLeased, tasksLeasedEntry{name, h})
	}
	if h, ok := e.(QueuePurged); ok {
		r.queuePurged = append(r.queuePurged, queuePurgedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitTaskAdded notifies all extensions that implement TaskAdded.
func (r *Registry) EmitTaskAdded(ctx context.Context, t *task.Task) {
	for _, e := range r.taskAdded {
		if err := e.hook.OnTaskAdded(ctx, t); err != nil {
			r.logHookError("OnTaskAdded", e.name, err)
		}
	}
}

// EmitTaskDelivered notifies all extensions that implement TaskDelivered.
func (r *Registry) EmitTaskDelivered(ctx context.Context, t *task.Task, elapsed time.Duration) {
	for _, e := range r.taskDelivered {
		if err := e.hook.OnTaskDelivered(ctx, t, elapsed); err != nil {
			r.logHookError("OnTaskDelivered", e.name, err)
		}
	}
}

// EmitTaskRetrying notifies all extensions that implement TaskRetrying.
func (r *Registry) EmitTaskRetrying(ctx context.Context, t *task.Task, attempt int, nextETA time.Time) {
	for _, e := range r.taskRetrying {
		if err := e.hook.OnTaskRetrying(ctx, t, attempt, nextETA); err != nil {
			r.logHookError("OnTaskRetrying", e.name, err)
		}
	}
}

// EmitTaskDropped notifies all extensions that implement TaskDropped.
func (r *Registry) EmitTaskDropped(ctx context.Context, t *task.Task, taskErr error) {
	for _, e := range r.taskDropped {
		if err := e.hook.OnTaskDropped(ctx, t, taskErr); err != nil {
			r.logHookError("OnTaskDropped", e.name, err)
		}
	}
}

// EmitTaskDeleted notifies all extensions that implement TaskDeleted.
func (r *Registry) EmitTaskDeleted(ctx context.Context, queue, name string) {
	for _, e := range r.taskDeleted {
		if err := e.hook.OnTaskDeleted(ctx, queue, name); err != nil {
			r.logHookError("OnTaskDeleted", e.name, err)
		}
	}
}

// EmitTasksLeased notifies all extensions that implement TasksLeased.
func (r *Registry) EmitTasksLeased(ctx context.Context, queue string, tasks []*task.Task) {
	for _, e := range r.tasksLeased {
		if err := e.hook.OnTasksLeased(ctx, queue, tasks); err != nil {
			r.logHookError("OnTasksLeased", e.name, err)
		}
	}
}

// EmitQueuePurged notifies all extensions that implement QueuePurged.
func (r *Registry) EmitQueuePurged(ctx context.Context, queue string) {
	for _, e := range r.queuePurged {
		if err := e.hook.OnQueuePurged(ctx, queue); err != nil {
			r.logHookError("OnQueuePurged", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
