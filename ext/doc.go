// Package ext defines the extension system for the task queue engine.
//
// Extensions are notified of task lifecycle events and can react to them,
// for example by recording metrics or writing audit logs. Each lifecycle
// hook is a separate interface so extensions opt in only to the events
// they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnTaskDelivered(ctx context.Context, t *task.Task, elapsed time.Duration) error {
//	    log.Printf("task %s delivered in %s", t.Name, elapsed)
//	    return nil
//	}
//
// # Hooks
//
//   - [TaskAdded]: a task was accepted into a queue
//   - [TaskDelivered]: a push task was delivered and removed
//   - [TaskRetrying]: a push delivery failed and was rescheduled
//   - [TaskDropped]: a push task exhausted its retry policy
//   - [TaskDeleted]: a task was deleted by a caller
//   - [TasksLeased]: a pull worker leased tasks
//   - [QueuePurged]: every task of a queue was removed
//   - [Shutdown]: the engine is stopping
//
// Push hooks fire from delivery goroutines, so extensions must be safe for
// concurrent use. Hook errors are logged and never affect the queue.
package ext
