package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/appscale/taskqueue/task"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("task delivery panicked",
					slog.String("queue", t.Queue),
					slog.String("task", t.Name),
					slog.Int("retry_count", t.RetryCount),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic delivering task %s/%s: %v", t.Queue, t.Name, r)
			}
		}()
		return next(ctx)
	}
}
