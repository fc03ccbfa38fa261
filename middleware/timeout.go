package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/appscale/taskqueue/task"
)

// DefaultTimeout is used when Timeout is given a non-positive duration, so
// that no delivery ever runs unbounded.
const DefaultTimeout = 10 * time.Minute

// Timeout returns middleware that bounds every delivery attempt with a
// deadline of d. When the deadline is exceeded the context is cancelled
// and the attempt fails with context.DeadlineExceeded.
func Timeout(logger *slog.Logger, d time.Duration) Middleware {
	if d <= 0 {
		d = DefaultTimeout
	}
	return func(ctx context.Context, t *task.Task, next Handler) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		err := next(ctx)
		if err != nil && ctx.Err() == context.DeadlineExceeded {
			logger.Warn("task delivery timed out",
				slog.String("queue", t.Queue),
				slog.String("task", t.Name),
				slog.Duration("timeout", d),
			)
		}
		return err
	}
}
