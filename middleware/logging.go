package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/appscale/taskqueue/task"
)

// Logging returns middleware that logs each delivery attempt. Successful
// attempts are logged at Debug, failures at Info since the queue will
// usually retry them.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) error {
		logger.Debug("delivering task",
			slog.String("queue", t.Queue),
			slog.String("task", t.Name),
			slog.String("url", t.URL),
			slog.Int("retry_count", t.RetryCount),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Info("task delivery failed",
				slog.String("queue", t.Queue),
				slog.String("task", t.Name),
				slog.Int("retry_count", t.RetryCount),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("task delivered",
				slog.String("queue", t.Queue),
				slog.String("task", t.Name),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
