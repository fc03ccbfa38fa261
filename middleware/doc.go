// Package middleware provides composable middleware around push task
// delivery.
//
// A [Middleware] is a function that wraps a single delivery attempt.
// Middleware are composed into a chain using [Chain] and applied to every
// attempt a push queue makes. They are applied right-to-left: the first
// middleware in the slice is the outermost wrapper.
//
//	// logging → recover → deliver
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] logs queue, task, retry count, duration and outcome
//   - [Recover] catches panics and converts them to errors
//   - [Timeout] bounds the attempt with a deadline
//   - [Tracing] wraps the attempt in an OpenTelemetry span
//   - [Metrics] records per-attempt duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, t *task.Task, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting. An error returned from the chain counts as a failed
// attempt and is subject to the queue's retry policy.
package middleware
