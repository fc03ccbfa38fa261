package middleware

import (
	"context"

	"github.com/appscale/taskqueue/task"
)

// Handler performs one delivery attempt of the task bound to it.
type Handler func(ctx context.Context) error

// Middleware runs around a delivery attempt. t is a snapshot taken when the
// task was claimed; changes to it are not written back to the queue. A
// middleware that returns without calling next skips the attempt, and its
// error is treated as a delivery failure.
type Middleware func(ctx context.Context, t *task.Task, next Handler) error

// Chain nests mws so that mws[0] sees the attempt first:
//
//	Chain(Recover(l), Tracing(), Timeout(l, d)) // Recover(Tracing(Timeout(next)))
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			h = bind(mws[i], t, h)
		}
		return h(ctx)
	}
}

func bind(mw Middleware, t *task.Task, next Handler) Handler {
	return func(ctx context.Context) error { return mw(ctx, t, next) }
}
