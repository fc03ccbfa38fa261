// Package push implements push queues: tasks are delivered as HTTP
// requests at or after their ETA, paced by the queue's token bucket and
// concurrency cap, and retried with backoff until they succeed or their
// retry parameters give up.
//
// Each [Queue] owns its tasks and its own lock. A single scheduler
// goroutine per queue waits for the earliest due task and hands it to a
// delivery goroutine, so queues never contend with one another.
//
//	q, err := push.New(def,
//	    push.WithDeliverer(deliver.NewHTTP(nil)),
//	    push.WithLogger(logger),
//	)
//	q.Start(ctx)
//	defer q.Stop(ctx)
//	name, err := q.Add(ctx, &task.Task{URL: "/work"})
//
// A delivery that answers 2xx removes the task. Any other outcome
// consults [backoff.CanRetry]; retriable tasks are rescheduled at
// now + delay, the rest are dropped and reported through the extension
// registry. Deleting a task while its delivery is in flight wins: the
// delivery outcome is discarded.
package push
