// Package taskqueue is an in-process task queue engine modelled on the App
// Engine Task Queue service. It offers push queues, which deliver tasks as
// HTTP webhooks at their ETA with rate limiting, admission control and
// retry with backoff, and pull queues, whose tasks are leased, renewed and
// deleted explicitly by workers.
//
// The root package holds the result-code enumeration shared by every
// operation and the engine-wide Config. The engine package wires queues
// together:
//
//	eng, err := engine.New(defs,
//	    engine.WithConfig(taskqueue.DefaultConfig()),
//	    engine.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := eng.Start(ctx); err != nil { ... }
//	name, err := eng.Add(ctx, engine.AddRequest{Queue: "default", URL: "/work"})
//
// # Architecture
//
// Each queue owns its task set behind its own lock; queues never share
// tasks or locks. Push queues keep a min-heap of pending tasks keyed by ETA
// and run one scheduler goroutine that hands matured tasks to delivery
// workers once the queue's token bucket and concurrency gate admit them.
// Pull queues represent a lease as an ETA in the future.
//
// All queue state lives in memory and is lost when the process exits.
package taskqueue
