// Package engine wires the queue subsystems together and exposes the task
// queue's RPC surface.
//
// An [Engine] is built from the queue definitions produced by the config
// loader. It owns the [Registry] of named queues, validates every Add
// before any queue state changes, routes calls to the owning push or pull
// queue, and starts and stops the push schedulers.
//
// # Building an Engine
//
//	eng, err := engine.New(defs,
//	    engine.WithConfig(cfg),
//	    engine.WithLogger(logger),
//	    engine.WithDeliverer(deliver.NewHTTP(nil)),
//	    engine.WithExtension(myExtension),
//	)
//	if err := eng.Start(ctx); err != nil { ... }
//	defer eng.Stop(ctx)
//
// A queue named "default" always exists; when the definitions lack one a
// push queue at 5/s with a bucket of 5 is synthesized.
//
// # RPC surface
//
//   - [Engine.Add] and [Engine.BulkAdd] enqueue tasks
//   - [Engine.Delete] removes tasks by name
//   - [Engine.QueryAndOwnTasks] leases pull tasks
//   - [Engine.ModifyTaskLease] renews or releases a lease
//   - [Engine.FetchQueueStats] and [Engine.PurgeQueue]
//
// Every client-visible failure is a *taskqueue.Error whose code can be
// read with taskqueue.CodeOf.
package engine
