// Package pull implements pull queues: tasks sit in the queue until a
// worker leases them, and a leased task is invisible to other workers
// until its lease runs out.
//
// A pull task is leased exactly when its ETA lies in the future; leasing
// moves the ETA to now + lease, so an expired lease makes the task
// available again without any sweeper. Leases can be narrowed to one tag,
// or to the tag of the earliest available task:
//
//	tasks, err := q.Lease(ctx, pull.LeaseOptions{
//	    Lease:      time.Minute,
//	    Max:        10,
//	    GroupByTag: true,
//	})
//	for _, t := range tasks {
//	    // process, then delete or extend with ModifyLease(ctx, t.Name, t.ETA, d)
//	}
package pull
