// Package queue defines queue configuration and per-queue admission
// control.
//
// A [Definition] is the immutable configuration of one named queue. It is
// built either directly or from an [Entry], the raw queue.yaml record,
// whose Definition method rejects pull queues that set push-only fields:
//
//	bucket := 20
//	def, err := queue.Entry{
//	    Name:       "email",
//	    Rate:       "10/s",
//	    BucketSize: &bucket,
//	}.Definition()
//
// # Limiter
//
// [Limiter] paces deliveries for one push queue. It combines a token-bucket
// rate limiter (golang.org/x/time/rate) with an active-count gate for
// MaxConcurrentRequests.
//
//	l := queue.NewLimiter(def.PerSecond(), def.BucketSize, def.MaxConcurrentRequests)
//	if ok, wait := l.Acquire(time.Now()); ok {
//	    defer l.Release()
//	    // deliver the task
//	} else if wait > 0 {
//	    // rate limited; retry after wait
//	}
package queue
