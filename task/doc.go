// Package task defines the unit of work held by a queue, the ETA-ordered
// index queues use to find their next task, and task name generation.
package task
