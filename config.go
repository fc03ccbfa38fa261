package taskqueue

import "time"

// Config holds engine-wide limits and delivery settings shared by every
// queue.
type Config struct {
	// BaseURL is prepended to a push task's relative URL when the queue
	// has no target, or its target has no entry in Targets.
	BaseURL string

	// Targets maps a queue routing target to the base URL serving it.
	Targets map[string]string

	// DeliveryTimeout bounds every outbound webhook call.
	DeliveryTimeout time.Duration

	// MaxETA is how far in the future a task ETA may be set.
	MaxETA time.Duration

	// MaxLease is the longest lease a pull worker may request.
	MaxLease time.Duration

	// MaxLeaseCount caps how many tasks one lease call may return.
	MaxLeaseCount int

	// MaxURLLength caps the length of a push task's relative URL.
	MaxURLLength int

	// MaxTaskSize caps the payload size of a single task in bytes.
	MaxTaskSize int

	// MaxBulkAdd caps how many tasks one BulkAdd call may carry.
	MaxBulkAdd int

	// StatsWindow is the period covered by ExecutedLastMinute in push
	// queue stats.
	StatsWindow time.Duration
}

// DefaultConfig returns a Config with the App Engine defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:8080",
		DeliveryTimeout: 10 * time.Minute,
		MaxETA:          30 * 24 * time.Hour,
		MaxLease:        7 * 24 * time.Hour,
		MaxLeaseCount:   1000,
		MaxURLLength:    2083,
		MaxTaskSize:     100 * 1024,
		MaxBulkAdd:      100,
		StatsWindow:     time.Minute,
	}
}

// TargetURL returns the base URL for a routing target.
func (c Config) TargetURL(target string) string {
	if target != "" {
		if u, ok := c.Targets[target]; ok {
			return u
		}
	}
	return c.BaseURL
}
