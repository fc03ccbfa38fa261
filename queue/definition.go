package queue

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/appscale/taskqueue/backoff"
)

// Mode selects how a queue hands out its tasks.
type Mode string

const (
	// ModePush delivers tasks as HTTP requests at their ETA.
	ModePush Mode = "push"
	// ModePull keeps tasks until a worker leases them.
	ModePull Mode = "pull"
)

// DefaultName is the queue that always exists.
const DefaultName = "default"

// Default push queue pacing.
const (
	DefaultRate       = 5
	DefaultBucketSize = 5
)

var (
	namePattern   = regexp.MustCompile(`^[a-zA-Z0-9-]{1,100}$`)
	targetPattern = regexp.MustCompile(`^[a-z0-9\-.]{1,100}$`)
)

// ValidName reports whether name is a legal queue name.
func ValidName(name string) bool { return namePattern.MatchString(name) }

// Definition is the configuration of one named queue. It is created once at
// startup and never modified.
type Definition struct {
	Name string `json:"name"`
	Mode Mode   `json:"mode"`

	// Rate tasks are released per RateUnit. Push only.
	Rate     float64       `json:"rate,omitempty"`
	RateUnit time.Duration `json:"rate_unit,omitempty"`

	// BucketSize is the token-bucket burst capacity. Push only.
	BucketSize int `json:"bucket_size,omitempty"`

	// MaxConcurrentRequests caps in-flight deliveries; zero means no cap.
	// Push only.
	MaxConcurrentRequests int `json:"max_concurrent_requests,omitempty"`

	// Retry holds the queue's retry policy. For pull queues only
	// RetryLimit may be set and it bounds how often a task can be leased.
	Retry *backoff.RetryParameters `json:"retry_parameters,omitempty"`

	// Target is the routing target push deliveries are sent to.
	Target string `json:"target,omitempty"`

	// ACL lists the accounts allowed to lease from the queue. It is kept
	// from queue.yaml and reported by queue listings; the engine does not
	// authenticate callers, so it is never checked.
	ACL []string `json:"acl,omitempty"`
}

// DefaultDefinition returns the push queue synthesized when no queue named
// "default" is configured.
func DefaultDefinition() Definition {
	return Definition{
		Name:       DefaultName,
		Mode:       ModePush,
		Rate:       DefaultRate,
		RateUnit:   time.Second,
		BucketSize: DefaultBucketSize,
	}
}

// PerSecond returns the configured rate normalized to tasks per second.
func (d Definition) PerSecond() float64 {
	if d.Rate <= 0 {
		return 0
	}
	unit := d.RateUnit
	if unit <= 0 {
		unit = time.Second
	}
	return d.Rate / unit.Seconds()
}

// Validate checks the definition for configuration errors. Pull queues must
// leave every push-only field unset.
func (d Definition) Validate() error {
	if !ValidName(d.Name) {
		return fmt.Errorf("queue: invalid queue name %q", d.Name)
	}
	if d.Target != "" && !targetPattern.MatchString(d.Target) {
		return fmt.Errorf("queue %s: invalid target %q", d.Name, d.Target)
	}
	switch d.Mode {
	case ModePush:
		return d.validatePush()
	case ModePull:
		return d.validatePull()
	default:
		return fmt.Errorf("queue %s: unknown mode %q", d.Name, d.Mode)
	}
}

func (d Definition) validatePush() error {
	var errs []error
	if d.Rate < 0 {
		errs = append(errs, errors.New("rate must not be negative"))
	}
	if d.BucketSize < 0 {
		errs = append(errs, errors.New("bucket size must not be negative"))
	}
	if d.MaxConcurrentRequests < 0 {
		errs = append(errs, errors.New("max concurrent requests must not be negative"))
	}
	if err := d.Retry.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("queue %s: %w", d.Name, err)
	}
	return nil
}

func (d Definition) validatePull() error {
	var set []string
	if d.Rate != 0 {
		set = append(set, "rate")
	}
	if d.BucketSize != 0 {
		set = append(set, "bucket_size")
	}
	if d.MaxConcurrentRequests != 0 {
		set = append(set, "max_concurrent_requests")
	}
	if r := d.Retry; r != nil {
		if r.AgeLimitSec != nil {
			set = append(set, "task_age_limit")
		}
		if r.MinBackoffSec != 0 {
			set = append(set, "min_backoff_seconds")
		}
		if r.MaxBackoffSec != 0 {
			set = append(set, "max_backoff_seconds")
		}
		if r.MaxDoublings != 0 {
			set = append(set, "max_doublings")
		}
		if r.RetryLimit != nil && *r.RetryLimit < 0 {
			return fmt.Errorf("queue %s: retry limit must not be negative", d.Name)
		}
	}
	if len(set) > 0 {
		return fmt.Errorf("queue %s: pull queues cannot set %v", d.Name, set)
	}
	return nil
}
