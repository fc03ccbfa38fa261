package queue

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/appscale/taskqueue/backoff"
)

var (
	ratePattern     = regexp.MustCompile(`^([0-9]+(\.[0-9]+)?)/([smhd])$`)
	agePattern      = regexp.MustCompile(`^([0-9]+(\.[0-9]*)?[smhd])+$`)
	ageComponentRex = regexp.MustCompile(`([0-9]+(?:\.[0-9]*)?)([smhd])`)
)

var units = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// Entry is one queue record as it appears in queue.yaml. Optional fields
// are pointers so that a pull queue setting a push-only field can be
// told apart from one leaving it at its zero value.
type Entry struct {
	Name                  string      `mapstructure:"name"`
	Mode                  string      `mapstructure:"mode"`
	Rate                  string      `mapstructure:"rate"`
	BucketSize            *int        `mapstructure:"bucket_size"`
	MaxConcurrentRequests *int        `mapstructure:"max_concurrent_requests"`
	Target                string      `mapstructure:"target"`
	ACL                   []string    `mapstructure:"acl"`
	RetryParameters       *RetryEntry `mapstructure:"retry_parameters"`
}

// RetryEntry is the retry_parameters block of a queue.yaml record.
type RetryEntry struct {
	TaskRetryLimit    *int     `mapstructure:"task_retry_limit"`
	TaskAgeLimit      string   `mapstructure:"task_age_limit"`
	MinBackoffSeconds *float64 `mapstructure:"min_backoff_seconds"`
	MaxBackoffSeconds *float64 `mapstructure:"max_backoff_seconds"`
	MaxDoublings      *int     `mapstructure:"max_doublings"`
}

// Definition converts the record into a validated Definition. Push queues
// without a rate get 5/s with a bucket of 5.
func (e Entry) Definition() (Definition, error) {
	d := Definition{
		Name:   e.Name,
		Mode:   Mode(strings.ToLower(e.Mode)),
		Target: e.Target,
		ACL:    e.ACL,
	}
	if d.Mode == "" {
		d.Mode = ModePush
	}

	if d.Mode == ModePull {
		if err := e.checkPull(); err != nil {
			return Definition{}, err
		}
		if r := e.RetryParameters; r != nil && r.TaskRetryLimit != nil {
			limit := *r.TaskRetryLimit
			d.Retry = &backoff.RetryParameters{RetryLimit: &limit}
		}
		return d, d.Validate()
	}

	d.Rate, d.RateUnit = DefaultRate, time.Second
	if e.Rate != "" {
		r, unit, err := ParseRate(e.Rate)
		if err != nil {
			return Definition{}, fmt.Errorf("queue %s: %w", e.Name, err)
		}
		d.Rate, d.RateUnit = r, unit
	}
	d.BucketSize = DefaultBucketSize
	if e.BucketSize != nil {
		d.BucketSize = *e.BucketSize
	}
	if e.MaxConcurrentRequests != nil {
		d.MaxConcurrentRequests = *e.MaxConcurrentRequests
	}
	if r := e.RetryParameters; r != nil {
		p, err := r.parameters()
		if err != nil {
			return Definition{}, fmt.Errorf("queue %s: %w", e.Name, err)
		}
		d.Retry = p
	}
	return d, d.Validate()
}

// checkPull rejects push-only settings on a pull queue record.
func (e Entry) checkPull() error {
	var set []string
	if e.Rate != "" {
		set = append(set, "rate")
	}
	if e.BucketSize != nil {
		set = append(set, "bucket_size")
	}
	if e.MaxConcurrentRequests != nil {
		set = append(set, "max_concurrent_requests")
	}
	if r := e.RetryParameters; r != nil {
		if r.TaskAgeLimit != "" {
			set = append(set, "task_age_limit")
		}
		if r.MinBackoffSeconds != nil {
			set = append(set, "min_backoff_seconds")
		}
		if r.MaxBackoffSeconds != nil {
			set = append(set, "max_backoff_seconds")
		}
		if r.MaxDoublings != nil {
			set = append(set, "max_doublings")
		}
	}
	if len(set) > 0 {
		return fmt.Errorf("queue %s: pull queues cannot set %v", e.Name, set)
	}
	return nil
}

func (r RetryEntry) parameters() (*backoff.RetryParameters, error) {
	p := backoff.NewRetryParameters()
	if r.TaskRetryLimit != nil {
		limit := *r.TaskRetryLimit
		p.RetryLimit = &limit
	}
	if r.TaskAgeLimit != "" {
		age, err := ParseAge(r.TaskAgeLimit)
		if err != nil {
			return nil, err
		}
		sec := int64(age / time.Second)
		p.AgeLimitSec = &sec
	}
	if r.MinBackoffSeconds != nil {
		p.MinBackoffSec = *r.MinBackoffSeconds
	}
	if r.MaxBackoffSeconds != nil {
		p.MaxBackoffSec = *r.MaxBackoffSeconds
	}
	if r.MaxDoublings != nil {
		p.MaxDoublings = *r.MaxDoublings
	}
	return p, nil
}

// ParseRate parses a queue rate such as "5/s" or "1.5/m". The literal "0"
// is a zero rate.
func ParseRate(s string) (float64, time.Duration, error) {
	if s == "0" {
		return 0, time.Second, nil
	}
	m := ratePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid rate %q", s)
	}
	r, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	return r, units[m[3]], nil
}

// ParseAge parses a task age limit such as "2d", "30s" or "1d12h".
func ParseAge(s string) (time.Duration, error) {
	if !agePattern.MatchString(s) {
		return 0, fmt.Errorf("invalid age limit %q", s)
	}
	var total time.Duration
	for _, m := range ageComponentRex.FindAllStringSubmatch(s, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid age limit %q: %w", s, err)
		}
		total += time.Duration(v * float64(units[m[2]]))
	}
	return total, nil
}
