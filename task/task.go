package task

import (
	"net/http"
	"regexp"
	"time"

	"github.com/appscale/taskqueue/backoff"
	"github.com/appscale/taskqueue/queue"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,500}$`)

// ValidName reports whether name is a legal task name.
func ValidName(name string) bool { return namePattern.MatchString(name) }

// Task is one unit of work owned by exactly one queue.
//
// For push tasks Method, URL, Header and Body describe the webhook call.
// For pull tasks Body is the opaque payload and Tag an optional grouping
// key. A pull task is leased exactly when its ETA is in the future.
type Task struct {
	Name  string     `json:"name"`
	Queue string     `json:"queue"`
	Mode  queue.Mode `json:"mode"`
	ETA   time.Time  `json:"eta"`

	Method string      `json:"method,omitempty"`
	URL    string      `json:"url,omitempty"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"body,omitempty"`
	Tag    string      `json:"tag,omitempty"`

	// RetryCount is the number of failed deliveries for push tasks and the
	// number of leases for pull tasks.
	RetryCount   int       `json:"retry_count"`
	FirstTriedAt time.Time `json:"first_tried_at,omitempty"`

	// Retry overrides the queue's retry parameters when set.
	Retry *backoff.RetryParameters `json:"retry_parameters,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of t, so that snapshots handed to callers never
// alias queue-owned state.
func (t *Task) Clone() *Task {
	cp := *t
	if t.Header != nil {
		cp.Header = t.Header.Clone()
	}
	if t.Body != nil {
		cp.Body = append([]byte(nil), t.Body...)
	}
	cp.Retry = t.Retry.Clone()
	return &cp
}
