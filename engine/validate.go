package engine

import (
	"net/http"
	"strings"
	"time"

	"github.com/appscale/taskqueue"
	"github.com/appscale/taskqueue/backoff"
	"github.com/appscale/taskqueue/queue"
	"github.com/appscale/taskqueue/task"
)

// AddRequest describes one task to enqueue.
type AddRequest struct {
	Queue string `json:"queue_name"`

	// Name is optional; an empty name is generated.
	Name string `json:"task_name,omitempty"`

	// ETA is when the task becomes due. Zero means now.
	ETA time.Time `json:"eta,omitzero"`

	// Mode, when set, must match the queue's mode.
	Mode queue.Mode `json:"mode,omitempty"`

	Method string      `json:"method,omitempty"`
	URL    string      `json:"url,omitempty"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"body,omitempty"`
	Tag    string      `json:"tag,omitempty"`

	Retry *backoff.RetryParameters `json:"retry_parameters,omitempty"`
}

func (r AddRequest) task() *task.Task {
	return &task.Task{
		Name:   r.Name,
		Queue:  r.Queue,
		ETA:    r.ETA,
		Method: strings.ToUpper(r.Method),
		URL:    r.URL,
		Header: r.Header,
		Body:   r.Body,
		Tag:    r.Tag,
		Retry:  r.Retry,
	}
}

var pushMethods = map[string]bool{
	"":       true,
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"DELETE": true,
	"HEAD":   true,
	"PATCH":  true,
}

// validateAdd checks req against the registry and engine limits without
// touching queue state, and returns the queue it targets.
func (eng *Engine) validateAdd(req AddRequest, now time.Time) (Queue, error) {
	if req.Name != "" && !task.ValidName(req.Name) {
		return nil, taskqueue.Errorf(taskqueue.InvalidTaskName, "%q", req.Name)
	}
	q, err := eng.registry.Lookup(req.Queue)
	if err != nil {
		return nil, err
	}
	def := q.Definition()
	if req.Mode != "" && req.Mode != def.Mode {
		return nil, taskqueue.Errorf(taskqueue.InvalidQueueMode,
			"queue %s is a %s queue", def.Name, def.Mode)
	}
	if len(req.Body) > eng.cfg.MaxTaskSize {
		return nil, taskqueue.Errorf(taskqueue.TaskTooLarge,
			"%d bytes exceeds %d", len(req.Body), eng.cfg.MaxTaskSize)
	}
	if !req.ETA.IsZero() {
		if req.ETA.Before(time.Unix(0, 0)) {
			return nil, taskqueue.Errorf(taskqueue.InvalidETA, "eta before the epoch")
		}
		if req.ETA.Sub(now) > eng.cfg.MaxETA {
			return nil, taskqueue.Errorf(taskqueue.InvalidETA,
				"eta more than %v in the future", eng.cfg.MaxETA)
		}
	}

	if err := req.Retry.Validate(); err != nil {
		return nil, taskqueue.Errorf(taskqueue.InvalidRequest, "retry parameters: %v", err)
	}

	switch def.Mode {
	case queue.ModePull:
		if len(req.Body) == 0 {
			return nil, taskqueue.Errorf(taskqueue.InvalidRequest, "pull task needs a payload")
		}
	default:
		switch {
		case req.URL == "":
			return nil, taskqueue.Errorf(taskqueue.InvalidURL, "url is empty")
		case !strings.HasPrefix(req.URL, "/"):
			return nil, taskqueue.Errorf(taskqueue.InvalidURL, "url %q must start with /", req.URL)
		case len(req.URL) > eng.cfg.MaxURLLength:
			return nil, taskqueue.Errorf(taskqueue.InvalidURL,
				"url longer than %d", eng.cfg.MaxURLLength)
		}
		if !pushMethods[strings.ToUpper(req.Method)] {
			return nil, taskqueue.Errorf(taskqueue.InvalidRequest, "method %q", req.Method)
		}
	}
	return q, nil
}
