package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/appscale/taskqueue"
	"github.com/appscale/taskqueue/pull"
	"github.com/appscale/taskqueue/push"
	"github.com/appscale/taskqueue/queue"
	"github.com/appscale/taskqueue/task"
)

// Queue is the contract shared by push and pull queues.
type Queue interface {
	Name() string
	Definition() queue.Definition
	Add(ctx context.Context, t *task.Task) (string, error)
	Has(name string) bool
	Delete(ctx context.Context, name string) bool
	Flush(ctx context.Context) int
	Stats() queue.Stats
	State() []*task.Task
}

var (
	_ Queue = (*push.Queue)(nil)
	_ Queue = (*pull.Queue)(nil)
)

// Registry maps queue names to queues. It is built once and never
// modified, so lookups need no lock.
type Registry struct {
	queues map[string]Queue
	push   map[string]*push.Queue
	pull   map[string]*pull.Queue
	names  []string
}

// NewRegistry builds one queue per definition, adding the default push
// queue when no definition is named "default".
func NewRegistry(defs []queue.Definition, pushOpts []push.Option, pullOpts []pull.Option) (*Registry, error) {
	r := &Registry{
		queues: make(map[string]Queue, len(defs)+1),
		push:   make(map[string]*push.Queue),
		pull:   make(map[string]*pull.Queue),
	}

	hasDefault := slices.ContainsFunc(defs, func(d queue.Definition) bool {
		return d.Name == queue.DefaultName
	})
	if !hasDefault {
		defs = append(slices.Clone(defs), queue.DefaultDefinition())
	}

	for _, def := range defs {
		if _, dup := r.queues[def.Name]; dup {
			return nil, fmt.Errorf("engine: queue %s defined twice", def.Name)
		}
		switch def.Mode {
		case queue.ModePull:
			q, err := pull.New(def, pullOpts...)
			if err != nil {
				return nil, err
			}
			r.pull[def.Name] = q
			r.queues[def.Name] = q
		default:
			q, err := push.New(def, pushOpts...)
			if err != nil {
				return nil, err
			}
			r.push[def.Name] = q
			r.queues[def.Name] = q
		}
		r.names = append(r.names, def.Name)
	}
	slices.Sort(r.names)
	return r, nil
}

// Lookup returns the named queue.
func (r *Registry) Lookup(name string) (Queue, error) {
	if !queue.ValidName(name) {
		return nil, taskqueue.Errorf(taskqueue.InvalidQueueName, "%q", name)
	}
	q, ok := r.queues[name]
	if !ok {
		return nil, taskqueue.Errorf(taskqueue.UnknownQueue, "%s", name)
	}
	return q, nil
}

// Push returns the named queue, which must be a push queue.
func (r *Registry) Push(name string) (*push.Queue, error) {
	if _, err := r.Lookup(name); err != nil {
		return nil, err
	}
	q, ok := r.push[name]
	if !ok {
		return nil, taskqueue.Errorf(taskqueue.InvalidQueueMode, "queue %s is not a push queue", name)
	}
	return q, nil
}

// Pull returns the named queue, which must be a pull queue.
func (r *Registry) Pull(name string) (*pull.Queue, error) {
	if _, err := r.Lookup(name); err != nil {
		return nil, err
	}
	q, ok := r.pull[name]
	if !ok {
		return nil, taskqueue.Errorf(taskqueue.InvalidQueueMode, "queue %s is not a pull queue", name)
	}
	return q, nil
}

// Names returns every queue name in sorted order.
func (r *Registry) Names() []string { return slices.Clone(r.names) }

// PushQueues returns every push queue in name order.
func (r *Registry) PushQueues() []*push.Queue {
	out := make([]*push.Queue, 0, len(r.push))
	for _, name := range r.names {
		if q, ok := r.push[name]; ok {
			out = append(out, q)
		}
	}
	return out
}
