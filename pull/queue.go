package pull

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/appscale/taskqueue"
	"github.com/appscale/taskqueue/ext"
	"github.com/appscale/taskqueue/queue"
	"github.com/appscale/taskqueue/task"
)

// Queue is a single pull queue. All methods are safe for concurrent use.
type Queue struct {
	def        queue.Definition
	cfg        taskqueue.Config
	extensions *ext.Registry
	namer      task.Namer
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	tasks map[string]*task.Task
	index *task.Index
	byTag map[string]*task.Index
}

// Option configures a Queue.
type Option func(*Queue)

// WithConfig sets the engine-wide lease limits.
func WithConfig(cfg taskqueue.Config) Option {
	return func(q *Queue) { q.cfg = cfg }
}

// WithExtensions sets the registry notified of lifecycle events.
func WithExtensions(r *ext.Registry) Option {
	return func(q *Queue) { q.extensions = r }
}

// WithNamer sets the generator for tasks added without a name.
func WithNamer(n task.Namer) Option {
	return func(q *Queue) { q.namer = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithClock replaces time.Now for lease arithmetic.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New creates a pull queue for def.
func New(def queue.Definition, opts ...Option) (*Queue, error) {
	if def.Mode != queue.ModePull {
		return nil, fmt.Errorf("pull: queue %s has mode %q", def.Name, def.Mode)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	q := &Queue{
		def:    def,
		cfg:    taskqueue.DefaultConfig(),
		logger: slog.Default(),
		now:    time.Now,
		tasks:  make(map[string]*task.Task),
		index:  task.NewIndex(),
		byTag:  make(map[string]*task.Index),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.extensions == nil {
		q.extensions = ext.NewRegistry(q.logger)
	}
	if q.namer == nil {
		q.namer = task.NewSequence(0)
	}
	q.logger = q.logger.With(slog.String("queue", def.Name))
	return q, nil
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.def.Name }

// Definition returns the queue configuration.
func (q *Queue) Definition() queue.Definition { return q.def }

// clock returns now at the microsecond precision ETAs are exchanged in.
func (q *Queue) clock() time.Time { return q.now().Truncate(time.Microsecond) }

// Add stores a copy of t, available from t.ETA or immediately when the ETA
// is zero, and returns the name it was stored under.
func (q *Queue) Add(ctx context.Context, t *task.Task) (string, error) {
	if t.Mode != "" && t.Mode != queue.ModePull {
		return "", taskqueue.Errorf(taskqueue.InvalidQueueMode,
			"queue %s is a pull queue", q.def.Name)
	}

	q.mu.Lock()
	stored := t.Clone()
	if stored.Name == "" {
		stored.Name = task.ChooseName(q.namer, q.has)
	} else if q.has(stored.Name) {
		q.mu.Unlock()
		return "", taskqueue.Errorf(taskqueue.TaskAlreadyExists, "task %s", stored.Name)
	}
	now := q.clock()
	stored.Queue = q.def.Name
	stored.Mode = queue.ModePull
	if stored.ETA.IsZero() {
		stored.ETA = now
	}
	stored.ETA = stored.ETA.Truncate(time.Microsecond)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	q.tasks[stored.Name] = stored
	q.reindex(stored)
	snap := stored.Clone()
	q.mu.Unlock()

	q.extensions.EmitTaskAdded(ctx, snap)
	return snap.Name, nil
}

// Has reports whether the queue holds a task called name.
func (q *Queue) Has(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.has(name)
}

func (q *Queue) has(name string) bool {
	_, ok := q.tasks[name]
	return ok
}

// Delete removes the named task, leased or not, and reports whether it
// existed.
func (q *Queue) Delete(ctx context.Context, name string) bool {
	q.mu.Lock()
	t, ok := q.tasks[name]
	if ok {
		q.unindex(t)
		delete(q.tasks, name)
	}
	q.mu.Unlock()

	if ok {
		q.extensions.EmitTaskDeleted(ctx, q.def.Name, name)
	}
	return ok
}

// Flush removes every task and returns how many were removed.
func (q *Queue) Flush(ctx context.Context) int {
	q.mu.Lock()
	n := len(q.tasks)
	q.tasks = make(map[string]*task.Task)
	q.index.Clear()
	q.byTag = make(map[string]*task.Index)
	q.mu.Unlock()

	q.logger.Info("queue flushed", slog.Int("tasks", n))
	q.extensions.EmitQueuePurged(ctx, q.def.Name)
	return n
}

// Stats returns the queue's current statistics. Tasks whose ETA is in the
// future count as leased.
func (q *Queue) Stats() queue.Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock()
	s := queue.Stats{Queue: q.def.Name, Mode: queue.ModePull, Tasks: len(q.tasks)}
	for _, t := range q.tasks {
		if s.OldestETA.IsZero() || t.ETA.Before(s.OldestETA) {
			s.OldestETA = t.ETA
		}
		if t.ETA.After(now) {
			s.Leased++
		}
	}
	return s
}

// State returns copies of every task, ordered by ETA and then name.
func (q *Queue) State() []*task.Task {
	q.mu.Lock()
	out := make([]*task.Task, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.Clone())
	}
	q.mu.Unlock()

	slices.SortFunc(out, func(a, b *task.Task) int {
		if c := a.ETA.Compare(b.ETA); c != 0 {
			return c
		}
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out
}

// reindex records t's current ETA in the main and tag indexes. Callers
// hold q.mu.
func (q *Queue) reindex(t *task.Task) {
	q.index.Set(t.Name, t.ETA)
	x, ok := q.byTag[t.Tag]
	if !ok {
		x = task.NewIndex()
		q.byTag[t.Tag] = x
	}
	x.Set(t.Name, t.ETA)
}

// unindex drops t from both indexes. Callers hold q.mu.
func (q *Queue) unindex(t *task.Task) {
	q.index.Remove(t.Name)
	if x, ok := q.byTag[t.Tag]; ok {
		x.Remove(t.Name)
		if x.Len() == 0 {
			delete(q.byTag, t.Tag)
		}
	}
}
