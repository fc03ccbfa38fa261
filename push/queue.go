package push

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/appscale/taskqueue"
	"github.com/appscale/taskqueue/deliver"
	"github.com/appscale/taskqueue/ext"
	"github.com/appscale/taskqueue/middleware"
	"github.com/appscale/taskqueue/queue"
	"github.com/appscale/taskqueue/task"
)

// record is the queue-owned state of one task. The pointer identity of a
// record tells a finishing delivery whether its task was deleted or
// replaced while it was in flight.
type record struct {
	task     *task.Task
	inFlight bool
}

// Queue is a single push queue. All methods are safe for concurrent use.
type Queue struct {
	def        queue.Definition
	cfg        taskqueue.Config
	limiter    *queue.Limiter
	deliverer  deliver.Deliverer
	middleware []middleware.Middleware
	handler    middleware.Middleware
	extensions *ext.Registry
	namer      task.Namer
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	tasks    map[string]*record
	pending  *task.Index
	paused   bool
	executed []time.Time
	running  bool
	stopped  bool

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithConfig sets the engine-wide limits and target URLs.
func WithConfig(cfg taskqueue.Config) Option {
	return func(q *Queue) { q.cfg = cfg }
}

// WithDeliverer sets where requests are sent. Defaults to deliver.NewHTTP(nil).
func WithDeliverer(d deliver.Deliverer) Option {
	return func(q *Queue) { q.deliverer = d }
}

// WithMiddleware wraps every delivery in mws, outermost first. The
// delivery timeout always runs innermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(q *Queue) { q.middleware = append(q.middleware, mws...) }
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

// WithClock replaces time.Now for ETA and age checks.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New creates a push queue for def. The queue delivers nothing until
// Start is called. A queue with a zero rate starts paused.
func New(def queue.Definition, opts ...Option) (*Queue, error) {
	if def.Mode != queue.ModePush {
		return nil, fmt.Errorf("push: queue %s has mode %q", def.Name, def.Mode)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	def.Retry = def.Retry.WithDefaults()

	q := &Queue{
		def:     def,
		cfg:     taskqueue.DefaultConfig(),
		logger:  slog.Default(),
		now:     time.Now,
		tasks:   make(map[string]*record),
		pending: task.NewIndex(),
		paused:  def.PerSecond() == 0,
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.deliverer == nil {
		q.deliverer = deliver.NewHTTP(nil)
	}
	if q.extensions == nil {
		q.extensions = ext.NewRegistry(q.logger)
	}
	if q.namer == nil {
		q.namer = task.NewSequence(0)
	}
	q.logger = q.logger.With(slog.String("queue", def.Name))
	q.limiter = queue.NewLimiter(def.PerSecond(), def.BucketSize, def.MaxConcurrentRequests)
	q.handler = middleware.Chain(append(slices.Clone(q.middleware),
		middleware.Timeout(q.logger, q.cfg.DeliveryTimeout))...)
	q.ctx, q.cancel = context.WithCancel(context.Background())
	return q, nil
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.def.Name }

// Definition returns the queue configuration.
func (q *Queue) Definition() queue.Definition { return q.def }

// Add stores a copy of t and schedules it at t.ETA, or now when the ETA is
// zero. A task without a name is given a generated one, and task retry
// parameters without a backoff curve get the default one. Add returns the
// name the task was stored under.
func (q *Queue) Add(ctx context.Context, t *task.Task) (string, error) {
	if t.Mode != "" && t.Mode != queue.ModePush {
		return "", taskqueue.Errorf(taskqueue.InvalidQueueMode,
			"queue %s is a push queue", q.def.Name)
	}
	if err := t.Retry.Validate(); err != nil {
		return "", taskqueue.Errorf(taskqueue.InvalidRequest, "task %s: %v", t.Name, err)
	}

	q.mu.Lock()
	now := q.now()
	stored := t.Clone()
	if stored.Name == "" {
		stored.Name = task.ChooseName(q.namer, q.has)
	} else if q.has(stored.Name) {
		q.mu.Unlock()
		return "", taskqueue.Errorf(taskqueue.TaskAlreadyExists, "task %s", stored.Name)
	}
	stored.Queue = q.def.Name
	stored.Mode = queue.ModePush
	stored.Retry = stored.Retry.WithDefaults()
	if stored.Method == "" {
		stored.Method = "POST"
	}
	if stored.ETA.IsZero() {
		stored.ETA = now
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	q.tasks[stored.Name] = &record{task: stored}
	q.pending.Set(stored.Name, stored.ETA)
	snap := stored.Clone()
	q.mu.Unlock()

	q.signal()
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

// Delete removes the named task and reports whether it existed. A
// delivery already in flight for the task completes but has no effect.
func (q *Queue) Delete(ctx context.Context, name string) bool {
	q.mu.Lock()
	_, ok := q.tasks[name]
	if ok {
		delete(q.tasks, name)
		q.pending.Remove(name)
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
	q.tasks = make(map[string]*record)
	q.pending.Clear()
	q.mu.Unlock()

	q.logger.Info("queue flushed", slog.Int("tasks", n))
	q.extensions.EmitQueuePurged(ctx, q.def.Name)
	return n
}

// Pause suspends scheduled deliveries. Tasks can still be added.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
	q.logger.Info("queue paused")
}

// Resume restarts scheduled deliveries. A queue whose rate is zero cannot
// be resumed until SetRate gives it one.
func (q *Queue) Resume() error {
	if q.limiter.Rate() == 0 {
		return taskqueue.Errorf(taskqueue.QueuePaused, "queue %s has a zero rate", q.def.Name)
	}
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.logger.Info("queue resumed")
	q.signal()
	return nil
}

// SetRate replaces the queue's token bucket. A zero rate pauses the queue.
func (q *Queue) SetRate(perSecond float64, bucketSize int) error {
	if perSecond < 0 || bucketSize < 0 {
		return taskqueue.Errorf(taskqueue.InvalidQueueRate,
			"rate %v bucket %d", perSecond, bucketSize)
	}
	if bucketSize == 0 {
		bucketSize = q.def.BucketSize
	}
	q.limiter.SetRate(perSecond, bucketSize)
	if perSecond == 0 {
		q.Pause()
	}
	q.logger.Info("queue rate changed",
		slog.Float64("rate", perSecond),
		slog.Int("bucket_size", bucketSize),
	)
	q.signal()
	return nil
}

// Stats returns the queue's current statistics.
func (q *Queue) Stats() queue.Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := queue.Stats{
		Queue: q.def.Name,
		Mode:  queue.ModePush,
		Tasks: len(q.tasks),
		Scanner: &queue.ScannerInfo{
			ExecutedLastMinute: q.executedSince(q.now()),
			RequestsInFlight:   q.limiter.Active(),
			EnforcedRate:       q.limiter.Rate(),
			Paused:             q.paused,
		},
	}
	for _, rec := range q.tasks {
		if s.OldestETA.IsZero() || rec.task.ETA.Before(s.OldestETA) {
			s.OldestETA = rec.task.ETA
		}
	}
	return s
}

// State returns copies of every task, ordered by ETA and then name.
func (q *Queue) State() []*task.Task {
	q.mu.Lock()
	out := make([]*task.Task, 0, len(q.tasks))
	for _, rec := range q.tasks {
		out = append(out, rec.task.Clone())
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

// executedSince prunes the execution log to the stats window ending at now
// and returns its length. Callers hold q.mu.
func (q *Queue) executedSince(now time.Time) int {
	cutoff := now.Add(-q.cfg.StatsWindow)
	i := 0
	for i < len(q.executed) && !q.executed[i].After(cutoff) {
		i++
	}
	q.executed = q.executed[i:]
	return len(q.executed)
}

// signal wakes the scheduler without blocking.
func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
