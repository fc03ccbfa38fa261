package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/appscale/taskqueue"
	"github.com/appscale/taskqueue/deliver"
	"github.com/appscale/taskqueue/ext"
	mw "github.com/appscale/taskqueue/middleware"
	"github.com/appscale/taskqueue/observability"
	"github.com/appscale/taskqueue/pull"
	"github.com/appscale/taskqueue/push"
	"github.com/appscale/taskqueue/queue"
	"github.com/appscale/taskqueue/task"
)

const instrumentationName = "github.com/appscale/taskqueue"

// Engine owns every queue and serves the RPC surface.
type Engine struct {
	cfg        taskqueue.Config
	registry   *Registry
	extensions *ext.Registry
	namer      task.Namer
	deliverer  deliver.Deliverer
	mws        []mw.Middleware
	logger     *slog.Logger
	now        func() time.Time

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	pending []ext.Extension
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine-wide limits.
func WithConfig(cfg taskqueue.Config) Option {
	return func(eng *Engine) { eng.cfg = cfg }
}

// WithLogger sets the logger shared by every queue.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithDeliverer sets how push tasks leave the engine: directly over HTTP
// (the default) or handed to a broker.
func WithDeliverer(d deliver.Deliverer) Option {
	return func(eng *Engine) { eng.deliverer = d }
}

// WithMiddleware appends delivery middleware after the built-in stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithExtension registers a lifecycle extension.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.pending = append(eng.pending, e) }
}

// WithClock replaces time.Now for validation, scheduling and leases.
func WithClock(now func() time.Time) Option {
	return func(eng *Engine) { eng.now = now }
}

// WithNamer replaces the engine's task name sequence.
func WithNamer(n task.Namer) Option {
	return func(eng *Engine) { eng.namer = n }
}

// WithTracerProvider sets a custom OTel TracerProvider for delivery spans.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider used by both the
// metrics middleware and the observability extension.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// New builds an engine and its queues from defs.
func New(defs []queue.Definition, opts ...Option) (*Engine, error) {
	eng := &Engine{
		cfg:    taskqueue.DefaultConfig(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(eng)
	}

	eng.extensions = ext.NewRegistry(eng.logger)
	if eng.namer == nil {
		eng.namer = task.NewSequence(0)
	}
	if eng.deliverer == nil {
		eng.deliverer = deliver.NewHTTP(nil)
	}

	var tracingMw, metricsMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
		eng.extensions.Register(observability.NewMetricsExtensionWithMeter(
			eng.meterProvider.Meter(instrumentationName + "/observability")))
	} else {
		metricsMw = mw.Metrics()
		eng.extensions.Register(observability.NewMetricsExtension())
	}
	for _, e := range eng.pending {
		eng.extensions.Register(e)
	}
	eng.pending = nil

	// recover → tracing → metrics → logging → user middleware; the push
	// queue adds the delivery timeout innermost.
	chain := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
	}
	chain = append(chain, eng.mws...)

	registry, err := NewRegistry(defs,
		[]push.Option{
			push.WithConfig(eng.cfg),
			push.WithDeliverer(eng.deliverer),
			push.WithMiddleware(chain...),
			push.WithExtensions(eng.extensions),
			push.WithNamer(eng.namer),
			push.WithLogger(eng.logger),
			push.WithClock(eng.now),
		},
		[]pull.Option{
			pull.WithConfig(eng.cfg),
			pull.WithExtensions(eng.extensions),
			pull.WithNamer(eng.namer),
			pull.WithLogger(eng.logger),
			pull.WithClock(eng.now),
		},
	)
	if err != nil {
		return nil, err
	}
	eng.registry = registry
	return eng, nil
}

// Start launches the scheduler of every push queue.
func (eng *Engine) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, q := range eng.registry.PushQueues() {
		q := q
		g.Go(func() error {
			if err := q.Start(gctx); err != nil {
				return fmt.Errorf("start queue %s: %w", q.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	eng.logger.Info("task queue engine started",
		slog.Int("queues", len(eng.registry.Names())),
	)
	return nil
}

// Stop halts every push scheduler, waiting for in-flight deliveries until
// ctx ends, then notifies Shutdown extensions.
func (eng *Engine) Stop(ctx context.Context) error {
	var g errgroup.Group
	for _, q := range eng.registry.PushQueues() {
		q := q
		g.Go(func() error { return q.Stop(ctx) })
	}
	err := g.Wait()
	if err != nil {
		eng.logger.Warn("task queue engine stopped with error", slog.String("error", err.Error()))
	}
	eng.extensions.EmitShutdown(ctx)
	eng.logger.Info("task queue engine stopped")
	return err
}

// Registry returns the queue registry.
func (eng *Engine) Registry() *Registry { return eng.registry }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Config returns the engine-wide limits.
func (eng *Engine) Config() taskqueue.Config { return eng.cfg }
