// Command taskqueued serves the task queue engine over HTTP.
//
//	taskqueued -config /etc/appscale/taskqueue.yaml
//
// Every setting can be overridden from the environment with the
// TASKQUEUE_ prefix, e.g. TASKQUEUE_LISTEN=:9000 or
// TASKQUEUE_DELIVERY_MODE=broker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/appscale/taskqueue/api"
	"github.com/appscale/taskqueue/deliver"
	"github.com/appscale/taskqueue/engine"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML, JSON or TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "taskqueued:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	defs, err := cfg.definitions()
	if err != nil {
		return err
	}

	deliverer, closeDeliverer, err := newDeliverer(cfg.Delivery, logger)
	if err != nil {
		return err
	}
	defer closeDeliverer()

	eng, err := engine.New(defs,
		engine.WithConfig(cfg.engineConfig()),
		engine.WithLogger(logger),
		engine.WithDeliverer(deliverer),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           otelhttp.NewHandler(api.New(eng, logger).Handler(), "taskqueued"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("taskqueued listening",
			slog.String("addr", cfg.Listen),
			slog.Int("queues", len(eng.Registry().Names())),
			slog.String("delivery", cfg.Delivery.Mode),
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("taskqueued shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), eng.Stop(shutdownCtx))
	})
	return g.Wait()
}

// newDeliverer builds the push delivery strategy and a function releasing
// its resources.
func newDeliverer(c deliveryConfig, logger *slog.Logger) (deliver.Deliverer, func(), error) {
	if c.Mode != deliveryBroker {
		return deliver.NewHTTP(nil), func() {}, nil
	}

	client := goredis.NewClient(&goredis.Options{Addr: c.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", c.RedisAddr, err)
	}

	var opts []deliver.BrokerOption
	if c.KeyPrefix != "" {
		opts = append(opts, deliver.WithKeyPrefix(c.KeyPrefix))
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("close redis client", slog.String("error", err.Error()))
		}
	}
	return deliver.NewBroker(client, opts...), closeFn, nil
}
