package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/appscale/taskqueue"
	"github.com/appscale/taskqueue/queue"
)

// envPrefix namespaces environment overrides, e.g. TASKQUEUE_LISTEN.
const envPrefix = "TASKQUEUE"

// Delivery strategies.
const (
	deliveryHTTP   = "http"
	deliveryBroker = "broker"
)

type config struct {
	Listen          string         `mapstructure:"listen"`
	ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout"`
	Log             logConfig      `mapstructure:"log"`
	Engine          engineConfig   `mapstructure:"engine"`
	Delivery        deliveryConfig `mapstructure:"delivery"`
	Queues          []queue.Entry  `mapstructure:"queues"`
}

type logConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type engineConfig struct {
	BaseURL         string            `mapstructure:"base_url"`
	Targets         map[string]string `mapstructure:"targets"`
	DeliveryTimeout time.Duration     `mapstructure:"delivery_timeout"`
	MaxETA          time.Duration     `mapstructure:"max_eta"`
	MaxLease        time.Duration     `mapstructure:"max_lease"`
	MaxLeaseCount   int               `mapstructure:"max_lease_count"`
	MaxURLLength    int               `mapstructure:"max_url_length"`
	MaxTaskSize     int               `mapstructure:"max_task_size"`
	MaxBulkAdd      int               `mapstructure:"max_bulk_add"`
	StatsWindow     time.Duration     `mapstructure:"stats_window"`
}

type deliveryConfig struct {
	Mode      string `mapstructure:"mode"`
	RedisAddr string `mapstructure:"redis_addr"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func setDefaults(v *viper.Viper) {
	d := taskqueue.DefaultConfig()
	v.SetDefault("listen", ":8081")
	v.SetDefault("shutdown_timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("engine.base_url", d.BaseURL)
	v.SetDefault("engine.delivery_timeout", d.DeliveryTimeout)
	v.SetDefault("engine.max_eta", d.MaxETA)
	v.SetDefault("engine.max_lease", d.MaxLease)
	v.SetDefault("engine.max_lease_count", d.MaxLeaseCount)
	v.SetDefault("engine.max_url_length", d.MaxURLLength)
	v.SetDefault("engine.max_task_size", d.MaxTaskSize)
	v.SetDefault("engine.max_bulk_add", d.MaxBulkAdd)
	v.SetDefault("engine.stats_window", d.StatsWindow)
	v.SetDefault("delivery.mode", deliveryHTTP)
	v.SetDefault("delivery.redis_addr", "localhost:6379")
}

// loadConfig reads path (optional) and TASKQUEUE_* environment overrides.
func loadConfig(path string) (*config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	switch cfg.Delivery.Mode {
	case deliveryHTTP, deliveryBroker:
	default:
		return nil, fmt.Errorf("delivery.mode %q: want %q or %q", cfg.Delivery.Mode, deliveryHTTP, deliveryBroker)
	}
	return &cfg, nil
}

// engineConfig converts the engine section into taskqueue.Config.
func (c *config) engineConfig() taskqueue.Config {
	e := c.Engine
	return taskqueue.Config{
		BaseURL:         e.BaseURL,
		Targets:         e.Targets,
		DeliveryTimeout: e.DeliveryTimeout,
		MaxETA:          e.MaxETA,
		MaxLease:        e.MaxLease,
		MaxLeaseCount:   e.MaxLeaseCount,
		MaxURLLength:    e.MaxURLLength,
		MaxTaskSize:     e.MaxTaskSize,
		MaxBulkAdd:      e.MaxBulkAdd,
		StatsWindow:     e.StatsWindow,
	}
}

// definitions validates every queue entry and reports all bad ones at once.
func (c *config) definitions() ([]queue.Definition, error) {
	defs := make([]queue.Definition, 0, len(c.Queues))
	var errs []error
	for _, entry := range c.Queues {
		def, err := entry.Definition()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, def)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return defs, nil
}

func newLogger(c logConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
