// Package observability provides an OpenTelemetry metrics extension for
// the task queue engine. The MetricsExtension implements lifecycle hooks
// to record system-wide counters for added, delivered, retried, dropped,
// deleted and leased tasks and for queue purges.
//
// For per-attempt tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
