// Package api exposes the task queue engine over HTTP with JSON bodies.
//
// The RPC routes mirror the engine's RPC surface one to one; the admin
// routes cover the operations an operator console needs. Failures are
// answered with an error body carrying the result code name.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/appscale/taskqueue/engine"
)

// API wires the HTTP handlers to an engine.
type API struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// New creates an API for eng.
func New(eng *engine.Engine, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{eng: eng, logger: logger}
}

// Handler returns a router with every route mounted.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	a.Mount(r)
	return r
}

// Mount registers all routes on r.
func (a *API) Mount(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/tasks/bulk", a.bulkAdd)
		r.Get("/stats", a.fetchQueueStats)
		r.Get("/queues", a.listQueues)

		r.Route("/queues/{queue}", func(r chi.Router) {
			a.mountRPC(r)
			r.Route("/admin", a.mountAdmin)
		})
	})
}

// mountRPC registers the per-queue RPC routes.
func (a *API) mountRPC(r chi.Router) {
	r.Post("/tasks", a.addTask)
	r.Post("/delete", a.deleteTasks)
	r.Post("/lease", a.queryAndOwnTasks)
	r.Post("/tasks/{task}/lease", a.modifyTaskLease)
	r.Post("/purge", a.purgeQueue)
}

// mountAdmin registers the per-queue operator routes.
func (a *API) mountAdmin(r chi.Router) {
	r.Get("/tasks", a.queueState)
	r.Delete("/tasks/{task}", a.deleteTask)
	r.Post("/tasks/{task}/run", a.runTask)
	r.Post("/flush", a.flushQueue)
	r.Post("/pause", a.pauseQueue)
	r.Post("/resume", a.resumeQueue)
	r.Put("/rate", a.setQueueRate)
}
