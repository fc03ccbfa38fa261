package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/appscale/taskqueue/queue"
	"github.com/appscale/taskqueue/task"
)

// QueuesResponse lists the configured queues.
type QueuesResponse struct {
	Queues []queue.Definition `json:"queues"`
}

// StateResponse lists a queue's tasks in ETA order.
type StateResponse struct {
	Tasks []*task.Task `json:"tasks"`
}

// FlushResponse reports how many tasks a flush removed.
type FlushResponse struct {
	Flushed int `json:"flushed"`
}

// SetRateRequest is the body of the rate route. Rate is in tasks per
// second; a zero bucket size keeps the configured one.
type SetRateRequest struct {
	Rate       float64 `json:"rate"`
	BucketSize int     `json:"bucket_size,omitempty"`
}

func (a *API) listQueues(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, QueuesResponse{Queues: a.eng.Queues()})
}

func (a *API) queueState(w http.ResponseWriter, r *http.Request) {
	tasks, err := a.eng.QueueState(r.Context(), chi.URLParam(r, "queue"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, StateResponse{Tasks: tasks})
}

func (a *API) deleteTask(w http.ResponseWriter, r *http.Request) {
	err := a.eng.DeleteTask(r.Context(), chi.URLParam(r, "queue"), chi.URLParam(r, "task"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) runTask(w http.ResponseWriter, r *http.Request) {
	err := a.eng.RunTask(r.Context(), chi.URLParam(r, "queue"), chi.URLParam(r, "task"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *API) flushQueue(w http.ResponseWriter, r *http.Request) {
	n, err := a.eng.FlushQueue(r.Context(), chi.URLParam(r, "queue"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, FlushResponse{Flushed: n})
}

func (a *API) pauseQueue(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.PauseQueue(r.Context(), chi.URLParam(r, "queue")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) resumeQueue(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.ResumeQueue(r.Context(), chi.URLParam(r, "queue")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) setQueueRate(w http.ResponseWriter, r *http.Request) {
	var req SetRateRequest
	if !a.decode(w, r, &req) {
		return
	}
	err := a.eng.SetQueueRate(r.Context(), chi.URLParam(r, "queue"), req.Rate, req.BucketSize)
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
