package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/appscale/taskqueue"
	"github.com/appscale/taskqueue/engine"
	"github.com/appscale/taskqueue/queue"
	"github.com/appscale/taskqueue/task"
)

// AddResponse is returned by the add route.
type AddResponse struct {
	Name string `json:"chosen_task_name"`
}

// BulkAddRequest carries a batch of tasks; each names its own queue.
type BulkAddRequest struct {
	Tasks []engine.AddRequest `json:"tasks"`
}

// BulkAddResponse holds one result per requested task.
type BulkAddResponse struct {
	Results []engine.AddResult `json:"results"`
}

// DeleteRequest names the tasks to delete.
type DeleteRequest struct {
	Names []string `json:"task_names"`
}

// DeleteResponse holds one result code per name.
type DeleteResponse struct {
	Results []taskqueue.ErrorCode `json:"results"`
}

// LeaseRequest is the body of the lease route.
type LeaseRequest struct {
	LeaseSeconds float64 `json:"lease_seconds"`
	MaxTasks     int     `json:"max_tasks"`
	GroupByTag   bool    `json:"group_by_tag,omitempty"`
	Tag          string  `json:"tag,omitempty"`
}

// LeaseResponse lists the leased tasks.
type LeaseResponse struct {
	Tasks []*task.Task `json:"tasks"`
}

// ModifyLeaseRequest is the body of the lease renewal route. ETA must be
// the task's current ETA as returned by the lease route.
type ModifyLeaseRequest struct {
	ETA          time.Time `json:"eta"`
	LeaseSeconds float64   `json:"lease_seconds"`
}

// ModifyLeaseResponse carries the renewed ETA.
type ModifyLeaseResponse struct {
	ETA time.Time `json:"updated_eta"`
}

// StatsResponse lists queue statistics.
type StatsResponse struct {
	Queues []queue.Stats `json:"queue_stats"`
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (a *API) addTask(w http.ResponseWriter, r *http.Request) {
	var req engine.AddRequest
	if !a.decode(w, r, &req) {
		return
	}
	req.Queue = chi.URLParam(r, "queue")

	name, err := a.eng.Add(r.Context(), req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, AddResponse{Name: name})
}

func (a *API) bulkAdd(w http.ResponseWriter, r *http.Request) {
	var req BulkAddRequest
	if !a.decode(w, r, &req) {
		return
	}
	results, err := a.eng.BulkAdd(r.Context(), req.Tasks)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, BulkAddResponse{Results: results})
}

func (a *API) deleteTasks(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if !a.decode(w, r, &req) {
		return
	}
	codes, err := a.eng.Delete(r.Context(), chi.URLParam(r, "queue"), req.Names)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, DeleteResponse{Results: codes})
}

func (a *API) queryAndOwnTasks(w http.ResponseWriter, r *http.Request) {
	var req LeaseRequest
	if !a.decode(w, r, &req) {
		return
	}
	tasks, err := a.eng.QueryAndOwnTasks(r.Context(), engine.LeaseRequest{
		Queue:      chi.URLParam(r, "queue"),
		Lease:      seconds(req.LeaseSeconds),
		MaxTasks:   req.MaxTasks,
		GroupByTag: req.GroupByTag,
		Tag:        req.Tag,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	a.writeJSON(w, http.StatusOK, LeaseResponse{Tasks: tasks})
}

func (a *API) modifyTaskLease(w http.ResponseWriter, r *http.Request) {
	var req ModifyLeaseRequest
	if !a.decode(w, r, &req) {
		return
	}
	eta, err := a.eng.ModifyTaskLease(r.Context(),
		chi.URLParam(r, "queue"), chi.URLParam(r, "task"),
		req.ETA, seconds(req.LeaseSeconds))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, ModifyLeaseResponse{ETA: eta})
}

func (a *API) fetchQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.eng.FetchQueueStats(r.Context(), r.URL.Query()["queue"])
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, StatsResponse{Queues: stats})
}

func (a *API) purgeQueue(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.PurgeQueue(r.Context(), chi.URLParam(r, "queue")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
