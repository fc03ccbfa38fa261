package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/appscale/taskqueue"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code   taskqueue.ErrorCode `json:"code"`
	Detail string              `json:"detail,omitempty"`
}

// maxBodyBytes bounds request bodies; a full bulk add of maximum size
// tasks still fits after base64 expansion.
const maxBodyBytes = 32 << 20

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		a.writeError(w, taskqueue.Errorf(taskqueue.InvalidRequest, "decode body: %v", err))
		return false
	}
	return true
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("unable to encode response", slog.String("error", err.Error()))
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	code := taskqueue.CodeOf(err)
	resp := ErrorResponse{Code: code}
	var tqErr *taskqueue.Error
	if errors.As(err, &tqErr) {
		resp.Detail = tqErr.Detail
	} else {
		a.logger.Error("request failed", slog.String("error", err.Error()))
		resp.Detail = fmt.Sprint(err)
	}
	a.writeJSON(w, statusFor(code), resp)
}

func statusFor(code taskqueue.ErrorCode) int {
	switch code {
	case taskqueue.UnknownQueue, taskqueue.UnknownTask:
		return http.StatusNotFound
	case taskqueue.TaskAlreadyExists, taskqueue.TaskLeaseExpired, taskqueue.QueuePaused:
		return http.StatusConflict
	case taskqueue.TaskTooLarge, taskqueue.TooManyTasks:
		return http.StatusRequestEntityTooLarge
	case taskqueue.PermissionDenied:
		return http.StatusForbidden
	case taskqueue.TransientError:
		return http.StatusServiceUnavailable
	case taskqueue.InternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
