package taskqueue

import (
	"errors"
	"fmt"
)

// ErrorCode is a task queue result code. The numeric values follow the
// App Engine TaskQueueServiceError enumeration so they survive a round trip
// through clients that speak the original protocol.
type ErrorCode int

// Result codes.
const (
	OK                ErrorCode = 0
	UnknownQueue      ErrorCode = 1
	TransientError    ErrorCode = 2
	InternalError     ErrorCode = 3
	TaskTooLarge      ErrorCode = 4
	InvalidTaskName   ErrorCode = 5
	InvalidQueueName  ErrorCode = 6
	InvalidURL        ErrorCode = 7
	InvalidQueueRate  ErrorCode = 8
	PermissionDenied  ErrorCode = 9
	TaskAlreadyExists ErrorCode = 10
	InvalidETA        ErrorCode = 12
	InvalidRequest    ErrorCode = 13
	UnknownTask       ErrorCode = 14
	Skipped           ErrorCode = 17
	TooManyTasks      ErrorCode = 18
	InvalidQueueMode  ErrorCode = 21
	TaskLeaseExpired  ErrorCode = 25
	QueuePaused       ErrorCode = 26
)

var codeNames = map[ErrorCode]string{
	OK:                "OK",
	UnknownQueue:      "UNKNOWN_QUEUE",
	TransientError:    "TRANSIENT_ERROR",
	InternalError:     "INTERNAL_ERROR",
	TaskTooLarge:      "TASK_TOO_LARGE",
	InvalidTaskName:   "INVALID_TASK_NAME",
	InvalidQueueName:  "INVALID_QUEUE_NAME",
	InvalidURL:        "INVALID_URL",
	InvalidQueueRate:  "INVALID_QUEUE_RATE",
	PermissionDenied:  "PERMISSION_DENIED",
	TaskAlreadyExists: "TASK_ALREADY_EXISTS",
	InvalidETA:        "INVALID_ETA",
	InvalidRequest:    "INVALID_REQUEST",
	UnknownTask:       "UNKNOWN_TASK",
	Skipped:           "SKIPPED",
	TooManyTasks:      "TOO_MANY_TASKS",
	InvalidQueueMode:  "INVALID_QUEUE_MODE",
	TaskLeaseExpired:  "TASK_LEASE_EXPIRED",
	QueuePaused:       "QUEUE_PAUSED",
}

// String returns the upper-case wire name of the code.
func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// MarshalText encodes the code by name.
func (c ErrorCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a code previously encoded with MarshalText.
func (c *ErrorCode) UnmarshalText(b []byte) error {
	for code, name := range codeNames {
		if name == string(b) {
			*c = code
			return nil
		}
	}
	return fmt.Errorf("taskqueue: unknown error code %q", b)
}

// Error is a task queue failure with a result code.
type Error struct {
	Code   ErrorCode
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "taskqueue: " + e.Code.String()
	}
	return "taskqueue: " + e.Code.String() + ": " + e.Detail
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, ErrUnknownQueue) matches regardless of Detail.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Errorf returns an *Error with the given code and a formatted detail.
func Errorf(code ErrorCode, format string, args ...any) error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the result code from err. A nil error is OK and any
// error that does not carry a code is reported as InternalError.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

var (
	// Lookup errors.
	ErrUnknownQueue = &Error{Code: UnknownQueue}
	ErrUnknownTask  = &Error{Code: UnknownTask}

	// Validation errors.
	ErrInvalidQueueName = &Error{Code: InvalidQueueName}
	ErrInvalidTaskName  = &Error{Code: InvalidTaskName}
	ErrInvalidURL       = &Error{Code: InvalidURL}
	ErrInvalidETA       = &Error{Code: InvalidETA}
	ErrInvalidQueueMode = &Error{Code: InvalidQueueMode}
	ErrInvalidRequest   = &Error{Code: InvalidRequest}
	ErrTaskTooLarge     = &Error{Code: TaskTooLarge}
	ErrTooManyTasks     = &Error{Code: TooManyTasks}

	// Conflict errors.
	ErrTaskAlreadyExists = &Error{Code: TaskAlreadyExists}
	ErrTaskLeaseExpired  = &Error{Code: TaskLeaseExpired}

	// State errors.
	ErrQueuePaused = &Error{Code: QueuePaused}
	ErrInternal    = &Error{Code: InternalError}
)
