package scheduler

import "errors"

// ErrCancelled is the parent of every error a request is rejected with when
// its work never ran. Use errors.Is to tell these apart from work failures.
var ErrCancelled = errors.New("scheduler: request cancelled")

var (
	// ErrQueueCleared rejects requests still pending when ClearQueue is called.
	ErrQueueCleared = cancelError("queue cleared")

	// ErrRequestCancelled rejects a pending request whose context ended.
	ErrRequestCancelled = cancelError("request context done")

	// ErrSchedulerClosed rejects pending requests at shutdown and any
	// request enqueued after Close.
	ErrSchedulerClosed = cancelError("scheduler closed")
)

// ErrInvalidConfig is returned for negative limits or window.
var ErrInvalidConfig = errors.New("scheduler: invalid config")

// ErrNilWork rejects a request enqueued without a work function.
var ErrNilWork = errors.New("scheduler: nil work")

type cancelledError struct {
	reason string
}

func cancelError(reason string) error {
	return &cancelledError{reason: reason}
}

func (e *cancelledError) Error() string {
	return "scheduler: " + e.reason
}

func (e *cancelledError) Unwrap() error {
	return ErrCancelled
}

// IsCancelled reports whether err means the request was settled without
// its work being run.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
