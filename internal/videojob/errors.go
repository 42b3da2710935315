package videojob

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("video job not found")

	// ErrNotClaimable is returned when a claim races with another step or
	// the job is already terminal
	ErrNotClaimable = errors.New("video job not in pending status")

	// ErrTerminalState is returned when a mutation targets a completed or
	// failed job
	ErrTerminalState = errors.New("video job already in terminal state")

	// ErrInvalidPendingContent is returned when the captured post payload
	// cannot be deserialized
	ErrInvalidPendingContent = errors.New("invalid pending content payload")
)

// RetryableError wraps transient errors that should trigger a broker-level
// redelivery rather than failing the job.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
