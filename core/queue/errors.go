package queue

import "errors"

var (
	// ErrJobTypeRequired is returned when a job is added with an empty type.
	ErrJobTypeRequired = errors.New("job type is required")

	// ErrInvalidPayload is returned when a job payload cannot be marshaled to JSON.
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrJobNotFound is returned when the requested job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("handler is nil")

	// ErrHandlerNameRequired is returned when registering a handler with an empty name.
	ErrHandlerNameRequired = errors.New("handler name is required")

	// ErrHandlerNotFound is returned when no handler is registered for a job type.
	ErrHandlerNotFound = errors.New("no handler registered for job type")

	// ErrHandlerPanic wraps a panic recovered from a job handler.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrQueueNotRunning indicates the queue has not been started.
	ErrQueueNotRunning = errors.New("queue not running")

	// ErrQueueOverloaded indicates all concurrency slots are busy.
	ErrQueueOverloaded = errors.New("queue overloaded")

	// ErrHealthcheckFailed is the base error for health check failures.
	ErrHealthcheckFailed = errors.New("queue healthcheck failed")

	// ErrShutdownTimeout is returned by Stop when active jobs did not finish
	// within the configured shutdown timeout.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
)
