package queue

import (
	"log/slog"
	"maps"
	"time"

	"github.com/dmitrymomot/jobq/core/event"
)

// Option is a functional option for configuring a Queue.
type Option func(*Queue)

// WithLogger sets the logger for queue operations. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithEventBus sets the event bus used for lifecycle notifications.
// Pass a shared bus to observe queue events alongside other application
// events. Defaults to a private bus.
func WithEventBus(bus *event.Bus) Option {
	return func(q *Queue) {
		if bus != nil {
			q.bus = bus
		}
	}
}

// WithJobStore attaches a persistence hook. Jobs are saved on every state
// transition so an external store can mirror queue state for inspection or
// post-restart recovery. Persistence is best-effort: store failures are
// logged and reported via the queue:error event but never fail the operation.
func WithJobStore(store JobStore) Option {
	return func(q *Queue) {
		if store != nil {
			q.store = store
		}
	}
}

// RegisterOption configures a handler registration.
type RegisterOption func(*registration)

// WithHandlerConcurrency caps how many jobs of this type may run at once,
// independent of the queue-wide concurrency limit. Zero means no cap.
func WithHandlerConcurrency(n int) RegisterOption {
	return func(r *registration) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithHandlerTimeout overrides the per-job timeout for this handler.
func WithHandlerTimeout(d time.Duration) RegisterOption {
	return func(r *registration) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// addState collects the job under construction plus scheduling inputs whose
// interplay is resolved after all options ran: an explicit scheduled time
// overrides a delay no matter the option order.
type addState struct {
	job          *Job
	delay        time.Duration
	scheduledSet bool
}

// AddOption is a functional option for configuring a job on Add.
type AddOption func(*addState)

// WithPriority sets the job priority. Invalid priorities are ignored and the
// job keeps the normal priority.
func WithPriority(p Priority) AddOption {
	return func(s *addState) {
		if p.Valid() {
			s.job.Priority = p
		}
	}
}

// WithDelay defers the job's first execution by the given duration. Ignored
// when WithScheduledAt is also given.
func WithDelay(d time.Duration) AddOption {
	return func(s *addState) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithScheduledAt sets the exact time the job becomes eligible to run,
// overriding any delay.
func WithScheduledAt(t time.Time) AddOption {
	return func(s *addState) {
		if !t.IsZero() {
			s.job.ScheduledAt = t
			s.scheduledSet = true
		}
	}
}

// WithMaxAttempts sets how many executions the job may consume before it is
// marked failed. Values below 1 are ignored.
func WithMaxAttempts(n int) AddOption {
	return func(s *addState) {
		if n > 0 {
			s.job.MaxAttempts = n
		}
	}
}

// WithRetryDelay sets the backoff between a failed attempt and the next one.
func WithRetryDelay(d time.Duration) AddOption {
	return func(s *addState) {
		if d > 0 {
			s.job.RetryDelay = d
		}
	}
}

// WithTimeout sets the per-attempt execution timeout for the job.
func WithTimeout(d time.Duration) AddOption {
	return func(s *addState) {
		if d > 0 {
			s.job.Timeout = d
		}
	}
}

// WithUniqueKey enables deduplication: while a non-terminal job holds the
// key, Add calls with the same key return that job instead of creating a
// duplicate.
func WithUniqueKey(key string) AddOption {
	return func(s *addState) {
		s.job.UniqueKey = key
	}
}

// WithMetadata attaches caller-defined metadata to the job. The map is
// copied; later calls merge into previously set metadata.
func WithMetadata(md map[string]string) AddOption {
	return func(s *addState) {
		if len(md) == 0 {
			return
		}
		if s.job.Metadata == nil {
			s.job.Metadata = make(map[string]string, len(md))
		}
		maps.Copy(s.job.Metadata, md)
	}
}
