package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/jobq/core/event"
)

type executionCtxKey struct{}

// Execution is the handler-side view of a running job. The queue places it
// in every handler context; handlers use it to report progress, inspect the
// live job, and observe cancellation without importing queue internals.
type Execution struct {
	q   *Queue
	e   *execution
	ctx context.Context
}

func withExecution(ctx context.Context, ex *Execution) context.Context {
	return context.WithValue(ctx, executionCtxKey{}, ex)
}

// ExecutionFromContext extracts the Execution handle from a handler context.
// Returns false when the context does not belong to a queue execution.
func ExecutionFromContext(ctx context.Context) (*Execution, bool) {
	ex, ok := ctx.Value(executionCtxKey{}).(*Execution)
	return ex, ok
}

// JobFromContext returns a snapshot of the job being executed in this
// handler context.
func JobFromContext(ctx context.Context) (Job, bool) {
	ex, ok := ExecutionFromContext(ctx)
	if !ok {
		return Job{}, false
	}
	return ex.Job()
}

// UpdateProgress reports progress from within a handler context. Returns
// false when the context does not belong to a queue execution or the update
// no longer applies.
func UpdateProgress(ctx context.Context, progress int) bool {
	ex, ok := ExecutionFromContext(ctx)
	if !ok {
		return false
	}
	return ex.UpdateProgress(progress)
}

// Job returns a snapshot of the job being executed. Returns false when the
// job has been removed from the queue.
func (ex *Execution) Job() (Job, bool) {
	q := ex.q

	q.mu.RLock()
	defer q.mu.RUnlock()

	j, ok := q.jobs[ex.e.jobID]
	if !ok {
		return Job{}, false
	}
	return j.snapshot(), true
}

// UpdateProgress sets the job's progress, clamped to 0-100, and emits a
// job:progress event. Updates are ignored once the job left the processing
// state or this execution was superseded by a stall requeue; in that case
// UpdateProgress returns false.
func (ex *Execution) UpdateProgress(progress int) bool {
	progress = clampProgress(progress)

	q := ex.q
	q.mu.Lock()
	j, ok := q.jobs[ex.e.jobID]
	if !ok || q.active[ex.e.jobID] != ex.e || j.Status != StatusProcessing {
		q.mu.Unlock()
		return false
	}
	if j.Progress == progress {
		q.mu.Unlock()
		return true
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
	snap := j.snapshot()
	q.mu.Unlock()

	q.publish(context.WithoutCancel(ex.ctx), event.New(EventJobProgress, snap))
	return true
}

// Logger returns the queue logger annotated with the job's identity.
func (ex *Execution) Logger() *slog.Logger {
	return ex.q.logger.With(
		slog.String("job_id", ex.e.jobID.String()),
		slog.String("job_type", ex.e.jobType),
		slog.Int("attempt", ex.e.attempt))
}

// Cancelled reports whether the execution's cancellation token fired, either
// through an explicit Cancel or the per-attempt timeout. Long handlers
// should check it (or ctx.Done()) at safe points and return early.
func (ex *Execution) Cancelled() bool {
	return ex.ctx.Err() != nil
}
