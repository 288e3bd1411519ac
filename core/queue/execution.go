package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/jobq/core/event"
)

// execute runs one job attempt in its own goroutine. The execution context
// is detached from the queue's run context: shutdown does not interrupt
// running handlers, only the per-attempt timeout and explicit Cancel do.
func (q *Queue) execute(e *execution, reg *registration, job Job) {
	defer q.wg.Done()
	defer e.cancel()

	ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
	defer cancel()

	ex := &Execution{q: q, e: e, ctx: ctx}
	ctx = withExecution(ctx, ex)

	q.logger.InfoContext(ctx, "job processing",
		slog.String("job_id", e.jobID.String()),
		slog.String("job_type", e.jobType),
		slog.Int("attempt", e.attempt),
		slog.Int("max_attempts", job.MaxAttempts))

	result, err := q.invoke(ctx, reg.handler, job.Payload)
	tokenErr := ctx.Err()

	q.finalize(e, result, err, tokenErr)
}

// invoke calls the handler with panic recovery. Panics count as failed
// attempts with retry eligibility, so one bad handler cannot crash the
// queue.
func (q *Queue) invoke(ctx context.Context, h Handler, payload json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h.Handle(ctx, payload)
}

// finalize settles a finished attempt: success completes the job, failure
// schedules a retry or marks it failed, and a cancellation observed midway
// is left as cancelled. A finalize from a superseded execution is ignored;
// the stall sweep owns that job's bookkeeping.
func (q *Queue) finalize(e *execution, result any, execErr error, tokenErr error) {
	now := time.Now()
	duration := now.Sub(e.startedAt)

	var (
		events  []event.Event
		saves   []Job
		drained bool
		outcome Job
	)

	q.mu.Lock()
	if q.active[e.jobID] != e {
		q.mu.Unlock()
		return
	}
	delete(q.active, e.jobID)

	j, ok := q.jobs[e.jobID]
	if !ok {
		// Removed while running; only the slot bookkeeping remained.
		drained = q.checkDrainedLocked(now)
		q.mu.Unlock()
		if drained {
			q.publish(context.Background(), event.New(EventQueueDrained, q.Stats()))
		}
		return
	}

	switch {
	case j.Status == StatusCancelled:
		// Cancellation wins over any in-flight outcome; Cancel already
		// updated the job and emitted the event.

	case execErr == nil && tokenErr == nil:
		j.Status = StatusCompleted
		j.Result = result
		j.Error = ""
		j.Progress = 100
		completedAt := now
		j.CompletedAt = &completedAt
		j.UpdatedAt = now
		q.totalCompleted.Add(1)
		q.recordDurationLocked(duration)
		events = append(events, event.New(EventJobCompleted, j.snapshot()))
		saves = append(saves, j.snapshot())

	default:
		j.Error = failureMessage(e.timeout, execErr, tokenErr)
		j.UpdatedAt = now
		if j.Attempts < j.MaxAttempts {
			j.Status = StatusRetrying
			j.ScheduledAt = now.Add(j.RetryDelay)
			events = append(events, event.New(EventJobRetrying, j.snapshot()))
		} else {
			j.Status = StatusFailed
			q.totalFailed.Add(1)
			events = append(events, event.New(EventJobFailed, j.snapshot()))
		}
		saves = append(saves, j.snapshot())
	}
	outcome = j.snapshot()
	drained = q.checkDrainedLocked(now)
	q.mu.Unlock()

	q.logOutcome(outcome, duration)

	ctx := context.Background()
	q.publish(ctx, events...)
	if drained {
		q.publish(ctx, event.New(EventQueueDrained, q.Stats()))
	}
	q.persist(ctx, saves...)
}

func (q *Queue) logOutcome(j Job, duration time.Duration) {
	switch j.Status {
	case StatusCompleted:
		q.logger.Info("job completed",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.Int("attempt", j.Attempts),
			slog.Duration("duration", duration))
	case StatusRetrying:
		q.logger.Warn("job attempt failed, retrying",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.Int("attempt", j.Attempts),
			slog.Int("max_attempts", j.MaxAttempts),
			slog.Time("next_attempt_at", j.ScheduledAt),
			slog.String("error", j.Error))
	case StatusFailed:
		q.logger.Error("job failed",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.Int("attempt", j.Attempts),
			slog.Duration("duration", duration),
			slog.String("error", j.Error))
	case StatusCancelled:
		q.logger.Info("job cancelled during execution",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.Duration("duration", duration))
	}
}

func failureMessage(timeout time.Duration, execErr, tokenErr error) string {
	switch {
	case errors.Is(tokenErr, context.DeadlineExceeded) || errors.Is(execErr, context.DeadlineExceeded):
		return fmt.Sprintf("job timed out after %s", timeout)
	case execErr != nil:
		return execErr.Error()
	default:
		return tokenErr.Error()
	}
}
