package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/jobq/core/event"
)

func (q *Queue) monitorLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.StalledCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("stalled-job monitor stopping")
			return
		case <-ticker.C:
			q.sweepStalled(ctx)
		}
	}
}

// sweepStalled recovers jobs whose handler neither returned nor got
// finalized within twice the check interval. Stalled jobs lose their
// concurrency slot immediately: they are requeued as pending while
// attempts < MaxStalledRetries + MaxAttempts, and fail terminally beyond
// that combined budget. The leaked handler goroutine cannot be killed; its
// late finalize is ignored through the active-set identity check.
func (q *Queue) sweepStalled(ctx context.Context) {
	now := time.Now()
	threshold := 2 * q.cfg.StalledCheckInterval

	var (
		events  []event.Event
		saves   []Job
		drained bool
	)

	q.mu.Lock()
	for id, e := range q.active {
		j, ok := q.jobs[id]
		if !ok || j.Status.Terminal() {
			// Execution leaked past removal or cancellation. Reap the slot
			// once it exceeds the stall threshold so abandoned handlers
			// cannot pin concurrency forever.
			if now.Sub(e.startedAt) > threshold {
				e.cancel()
				delete(q.active, id)
			}
			continue
		}
		if j.Status != StatusProcessing || j.StartedAt == nil {
			continue
		}
		if now.Sub(*j.StartedAt) <= threshold {
			continue
		}

		events = append(events, event.New(EventJobStalled, j.snapshot()))
		e.cancel()
		delete(q.active, id)

		if j.Attempts < q.cfg.MaxStalledRetries+j.MaxAttempts {
			j.Status = StatusPending
			j.StartedAt = nil
			j.UpdatedAt = now
			q.drained = false
		} else {
			j.Status = StatusFailed
			j.Error = "stalled and exceeded max retries"
			j.UpdatedAt = now
			q.totalFailed.Add(1)
			events = append(events, event.New(EventJobFailed, j.snapshot()))
		}
		saves = append(saves, j.snapshot())
	}
	if len(saves) > 0 {
		drained = q.checkDrainedLocked(now)
	}
	q.mu.Unlock()

	for _, evt := range events {
		if evt.Name != EventJobStalled {
			continue
		}
		if j, ok := evt.Payload.(Job); ok {
			q.logger.Warn("stalled job detected",
				slog.String("job_id", j.ID.String()),
				slog.String("job_type", j.Type),
				slog.Int("attempts", j.Attempts))
		}
	}

	q.publish(ctx, events...)
	if drained {
		q.publish(ctx, event.New(EventQueueDrained, q.Stats()))
	}
	q.persist(ctx, saves...)
}
