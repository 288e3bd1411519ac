package queue

import (
	"bytes"
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/dmitrymomot/jobq/core/event"
)

// Start launches the scheduler and stalled-job monitor loops and returns
// immediately. Starting an already running queue is a no-op. The loops run
// until Stop is called or ctx is cancelled; cancelling ctx triggers the same
// graceful shutdown as Stop.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.cancel != nil {
		q.mu.Unlock()
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.cancel = cancel
	q.startedAt = time.Now()
	q.drained = false
	// Loops join the waitgroup under the lock so Stop never waits on an
	// incomplete count.
	q.wg.Add(2)
	q.mu.Unlock()

	go q.schedulerLoop(runCtx)
	go q.monitorLoop(runCtx)

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = q.Stop()
			case <-runCtx.Done():
			}
		}()
	}

	q.logger.InfoContext(runCtx, "queue started",
		slog.Int("concurrency", q.cfg.Concurrency),
		slog.Duration("poll_interval", q.cfg.PollInterval),
		slog.Duration("stalled_check_interval", q.cfg.StalledCheckInterval))

	return nil
}

// Stop gracefully shuts down the queue: the loops exit and Stop waits up to
// ShutdownTimeout for running jobs to finish on their own. Handlers are not
// interrupted; jobs still running after the timeout are abandoned and
// ErrShutdownTimeout is returned. Stopping an already stopped queue is a
// no-op, and concurrent Stop calls all wait for shutdown to complete.
func (q *Queue) Stop() error {
	q.mu.Lock()
	cancel := q.cancel
	q.cancel = nil
	q.mu.Unlock()

	if cancel != nil {
		cancel()
		q.logger.Info("queue stopping, waiting for active jobs to complete",
			slog.Duration("timeout", q.cfg.ShutdownTimeout))
	}

	ctx, ctxCancel := context.WithTimeout(context.Background(), q.cfg.ShutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if cancel != nil {
			q.logger.Info("queue stopped cleanly")
		}
		return nil
	case <-ctx.Done():
		q.logger.Warn("queue shutdown timeout exceeded - some jobs may be abandoned",
			slog.Duration("timeout", q.cfg.ShutdownTimeout))
		return ErrShutdownTimeout
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// Returns a function that starts the queue, waits for context cancellation,
// and performs graceful shutdown. A shutdown timeout is reported as
// ErrShutdownTimeout.
//
//	g, ctx := errgroup.WithContext(context.Background())
//	g.Go(q.Run(ctx))
func (q *Queue) Run(ctx context.Context) func() error {
	return func() error {
		if err := q.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return q.Stop()
	}
}

func (q *Queue) schedulerLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			q.tick(ctx)
		}
	}
}

// dispatchItem carries everything execute needs so it never touches shared
// state without the lock.
type dispatchItem struct {
	exec *execution
	reg  *registration
	job  Job
}

// tick runs one scheduling pass: promote retrying jobs whose backoff
// elapsed, then fill free concurrency slots with eligible pending jobs in
// priority order (FIFO within a priority level).
func (q *Queue) tick(ctx context.Context) {
	now := time.Now()

	var (
		dispatches []dispatchItem
		events     []event.Event
		saves      []Job
		drained    bool
	)

	q.mu.Lock()

	// Promoted jobs compete with other pending jobs on this same pass.
	for _, j := range q.jobs {
		if j.Status == StatusRetrying && !j.ScheduledAt.After(now) {
			j.Status = StatusPending
			j.UpdatedAt = now
			saves = append(saves, j.snapshot())
		}
	}

	if slots := q.cfg.Concurrency - len(q.active); slots > 0 {
		eligible := make([]*Job, 0, slots)
		for _, j := range q.jobs {
			if j.Status == StatusPending && !j.ScheduledAt.After(now) {
				eligible = append(eligible, j)
			}
		}
		slices.SortFunc(eligible, func(a, b *Job) int {
			if c := cmp.Compare(b.Priority.weight(), a.Priority.weight()); c != 0 {
				return c
			}
			if c := a.ScheduledAt.Compare(b.ScheduledAt); c != 0 {
				return c
			}
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return bytes.Compare(a.ID[:], b.ID[:])
		})

		activeByType := make(map[string]int, len(q.active))
		for _, e := range q.active {
			activeByType[e.jobType]++
		}

		for _, j := range eligible {
			if slots == 0 {
				break
			}

			reg, ok := q.handlers[j.Type]
			if !ok {
				// Terminal failure without consuming an attempt: retrying
				// cannot help until a handler is registered, and the caller
				// can Retry the job once one is.
				j.Status = StatusFailed
				j.Error = ErrHandlerNotFound.Error() + ": " + j.Type
				j.UpdatedAt = now
				q.totalFailed.Add(1)
				events = append(events, event.New(EventJobFailed, j.snapshot()))
				saves = append(saves, j.snapshot())
				continue
			}
			if reg.concurrency > 0 && activeByType[j.Type] >= reg.concurrency {
				continue
			}

			j.Status = StatusProcessing
			j.Attempts++
			j.Progress = 0
			startedAt := now
			j.StartedAt = &startedAt
			j.UpdatedAt = now

			timeout := reg.timeout
			if timeout <= 0 {
				timeout = j.Timeout
			}
			if timeout <= 0 {
				timeout = q.cfg.DefaultTimeout
			}

			// The cancellation token is created here, not in the execution
			// goroutine, so Cancel works the instant the job is marked
			// processing.
			tokenCtx, token := context.WithCancel(context.Background())
			q.execSeq++
			e := &execution{
				seq:       q.execSeq,
				jobID:     j.ID,
				jobType:   j.Type,
				attempt:   j.Attempts,
				timeout:   timeout,
				ctx:       tokenCtx,
				cancel:    token,
				startedAt: now,
			}
			q.active[j.ID] = e
			q.drained = false
			activeByType[j.Type]++
			slots--

			events = append(events, event.New(EventJobStarted, j.snapshot()))
			saves = append(saves, j.snapshot())
			dispatches = append(dispatches, dispatchItem{exec: e, reg: reg, job: j.snapshot()})
		}
	}

	if len(dispatches) == 0 && len(events) > 0 {
		// Only terminal failures this pass; the queue may just have emptied.
		drained = q.checkDrainedLocked(now)
	}

	// Safe while holding the lock: the scheduler loop itself is tracked, so
	// the counter cannot reach zero while executions are added.
	q.wg.Add(len(dispatches))
	q.mu.Unlock()

	for _, d := range dispatches {
		go q.execute(d.exec, d.reg, d.job)
	}

	q.publish(ctx, events...)
	if drained {
		q.publish(ctx, event.New(EventQueueDrained, q.Stats()))
	}
	q.persist(ctx, saves...)
}
