package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/jobq/core/event"
)

// processingTimeWindow is the number of recent completions averaged into
// Stats().AvgProcessingTime.
const processingTimeWindow = 100

// Queue is an in-process background job queue with priority scheduling,
// bounded concurrency, automatic retries, and stalled-job recovery. It owns
// all job state; every job returned from its methods is an independent
// snapshot.
type Queue struct {
	cfg    Config
	logger *slog.Logger
	bus    *event.Bus
	store  JobStore

	mu       sync.RWMutex
	jobs     map[uuid.UUID]*Job
	byUnique map[string]uuid.UUID
	handlers map[string]*registration
	active   map[uuid.UUID]*execution
	execSeq  uint64
	drained  bool

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time

	totalAdded     atomic.Int64
	totalCompleted atomic.Int64
	totalFailed    atomic.Int64

	// Trailing window of successful processing durations, guarded by mu.
	durs     [processingTimeWindow]time.Duration
	durIndex int
	durCount int
}

// registration pairs a handler with its per-type execution limits.
type registration struct {
	handler     Handler
	concurrency int
	timeout     time.Duration
}

// execution tracks one running attempt. The active map holds the current
// execution per job; a finalize from a superseded execution (e.g. after a
// stall requeue) is detected by pointer identity and ignored.
type execution struct {
	seq       uint64
	jobID     uuid.UUID
	jobType   string
	attempt   int
	timeout   time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
}

// Stats provides observability metrics for monitoring and debugging.
type Stats struct {
	Active   int // Jobs currently executing
	Waiting  int // Pending jobs eligible to run now
	Delayed  int // Pending jobs scheduled in the future
	Retrying int // Jobs waiting out a retry backoff

	TotalAdded     int64 // Total jobs accepted by Add
	TotalCompleted int64 // Total jobs that completed successfully
	TotalFailed    int64 // Total jobs that reached terminal failure

	AvgProcessingTime time.Duration // Average over the last completions
	SuccessRate       float64       // Completed / (completed + failed); 0 with no outcomes
	Uptime            time.Duration // Time since Start; 0 when stopped
	IsRunning         bool          // Whether the queue is currently running
}

// New creates a queue with the given configuration. Zero-value config fields
// fall back to DefaultConfig values, so queue.New(queue.Config{}) is valid.
func New(cfg Config, opts ...Option) *Queue {
	q := &Queue{
		cfg:      cfg.normalize(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		jobs:     make(map[uuid.UUID]*Job),
		byUnique: make(map[string]uuid.UUID),
		handlers: make(map[string]*registration),
		active:   make(map[uuid.UUID]*execution),
	}

	for _, opt := range opts {
		opt(q)
	}

	if q.bus == nil {
		q.bus = event.NewBus(event.WithLogger(q.logger))
	}

	return q
}

// Add enqueues a job of the given type. The payload is marshaled to JSON and
// handed to the registered handler on execution. Returns a snapshot of the
// created job.
//
// When WithUniqueKey is set and a non-terminal job already holds the key,
// that job is returned unchanged and no new job is created.
func (q *Queue) Add(ctx context.Context, jobType string, payload any, opts ...AddOption) (*Job, error) {
	if jobType == "" {
		return nil, ErrJobTypeRequired
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	now := time.Now()
	j := &Job{
		ID:          uuid.New(),
		Type:        jobType,
		Priority:    PriorityDefault,
		Payload:     data,
		Status:      StatusPending,
		MaxAttempts: q.cfg.DefaultMaxAttempts,
		RetryDelay:  q.cfg.DefaultRetryDelay,
		Timeout:     q.cfg.DefaultTimeout,
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	st := &addState{job: j}
	for _, opt := range opts {
		opt(st)
	}
	if !st.scheduledSet && st.delay > 0 {
		j.ScheduledAt = now.Add(st.delay)
	}

	q.mu.Lock()
	if j.UniqueKey != "" {
		if existingID, ok := q.byUnique[j.UniqueKey]; ok {
			if existing, ok := q.jobs[existingID]; ok && !existing.Status.Terminal() {
				snap := existing.snapshot()
				q.mu.Unlock()
				return &snap, nil
			}
		}
		// Stale mapping (terminal or removed job) is superseded.
		q.byUnique[j.UniqueKey] = j.ID
	}
	q.jobs[j.ID] = j
	q.drained = false
	q.totalAdded.Add(1)
	snap := j.snapshot()
	q.mu.Unlock()

	q.logger.DebugContext(ctx, "job added",
		slog.String("job_id", snap.ID.String()),
		slog.String("job_type", snap.Type),
		slog.String("priority", string(snap.Priority)))

	q.publish(ctx, event.New(EventJobAdded, snap))
	q.persist(ctx, snap)

	return &snap, nil
}

// Cancel marks a job cancelled. Pending, retrying, and processing jobs can
// be cancelled; for processing jobs the cancellation token fires and the
// handler is expected to return early. Cancellation wins over any in-flight
// outcome: a handler result arriving after Cancel is discarded.
//
// Returns false when the job does not exist or is already terminal.
func (q *Queue) Cancel(ctx context.Context, id uuid.UUID) bool {
	now := time.Now()

	q.mu.Lock()
	j, ok := q.jobs[id]
	if !ok || j.Status.Terminal() {
		q.mu.Unlock()
		return false
	}
	if e, running := q.active[id]; running && j.Status == StatusProcessing {
		e.cancel()
	}
	j.Status = StatusCancelled
	j.UpdatedAt = now
	snap := j.snapshot()
	q.mu.Unlock()

	q.logger.InfoContext(ctx, "job cancelled",
		slog.String("job_id", snap.ID.String()),
		slog.String("job_type", snap.Type))

	q.publish(ctx, event.New(EventJobCancelled, snap))
	q.persist(ctx, snap)

	return true
}

// Retry resets a failed job for re-execution: attempts, error, progress, and
// result are cleared and the job becomes eligible on the next scheduler
// tick. Returns false unless the job exists and is in the failed state.
func (q *Queue) Retry(ctx context.Context, id uuid.UUID) bool {
	now := time.Now()

	q.mu.Lock()
	j, ok := q.jobs[id]
	if !ok || j.Status != StatusFailed {
		q.mu.Unlock()
		return false
	}
	j.Status = StatusPending
	j.Attempts = 0
	j.Error = ""
	j.Progress = 0
	j.Result = nil
	j.ScheduledAt = now
	j.StartedAt = nil
	j.CompletedAt = nil
	j.UpdatedAt = now
	q.drained = false
	snap := j.snapshot()
	q.mu.Unlock()

	q.logger.InfoContext(ctx, "job requeued for retry",
		slog.String("job_id", snap.ID.String()),
		slog.String("job_type", snap.Type))

	q.persist(ctx, snap)

	return true
}

// Remove deletes a job from the queue, cancelling it first if it is
// processing. The concurrency slot of a removed running job is released once
// its handler returns. Returns false when the job does not exist.
func (q *Queue) Remove(ctx context.Context, id uuid.UUID) bool {
	q.mu.Lock()
	j, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	if e, running := q.active[id]; running {
		e.cancel()
	}
	delete(q.jobs, id)
	if j.UniqueKey != "" && q.byUnique[j.UniqueKey] == id {
		delete(q.byUnique, j.UniqueKey)
	}
	q.mu.Unlock()

	q.logger.InfoContext(ctx, "job removed",
		slog.String("job_id", id.String()),
		slog.String("job_type", j.Type))

	return true
}

// Clear deletes jobs in bulk and returns how many were deleted. With no
// arguments every job goes; otherwise only jobs whose status matches one of
// the given statuses. Processing jobs are cancelled first. The unique-key
// map is reset entirely, even under a status filter, so no stale key can
// block a future Add. Clear emits no per-job events.
func (q *Queue) Clear(ctx context.Context, statuses ...Status) int {
	q.mu.Lock()
	removed := 0
	for id, j := range q.jobs {
		if len(statuses) > 0 && !slices.Contains(statuses, j.Status) {
			continue
		}
		if e, running := q.active[id]; running {
			e.cancel()
		}
		delete(q.jobs, id)
		removed++
	}
	clear(q.byUnique)
	q.mu.Unlock()

	if removed > 0 {
		q.logger.InfoContext(ctx, "jobs cleared", slog.Int("count", removed))
	}

	return removed
}

// GetJob returns a snapshot of the job with the given ID, or ErrJobNotFound.
func (q *Queue) GetJob(id uuid.UUID) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	j, ok := q.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	snap := j.snapshot()
	return &snap, nil
}

// GetJobsByStatus returns snapshots of all jobs in the given status, ordered
// by creation time.
func (q *Queue) GetJobsByStatus(status Status) []*Job {
	return q.collectJobs(func(j *Job) bool { return j.Status == status })
}

// GetJobsByType returns snapshots of all jobs of the given type, ordered by
// creation time.
func (q *Queue) GetJobsByType(jobType string) []*Job {
	return q.collectJobs(func(j *Job) bool { return j.Type == jobType })
}

func (q *Queue) collectJobs(match func(*Job) bool) []*Job {
	q.mu.RLock()
	result := make([]*Job, 0)
	for _, j := range q.jobs {
		if match(j) {
			snap := j.snapshot()
			result = append(result, &snap)
		}
	}
	q.mu.RUnlock()

	slices.SortFunc(result, func(a, b *Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})

	return result
}

// Register adds a handler for its job type, replacing any existing handler
// for that type. Jobs of unregistered types fail terminally when selected.
func (q *Queue) Register(h Handler, opts ...RegisterOption) error {
	if h == nil {
		return ErrNilHandler
	}
	name := h.Name()
	if name == "" {
		return ErrHandlerNameRequired
	}

	reg := &registration{handler: h}
	for _, opt := range opts {
		opt(reg)
	}

	q.mu.Lock()
	q.handlers[name] = reg
	q.mu.Unlock()

	return nil
}

// Unregister removes the handler for a job type. Returns false when no
// handler was registered. Running jobs of that type finish normally; queued
// ones fail terminally on their next selection.
func (q *Queue) Unregister(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.handlers[name]; !ok {
		return false
	}
	delete(q.handlers, name)
	return true
}

// HandlerCount returns the number of registered handlers.
func (q *Queue) HandlerCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.handlers)
}

// On subscribes to a queue event by name (see the Event* constants) and
// returns an unsubscribe function. Subscribers run synchronously on the
// queue's goroutines, so they must return quickly and never block.
func (q *Queue) On(name string, fn event.Handler) func() {
	return q.bus.Subscribe(name, fn)
}

// OnAll subscribes to every queue event. Returns an unsubscribe function.
func (q *Queue) OnAll(fn event.Handler) func() {
	return q.bus.SubscribeAll(fn)
}

// Stats returns current queue statistics for observability and monitoring.
// This method is thread-safe and can be called at any time.
func (q *Queue) Stats() Stats {
	now := time.Now()

	q.mu.RLock()
	active := len(q.active)
	waiting, delayed, retrying := 0, 0, 0
	for _, j := range q.jobs {
		switch j.Status {
		case StatusPending:
			if j.ScheduledAt.After(now) {
				delayed++
			} else {
				waiting++
			}
		case StatusRetrying:
			retrying++
		}
	}
	var avg time.Duration
	if q.durCount > 0 {
		var sum time.Duration
		for i := range q.durCount {
			sum += q.durs[i]
		}
		avg = sum / time.Duration(q.durCount)
	}
	isRunning := q.cancel != nil
	startedAt := q.startedAt
	q.mu.RUnlock()

	completed := q.totalCompleted.Load()
	failed := q.totalFailed.Load()
	var successRate float64
	if total := completed + failed; total > 0 {
		successRate = float64(completed) / float64(total)
	}
	var uptime time.Duration
	if isRunning {
		uptime = now.Sub(startedAt)
	}

	return Stats{
		Active:            active,
		Waiting:           waiting,
		Delayed:           delayed,
		Retrying:          retrying,
		TotalAdded:        q.totalAdded.Load(),
		TotalCompleted:    completed,
		TotalFailed:       failed,
		AvgProcessingTime: avg,
		SuccessRate:       successRate,
		Uptime:            uptime,
		IsRunning:         isRunning,
	}
}

// Healthcheck validates that the queue is operational and not overloaded.
// Returns nil if healthy. The returned error can be checked with errors.Is
// against ErrQueueNotRunning and ErrQueueOverloaded.
//
// Use with health check frameworks:
//
//	healthSrv.AddCheck("job-queue", q.Healthcheck)
func (q *Queue) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stats := q.Stats()
	if !stats.IsRunning {
		return errors.Join(ErrHealthcheckFailed, ErrQueueNotRunning)
	}
	if stats.Active >= q.cfg.Concurrency {
		return errors.Join(ErrHealthcheckFailed, ErrQueueOverloaded,
			fmt.Errorf("%d/%d slots busy", stats.Active, q.cfg.Concurrency))
	}

	return nil
}

// publish dispatches events, reporting subscriber failures on the
// queue:error event. Never call while holding q.mu: subscribers run
// synchronously and may call back into the queue.
func (q *Queue) publish(ctx context.Context, events ...event.Event) {
	for _, evt := range events {
		err := q.bus.Publish(ctx, evt)
		if err == nil {
			continue
		}
		q.logger.ErrorContext(ctx, "event subscriber failed",
			slog.String("event_name", evt.Name),
			slog.String("error", err.Error()))
		if evt.Name != EventQueueError {
			_ = q.bus.Publish(ctx, event.New(EventQueueError, err.Error()))
		}
	}
}

// persist mirrors job snapshots to the configured store. Best-effort:
// failures are logged and surfaced via queue:error, never returned.
func (q *Queue) persist(ctx context.Context, snapshots ...Job) {
	if q.store == nil {
		return
	}
	for i := range snapshots {
		if err := q.store.SaveJob(ctx, &snapshots[i]); err != nil {
			q.logger.ErrorContext(ctx, "job store save failed",
				slog.String("job_id", snapshots[i].ID.String()),
				slog.String("error", err.Error()))
			q.publish(ctx, event.New(EventQueueError, fmt.Sprintf("job store save failed: %v", err)))
		}
	}
}

// checkDrainedLocked reports whether the queue just became drained: no
// active executions and no job that could start on the next tick. The
// drained flag makes the queue:drained event fire once per drain edge; it
// re-arms when a job is added, retried, or dispatched.
func (q *Queue) checkDrainedLocked(now time.Time) bool {
	if q.drained || len(q.active) > 0 {
		return false
	}
	for _, j := range q.jobs {
		if (j.Status == StatusPending || j.Status == StatusRetrying) && !j.ScheduledAt.After(now) {
			return false
		}
	}
	q.drained = true
	return true
}

// recordDurationLocked appends a successful processing duration to the
// trailing window.
func (q *Queue) recordDurationLocked(d time.Duration) {
	q.durs[q.durIndex] = d
	q.durIndex = (q.durIndex + 1) % processingTimeWindow
	if q.durCount < processingTimeWindow {
		q.durCount++
	}
}
