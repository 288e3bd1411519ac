// Package queue provides an in-process background job queue with
// priority-based scheduling, bounded concurrency, automatic retries with
// backoff, stalled-job recovery, and lifecycle events. Jobs live in memory
// and are owned by the queue; an optional store mirrors them to external
// storage.
//
// # Features
//
//   - Four priority levels with FIFO ordering within each level
//   - Bounded concurrency, queue-wide and per job type
//   - Automatic retries with configurable delay and attempt budget
//   - Per-attempt timeouts and cooperative cancellation
//   - Stalled-job detection that requeues or fails stuck jobs
//   - Deduplication through unique keys
//   - Lifecycle events with subscribe/unsubscribe semantics
//   - Progress reporting from inside handlers
//   - Type-safe handlers using Go generics
//   - Statistics, health checks, and graceful shutdown
//
// # Basic Usage
//
// Create a queue, register handlers, start it, and add jobs:
//
//	import "github.com/dmitrymomot/jobq/core/queue"
//
//	q := queue.New(queue.DefaultConfig())
//
//	// Define payload type
//	type EmailPayload struct {
//		To      string `json:"to"`
//		Subject string `json:"subject"`
//	}
//
//	// Register type-safe handler; the job type name is derived from the
//	// payload type ("EmailPayload")
//	q.Register(queue.NewHandlerFunc(func(ctx context.Context, email EmailPayload) (any, error) {
//		return nil, sendEmail(ctx, email.To, email.Subject)
//	}))
//
//	ctx := context.Background()
//	if err := q.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer q.Stop()
//
//	// Enqueue derives the same type name from the payload
//	job, err := queue.Enqueue(ctx, q, EmailPayload{
//		To:      "user@example.com",
//		Subject: "Welcome!",
//	})
//
// # Priorities, Delays, and Retries
//
// Add options control scheduling and failure behavior per job:
//
//	q.Add(ctx, "report", payload,
//		queue.WithPriority(queue.PriorityCritical),
//		queue.WithDelay(10*time.Minute),
//		queue.WithMaxAttempts(5),
//		queue.WithRetryDelay(30*time.Second),
//		queue.WithTimeout(2*time.Minute),
//	)
//
// WithScheduledAt pins the exact time a job becomes eligible, overriding any
// delay. Failed attempts move the job to the retrying state and back to
// pending once the retry delay elapses. A job whose attempts reach
// MaxAttempts is marked failed; Retry resets it for a fresh run.
//
// # Deduplication
//
// A unique key prevents duplicate jobs while one is still in flight:
//
//	job, _ := q.Add(ctx, "sync", payload, queue.WithUniqueKey("sync:user:42"))
//	dup, _ := q.Add(ctx, "sync", payload, queue.WithUniqueKey("sync:user:42"))
//	// dup.ID == job.ID while the first job is not terminal
//
// # Lifecycle Events
//
// Subscribe to job and queue events; every subscription returns an
// unsubscribe function:
//
//	unsubscribe := q.On(queue.EventJobFailed, func(ctx context.Context, e event.Event) error {
//		job, err := event.Payload[queue.Job](e)
//		if err != nil {
//			return err
//		}
//		alert(job.ID, job.Error)
//		return nil
//	})
//	defer unsubscribe()
//
// Subscribers run synchronously on the queue's goroutines and must not
// block. queue:drained fires once each time the queue runs out of work;
// queue:error reports subscriber and store failures.
//
// # Progress Reporting
//
// Handlers report progress through their context:
//
//	q.Register(queue.NewHandler("import", func(ctx context.Context, p ImportPayload) (any, error) {
//		for i, chunk := range p.Chunks {
//			if err := importChunk(ctx, chunk); err != nil {
//				return nil, err
//			}
//			queue.UpdateProgress(ctx, (i+1)*100/len(p.Chunks))
//		}
//		return len(p.Chunks), nil
//	}))
//
// # Stalled Jobs
//
// A processing job that neither finishes nor fails within twice the stalled
// check interval is considered stalled: its slot is reclaimed and the job is
// requeued, up to a combined budget of MaxStalledRetries plus the job's
// MaxAttempts, after which it fails terminally. This recovers jobs whose
// handlers hang without cooperating with cancellation.
//
// # Persistence
//
// The queue state is in-memory. Attach a JobStore to mirror every state
// transition to external storage for inspection or post-restart recovery:
//
//	store := redis.NewStore(client)
//	q := queue.New(cfg, queue.WithJobStore(store))
//
// Persistence is best-effort and never fails queue operations.
//
// # Graceful Shutdown
//
// Stop waits for running jobs up to the shutdown timeout; handlers are not
// interrupted. For errgroup-managed applications use Run:
//
//	g, ctx := errgroup.WithContext(context.Background())
//	g.Go(q.Run(ctx))
package queue
