package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/jobq/core/queue"
)

// querier is the subset of pgx operations the store needs. Both
// *pgxpool.Pool and pgx.Tx satisfy it, which lets store methods participate
// in a caller-managed transaction via WithTx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists job snapshots in a PostgreSQL table. It implements
// queue.JobStore, so it can be attached with queue.WithJobStore to mirror
// every job state transition for inspection or post-restart recovery.
//
// Jobs are stored in the jobq_jobs table created by Migrate. Each SaveJob
// call upserts the full snapshot; concurrent saves for different jobs never
// contend beyond row locks.
type Store struct {
	pool *pgxpool.Pool
}

var _ queue.JobStore = (*Store)(nil)

// NewStore creates a job store backed by the given connection pool. Run
// Migrate first to create the schema.
//
//	pool, err := postgres.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := postgres.Migrate(ctx, pool, cfg, logger); err != nil {
//		log.Fatal(err)
//	}
//	q := queue.New(queue.DefaultConfig(), queue.WithJobStore(postgres.NewStore(pool)))
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// db returns the transaction carried by ctx, or the pool when there is none.
func (s *Store) db(ctx context.Context) querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return s.pool
}

// SaveJob upserts a job snapshot, replacing any previously stored state.
// The job type and creation time are written once and never updated.
func (s *Store) SaveJob(ctx context.Context, job *queue.Job) error {
	const q = `
		INSERT INTO jobq_jobs (
			id, job_type, priority, payload, status,
			attempts, max_attempts, retry_delay_ms, timeout_ms, unique_key,
			progress, result, error, metadata,
			scheduled_at, started_at, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			priority = EXCLUDED.priority,
			payload = EXCLUDED.payload,
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			max_attempts = EXCLUDED.max_attempts,
			retry_delay_ms = EXCLUDED.retry_delay_ms,
			timeout_ms = EXCLUDED.timeout_ms,
			unique_key = EXCLUDED.unique_key,
			progress = EXCLUDED.progress,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			metadata = EXCLUDED.metadata,
			scheduled_at = EXCLUDED.scheduled_at,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`

	result, err := marshalJSON(job.Result)
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(job.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db(ctx).Exec(ctx, q,
		job.ID, job.Type, job.Priority, job.Payload, job.Status,
		job.Attempts, job.MaxAttempts, job.RetryDelay.Milliseconds(), job.Timeout.Milliseconds(), job.UniqueKey,
		job.Progress, result, job.Error, metadata,
		job.ScheduledAt, job.StartedAt, job.CompletedAt, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

// LoadJob retrieves a previously saved job by ID. Returns
// queue.ErrJobNotFound when no such job exists.
func (s *Store) LoadJob(ctx context.Context, id uuid.UUID) (*queue.Job, error) {
	const q = `
		SELECT id, job_type, priority, payload, status,
			attempts, max_attempts, retry_delay_ms, timeout_ms, unique_key,
			progress, result, error, metadata,
			scheduled_at, started_at, completed_at, created_at, updated_at
		FROM jobq_jobs
		WHERE id = $1`

	job, err := scanJob(s.db(ctx).QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, queue.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// LoadJobsByStatus retrieves all saved jobs in the given status, ordered by
// creation time. Useful after a restart to find jobs that were pending or
// processing when the previous process stopped.
func (s *Store) LoadJobsByStatus(ctx context.Context, status queue.Status) ([]*queue.Job, error) {
	const q = `
		SELECT id, job_type, priority, payload, status,
			attempts, max_attempts, retry_delay_ms, timeout_ms, unique_key,
			progress, result, error, metadata,
			scheduled_at, started_at, completed_at, created_at, updated_at
		FROM jobq_jobs
		WHERE status = $1
		ORDER BY created_at`

	rows, err := s.db(ctx).Query(ctx, q, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*queue.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteJob removes a saved job. Deleting a job that does not exist is not
// an error.
func (s *Store) DeleteJob(ctx context.Context, id uuid.UUID) error {
	_, err := s.db(ctx).Exec(ctx, `DELETE FROM jobq_jobs WHERE id = $1`, id)
	return err
}

// scanJob maps one row of the jobq_jobs column list to a job. Works for
// both QueryRow results and iterated Query rows.
func scanJob(row pgx.Row) (*queue.Job, error) {
	var (
		j            queue.Job
		retryDelayMs int64
		timeoutMs    int64
		result       json.RawMessage
		metadata     json.RawMessage
	)
	err := row.Scan(
		&j.ID, &j.Type, &j.Priority, &j.Payload, &j.Status,
		&j.Attempts, &j.MaxAttempts, &retryDelayMs, &timeoutMs, &j.UniqueKey,
		&j.Progress, &result, &j.Error, &metadata,
		&j.ScheduledAt, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.RetryDelay = time.Duration(retryDelayMs) * time.Millisecond
	j.Timeout = time.Duration(timeoutMs) * time.Millisecond

	if len(result) > 0 {
		var v any
		if err := json.Unmarshal(result, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedToUnmarshalJob, err)
		}
		j.Result = v
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &j.Metadata); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedToUnmarshalJob, err)
		}
	}
	return &j, nil
}

// marshalJSON converts a value to its JSONB representation. Nil values and
// nil maps become SQL NULL rather than the JSON literal null.
func marshalJSON(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]string); ok && m == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToMarshalJob, err)
	}
	return b, nil
}
