package queue

import (
	"context"

	"github.com/google/uuid"
)

// JobStore mirrors queue state to external storage. The queue remains the
// source of truth: it saves a snapshot on every job state transition and
// never blocks an operation on store failures.
//
// Implementations should return ErrJobNotFound from LoadJob when the job
// does not exist. See storage/redis and storage/postgres for ready-made
// adapters.
type JobStore interface {
	// SaveJob persists a job snapshot, replacing any previous state.
	SaveJob(ctx context.Context, job *Job) error

	// LoadJob retrieves a previously saved job by ID.
	LoadJob(ctx context.Context, id uuid.UUID) (*Job, error)
}
