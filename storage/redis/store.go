package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/jobq/core/queue"
)

// Store persists queue jobs as JSON values in Redis, one key per job.
// It implements queue.JobStore.
type Store struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

var _ queue.JobStore = (*Store)(nil)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKeyPrefix overrides the default "jobq:job:" key prefix.
func WithKeyPrefix(prefix string) StoreOption {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithJobTTL expires stored jobs after ttl. Zero keeps jobs until deleted.
func WithJobTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewStore creates a job store on top of an established Redis client.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	q := queue.New(queue.DefaultConfig(), queue.WithJobStore(redis.NewStore(client)))
func NewStore(client *goredis.Client, opts ...StoreOption) *Store {
	s := &Store{
		client: client,
		prefix: "jobq:job:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveJob writes the job snapshot, replacing any previous value for the
// same job ID.
func (s *Store) SaveJob(ctx context.Context, job *queue.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToMarshalJob, err)
	}
	return s.client.Set(ctx, s.key(job.ID), data, s.ttl).Err()
}

// LoadJob reads a job by ID. Returns queue.ErrJobNotFound when the key does
// not exist or has expired.
func (s *Store) LoadJob(ctx context.Context, id uuid.UUID) (*queue.Job, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, queue.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	var job queue.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToUnmarshalJob, err)
	}
	return &job, nil
}

// DeleteJob removes a stored job. Deleting a missing job is not an error.
func (s *Store) DeleteJob(ctx context.Context, id uuid.UUID) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *Store) key(id uuid.UUID) string {
	return s.prefix + id.String()
}
