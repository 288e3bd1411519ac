package queue_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/jobq/core/event"
	"github.com/dmitrymomot/jobq/core/queue"
)

// Test payload types
type testPayload struct {
	Message string `json:"message"`
	Value   int    `json:"value"`
}

// MockJobStore is a mock implementation of JobStore
type MockJobStore struct {
	mock.Mock
}

func (m *MockJobStore) SaveJob(ctx context.Context, job *queue.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobStore) LoadJob(ctx context.Context, id uuid.UUID) (*queue.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Job), args.Error(1)
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("zero config falls back to defaults", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.Config{})
		require.NotNil(t, q)

		job, err := q.Add(context.Background(), "test", testPayload{Message: "hi"})
		require.NoError(t, err)
		assert.Equal(t, 3, job.MaxAttempts)
		assert.Equal(t, 5*time.Second, job.RetryDelay)
		assert.Equal(t, 5*time.Minute, job.Timeout)
	})

	t.Run("ignores nil option values", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig(),
			queue.WithLogger(nil),
			queue.WithEventBus(nil),
			queue.WithJobStore(nil))
		require.NotNil(t, q)

		_, err := q.Add(context.Background(), "test", nil)
		require.NoError(t, err)
	})
}

func TestQueue_Add(t *testing.T) {
	t.Parallel()

	t.Run("creates pending job with defaults", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())

		before := time.Now()
		job, err := q.Add(context.Background(), "email", testPayload{Message: "welcome", Value: 1})
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, job.ID)
		assert.Equal(t, "email", job.Type)
		assert.Equal(t, queue.PriorityNormal, job.Priority)
		assert.Equal(t, queue.StatusPending, job.Status)
		assert.Equal(t, 0, job.Attempts)
		assert.Equal(t, 0, job.Progress)
		assert.Empty(t, job.Error)
		assert.Nil(t, job.StartedAt)
		assert.Nil(t, job.CompletedAt)
		assert.JSONEq(t, `{"message":"welcome","value":1}`, string(job.Payload))
		assert.False(t, job.CreatedAt.Before(before))
		assert.False(t, job.ScheduledAt.After(time.Now()))
	})

	t.Run("empty type is rejected", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())
		_, err := q.Add(context.Background(), "", testPayload{})
		require.ErrorIs(t, err, queue.ErrJobTypeRequired)
	})

	t.Run("unmarshalable payload is rejected", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())
		_, err := q.Add(context.Background(), "test", make(chan int))
		require.ErrorIs(t, err, queue.ErrInvalidPayload)
	})

	t.Run("applies add options", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())

		job, err := q.Add(context.Background(), "report", testPayload{},
			queue.WithPriority(queue.PriorityCritical),
			queue.WithDelay(time.Hour),
			queue.WithMaxAttempts(7),
			queue.WithRetryDelay(time.Minute),
			queue.WithTimeout(90*time.Second),
			queue.WithMetadata(map[string]string{"tenant": "acme"}),
		)
		require.NoError(t, err)

		assert.Equal(t, queue.PriorityCritical, job.Priority)
		assert.Equal(t, 7, job.MaxAttempts)
		assert.Equal(t, time.Minute, job.RetryDelay)
		assert.Equal(t, 90*time.Second, job.Timeout)
		assert.Equal(t, map[string]string{"tenant": "acme"}, job.Metadata)
		assert.WithinDuration(t, job.CreatedAt.Add(time.Hour), job.ScheduledAt, time.Second)
	})

	t.Run("invalid priority keeps default", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())
		job, err := q.Add(context.Background(), "test", nil, queue.WithPriority(queue.Priority("urgent")))
		require.NoError(t, err)
		assert.Equal(t, queue.PriorityNormal, job.Priority)
	})

	t.Run("explicit scheduled time overrides delay", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())
		at := time.Now().Add(10 * time.Minute)

		job, err := q.Add(context.Background(), "test", nil,
			queue.WithScheduledAt(at),
			queue.WithDelay(time.Hour),
		)
		require.NoError(t, err)
		assert.True(t, job.ScheduledAt.Equal(at), "delay must not displace the explicit time")

		job, err = q.Add(context.Background(), "test", nil,
			queue.WithDelay(time.Hour),
			queue.WithScheduledAt(at),
		)
		require.NoError(t, err)
		assert.True(t, job.ScheduledAt.Equal(at), "option order must not matter")
	})

	t.Run("emits job:added and counts it", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())

		var added []queue.Job
		q.On(queue.EventJobAdded, func(ctx context.Context, e event.Event) error {
			j, err := event.Payload[queue.Job](e)
			if err != nil {
				return err
			}
			added = append(added, j)
			return nil
		})

		job, err := q.Add(context.Background(), "test", testPayload{Message: "x"})
		require.NoError(t, err)

		require.Len(t, added, 1)
		assert.Equal(t, job.ID, added[0].ID)
		assert.Equal(t, int64(1), q.Stats().TotalAdded)
	})

	t.Run("returned snapshot is independent", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())

		job, err := q.Add(context.Background(), "test", nil,
			queue.WithMetadata(map[string]string{"k": "v"}))
		require.NoError(t, err)

		job.Metadata["k"] = "mutated"
		job.Status = queue.StatusFailed

		stored, err := q.GetJob(job.ID)
		require.NoError(t, err)
		assert.Equal(t, "v", stored.Metadata["k"])
		assert.Equal(t, queue.StatusPending, stored.Status)
	})
}

func TestQueue_Add_UniqueKey(t *testing.T) {
	t.Parallel()

	t.Run("returns existing non-terminal job", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())
		ctx := context.Background()

		first, err := q.Add(ctx, "sync", testPayload{Value: 1}, queue.WithUniqueKey("sync:42"))
		require.NoError(t, err)

		dup, err := q.Add(ctx, "sync", testPayload{Value: 2}, queue.WithUniqueKey("sync:42"))
		require.NoError(t, err)

		assert.Equal(t, first.ID, dup.ID)
		assert.JSONEq(t, `{"message":"","value":1}`, string(dup.Payload), "existing job must be unchanged")
		assert.Equal(t, int64(1), q.Stats().TotalAdded, "duplicate must not count as added")
	})

	t.Run("duplicate emits no event", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())
		ctx := context.Background()

		var added atomic.Int32
		q.On(queue.EventJobAdded, func(ctx context.Context, e event.Event) error {
			added.Add(1)
			return nil
		})

		_, err := q.Add(ctx, "sync", nil, queue.WithUniqueKey("k"))
		require.NoError(t, err)
		_, err = q.Add(ctx, "sync", nil, queue.WithUniqueKey("k"))
		require.NoError(t, err)

		assert.Equal(t, int32(1), added.Load())
	})

	t.Run("terminal job releases the key", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())
		ctx := context.Background()

		first, err := q.Add(ctx, "sync", nil, queue.WithUniqueKey("k"))
		require.NoError(t, err)
		require.True(t, q.Cancel(ctx, first.ID))

		second, err := q.Add(ctx, "sync", nil, queue.WithUniqueKey("k"))
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("remove releases the key", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())
		ctx := context.Background()

		first, err := q.Add(ctx, "sync", nil, queue.WithUniqueKey("k"))
		require.NoError(t, err)
		require.True(t, q.Remove(ctx, first.ID))

		second, err := q.Add(ctx, "sync", nil, queue.WithUniqueKey("k"))
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})
}

func TestQueue_GetJob(t *testing.T) {
	t.Parallel()

	q := queue.New(queue.DefaultConfig())

	job, err := q.Add(context.Background(), "test", testPayload{Message: "find-me"})
	require.NoError(t, err)

	got, err := q.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "test", got.Type)

	_, err = q.GetJob(uuid.New())
	require.ErrorIs(t, err, queue.ErrJobNotFound)
}

func TestQueue_GetJobsBy(t *testing.T) {
	t.Parallel()

	q := queue.New(queue.DefaultConfig())
	ctx := context.Background()

	a, err := q.Add(ctx, "email", nil)
	require.NoError(t, err)
	b, err := q.Add(ctx, "report", nil)
	require.NoError(t, err)
	c, err := q.Add(ctx, "email", nil)
	require.NoError(t, err)
	require.True(t, q.Cancel(ctx, c.ID))

	t.Run("by status", func(t *testing.T) {
		pending := q.GetJobsByStatus(queue.StatusPending)
		ids := make([]uuid.UUID, 0, len(pending))
		for _, j := range pending {
			ids = append(ids, j.ID)
		}
		assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, ids)

		cancelled := q.GetJobsByStatus(queue.StatusCancelled)
		require.Len(t, cancelled, 1)
		assert.Equal(t, c.ID, cancelled[0].ID)

		assert.Empty(t, q.GetJobsByStatus(queue.StatusCompleted))
	})

	t.Run("by type", func(t *testing.T) {
		emails := q.GetJobsByType("email")
		ids := make([]uuid.UUID, 0, len(emails))
		for _, j := range emails {
			ids = append(ids, j.ID)
		}
		assert.ElementsMatch(t, []uuid.UUID{a.ID, c.ID}, ids)

		assert.Empty(t, q.GetJobsByType("unknown"))
	})
}

func TestQueue_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("cancels pending job", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())
		ctx := context.Background()

		var cancelled atomic.Int32
		q.On(queue.EventJobCancelled, func(ctx context.Context, e event.Event) error {
			cancelled.Add(1)
			return nil
		})

		job, err := q.Add(ctx, "test", nil)
		require.NoError(t, err)

		assert.True(t, q.Cancel(ctx, job.ID))
		got, err := q.GetJob(job.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusCancelled, got.Status)
		assert.Equal(t, int32(1), cancelled.Load())
	})

	t.Run("terminal and unknown jobs return false", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())
		ctx := context.Background()

		job, err := q.Add(ctx, "test", nil)
		require.NoError(t, err)

		require.True(t, q.Cancel(ctx, job.ID))
		assert.False(t, q.Cancel(ctx, job.ID), "already cancelled")
		assert.False(t, q.Cancel(ctx, uuid.New()), "unknown job")
	})
}

func TestQueue_Retry_Preconditions(t *testing.T) {
	t.Parallel()

	q := queue.New(queue.DefaultConfig())
	ctx := context.Background()

	job, err := q.Add(ctx, "test", nil)
	require.NoError(t, err)

	assert.False(t, q.Retry(ctx, job.ID), "pending job is not retryable")
	assert.False(t, q.Retry(ctx, uuid.New()), "unknown job")

	require.True(t, q.Cancel(ctx, job.ID))
	assert.False(t, q.Retry(ctx, job.ID), "cancelled job is not retryable")
}

func TestQueue_Remove(t *testing.T) {
	t.Parallel()

	q := queue.New(queue.DefaultConfig())
	ctx := context.Background()

	job, err := q.Add(ctx, "test", nil)
	require.NoError(t, err)

	assert.True(t, q.Remove(ctx, job.ID))
	_, err = q.GetJob(job.ID)
	require.ErrorIs(t, err, queue.ErrJobNotFound)

	assert.False(t, q.Remove(ctx, job.ID), "already removed")
}

func TestQueue_Clear(t *testing.T) {
	t.Parallel()

	t.Run("clears everything by default", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())
		ctx := context.Background()

		for range 3 {
			_, err := q.Add(ctx, "test", nil)
			require.NoError(t, err)
		}

		assert.Equal(t, 3, q.Clear(ctx))
		assert.Empty(t, q.GetJobsByType("test"))
		assert.Equal(t, 0, q.Clear(ctx), "second clear finds nothing")
	})

	t.Run("clears only matching statuses", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())
		ctx := context.Background()

		keep, err := q.Add(ctx, "test", nil)
		require.NoError(t, err)
		gone, err := q.Add(ctx, "test", nil)
		require.NoError(t, err)
		require.True(t, q.Cancel(ctx, gone.ID))

		assert.Equal(t, 1, q.Clear(ctx, queue.StatusCancelled))

		_, err = q.GetJob(keep.ID)
		require.NoError(t, err)
		_, err = q.GetJob(gone.ID)
		require.ErrorIs(t, err, queue.ErrJobNotFound)
	})

	t.Run("releases unique keys", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())
		ctx := context.Background()

		first, err := q.Add(ctx, "test", nil, queue.WithUniqueKey("k"))
		require.NoError(t, err)
		require.Equal(t, 1, q.Clear(ctx))

		second, err := q.Add(ctx, "test", nil, queue.WithUniqueKey("k"))
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("resets unique keys even under a status filter", func(t *testing.T) {
		t.Parallel()

		q := queue.New(queue.DefaultConfig())
		ctx := context.Background()

		survivor, err := q.Add(ctx, "test", nil, queue.WithUniqueKey("k"))
		require.NoError(t, err)
		cancelled, err := q.Add(ctx, "test", nil)
		require.NoError(t, err)
		require.True(t, q.Cancel(ctx, cancelled.ID))

		// The filter spares the keyed job, but the key map reset is global.
		require.Equal(t, 1, q.Clear(ctx, queue.StatusCancelled))

		fresh, err := q.Add(ctx, "test", nil, queue.WithUniqueKey("k"))
		require.NoError(t, err)
		assert.NotEqual(t, survivor.ID, fresh.ID, "cleared key no longer dedups against the survivor")
	})
}

func TestQueue_RegisterUnregister(t *testing.T) {
	t.Parallel()

	q := queue.New(queue.DefaultConfig())

	require.ErrorIs(t, q.Register(nil), queue.ErrNilHandler)
	require.ErrorIs(t, q.Register(queue.NewHandler("", func(ctx context.Context, p testPayload) (any, error) {
		return nil, nil
	})), queue.ErrHandlerNameRequired)

	handler := queue.NewHandler("email", func(ctx context.Context, p testPayload) (any, error) {
		return nil, nil
	})
	require.NoError(t, q.Register(handler))
	assert.Equal(t, 1, q.HandlerCount())

	// Registering the same type replaces the previous handler.
	require.NoError(t, q.Register(handler))
	assert.Equal(t, 1, q.HandlerCount())

	assert.True(t, q.Unregister("email"))
	assert.False(t, q.Unregister("email"))
	assert.Equal(t, 0, q.HandlerCount())
}

func TestQueue_Stats_Counting(t *testing.T) {
	t.Parallel()

	q := queue.New(queue.DefaultConfig())
	ctx := context.Background()

	stats := q.Stats()
	assert.False(t, stats.IsRunning)
	assert.Zero(t, stats.Uptime)
	assert.Zero(t, stats.SuccessRate)

	_, err := q.Add(ctx, "test", nil)
	require.NoError(t, err)
	_, err = q.Add(ctx, "test", nil, queue.WithDelay(time.Hour))
	require.NoError(t, err)

	stats = q.Stats()
	assert.Equal(t, 1, stats.Waiting)
	assert.Equal(t, 1, stats.Delayed)
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, int64(2), stats.TotalAdded)
}

func TestQueue_Healthcheck_NotRunning(t *testing.T) {
	t.Parallel()

	q := queue.New(queue.DefaultConfig())

	err := q.Healthcheck(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, queue.ErrHealthcheckFailed)
	assert.ErrorIs(t, err, queue.ErrQueueNotRunning)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, q.Healthcheck(cancelled), context.Canceled)
}

func TestQueue_JobStore(t *testing.T) {
	t.Parallel()

	t.Run("saves job on add", func(t *testing.T) {
		t.Parallel()

		store := new(MockJobStore)
		store.On("SaveJob", mock.Anything, mock.AnythingOfType("*queue.Job")).Return(nil).Once()

		q := queue.New(queue.DefaultConfig(), queue.WithJobStore(store))

		job, err := q.Add(context.Background(), "test", testPayload{Message: "persist"})
		require.NoError(t, err)

		store.AssertExpectations(t)
		saved := store.Calls[0].Arguments.Get(1).(*queue.Job)
		assert.Equal(t, job.ID, saved.ID)
		assert.Equal(t, queue.StatusPending, saved.Status)
	})

	t.Run("store failure is reported, not returned", func(t *testing.T) {
		t.Parallel()

		store := new(MockJobStore)
		store.On("SaveJob", mock.Anything, mock.Anything).Return(assert.AnError)

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		q := queue.New(queue.DefaultConfig(), queue.WithJobStore(store), queue.WithLogger(logger))

		var errEvents atomic.Int32
		q.On(queue.EventQueueError, func(ctx context.Context, e event.Event) error {
			errEvents.Add(1)
			return nil
		})

		_, err := q.Add(context.Background(), "test", nil)
		require.NoError(t, err, "persistence is best-effort")
		assert.Equal(t, int32(1), errEvents.Load())
	})
}

func TestQueue_On_Unsubscribe(t *testing.T) {
	t.Parallel()

	q := queue.New(queue.DefaultConfig())
	ctx := context.Background()

	var count atomic.Int32
	unsubscribe := q.On(queue.EventJobAdded, func(ctx context.Context, e event.Event) error {
		count.Add(1)
		return nil
	})

	_, err := q.Add(ctx, "test", nil)
	require.NoError(t, err)
	unsubscribe()
	unsubscribe() // idempotent
	_, err = q.Add(ctx, "test", nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), count.Load())
}

func TestQueue_OnAll(t *testing.T) {
	t.Parallel()

	q := queue.New(queue.DefaultConfig())
	ctx := context.Background()

	var names []string
	q.OnAll(func(ctx context.Context, e event.Event) error {
		names = append(names, e.Name)
		return nil
	})

	job, err := q.Add(ctx, "test", nil)
	require.NoError(t, err)
	require.True(t, q.Cancel(ctx, job.ID))

	assert.Equal(t, []string{queue.EventJobAdded, queue.EventJobCancelled}, names)
}
