package queue_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/jobq/core/queue"
)

func TestNewHandler(t *testing.T) {
	t.Parallel()

	t.Run("handles typed payload", func(t *testing.T) {
		t.Parallel()

		h := queue.NewHandler("greet", func(ctx context.Context, p testPayload) (any, error) {
			return "hello " + p.Message, nil
		})
		assert.Equal(t, "greet", h.Name())

		result, err := h.Handle(context.Background(), json.RawMessage(`{"message":"world","value":1}`))
		require.NoError(t, err)
		assert.Equal(t, "hello world", result)
	})

	t.Run("returns unmarshal errors", func(t *testing.T) {
		t.Parallel()

		h := queue.NewHandler("greet", func(ctx context.Context, p testPayload) (any, error) {
			return nil, nil
		})

		_, err := h.Handle(context.Background(), json.RawMessage(`{broken`))
		require.Error(t, err)
	})
}

func TestNewHandlerFunc(t *testing.T) {
	t.Parallel()

	h := queue.NewHandlerFunc(func(ctx context.Context, p testPayload) (any, error) {
		return p.Value, nil
	})
	assert.Equal(t, "queue_test.testPayload", h.Name(), "name derives from the payload type")

	hp := queue.NewHandlerFunc(func(ctx context.Context, p *testPayload) (any, error) {
		return nil, nil
	})
	assert.Equal(t, "queue_test.testPayload", hp.Name(), "pointer payloads share the value type name")
}

func TestEnqueue(t *testing.T) {
	t.Parallel()

	q := queue.New(fastConfig())
	ctx := context.Background()

	processed := make(chan testPayload, 1)
	require.NoError(t, q.Register(queue.NewHandlerFunc(func(ctx context.Context, p testPayload) (any, error) {
		processed <- p
		return nil, nil
	})))

	require.NoError(t, q.Start(ctx))
	defer func() { _ = q.Stop() }()

	job, err := queue.Enqueue(ctx, q, testPayload{Message: "routed"}, queue.WithPriority(queue.PriorityHigh))
	require.NoError(t, err)
	assert.Equal(t, "queue_test.testPayload", job.Type)
	assert.Equal(t, queue.PriorityHigh, job.Priority)

	select {
	case p := <-processed:
		assert.Equal(t, "routed", p.Message)
	case <-time.After(2 * time.Second):
		t.Fatalf("enqueued job not routed to the derived handler. Stats: %+v", q.Stats())
	}
}
