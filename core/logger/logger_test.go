package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/jobq/core/logger"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json output with attached attributes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithJSONFormatter(),
			logger.WithOutput(&buf),
			logger.WithAttr(slog.String("service", "worker")),
		)

		log.Info("test message", logger.Component("test"))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "test message", record["msg"])
		assert.Equal(t, "worker", record["service"])
		assert.Equal(t, "test", record["component"])
	})

	t.Run("level filters records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithLevel(slog.LevelWarn),
		)

		log.Info("dropped")
		log.Warn("kept")

		output := buf.String()
		assert.NotContains(t, output, "dropped")
		assert.Contains(t, output, "kept")
	})

	t.Run("development preset logs debug as text", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithDevelopment("jobq"),
			logger.WithOutput(&buf),
		)

		log.Debug("verbose detail")

		output := buf.String()
		assert.Contains(t, output, "verbose detail")
		assert.Contains(t, output, "app=jobq")
	})

	t.Run("production preset drops debug and emits json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithProduction("jobq"),
			logger.WithOutput(&buf),
		)

		log.Debug("hidden")
		log.Info("visible")

		output := buf.String()
		assert.NotContains(t, output, "hidden")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "visible", record["msg"])
		assert.Equal(t, "jobq", record["app"])
	})
}

func TestContextExtraction(t *testing.T) {
	t.Parallel()

	type requestIDKey struct{}

	t.Run("injects context values", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithJSONFormatter(),
			logger.WithOutput(&buf),
			logger.WithContextValue("request_id", requestIDKey{}),
		)

		ctx := context.WithValue(context.Background(), requestIDKey{}, "req-123")
		log.InfoContext(ctx, "processing")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "req-123", record["request_id"])
	})

	t.Run("skips absent context values", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithJSONFormatter(),
			logger.WithOutput(&buf),
			logger.WithContextValue("request_id", requestIDKey{}),
		)

		log.InfoContext(context.Background(), "processing")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.NotContains(t, record, "request_id")
	})

	t.Run("custom extractors run per record", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithJSONFormatter(),
			logger.WithOutput(&buf),
			logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
				return slog.String("tenant", "acme"), true
			}),
		)

		log.InfoContext(context.Background(), "processing")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "acme", record["tenant"])
	})
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	t.Run("error helpers are nil safe", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, slog.Attr{}, logger.Error(nil))
		assert.Equal(t, slog.Attr{}, logger.Errors(nil, nil))

		err := errors.New("boom")
		attr := logger.Error(err)
		assert.Equal(t, "error", attr.Key)

		grouped := logger.Errors(nil, err)
		assert.Equal(t, "errors", grouped.Key)
		require.Len(t, grouped.Value.Group(), 1)
		assert.Equal(t, "1", grouped.Value.Group()[0].Key, "index keys preserve error positions")
	})

	t.Run("job helpers use stable keys", func(t *testing.T) {
		t.Parallel()

		id := uuid.New()
		assert.Equal(t, "job_id", logger.JobID(id).Key)
		assert.Equal(t, id.String(), logger.JobID(id).Value.String())
		assert.Equal(t, "job_type", logger.JobType("email").Key)
		assert.Equal(t, "attempt", logger.Attempt(2).Key)
		assert.Equal(t, int64(2), logger.Attempt(2).Value.Int64())
		assert.Equal(t, "status", logger.Status("processing").Key)
		assert.Equal(t, "retry_count", logger.RetryCount(3).Key)
	})

	t.Run("generic helpers guard nil values", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, slog.Attr{}, logger.ID("user_id", nil))
		assert.Equal(t, slog.Attr{}, logger.Key("meta", nil))
		assert.Equal(t, "user_id", logger.ID("user_id", 42).Key)
		assert.Equal(t, "component", logger.Component("queue").Key)
		assert.Equal(t, "event", logger.Event("startup").Key)
		assert.Equal(t, int64(7), logger.Count("jobs", 7).Value.Int64())
	})

	t.Run("stack and caller capture locations", func(t *testing.T) {
		t.Parallel()

		stack := logger.Stack()
		assert.Equal(t, "stack", stack.Key)
		assert.Contains(t, stack.Value.String(), "goroutine")

		caller := logger.Caller()
		assert.Equal(t, "caller", caller.Key)
		assert.Contains(t, caller.Value.String(), "logger_test.go")
	})
}
