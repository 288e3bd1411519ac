package queue

import (
	"context"
	"encoding/json"
)

type (
	// Handler defines the interface for job processors.
	// All handlers must implement Name() to identify the job type they serve
	// and Handle() to process the job payload. The returned value is stored
	// as the job result on successful completion.
	Handler interface {
		// Name returns the job type name used for registration and routing.
		Name() string
		// Handle processes the job with the given payload.
		// The payload is provided as raw JSON and must be unmarshaled by the handler.
		Handle(ctx context.Context, payload json.RawMessage) (any, error)
	}

	// HandlerFunc is a type-safe handler function.
	// The generic type T represents the expected payload structure.
	HandlerFunc[T any] func(ctx context.Context, payload T) (any, error)
)

// NewHandler creates a type-safe handler for an explicitly named job type.
// Use this when the job type name differs from the payload type name.
func NewHandler[T any](name string, fn HandlerFunc[T]) Handler {
	return &typedHandler[T]{
		name: name,
		fn:   fn,
	}
}

// NewHandlerFunc creates a type-safe handler whose job type name is derived
// from the payload type (e.g., "EmailPayload"). Pairs with Enqueue, which
// derives the same name from the payload value.
func NewHandlerFunc[T any](fn HandlerFunc[T]) Handler {
	var payload T
	return &typedHandler[T]{
		name: qualifiedStructName(payload),
		fn:   fn,
	}
}

type typedHandler[T any] struct {
	name string
	fn   HandlerFunc[T]
}

func (h *typedHandler[T]) Name() string {
	return h.name
}

func (h *typedHandler[T]) Handle(ctx context.Context, payload json.RawMessage) (any, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, err
	}
	return h.fn(ctx, t)
}

// Enqueue adds a job whose type name is derived from the payload type,
// mirroring NewHandlerFunc. Together they route jobs by payload type without
// naming the type twice.
//
// Example:
//
//	q.Register(queue.NewHandlerFunc(func(ctx context.Context, p EmailPayload) (any, error) {
//	    return nil, send(ctx, p)
//	}))
//
//	job, err := queue.Enqueue(ctx, q, EmailPayload{To: "user@example.com"})
func Enqueue[T any](ctx context.Context, q *Queue, payload T, opts ...AddOption) (*Job, error) {
	return q.Add(ctx, qualifiedStructName(payload), payload, opts...)
}
