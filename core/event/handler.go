package event

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler processes a published event. Handlers run synchronously in the
// publisher's goroutine, so they should return quickly and offload slow work.
type Handler func(ctx context.Context, e Event) error

// Payload converts an event payload to type T.
// Handles pre-typed payloads, raw JSON bytes, and map payloads produced by
// unmarshaling an Event whose payload type was erased to any.
//
// Example:
//
//	bus.Subscribe("job:completed", func(ctx context.Context, e event.Event) error {
//	    job, err := event.Payload[queue.Job](e)
//	    if err != nil {
//	        return err
//	    }
//	    return notify(ctx, job)
//	})
func Payload[T any](e Event) (T, error) {
	var zero T

	// Already the correct type
	if v, ok := e.Payload.(T); ok {
		return v, nil
	}

	// Raw JSON bytes
	if data, ok := e.Payload.([]byte); ok {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return zero, fmt.Errorf("failed to unmarshal event payload: %w", err)
		}
		return v, nil
	}

	// Map produced by JSON round-tripping an any-typed payload
	if m, ok := e.Payload.(map[string]any); ok {
		data, err := json.Marshal(m)
		if err != nil {
			return zero, fmt.Errorf("failed to marshal map payload: %w", err)
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return zero, fmt.Errorf("failed to unmarshal map payload: %w", err)
		}
		return v, nil
	}

	return zero, fmt.Errorf("unexpected payload type: %T", e.Payload)
}
