package event

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Bus is a synchronous in-process event bus. Publish dispatches the event to
// every matching subscriber in the caller's goroutine, so delivery is
// deterministic and ordered: named subscribers run first in registration
// order, then wildcard subscribers.
//
// A panicking or failing subscriber never affects the others; its error is
// logged, counted, and aggregated into the Publish return value.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]subscription
	wildcard []subscription
	nextID   uint64

	logger *slog.Logger

	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

type subscription struct {
	id uint64
	fn Handler
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger for subscriber failures. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// BusStats provides observability metrics for monitoring and debugging.
type BusStats struct {
	Subscriptions int   // Current number of active subscriptions
	Published     int64 // Total events published
	Delivered     int64 // Total successful handler invocations
	Failed        int64 // Total handler invocations that returned an error or panicked
}

// NewBus creates a new synchronous event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		handlers: make(map[string][]subscription),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscribe registers a handler for events with the given name and returns an
// unsubscribe function. Calling unsubscribe more than once is a no-op.
// A nil handler returns a no-op unsubscribe without registering anything.
func (b *Bus) Subscribe(name string, fn Handler) func() {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.handlers[name] = removeSubscription(b.handlers[name], id)
			if len(b.handlers[name]) == 0 {
				delete(b.handlers, name)
			}
		})
	}
}

// SubscribeAll registers a handler invoked for every published event,
// regardless of name. Returns an unsubscribe function.
func (b *Bus) SubscribeAll(fn Handler) func() {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.wildcard = append(b.wildcard, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.wildcard = removeSubscription(b.wildcard, id)
		})
	}
}

// Publish dispatches the event synchronously to all matching subscribers.
// Subscriber errors are aggregated via errors.Join; a nil return means every
// subscriber succeeded. Panics are recovered and converted to errors.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.published.Add(1)

	b.mu.RLock()
	subs := make([]subscription, 0, len(b.handlers[e.Name])+len(b.wildcard))
	subs = append(subs, b.handlers[e.Name]...)
	subs = append(subs, b.wildcard...)
	b.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if err := b.invoke(ctx, sub, e); err != nil {
			b.failed.Add(1)
			b.logger.ErrorContext(ctx, "event handler failed",
				slog.String("event_id", e.ID),
				slog.String("event_name", e.Name),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("handler for %q failed: %w", e.Name, err))
			continue
		}
		b.delivered.Add(1)
	}

	return errors.Join(errs...)
}

// invoke runs a single subscriber with panic recovery.
func (b *Bus) invoke(ctx context.Context, sub subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.fn(ctx, e)
}

// Stats returns a snapshot of bus metrics.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	count := len(b.wildcard)
	for _, subs := range b.handlers {
		count += len(subs)
	}
	b.mu.RUnlock()

	return BusStats{
		Subscriptions: count,
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		Failed:        b.failed.Load(),
	}
}

func removeSubscription(subs []subscription, id uint64) []subscription {
	for i, sub := range subs {
		if sub.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
