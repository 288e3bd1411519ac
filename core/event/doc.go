// Package event provides a synchronous in-process event bus for lifecycle
// notifications. Subscribers are registered per event name or as wildcards,
// and every Subscribe call returns an unsubscribe function.
//
// Dispatch happens in the publisher's goroutine: delivery order is
// deterministic, and a failing or panicking subscriber is isolated, logged,
// and reported without affecting the others.
//
// # Basic Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//
//	unsubscribe := bus.Subscribe("job:completed", func(ctx context.Context, e event.Event) error {
//		job, err := event.Payload[queue.Job](e)
//		if err != nil {
//			return err
//		}
//		logger.Info("job finished", "job_id", job.ID)
//		return nil
//	})
//	defer unsubscribe()
//
//	if err := bus.Publish(ctx, event.New("job:completed", job)); err != nil {
//		logger.Error("some subscribers failed", "error", err)
//	}
//
// Use SubscribeAll to observe every event, e.g. for audit logging or metrics:
//
//	bus.SubscribeAll(func(ctx context.Context, e event.Event) error {
//		metrics.Count(e.Name)
//		return nil
//	})
package event
