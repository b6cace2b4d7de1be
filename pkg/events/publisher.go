package events

import "context"

// EventPublisher is the interface for publishing object lifecycle events.
type EventPublisher interface {
	PublishObjectEvent(ctx context.Context, event *ObjectLifecycleEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for in-process usage without events).
type NoOpPublisher struct{}

// PublishObjectEvent is a no-op.
func (p *NoOpPublisher) PublishObjectEvent(_ context.Context, _ *ObjectLifecycleEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *ObjectLifecycleEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *ObjectLifecycleEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishObjectEvent calls the callback.
func (p *CallbackPublisher) PublishObjectEvent(ctx context.Context, event *ObjectLifecycleEvent) error {
	return p.callback(ctx, event)
}
