package eventbus

import (
	"context"

	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/domain/event"
)

// InMemoryEventBus delivers events synchronously inside the process. Events
// go through the same envelope encoding as the network buses so handlers
// observe identical payloads.
type InMemoryEventBus struct {
	*dispatcher
}

// NewInMemoryEventBus creates an in-process bus.
func NewInMemoryEventBus(opts ...Option) *InMemoryEventBus {
	return &InMemoryEventBus{dispatcher: newDispatcher(newOptions(opts))}
}

// Publish runs the subscribed handlers before returning. Handler failures
// are logged and retried but never reported to the publisher.
func (b *InMemoryEventBus) Publish(ctx context.Context, evt event.DomainEvent) error {
	data, envelope, err := Encode(evt)
	if err != nil {
		return err
	}

	received, err := Decode(data)
	if err != nil {
		return err
	}

	b.logger.Debug("event published",
		zap.String("event_id", envelope.ID),
		zap.String("event_type", envelope.EventType),
		zap.String("aggregate_id", envelope.AggregateID),
	)

	_ = b.dispatchSync(ctx, received)
	return nil
}

// Start blocks until ctx is cancelled. It exists so the in-memory bus can be
// run the same way as the network buses.
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Shutdown is a no-op.
func (b *InMemoryEventBus) Shutdown() error {
	return nil
}

// Ping always succeeds.
func (b *InMemoryEventBus) Ping(context.Context) error {
	return nil
}
