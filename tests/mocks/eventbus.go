package mocks

import (
	"context"
	"sync"

	"github.com/lllypuk/tasktracker/internal/domain/event"
)

// MockEventBus records published task events and fans them out to
// subscribers synchronously.
type MockEventBus struct {
	mu        sync.Mutex
	published []event.DomainEvent
	handlers  map[string][]event.Handler
	failNext  error
}

// NewMockEventBus returns an empty bus.
func NewMockEventBus() *MockEventBus {
	return &MockEventBus{handlers: make(map[string][]event.Handler)}
}

// Publish records evt unless a failure was queued with SetFailureNext.
// A handler error is returned to the publisher.
func (b *MockEventBus) Publish(ctx context.Context, evt event.DomainEvent) error {
	b.mu.Lock()
	if err := b.failNext; err != nil {
		b.failNext = nil
		b.mu.Unlock()
		return err
	}
	b.published = append(b.published, evt)
	handlers := append([]event.Handler(nil), b.handlers[evt.EventType()]...)
	b.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers handler for eventType.
func (b *MockEventBus) Subscribe(eventType string, handler event.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// SetFailureNext makes the next Publish fail with err without recording the event.
func (b *MockEventBus) SetFailureNext(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = err
}

// PublishedCount returns how many events were accepted.
func (b *MockEventBus) PublishedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

// GetPublishedEventsByType returns the accepted events of eventType in publish order.
func (b *MockEventBus) GetPublishedEventsByType(eventType string) []event.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	var events []event.DomainEvent
	for _, evt := range b.published {
		if evt.EventType() == eventType {
			events = append(events, evt)
		}
	}
	return events
}
