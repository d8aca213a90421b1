// Package event defines domain events and the bus they are published on.
package event

import (
	"context"
	"time"
)

// DomainEvent is something that happened to an aggregate.
type DomainEvent interface {
	// EventType returns the routing name, e.g. "task.deleted".
	EventType() string

	// AggregateID returns the id of the aggregate the event belongs to.
	AggregateID() string

	// AggregateType returns the aggregate kind, e.g. "Task".
	AggregateType() string

	// OccurredAt returns when the event happened.
	OccurredAt() time.Time

	// Version returns the aggregate version after the change.
	Version() int

	// Metadata returns request-scoped data attached to the event.
	Metadata() Metadata
}

// Bus publishes domain events.
type Bus interface {
	Publish(ctx context.Context, event DomainEvent) error
}

// Handler consumes a delivered event.
type Handler func(ctx context.Context, event DomainEvent) error

// Subscriber registers handlers for event types.
type Subscriber interface {
	Subscribe(eventType string, handler Handler) error
}
