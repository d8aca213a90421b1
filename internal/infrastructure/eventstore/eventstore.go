// Package eventstore keeps an append-only audit trail of domain events.
package eventstore

import (
	"context"
	"errors"
	"time"

	"github.com/lllypuk/tasktracker/internal/domain/event"
)

// ErrInvalidRecord is returned for events that cannot be recorded.
var ErrInvalidRecord = errors.New("invalid audit record")

// Record is one entry of the audit trail.
type Record struct {
	EventID       string
	EventType     string
	AggregateID   string
	AggregateType string
	Version       int
	OccurredAt    time.Time
	RecordedAt    time.Time
	Metadata      event.Metadata
	Payload       map[string]any
}

// Store persists audit records.
type Store interface {
	// Append records evt. Appending an event id that is already recorded is a no-op.
	Append(ctx context.Context, evt event.DomainEvent) error

	// History returns the records of one aggregate in the order they occurred.
	History(ctx context.Context, aggregateType, aggregateID string) ([]Record, error)
}
