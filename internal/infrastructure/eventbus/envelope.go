// Package eventbus provides event bus implementations for asynchronous event delivery.
package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lllypuk/tasktracker/internal/domain/event"
)

// ErrNilEvent is returned when publishing a nil event.
var ErrNilEvent = errors.New("event cannot be nil")

// Envelope is the wire format shared by every bus implementation.
type Envelope struct {
	ID            string          `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Version       int             `json:"version"`
	Metadata      event.Metadata  `json:"metadata"`
	Payload       json.RawMessage `json:"payload"`
}

// PayloadEvent is implemented by events that carry their raw JSON payload.
type PayloadEvent interface {
	event.DomainEvent
	Payload() json.RawMessage
}

// ReceivedEvent is a DomainEvent reconstructed from an Envelope.
type ReceivedEvent struct {
	envelope Envelope
}

func (e *ReceivedEvent) EventType() string        { return e.envelope.EventType }
func (e *ReceivedEvent) AggregateID() string      { return e.envelope.AggregateID }
func (e *ReceivedEvent) AggregateType() string    { return e.envelope.AggregateType }
func (e *ReceivedEvent) OccurredAt() time.Time    { return e.envelope.OccurredAt }
func (e *ReceivedEvent) Version() int             { return e.envelope.Version }
func (e *ReceivedEvent) Metadata() event.Metadata { return e.envelope.Metadata }

// Payload returns the raw JSON payload of the event.
func (e *ReceivedEvent) Payload() json.RawMessage { return e.envelope.Payload }

// ID returns the envelope id assigned at publish time.
func (e *ReceivedEvent) ID() string { return e.envelope.ID }

// Envelope returns a copy of the envelope the event was decoded from.
func (e *ReceivedEvent) Envelope() Envelope { return e.envelope }

// NewEnvelope wraps evt for transport.
func NewEnvelope(evt event.DomainEvent) (Envelope, error) {
	if evt == nil {
		return Envelope{}, ErrNilEvent
	}

	var payload json.RawMessage
	if pe, ok := evt.(PayloadEvent); ok {
		payload = pe.Payload()
	} else {
		data, err := json.Marshal(evt)
		if err != nil {
			return Envelope{}, fmt.Errorf("failed to marshal event payload: %w", err)
		}
		payload = data
	}

	return Envelope{
		ID:            uuid.New().String(),
		EventType:     evt.EventType(),
		AggregateID:   evt.AggregateID(),
		AggregateType: evt.AggregateType(),
		OccurredAt:    evt.OccurredAt(),
		Version:       evt.Version(),
		Metadata:      evt.Metadata(),
		Payload:       payload,
	}, nil
}

// EnvelopeOf returns the envelope evt arrived in, or wraps it in a new one
// when it was produced locally.
func EnvelopeOf(evt event.DomainEvent) (Envelope, error) {
	if received, ok := evt.(*ReceivedEvent); ok {
		return received.Envelope(), nil
	}
	return NewEnvelope(evt)
}

// Encode wraps evt in an envelope and marshals it.
func Encode(evt event.DomainEvent) ([]byte, Envelope, error) {
	envelope, err := NewEnvelope(evt)
	if err != nil {
		return nil, Envelope{}, err
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, Envelope{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, envelope, nil
}

// Decode parses an envelope produced by Encode.
func Decode(data []byte) (*ReceivedEvent, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if envelope.EventType == "" {
		return nil, errors.New("event envelope has no event_type")
	}
	return &ReceivedEvent{envelope: envelope}, nil
}
