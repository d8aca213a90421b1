package eventstore

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/lllypuk/tasktracker/internal/domain/event"
	"github.com/lllypuk/tasktracker/internal/infrastructure/eventbus"
)

// RecordDocument is the MongoDB representation of a Record.
type RecordDocument struct {
	ID bson.ObjectID `bson:"_id,omitempty"`

	EventID       string         `bson:"event_id"`
	EventType     string         `bson:"event_type"`
	AggregateID   string         `bson:"aggregate_id"`
	AggregateType string         `bson:"aggregate_type"`
	Version       int            `bson:"version"`
	OccurredAt    time.Time      `bson:"occurred_at"`
	RecordedAt    time.Time      `bson:"recorded_at"`
	Metadata      event.Metadata `bson:"metadata"`
	Payload       bson.M         `bson:"payload,omitempty"`
}

// NewRecord builds the audit record of evt. Events that came over the bus
// keep their envelope id.
func NewRecord(evt event.DomainEvent, recordedAt time.Time) (Record, error) {
	envelope, err := eventbus.EnvelopeOf(evt)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	var payload map[string]any
	if len(envelope.Payload) > 0 {
		if err = json.Unmarshal(envelope.Payload, &payload); err != nil {
			return Record{}, fmt.Errorf("%w: payload is not a JSON object: %w", ErrInvalidRecord, err)
		}
	}

	return Record{
		EventID:       envelope.ID,
		EventType:     envelope.EventType,
		AggregateID:   envelope.AggregateID,
		AggregateType: envelope.AggregateType,
		Version:       envelope.Version,
		OccurredAt:    envelope.OccurredAt.UTC(),
		RecordedAt:    recordedAt.UTC(),
		Metadata:      envelope.Metadata,
		Payload:       payload,
	}, nil
}

func toDocument(r Record) *RecordDocument {
	return &RecordDocument{
		EventID:       r.EventID,
		EventType:     r.EventType,
		AggregateID:   r.AggregateID,
		AggregateType: r.AggregateType,
		Version:       r.Version,
		OccurredAt:    r.OccurredAt,
		RecordedAt:    r.RecordedAt,
		Metadata:      r.Metadata,
		Payload:       bson.M(r.Payload),
	}
}

func fromDocument(doc *RecordDocument) Record {
	return Record{
		EventID:       doc.EventID,
		EventType:     doc.EventType,
		AggregateID:   doc.AggregateID,
		AggregateType: doc.AggregateType,
		Version:       doc.Version,
		OccurredAt:    doc.OccurredAt.UTC(),
		RecordedAt:    doc.RecordedAt.UTC(),
		Metadata:      doc.Metadata,
		Payload:       map[string]any(doc.Payload),
	}
}
