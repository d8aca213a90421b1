package eventstore_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/tasktracker/internal/domain/event"
	"github.com/lllypuk/tasktracker/internal/domain/task"
	"github.com/lllypuk/tasktracker/internal/infrastructure/eventbus"
	"github.com/lllypuk/tasktracker/internal/infrastructure/eventstore"
	"github.com/lllypuk/tasktracker/tests/fixtures"
)

type rawPayloadEvent struct {
	event.BaseEvent

	payload json.RawMessage
}

func (e rawPayloadEvent) Payload() json.RawMessage { return e.payload }

func TestNewRecord_LocalEvent(t *testing.T) {
	recordedAt := time.Date(2016, 12, 5, 10, 0, 0, 0, time.UTC)
	deleted := task.NewDeleted(fixtures.LessonTask(), event.NewMetadata("1", "req-1"))

	record, err := eventstore.NewRecord(deleted, recordedAt)
	require.NoError(t, err)

	assert.NotEmpty(t, record.EventID)
	assert.Equal(t, task.EventTypeTaskDeleted, record.EventType)
	assert.Equal(t, "2", record.AggregateID)
	assert.Equal(t, task.AggregateType, record.AggregateType)
	assert.Equal(t, recordedAt, record.RecordedAt)
	assert.Equal(t, "1", record.Metadata.UserID)
	assert.Equal(t, "req-1", record.Metadata.RequestID)
	assert.Equal(t, fixtures.LessonTaskTitle, record.Payload["title"])
}

func TestNewRecord_KeepsEnvelopeID(t *testing.T) {
	data, envelope, err := eventbus.Encode(task.NewCreated(fixtures.ExampleTask(), event.Metadata{}))
	require.NoError(t, err)

	received, err := eventbus.Decode(data)
	require.NoError(t, err)

	record, err := eventstore.NewRecord(received, time.Now())
	require.NoError(t, err)
	assert.Equal(t, envelope.ID, record.EventID)
	assert.Equal(t, "1", record.AggregateID)
}

func TestNewRecord_InvalidPayload(t *testing.T) {
	evt := rawPayloadEvent{
		BaseEvent: event.NewBaseEvent("task.created", "1", task.AggregateType, 1, event.Metadata{}),
		payload:   json.RawMessage(`[1,2,3]`),
	}

	_, err := eventstore.NewRecord(evt, time.Now())
	assert.ErrorIs(t, err, eventstore.ErrInvalidRecord)
}

func TestNewRecord_NilEvent(t *testing.T) {
	_, err := eventstore.NewRecord(nil, time.Now())
	assert.ErrorIs(t, err, eventstore.ErrInvalidRecord)
}
