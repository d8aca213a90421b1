//go:build integration

package eventstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/tasktracker/internal/domain/event"
	"github.com/lllypuk/tasktracker/internal/domain/task"
	"github.com/lllypuk/tasktracker/internal/infrastructure/eventbus"
	"github.com/lllypuk/tasktracker/internal/infrastructure/eventstore"
	"github.com/lllypuk/tasktracker/internal/infrastructure/mongodb"
	"github.com/lllypuk/tasktracker/tests/fixtures"
	"github.com/lllypuk/tasktracker/tests/testutil"
)

func setupMongoStore(t *testing.T) *eventstore.MongoStore {
	t.Helper()

	db := testutil.SetupTestMongoDB(t)
	require.NoError(t, mongodb.CreateAllIndexes(context.Background(), db))
	return eventstore.NewMongoStore(db)
}

func TestMongoStore_AppendAndHistory(t *testing.T) {
	store := setupMongoStore(t)
	ctx := context.Background()
	metadata := event.NewMetadata("1", "req-9")

	require.NoError(t, store.Append(ctx, task.NewCreated(fixtures.LessonTask(), metadata)))
	require.NoError(t, store.Append(ctx, task.NewDeleted(fixtures.LessonTask(), metadata)))
	require.NoError(t, store.Append(ctx, task.NewCreated(fixtures.ExampleTask(), metadata)))

	history, err := store.History(ctx, task.AggregateType, "2")
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, task.EventTypeTaskCreated, history[0].EventType)
	assert.Equal(t, task.EventTypeTaskDeleted, history[1].EventType)
	assert.Equal(t, "req-9", history[1].Metadata.RequestID)
	assert.Equal(t, fixtures.LessonTaskTitle, history[1].Payload["title"])
}

func TestMongoStore_RedeliveryRecordedOnce(t *testing.T) {
	store := setupMongoStore(t)
	ctx := context.Background()

	data, envelope, err := eventbus.Encode(task.NewDeleted(fixtures.LessonTask(), event.Metadata{}))
	require.NoError(t, err)

	for range 2 {
		received, decodeErr := eventbus.Decode(data)
		require.NoError(t, decodeErr)
		require.NoError(t, store.Append(ctx, received))
	}

	history, err := store.History(ctx, task.AggregateType, "2")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, envelope.ID, history[0].EventID)
}
