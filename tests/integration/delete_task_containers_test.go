//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/tasktracker/internal/domain/task"
	"github.com/lllypuk/tasktracker/internal/infrastructure/dataset"
	"github.com/lllypuk/tasktracker/internal/infrastructure/eventbus"
	pgrepo "github.com/lllypuk/tasktracker/internal/infrastructure/repository/postgres"
	sqliterepo "github.com/lllypuk/tasktracker/internal/infrastructure/repository/sqlite"
	"github.com/lllypuk/tasktracker/tests/fixtures"
	"github.com/lllypuk/tasktracker/tests/testutil"
	"github.com/lllypuk/tasktracker/tests/testutil/dbfixture"
)

const (
	busWait = 10 * time.Second
	busTick = 20 * time.Millisecond
)

func TestDeleteTask_Postgres_RedisBus(t *testing.T) {
	pool, db := testutil.SetupTestPostgresSchema(t)
	dbfixture.MustCleanInsert(t, db, dataset.Postgres,
		dbfixture.MustLoad(t, fixtures.Datasets(), fixtures.DatasetTasks))

	client, prefix := testutil.SetupTestRedisWithPrefix(t)
	bus := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix(prefix))

	var got eventRecorder
	require.NoError(t, bus.Subscribe(task.EventTypeTaskDeleted, got.handle))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = bus.Start(ctx) }()
	t.Cleanup(func() { _ = bus.Shutdown() })

	require.Eventually(t, bus.IsRunning, busWait, busTick)
	time.Sleep(100 * time.Millisecond)

	server := newTaskAPI(t, pgrepo.NewTaskRepository(pool), bus)

	resp, body := deleteTask(t, server, "/api/task/2")
	assertLessonDeleted(t, db, resp, body)

	require.Eventually(t, func() bool { return len(got.all()) == 1 }, busWait, busTick)
	assert.Equal(t, "2", got.all()[0].AggregateID())
}

func TestDeleteTask_SQLite_AMQPBus(t *testing.T) {
	db := testutil.SetupTestSQLite(t)
	dbfixture.MustCleanInsert(t, db, dataset.SQLite,
		dbfixture.MustLoad(t, fixtures.Datasets(), fixtures.DatasetTasks))

	bus, err := eventbus.NewAMQPEventBus(testutil.SetupTestRabbitMQ(t), "tasks-"+t.Name())
	require.NoError(t, err)

	var got eventRecorder
	require.NoError(t, bus.Subscribe(task.EventTypeTaskDeleted, got.handle))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = bus.Start(ctx) }()
	t.Cleanup(func() { _ = bus.Shutdown() })

	require.Eventually(t, bus.IsRunning, busWait, busTick)
	time.Sleep(200 * time.Millisecond)

	server := newTaskAPI(t, sqliterepo.NewTaskRepository(db), bus)

	resp, body := deleteTask(t, server, "/api/task/2")
	assertLessonDeleted(t, db, resp, body)

	require.Eventually(t, func() bool { return len(got.all()) == 1 }, busWait, busTick)
	evt := got.all()[0]
	assert.Equal(t, task.EventTypeTaskDeleted, evt.EventType())
	assert.Equal(t, "2", evt.AggregateID())
}
