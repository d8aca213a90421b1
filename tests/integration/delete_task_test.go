package integration_test

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskapp "github.com/lllypuk/tasktracker/internal/application/task"
	"github.com/lllypuk/tasktracker/internal/domain/event"
	"github.com/lllypuk/tasktracker/internal/domain/task"
	httphandler "github.com/lllypuk/tasktracker/internal/handler/http"
	"github.com/lllypuk/tasktracker/internal/infrastructure/dataset"
	"github.com/lllypuk/tasktracker/internal/infrastructure/eventbus"
	"github.com/lllypuk/tasktracker/internal/infrastructure/httpserver"
	sqliterepo "github.com/lllypuk/tasktracker/internal/infrastructure/repository/sqlite"
	"github.com/lllypuk/tasktracker/internal/service"
	"github.com/lllypuk/tasktracker/tests/fixtures"
	"github.com/lllypuk/tasktracker/tests/testutil"
	"github.com/lllypuk/tasktracker/tests/testutil/dbfixture"
)

const deletedLessonJSON = `{
	"id": 2,
	"title": "WriteLesson",
	"description": "Describe how tasks are deleted",
	"status": "OPEN",
	"resolution": null,
	"creator": 1,
	"assignee": null,
	"closer": null,
	"creationTime": "2016-12-03T11:41:00Z",
	"modificationTime": "2016-12-04T11:41:00Z",
	"tags": [{"id": 2, "name": "Lesson"}]
}`

// eventRecorder collects events delivered to a subscriber.
type eventRecorder struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (r *eventRecorder) handle(_ context.Context, evt event.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *eventRecorder) all() []event.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.DomainEvent(nil), r.events...)
}

// newTaskAPI serves the task routes backed by repo and bus.
func newTaskAPI(t *testing.T, repo taskapp.Repository, bus event.Bus) *httptest.Server {
	t.Helper()

	svc := service.NewTaskServiceFromRepository(repo, taskapp.WithEventBus(bus))

	e := echo.New()
	router := httpserver.NewRouter(e, httpserver.DefaultRouterConfig())
	router.RegisterAll(httphandler.NewTaskHandler(svc))

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server
}

func deleteTask(t *testing.T, server *httptest.Server, path string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, server.URL+path, nil)
	require.NoError(t, err)

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

// assertLessonDeleted checks the response and the database state after
// DELETE /api/task/2 on the tasks dataset.
func assertLessonDeleted(t *testing.T, db *sql.DB, resp *http.Response, body string) {
	t.Helper()

	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "application/json; charset=UTF-8", resp.Header.Get(echo.HeaderContentType))
	assert.JSONEq(t, deletedLessonJSON, body)

	for _, name := range []string{
		fixtures.DatasetDeleteTaskDeletesCorrectTask,
		fixtures.DatasetDeleteTaskDeletesTagLink,
		fixtures.DatasetDeleteTaskKeepsTags,
	} {
		t.Run(name, func(t *testing.T) {
			dbfixture.AssertNonStrict(t, db, dbfixture.MustLoad(t, fixtures.Datasets(), name))
		})
	}
}

func TestDeleteTask_SQLite(t *testing.T) {
	db := testutil.SetupTestSQLite(t)
	dbfixture.MustCleanInsert(t, db, dataset.SQLite,
		dbfixture.MustLoad(t, fixtures.Datasets(), fixtures.DatasetTasks))

	bus := eventbus.NewInMemoryEventBus()
	var got eventRecorder
	require.NoError(t, bus.Subscribe(task.EventTypeTaskDeleted, got.handle))

	server := newTaskAPI(t, sqliterepo.NewTaskRepository(db), bus)

	resp, body := deleteTask(t, server, "/api/task/2")
	assertLessonDeleted(t, db, resp, body)

	events := got.all()
	require.Len(t, events, 1)
	assert.Equal(t, "2", events[0].AggregateID())

	t.Run("second delete is not found", func(t *testing.T) {
		resp, body := deleteTask(t, server, "/api/task/2")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, body, "TASK_NOT_FOUND")
		assert.Len(t, got.all(), 1)
	})

	t.Run("malformed id", func(t *testing.T) {
		resp, body := deleteTask(t, server, "/api/task/abc")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "INVALID_TASK_ID")
	})

	t.Run("other task untouched", func(t *testing.T) {
		rows, err := dbfixture.Snapshot(context.Background(), db, "tasks", []string{"id", "title"})
		require.NoError(t, err)
		assert.Equal(t, []string{"id=1, title=" + fixtures.ExampleTaskTitle}, rows)
	})
}
