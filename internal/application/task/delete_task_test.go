package task_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	taskapp "github.com/lllypuk/tasktracker/internal/application/task"
	"github.com/lllypuk/tasktracker/internal/domain/event"
	"github.com/lllypuk/tasktracker/internal/domain/task"
	"github.com/lllypuk/tasktracker/internal/logger"
	"github.com/lllypuk/tasktracker/tests/fixtures"
	"github.com/lllypuk/tasktracker/tests/mocks"
)

func TestDeleteTaskUseCase_Success(t *testing.T) {
	// Arrange
	repo := mocks.NewMockTaskRepository()
	repo.Seed(fixtures.ExampleTask())
	repo.Seed(fixtures.LessonTask())
	bus := mocks.NewMockEventBus()
	useCase := taskapp.NewDeleteTaskUseCase(repo, taskapp.WithEventBus(bus))

	// Act
	deleted, err := useCase.Execute(context.Background(), taskapp.DeleteTaskCommand{
		TaskID:   fixtures.LessonTaskID,
		Metadata: event.NewMetadata("1", "req-1"),
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, fixtures.LessonTaskID, deleted.ID)
	assert.Equal(t, fixtures.LessonTaskTitle, deleted.Title)
	assert.Equal(t, fixtures.LessonTaskDescription, deleted.Description)
	assert.Equal(t, task.StatusOpen, deleted.Status)
	assert.Nil(t, deleted.Resolution)
	assert.Equal(t, fixtures.LessonTaskCreationTime, deleted.CreationTime)
	assert.Equal(t, fixtures.LessonTaskModifiedTime, deleted.ModificationTime)
	require.Len(t, deleted.Tags, 1)
	assert.Equal(t, fixtures.LessonTagID, deleted.Tags[0].ID)
	assert.Equal(t, fixtures.LessonTagName, deleted.Tags[0].Name)

	assert.False(t, repo.Exists(fixtures.LessonTaskID))
	assert.True(t, repo.Exists(fixtures.ExampleTaskID))
	assert.Equal(t, 2, repo.TagCount())

	events := bus.GetPublishedEventsByType(task.EventTypeTaskDeleted)
	require.Len(t, events, 1)
	evt, ok := events[0].(*task.Deleted)
	require.True(t, ok, "Expected *task.Deleted event")
	assert.Equal(t, fixtures.LessonTaskID, evt.TaskID)
	assert.Equal(t, []int64{fixtures.LessonTagID}, evt.TagIDs)
	assert.Equal(t, "2", evt.AggregateID())
	assert.Equal(t, "req-1", evt.Metadata().RequestID)
}

func TestDeleteTaskUseCase_InvalidID(t *testing.T) {
	repo := mocks.NewMockTaskRepository()
	useCase := taskapp.NewDeleteTaskUseCase(repo)

	for _, id := range []int64{0, -1} {
		_, err := useCase.Execute(context.Background(), taskapp.DeleteTaskCommand{TaskID: id})
		require.ErrorIs(t, err, taskapp.ErrInvalidTaskID)
	}
	assert.Equal(t, 0, repo.CallCount("Delete"))
}

func TestDeleteTaskUseCase_NotFound(t *testing.T) {
	repo := mocks.NewMockTaskRepository()
	repo.Seed(fixtures.ExampleTask())
	bus := mocks.NewMockEventBus()
	useCase := taskapp.NewDeleteTaskUseCase(repo, taskapp.WithEventBus(bus))

	_, err := useCase.Execute(context.Background(), taskapp.DeleteTaskCommand{TaskID: 42})

	require.ErrorIs(t, err, taskapp.ErrTaskNotFound)
	assert.True(t, repo.Exists(fixtures.ExampleTaskID))
	assert.Equal(t, 0, bus.PublishedCount())
}

func TestDeleteTaskUseCase_DeleteTwice(t *testing.T) {
	repo := mocks.NewMockTaskRepository()
	repo.Seed(fixtures.LessonTask())
	useCase := taskapp.NewDeleteTaskUseCase(repo)
	cmd := taskapp.DeleteTaskCommand{TaskID: fixtures.LessonTaskID}

	_, err := useCase.Execute(context.Background(), cmd)
	require.NoError(t, err)

	_, err = useCase.Execute(context.Background(), cmd)
	require.ErrorIs(t, err, taskapp.ErrTaskNotFound)
}

func TestDeleteTaskUseCase_RepositoryError(t *testing.T) {
	repo := mocks.NewMockTaskRepository()
	repo.Seed(fixtures.LessonTask())
	storageErr := errors.New("connection reset")
	repo.SetFailureNext(storageErr)
	useCase := taskapp.NewDeleteTaskUseCase(repo)

	_, err := useCase.Execute(context.Background(), taskapp.DeleteTaskCommand{TaskID: fixtures.LessonTaskID})

	require.ErrorIs(t, err, storageErr)
	assert.Contains(t, err.Error(), "failed to delete task")
	assert.True(t, repo.Exists(fixtures.LessonTaskID))
}

func TestDeleteTaskUseCase_RepositoryErrorIsLogged(t *testing.T) {
	repo := mocks.NewMockTaskRepository()
	repo.Seed(fixtures.LessonTask())
	repo.SetFailureNext(errors.New("sql: database is closed"))
	core, logs := observer.New(zap.InfoLevel)
	useCase := taskapp.NewDeleteTaskUseCase(repo, taskapp.WithLogger(zap.New(core)))
	ctx := logger.ContextWithRequestID(context.Background(), "req-500")

	_, err := useCase.Execute(ctx, taskapp.DeleteTaskCommand{TaskID: fixtures.LessonTaskID})

	require.Error(t, err)
	entries := logs.FilterMessage("task storage operation failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-500", fields["request_id"])
	assert.Equal(t, "delete", fields["action"])
	assert.Equal(t, "sql: database is closed", fields["error"])
}

func TestDeleteTaskUseCase_ExpectedErrorsAreNotLogged(t *testing.T) {
	repo := mocks.NewMockTaskRepository()
	core, logs := observer.New(zap.DebugLevel)
	useCase := taskapp.NewDeleteTaskUseCase(repo, taskapp.WithLogger(zap.New(core)))

	_, err := useCase.Execute(context.Background(), taskapp.DeleteTaskCommand{TaskID: 404})

	require.ErrorIs(t, err, taskapp.ErrTaskNotFound)
	assert.Zero(t, logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func TestDeleteTaskUseCase_PublishFailureDoesNotFail(t *testing.T) {
	repo := mocks.NewMockTaskRepository()
	repo.Seed(fixtures.LessonTask())
	bus := mocks.NewMockEventBus()
	bus.SetFailureNext(errors.New("bus down"))
	recorder := &recorderSpy{}
	useCase := taskapp.NewDeleteTaskUseCase(repo,
		taskapp.WithEventBus(bus),
		taskapp.WithRecorder(recorder),
	)

	deleted, err := useCase.Execute(context.Background(), taskapp.DeleteTaskCommand{TaskID: fixtures.LessonTaskID})

	require.NoError(t, err)
	assert.Equal(t, fixtures.LessonTaskID, deleted.ID)
	assert.False(t, repo.Exists(fixtures.LessonTaskID))
	assert.Equal(t, []string{"delete:ok"}, recorder.operations)
	assert.Equal(t, []string{"task.deleted:error"}, recorder.events)
}

type recorderSpy struct {
	operations []string
	events     []string
}

func (r *recorderSpy) RecordOperation(operation string, err error) {
	r.operations = append(r.operations, operation+":"+outcome(err))
}

func (r *recorderSpy) RecordEventPublished(eventType string, err error) {
	r.events = append(r.events, eventType+":"+outcome(err))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
