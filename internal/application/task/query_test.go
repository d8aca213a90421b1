package task_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskapp "github.com/lllypuk/tasktracker/internal/application/task"
	"github.com/lllypuk/tasktracker/internal/domain/task"
	"github.com/lllypuk/tasktracker/tests/fixtures"
	"github.com/lllypuk/tasktracker/tests/mocks"
)

func TestGetTaskUseCase(t *testing.T) {
	repo := mocks.NewMockTaskRepository()
	repo.Seed(fixtures.LessonTask())
	useCase := taskapp.NewGetTaskUseCase(repo)

	t.Run("found", func(t *testing.T) {
		got, err := useCase.Execute(context.Background(), taskapp.GetTaskQuery{TaskID: fixtures.LessonTaskID})
		require.NoError(t, err)
		assert.Equal(t, fixtures.LessonTaskTitle, got.Title)
		require.Len(t, got.Tags, 1)
		assert.Equal(t, fixtures.LessonTagName, got.Tags[0].Name)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := useCase.Execute(context.Background(), taskapp.GetTaskQuery{TaskID: 99})
		require.ErrorIs(t, err, taskapp.ErrTaskNotFound)
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := useCase.Execute(context.Background(), taskapp.GetTaskQuery{TaskID: 0})
		require.ErrorIs(t, err, taskapp.ErrInvalidTaskID)
	})
}

func TestListTasksUseCase(t *testing.T) {
	t.Run("ordered by id", func(t *testing.T) {
		repo := mocks.NewMockTaskRepository()
		repo.Seed(fixtures.LessonTask())
		repo.Seed(fixtures.ExampleTask())
		useCase := taskapp.NewListTasksUseCase(repo)

		tasks, err := useCase.Execute(context.Background(), taskapp.ListTasksQuery{})

		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, fixtures.ExampleTaskID, tasks[0].ID)
		assert.Equal(t, fixtures.LessonTaskID, tasks[1].ID)
	})

	t.Run("empty store", func(t *testing.T) {
		useCase := taskapp.NewListTasksUseCase(mocks.NewMockTaskRepository())

		tasks, err := useCase.Execute(context.Background(), taskapp.ListTasksQuery{})

		require.NoError(t, err)
		assert.NotNil(t, tasks)
		assert.Empty(t, tasks)
	})

	t.Run("status filter", func(t *testing.T) {
		repo := mocks.NewMockTaskRepository()
		closed := fixtures.ExampleTask()
		closed.Status = task.StatusClosed
		repo.Seed(closed)
		repo.Seed(fixtures.LessonTask())
		useCase := taskapp.NewListTasksUseCase(repo)
		status := task.StatusOpen

		tasks, err := useCase.Execute(context.Background(), taskapp.ListTasksQuery{
			Filters: taskapp.Filters{Status: &status},
		})

		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, fixtures.LessonTaskID, tasks[0].ID)
	})
}
