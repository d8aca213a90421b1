package task_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskapp "github.com/lllypuk/tasktracker/internal/application/task"
	"github.com/lllypuk/tasktracker/internal/domain/task"
	"github.com/lllypuk/tasktracker/tests/fixtures"
	"github.com/lllypuk/tasktracker/tests/mocks"
)

var fixedNow = time.Date(2016, 12, 3, 11, 41, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestCreateTaskUseCase_Success(t *testing.T) {
	// Arrange
	repo := mocks.NewMockTaskRepository()
	bus := mocks.NewMockEventBus()
	useCase := taskapp.NewCreateTaskUseCase(repo,
		taskapp.WithEventBus(bus),
		taskapp.WithClock(clock),
	)

	cmd := fixtures.NewCreateTaskCommandBuilder().
		WithTitle("  Write lesson  ").
		WithDescription("about deletes").
		Build()

	// Act
	created, err := useCase.Execute(context.Background(), cmd)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "Write lesson", created.Title)
	assert.Equal(t, "about deletes", created.Description)
	assert.Equal(t, task.StatusOpen, created.Status)
	assert.Nil(t, created.Resolution)
	assert.Nil(t, created.AssigneeID)
	assert.Nil(t, created.CloserID)
	assert.Equal(t, fixedNow, created.CreationTime)
	assert.Equal(t, fixedNow, created.ModificationTime)
	assert.Empty(t, created.Tags)
	assert.True(t, repo.Exists(1))

	events := bus.GetPublishedEventsByType(task.EventTypeTaskCreated)
	require.Len(t, events, 1)
	evt, ok := events[0].(*task.Created)
	require.True(t, ok, "Expected *task.Created event")
	assert.Equal(t, int64(1), evt.TaskID)
	assert.Equal(t, fixtures.CreatorID, evt.CreatorID)
}

func TestCreateTaskUseCase_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		cmd     taskapp.CreateTaskCommand
		wantErr error
	}{
		{
			name:    "empty title",
			cmd:     fixtures.NewCreateTaskCommandBuilder().WithTitle("   ").Build(),
			wantErr: taskapp.ErrEmptyTitle,
		},
		{
			name:    "title too long",
			cmd:     fixtures.NewCreateTaskCommandBuilder().WithTitle(strings.Repeat("a", task.MaxTitleLength+1)).Build(),
			wantErr: taskapp.ErrTitleTooLong,
		},
		{
			name:    "description too long",
			cmd:     fixtures.NewCreateTaskCommandBuilder().WithDescription(strings.Repeat("d", task.MaxDescriptionLength+1)).Build(),
			wantErr: taskapp.ErrDescriptionTooLong,
		},
		{
			name:    "missing creator",
			cmd:     fixtures.NewCreateTaskCommandBuilder().WithCreator(0).Build(),
			wantErr: taskapp.ErrInvalidUserID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockTaskRepository()
			useCase := taskapp.NewCreateTaskUseCase(repo)

			_, err := useCase.Execute(context.Background(), tt.cmd)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, repo.CallCount("Create"))
		})
	}
}

func TestCreateTaskUseCase_WithoutBus(t *testing.T) {
	repo := mocks.NewMockTaskRepository()
	useCase := taskapp.NewCreateTaskUseCase(repo)

	created, err := useCase.Execute(context.Background(), fixtures.NewCreateTaskCommandBuilder().Build())

	require.NoError(t, err)
	assert.Equal(t, created.CreationTime, created.CreationTime.Truncate(time.Second))
	assert.Equal(t, time.UTC, created.CreationTime.Location())
}
