// Package repotest runs the same behaviour checks against every
// taskapp.Repository implementation.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskapp "github.com/lllypuk/tasktracker/internal/application/task"
	"github.com/lllypuk/tasktracker/internal/domain/errs"
	"github.com/lllypuk/tasktracker/internal/domain/tag"
	"github.com/lllypuk/tasktracker/internal/domain/task"
	"github.com/lllypuk/tasktracker/tests/fixtures"
)

// Setup returns a repository holding the rows of fixtures.DatasetTasks.
type Setup func(t *testing.T) taskapp.Repository

// RunTaskRepositoryTests exercises the full repository contract.
func RunTaskRepositoryTests(t *testing.T, setup Setup) {
	t.Run("FindAll", func(t *testing.T) { testFindAll(t, setup(t)) })
	t.Run("FindAllByStatus", func(t *testing.T) { testFindAllByStatus(t, setup(t)) })
	t.Run("FindByID", func(t *testing.T) { testFindByID(t, setup(t)) })
	t.Run("FindByIDMissing", func(t *testing.T) { testFindByIDMissing(t, setup(t)) })
	t.Run("Create", func(t *testing.T) { testCreate(t, setup(t)) })
	t.Run("CreateWithTags", func(t *testing.T) { testCreateWithTags(t, setup(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, setup(t)) })
	t.Run("UpdateStaleVersion", func(t *testing.T) { testUpdateStaleVersion(t, setup(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, setup(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, setup(t)) })
	t.Run("DeleteMissing", func(t *testing.T) { testDeleteMissing(t, setup(t)) })
	t.Run("DeleteTwice", func(t *testing.T) { testDeleteTwice(t, setup(t)) })
}

func testFindAll(t *testing.T, repo taskapp.Repository) {
	tasks, err := repo.FindAll(context.Background(), taskapp.Filters{})
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	AssertTaskEqual(t, fixtures.ExampleTask(), tasks[0])
	AssertTaskEqual(t, fixtures.LessonTask(), tasks[1])
}

func testFindAllByStatus(t *testing.T, repo taskapp.Repository) {
	ctx := context.Background()

	lesson, err := repo.FindByID(ctx, fixtures.LessonTaskID)
	require.NoError(t, err)
	require.NoError(t, lesson.Close(task.ResolutionDone, 2, fixtures.LessonTaskModifiedTime.Add(time.Hour)))
	require.NoError(t, repo.Update(ctx, lesson))

	closed := task.StatusClosed
	tasks, err := repo.FindAll(ctx, taskapp.Filters{Status: &closed})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, fixtures.LessonTaskID, tasks[0].ID)

	open := task.StatusOpen
	tasks, err = repo.FindAll(ctx, taskapp.Filters{Status: &open})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, fixtures.ExampleTaskID, tasks[0].ID)

	inProgress := task.StatusInProgress
	tasks, err = repo.FindAll(ctx, taskapp.Filters{Status: &inProgress})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func testFindByID(t *testing.T, repo taskapp.Repository) {
	got, err := repo.FindByID(context.Background(), fixtures.LessonTaskID)
	require.NoError(t, err)
	AssertTaskEqual(t, fixtures.LessonTask(), got)
}

func testFindByIDMissing(t *testing.T, repo taskapp.Repository) {
	_, err := repo.FindByID(context.Background(), 404)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func testCreate(t *testing.T, repo taskapp.Repository) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	created, err := task.New("Review pull request", "Check the delete handler", 2, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, created))
	assert.Greater(t, created.ID, fixtures.LessonTaskID)

	got, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Review pull request", got.Title)
	assert.Equal(t, "Check the delete handler", got.Description)
	assert.Equal(t, task.StatusOpen, got.Status)
	assert.Nil(t, got.Resolution)
	assert.Equal(t, int64(2), got.CreatorID)
	assert.Nil(t, got.AssigneeID)
	assert.Nil(t, got.CloserID)
	assert.True(t, now.Equal(got.CreationTime))
	assert.True(t, now.Equal(got.ModificationTime))
	assert.Empty(t, got.Tags)
	assert.Equal(t, 0, got.Version)
}

func testCreateWithTags(t *testing.T, repo taskapp.Repository) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	created, err := task.New("Tagged", "", fixtures.CreatorID, now)
	require.NoError(t, err)
	created.Tags = []tag.Tag{fixtures.ExampleTag(), fixtures.LessonTag()}
	require.NoError(t, repo.Create(ctx, created))

	got, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{fixtures.ExampleTagID, fixtures.LessonTagID}, got.TagIDs())
}

func testUpdate(t *testing.T, repo taskapp.Repository) {
	ctx := context.Background()
	now := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)

	lesson, err := repo.FindByID(ctx, fixtures.LessonTaskID)
	require.NoError(t, err)
	require.NoError(t, lesson.Update("Write the lesson", "Cover delete and its events", now))
	require.NoError(t, repo.Update(ctx, lesson))
	assert.Equal(t, 1, lesson.Version)

	got, err := repo.FindByID(ctx, fixtures.LessonTaskID)
	require.NoError(t, err)
	assert.Equal(t, "Write the lesson", got.Title)
	assert.Equal(t, "Cover delete and its events", got.Description)
	assert.True(t, now.Equal(got.ModificationTime))
	assert.True(t, fixtures.LessonTaskCreationTime.Equal(got.CreationTime))
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, []int64{fixtures.LessonTagID}, got.TagIDs())

	require.NoError(t, got.Close(task.ResolutionWontDo, 2, now.Add(time.Minute)))
	require.NoError(t, repo.Update(ctx, got))

	closed, err := repo.FindByID(ctx, fixtures.LessonTaskID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusClosed, closed.Status)
	require.NotNil(t, closed.Resolution)
	assert.Equal(t, task.ResolutionWontDo, *closed.Resolution)
	require.NotNil(t, closed.CloserID)
	assert.Equal(t, int64(2), *closed.CloserID)
	assert.Equal(t, 2, closed.Version)
}

func testUpdateStaleVersion(t *testing.T, repo taskapp.Repository) {
	ctx := context.Background()

	first, err := repo.FindByID(ctx, fixtures.LessonTaskID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, fixtures.LessonTaskID)
	require.NoError(t, err)

	require.NoError(t, first.Update("First writer", "", time.Now().UTC()))
	require.NoError(t, repo.Update(ctx, first))

	require.NoError(t, second.Update("Second writer", "", time.Now().UTC()))
	err = repo.Update(ctx, second)
	require.ErrorIs(t, err, errs.ErrConcurrentModification)

	got, err := repo.FindByID(ctx, fixtures.LessonTaskID)
	require.NoError(t, err)
	assert.Equal(t, "First writer", got.Title)
}

func testUpdateMissing(t *testing.T, repo taskapp.Repository) {
	missing := fixtures.LessonTask()
	missing.ID = 404
	err := repo.Update(context.Background(), missing)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func testDelete(t *testing.T, repo taskapp.Repository) {
	ctx := context.Background()

	deleted, err := repo.Delete(ctx, fixtures.LessonTaskID)
	require.NoError(t, err)
	AssertTaskEqual(t, fixtures.LessonTask(), deleted)

	_, err = repo.FindByID(ctx, fixtures.LessonTaskID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	remaining, err := repo.FindAll(ctx, taskapp.Filters{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	AssertTaskEqual(t, fixtures.ExampleTask(), remaining[0])

	// The lesson tag survives and can be linked again.
	relinked, err := task.New("Relinked", "", fixtures.CreatorID, time.Now().UTC().Truncate(time.Second))
	require.NoError(t, err)
	relinked.Tags = []tag.Tag{fixtures.LessonTag()}
	require.NoError(t, repo.Create(ctx, relinked))

	got, err := repo.FindByID(ctx, relinked.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	AssertTagEqual(t, fixtures.LessonTag(), got.Tags[0])
}

func testDeleteMissing(t *testing.T, repo taskapp.Repository) {
	_, err := repo.Delete(context.Background(), 404)
	require.ErrorIs(t, err, errs.ErrNotFound)

	tasks, err := repo.FindAll(context.Background(), taskapp.Filters{})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func testDeleteTwice(t *testing.T, repo taskapp.Repository) {
	ctx := context.Background()

	_, err := repo.Delete(ctx, fixtures.ExampleTaskID)
	require.NoError(t, err)

	_, err = repo.Delete(ctx, fixtures.ExampleTaskID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

// AssertTaskEqual compares tasks field by field, times by instant.
func AssertTaskEqual(t *testing.T, want, got *task.Task) {
	t.Helper()
	require.NotNil(t, got)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Description, got.Description)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Resolution, got.Resolution)
	assert.Equal(t, want.CreatorID, got.CreatorID)
	assert.Equal(t, want.AssigneeID, got.AssigneeID)
	assert.Equal(t, want.CloserID, got.CloserID)
	assert.True(t, want.CreationTime.Equal(got.CreationTime), "creation time %s != %s", want.CreationTime, got.CreationTime)
	assert.True(t, want.ModificationTime.Equal(got.ModificationTime), "modification time %s != %s", want.ModificationTime, got.ModificationTime)

	require.Len(t, got.Tags, len(want.Tags))
	for i := range want.Tags {
		AssertTagEqual(t, want.Tags[i], got.Tags[i])
	}
}

// AssertTagEqual compares tags, times by instant.
func AssertTagEqual(t *testing.T, want, got tag.Tag) {
	t.Helper()

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	assert.True(t, want.CreationTime.Equal(got.CreationTime))
	assert.True(t, want.ModificationTime.Equal(got.ModificationTime))
}
