package task

import (
	"context"

	"github.com/lllypuk/tasktracker/internal/domain/task"
)

// Filters narrows ListTasks results.
type Filters struct {
	Status *task.Status
}

// Repository stores tasks together with their tag associations.
// Implementations translate missing rows into errs.ErrNotFound and version
// mismatches into errs.ErrConcurrentModification.
type Repository interface {
	// FindAll returns tasks ordered by id.
	FindAll(ctx context.Context, filters Filters) ([]*task.Task, error)

	// FindByID returns one task with its tags.
	FindByID(ctx context.Context, id int64) (*task.Task, error)

	// Create stores a new task and assigns its id.
	Create(ctx context.Context, t *task.Task) error

	// Update stores changed fields when t.Version matches and bumps the version.
	Update(ctx context.Context, t *task.Task) error

	// Delete removes the task and its tag associations in one atomic step and
	// returns the task as it was before deletion. Tags themselves are kept.
	Delete(ctx context.Context, id int64) (*task.Task, error)
}
