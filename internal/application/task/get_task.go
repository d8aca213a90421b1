package task

import (
	"context"

	"github.com/lllypuk/tasktracker/internal/domain/task"
)

// GetTaskUseCase loads one task.
type GetTaskUseCase struct {
	taskRepo Repository
	deps
}

// NewGetTaskUseCase creates the use case.
func NewGetTaskUseCase(taskRepo Repository, opts ...Option) *GetTaskUseCase {
	return &GetTaskUseCase{
		taskRepo: taskRepo,
		deps:     newDeps(opts),
	}
}

// Execute returns the task with its tags.
func (uc *GetTaskUseCase) Execute(ctx context.Context, query GetTaskQuery) (*task.Task, error) {
	t, err := uc.execute(ctx, query)
	uc.recorder.RecordOperation(OperationGet, err)
	return t, err
}

func (uc *GetTaskUseCase) execute(ctx context.Context, query GetTaskQuery) (*task.Task, error) {
	if err := validateTaskID(query.TaskID); err != nil {
		return nil, err
	}

	t, err := uc.taskRepo.FindByID(ctx, query.TaskID)
	if err != nil {
		return nil, uc.translate(ctx, err, "find")
	}
	return t, nil
}

// ListTasksUseCase loads every task.
type ListTasksUseCase struct {
	taskRepo Repository
	deps
}

// NewListTasksUseCase creates the use case.
func NewListTasksUseCase(taskRepo Repository, opts ...Option) *ListTasksUseCase {
	return &ListTasksUseCase{
		taskRepo: taskRepo,
		deps:     newDeps(opts),
	}
}

// Execute returns tasks ordered by id. An empty store yields an empty slice.
func (uc *ListTasksUseCase) Execute(ctx context.Context, query ListTasksQuery) ([]*task.Task, error) {
	tasks, err := uc.taskRepo.FindAll(ctx, query.Filters)
	uc.recorder.RecordOperation(OperationList, err)
	if err != nil {
		return nil, uc.translate(ctx, err, "list")
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	return tasks, nil
}
