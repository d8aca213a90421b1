package task

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/domain/task"
)

// CreateTaskUseCase creates new open tasks.
type CreateTaskUseCase struct {
	taskRepo Repository
	deps
}

// NewCreateTaskUseCase creates the use case.
func NewCreateTaskUseCase(taskRepo Repository, opts ...Option) *CreateTaskUseCase {
	return &CreateTaskUseCase{
		taskRepo: taskRepo,
		deps:     newDeps(opts),
	}
}

// Execute validates the command and stores the task.
func (uc *CreateTaskUseCase) Execute(ctx context.Context, cmd CreateTaskCommand) (*task.Task, error) {
	created, err := uc.execute(ctx, cmd)
	uc.recorder.RecordOperation(OperationCreate, err)
	return created, err
}

func (uc *CreateTaskUseCase) execute(ctx context.Context, cmd CreateTaskCommand) (*task.Task, error) {
	if err := validateContent(cmd.Title, cmd.Description); err != nil {
		return nil, err
	}
	if cmd.CreatorID <= 0 {
		return nil, ErrInvalidUserID
	}

	t, err := task.New(cmd.Title, cmd.Description, cmd.CreatorID, uc.now())
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if createErr := uc.taskRepo.Create(ctx, t); createErr != nil {
		return nil, uc.translate(ctx, createErr, "create")
	}

	uc.logger.Info("task created",
		zap.Int64("task_id", t.ID),
		zap.Int64("creator_id", t.CreatorID),
	)

	uc.publish(ctx, task.NewCreated(t, cmd.Metadata))

	return t, nil
}
