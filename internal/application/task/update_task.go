package task

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/domain/errs"
	"github.com/lllypuk/tasktracker/internal/domain/task"
)

// UpdateTaskUseCase changes title and description.
type UpdateTaskUseCase struct {
	taskRepo Repository
	deps
}

// NewUpdateTaskUseCase creates the use case.
func NewUpdateTaskUseCase(taskRepo Repository, opts ...Option) *UpdateTaskUseCase {
	return &UpdateTaskUseCase{
		taskRepo: taskRepo,
		deps:     newDeps(opts),
	}
}

// Execute loads, modifies and stores the task.
func (uc *UpdateTaskUseCase) Execute(ctx context.Context, cmd UpdateTaskCommand) (*task.Task, error) {
	t, err := uc.execute(ctx, cmd)
	uc.recorder.RecordOperation(OperationUpdate, err)
	return t, err
}

func (uc *UpdateTaskUseCase) execute(ctx context.Context, cmd UpdateTaskCommand) (*task.Task, error) {
	if err := validateTaskID(cmd.TaskID); err != nil {
		return nil, err
	}
	if err := validateContent(cmd.Title, cmd.Description); err != nil {
		return nil, err
	}

	t, err := uc.taskRepo.FindByID(ctx, cmd.TaskID)
	if err != nil {
		return nil, uc.translate(ctx, err, "find")
	}

	if updateErr := t.Update(cmd.Title, cmd.Description, uc.now()); updateErr != nil {
		return nil, fmt.Errorf("validation failed: %w", updateErr)
	}

	if saveErr := uc.taskRepo.Update(ctx, t); saveErr != nil {
		return nil, uc.translate(ctx, saveErr, "update")
	}

	uc.logger.Info("task updated", zap.Int64("task_id", t.ID), zap.Int("version", t.Version))

	uc.publish(ctx, task.NewUpdated(t, cmd.Metadata))

	return t, nil
}

// CloseTaskUseCase resolves a task.
type CloseTaskUseCase struct {
	taskRepo Repository
	deps
}

// NewCloseTaskUseCase creates the use case.
func NewCloseTaskUseCase(taskRepo Repository, opts ...Option) *CloseTaskUseCase {
	return &CloseTaskUseCase{
		taskRepo: taskRepo,
		deps:     newDeps(opts),
	}
}

// Execute closes the task with the given resolution.
func (uc *CloseTaskUseCase) Execute(ctx context.Context, cmd CloseTaskCommand) (*task.Task, error) {
	t, err := uc.execute(ctx, cmd)
	uc.recorder.RecordOperation(OperationClose, err)
	return t, err
}

func (uc *CloseTaskUseCase) execute(ctx context.Context, cmd CloseTaskCommand) (*task.Task, error) {
	if err := validateTaskID(cmd.TaskID); err != nil {
		return nil, err
	}
	if !cmd.Resolution.IsValid() {
		return nil, ErrInvalidResolution
	}
	if cmd.CloserID <= 0 {
		return nil, ErrInvalidUserID
	}

	t, err := uc.taskRepo.FindByID(ctx, cmd.TaskID)
	if err != nil {
		return nil, uc.translate(ctx, err, "find")
	}

	if closeErr := t.Close(cmd.Resolution, cmd.CloserID, uc.now()); closeErr != nil {
		if errors.Is(closeErr, errs.ErrInvalidState) {
			return nil, ErrTaskAlreadyClosed
		}
		return nil, fmt.Errorf("validation failed: %w", closeErr)
	}

	if saveErr := uc.taskRepo.Update(ctx, t); saveErr != nil {
		return nil, uc.translate(ctx, saveErr, "close")
	}

	uc.logger.Info("task closed",
		zap.Int64("task_id", t.ID),
		zap.String("resolution", string(cmd.Resolution)),
	)

	uc.publish(ctx, task.NewClosed(t, cmd.Metadata))

	return t, nil
}
