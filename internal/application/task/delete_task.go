package task

import (
	"context"

	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/domain/task"
)

// DeleteTaskUseCase deletes a task together with its tag associations.
type DeleteTaskUseCase struct {
	taskRepo Repository
	deps
}

// NewDeleteTaskUseCase creates the use case.
func NewDeleteTaskUseCase(taskRepo Repository, opts ...Option) *DeleteTaskUseCase {
	return &DeleteTaskUseCase{
		taskRepo: taskRepo,
		deps:     newDeps(opts),
	}
}

// Execute deletes the task and returns it as it was before deletion,
// tags included. Tag entities are never removed.
func (uc *DeleteTaskUseCase) Execute(ctx context.Context, cmd DeleteTaskCommand) (*task.Task, error) {
	deleted, err := uc.execute(ctx, cmd)
	uc.recorder.RecordOperation(OperationDelete, err)
	return deleted, err
}

func (uc *DeleteTaskUseCase) execute(ctx context.Context, cmd DeleteTaskCommand) (*task.Task, error) {
	if err := validateTaskID(cmd.TaskID); err != nil {
		return nil, err
	}

	deleted, err := uc.taskRepo.Delete(ctx, cmd.TaskID)
	if err != nil {
		return nil, uc.translate(ctx, err, "delete")
	}

	uc.logger.Info("task deleted",
		zap.Int64("task_id", deleted.ID),
		zap.Int("tag_count", len(deleted.Tags)),
		zap.String("request_id", cmd.Metadata.RequestID),
	)

	uc.publish(ctx, task.NewDeleted(deleted, cmd.Metadata))

	return deleted, nil
}
