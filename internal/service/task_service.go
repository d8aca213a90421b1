package service

import (
	"context"

	taskapp "github.com/lllypuk/tasktracker/internal/application/task"
	"github.com/lllypuk/tasktracker/internal/domain/task"
	httphandler "github.com/lllypuk/tasktracker/internal/handler/http"
)

// Compile-time assertion that TaskService implements httphandler.TaskService.
var _ httphandler.TaskService = (*TaskService)(nil)

// CreateTaskUseCase defines interface for use case creating task.
type CreateTaskUseCase interface {
	Execute(ctx context.Context, cmd taskapp.CreateTaskCommand) (*task.Task, error)
}

// GetTaskUseCase defines interface for use case loading task.
type GetTaskUseCase interface {
	Execute(ctx context.Context, query taskapp.GetTaskQuery) (*task.Task, error)
}

// ListTasksUseCase defines interface for use case listing tasks.
type ListTasksUseCase interface {
	Execute(ctx context.Context, query taskapp.ListTasksQuery) ([]*task.Task, error)
}

// UpdateTaskUseCase defines interface for use case updating task.
type UpdateTaskUseCase interface {
	Execute(ctx context.Context, cmd taskapp.UpdateTaskCommand) (*task.Task, error)
}

// CloseTaskUseCase defines interface for use case closing task.
type CloseTaskUseCase interface {
	Execute(ctx context.Context, cmd taskapp.CloseTaskCommand) (*task.Task, error)
}

// DeleteTaskUseCase defines interface for use case deleting task.
type DeleteTaskUseCase interface {
	Execute(ctx context.Context, cmd taskapp.DeleteTaskCommand) (*task.Task, error)
}

// TaskService implements httphandler.TaskService on top of the task use cases.
type TaskService struct {
	createUC CreateTaskUseCase
	getUC    GetTaskUseCase
	listUC   ListTasksUseCase
	updateUC UpdateTaskUseCase
	closeUC  CloseTaskUseCase
	deleteUC DeleteTaskUseCase
}

// TaskServiceConfig contains dependencies for TaskService.
type TaskServiceConfig struct {
	CreateUC CreateTaskUseCase
	GetUC    GetTaskUseCase
	ListUC   ListTasksUseCase
	UpdateUC UpdateTaskUseCase
	CloseUC  CloseTaskUseCase
	DeleteUC DeleteTaskUseCase
}

// NewTaskService creates a new TaskService.
func NewTaskService(cfg TaskServiceConfig) *TaskService {
	return &TaskService{
		createUC: cfg.CreateUC,
		getUC:    cfg.GetUC,
		listUC:   cfg.ListUC,
		updateUC: cfg.UpdateUC,
		closeUC:  cfg.CloseUC,
		deleteUC: cfg.DeleteUC,
	}
}

// CreateTask creates a new task.
func (s *TaskService) CreateTask(ctx context.Context, cmd taskapp.CreateTaskCommand) (*task.Task, error) {
	return s.createUC.Execute(ctx, cmd)
}

// GetTask returns task by ID.
func (s *TaskService) GetTask(ctx context.Context, query taskapp.GetTaskQuery) (*task.Task, error) {
	return s.getUC.Execute(ctx, query)
}

// ListTasks returns tasks ordered by ID.
func (s *TaskService) ListTasks(ctx context.Context, query taskapp.ListTasksQuery) ([]*task.Task, error) {
	return s.listUC.Execute(ctx, query)
}

// UpdateTask changes title and description.
func (s *TaskService) UpdateTask(ctx context.Context, cmd taskapp.UpdateTaskCommand) (*task.Task, error) {
	return s.updateUC.Execute(ctx, cmd)
}

// CloseTask resolves a task.
func (s *TaskService) CloseTask(ctx context.Context, cmd taskapp.CloseTaskCommand) (*task.Task, error) {
	return s.closeUC.Execute(ctx, cmd)
}

// DeleteTask deletes a task and returns it as it was before deletion.
func (s *TaskService) DeleteTask(ctx context.Context, cmd taskapp.DeleteTaskCommand) (*task.Task, error) {
	return s.deleteUC.Execute(ctx, cmd)
}

// NewTaskServiceFromRepository wires every task use case over one repository.
func NewTaskServiceFromRepository(repo taskapp.Repository, opts ...taskapp.Option) *TaskService {
	return NewTaskService(TaskServiceConfig{
		CreateUC: taskapp.NewCreateTaskUseCase(repo, opts...),
		GetUC:    taskapp.NewGetTaskUseCase(repo, opts...),
		ListUC:   taskapp.NewListTasksUseCase(repo, opts...),
		UpdateUC: taskapp.NewUpdateTaskUseCase(repo, opts...),
		CloseUC:  taskapp.NewCloseTaskUseCase(repo, opts...),
		DeleteUC: taskapp.NewDeleteTaskUseCase(repo, opts...),
	})
}
