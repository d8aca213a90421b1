package task

import (
	"github.com/lllypuk/tasktracker/internal/domain/event"
	"github.com/lllypuk/tasktracker/internal/domain/task"
)

// CreateTaskCommand creates an open task owned by CreatorID.
type CreateTaskCommand struct {
	Title       string
	Description string
	CreatorID   int64
	Metadata    event.Metadata
}

// UpdateTaskCommand replaces title and description.
type UpdateTaskCommand struct {
	TaskID      int64
	Title       string
	Description string
	Metadata    event.Metadata
}

// CloseTaskCommand resolves a task.
type CloseTaskCommand struct {
	TaskID     int64
	Resolution task.Resolution
	CloserID   int64
	Metadata   event.Metadata
}

// DeleteTaskCommand removes a task and its tag links.
type DeleteTaskCommand struct {
	TaskID   int64
	Metadata event.Metadata
}

// GetTaskQuery loads one task.
type GetTaskQuery struct {
	TaskID int64
}

// ListTasksQuery loads all tasks, optionally by status.
type ListTasksQuery struct {
	Filters Filters
}
