package fixtures

import (
	"time"

	taskapp "github.com/lllypuk/tasktracker/internal/application/task"
	"github.com/lllypuk/tasktracker/internal/domain/tag"
	"github.com/lllypuk/tasktracker/internal/domain/task"
)

// Rows seeded by DatasetTasks.
const (
	ExampleTaskID    int64 = 1
	ExampleTaskTitle       = "Write example application"

	LessonTaskID          int64 = 2
	LessonTaskTitle             = "WriteLesson"
	LessonTaskDescription       = "Describe how tasks are deleted"

	CreatorID int64 = 1

	ExampleTagID   int64 = 1
	ExampleTagName       = "Example"
	LessonTagID    int64 = 2
	LessonTagName        = "Lesson"
)

// Timestamps seeded by DatasetTasks.
var (
	TagCreationTime         = time.Date(2016, 12, 3, 11, 40, 0, 0, time.UTC)
	LessonTaskCreationTime  = time.Date(2016, 12, 3, 11, 41, 0, 0, time.UTC)
	LessonTaskModifiedTime  = time.Date(2016, 12, 4, 11, 41, 0, 0, time.UTC)
	ExampleTaskCreationTime = TagCreationTime
)

// LessonTag returns the tag linked to the lesson task.
func LessonTag() tag.Tag {
	return tag.Tag{
		ID:               LessonTagID,
		Name:             LessonTagName,
		CreationTime:     TagCreationTime,
		ModificationTime: TagCreationTime,
	}
}

// ExampleTag returns the tag linked to the example task.
func ExampleTag() tag.Tag {
	return tag.Tag{
		ID:               ExampleTagID,
		Name:             ExampleTagName,
		CreationTime:     TagCreationTime,
		ModificationTime: TagCreationTime,
	}
}

// LessonTask returns the task with id 2 as DatasetTasks stores it.
func LessonTask() *task.Task {
	return &task.Task{
		ID:               LessonTaskID,
		Title:            LessonTaskTitle,
		Description:      LessonTaskDescription,
		Status:           task.StatusOpen,
		CreatorID:        CreatorID,
		CreationTime:     LessonTaskCreationTime,
		ModificationTime: LessonTaskModifiedTime,
		Tags:             []tag.Tag{LessonTag()},
	}
}

// ExampleTask returns the task with id 1 as DatasetTasks stores it.
func ExampleTask() *task.Task {
	return &task.Task{
		ID:               ExampleTaskID,
		Title:            ExampleTaskTitle,
		Description:      "Build a small application that shows the stack in action",
		Status:           task.StatusOpen,
		CreatorID:        CreatorID,
		CreationTime:     ExampleTaskCreationTime,
		ModificationTime: ExampleTaskCreationTime,
		Tags:             []tag.Tag{ExampleTag()},
	}
}

// CreateTaskCommandBuilder creates builder for CreateTaskCommand
type CreateTaskCommandBuilder struct {
	cmd taskapp.CreateTaskCommand
}

// NewCreateTaskCommandBuilder creates new builder with default values
func NewCreateTaskCommandBuilder() *CreateTaskCommandBuilder {
	return &CreateTaskCommandBuilder{
		cmd: taskapp.CreateTaskCommand{
			Title:       "Test Task",
			Description: "Test description",
			CreatorID:   CreatorID,
		},
	}
}

// WithTitle sets title
func (b *CreateTaskCommandBuilder) WithTitle(title string) *CreateTaskCommandBuilder {
	b.cmd.Title = title
	return b
}

// WithDescription sets description
func (b *CreateTaskCommandBuilder) WithDescription(description string) *CreateTaskCommandBuilder {
	b.cmd.Description = description
	return b
}

// WithCreator sets creator
func (b *CreateTaskCommandBuilder) WithCreator(creatorID int64) *CreateTaskCommandBuilder {
	b.cmd.CreatorID = creatorID
	return b
}

// Build returns the command
func (b *CreateTaskCommandBuilder) Build() taskapp.CreateTaskCommand {
	return b.cmd
}
