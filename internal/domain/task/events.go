package task

import (
	"strconv"

	"github.com/lllypuk/tasktracker/internal/domain/event"
)

// Event types.
const (
	EventTypeTaskCreated = "task.created"
	EventTypeTaskUpdated = "task.updated"
	EventTypeTaskClosed  = "task.closed"
	EventTypeTaskDeleted = "task.deleted"
)

// AggregateType names the Task aggregate on the bus.
const AggregateType = "Task"

// EventTypes lists every event type a task produces.
func EventTypes() []string {
	return []string{EventTypeTaskCreated, EventTypeTaskUpdated, EventTypeTaskClosed, EventTypeTaskDeleted}
}

// Created is published after a task was stored.
type Created struct {
	event.BaseEvent

	TaskID    int64  `json:"task_id"`
	Title     string `json:"title"`
	CreatorID int64  `json:"creator_id"`
}

// NewCreated builds a Created event from the stored task.
func NewCreated(t *Task, metadata event.Metadata) *Created {
	return &Created{
		BaseEvent: newBase(EventTypeTaskCreated, t, metadata),
		TaskID:    t.ID,
		Title:     t.Title,
		CreatorID: t.CreatorID,
	}
}

// Updated is published after title or description changed.
type Updated struct {
	event.BaseEvent

	TaskID      int64  `json:"task_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// NewUpdated builds an Updated event.
func NewUpdated(t *Task, metadata event.Metadata) *Updated {
	return &Updated{
		BaseEvent:   newBase(EventTypeTaskUpdated, t, metadata),
		TaskID:      t.ID,
		Title:       t.Title,
		Description: t.Description,
	}
}

// Closed is published after a task got a resolution.
type Closed struct {
	event.BaseEvent

	TaskID     int64      `json:"task_id"`
	Resolution Resolution `json:"resolution"`
	CloserID   int64      `json:"closer_id"`
}

// NewClosed builds a Closed event. The task must be closed.
func NewClosed(t *Task, metadata event.Metadata) *Closed {
	evt := &Closed{
		BaseEvent: newBase(EventTypeTaskClosed, t, metadata),
		TaskID:    t.ID,
	}
	if t.Resolution != nil {
		evt.Resolution = *t.Resolution
	}
	if t.CloserID != nil {
		evt.CloserID = *t.CloserID
	}
	return evt
}

// Deleted is published after a task and its tag links were removed.
type Deleted struct {
	event.BaseEvent

	TaskID int64   `json:"task_id"`
	Title  string  `json:"title"`
	TagIDs []int64 `json:"tag_ids"`
}

// NewDeleted builds a Deleted event from the task as it was before deletion.
func NewDeleted(t *Task, metadata event.Metadata) *Deleted {
	return &Deleted{
		BaseEvent: newBase(EventTypeTaskDeleted, t, metadata),
		TaskID:    t.ID,
		Title:     t.Title,
		TagIDs:    t.TagIDs(),
	}
}

func newBase(eventType string, t *Task, metadata event.Metadata) event.BaseEvent {
	return event.NewBaseEvent(eventType, strconv.FormatInt(t.ID, 10), AggregateType, t.Version, metadata)
}
