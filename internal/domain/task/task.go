// Package task holds the Task entity, its lifecycle rules and its events.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/lllypuk/tasktracker/internal/domain/errs"
	"github.com/lllypuk/tasktracker/internal/domain/tag"
)

// Field limits.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// Task is a unit of work. Tags are loaded together with the task and describe
// the task_tags associations at load time.
type Task struct {
	ID               int64
	Title            string
	Description      string
	Status           Status
	Resolution       *Resolution
	CreatorID        int64
	AssigneeID       *int64
	CloserID         *int64
	CreationTime     time.Time
	ModificationTime time.Time
	Tags             []tag.Tag
	Version          int
}

// New creates an open task that has not been stored yet.
func New(title, description string, creatorID int64, now time.Time) (*Task, error) {
	title = strings.TrimSpace(title)
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := ValidateDescription(description); err != nil {
		return nil, err
	}
	if creatorID <= 0 {
		return nil, fmt.Errorf("%w: creator id must be positive", errs.ErrInvalidInput)
	}

	return &Task{
		Title:            title,
		Description:      description,
		Status:           StatusOpen,
		CreatorID:        creatorID,
		CreationTime:     now,
		ModificationTime: now,
		Tags:             []tag.Tag{},
	}, nil
}

// Update replaces title and description.
func (t *Task) Update(title, description string, now time.Time) error {
	title = strings.TrimSpace(title)
	if err := ValidateTitle(title); err != nil {
		return err
	}
	if err := ValidateDescription(description); err != nil {
		return err
	}

	t.Title = title
	t.Description = description
	t.ModificationTime = now
	return nil
}

// Close resolves the task. Closing twice is an error.
func (t *Task) Close(resolution Resolution, closerID int64, now time.Time) error {
	if t.Status == StatusClosed {
		return fmt.Errorf("%w: task %d is already closed", errs.ErrInvalidState, t.ID)
	}
	if !resolution.IsValid() {
		return fmt.Errorf("%w: unknown resolution %q", errs.ErrInvalidInput, resolution)
	}
	if closerID <= 0 {
		return fmt.Errorf("%w: closer id must be positive", errs.ErrInvalidInput)
	}

	t.Status = StatusClosed
	t.Resolution = &resolution
	t.CloserID = &closerID
	t.ModificationTime = now
	return nil
}

// IsClosed reports whether the task has been resolved.
func (t *Task) IsClosed() bool {
	return t.Status == StatusClosed
}

// TagIDs returns the ids of the associated tags.
func (t *Task) TagIDs() []int64 {
	return tag.IDs(t.Tags)
}

// ValidateTitle checks a trimmed title.
func ValidateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title is empty", errs.ErrInvalidInput)
	}
	if len([]rune(title)) > MaxTitleLength {
		return fmt.Errorf("%w: title longer than %d characters", errs.ErrInvalidInput, MaxTitleLength)
	}
	return nil
}

// ValidateDescription checks a description. Empty is allowed.
func ValidateDescription(description string) error {
	if len([]rune(description)) > MaxDescriptionLength {
		return fmt.Errorf("%w: description longer than %d characters", errs.ErrInvalidInput, MaxDescriptionLength)
	}
	return nil
}
