package task

import (
	"fmt"
	"strings"

	"github.com/lllypuk/tasktracker/internal/domain/errs"
)

// Status is the lifecycle state of a task.
type Status string

const (
	// StatusOpen is the initial status.
	StatusOpen Status = "OPEN"
	// StatusInProgress means somebody works on the task.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusClosed means the task has a resolution.
	StatusClosed Status = "CLOSED"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// Resolution explains why a task was closed.
type Resolution string

const (
	// ResolutionDone means the work was finished.
	ResolutionDone Resolution = "DONE"
	// ResolutionDuplicate means another task covers the same work.
	ResolutionDuplicate Resolution = "DUPLICATE"
	// ResolutionWontDo means the work was dropped.
	ResolutionWontDo Resolution = "WONT_DO"
)

// IsValid reports whether r is a known resolution.
func (r Resolution) IsValid() bool {
	switch r {
	case ResolutionDone, ResolutionDuplicate, ResolutionWontDo:
		return true
	}
	return false
}

// ParseStatus parses a status name, case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: unknown status %q", errs.ErrInvalidInput, s)
	}
	return st, nil
}

// ParseResolution parses a resolution name, case-insensitively.
func ParseResolution(s string) (Resolution, error) {
	r := Resolution(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: unknown resolution %q", errs.ErrInvalidInput, s)
	}
	return r, nil
}
