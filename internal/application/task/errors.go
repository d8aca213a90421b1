package task

import (
	"net/http"
)

// appError implements httpserver.HTTPError.
type appError struct {
	msg        string
	httpStatus int
	httpCode   string
	httpMsg    string
}

func (e *appError) Error() string       { return e.msg }
func (e *appError) HTTPStatus() int     { return e.httpStatus }
func (e *appError) HTTPCode() string    { return e.httpCode }
func (e *appError) HTTPMessage() string { return e.httpMsg }

var (
	// ErrInvalidTaskID is returned for ids that are not positive.
	ErrInvalidTaskID = &appError{
		msg:        "invalid task ID",
		httpStatus: http.StatusBadRequest,
		httpCode:   "INVALID_TASK_ID",
		httpMsg:    "invalid task ID",
	}

	// ErrInvalidUserID is returned when the acting user id is not positive.
	ErrInvalidUserID = &appError{
		msg:        "invalid user ID",
		httpStatus: http.StatusBadRequest,
		httpCode:   "INVALID_USER_ID",
		httpMsg:    "invalid user ID",
	}

	// ErrEmptyTitle is returned for blank titles.
	ErrEmptyTitle = &appError{
		msg:        "task title cannot be empty",
		httpStatus: http.StatusBadRequest,
		httpCode:   "EMPTY_TITLE",
		httpMsg:    "task title cannot be empty",
	}

	// ErrTitleTooLong is returned when the title exceeds task.MaxTitleLength.
	ErrTitleTooLong = &appError{
		msg:        "task title is too long",
		httpStatus: http.StatusBadRequest,
		httpCode:   "TITLE_TOO_LONG",
		httpMsg:    "task title is too long",
	}

	// ErrDescriptionTooLong is returned when the description exceeds task.MaxDescriptionLength.
	ErrDescriptionTooLong = &appError{
		msg:        "task description is too long",
		httpStatus: http.StatusBadRequest,
		httpCode:   "DESCRIPTION_TOO_LONG",
		httpMsg:    "task description is too long",
	}

	// ErrInvalidResolution is returned for unknown resolutions.
	ErrInvalidResolution = &appError{
		msg:        "invalid resolution",
		httpStatus: http.StatusBadRequest,
		httpCode:   "INVALID_RESOLUTION",
		httpMsg:    "resolution must be one of DONE, DUPLICATE, WONT_DO",
	}

	// ErrTaskNotFound is returned when no task has the requested id.
	ErrTaskNotFound = &appError{
		msg:        "task not found",
		httpStatus: http.StatusNotFound,
		httpCode:   "TASK_NOT_FOUND",
		httpMsg:    "task not found",
	}

	// ErrTaskAlreadyClosed is returned when closing a closed task.
	ErrTaskAlreadyClosed = &appError{
		msg:        "task already closed",
		httpStatus: http.StatusUnprocessableEntity,
		httpCode:   "TASK_ALREADY_CLOSED",
		httpMsg:    "task is already closed",
	}

	// ErrConcurrentUpdate is returned when the task changed since it was read.
	ErrConcurrentUpdate = &appError{
		msg:        "concurrent update detected",
		httpStatus: http.StatusConflict,
		httpCode:   "CONCURRENT_UPDATE",
		httpMsg:    "task was modified by another request",
	}
)
