package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lllypuk/tasktracker/internal/domain/errs"
)

// MIMEApplicationJSONCharsetUTF8 is the content type of every JSON response.
const MIMEApplicationJSONCharsetUTF8 = "application/json; charset=UTF-8"

// Response is the body written for failed requests. Successful requests
// return the resource itself.
type Response struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error,omitempty"`
}

// Error describes a failure in a machine readable code plus a message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPError is implemented by application errors that know their own
// status, code and message. It takes precedence over the sentinel table.
type HTTPError interface {
	error
	HTTPStatus() int
	HTTPCode() string
	HTTPMessage() string
}

type errorMapping struct {
	target error
	status int
	body   Error
}

// Checked in order; the first sentinel matched by errors.Is wins.
var errorMappings = []errorMapping{
	{errs.ErrNotFound, http.StatusNotFound, Error{"NOT_FOUND", "The requested resource was not found"}},
	{errs.ErrAlreadyExists, http.StatusConflict, Error{"ALREADY_EXISTS", "The resource already exists"}},
	{errs.ErrInvalidInput, http.StatusBadRequest, Error{"INVALID_INPUT", "Invalid input data"}},
	{errs.ErrUnauthorized, http.StatusUnauthorized, Error{"UNAUTHORIZED", "Authentication required"}},
	{errs.ErrForbidden, http.StatusForbidden, Error{"FORBIDDEN", "Access denied"}},
	{errs.ErrConcurrentModification, http.StatusConflict, Error{"CONCURRENT_MODIFICATION", "Task was modified by another request"}},
	{errs.ErrInvalidState, http.StatusUnprocessableEntity, Error{"INVALID_STATE", "Operation not allowed in current state"}},
	{errs.ErrInvalidTransition, http.StatusUnprocessableEntity, Error{"INVALID_TRANSITION", "Status transition not allowed"}},
}

var internalError = Error{"INTERNAL_ERROR", "An internal error occurred"}

// RespondJSON writes data as a bare JSON body.
func RespondJSON(c echo.Context, code int, data any) error {
	c.Response().Header().Set(echo.HeaderContentType, MIMEApplicationJSONCharsetUTF8)
	return c.JSON(code, data)
}

// RespondOK writes a 200 with data.
func RespondOK(c echo.Context, data any) error {
	return RespondJSON(c, http.StatusOK, data)
}

// RespondCreated writes a 201 with data.
func RespondCreated(c echo.Context, data any) error {
	return RespondJSON(c, http.StatusCreated, data)
}

// RespondNoContent writes an empty 204.
func RespondNoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// RespondError maps err to a status and writes the error envelope.
func RespondError(c echo.Context, err error) error {
	status, body := mapError(err)
	return RespondJSON(c, status, Response{Error: &body})
}

// RespondErrorWithCode writes the error envelope with an explicit status and code.
func RespondErrorWithCode(c echo.Context, code int, errorCode, message string) error {
	return RespondJSON(c, code, Response{Error: &Error{Code: errorCode, Message: message}})
}

func mapError(err error) (int, Error) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.HTTPStatus(), Error{Code: httpErr.HTTPCode(), Message: httpErr.HTTPMessage()}
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.body
		}
	}
	return http.StatusInternalServerError, internalError
}
