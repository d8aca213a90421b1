// Package httphandler exposes the task REST API.
package httphandler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	taskapp "github.com/lllypuk/tasktracker/internal/application/task"
	"github.com/lllypuk/tasktracker/internal/domain/event"
	"github.com/lllypuk/tasktracker/internal/domain/task"
	"github.com/lllypuk/tasktracker/internal/infrastructure/httpserver"
	"github.com/lllypuk/tasktracker/internal/middleware"
)

// TaskIDParam is the path parameter holding the task id.
const TaskIDParam = "taskId"

// CreateTaskRequest is the body of POST /api/task.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateTaskRequest is the body of PUT /api/task/:taskId.
type UpdateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CloseTaskRequest is the body of PUT /api/task/:taskId/close.
type CloseTaskRequest struct {
	Resolution string `json:"resolution"`
}

// TagResponse is a tag attached to a task.
type TagResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TaskResponse is the JSON representation of a task.
type TaskResponse struct {
	ID               int64         `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Status           string        `json:"status"`
	Resolution       *string       `json:"resolution"`
	Creator          int64         `json:"creator"`
	Assignee         *int64        `json:"assignee"`
	Closer           *int64        `json:"closer"`
	CreationTime     string        `json:"creationTime"`
	ModificationTime string        `json:"modificationTime"`
	Tags             []TagResponse `json:"tags"`
}

// TaskService defines the task operations the handler needs.
// Declared on the consumer side.
type TaskService interface {
	CreateTask(ctx context.Context, cmd taskapp.CreateTaskCommand) (*task.Task, error)
	GetTask(ctx context.Context, query taskapp.GetTaskQuery) (*task.Task, error)
	ListTasks(ctx context.Context, query taskapp.ListTasksQuery) ([]*task.Task, error)
	UpdateTask(ctx context.Context, cmd taskapp.UpdateTaskCommand) (*task.Task, error)
	CloseTask(ctx context.Context, cmd taskapp.CloseTaskCommand) (*task.Task, error)
	DeleteTask(ctx context.Context, cmd taskapp.DeleteTaskCommand) (*task.Task, error)
}

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	taskService TaskService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// RegisterRoutes registers task routes with the router.
func (h *TaskHandler) RegisterRoutes(r *httpserver.Router) {
	api := r.API()

	api.GET("/task", h.List)
	api.POST("/task", h.Create, middleware.RequireUser())
	api.GET("/task/:"+TaskIDParam, h.Get)
	api.PUT("/task/:"+TaskIDParam, h.Update)
	api.PUT("/task/:"+TaskIDParam+"/close", h.Close, middleware.RequireUser())
	api.DELETE("/task/:"+TaskIDParam, h.Delete)
}

// Create handles POST /api/task.
func (h *TaskHandler) Create(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return httpserver.RespondErrorWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}

	var req CreateTaskRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return respondInvalidBody(c)
	}

	created, err := h.taskService.CreateTask(c.Request().Context(), taskapp.CreateTaskCommand{
		Title:       req.Title,
		Description: req.Description,
		CreatorID:   userID,
		Metadata:    requestMetadata(c),
	})
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondCreated(c, ToTaskResponse(created))
}

// Get handles GET /api/task/:taskId.
func (h *TaskHandler) Get(c echo.Context) error {
	taskID, ok := parseTaskID(c)
	if !ok {
		return httpserver.RespondError(c, taskapp.ErrInvalidTaskID)
	}

	t, err := h.taskService.GetTask(c.Request().Context(), taskapp.GetTaskQuery{TaskID: taskID})
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, ToTaskResponse(t))
}

// List handles GET /api/task. Accepts an optional status query parameter.
func (h *TaskHandler) List(c echo.Context) error {
	var filters taskapp.Filters
	if raw := c.QueryParam("status"); raw != "" {
		status, err := task.ParseStatus(raw)
		if err != nil {
			return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_STATUS", "unknown task status")
		}
		filters.Status = &status
	}

	tasks, err := h.taskService.ListTasks(c.Request().Context(), taskapp.ListTasksQuery{Filters: filters})
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, ToTaskResponse(t))
	}
	return httpserver.RespondOK(c, resp)
}

// Update handles PUT /api/task/:taskId.
func (h *TaskHandler) Update(c echo.Context) error {
	taskID, ok := parseTaskID(c)
	if !ok {
		return httpserver.RespondError(c, taskapp.ErrInvalidTaskID)
	}

	var req UpdateTaskRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return respondInvalidBody(c)
	}

	updated, err := h.taskService.UpdateTask(c.Request().Context(), taskapp.UpdateTaskCommand{
		TaskID:      taskID,
		Title:       req.Title,
		Description: req.Description,
		Metadata:    requestMetadata(c),
	})
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, ToTaskResponse(updated))
}

// Close handles PUT /api/task/:taskId/close.
func (h *TaskHandler) Close(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return httpserver.RespondErrorWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}

	taskID, ok := parseTaskID(c)
	if !ok {
		return httpserver.RespondError(c, taskapp.ErrInvalidTaskID)
	}

	var req CloseTaskRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return respondInvalidBody(c)
	}

	closed, err := h.taskService.CloseTask(c.Request().Context(), taskapp.CloseTaskCommand{
		TaskID:     taskID,
		Resolution: task.Resolution(strings.ToUpper(strings.TrimSpace(req.Resolution))),
		CloserID:   userID,
		Metadata:   requestMetadata(c),
	})
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, ToTaskResponse(closed))
}

// Delete handles DELETE /api/task/:taskId and returns the task as it was
// before deletion.
func (h *TaskHandler) Delete(c echo.Context) error {
	taskID, ok := parseTaskID(c)
	if !ok {
		return httpserver.RespondError(c, taskapp.ErrInvalidTaskID)
	}

	deleted, err := h.taskService.DeleteTask(c.Request().Context(), taskapp.DeleteTaskCommand{
		TaskID:   taskID,
		Metadata: requestMetadata(c),
	})
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, ToTaskResponse(deleted))
}

// ToTaskResponse converts a task into its JSON representation.
func ToTaskResponse(t *task.Task) TaskResponse {
	resp := TaskResponse{
		ID:               t.ID,
		Title:            t.Title,
		Description:      t.Description,
		Status:           string(t.Status),
		Creator:          t.CreatorID,
		Assignee:         t.AssigneeID,
		Closer:           t.CloserID,
		CreationTime:     formatTime(t.CreationTime),
		ModificationTime: formatTime(t.ModificationTime),
		Tags:             make([]TagResponse, 0, len(t.Tags)),
	}

	if t.Resolution != nil {
		r := string(*t.Resolution)
		resp.Resolution = &r
	}

	for _, tg := range t.Tags {
		resp.Tags = append(resp.Tags, TagResponse{ID: tg.ID, Name: tg.Name})
	}

	return resp
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTaskID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(TaskIDParam), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func respondInvalidBody(c echo.Context) error {
	return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
}

// requestMetadata describes who triggered the change, for the published event.
func requestMetadata(c echo.Context) event.Metadata {
	var userID string
	if id := middleware.GetUserID(c); id != 0 {
		userID = strconv.FormatInt(id, 10)
	}

	return event.NewMetadata(userID, middleware.GetRequestID(c)).
		WithIPAddress(c.RealIP()).
		WithUserAgent(c.Request().UserAgent())
}
