package httphandler

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	taskapp "github.com/lllypuk/tasktracker/internal/application/task"
	"github.com/lllypuk/tasktracker/internal/domain/task"
)

// MockTaskService is an in-memory TaskService. It backs handler tests and
// the API in mock mode.
type MockTaskService struct {
	mu       sync.Mutex
	tasks    map[int64]*task.Task
	nextID   int64
	failNext error

	// LastCommand is the command of the last mutating call.
	LastCommand any
}

// NewMockTaskService creates a new mock task service.
func NewMockTaskService() *MockTaskService {
	return &MockTaskService{
		tasks:  make(map[int64]*task.Task),
		nextID: 1,
	}
}

// AddTask stores t under its id.
func (m *MockTaskService) AddTask(t *task.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks[t.ID] = t
	if t.ID >= m.nextID {
		m.nextID = t.ID + 1
	}
}

// SetFailureNext makes the next call return err.
func (m *MockTaskService) SetFailureNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Exists reports whether a task with id is stored.
func (m *MockTaskService) Exists(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[id]
	return ok
}

func (m *MockTaskService) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

// CreateTask stores a new open task.
func (m *MockTaskService) CreateTask(_ context.Context, cmd taskapp.CreateTaskCommand) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastCommand = cmd
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	t, err := task.New(cmd.Title, cmd.Description, cmd.CreatorID, time.Now().UTC().Truncate(time.Second))
	if err != nil {
		return nil, err
	}
	t.ID = m.nextID
	m.nextID++
	m.tasks[t.ID] = t
	return t, nil
}

// GetTask returns the stored task.
func (m *MockTaskService) GetTask(_ context.Context, query taskapp.GetTaskQuery) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	t, ok := m.tasks[query.TaskID]
	if !ok {
		return nil, taskapp.ErrTaskNotFound
	}
	return t, nil
}

// ListTasks returns stored tasks ordered by id.
func (m *MockTaskService) ListTasks(_ context.Context, query taskapp.ListTasksQuery) ([]*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	result := make([]*task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if query.Filters.Status != nil && t.Status != *query.Filters.Status {
			continue
		}
		result = append(result, t)
	}
	slices.SortFunc(result, func(a, b *task.Task) int { return cmp.Compare(a.ID, b.ID) })
	return result, nil
}

// UpdateTask replaces title and description.
func (m *MockTaskService) UpdateTask(_ context.Context, cmd taskapp.UpdateTaskCommand) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastCommand = cmd
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	t, ok := m.tasks[cmd.TaskID]
	if !ok {
		return nil, taskapp.ErrTaskNotFound
	}
	if err := t.Update(cmd.Title, cmd.Description, time.Now().UTC().Truncate(time.Second)); err != nil {
		return nil, err
	}
	return t, nil
}

// CloseTask resolves the stored task.
func (m *MockTaskService) CloseTask(_ context.Context, cmd taskapp.CloseTaskCommand) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastCommand = cmd
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if !cmd.Resolution.IsValid() {
		return nil, taskapp.ErrInvalidResolution
	}
	t, ok := m.tasks[cmd.TaskID]
	if !ok {
		return nil, taskapp.ErrTaskNotFound
	}
	if t.IsClosed() {
		return nil, taskapp.ErrTaskAlreadyClosed
	}
	if err := t.Close(cmd.Resolution, cmd.CloserID, time.Now().UTC().Truncate(time.Second)); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTask removes the stored task and returns it.
func (m *MockTaskService) DeleteTask(_ context.Context, cmd taskapp.DeleteTaskCommand) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastCommand = cmd
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	t, ok := m.tasks[cmd.TaskID]
	if !ok {
		return nil, taskapp.ErrTaskNotFound
	}
	delete(m.tasks, cmd.TaskID)
	return t, nil
}
