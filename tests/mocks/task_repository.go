package mocks

import (
	"context"
	"slices"
	"sync"

	taskapp "github.com/lllypuk/tasktracker/internal/application/task"
	"github.com/lllypuk/tasktracker/internal/domain/errs"
	"github.com/lllypuk/tasktracker/internal/domain/tag"
	"github.com/lllypuk/tasktracker/internal/domain/task"
)

// MockTaskRepository implements taskapp.Repository in memory.
type MockTaskRepository struct {
	mu       sync.RWMutex
	tasks    map[int64]*task.Task
	tags     map[int64]tag.Tag
	nextID   int64
	calls    map[string]int
	failNext error
}

var _ taskapp.Repository = (*MockTaskRepository)(nil)

// NewMockTaskRepository creates a new mock task repository.
func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{
		tasks:  make(map[int64]*task.Task),
		tags:   make(map[int64]tag.Tag),
		nextID: 1,
		calls:  make(map[string]int),
	}
}

// Seed stores a task as is, keeping its id. Its tags are registered too.
func (r *MockTaskRepository) Seed(t *task.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tg := range t.Tags {
		r.tags[tg.ID] = tg
	}
	r.tasks[t.ID] = clone(t)
	if t.ID >= r.nextID {
		r.nextID = t.ID + 1
	}
}

// FindAll returns tasks ordered by id.
func (r *MockTaskRepository) FindAll(_ context.Context, filters taskapp.Filters) ([]*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["FindAll"]++
	if err := r.takeFailure(); err != nil {
		return nil, err
	}

	result := make([]*task.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if filters.Status != nil && t.Status != *filters.Status {
			continue
		}
		result = append(result, clone(t))
	}
	slices.SortFunc(result, func(a, b *task.Task) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return result, nil
}

// FindByID returns a copy of the stored task.
func (r *MockTaskRepository) FindByID(_ context.Context, id int64) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["FindByID"]++
	if err := r.takeFailure(); err != nil {
		return nil, err
	}

	t, ok := r.tasks[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return clone(t), nil
}

// Create assigns the next id and stores the task.
func (r *MockTaskRepository) Create(_ context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["Create"]++
	if err := r.takeFailure(); err != nil {
		return err
	}

	t.ID = r.nextID
	r.nextID++
	r.tasks[t.ID] = clone(t)
	return nil
}

// Update stores the task when its version matches and bumps the version.
func (r *MockTaskRepository) Update(_ context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["Update"]++
	if err := r.takeFailure(); err != nil {
		return err
	}

	stored, ok := r.tasks[t.ID]
	if !ok {
		return errs.ErrNotFound
	}
	if stored.Version != t.Version {
		return errs.ErrConcurrentModification
	}

	t.Version++
	r.tasks[t.ID] = clone(t)
	return nil
}

// Delete removes the task and returns it. Tags stay registered.
func (r *MockTaskRepository) Delete(_ context.Context, id int64) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["Delete"]++
	if err := r.takeFailure(); err != nil {
		return nil, err
	}

	t, ok := r.tasks[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	delete(r.tasks, id)
	return t, nil
}

// SetFailureNext sets an error to be returned by the next call.
func (r *MockTaskRepository) SetFailureNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

// CallCount returns how many times method was called.
func (r *MockTaskRepository) CallCount(method string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calls[method]
}

// Exists reports whether a task with id is stored.
func (r *MockTaskRepository) Exists(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tasks[id]
	return ok
}

// TagCount returns the number of known tags.
func (r *MockTaskRepository) TagCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tags)
}

// Count returns the number of stored tasks.
func (r *MockTaskRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Reset clears all stored tasks, tags and call counts.
func (r *MockTaskRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks = make(map[int64]*task.Task)
	r.tags = make(map[int64]tag.Tag)
	r.nextID = 1
	r.calls = make(map[string]int)
	r.failNext = nil
}

func (r *MockTaskRepository) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func clone(t *task.Task) *task.Task {
	c := *t
	c.Tags = append([]tag.Tag{}, t.Tags...)
	return &c
}
