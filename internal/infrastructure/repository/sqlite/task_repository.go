// Package sqlite stores tasks in SQLite through database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	taskapp "github.com/lllypuk/tasktracker/internal/application/task"
	"github.com/lllypuk/tasktracker/internal/domain/errs"
	"github.com/lllypuk/tasktracker/internal/domain/tag"
	"github.com/lllypuk/tasktracker/internal/domain/task"
)

const taskColumns = `id, title, description, status, resolution, creator_id, assignee_id,
	closer_id, creation_time, modification_time, version`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// TaskRepository implements taskapp.Repository.
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// Option configures the repository.
type Option func(*TaskRepository)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *TaskRepository) {
		r.logger = logger
	}
}

// NewTaskRepository creates a repository backed by db.
func NewTaskRepository(db *sql.DB, opts ...Option) *TaskRepository {
	r := &TaskRepository{
		db:     db,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ taskapp.Repository = (*TaskRepository)(nil)

// FindAll returns tasks ordered by id.
func (r *TaskRepository) FindAll(ctx context.Context, filters taskapp.Filters) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if filters.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*filters.Status))
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*task.Task, 0)
	for rows.Next() {
		t, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan task: %w", scanErr)
		}
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	_ = rows.Close()

	if err = loadTags(ctx, r.db, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// FindByID returns one task with its tags.
func (r *TaskRepository) FindByID(ctx context.Context, id int64) (*task.Task, error) {
	return findTask(ctx, r.db, id)
}

// Create inserts the task and its tag links and assigns the id.
func (r *TaskRepository) Create(ctx context.Context, t *task.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (title, description, status, resolution, creator_id, assignee_id,
			closer_id, creation_time, modification_time, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, string(t.Status), resolutionValue(t.Resolution), t.CreatorID,
		nullableID(t.AssigneeID), nullableID(t.CloserID), t.CreationTime.UTC(), t.ModificationTime.UTC(), t.Version,
	)
	if err != nil {
		return translateError(err, "insert task")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read task id: %w", err)
	}

	for _, tg := range t.Tags {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO tasks_tags (task_id, tag_id) VALUES (?, ?)`, id, tg.ID,
		); err != nil {
			return translateError(err, "insert task tag")
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	t.ID = id
	r.logger.Debug("task inserted", zap.Int64("task_id", t.ID))
	return nil
}

// Update stores the mutable fields when the version matches.
func (r *TaskRepository) Update(ctx context.Context, t *task.Task) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, status = ?, resolution = ?, assignee_id = ?,
			closer_id = ?, modification_time = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		t.Title, t.Description, string(t.Status), resolutionValue(t.Resolution), nullableID(t.AssigneeID),
		nullableID(t.CloserID), t.ModificationTime.UTC(), t.ID, t.Version,
	)
	if err != nil {
		return translateError(err, "update task")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err = r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = ?)`, t.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check task: %w", err)
		}
		if !exists {
			return fmt.Errorf("task %d: %w", t.ID, errs.ErrNotFound)
		}
		return fmt.Errorf("task %d version %d: %w", t.ID, t.Version, errs.ErrConcurrentModification)
	}

	t.Version++
	return nil
}

// Delete removes the task and its tag links in one transaction and returns
// the task as it was before deletion.
func (r *TaskRepository) Delete(ctx context.Context, id int64) (*task.Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t, err := findTask(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM tasks_tags WHERE task_id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete task tags: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("task %d: %w", id, errs.ErrNotFound)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.Debug("task deleted",
		zap.Int64("task_id", id),
		zap.Int("tags_unlinked", len(t.Tags)),
	)
	return t, nil
}

func findTask(ctx context.Context, q querier, id int64) (*task.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %d: %w", id, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	if err = loadTags(ctx, q, []*task.Task{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// loadTags fills Tags for all given tasks with a single join.
func loadTags(ctx context.Context, q querier, tasks []*task.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[int64]*task.Task, len(tasks))
	args := make([]any, 0, len(tasks))
	for _, t := range tasks {
		t.Tags = []tag.Tag{}
		byID[t.ID] = t
		args = append(args, t.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")

	rows, err := q.QueryContext(ctx, `
		SELECT tt.task_id, g.id, g.name, g.creation_time, g.modification_time, g.version
		FROM tasks_tags tt
		JOIN tags g ON g.id = tt.tag_id
		WHERE tt.task_id IN (`+placeholders+`)
		ORDER BY tt.task_id, g.id`, args...)
	if err != nil {
		return fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			taskID int64
			tg     tag.Tag
		)
		if err = rows.Scan(&taskID, &tg.ID, &tg.Name, &tg.CreationTime, &tg.ModificationTime, &tg.Version); err != nil {
			return fmt.Errorf("failed to scan tag: %w", err)
		}
		tg.CreationTime = tg.CreationTime.UTC()
		tg.ModificationTime = tg.ModificationTime.UTC()
		if t, ok := byID[taskID]; ok {
			t.Tags = append(t.Tags, tg)
		}
	}
	return rows.Err()
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t          task.Task
		status     string
		resolution sql.NullString
		assigneeID sql.NullInt64
		closerID   sql.NullInt64
		created    time.Time
		modified   time.Time
	)
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &status, &resolution, &t.CreatorID, &assigneeID,
		&closerID, &created, &modified, &t.Version,
	)
	if err != nil {
		return nil, err
	}

	t.Status = task.Status(status)
	if resolution.Valid {
		res := task.Resolution(resolution.String)
		t.Resolution = &res
	}
	if assigneeID.Valid {
		t.AssigneeID = &assigneeID.Int64
	}
	if closerID.Valid {
		t.CloserID = &closerID.Int64
	}
	t.CreationTime = created.UTC()
	t.ModificationTime = modified.UTC()
	t.Tags = []tag.Tag{}
	return &t, nil
}

func resolutionValue(r *task.Resolution) sql.NullString {
	if r == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*r), Valid: true}
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func translateError(err error, op string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("failed to %s: %w", op, errs.ErrAlreadyExists)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("failed to %s: %w", op, errs.ErrInvalidInput)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
