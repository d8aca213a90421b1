// Package postgres stores tasks in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	taskapp "github.com/lllypuk/tasktracker/internal/application/task"
	"github.com/lllypuk/tasktracker/internal/domain/errs"
	"github.com/lllypuk/tasktracker/internal/domain/tag"
	"github.com/lllypuk/tasktracker/internal/domain/task"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const taskColumns = `id, title, description, status, resolution, creator_id, assignee_id,
	closer_id, creation_time, modification_time, version`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TaskRepository implements taskapp.Repository.
type TaskRepository struct {
	pool   *pgxpool.Pool
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

// NewTaskRepository creates a repository backed by pool.
func NewTaskRepository(pool *pgxpool.Pool, opts ...Option) *TaskRepository {
	r := &TaskRepository{
		pool:   pool,
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
		query += ` WHERE status = $1`
		args = append(args, string(*filters.Status))
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, scanTask)
	if err != nil {
		return nil, fmt.Errorf("failed to scan tasks: %w", err)
	}

	if err = loadTags(ctx, r.pool, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// FindByID returns one task with its tags.
func (r *TaskRepository) FindByID(ctx context.Context, id int64) (*task.Task, error) {
	return findTask(ctx, r.pool, id, false)
}

// Create inserts the task and its tag links and assigns the id.
func (r *TaskRepository) Create(ctx context.Context, t *task.Task) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO tasks (title, description, status, resolution, creator_id, assignee_id,
			closer_id, creation_time, modification_time, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		t.Title, t.Description, string(t.Status), resolutionValue(t.Resolution), t.CreatorID,
		t.AssigneeID, t.CloserID, t.CreationTime.UTC(), t.ModificationTime.UTC(), t.Version,
	).Scan(&t.ID)
	if err != nil {
		return translateError(err, "insert task")
	}

	for _, tg := range t.Tags {
		if _, err = tx.Exec(ctx,
			`INSERT INTO tasks_tags (task_id, tag_id) VALUES ($1, $2)`, t.ID, tg.ID,
		); err != nil {
			return translateError(err, "insert task tag")
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.Debug("task inserted", zap.Int64("task_id", t.ID))
	return nil
}

// Update stores the mutable fields when the version matches.
func (r *TaskRepository) Update(ctx context.Context, t *task.Task) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, resolution = $4, assignee_id = $5,
			closer_id = $6, modification_time = $7, version = version + 1
		WHERE id = $8 AND version = $9`,
		t.Title, t.Description, string(t.Status), resolutionValue(t.Resolution), t.AssigneeID,
		t.CloserID, t.ModificationTime.UTC(), t.ID, t.Version,
	)
	if err != nil {
		return translateError(err, "update task")
	}

	if res.RowsAffected() == 0 {
		var exists bool
		if err = r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, t.ID,
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
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := findTask(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM tasks_tags WHERE task_id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to delete task tags: %w", err)
	}

	res, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete task: %w", err)
	}
	if res.RowsAffected() == 0 {
		return nil, fmt.Errorf("task %d: %w", id, errs.ErrNotFound)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.Debug("task deleted",
		zap.Int64("task_id", id),
		zap.Int("tags_unlinked", len(t.Tags)),
	)
	return t, nil
}

func findTask(ctx context.Context, q querier, id int64, lock bool) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTask)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		t.Tags = []tag.Tag{}
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	rows, err := q.Query(ctx, `
		SELECT tt.task_id, g.id, g.name, g.creation_time, g.modification_time, g.version
		FROM tasks_tags tt
		JOIN tags g ON g.id = tt.tag_id
		WHERE tt.task_id = ANY($1)
		ORDER BY tt.task_id, g.id`, ids)
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

func scanTask(row pgx.CollectableRow) (*task.Task, error) {
	var (
		t          task.Task
		status     string
		resolution *string
	)
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &status, &resolution, &t.CreatorID, &t.AssigneeID,
		&t.CloserID, &t.CreationTime, &t.ModificationTime, &t.Version,
	)
	if err != nil {
		return nil, err
	}

	t.Status = task.Status(status)
	if resolution != nil {
		res := task.Resolution(*resolution)
		t.Resolution = &res
	}
	t.CreationTime = t.CreationTime.UTC()
	t.ModificationTime = t.ModificationTime.UTC()
	t.Tags = []tag.Tag{}
	return &t, nil
}

func resolutionValue(r *task.Resolution) *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}

func translateError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("failed to %s: %w", op, errs.ErrAlreadyExists)
		case pgForeignKeyViolation:
			return fmt.Errorf("failed to %s: %s: %w", op, strings.TrimSpace(pgErr.ConstraintName), errs.ErrInvalidInput)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
