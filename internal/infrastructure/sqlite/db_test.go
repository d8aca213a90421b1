package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/config"
	"github.com/lllypuk/tasktracker/internal/infrastructure/sqlite"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "file::memory:?_foreign_keys=on"},
		{":memory:", "file::memory:?_foreign_keys=on"},
		{"data/tasks.db", "file:data/tasks.db?_foreign_keys=on&_busy_timeout=5000"},
		{"file:tasks.db?cache=shared", "file:tasks.db?cache=shared&_foreign_keys=on&_busy_timeout=5000"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, sqlite.DSN(tt.path))
		})
	}
}

func TestOpen_AppliesSchema(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, config.SQLiteConfig{Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, table := range []string{"user_accounts", "tags", "tasks", "tasks_tags"} {
		var name string
		err = db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		require.NoError(t, err, table)
	}

	// Migrate is idempotent.
	require.NoError(t, sqlite.Migrate(ctx, db))
}

func TestOpen_EnforcesForeignKeys(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, config.SQLiteConfig{Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `
		INSERT INTO tasks (creation_time, creator_id, modification_time, status, title)
		VALUES ('2016-12-03 11:40:00', 99, '2016-12-03 11:40:00', 'OPEN', 'orphan')`)
	require.Error(t, err)
}
