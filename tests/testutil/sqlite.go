package testutil

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/config"
	"github.com/lllypuk/tasktracker/internal/infrastructure/sqlite"
)

// SetupTestSQLite opens a private in-memory database with the schema applied.
func SetupTestSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Open(NewTestContext(t), config.SQLiteConfig{Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}
