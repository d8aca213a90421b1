// Package sqlite opens SQLite databases through go-sqlite3 and applies the schema.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/config"
)

// DriverName is the database/sql driver used for SQLite.
const DriverName = "sqlite3"

const memoryPath = ":memory:"

//go:embed schema.sql
var schema string

// DSN builds a go-sqlite3 connection string with foreign keys enabled.
func DSN(path string) string {
	if path == "" || path == memoryPath {
		return "file::memory:?_foreign_keys=on"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// Open opens the database, applies the schema and pings it. In-memory
// databases are limited to one connection so every query sees the same data.
func Open(ctx context.Context, cfg config.SQLiteConfig, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open(DriverName, DSN(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if cfg.Path == "" || cfg.Path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	if err = Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("SQLite database ready", zap.String("path", cfg.Path))
	return db, nil
}

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
