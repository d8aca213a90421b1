package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect covers the SQL differences between databases.
type Dialect interface {
	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string
	// ResetSequences moves id sequences past the inserted rows.
	ResetSequences(ctx context.Context, tx *sql.Tx, tables []Table) error
}

var (
	// Postgres uses $n placeholders and serial sequences.
	Postgres Dialect = postgresDialect{}
	// SQLite uses ? placeholders and needs no sequence reset.
	SQLite Dialect = sqliteDialect{}
)

// DialectFor returns the dialect for a storage driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return nil, fmt.Errorf("no dataset dialect for driver %q", driver)
	}
}

type postgresDialect struct{}

func (postgresDialect) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (postgresDialect) ResetSequences(ctx context.Context, tx *sql.Tx, tables []Table) error {
	for _, t := range tables {
		if !t.HasColumn("id") {
			continue
		}
		query := fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)`,
			strings.ReplaceAll(t.Name, "'", "''"), QuoteIdent(t.Name),
		)
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("reset sequence of %s: %w", t.Name, err)
		}
	}
	return nil
}

type sqliteDialect struct{}

func (sqliteDialect) Placeholder(int) string {
	return "?"
}

// ResetSequences is a no-op: SQLite moves AUTOINCREMENT past explicit ids itself.
func (sqliteDialect) ResetSequences(context.Context, *sql.Tx, []Table) error {
	return nil
}

// QuoteIdent quotes a table or column name.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
