package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// CleanInsert deletes all rows of the dataset tables in reverse order and
// inserts the dataset rows in order, all in one transaction.
func CleanInsert(ctx context.Context, db *sql.DB, dialect Dialect, ds *Dataset) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := len(ds.Tables) - 1; i >= 0; i-- {
		name := ds.Tables[i].Name
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+QuoteIdent(name)); err != nil {
			return fmt.Errorf("clean %s: %w", name, err)
		}
	}

	for _, table := range ds.Tables {
		for idx, row := range table.Rows {
			if err = insertRow(ctx, tx, dialect, table.Name, row); err != nil {
				return fmt.Errorf("insert %s row %d: %w", table.Name, idx, err)
			}
		}
	}

	if err = dialect.ResetSequences(ctx, tx, ds.Tables); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertRow(ctx context.Context, tx *sql.Tx, dialect Dialect, table string, row Row) error {
	if len(row.Columns) == 0 {
		_, err := tx.ExecContext(ctx, "INSERT INTO "+QuoteIdent(table)+" DEFAULT VALUES")
		return err
	}

	cols := make([]string, 0, len(row.Columns))
	marks := make([]string, 0, len(row.Columns))
	args := make([]any, 0, len(row.Columns))
	for i, c := range row.Columns {
		cols = append(cols, QuoteIdent(c))
		marks = append(marks, dialect.Placeholder(i+1))
		args = append(args, row.Values[c])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
