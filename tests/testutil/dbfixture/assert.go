// Package dbfixture provides test helpers around datasets: loading and
// seeding that fail the test on error, and a non-strict comparison of table
// contents against an expected dataset.
package dbfixture

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/tasktracker/internal/infrastructure/dataset"
)

// nullText is how SQL NULL shows up in compared rows.
const nullText = "<null>"

// MustLoad loads a dataset or fails the test.
func MustLoad(t testing.TB, fsys fs.FS, name string) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Load(fsys, name)
	require.NoError(t, err)
	return ds
}

// MustCleanInsert runs CleanInsert or fails the test.
func MustCleanInsert(t testing.TB, db *sql.DB, dialect dataset.Dialect, ds *dataset.Dataset) {
	t.Helper()
	require.NoError(t, dataset.CleanInsert(context.Background(), db, dialect, ds))
}

// AssertNonStrict compares only the tables and columns named in expected.
// Row order does not matter. A column missing from an expected row is
// expected to be NULL.
func AssertNonStrict(t testing.TB, db *sql.DB, expected *dataset.Dataset) {
	t.Helper()

	for _, table := range expected.Tables {
		cols := table.Columns()
		if len(cols) == 0 {
			var count int
			require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+dataset.QuoteIdent(table.Name)).Scan(&count))
			assert.Zero(t, count, "table %s should be empty", table.Name)
			continue
		}

		actual, err := Snapshot(context.Background(), db, table.Name, cols)
		require.NoError(t, err)

		want := make([]string, 0, len(table.Rows))
		for _, row := range table.Rows {
			want = append(want, formatRow(cols, func(c string) any { return row.Values[c] }))
		}

		if assert.Len(t, actual, len(want), "row count of table %s", table.Name) {
			assert.ElementsMatch(t, want, actual, "rows of table %s", table.Name)
		}
	}
}

// Snapshot selects the given columns of a table and renders each row as
// "col=value, ..." with values normalized the same way as datasets.
func Snapshot(ctx context.Context, db *sql.DB, table string, columns []string) ([]string, error) {
	quoted := make([]string, 0, len(columns))
	for _, c := range columns {
		quoted = append(quoted, dataset.QuoteIdent(c))
	}

	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), dataset.QuoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err = rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		byColumn := make(map[string]any, len(columns))
		for i, c := range columns {
			byColumn[c] = values[i]
		}
		out = append(out, formatRow(columns, func(c string) any { return byColumn[c] }))
	}
	return out, rows.Err()
}

func formatRow(columns []string, value func(string) any) string {
	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		parts = append(parts, c+"="+normalize(value(c)))
	}
	return strings.Join(parts, ", ")
}

func normalize(v any) string {
	switch val := v.(type) {
	case nil:
		return nullText
	case time.Time:
		return val.UTC().Format(dataset.TimestampLayout)
	case []byte:
		return normalizeString(string(val))
	case string:
		return normalizeString(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// normalizeString renders timestamps stored as text in the dataset layout.
func normalizeString(s string) string {
	if len(s) >= len("2006-01-02 15:04") && s[4] == '-' && s[7] == '-' {
		if ts, err := dataset.ParseTimestamp(s); err == nil {
			return ts.Format(dataset.TimestampLayout)
		}
	}
	return s
}
