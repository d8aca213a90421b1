package dbfixture_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/tasktracker/internal/infrastructure/dataset"
	"github.com/lllypuk/tasktracker/tests/fixtures"
	"github.com/lllypuk/tasktracker/tests/testutil"
	"github.com/lllypuk/tasktracker/tests/testutil/dbfixture"
)

func TestCleanInsert_SQLite(t *testing.T) {
	db := testutil.SetupTestSQLite(t)
	ds := dbfixture.MustLoad(t, fixtures.Datasets(), fixtures.DatasetTasks)

	require.NoError(t, dataset.CleanInsert(context.Background(), db, dataset.SQLite, ds))
	dbfixture.AssertNonStrict(t, db, ds)

	var title string
	var resolution *string
	require.NoError(t, db.QueryRow(`SELECT title, resolution FROM tasks WHERE id = 2`).Scan(&title, &resolution))
	assert.Equal(t, fixtures.LessonTaskTitle, title)
	assert.Nil(t, resolution)
}

func TestCleanInsert_ReplacesExistingRows(t *testing.T) {
	db := testutil.SetupTestSQLite(t)
	ds := dbfixture.MustLoad(t, fixtures.Datasets(), fixtures.DatasetTasks)

	dbfixture.MustCleanInsert(t, db, dataset.SQLite, ds)

	_, err := db.Exec(`INSERT INTO tags (creation_time, modification_time, name) VALUES (?, ?, ?)`,
		"2020-01-01 00:00:00", "2020-01-01 00:00:00", "Extra")
	require.NoError(t, err)

	dbfixture.MustCleanInsert(t, db, dataset.SQLite, ds)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM tags`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestCleanInsert_RollsBackOnError(t *testing.T) {
	db := testutil.SetupTestSQLite(t)
	dbfixture.MustCleanInsert(t, db, dataset.SQLite, dbfixture.MustLoad(t, fixtures.Datasets(), fixtures.DatasetTasks))

	broken, err := dataset.Parse([]byte(`
tasks_tags:
  - task_id: 1
    tag_id: 999
`))
	require.NoError(t, err)

	require.Error(t, dataset.CleanInsert(context.Background(), db, dataset.SQLite, broken))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM tasks_tags`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestSnapshot_NormalizesValues(t *testing.T) {
	db := testutil.SetupTestSQLite(t)
	dbfixture.MustCleanInsert(t, db, dataset.SQLite, dbfixture.MustLoad(t, fixtures.Datasets(), fixtures.DatasetTasks))

	rows, err := dbfixture.Snapshot(context.Background(), db, "tasks", []string{"id", "resolution", "creation_time"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"id=1, resolution=<null>, creation_time=2016-12-03 11:40:00",
		"id=2, resolution=<null>, creation_time=2016-12-03 11:41:00",
	}, rows)
}

func TestAssertNonStrict_DetectsDifferences(t *testing.T) {
	db := testutil.SetupTestSQLite(t)
	dbfixture.MustCleanInsert(t, db, dataset.SQLite, dbfixture.MustLoad(t, fixtures.Datasets(), fixtures.DatasetTasks))

	tests := []struct {
		name     string
		expected string
	}{
		{"missing row", "tags:\n  - id: 1\n"},
		{"wrong value", "tags:\n  - id: 1\n    name: Example\n  - id: 2\n    name: Other\n"},
		{"expected empty", "tasks_tags:\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected, err := dataset.Parse([]byte(tt.expected))
			require.NoError(t, err)

			rec := &recordingT{TB: t}
			dbfixture.AssertNonStrict(rec, db, expected)
			assert.True(t, rec.failed, "comparison should fail")
		})
	}
}

func TestAssertNonStrict_IgnoresUnlistedColumnsAndTables(t *testing.T) {
	db := testutil.SetupTestSQLite(t)
	dbfixture.MustCleanInsert(t, db, dataset.SQLite, dbfixture.MustLoad(t, fixtures.Datasets(), fixtures.DatasetTasks))

	expected, err := dataset.Parse([]byte(`
tasks:
  - title: WriteLesson
  - title: Write example application
`))
	require.NoError(t, err)

	dbfixture.AssertNonStrict(t, db, expected)
}

// recordingT swallows failures so a test can check that an assertion fails.
type recordingT struct {
	testing.TB
	failed bool
}

func (r *recordingT) Errorf(string, ...any) { r.failed = true }

func (r *recordingT) FailNow() { r.failed = true }

func (r *recordingT) Helper() {}
