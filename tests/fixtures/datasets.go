package fixtures

import (
	"fmt"
	"io/fs"

	"github.com/lllypuk/tasktracker/internal/infrastructure/dataset"
)

// Dataset file names.
const (
	DatasetTasks                        = "tasks.yaml"
	DatasetDeleteTaskDeletesCorrectTask = "delete-task-should-delete-correct-task.yaml"
	DatasetDeleteTaskDeletesTagLink     = "delete-task-should-delete-link-between-tag-and-deleted-task.yaml"
	DatasetDeleteTaskKeepsTags          = "delete-task-should-not-delete-tags.yaml"
)

// Datasets returns the bundled dataset directory.
func Datasets() fs.FS {
	return dataset.Bundled()
}

// ReadDataset returns the raw YAML of a dataset.
func ReadDataset(name string) ([]byte, error) {
	data, err := fs.ReadFile(Datasets(), name)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", name, err)
	}
	return data, nil
}
