// Package tag holds the Tag entity that tasks are labelled with.
package tag

import (
	"fmt"
	"strings"
	"time"

	"github.com/lllypuk/tasktracker/internal/domain/errs"
)

// MaxNameLength is the longest tag name accepted.
const MaxNameLength = 100

// Tag is a label shared by any number of tasks.
type Tag struct {
	ID               int64
	Name             string
	CreationTime     time.Time
	ModificationTime time.Time
	Version          int
}

// New creates a tag that has not been stored yet.
func New(name string, now time.Time) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tag name is empty", errs.ErrInvalidInput)
	}
	if len([]rune(name)) > MaxNameLength {
		return nil, fmt.Errorf("%w: tag name longer than %d characters", errs.ErrInvalidInput, MaxNameLength)
	}

	return &Tag{
		Name:             name,
		CreationTime:     now,
		ModificationTime: now,
	}, nil
}

// IDs returns the ids of the given tags in order.
func IDs(tags []Tag) []int64 {
	ids := make([]int64, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids
}
