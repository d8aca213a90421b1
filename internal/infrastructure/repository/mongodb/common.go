// Package mongodb stores tasks as MongoDB documents.
package mongodb

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/lllypuk/tasktracker/internal/domain/errs"
)

// HandleMongoError maps driver errors to domain sentinels:
//   - mongo.ErrNoDocuments becomes errs.ErrNotFound
//   - duplicate keys become errs.ErrAlreadyExists
//
// Everything else is wrapped with the resource name.
func HandleMongoError(err error, resourceType string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", resourceType, errs.ErrNotFound)
	}

	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", resourceType, errs.ErrAlreadyExists)
	}

	return fmt.Errorf("failed to operate on %s: %w", resourceType, err)
}
