package mongodb_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/lllypuk/tasktracker/internal/domain/errs"
	"github.com/lllypuk/tasktracker/internal/infrastructure/repository/mongodb"
)

func TestHandleMongoError(t *testing.T) {
	assert.NoError(t, mongodb.HandleMongoError(nil, "task"))

	err := mongodb.HandleMongoError(mongo.ErrNoDocuments, "task 4")
	require.ErrorIs(t, err, errs.ErrNotFound)
	assert.Contains(t, err.Error(), "task 4")

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	require.ErrorIs(t, mongodb.HandleMongoError(dup, "tag"), errs.ErrAlreadyExists)

	other := errors.New("connection reset")
	err = mongodb.HandleMongoError(other, "tasks")
	require.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, errs.ErrNotFound)
}
