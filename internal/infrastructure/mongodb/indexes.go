// Package mongodb provides MongoDB infrastructure: connection setup, index
// management and id sequences.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names.
const (
	CollectionTasks        = "tasks"
	CollectionTags         = "tags"
	CollectionUserAccounts = "user_accounts"
	CollectionCounters     = "counters"
	CollectionTaskAudit    = "task_audit"
)

// IndexDefinition describes a MongoDB index to be created.
type IndexDefinition struct {
	Name       string
	Collection string
	Keys       bson.D
	Unique     bool
}

func (d IndexDefinition) model() mongo.IndexModel {
	opts := options.Index().SetName(d.Name)
	if d.Unique {
		opts.SetUnique(true)
	}
	return mongo.IndexModel{Keys: d.Keys, Options: opts}
}

// CreateAllIndexes creates all indexes. It is idempotent.
func CreateAllIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db, GetAllIndexDefinitions())
}

// GetAllIndexDefinitions returns the index definitions of every collection.
func GetAllIndexDefinitions() []IndexDefinition {
	var indexes []IndexDefinition

	indexes = append(indexes, GetTaskIndexes()...)
	indexes = append(indexes, GetTagIndexes()...)
	indexes = append(indexes, GetUserAccountIndexes()...)
	indexes = append(indexes, GetTaskAuditIndexes()...)

	return indexes
}

// GetTaskIndexes returns index definitions for the tasks collection.
func GetTaskIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			// ListTasks by status, ordered by id
			Name:       "idx_tasks_status",
			Collection: CollectionTasks,
			Keys:       bson.D{{Key: "status", Value: 1}, {Key: "_id", Value: 1}},
		},
		{
			// reverse lookup of tasks by tag
			Name:       "idx_tasks_tag_ids",
			Collection: CollectionTasks,
			Keys:       bson.D{{Key: "tag_ids", Value: 1}},
		},
		{
			Name:       "idx_tasks_creator",
			Collection: CollectionTasks,
			Keys:       bson.D{{Key: "creator_id", Value: 1}},
		},
	}
}

// GetTagIndexes returns index definitions for the tags collection.
func GetTagIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			Name:       "idx_tags_name_unique",
			Collection: CollectionTags,
			Keys:       bson.D{{Key: "name", Value: 1}},
			Unique:     true,
		},
	}
}

// GetUserAccountIndexes returns index definitions for the user_accounts collection.
func GetUserAccountIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			Name:       "idx_user_accounts_name",
			Collection: CollectionUserAccounts,
			Keys:       bson.D{{Key: "name", Value: 1}},
		},
	}
}

// GetTaskAuditIndexes returns index definitions for the audit trail.
func GetTaskAuditIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			// redelivered events are recorded once
			Name:       "idx_task_audit_event_id_unique",
			Collection: CollectionTaskAudit,
			Keys:       bson.D{{Key: "event_id", Value: 1}},
			Unique:     true,
		},
		{
			Name:       "idx_task_audit_aggregate",
			Collection: CollectionTaskAudit,
			Keys:       bson.D{{Key: "aggregate_type", Value: 1}, {Key: "aggregate_id", Value: 1}, {Key: "occurred_at", Value: 1}},
		},
	}
}

// CreateCollectionIndexes creates indexes for a specific collection only.
func CreateCollectionIndexes(ctx context.Context, db *mongo.Database, collectionName string) error {
	var indexes []IndexDefinition

	switch collectionName {
	case CollectionTasks:
		indexes = GetTaskIndexes()
	case CollectionTags:
		indexes = GetTagIndexes()
	case CollectionUserAccounts:
		indexes = GetUserAccountIndexes()
	case CollectionTaskAudit:
		indexes = GetTaskAuditIndexes()
	default:
		return fmt.Errorf("unknown collection: %s", collectionName)
	}

	return createIndexes(ctx, db, indexes)
}

func createIndexes(ctx context.Context, db *mongo.Database, indexes []IndexDefinition) error {
	for _, idx := range indexes {
		if _, err := db.Collection(idx.Collection).Indexes().CreateOne(ctx, idx.model()); err != nil {
			return fmt.Errorf("failed to create index %s on collection %s: %w", idx.Name, idx.Collection, err)
		}
	}
	return nil
}
