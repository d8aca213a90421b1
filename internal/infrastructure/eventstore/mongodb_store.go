package eventstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/domain/event"
	"github.com/lllypuk/tasktracker/internal/infrastructure/mongodb"
)

// MongoStore writes the audit trail to a MongoDB collection. It relies on the
// unique event_id index created by mongodb.CreateAllIndexes.
type MongoStore struct {
	collection *mongo.Collection
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures MongoStore.
type Option func(*MongoStore)

// WithLogger sets the logger for the store.
func WithLogger(logger *zap.Logger) Option {
	return func(s *MongoStore) {
		s.logger = logger
	}
}

// NewMongoStore creates a store on the task_audit collection of db.
func NewMongoStore(db *mongo.Database, opts ...Option) *MongoStore {
	s := &MongoStore{
		collection: db.Collection(mongodb.CollectionTaskAudit),
		logger:     zap.NewNop(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Append records evt.
func (s *MongoStore) Append(ctx context.Context, evt event.DomainEvent) error {
	record, err := NewRecord(evt, s.now())
	if err != nil {
		return err
	}

	_, err = s.collection.InsertOne(ctx, toDocument(record))
	if mongo.IsDuplicateKeyError(err) {
		s.logger.Debug("audit record already stored", zap.String("event_id", record.EventID))
		return nil
	}
	if err != nil {
		s.logger.Error("failed to insert audit record",
			zap.String("event_id", record.EventID),
			zap.String("event_type", record.EventType),
			zap.Error(err),
		)
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// History returns the records of one aggregate ordered by occurrence.
func (s *MongoStore) History(ctx context.Context, aggregateType, aggregateID string) ([]Record, error) {
	filter := bson.M{"aggregate_type": aggregateType, "aggregate_id": aggregateID}
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find audit records: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*RecordDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode audit records: %w", err)
	}

	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromDocument(doc))
	}
	return records, nil
}
