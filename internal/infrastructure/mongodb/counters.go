package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type counterDocument struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

// NextSequence atomically increments the named counter and returns the new value.
// The first call returns 1.
func NextSequence(ctx context.Context, db *mongo.Database, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDocument
	err := db.Collection(CollectionCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to advance counter %s: %w", name, err)
	}
	return doc.Seq, nil
}

// SetSequence moves the named counter to value so the next id is value+1.
func SetSequence(ctx context.Context, db *mongo.Database, name string, value int64) error {
	_, err := db.Collection(CollectionCounters).UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$set": bson.M{"seq": value}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set counter %s: %w", name, err)
	}
	return nil
}
