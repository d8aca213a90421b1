package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/config"
)

// Connect opens a client, pings it and ensures indexes on the configured database.
func Connect(ctx context.Context, cfg config.MongoDBConfig, logger *zap.Logger) (*mongo.Client, error) {
	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err = client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	logger.Info("connected to MongoDB", zap.String("database", cfg.Database))

	indexCtx, indexCancel := context.WithTimeout(ctx, cfg.Timeout)
	defer indexCancel()

	if err = CreateAllIndexes(indexCtx, client.Database(cfg.Database)); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Info("MongoDB indexes created")
	return client, nil
}
