package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	mongoUser         = "admin"
	mongoPassword     = "admin123"
	maxTestNameLength = 40
)

var mongoContainer = newSharedContainer("mongodb", testcontainers.ContainerRequest{
	Image:        "mongo:8",
	ExposedPorts: []string{"27017/tcp"},
	Env: map[string]string{
		"MONGO_INITDB_ROOT_USERNAME": mongoUser,
		"MONGO_INITDB_ROOT_PASSWORD": mongoPassword,
	},
	WaitingFor: wait.ForLog("Waiting for connections").WithStartupTimeout(containerStartupTimeout),
}, "27017/tcp")

// MongoURI returns the connection string of the shared MongoDB container.
func MongoURI(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), containerCtxTimeout)
	defer cancel()

	hostPort, err := mongoContainer.endpoint(ctx)
	if err != nil {
		t.Fatalf("Failed to get shared MongoDB container: %v", err)
	}
	return "mongodb://" + mongoUser + ":" + mongoPassword + "@" + hostPort
}

// SetupTestMongoDB returns a database private to the test. The database is
// dropped when the test ends.
func SetupTestMongoDB(t *testing.T) *mongo.Database {
	t.Helper()

	client, err := mongo.Connect(options.Client().ApplyURI(MongoURI(t)))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	if err = retryPing(func(ctx context.Context) error { return client.Ping(ctx, nil) }); err != nil {
		t.Fatalf("Failed to ping MongoDB: %v", err)
	}

	db := client.Database(TestDatabaseName(t.Name()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), containerCtxTimeout)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	return db
}

// TestDatabaseName derives a database name from a test name. Long names are
// shortened with a hash suffix.
func TestDatabaseName(testName string) string {
	name := strings.ToLower(strings.NewReplacer("/", "_", " ", "_", "-", "_").Replace(testName))
	if len(name) > maxTestNameLength {
		hash := sha256.Sum256([]byte(testName))
		name = name[:20] + "_" + hex.EncodeToString(hash[:])[:12]
	}
	return "tasktracker_test_" + name
}
