package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const redisTestPoolSize = 10

var redisContainer = newSharedContainer("redis", testcontainers.ContainerRequest{
	Image:        "redis:7-alpine",
	ExposedPorts: []string{"6379/tcp"},
	WaitingFor: wait.ForAll(
		wait.ForLog("Ready to accept connections").WithStartupTimeout(containerStartupTimeout),
		wait.ForListeningPort("6379/tcp").WithStartupTimeout(containerStartupTimeout),
	),
}, "6379/tcp")

// RedisAddr returns host:port of the shared Redis container.
func RedisAddr(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), containerCtxTimeout)
	defer cancel()

	addr, err := redisContainer.endpoint(ctx)
	if err != nil {
		t.Fatalf("Failed to get shared Redis container: %v", err)
	}
	return addr
}

// SetupTestRedis creates a Redis client on the shared container. The
// database is flushed when the test ends.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:     RedisAddr(t),
		PoolSize: redisTestPoolSize,
	})

	if err := retryPing(func(ctx context.Context) error { return client.Ping(ctx).Err() }); err != nil {
		_ = client.Close()
		t.Fatalf("Failed to ping Redis: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), containerCtxTimeout)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})

	return client
}

// SetupTestRedisWithPrefix creates a Redis client and returns a key prefix
// unique to the test.
func SetupTestRedisWithPrefix(t *testing.T) (*redis.Client, string) {
	t.Helper()

	client := SetupTestRedis(t)
	prefix := fmt.Sprintf("test:%s:", strings.ReplaceAll(t.Name(), "/", "_"))

	return client, prefix
}
