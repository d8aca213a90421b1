package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lllypuk/tasktracker/internal/infrastructure/postgres"
)

const (
	postgresUser     = "tasktracker"
	postgresPassword = "tasktracker"
	postgresDatabase = "tasktracker"
)

var postgresContainer = newSharedContainer("postgres", testcontainers.ContainerRequest{
	Image:        "postgres:16-alpine",
	ExposedPorts: []string{"5432/tcp"},
	Env: map[string]string{
		"POSTGRES_USER":     postgresUser,
		"POSTGRES_PASSWORD": postgresPassword,
		"POSTGRES_DB":       postgresDatabase,
	},
	WaitingFor: wait.ForAll(
		wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(containerStartupTimeout),
		wait.ForListeningPort("5432/tcp").WithStartupTimeout(containerStartupTimeout),
	),
}, "5432/tcp")

func postgresDSN(hostPort, database string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(postgresUser, postgresPassword),
		Host:     hostPort,
		Path:     "/" + database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SetupTestPostgres creates a database private to the test on the shared
// container and returns its DSN. The database is dropped when the test ends.
func SetupTestPostgres(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), containerCtxTimeout)
	defer cancel()

	hostPort, err := postgresContainer.endpoint(ctx)
	if err != nil {
		t.Fatalf("Failed to get shared Postgres container: %v", err)
	}

	var admin *pgx.Conn
	err = retryPing(func(ctx context.Context) error {
		conn, connErr := pgx.Connect(ctx, postgresDSN(hostPort, postgresDatabase))
		if connErr != nil {
			return connErr
		}
		admin = conn
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer func() { _ = admin.Close(context.Background()) }()

	dbName := TestDatabaseName(t.Name())
	quoted := pgx.Identifier{dbName}.Sanitize()
	if _, err = admin.Exec(ctx, "DROP DATABASE IF EXISTS "+quoted); err != nil {
		t.Fatalf("Failed to drop test database: %v", err)
	}
	if _, err = admin.Exec(ctx, "CREATE DATABASE "+quoted); err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), containerCtxTimeout)
		defer cleanupCancel()
		conn, connErr := pgx.Connect(cleanupCtx, postgresDSN(hostPort, postgresDatabase))
		if connErr != nil {
			return
		}
		defer func() { _ = conn.Close(cleanupCtx) }()
		_, _ = conn.Exec(cleanupCtx, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", quoted))
	})

	return postgresDSN(hostPort, dbName)
}

// SetupTestPostgresPool returns a pool on a database private to the test.
func SetupTestPostgresPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := SetupTestPostgres(t)

	ctx, cancel := context.WithTimeout(context.Background(), containerCtxTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err = retryPing(pool.Ping); err != nil {
		t.Fatalf("Failed to ping Postgres: %v", err)
	}
	return pool
}

// SetupTestPostgresSchema returns a migrated pool together with a
// database/sql handle on the same pool for the fixture harness.
func SetupTestPostgresSchema(t *testing.T) (*pgxpool.Pool, *sql.DB) {
	t.Helper()

	pool := SetupTestPostgresPool(t)

	ctx, cancel := context.WithTimeout(context.Background(), containerCtxTimeout)
	defer cancel()

	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("Failed to migrate Postgres: %v", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	t.Cleanup(func() { _ = db.Close() })
	return pool, db
}
