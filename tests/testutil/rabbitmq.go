package testutil

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var rabbitContainer = newSharedContainer("rabbitmq", testcontainers.ContainerRequest{
	Image:        "rabbitmq:3-alpine",
	ExposedPorts: []string{"5672/tcp"},
	WaitingFor: wait.ForAll(
		wait.ForLog("Server startup complete").WithStartupTimeout(containerStartupTimeout),
		wait.ForListeningPort("5672/tcp").WithStartupTimeout(containerStartupTimeout),
	),
}, "5672/tcp")

// SetupTestRabbitMQ returns the AMQP URL of the shared RabbitMQ container.
func SetupTestRabbitMQ(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), containerCtxTimeout)
	defer cancel()

	hostPort, err := rabbitContainer.endpoint(ctx)
	if err != nil {
		t.Fatalf("Failed to get shared RabbitMQ container: %v", err)
	}

	url := "amqp://guest:guest@" + hostPort + "/"
	err = retryPing(func(context.Context) error {
		conn, dialErr := amqp.Dial(url)
		if dialErr != nil {
			return dialErr
		}
		return conn.Close()
	})
	if err != nil {
		t.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	return url
}
