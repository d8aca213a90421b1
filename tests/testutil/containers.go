package testutil

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

// Container test configuration constants
const (
	containerStartupTimeout   = 90 * time.Second
	containerTerminateTimeout = 5 * time.Second
	containerCtxTimeout       = 15 * time.Second
	pingTimeout               = 2 * time.Second
	pingRetryDelay            = 500 * time.Millisecond
	pingRetries               = 5
	containerMemoryLimit      = 256 * 1024 * 1024 // 256MB
)

// sharedContainer is a lazily started container reused by every test in the
// package. A container that stopped between tests is started again.
type sharedContainer struct {
	name string
	req  testcontainers.ContainerRequest
	port nat.Port

	mu        sync.Mutex
	container testcontainers.Container
	hostPort  string
}

func newSharedContainer(name string, req testcontainers.ContainerRequest, port nat.Port) *sharedContainer {
	if req.HostConfigModifier == nil {
		req.HostConfigModifier = func(hc *container.HostConfig) {
			hc.Memory = containerMemoryLimit
			hc.MemorySwap = containerMemoryLimit
		}
	}
	return &sharedContainer{name: name, req: req, port: port}
}

// endpoint returns host:port of the mapped container port.
func (s *sharedContainer) endpoint(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.container != nil {
		if s.isRunning(ctx) {
			return s.hostPort, nil
		}
		s.terminateLocked()
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), containerStartupTimeout)
	defer cancel()

	cont, err := testcontainers.GenericContainer(startupCtx, testcontainers.GenericContainerRequest{
		ContainerRequest: s.req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start %s container: %w", s.name, err)
	}

	host, err := cont.Host(startupCtx)
	if err != nil {
		_ = cont.Terminate(startupCtx)
		return "", fmt.Errorf("failed to get %s container host: %w", s.name, err)
	}

	mapped, err := cont.MappedPort(startupCtx, s.port)
	if err != nil {
		_ = cont.Terminate(startupCtx)
		return "", fmt.Errorf("failed to get %s container port: %w", s.name, err)
	}

	s.container = cont
	s.hostPort = net.JoinHostPort(host, mapped.Port())
	return s.hostPort, nil
}

func (s *sharedContainer) isRunning(ctx context.Context) bool {
	state, err := s.container.State(ctx)
	return err == nil && state.Running
}

// terminate stops the container. Call it from TestMain.
func (s *sharedContainer) terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminateLocked()
}

func (s *sharedContainer) terminateLocked() {
	if s.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), containerTerminateTimeout)
	defer cancel()
	_ = s.container.Terminate(ctx)
	s.container = nil
	s.hostPort = ""
}

// retryPing calls ping until it succeeds or the attempts run out.
func retryPing(ping func(ctx context.Context) error) error {
	var err error
	for i := range pingRetries {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err = ping(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if i < pingRetries-1 {
			time.Sleep(pingRetryDelay)
		}
	}
	return fmt.Errorf("ping failed after %d retries: %w", pingRetries, err)
}

// CleanupContainers terminates every shared container that was started.
func CleanupContainers() {
	for _, c := range []*sharedContainer{redisContainer, mongoContainer, postgresContainer, rabbitContainer} {
		c.terminate()
	}
}
