// Package testutil holds shared helpers for package and integration tests:
// contexts, loggers and throwaway containers for every backing service.
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const contextTimeout = 30 * time.Second

// NewTestContext creates context with timeout for tests
func NewTestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), contextTimeout)
	t.Cleanup(cancel)
	return ctx
}

// NewTestLogger returns a logger that writes through t.Log.
func NewTestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}
