package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lllypuk/tasktracker/internal/middleware"
)

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestDefaultLoggingConfig(t *testing.T) {
	config := middleware.DefaultLoggingConfig()

	assert.NotNil(t, config.Logger)
	assert.Equal(t, []string{"/health", "/ready", "/metrics"}, config.SkipPaths)
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name          string
		method        string
		path          string
		expectedLevel zapcore.Level
		expectLog     bool
	}{
		{
			name:          "successful request logs at info",
			method:        http.MethodGet,
			path:          "/api/task",
			expectedLevel: zapcore.InfoLevel,
			expectLog:     true,
		},
		{
			name:          "not found logs at warn",
			method:        http.MethodDelete,
			path:          "/api/task/404",
			expectedLevel: zapcore.WarnLevel,
			expectLog:     true,
		},
		{
			name:          "server error logs at error",
			method:        http.MethodGet,
			path:          "/boom",
			expectedLevel: zapcore.ErrorLevel,
			expectLog:     true,
		},
		{
			name:      "health check is skipped",
			method:    http.MethodGet,
			path:      "/health",
			expectLog: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := newObservedLogger()

			e := echo.New()
			e.Use(middleware.Logging(middleware.LoggingConfig{
				Logger:    logger,
				SkipPaths: []string{"/health"},
			}))
			e.GET("/api/task", func(c echo.Context) error {
				return c.String(http.StatusOK, "[]")
			})
			e.DELETE("/api/task/:taskId", func(c echo.Context) error {
				return c.String(http.StatusNotFound, "missing")
			})
			e.GET("/boom", func(c echo.Context) error {
				return c.String(http.StatusInternalServerError, "boom")
			})
			e.GET("/health", func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if !tt.expectLog {
				assert.Equal(t, 0, logs.Len())
				return
			}

			entries := logs.FilterMessage("HTTP request").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.expectedLevel, entries[0].Level)
			fields := entries[0].ContextMap()
			assert.Equal(t, tt.method, fields["method"])
			assert.Equal(t, tt.path, fields["path"])
			assert.EqualValues(t, rec.Code, fields["status"])
		})
	}
}

func TestLoggingRequestID(t *testing.T) {
	t.Run("generates request ID when not provided", func(t *testing.T) {
		logger, _ := newObservedLogger()
		e := echo.New()
		e.Use(middleware.Logging(middleware.LoggingConfig{Logger: logger}))

		var seen string
		e.GET("/", func(c echo.Context) error {
			seen = middleware.GetRequestID(c)
			return c.NoContent(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("uses provided request ID", func(t *testing.T) {
		logger, logs := newObservedLogger()
		e := echo.New()
		e.Use(middleware.Logging(middleware.LoggingConfig{Logger: logger}))
		e.GET("/", func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.RequestIDHeader, "custom-request-id-123")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, "custom-request-id-123", rec.Header().Get(middleware.RequestIDHeader))
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "custom-request-id-123", logs.All()[0].ContextMap()["request_id"])
	})

	t.Run("skipped paths still get a request ID", func(t *testing.T) {
		logger, logs := newObservedLogger()
		e := echo.New()
		e.Use(middleware.Logging(middleware.LoggingConfig{Logger: logger, SkipPaths: []string{"/ready"}}))
		e.GET("/ready", func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
		assert.Equal(t, 0, logs.Len())
	})
}

func TestGetRequestID_Missing(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	assert.Empty(t, middleware.GetRequestID(c))
}
