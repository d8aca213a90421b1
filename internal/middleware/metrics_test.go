package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/tasktracker/internal/middleware"
)

type observation struct {
	method, route, status string
}

type recorderSpy struct {
	mu   sync.Mutex
	seen []observation
}

func (r *recorderSpy) ObserveRequest(method, route, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, observation{method, route, status})
}

func TestMetrics(t *testing.T) {
	spy := &recorderSpy{}

	e := echo.New()
	e.Use(middleware.Metrics(spy, "/metrics"))
	e.DELETE("/api/task/:taskId", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/api/task/:taskId", func(echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound)
	})
	e.GET("/metrics", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodDelete, "/api/task/2", nil),
		httptest.NewRequest(http.MethodGet, "/api/task/7", nil),
		httptest.NewRequest(http.MethodGet, "/metrics", nil),
	} {
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Len(t, spy.seen, 2)
	assert.Equal(t, observation{http.MethodDelete, "/api/task/:taskId", "200"}, spy.seen[0])
	assert.Equal(t, observation{http.MethodGet, "/api/task/:taskId", "404"}, spy.seen[1])
}
