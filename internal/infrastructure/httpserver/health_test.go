package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/tasktracker/internal/infrastructure/httpserver"
)

func okProbe(name string) httpserver.Probe {
	return httpserver.Probe{Name: name, Check: func(context.Context) error { return nil }}
}

func failingProbe(name string, optional bool) httpserver.Probe {
	return httpserver.Probe{
		Name:     name,
		Optional: optional,
		Check:    func(context.Context) error { return errors.New(name + " down") },
	}
}

func serveHealth(t *testing.T, checker httpserver.HealthChecker, path string) (int, httpserver.HealthResponse) {
	t.Helper()

	e := echo.New()
	httpserver.NewHealthEndpoints(checker).Register(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp httpserver.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestProbeChecker(t *testing.T) {
	tests := []struct {
		name      string
		probes    []httpserver.Probe
		ready     bool
		statuses  []string
		lastError string
	}{
		{
			name:     "all healthy",
			probes:   []httpserver.Probe{okProbe("storage"), okProbe("eventbus")},
			ready:    true,
			statuses: []string{httpserver.StatusHealthy, httpserver.StatusHealthy},
		},
		{
			name:      "required probe fails",
			probes:    []httpserver.Probe{okProbe("eventbus"), failingProbe("storage", false)},
			ready:     false,
			statuses:  []string{httpserver.StatusHealthy, httpserver.StatusUnhealthy},
			lastError: "storage down",
		},
		{
			name:      "optional probe fails",
			probes:    []httpserver.Probe{okProbe("storage"), failingProbe("eventbus", true)},
			ready:     true,
			statuses:  []string{httpserver.StatusHealthy, httpserver.StatusDegraded},
			lastError: "eventbus down",
		},
		{
			name:  "no probes",
			ready: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := httpserver.NewProbeChecker(0, tt.probes...)

			assert.Equal(t, tt.ready, checker.IsReady(context.Background()))

			statuses := checker.GetHealthStatus(context.Background())
			require.Len(t, statuses, len(tt.statuses))
			for i, s := range statuses {
				assert.Equal(t, tt.probes[i].Name, s.Name)
				assert.Equal(t, tt.statuses[i], s.Status)
			}
			if tt.lastError != "" {
				assert.Equal(t, tt.lastError, statuses[len(statuses)-1].Message)
			}
		})
	}
}

func TestProbeChecker_Timeout(t *testing.T) {
	slow := httpserver.Probe{
		Name: "slow",
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	checker := httpserver.NewProbeChecker(10*time.Millisecond, slow)

	statuses := checker.GetHealthStatus(context.Background())
	require.Len(t, statuses, 1)
	assert.Equal(t, httpserver.StatusUnhealthy, statuses[0].Status)
	assert.Contains(t, statuses[0].Message, "deadline exceeded")
}

func TestHealthEndpoints(t *testing.T) {
	healthy := httpserver.NewProbeChecker(0, okProbe("storage"))
	down := httpserver.NewProbeChecker(0, failingProbe("storage", false))
	degraded := httpserver.NewProbeChecker(0, okProbe("storage"), failingProbe("eventbus", true))

	tests := []struct {
		name           string
		checker        httpserver.HealthChecker
		path           string
		expectedStatus int
		expectedBody   string
		components     int
	}{
		{"liveness", down, "/health", http.StatusOK, httpserver.StatusHealthy, 0},
		{"ready", healthy, "/ready", http.StatusOK, httpserver.StatusReady, 0},
		{"ready without checker", nil, "/ready", http.StatusOK, httpserver.StatusReady, 0},
		{"not ready", down, "/ready", http.StatusServiceUnavailable, httpserver.StatusNotReady, 1},
		{"details healthy", healthy, "/health/details", http.StatusOK, httpserver.StatusHealthy, 1},
		{"details degraded", degraded, "/health/details", http.StatusOK, httpserver.StatusDegraded, 2},
		{"details unhealthy", down, "/health/details", http.StatusServiceUnavailable, httpserver.StatusUnhealthy, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := serveHealth(t, tt.checker, tt.path)

			assert.Equal(t, tt.expectedStatus, code)
			assert.Equal(t, tt.expectedBody, resp.Status)
			assert.Len(t, resp.Components, tt.components)
		})
	}
}

func TestRouter_RegisterHealthEndpoints(t *testing.T) {
	e := echo.New()
	router := httpserver.NewRouter(e, httpserver.DefaultRouterConfig())
	router.RegisterHealthEndpoints(httpserver.NewProbeChecker(0, okProbe("storage")))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}
