package httpserver_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/infrastructure/httpserver"
	"github.com/lllypuk/tasktracker/internal/middleware"
)

func whoAmI(c echo.Context) error {
	return c.String(http.StatusOK, strconv.FormatInt(middleware.GetUserID(c), 10))
}

func TestDefaultRouterConfig(t *testing.T) {
	config := httpserver.DefaultRouterConfig()

	assert.NotNil(t, config.Logger)
	assert.Equal(t, "/api", config.APIPrefix)
	assert.NotEmpty(t, config.CORSConfig.AllowOrigins)
	assert.NotEmpty(t, config.LoggingConfig.SkipPaths)
	assert.Nil(t, config.AuthMiddleware)
}

func TestNewRouter(t *testing.T) {
	e := echo.New()
	config := httpserver.DefaultRouterConfig()
	config.Logger = nil
	config.APIPrefix = ""

	router := httpserver.NewRouter(e, config)

	require.NotNil(t, router)
	assert.Equal(t, e, router.Echo())
	require.NotNil(t, router.API())

	router.API().GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestRouter_HeaderIdentityFallback(t *testing.T) {
	e := echo.New()
	router := httpserver.NewRouter(e, httpserver.DefaultRouterConfig())
	router.API().GET("/me", whoAmI)
	router.API().POST("/me", whoAmI, middleware.RequireUser())

	tests := []struct {
		name           string
		method         string
		header         string
		expectedStatus int
		expectedBody   string
	}{
		{"anonymous read", http.MethodGet, "", http.StatusOK, "0"},
		{"identified read", http.MethodGet, "7", http.StatusOK, "7"},
		{"invalid header", http.MethodGet, "abc", http.StatusUnauthorized, ""},
		{"required and missing", http.MethodPost, "", http.StatusUnauthorized, ""},
		{"required and present", http.MethodPost, "3", http.StatusOK, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set(middleware.UserIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Equal(t, tt.expectedBody, rec.Body.String())
			}
		})
	}
}

func TestRouter_CustomAuthMiddleware(t *testing.T) {
	e := echo.New()
	config := httpserver.DefaultRouterConfig()
	config.AuthMiddleware = func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(string(middleware.ContextKeyUserID), int64(42))
			return next(c)
		}
	}
	router := httpserver.NewRouter(e, config)
	router.API().GET("/me", whoAmI)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	// header is ignored once a real auth middleware is configured
	req.Header.Set(middleware.UserIDHeader, "7")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())
}

func TestRouter_MetricsMiddleware(t *testing.T) {
	e := echo.New()
	calls := 0
	config := httpserver.DefaultRouterConfig()
	config.MetricsMiddleware = func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			calls++
			return next(c)
		}
	}
	router := httpserver.NewRouter(e, config)
	router.API().GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestRouter_RecoveryMiddleware(t *testing.T) {
	e := echo.New()
	router := httpserver.NewRouter(e, httpserver.DefaultRouterConfig())
	router.API().GET("/panic", func(_ echo.Context) error {
		panic("test panic")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestRouter_CORSPreflight(t *testing.T) {
	e := echo.New()
	router := httpserver.NewRouter(e, httpserver.DefaultRouterConfig())
	router.API().DELETE("/task/:taskId", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/task/1", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodDelete)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

type registrarFunc func(r *httpserver.Router)

func (f registrarFunc) RegisterRoutes(r *httpserver.Router) { f(r) }

func TestRouter_RegisterAll(t *testing.T) {
	e := echo.New()
	router := httpserver.NewRouter(e, httpserver.DefaultRouterConfig())

	router.RegisterAll(
		registrarFunc(func(r *httpserver.Router) {
			r.API().GET("/a", func(c echo.Context) error { return c.String(http.StatusOK, "a") })
		}),
		registrarFunc(func(r *httpserver.Router) {
			r.API().GET("/b", func(c echo.Context) error { return c.String(http.StatusOK, "b") })
		}),
	)

	for _, path := range []string{"/api/a", "/api/b"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouter_PrintRoutes(t *testing.T) {
	e := echo.New()
	config := httpserver.DefaultRouterConfig()
	config.Logger = zap.NewExample()
	router := httpserver.NewRouter(e, config)
	router.API().GET("/x", func(c echo.Context) error { return nil })

	assert.NotPanics(t, router.PrintRoutes)
}

func TestRouter_RegisterMetricsEndpoint(t *testing.T) {
	e := echo.New()
	router := httpserver.NewRouter(e, httpserver.DefaultRouterConfig())

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	router.RegisterMetricsEndpoint("/metrics", registry)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "router_test_total 1"))
}
