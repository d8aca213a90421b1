package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/lllypuk/tasktracker/internal/middleware"
)

func TestDefaultCORSConfig(t *testing.T) {
	config := middleware.DefaultCORSConfig()

	assert.Equal(t, []string{"*"}, config.AllowOrigins)
	assert.Contains(t, config.AllowMethods, http.MethodDelete)
	assert.Contains(t, config.AllowHeaders, echo.HeaderAuthorization)
	assert.Contains(t, config.AllowHeaders, middleware.UserIDHeader)
	assert.Equal(t, []string{middleware.RequestIDHeader}, config.ExposeHeaders)
	assert.Equal(t, middleware.DefaultCORSMaxAge, config.MaxAge)
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name                string
		origins             []string
		requestOrigin       string
		expectedAllowOrigin string
	}{
		{
			name:                "default config allows all origins",
			requestOrigin:       "http://example.com",
			expectedAllowOrigin: "*",
		},
		{
			name:                "specific origin allowed",
			origins:             []string{"http://localhost:3000"},
			requestOrigin:       "http://localhost:3000",
			expectedAllowOrigin: "http://localhost:3000",
		},
		{
			name:                "origin not in list",
			origins:             []string{"http://localhost:3000"},
			requestOrigin:       "http://evil.example",
			expectedAllowOrigin: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := middleware.DefaultCORSConfig()
			config.AllowOrigins = tt.origins

			e := echo.New()
			e.Use(middleware.CORS(config))
			e.DELETE("/api/task/:taskId", func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodOptions, "/api/task/2", nil)
			req.Header.Set(echo.HeaderOrigin, tt.requestOrigin)
			req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodDelete)
			rec := httptest.NewRecorder()

			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedAllowOrigin, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		})
	}
}
