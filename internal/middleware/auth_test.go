package middleware_test

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
	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/infrastructure/auth"
	"github.com/lllypuk/tasktracker/internal/middleware"
)

type mockTokenValidator struct {
	claims *middleware.TokenClaims
	err    error
}

func (m *mockTokenValidator) ValidateToken(_ context.Context, _ string) (*middleware.TokenClaims, error) {
	return m.claims, m.err
}

func newAuthEcho(config middleware.AuthConfig, extra ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Auth(config))
	handler := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]int64{"user_id": middleware.GetUserID(c)})
	}
	e.GET("/api/task", handler, extra...)
	e.GET("/health", handler)
	return e
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name           string
		optional       bool
		header         string
		validator      *mockTokenValidator
		expectedStatus int
		expectedCode   string
		expectedUserID int64
	}{
		{
			name:           "valid token",
			header:         "Bearer good",
			validator:      &mockTokenValidator{claims: &middleware.TokenClaims{UserID: 5}},
			expectedStatus: http.StatusOK,
			expectedUserID: 5,
		},
		{
			name:           "missing header",
			validator:      &mockTokenValidator{},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "UNAUTHORIZED",
		},
		{
			name:           "missing header on optional route",
			optional:       true,
			validator:      &mockTokenValidator{},
			expectedStatus: http.StatusOK,
			expectedUserID: 0,
		},
		{
			name:           "invalid header on optional route",
			optional:       true,
			header:         "Basic abc",
			validator:      &mockTokenValidator{},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "UNAUTHORIZED",
		},
		{
			name:           "expired token",
			header:         "Bearer old",
			validator:      &mockTokenValidator{err: middleware.ErrTokenExpired},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "TOKEN_EXPIRED",
		},
		{
			name:           "empty bearer",
			header:         "Bearer ",
			validator:      &mockTokenValidator{},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "UNAUTHORIZED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newAuthEcho(middleware.AuthConfig{
				Logger:         zap.NewNop(),
				TokenValidator: tt.validator,
				Optional:       tt.optional,
			})

			req := httptest.NewRequest(http.MethodGet, "/api/task", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeErrorCode(t, rec))
				return
			}
			assert.JSONEq(t, `{"user_id":`+itoa(tt.expectedUserID)+`}`, rec.Body.String())
		})
	}
}

func TestAuth_SkipPaths(t *testing.T) {
	e := newAuthEcho(middleware.AuthConfig{
		Logger:         zap.NewNop(),
		TokenValidator: &mockTokenValidator{err: errors.New("never called")},
		SkipPaths:      []string{"/health"},
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireUser(t *testing.T) {
	e := newAuthEcho(middleware.AuthConfig{
		Logger:         zap.NewNop(),
		TokenValidator: &mockTokenValidator{},
		Optional:       true,
	}, middleware.RequireUser())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/task", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHeaderIdentity(t *testing.T) {
	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedBody   string
	}{
		{name: "no header is anonymous", expectedStatus: http.StatusOK, expectedBody: `{"user_id":0}`},
		{name: "numeric header", header: "3", expectedStatus: http.StatusOK, expectedBody: `{"user_id":3}`},
		{name: "non numeric header", header: "abc", expectedStatus: http.StatusUnauthorized},
		{name: "negative header", header: "-1", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(middleware.HeaderIdentity())
			e.GET("/", func(c echo.Context) error {
				return c.JSON(http.StatusOK, map[string]int64{"user_id": middleware.GetUserID(c)})
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(middleware.UserIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, rec.Body.String())
			}
		})
	}
}

func TestValidatorAdapter(t *testing.T) {
	const secret = "adapter-secret"
	validator, err := auth.NewHMACValidator(secret, auth.Options{})
	require.NoError(t, err)
	adapter := middleware.NewValidatorAdapter(validator)

	t.Run("valid token", func(t *testing.T) {
		token, err := auth.IssueHMACToken(secret, 11, auth.Options{}, time.Minute)
		require.NoError(t, err)

		claims, err := adapter.ValidateToken(context.Background(), token)

		require.NoError(t, err)
		assert.Equal(t, int64(11), claims.UserID)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := auth.IssueHMACToken(secret, 11, auth.Options{}, -time.Hour)
		require.NoError(t, err)

		_, err = adapter.ValidateToken(context.Background(), token)

		require.ErrorIs(t, err, middleware.ErrTokenExpired)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := adapter.ValidateToken(context.Background(), "garbage")
		require.ErrorIs(t, err, middleware.ErrInvalidToken)
	})

	assert.NoError(t, adapter.Close())
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
