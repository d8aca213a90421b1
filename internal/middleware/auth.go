package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Context keys for authentication data.
type contextKey string

const (
	// ContextKeyUserID is the context key for the numeric user ID.
	ContextKeyUserID contextKey = "user_id"

	// ContextKeyUserName is the context key for the display name, if the token carries one.
	ContextKeyUserName contextKey = "user_name"
)

// UserIDHeader carries the caller's user id when token auth is disabled.
const UserIDHeader = "X-User-ID"

// Auth errors.
var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthHeader = errors.New("invalid authorization header format")
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrInvalidUserHeader = errors.New("invalid user id header")
)

// TokenClaims represents the claims extracted from a bearer token.
type TokenClaims struct {
	UserID    int64
	Name      string
	ExpiresAt time.Time
}

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger         *zap.Logger
	TokenValidator TokenValidator

	// SkipPaths are paths that never look at credentials.
	SkipPaths []string

	// Optional lets requests without an Authorization header through anonymously.
	// A header that is present must still be valid.
	Optional bool
}

// Auth returns an authentication middleware with the given configuration.
func Auth(config AuthConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = zap.L()
	}

	skipPaths := make(map[string]struct{}, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipPaths[path] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if _, ok := skipPaths[path]; ok {
				return next(c)
			}

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" && config.Optional {
				return next(c)
			}

			token, err := extractBearerToken(authHeader)
			if err != nil {
				return respondAuthError(c, err)
			}

			if config.TokenValidator == nil {
				config.Logger.Error("token validator not configured")
				return respondAuthError(c, ErrInvalidToken)
			}

			claims, err := config.TokenValidator.ValidateToken(c.Request().Context(), token)
			if err != nil {
				config.Logger.Warn("token validation failed",
					zap.Error(err),
					zap.String("path", path),
					zap.String("remote_ip", c.RealIP()),
				)
				return respondAuthError(c, err)
			}

			enrichContext(c, claims)
			config.Logger.Debug("user authenticated",
				zap.Int64("user_id", claims.UserID),
				zap.String("path", path),
			)

			return next(c)
		}
	}
}

// HeaderIdentity trusts the X-User-ID header. It replaces Auth when token
// validation is disabled, for local runs and tests.
func HeaderIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(UserIDHeader)
			if raw == "" {
				return next(c)
			}
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				return respondAuthError(c, ErrInvalidUserHeader)
			}
			enrichContext(c, &TokenClaims{UserID: userID})
			return next(c)
		}
	}
}

// RequireUser rejects requests that carry no identity.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetUserID(c) == 0 {
				return respondAuthError(c, ErrMissingAuthHeader)
			}
			return next(c)
		}
	}
}

func extractBearerToken(authHeader string) (string, error) {
	const bearerPrefix = "Bearer "
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	if token == "" {
		return "", ErrInvalidAuthHeader
	}
	return token, nil
}

func enrichContext(c echo.Context, claims *TokenClaims) {
	c.Set(string(ContextKeyUserID), claims.UserID)
	c.Set(string(ContextKeyUserName), claims.Name)
}

func respondAuthError(c echo.Context, err error) error {
	code := "UNAUTHORIZED"
	message := "Authentication required"

	switch {
	case errors.Is(err, ErrMissingAuthHeader):
		message = "Missing authorization header"
	case errors.Is(err, ErrInvalidAuthHeader):
		message = "Invalid authorization header format"
	case errors.Is(err, ErrTokenExpired):
		message = "Token has expired"
		code = "TOKEN_EXPIRED"
	case errors.Is(err, ErrInvalidUserHeader):
		message = "Invalid " + UserIDHeader + " header"
	case errors.Is(err, ErrInvalidToken):
		message = "Invalid token"
	}

	return respondError(c, http.StatusUnauthorized, code, message)
}

// GetUserID returns the authenticated user ID, or 0 for anonymous requests.
func GetUserID(c echo.Context) int64 {
	if id, ok := c.Get(string(ContextKeyUserID)).(int64); ok {
		return id
	}
	return 0
}

// GetUserName returns the display name from the token, if any.
func GetUserName(c echo.Context) string {
	if name, ok := c.Get(string(ContextKeyUserName)).(string); ok {
		return name
	}
	return ""
}
