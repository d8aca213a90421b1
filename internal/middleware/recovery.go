package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// DefaultStackSize is the default stack trace size (4KB).
const DefaultStackSize = 4 << 10

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	Logger *zap.Logger

	// StackSize is the maximum size of the stack trace to capture.
	StackSize int

	// DisableStackAll limits the captured stack to the current goroutine.
	DisableStackAll bool

	DisablePrintStack bool
}

// DefaultRecoveryConfig returns a RecoveryConfig with sensible defaults.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Logger:          zap.L(),
		StackSize:       DefaultStackSize,
		DisableStackAll: true,
	}
}

// Recovery returns a middleware that recovers from panics and logs the error.
func Recovery(logger *zap.Logger) echo.MiddlewareFunc {
	config := DefaultRecoveryConfig()
	config.Logger = logger
	return RecoveryWithConfig(config)
}

// RecoveryWithConfig returns a recovery middleware with custom configuration.
func RecoveryWithConfig(config RecoveryConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = zap.L()
	}
	if config.StackSize == 0 {
		config.StackSize = DefaultStackSize
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("%v", r)
				}

				req := c.Request()
				fields := []zap.Field{
					zap.Error(err),
					zap.String("method", req.Method),
					zap.String("path", req.URL.Path),
					zap.String("remote_ip", c.RealIP()),
				}
				if requestID := GetRequestID(c); requestID != "" {
					fields = append(fields, zap.String("request_id", requestID))
				}
				if !config.DisablePrintStack {
					stack := make([]byte, config.StackSize)
					length := runtime.Stack(stack, !config.DisableStackAll)
					fields = append(fields, zap.ByteString("stack", stack[:length]))
				}

				config.Logger.Error("panic recovered", fields...)

				if !c.Response().Committed {
					_ = respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
				}
			}()

			return next(c)
		}
	}
}

// respondError writes the API error envelope.
func respondError(c echo.Context, status int, code, message string) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/json; charset=UTF-8")
	return c.JSON(status, map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
