package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// HTTPRecorder receives one observation per request.
type HTTPRecorder interface {
	ObserveRequest(method, route, status string, duration time.Duration)
}

// Metrics records request count and latency by route template.
// Unmatched routes are reported as "unmatched" to keep label cardinality bounded.
func Metrics(recorder HTTPRecorder, skipPaths ...string) echo.MiddlewareFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := skip[c.Request().URL.Path]; ok {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			recorder.ObserveRequest(c.Request().Method, route, strconv.Itoa(status), time.Since(start))
			return err
		}
	}
}
