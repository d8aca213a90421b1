package main

import (
	"github.com/labstack/echo/v4"

	"github.com/lllypuk/tasktracker/internal/infrastructure/httpserver"
	"github.com/lllypuk/tasktracker/internal/middleware"
)

// healthPaths never require credentials and are not counted in request metrics.
var healthPaths = []string{"/health", "/ready", "/health/details"}

// SetupRoutes configures all application routes on the Echo instance.
func SetupRoutes(c *Container, e *echo.Echo) *httpserver.Router {
	routerCfg := httpserver.DefaultRouterConfig()
	routerCfg.Logger = c.Logger

	if len(c.Config.Server.CORSOrigins) > 0 {
		routerCfg.CORSConfig.AllowOrigins = c.Config.Server.CORSOrigins
	}

	if c.TokenValidator != nil {
		routerCfg.AuthMiddleware = middleware.Auth(middleware.AuthConfig{
			Logger:         c.Logger,
			TokenValidator: c.TokenValidator,
			SkipPaths:      healthPaths,
			Optional:       true,
		})
	}

	if c.Config.Metrics.Enabled {
		skip := append([]string{c.Config.Metrics.Path}, healthPaths...)
		routerCfg.MetricsMiddleware = middleware.Metrics(c.HTTPMetrics, skip...)
	}

	router := httpserver.NewRouter(e, routerCfg)

	router.RegisterHealthEndpoints(c.Health)
	if c.Config.Metrics.Enabled {
		router.RegisterMetricsEndpoint(c.Config.Metrics.Path, c.Registry)
	}

	router.RegisterAll(c.TaskHandler, c.WSHandler)

	router.PrintRoutes()
	return router
}
