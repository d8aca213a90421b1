package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/middleware"
)

// DefaultAPIPrefix is the prefix of all API routes.
const DefaultAPIPrefix = "/api"

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger *zap.Logger

	// AuthMiddleware resolves the caller identity on API routes.
	// When nil the router falls back to middleware.HeaderIdentity.
	AuthMiddleware echo.MiddlewareFunc

	// MetricsMiddleware records request metrics. Optional.
	MetricsMiddleware echo.MiddlewareFunc

	CORSConfig     middleware.CORSConfig
	LoggingConfig  middleware.LoggingConfig
	RecoveryConfig middleware.RecoveryConfig

	APIPrefix string
}

// DefaultRouterConfig returns a RouterConfig with sensible defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Logger:         zap.NewNop(),
		CORSConfig:     middleware.DefaultCORSConfig(),
		LoggingConfig:  middleware.DefaultLoggingConfig(),
		RecoveryConfig: middleware.DefaultRecoveryConfig(),
		APIPrefix:      DefaultAPIPrefix,
	}
}

// Router manages HTTP route groups and middleware chains.
type Router struct {
	echo   *echo.Echo
	config RouterConfig
	logger *zap.Logger

	api *echo.Group
}

// NewRouter creates a new router with the given configuration.
func NewRouter(e *echo.Echo, config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.APIPrefix == "" {
		config.APIPrefix = DefaultAPIPrefix
	}
	if config.LoggingConfig.Logger == nil {
		config.LoggingConfig.Logger = config.Logger
	}
	if config.RecoveryConfig.Logger == nil {
		config.RecoveryConfig.Logger = config.Logger
	}

	r := &Router{
		echo:   e,
		config: config,
		logger: config.Logger,
	}

	r.setupGlobalMiddleware()
	r.setupRouteGroups()

	return r
}

func (r *Router) setupGlobalMiddleware() {
	// Recovery first so it sees panics from every other middleware
	r.echo.Use(middleware.RecoveryWithConfig(r.config.RecoveryConfig))
	r.echo.Use(middleware.CORS(r.config.CORSConfig))
	r.echo.Use(middleware.Logging(r.config.LoggingConfig))

	if r.config.MetricsMiddleware != nil {
		r.echo.Use(r.config.MetricsMiddleware)
	}
}

func (r *Router) setupRouteGroups() {
	identity := r.config.AuthMiddleware
	if identity == nil {
		identity = middleware.HeaderIdentity()
		r.logger.Warn("no auth middleware configured, trusting " + middleware.UserIDHeader + " header")
	}
	r.api = r.echo.Group(r.config.APIPrefix, identity)
}

// Echo returns the underlying Echo instance.
func (r *Router) Echo() *echo.Echo {
	return r.echo
}

// API returns the API route group. Identity is resolved but not required;
// add middleware.RequireUser on routes that need it.
func (r *Router) API() *echo.Group {
	return r.api
}

// RouteRegistrar registers a set of routes on the router.
type RouteRegistrar interface {
	RegisterRoutes(r *Router)
}

// RegisterAll registers all route registrars with the router.
func (r *Router) RegisterAll(registrars ...RouteRegistrar) {
	for _, registrar := range registrars {
		registrar.RegisterRoutes(r)
	}
}

// PrintRoutes logs all registered routes at debug level.
func (r *Router) PrintRoutes() {
	for _, route := range r.echo.Routes() {
		r.logger.Debug("registered route",
			zap.String("method", route.Method),
			zap.String("path", route.Path),
		)
	}
}

// RegisterMetricsEndpoint exposes gatherer on path in the Prometheus text format.
// A nil gatherer serves the default registry.
func (r *Router) RegisterMetricsEndpoint(path string, gatherer prometheus.Gatherer) {
	if path == "" {
		path = "/metrics"
	}
	handler := promhttp.Handler()
	if gatherer != nil {
		handler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	r.echo.GET(path, echo.WrapHandler(handler))
}
