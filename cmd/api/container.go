package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"

	taskapp "github.com/lllypuk/tasktracker/internal/application/task"
	"github.com/lllypuk/tasktracker/internal/config"
	"github.com/lllypuk/tasktracker/internal/domain/task"
	httphandler "github.com/lllypuk/tasktracker/internal/handler/http"
	wshandler "github.com/lllypuk/tasktracker/internal/handler/websocket"
	"github.com/lllypuk/tasktracker/internal/infrastructure/auth"
	"github.com/lllypuk/tasktracker/internal/infrastructure/eventbus"
	"github.com/lllypuk/tasktracker/internal/infrastructure/healthcheck"
	"github.com/lllypuk/tasktracker/internal/infrastructure/httpserver"
	"github.com/lllypuk/tasktracker/internal/infrastructure/metrics"
	mongodbinfra "github.com/lllypuk/tasktracker/internal/infrastructure/mongodb"
	"github.com/lllypuk/tasktracker/internal/infrastructure/postgres"
	mongorepo "github.com/lllypuk/tasktracker/internal/infrastructure/repository/mongodb"
	pgrepo "github.com/lllypuk/tasktracker/internal/infrastructure/repository/postgres"
	sqliterepo "github.com/lllypuk/tasktracker/internal/infrastructure/repository/sqlite"
	"github.com/lllypuk/tasktracker/internal/infrastructure/sqlite"
	"github.com/lllypuk/tasktracker/internal/infrastructure/websocket"
	"github.com/lllypuk/tasktracker/internal/middleware"
	"github.com/lllypuk/tasktracker/internal/service"
)

// Container initialization timeouts.
const (
	containerInitTimeout   = 30 * time.Second
	redisPingTimeout       = 5 * time.Second
	mongoDisconnectTimeout = 10 * time.Second
)

// Container holds all application dependencies and manages their lifecycle.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry

	// Storage, exactly one of the handles is set
	Postgres *pgxpool.Pool
	SQLite   *sql.DB
	MongoDB  *mongo.Client
	TaskRepo taskapp.Repository

	// Messaging
	Redis       *redis.Client
	EventBus    eventbus.Bus
	DeadLetters *eventbus.DeadLetterHandler
	Hub         *websocket.Hub
	Broadcaster *websocket.Broadcaster

	// Metrics
	TaskMetrics *metrics.TaskMetrics
	HTTPMetrics *metrics.HTTPMetrics
	DBMetrics   *metrics.DBMetrics

	// Auth
	Validator      auth.Validator
	TokenValidator middleware.TokenValidator

	// TaskService is the use case facade, or an in-memory service in mock mode.
	TaskService httphandler.TaskService
	TaskHandler *httphandler.TaskHandler
	WSHandler   *wshandler.Handler
	Health      *httpserver.ProbeChecker
}

// ContainerOption configures the Container.
type ContainerOption func(*Container)

// WithLogger sets a custom logger for the container.
func WithLogger(logger *zap.Logger) ContainerOption {
	return func(c *Container) {
		c.Logger = logger
	}
}

// WithRegistry sets the Prometheus registry metrics are registered on.
func WithRegistry(registry *prometheus.Registry) ContainerOption {
	return func(c *Container) {
		c.Registry = registry
	}
}

// WithTaskRepository replaces the configured storage.
func WithTaskRepository(repo taskapp.Repository) ContainerOption {
	return func(c *Container) {
		c.TaskRepo = repo
	}
}

// WithEventBus replaces the configured event bus.
func WithEventBus(bus eventbus.Bus) ContainerOption {
	return func(c *Container) {
		c.EventBus = bus
	}
}

// NewContainer creates a new dependency injection container.
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
		c.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c.logWiringMode()
	c.setupMetrics()

	if err := c.setupInfrastructure(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup infrastructure: %w", err)
	}

	if err := c.setupAuth(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup auth: %w", err)
	}

	c.setupServices()
	c.setupHTTPHandlers()
	c.setupHealth()

	if err := c.validateWiring(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("wiring validation failed: %w", err)
	}

	return c, nil
}

// logWiringMode logs the current wiring mode configuration.
func (c *Container) logWiringMode() {
	mode := c.Config.App.Mode
	if mode == "" {
		mode = config.AppModeReal
	}

	fields := []zap.Field{
		zap.String("mode", string(mode)),
		zap.Bool("is_development", c.Config.IsDevelopment()),
		zap.Bool("is_production", c.Config.IsProduction()),
	}
	if c.Config.App.IsMockMode() {
		c.Logger.Warn("container starting in MOCK mode", fields...)
		return
	}
	c.Logger.Info("container starting in REAL mode", fields...)
}

func (c *Container) setupMetrics() {
	c.TaskMetrics = metrics.NewTaskMetrics(c.Registry)
	c.HTTPMetrics = metrics.NewHTTPMetrics(c.Registry)
	c.DBMetrics = metrics.NewDBMetrics(c.Registry)
}

// setupInfrastructure initializes storage, the event bus and the websocket hub.
// Mock mode opens no storage and always uses the in-memory bus.
func (c *Container) setupInfrastructure() error {
	ctx, cancel := context.WithTimeout(context.Background(), containerInitTimeout)
	defer cancel()

	mock := c.Config.App.IsMockMode()

	if c.TaskRepo == nil && !mock {
		if err := c.setupStorage(ctx); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}

	switch {
	case c.EventBus != nil:
	case mock:
		c.EventBus = eventbus.NewInMemoryEventBus(c.busOptions()...)
	default:
		if err := c.setupEventBus(ctx); err != nil {
			return fmt.Errorf("event bus: %w", err)
		}
	}

	c.setupHub()

	if err := c.setupBroadcaster(); err != nil {
		return fmt.Errorf("broadcaster: %w", err)
	}

	return nil
}

func (c *Container) setupStorage(ctx context.Context) error {
	switch c.Config.Storage.Driver {
	case config.StoragePostgres:
		return c.setupPostgres(ctx)
	case config.StorageSQLite:
		return c.setupSQLite(ctx)
	case config.StorageMongoDB:
		return c.setupMongoDB(ctx)
	default:
		return fmt.Errorf("%w: %q", config.ErrInvalidStorage, c.Config.Storage.Driver)
	}
}

func (c *Container) setupPostgres(ctx context.Context) error {
	cfg := c.Config.Postgres
	pool, err := postgres.NewPool(ctx, cfg, c.Logger,
		postgres.WithSlowQueryRecorder(c.Logger, cfg.SlowQueryThreshold, c.DBMetrics),
	)
	if err != nil {
		return err
	}
	c.Postgres = pool

	if cfg.AutoMigrate {
		if err = postgres.Migrate(ctx, pool); err != nil {
			return err
		}
		c.Logger.Info("PostgreSQL schema applied")
	}

	c.TaskRepo = pgrepo.NewTaskRepository(pool, pgrepo.WithLogger(c.Logger))
	return nil
}

func (c *Container) setupSQLite(ctx context.Context) error {
	db, err := sqlite.Open(ctx, c.Config.SQLite, c.Logger)
	if err != nil {
		return err
	}
	c.SQLite = db
	c.TaskRepo = sqliterepo.NewTaskRepository(db, sqliterepo.WithLogger(c.Logger))
	return nil
}

func (c *Container) setupMongoDB(ctx context.Context) error {
	client, err := mongodbinfra.Connect(ctx, c.Config.MongoDB, c.Logger)
	if err != nil {
		return err
	}
	c.MongoDB = client
	c.TaskRepo = mongorepo.NewMongoTaskRepository(
		client.Database(c.Config.MongoDB.Database),
		mongorepo.WithTaskRepoLogger(c.Logger),
	)
	return nil
}

// setupRedis initializes the Redis client.
func (c *Container) setupRedis(ctx context.Context) error {
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
		PoolSize: c.Config.Redis.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := c.Redis.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	c.Logger.Info("connected to Redis", zap.String("addr", c.Config.Redis.Addr))
	return nil
}

func (c *Container) busOptions() []eventbus.Option {
	opts := []eventbus.Option{
		eventbus.WithLogger(c.Logger),
		eventbus.WithConsumeRecorder(c.TaskMetrics),
	}
	if c.DeadLetters != nil {
		opts = append(opts, eventbus.WithDeadLetter(c.DeadLetters.Handle))
	}
	return opts
}

func (c *Container) setupEventBus(ctx context.Context) error {
	switch c.Config.EventBus.Type {
	case config.EventBusRedis:
		if err := c.setupRedis(ctx); err != nil {
			return err
		}
		c.DeadLetters = eventbus.NewDeadLetterHandler(c.Redis, eventbus.WithDeadLetterLogger(c.Logger))
		opts := append(c.busOptions(), eventbus.WithChannelPrefix(c.Config.EventBus.RedisChannelPrefix))
		c.EventBus = eventbus.NewRedisEventBus(c.Redis, opts...)

	case config.EventBusAMQP:
		// Each API instance consumes on its own server-named queue so every
		// instance sees every event for its websocket clients.
		bus, err := eventbus.NewAMQPEventBus(c.Config.RabbitMQ.URL, c.Config.RabbitMQ.Exchange, c.busOptions()...)
		if err != nil {
			return err
		}
		c.EventBus = bus

	case config.EventBusInMemory:
		c.EventBus = eventbus.NewInMemoryEventBus(c.busOptions()...)

	default:
		return fmt.Errorf("%w: %q", config.ErrInvalidEventBusType, c.Config.EventBus.Type)
	}

	c.Logger.Info("event bus configured", zap.String("type", c.Config.EventBus.Type))
	return nil
}

func (c *Container) setupHub() {
	c.Hub = websocket.NewHub(
		websocket.WithHubLogger(c.Logger),
		websocket.WithClientGauge(c.TaskMetrics),
	)
}

func (c *Container) setupBroadcaster() error {
	c.Broadcaster = websocket.NewBroadcaster(c.Hub, c.EventBus,
		websocket.WithBroadcasterLogger(c.Logger),
		websocket.WithEventTypes(task.EventTypes()),
	)
	return c.Broadcaster.Start()
}

// setupAuth builds the token validator. With auth disabled none is set and
// the router falls back to header identity.
func (c *Container) setupAuth() error {
	cfg := c.Config.Auth
	if !cfg.Enabled {
		c.Logger.Warn("authentication disabled")
		return nil
	}

	opts := auth.Options{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Leeway:   cfg.Leeway,
	}

	if cfg.JWKSURL != "" {
		validator, err := auth.NewJWKSValidator(auth.JWKSConfig{
			URL:             cfg.JWKSURL,
			RefreshInterval: cfg.RefreshInterval,
			Options:         opts,
			Logger:          c.Logger,
		})
		if err != nil {
			return err
		}
		c.Validator = validator
		c.Logger.Info("JWKS token validation enabled", zap.String("jwks_url", cfg.JWKSURL))
	} else {
		validator, err := auth.NewHMACValidator(cfg.JWTSecret, opts)
		if err != nil {
			return err
		}
		c.Validator = validator
		c.Logger.Info("HS256 token validation enabled")
	}

	c.TokenValidator = middleware.NewValidatorAdapter(c.Validator)
	return nil
}

func (c *Container) setupServices() {
	if c.Config.App.IsMockMode() {
		c.TaskService = httphandler.NewMockTaskService()
		return
	}
	c.TaskService = service.NewTaskServiceFromRepository(c.TaskRepo,
		taskapp.WithEventBus(c.EventBus),
		taskapp.WithLogger(c.Logger),
		taskapp.WithRecorder(c.TaskMetrics),
	)
}

func (c *Container) setupHTTPHandlers() {
	c.TaskHandler = httphandler.NewTaskHandler(c.TaskService)

	wsCfg := c.Config.WebSocket
	clientCfg := websocket.DefaultClientConfig()
	if wsCfg.ReadBufferSize > 0 {
		clientCfg.ReadBufferSize = wsCfg.ReadBufferSize
	}
	if wsCfg.WriteBufferSize > 0 {
		clientCfg.WriteBufferSize = wsCfg.WriteBufferSize
	}
	if wsCfg.PingInterval > 0 {
		clientCfg.PingInterval = wsCfg.PingInterval
	}
	if wsCfg.PongTimeout > 0 {
		clientCfg.PongWait = wsCfg.PongTimeout
	}

	wsOpts := []wshandler.HandlerOption{
		wshandler.WithHandlerLogger(c.Logger),
		wshandler.WithHandlerConfig(wshandler.HandlerConfig{ClientConfig: clientCfg}),
	}
	if c.TokenValidator != nil {
		wsOpts = append(wsOpts, wshandler.WithTokenValidator(c.TokenValidator))
	}
	c.WSHandler = wshandler.NewHandler(c.Hub, wsOpts...)
}

func (c *Container) setupHealth() {
	probes := []httpserver.Probe{
		{Name: "storage", Check: c.pingStorage},
		{Name: "eventbus", Check: c.EventBus.Ping},
		{Name: "websocket_hub", Optional: true, Check: func(context.Context) error {
			if !c.Hub.IsRunning() {
				return errors.New("hub is not running")
			}
			return nil
		}},
	}
	if c.DeadLetters != nil {
		probes = append(probes, healthcheck.NewDeadLetterChecker(c.DeadLetters, 0).Probe())
	}
	c.Health = httpserver.NewProbeChecker(httpserver.DefaultProbeTimeout, probes...)
}

func (c *Container) pingStorage(ctx context.Context) error {
	switch {
	case c.Postgres != nil:
		return c.Postgres.Ping(ctx)
	case c.SQLite != nil:
		return c.SQLite.PingContext(ctx)
	case c.MongoDB != nil:
		return c.MongoDB.Ping(ctx, nil)
	default:
		// injected repository
		return nil
	}
}

// validateWiring ensures all required dependencies are initialized.
func (c *Container) validateWiring() error {
	var errs []error

	if c.TaskRepo == nil && c.Config.App.IsRealMode() {
		errs = append(errs, errors.New("task repository not initialized"))
	}
	if c.TaskService == nil {
		errs = append(errs, errors.New("task service not initialized"))
	}
	if c.EventBus == nil {
		errs = append(errs, errors.New("event bus not initialized"))
	}
	if c.Hub == nil {
		errs = append(errs, errors.New("websocket hub not initialized"))
	}
	if c.TaskHandler == nil {
		errs = append(errs, errors.New("task handler not initialized"))
	}
	if c.WSHandler == nil {
		errs = append(errs, errors.New("websocket handler not initialized"))
	}
	if c.Config.Auth.Enabled && c.TokenValidator == nil {
		errs = append(errs, errors.New("token validator not initialized"))
	}

	return errors.Join(errs...)
}

// StartEventBus starts consuming events in the background.
func (c *Container) StartEventBus(ctx context.Context) {
	go func() {
		if err := c.EventBus.Start(ctx); err != nil {
			c.Logger.Error("event bus error", zap.Error(err))
		}
	}()
	c.Logger.Info("event bus started")
}

// StartHub runs the websocket hub until ctx is cancelled.
func (c *Container) StartHub(ctx context.Context) {
	go c.Hub.Run(ctx)
	c.Logger.Info("websocket hub started")
}

// Close releases all resources. It is safe on a partially built container.
func (c *Container) Close() error {
	c.Logger.Info("closing container resources...")

	var errs []error

	if c.Validator != nil {
		if err := c.Validator.Close(); err != nil {
			errs = append(errs, fmt.Errorf("token validator close: %w", err))
		}
	}

	if c.Hub != nil {
		c.Hub.Stop()
		c.Logger.Debug("websocket hub stopped")
	}

	if c.EventBus != nil {
		if err := c.EventBus.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("event bus shutdown: %w", err))
		} else {
			c.Logger.Debug("event bus stopped")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	if c.Postgres != nil {
		c.Postgres.Close()
		c.Logger.Debug("postgres pool closed")
	}

	if c.SQLite != nil {
		if err := c.SQLite.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sqlite close: %w", err))
		}
	}

	if c.MongoDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		defer cancel()

		if err := c.MongoDB.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.Logger.Info("all container resources closed")
	return nil
}
