// Package main provides the audit worker entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/config"
	"github.com/lllypuk/tasktracker/internal/infrastructure/eventbus"
	"github.com/lllypuk/tasktracker/internal/infrastructure/eventstore"
	"github.com/lllypuk/tasktracker/internal/infrastructure/metrics"
	"github.com/lllypuk/tasktracker/internal/infrastructure/mongodb"
	"github.com/lllypuk/tasktracker/internal/logger"
	"github.com/lllypuk/tasktracker/internal/worker"
)

// Timeout constants for the worker service.
const (
	redisPingTimeout       = 5 * time.Second
	mongoDisconnectTimeout = 10 * time.Second
	metricsReadTimeout     = 5 * time.Second
	metricsShutdownGrace   = 5 * time.Second
	defaultMetricsPort     = 9091
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		zap.L().Error("failed to load configuration", zap.Error(err))
		return 1
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		zap.L().Error("failed to create logger", zap.Error(err))
		return 1
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting task tracker audit worker",
		zap.String("env", cfg.App.Env),
		zap.String("event_bus", cfg.EventBus.Type),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	taskMetrics := metrics.NewTaskMetrics(registry)

	bus, cleanup, opts, err := setupEventBus(ctx, cfg, log, taskMetrics)
	if err != nil {
		log.Error("failed to setup event bus", zap.Error(err))
		return 1
	}
	defer cleanup()

	if cfg.Metrics.Enabled {
		metricsServer := serveMetrics(cfg, registry, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownGrace)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	store, closeStore, err := setupAuditStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to setup audit store", zap.Error(err))
		return 1
	}
	defer closeStore()
	if store != nil {
		opts = append(opts, worker.WithAuditStore(store))
	}

	workerCfg := worker.DefaultAuditWorkerConfig()
	if cfg.Worker.ReportInterval > 0 {
		workerCfg.ReportInterval = cfg.Worker.ReportInterval
	}

	auditWorker := worker.NewAuditWorker(bus, workerCfg, opts...)
	if runErr := auditWorker.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("audit worker error", zap.Error(runErr))
		return 1
	}

	log.Info("worker service shutdown complete")
	return 0
}

// setupEventBus builds the configured bus. The worker consumes from a durable
// queue on RabbitMQ so events published while it is down are not lost.
func setupEventBus(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
	recorder eventbus.ConsumeRecorder,
) (worker.EventSource, func(), []worker.AuditWorkerOption, error) {
	busOpts := []eventbus.Option{
		eventbus.WithLogger(log),
		eventbus.WithConsumeRecorder(recorder),
	}
	workerOpts := []worker.AuditWorkerOption{worker.WithAuditLogger(log)}
	noop := func() {}

	switch cfg.EventBus.Type {
	case config.EventBusRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		cleanup := func() {
			if err := client.Close(); err != nil {
				log.Error("failed to close Redis", zap.Error(err))
			}
		}

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			cleanup()
			return nil, noop, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

		deadLetters := eventbus.NewDeadLetterHandler(client, eventbus.WithDeadLetterLogger(log))
		busOpts = append(busOpts,
			eventbus.WithChannelPrefix(cfg.EventBus.RedisChannelPrefix),
			eventbus.WithDeadLetter(deadLetters.Handle),
		)
		workerOpts = append(workerOpts, worker.WithDeadLetterSource(deadLetters))
		return eventbus.NewRedisEventBus(client, busOpts...), cleanup, workerOpts, nil

	case config.EventBusAMQP:
		busOpts = append(busOpts, eventbus.WithQueue(cfg.RabbitMQ.Queue))
		bus, err := eventbus.NewAMQPEventBus(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, busOpts...)
		if err != nil {
			return nil, noop, nil, err
		}
		return bus, noop, workerOpts, nil

	case config.EventBusInMemory:
		log.Warn("in-memory event bus only sees events published by this process")
		return eventbus.NewInMemoryEventBus(busOpts...), noop, workerOpts, nil

	default:
		return nil, noop, nil, fmt.Errorf("%w: %q", config.ErrInvalidEventBusType, cfg.EventBus.Type)
	}
}

// setupAuditStore connects the configured audit store. A nil store means
// events are only logged.
func setupAuditStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (eventstore.Store, func(), error) {
	if cfg.Worker.AuditStore != config.AuditStoreMongoDB {
		return nil, func() {}, nil
	}

	client, err := mongodb.Connect(ctx, cfg.MongoDB, log)
	if err != nil {
		return nil, nil, err
	}
	closeClient := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		defer cancel()
		if disconnectErr := client.Disconnect(disconnectCtx); disconnectErr != nil {
			log.Error("failed to disconnect from MongoDB", zap.Error(disconnectErr))
		}
	}

	log.Info("audit records stored in MongoDB", zap.String("database", cfg.MongoDB.Database))
	return eventstore.NewMongoStore(client.Database(cfg.MongoDB.Database), eventstore.WithLogger(log)), closeClient, nil
}

func serveMetrics(cfg *config.Config, registry *prometheus.Registry, log *zap.Logger) *echo.Echo {
	path := cfg.Metrics.Path
	if path == "" {
		path = "/metrics"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = metricsReadTimeout
	e.GET(path, echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	addr := fmt.Sprintf(":%d", defaultMetricsPort)
	go func() {
		log.Info("worker metrics listening", zap.String("address", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	return e
}
