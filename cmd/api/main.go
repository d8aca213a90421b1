// Package main is the entry point for the task tracker API server.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/config"
	"github.com/lllypuk/tasktracker/internal/infrastructure/httpserver"
	"github.com/lllypuk/tasktracker/internal/logger"
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

	log.Info("starting task tracker API server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("event_bus", cfg.EventBus.Type),
		zap.String("address", cfg.Server.Address()),
	)

	container, err := NewContainer(cfg, WithLogger(log))
	if err != nil {
		log.Error("failed to initialize container", zap.Error(err))
		return 1
	}
	defer func() {
		if closeErr := container.Close(); closeErr != nil {
			log.Error("error closing container", zap.Error(closeErr))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container.StartHub(ctx)
	container.StartEventBus(ctx)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		BodyLimit:       httpserver.DefaultBodyLimit,
	}, log)

	SetupRoutes(container, server.Echo())

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("address", server.Address()))
		serverErr <- server.Start()
	}()

	select {
	case err = <-serverErr:
		if err != nil {
			log.Error("HTTP server error", zap.Error(err))
			return 1
		}
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	return gracefulShutdown(server, cfg, log)
}

// gracefulShutdown stops accepting requests and waits for in-flight ones.
func gracefulShutdown(server *httpserver.Server, cfg *config.Config, log *zap.Logger) int {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server shutdown error", zap.Error(err))
		return 1
	}

	log.Info("server stopped gracefully")
	return 0
}
