// Package main is the entry point for the API server.
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

	"go.uber.org/zap"

	"github.com/leadproton/server/internal/app"
	"github.com/leadproton/server/internal/config"
	"github.com/leadproton/server/internal/handler"
	"github.com/leadproton/server/internal/service"
	"github.com/leadproton/server/internal/workers"
	"github.com/leadproton/server/pkg/logger"
	"github.com/leadproton/server/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "leadproton", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set, /api requests will be rejected")
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize workspace", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("failed to close backends", zap.Error(err))
		}
	}()
	a.Connect(ctx)

	// Background workers
	go func() {
		if err := a.Workspace.Watch(ctx); err != nil {
			log.Warn("store watcher stopped", zap.Error(err))
		}
	}()
	go workers.NewScheduler(a.Workspace, cfg.SchedulerInterval, log).Run(ctx)

	router := handler.NewRouter(handler.RouterConfig{
		Workspace:         a.Workspace,
		Leads:             service.NewLeadService(log),
		Bus:               a.Bus,
		Store:             a.Store,
		NATS:              a.NATS,
		CORSOrigins:       cfg.CORSOrigins,
		JWTSecret:         func() string { return cfg.JWTSecret },
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Logger:            log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
