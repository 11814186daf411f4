// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command flagforged starts the flagforge API server.
//
// Flagforge compiles feature flags, cohorts, and experiments into
// immutable, versioned, cryptographically signed configuration artifacts
// that client SDKs poll from object storage.
//
// Usage:
//
//	go run ./cmd/flagforged
//	go run ./cmd/flagforged -config /etc/flagforge/flagforge.yaml
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/health
//
//	# Create an app (provisions a signing key and baseline publish)
//	curl -X POST http://localhost:8080/v1/apps \
//	  -H "Content-Type: application/json" \
//	  -d '{"identifier": "ios-client"}'
//
//	# Publish the current configuration
//	curl -X POST http://localhost:8080/v1/apps/ios-client/publish \
//	  -H "Content-Type: application/json" \
//	  -d '{"author": "jdoe", "changelog": "enable dark mode rollout"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/flagforge/internal/api"
	"github.com/AleutianAI/flagforge/internal/compiler"
	"github.com/AleutianAI/flagforge/internal/config"
	"github.com/AleutianAI/flagforge/internal/publish"
	"github.com/AleutianAI/flagforge/internal/repository"
	"github.com/AleutianAI/flagforge/internal/signing"
	"github.com/AleutianAI/flagforge/internal/storage"
	"github.com/AleutianAI/flagforge/internal/telemetry"
	"github.com/AleutianAI/flagforge/internal/version"
	"github.com/AleutianAI/flagforge/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to the flagforge config file")
	endpointURL := flag.String("endpoint-url", "http://localhost:8080",
		"Externally visible base URL embedded in bootstrap descriptors")
	flag.Parse()

	if err := run(*configPath, *endpointURL); err != nil {
		fmt.Fprintf(os.Stderr, "flagforged: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, endpointURL string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:   parseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "flagforged",
		JSON:    cfg.Logging.JSON,
		Quiet:   cfg.Logging.Quiet,
	})
	defer logger.Close()
	slogger := logger.Slog()

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	db, err := repository.Open(cfg.Database.Driver, config.ExpandPath(cfg.Database.DSN))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	defer closeStore()

	apps := repository.NewAppRepository(db)
	flags := repository.NewFlagRepository(db)
	cohorts := repository.NewCohortRepository(db)
	experiments := repository.NewExperimentRepository(db)
	signingKeys := repository.NewSigningKeyRepository(db)
	records := repository.NewPublishRecordRepository(db)

	keys := signing.NewManager(signingKeys, slogger)
	pipeline := publish.NewPipeline(
		apps, records,
		compiler.New(flags, cohorts, experiments, slogger),
		version.New(records),
		keys, store,
		storage.RetryConfig{
			Attempts:  cfg.Storage.RetryAttempts,
			BaseDelay: time.Duration(cfg.Storage.RetryBaseDelayMS) * time.Millisecond,
		},
		slogger,
	)
	bootstrapper := publish.NewBootstrapper(apps, keys, pipeline, slogger)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))

	handlers := api.NewHandlers(apps, records, keys, pipeline, bootstrapper, store, endpointURL).
		WithReadiness(func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		})
	v1 := router.Group("/v1")
	api.RegisterRoutes(v1, handlers)

	if metricsHandler := telemetry.MetricsHandler(); metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slogger.Info("Starting flagforge server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		slogger.Info("Shutting down flagforge server", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore builds the configured artifact store and a close function.
func openStore(ctx context.Context, cfg config.StorageConfig) (storage.ArtifactStore, func() error, error) {
	switch cfg.Backend {
	case "gcs":
		store, err := storage.NewGCSStore(ctx, cfg.GCS.Bucket, cfg.GCS.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "badger":
		store, err := storage.NewBadgerStore(storage.BadgerConfig{
			Path:       config.ExpandPath(cfg.Badger.Path),
			SyncWrites: cfg.Badger.SyncWrites,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func parseLevel(level string) logging.Level {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
