// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command flagforge is the operator CLI for the flagforge config
// publisher. It works against the same database and artifact store as the
// flagforged server, so publishes and key rotations can be scripted
// without going through the HTTP API.
//
// Usage:
//
//	flagforge app create --app ios-client
//	flagforge publish --app ios-client --author jdoe --changelog "enable rollout"
//	flagforge keys list --app ios-client
//	flagforge keys generate --app ios-client --activate
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/flagforge/internal/compiler"
	"github.com/AleutianAI/flagforge/internal/config"
	"github.com/AleutianAI/flagforge/internal/publish"
	"github.com/AleutianAI/flagforge/internal/repository"
	"github.com/AleutianAI/flagforge/internal/signing"
	"github.com/AleutianAI/flagforge/internal/storage"
	"github.com/AleutianAI/flagforge/internal/version"
	"github.com/AleutianAI/flagforge/pkg/logging"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "flagforge",
		Short: "Operate the flagforge configuration publisher",
		Long: `flagforge compiles feature flags, cohorts, and experiments into
immutable, versioned, cryptographically signed configuration artifacts.

This CLI operates directly on the configured database and artifact
store. Point it at the same config file as the flagforged server.`,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the flagforge config file (default ~/.flagforge/flagforge.yaml)")
}

// =============================================================================
// Runtime wiring
// =============================================================================

// runtime holds the components a CLI command needs, built from the
// config file that also drives the server.
type runtime struct {
	apps         repository.AppRepository
	records      repository.PublishRecordRepository
	keys         *signing.Manager
	pipeline     *publish.Pipeline
	bootstrapper *publish.Bootstrapper

	closeStore func() error
}

func (r *runtime) Close() {
	if r.closeStore != nil {
		_ = r.closeStore()
	}
}

// newRuntime wires repositories, signing, and the publish pipeline from
// the config file.
func newRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:   logging.LevelWarn, // CLI output stays on stdout
		Service: "flagforge",
	})
	slogger := logger.Slog()

	db, err := repository.Open(cfg.Database.Driver, config.ExpandPath(cfg.Database.DSN))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repository.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	var (
		store      storage.ArtifactStore
		closeStore func() error
	)
	switch cfg.Storage.Backend {
	case "gcs":
		gcs, err := storage.NewGCSStore(context.Background(), cfg.Storage.GCS.Bucket, cfg.Storage.GCS.CredentialsFile)
		if err != nil {
			return nil, err
		}
		store, closeStore = gcs, gcs.Close
	case "badger":
		b, err := storage.NewBadgerStore(storage.BadgerConfig{
			Path:       config.ExpandPath(cfg.Storage.Badger.Path),
			SyncWrites: cfg.Storage.Badger.SyncWrites,
		})
		if err != nil {
			return nil, err
		}
		store, closeStore = b, b.Close
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	apps := repository.NewAppRepository(db)
	records := repository.NewPublishRecordRepository(db)
	keys := signing.NewManager(repository.NewSigningKeyRepository(db), slogger)
	pipeline := publish.NewPipeline(
		apps, records,
		compiler.New(
			repository.NewFlagRepository(db),
			repository.NewCohortRepository(db),
			repository.NewExperimentRepository(db),
			slogger,
		),
		version.New(records),
		keys, store,
		storage.RetryConfig{
			Attempts:  cfg.Storage.RetryAttempts,
			BaseDelay: time.Duration(cfg.Storage.RetryBaseDelayMS) * time.Millisecond,
		},
		slogger,
	)

	return &runtime{
		apps:         apps,
		records:      records,
		keys:         keys,
		pipeline:     pipeline,
		bootstrapper: publish.NewBootstrapper(apps, keys, pipeline, slogger),
		closeStore:   closeStore,
	}, nil
}

// findApp resolves an app identifier or exits with a friendly error.
func (r *runtime) findApp(cmd *cobra.Command, identifier string) (uint, error) {
	app, err := r.apps.FindByIdentifier(cmd.Context(), identifier)
	if err != nil {
		return 0, fmt.Errorf("app %q: %w", identifier, err)
	}
	return app.ID, nil
}
