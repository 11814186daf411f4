// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import "github.com/AleutianAI/flagforge/internal/telemetry"

// Config is the top-level flagforge configuration, loaded from
// ~/.flagforge/flagforge.yaml unless an explicit path is given.
type Config struct {
	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Database configures the relational entity store.
	Database DatabaseConfig `yaml:"database"`

	// Storage configures where signed artifacts are published.
	Storage StorageConfig `yaml:"storage"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry configures tracing and metrics.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"` // e.g. :8080
	// Mode is the gin mode: debug, release, or test.
	Mode string `yaml:"mode" validate:"oneof=debug release test"`
}

// DatabaseConfig selects the entity store backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
	// DSN is the driver-specific connection string. For sqlite this is a
	// file path (supports ~ expansion); for postgres a key=value DSN.
	DSN string `yaml:"dsn" validate:"required"`
}

// StorageConfig selects the artifact store backend.
type StorageConfig struct {
	// Backend is "gcs" or "badger".
	Backend string `yaml:"backend" validate:"oneof=gcs badger"`

	GCS    GCSConfig    `yaml:"gcs"`
	Badger BadgerConfig `yaml:"badger"`

	// RetryAttempts bounds upload retries on transient failures.
	RetryAttempts int `yaml:"retry_attempts" validate:"min=1"`
	// RetryBaseDelayMS is the initial backoff delay in milliseconds.
	RetryBaseDelayMS int `yaml:"retry_base_delay_ms" validate:"min=1"`
}

// GCSConfig configures the Cloud Storage backend.
type GCSConfig struct {
	Bucket string `yaml:"bucket"`
	// CredentialsFile is a service account JSON path. Empty uses
	// application default credentials.
	CredentialsFile string `yaml:"credentials_file"`
}

// BadgerConfig configures the embedded local backend.
type BadgerConfig struct {
	Path       string `yaml:"path"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	// Dir enables JSON file logging when set.
	Dir string `yaml:"dir"`
	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`
	// Quiet disables stderr output.
	Quiet bool `yaml:"quiet"`
}

// DefaultConfig returns the configuration written on first run: sqlite
// entity store and badger artifact store under ~/.flagforge, suitable for
// local development without any cloud dependency.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8080",
			Mode: "release",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "~/.flagforge/flagforge.db",
		},
		Storage: StorageConfig{
			Backend:          "badger",
			Badger:           BadgerConfig{Path: "~/.flagforge/artifacts", SyncWrites: true},
			RetryAttempts:    3,
			RetryBaseDelayMS: 200,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}
