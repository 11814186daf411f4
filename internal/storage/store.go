// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage abstracts the object store signed artifacts are
// published to. Three implementations exist: Google Cloud Storage for
// production, an embedded BadgerDB store for local development, and an
// in-memory store for tests.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/AleutianAI/flagforge/internal/domain"
)

// ErrNotExist is returned by Get when no object lives at the path. The
// pipeline treats a missing previous artifact as "first publish", never
// as a failure.
var ErrNotExist = errors.New("object does not exist")

// ArtifactStore reads and writes signed artifact envelopes at
// deterministic paths.
type ArtifactStore interface {
	// Put overwrites the object at path.
	Put(ctx context.Context, path string, data []byte) error

	// Get returns the object at path, or ErrNotExist.
	Get(ctx context.Context, path string) ([]byte, error)
}

// RetryConfig bounds the backoff applied to transient storage failures.
// Permanent failures (bad credentials, missing bucket) are never retried.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// BaseDelay is the wait after the first failure; it doubles per retry.
	BaseDelay time.Duration
}

// DefaultRetryConfig retries twice more after the initial attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 3, BaseDelay: 200 * time.Millisecond}
}

// WithRetry runs op, retrying transient *domain.StorageError failures with
// exponential backoff. Anything else — success, a permanent storage
// error, or a non-storage error — is returned immediately. Context
// cancellation stops the wait.
func WithRetry(ctx context.Context, cfg RetryConfig, op func() error) error {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	delay := cfg.BaseDelay

	var err error
	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		var storageErr *domain.StorageError
		if !errors.As(err, &storageErr) || storageErr.Permanent {
			return err
		}
		if attempt >= cfg.Attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay *= 2
	}
}
