// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/flagforge/internal/domain"
	"github.com/AleutianAI/flagforge/internal/repository"
	"github.com/AleutianAI/flagforge/internal/resilience"
	"github.com/AleutianAI/flagforge/internal/signing"
)

// BootstrapAuthor is recorded on the baseline publish an app creation
// triggers.
const BootstrapAuthor = "system"

// Bootstrapper creates apps. Creation is a three-step saga: persist the
// app record, generate and activate its first signing key, and publish an
// empty baseline artifact. If any step fails the earlier steps are rolled
// back, so an app either exists with a live, verifiable (if empty)
// configuration or does not exist at all. Clients bootstrapping against a
// half-created app would otherwise see 404s indistinguishable from
// outages.
type Bootstrapper struct {
	apps     repository.AppRepository
	keys     *signing.Manager
	pipeline *Pipeline
	logger   *slog.Logger
}

func NewBootstrapper(
	apps repository.AppRepository,
	keys *signing.Manager,
	pipeline *Pipeline,
	logger *slog.Logger,
) *Bootstrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrapper{apps: apps, keys: keys, pipeline: pipeline, logger: logger}
}

// CreateApp provisions a new app and publishes its baseline artifact.
// On failure every completed step is compensated and the original error
// is returned; domain.ErrAppExists passes through unwrapped.
func (b *Bootstrapper) CreateApp(ctx context.Context, app *domain.App) (*Result, error) {
	var (
		key    *domain.SigningKey
		result *Result
	)

	saga := resilience.NewSaga(resilience.SagaConfig{
		StepTimeout: 30 * time.Second,
		Logger:      b.logger,
	})

	saga.AddStep(resilience.SagaStep{
		Name: "create app record",
		Execute: func(ctx context.Context) error {
			return b.apps.Create(ctx, app)
		},
		Compensate: func(ctx context.Context) error {
			return b.apps.Delete(ctx, app.ID)
		},
	})

	saga.AddStep(resilience.SagaStep{
		Name: "provision signing key",
		Execute: func(ctx context.Context) error {
			generated, err := b.keys.Generate(ctx, app.ID)
			if err != nil {
				return err
			}
			key = generated
			return b.keys.Activate(ctx, app.ID, key.KID)
		},
		Compensate: func(ctx context.Context) error {
			if key == nil {
				return nil
			}
			return b.keys.Purge(ctx, app.ID, key.KID)
		},
	})

	saga.AddStep(resilience.SagaStep{
		Name: "publish baseline artifact",
		Execute: func(ctx context.Context) error {
			r, err := b.pipeline.Publish(ctx, Request{
				AppIdentifier: app.Identifier,
				Author:        BootstrapAuthor,
				Changelog:     "initial empty configuration",
			})
			if err != nil {
				return err
			}
			result = r
			return nil
		},
		// The uploaded object is orphaned on rollback. It is unsigned
		// garbage to clients only if the key purge already ran, and the
		// path becomes valid again if the identifier is reused, so it is
		// left in place rather than risking a delete of a live object.
	})

	if err := saga.Execute(ctx); err != nil {
		return nil, fmt.Errorf("create app %q: %w", app.Identifier, err)
	}

	b.logger.Info("created app",
		"app", app.Identifier, "kid", key.KID, "version", result.Version)
	return result, nil
}
