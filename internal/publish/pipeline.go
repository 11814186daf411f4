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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/flagforge/internal/compiler"
	"github.com/AleutianAI/flagforge/internal/diff"
	"github.com/AleutianAI/flagforge/internal/domain"
	"github.com/AleutianAI/flagforge/internal/repository"
	"github.com/AleutianAI/flagforge/internal/signing"
	"github.com/AleutianAI/flagforge/internal/storage"
	"github.com/AleutianAI/flagforge/internal/version"
)

// =============================================================================
// Pipeline Stages
// =============================================================================

// Stage identifies where in the pipeline a publish currently is, or where
// it failed. Stages advance strictly in order; there is no partial
// publish.
type Stage string

const (
	StageCompiling Stage = "compiling"
	StageDiffing   Stage = "diffing"
	StageVersion   Stage = "version_allocation"
	StageSigning   Stage = "signing"
	StageUploading Stage = "uploading"
	StageAuditing  Stage = "recording_audit"
)

// =============================================================================
// Request / Result
// =============================================================================

// Request describes one publish attempt.
type Request struct {
	// AppIdentifier names the app to publish.
	AppIdentifier string

	// Author is the identity recorded in the audit log. Required.
	Author string

	// Changelog is the operator-supplied description of the change.
	// Required; an empty changelog is rejected before any work happens.
	Changelog string
}

func (r Request) validate() error {
	if r.AppIdentifier == "" {
		return &domain.ValidationError{Entity: "publish", Key: "app", Reason: "app identifier is required"}
	}
	if r.Author == "" {
		return &domain.ValidationError{Entity: "publish", Key: "author", Reason: "author is required"}
	}
	if r.Changelog == "" {
		return &domain.ValidationError{Entity: "publish", Key: "changelog", Reason: "changelog is required"}
	}
	return nil
}

// Result summarizes a completed publish.
type Result struct {
	Version       string           `json:"version"`
	PublishedAt   time.Time        `json:"published_at"`
	Summary       domain.ChangeSet `json:"summary"`
	ArtifactBytes int64            `json:"artifact_bytes"`
}

// =============================================================================
// Pipeline
// =============================================================================

// Pipeline turns the current editable state of an app into a signed,
// versioned artifact in object storage plus an audit record.
//
// # Description
//
// A publish runs six stages in order: compile, diff against the currently
// live artifact, allocate a version, sign, upload, record the audit entry.
// Any failure before the upload aborts cleanly with nothing changed. A
// failure after a successful upload but during the audit write is the one
// accepted inconsistency: the new artifact is already live, so the error
// is surfaced as *domain.AuditWriteError and the caller retries with a
// fresh publish rather than rolling the artifact back.
//
// # Concurrency
//
// Publishes are serialized per app by an in-process lock; different apps
// publish concurrently. The unique (app, version) constraint on the audit
// table backstops the lock across processes.
//
// # Assumptions
//
//   - The artifact store's Put is atomic per object (last write wins)
//   - Clients verify signatures and reject unverifiable artifacts, so a
//     half-written object is never served as configuration
type Pipeline struct {
	apps      repository.AppRepository
	records   repository.PublishRecordRepository
	compiler  *compiler.Compiler
	differ    *diff.Engine
	allocator *version.Allocator
	keys      *signing.Manager
	store     storage.ArtifactStore
	retry     storage.RetryConfig

	// now is replaceable in tests.
	now    func() time.Time
	logger *slog.Logger
	locks  *appLocks
}

// NewPipeline wires a Pipeline. A nil logger falls back to slog.Default().
func NewPipeline(
	apps repository.AppRepository,
	records repository.PublishRecordRepository,
	comp *compiler.Compiler,
	allocator *version.Allocator,
	keys *signing.Manager,
	store storage.ArtifactStore,
	retry storage.RetryConfig,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		apps:      apps,
		records:   records,
		compiler:  comp,
		differ:    diff.New(),
		allocator: allocator,
		keys:      keys,
		store:     store,
		retry:     retry,
		now:       time.Now,
		logger:    logger,
		locks:     newAppLocks(),
	}
}

// Publish runs the full pipeline for one app.
//
// # Error Conditions
//
//   - *domain.ValidationError: missing author/changelog, or invalid
//     entity state found during compilation
//   - *domain.MigrationRequiredError: a flag's per-environment defaults
//     are incomplete
//   - domain.ErrAppNotFound: unknown app identifier
//   - domain.ErrSigningKeyMissing: the app has no active signing key
//   - *domain.StorageError: upload failed after retries
//   - *domain.AuditWriteError: artifact uploaded but audit write failed
func (p *Pipeline) Publish(ctx context.Context, req Request) (*Result, error) {
	if err := initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	app, err := p.apps.FindByIdentifier(ctx, req.AppIdentifier)
	if err != nil {
		return nil, err
	}

	// Serialize with any other publish for this app.
	lock := p.locks.acquire(app.Identifier)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := tracer.Start(ctx, "publish.Pipeline")
	defer span.End()
	span.SetAttributes(attribute.String("app.identifier", app.Identifier))
	start := p.now()
	publishTotal.Add(ctx, 1)

	result, err := p.run(ctx, app, req)
	publishLatency.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("publish.version", result.Version))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, app *domain.App, req Request) (*Result, error) {
	// The compile, the previous-artifact fetch, and the key lookup are
	// independent; run them together.
	var (
		next     *domain.Artifact
		previous *domain.Artifact
		key      *domain.SigningKey
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		artifact, err := p.compiler.Compile(gctx, app)
		if err != nil {
			return p.fail(gctx, StageCompiling, err)
		}
		next = artifact
		return nil
	})
	g.Go(func() error {
		artifact, err := p.fetchPrevious(gctx, app)
		if err != nil {
			return p.fail(gctx, StageDiffing, err)
		}
		previous = artifact
		return nil
	})
	g.Go(func() error {
		active, err := p.keys.ActiveKey(gctx, app.ID)
		if err != nil {
			return p.fail(gctx, StageSigning, err)
		}
		key = active
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	allocated, err := p.allocator.Allocate(ctx, app.ID, p.now())
	if err != nil {
		return nil, p.fail(ctx, StageVersion, fmt.Errorf("allocate version: %w", err))
	}
	publishedAt := p.now().UTC()
	next.ConfigVersion = allocated
	next.PublishedAt = publishedAt

	summary := p.differ.Diff(next, previous)
	if summary.Empty() {
		p.logger.Info("publishing unchanged configuration",
			"app", app.Identifier, "version", allocated)
	}

	envelope, err := signing.Sign(next, key)
	if err != nil {
		return nil, p.fail(ctx, StageSigning, err)
	}

	err = storage.WithRetry(ctx, p.retry, func() error {
		return p.store.Put(ctx, app.ArtifactPath(), envelope)
	})
	if err != nil {
		return nil, p.fail(ctx, StageUploading, err)
	}

	record := &domain.PublishRecord{
		AppID:         app.ID,
		Version:       allocated,
		PublishedAt:   publishedAt,
		Author:        req.Author,
		Changelog:     req.Changelog,
		Summary:       summary,
		ArtifactBytes: int64(len(envelope)),
	}
	if err := p.records.Append(ctx, record); err != nil {
		// The artifact is already live. Report the failure without
		// touching the uploaded object.
		auditErr := &domain.AuditWriteError{
			AppIdentifier: app.Identifier,
			Version:       allocated,
			Err:           err,
		}
		p.logger.Error("audit record write failed after upload",
			"app", app.Identifier, "version", allocated, "error", err)
		return nil, p.fail(ctx, StageAuditing, auditErr)
	}

	artifactBytes.Record(ctx, int64(len(envelope)))
	p.logger.Info("published configuration",
		"app", app.Identifier,
		"version", allocated,
		"changes", len(summary.Changes),
		"bytes", len(envelope))

	return &Result{
		Version:       allocated,
		PublishedAt:   publishedAt,
		Summary:       summary,
		ArtifactBytes: int64(len(envelope)),
	}, nil
}

// fetchPrevious loads and decodes the currently live artifact. A missing
// object means this is the first publish; an undecodable one is treated
// the same way so a corrupt live object cannot wedge publishing.
func (p *Pipeline) fetchPrevious(ctx context.Context, app *domain.App) (*domain.Artifact, error) {
	envelope, err := p.store.Get(ctx, app.ArtifactPath())
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch previous artifact: %w", err)
	}
	previous, err := signing.DecodePayload(envelope)
	if err != nil {
		p.logger.Warn("live artifact is undecodable, diffing against empty",
			"app", app.Identifier, "error", err)
		return nil, nil
	}
	return previous, nil
}

// fail counts the failure against its stage and passes the error through.
func (p *Pipeline) fail(ctx context.Context, stage Stage, err error) error {
	publishFailures.Add(ctx, 1, withStage(stage))
	return err
}
