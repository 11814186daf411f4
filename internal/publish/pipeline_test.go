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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/flagforge/internal/compiler"
	"github.com/AleutianAI/flagforge/internal/domain"
	"github.com/AleutianAI/flagforge/internal/repository"
	"github.com/AleutianAI/flagforge/internal/signing"
	"github.com/AleutianAI/flagforge/internal/storage"
	"github.com/AleutianAI/flagforge/internal/version"
)

type fixture struct {
	mem      *repository.Memory
	store    *storage.MemoryStore
	keys     *signing.Manager
	pipeline *Pipeline
	app      *domain.App
}

func newPipelineFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := repository.NewMemory()
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	app := &domain.App{Identifier: "checkout", MinPollSeconds: 300, CacheTTLSeconds: 86400}
	if err := mem.Apps().Create(ctx, app); err != nil {
		t.Fatalf("create app: %v", err)
	}

	keys := signing.NewManager(mem.SigningKeys(), logger)
	key, err := keys.Generate(ctx, app.ID)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if err := keys.Activate(ctx, app.ID, key.KID); err != nil {
		t.Fatalf("activate key: %v", err)
	}

	comp := compiler.New(mem.Flags(), mem.Cohorts(), mem.Experiments(), logger)
	p := NewPipeline(
		mem.Apps(), mem.PublishRecords(), comp,
		version.New(mem.PublishRecords()), keys, store,
		storage.RetryConfig{Attempts: 3, BaseDelay: time.Millisecond},
		logger,
	)
	p.now = func() time.Time {
		return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	}

	return &fixture{mem: mem, store: store, keys: keys, pipeline: p, app: app}
}

func (f *fixture) createFlag(t *testing.T, key string) {
	t.Helper()
	flag := &domain.Flag{
		AppID: f.app.ID,
		Key:   key,
		Type:  domain.TypeBool,
		Defaults: domain.DefaultsMap{
			domain.EnvDevelopment: json.RawMessage(`false`),
			domain.EnvStaging:     json.RawMessage(`false`),
			domain.EnvProduction:  json.RawMessage(`false`),
		},
	}
	if err := f.mem.Flags().Create(context.Background(), flag); err != nil {
		t.Fatalf("create flag: %v", err)
	}
}

func publishRequest() Request {
	return Request{AppIdentifier: "checkout", Author: "ops@example.com", Changelog: "roll out dark mode"}
}

// =============================================================================
// Happy path
// =============================================================================

func TestPublish(t *testing.T) {
	f := newPipelineFixture(t)
	f.createFlag(t, "dark_mode")
	ctx := context.Background()

	result, err := f.pipeline.Publish(ctx, publishRequest())
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if result.Version != "2025-06-15.1" {
		t.Errorf("Version = %q, want %q", result.Version, "2025-06-15.1")
	}
	if result.Summary.Empty() {
		t.Error("first publish has empty summary, want dark_mode reported added")
	}
	if result.ArtifactBytes == 0 {
		t.Error("ArtifactBytes = 0")
	}

	// The stored envelope must verify under the app's key set and carry
	// the allocated version.
	envelope, err := f.store.Get(ctx, f.app.ArtifactPath())
	if err != nil {
		t.Fatalf("stored artifact: %v", err)
	}
	trusted, err := f.mem.SigningKeys().ListByApp(ctx, f.app.ID)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	artifact, err := signing.Verify(envelope, trusted)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if artifact.ConfigVersion != "2025-06-15.1" {
		t.Errorf("stored ConfigVersion = %q", artifact.ConfigVersion)
	}
	if _, ok := artifact.Flags["dark_mode"]; !ok {
		t.Error("stored artifact missing dark_mode")
	}

	// And the audit trail records it.
	records, err := f.mem.PublishRecords().ListByApp(ctx, f.app.ID)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d audit records, want 1", len(records))
	}
	rec := records[0]
	if rec.Version != "2025-06-15.1" || rec.Author != "ops@example.com" || rec.Changelog != "roll out dark mode" {
		t.Errorf("audit record = %+v", rec)
	}
}

func TestPublish_UnchangedConfigurationStillGetsNewVersion(t *testing.T) {
	f := newPipelineFixture(t)
	f.createFlag(t, "dark_mode")
	ctx := context.Background()

	first, err := f.pipeline.Publish(ctx, publishRequest())
	if err != nil {
		t.Fatalf("first Publish() error = %v", err)
	}
	second, err := f.pipeline.Publish(ctx, publishRequest())
	if err != nil {
		t.Fatalf("second Publish() error = %v", err)
	}

	if second.Version != "2025-06-15.2" {
		t.Errorf("second Version = %q, want %q", second.Version, "2025-06-15.2")
	}
	if second.Version == first.Version {
		t.Error("republish reused the version")
	}
	if !second.Summary.Empty() {
		t.Errorf("unchanged republish reported changes: %+v", second.Summary.Changes)
	}
}

// =============================================================================
// Failure modes
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	f := newPipelineFixture(t)

	tests := []struct {
		name string
		req  Request
	}{
		{"missing app", Request{Author: "a", Changelog: "c"}},
		{"missing author", Request{AppIdentifier: "checkout", Changelog: "c"}},
		{"missing changelog", Request{AppIdentifier: "checkout", Author: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pipeline.Publish(context.Background(), tt.req)
			var valErr *domain.ValidationError
			if !errors.As(err, &valErr) {
				t.Errorf("Publish() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestPublish_UnknownApp(t *testing.T) {
	f := newPipelineFixture(t)
	req := publishRequest()
	req.AppIdentifier = "no-such-app"

	_, err := f.pipeline.Publish(context.Background(), req)
	if !errors.Is(err, domain.ErrAppNotFound) {
		t.Errorf("Publish() error = %v, want ErrAppNotFound", err)
	}
}

func TestPublish_NoActiveSigningKey(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	active, err := f.keys.ActiveKey(ctx, f.app.ID)
	if err != nil {
		t.Fatalf("ActiveKey() error = %v", err)
	}
	if err := f.keys.Purge(ctx, f.app.ID, active.KID); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}

	_, err = f.pipeline.Publish(ctx, publishRequest())
	if !errors.Is(err, domain.ErrSigningKeyMissing) {
		t.Errorf("Publish() error = %v, want ErrSigningKeyMissing", err)
	}
	if f.store.Len() != 0 {
		t.Error("failed publish left an artifact in the store")
	}
}

func TestPublish_IncompleteDefaultsAbortBeforeUpload(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	flag := &domain.Flag{
		AppID: f.app.ID,
		Key:   "half_configured",
		Type:  domain.TypeBool,
		Defaults: domain.DefaultsMap{
			domain.EnvDevelopment: json.RawMessage(`true`),
		},
	}
	if err := f.mem.Flags().Create(ctx, flag); err != nil {
		t.Fatalf("create flag: %v", err)
	}

	_, err := f.pipeline.Publish(ctx, publishRequest())
	var migErr *domain.MigrationRequiredError
	if !errors.As(err, &migErr) {
		t.Fatalf("Publish() error = %v, want MigrationRequiredError", err)
	}
	if f.store.Len() != 0 {
		t.Error("aborted publish left an artifact in the store")
	}
	records, _ := f.mem.PublishRecords().ListByApp(ctx, f.app.ID)
	if len(records) != 0 {
		t.Error("aborted publish wrote an audit record")
	}
}

func TestPublish_TransientUploadFailureRetries(t *testing.T) {
	f := newPipelineFixture(t)
	f.createFlag(t, "dark_mode")
	ctx := context.Background()

	f.store.FailPuts(
		&domain.StorageError{Op: "put", Err: errors.New("connection reset")},
		&domain.StorageError{Op: "put", Err: errors.New("connection reset")},
	)

	result, err := f.pipeline.Publish(ctx, publishRequest())
	if err != nil {
		t.Fatalf("Publish() error = %v, want retry to absorb transient failures", err)
	}
	if f.store.Len() != 1 {
		t.Errorf("store holds %d objects, want 1", f.store.Len())
	}
	if result.Version != "2025-06-15.1" {
		t.Errorf("Version = %q", result.Version)
	}
}

func TestPublish_PermanentUploadFailureAborts(t *testing.T) {
	f := newPipelineFixture(t)
	f.createFlag(t, "dark_mode")
	ctx := context.Background()

	f.store.FailPuts(&domain.StorageError{Op: "put", Permanent: true, Err: errors.New("bucket gone")})

	_, err := f.pipeline.Publish(ctx, publishRequest())
	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("Publish() error = %v, want StorageError", err)
	}
	records, _ := f.mem.PublishRecords().ListByApp(ctx, f.app.ID)
	if len(records) != 0 {
		t.Error("failed upload still wrote an audit record")
	}
}

func TestPublish_AuditWriteFailureLeavesArtifactLive(t *testing.T) {
	f := newPipelineFixture(t)
	f.createFlag(t, "dark_mode")
	ctx := context.Background()

	f.mem.FailNextAppend(errors.New("database locked"))

	_, err := f.pipeline.Publish(ctx, publishRequest())
	var auditErr *domain.AuditWriteError
	if !errors.As(err, &auditErr) {
		t.Fatalf("Publish() error = %v, want AuditWriteError", err)
	}
	if auditErr.Version != "2025-06-15.1" {
		t.Errorf("AuditWriteError.Version = %q", auditErr.Version)
	}

	// The accepted inconsistency: the artifact is live even though the
	// audit write failed.
	if _, err := f.store.Get(ctx, f.app.ArtifactPath()); err != nil {
		t.Errorf("artifact not live after audit failure: %v", err)
	}

	// A retried publish heals the gap with a fresh version.
	result, err := f.pipeline.Publish(ctx, publishRequest())
	if err != nil {
		t.Fatalf("retry Publish() error = %v", err)
	}
	if result.Version != "2025-06-15.1" {
		// The failed attempt never recorded its version, so the retry
		// re-allocates the same suffix.
		t.Errorf("retry Version = %q, want %q", result.Version, "2025-06-15.1")
	}
}

// =============================================================================
// Concurrency
// =============================================================================

func TestPublish_ConcurrentPublishesSerialize(t *testing.T) {
	f := newPipelineFixture(t)
	f.createFlag(t, "dark_mode")

	const publishers = 8
	var wg sync.WaitGroup
	versions := make(chan string, publishers)
	errs := make(chan error, publishers)

	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := publishRequest()
			req.Changelog = fmt.Sprintf("concurrent publish %d", i)
			result, err := f.pipeline.Publish(context.Background(), req)
			if err != nil {
				errs <- err
				return
			}
			versions <- result.Version
		}(i)
	}
	wg.Wait()
	close(versions)
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Publish() error = %v", err)
	}

	seen := make(map[string]bool)
	for v := range versions {
		if seen[v] {
			t.Errorf("version %q allocated twice", v)
		}
		seen[v] = true
	}
	if len(seen) != publishers {
		t.Errorf("got %d distinct versions, want %d", len(seen), publishers)
	}

	records, err := f.mem.PublishRecords().ListByApp(context.Background(), f.app.ID)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != publishers {
		t.Errorf("got %d audit records, want %d", len(records), publishers)
	}
}
