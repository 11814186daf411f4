// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package repository

import (
	"context"

	"github.com/AleutianAI/flagforge/internal/domain"
)

// AppRepository manages App records. Delete exists for the bootstrap
// compensation path: an app whose baseline publish fails must not survive.
type AppRepository interface {
	Create(ctx context.Context, app *domain.App) error
	Delete(ctx context.Context, id uint) error
	FindByIdentifier(ctx context.Context, identifier string) (*domain.App, error)
	List(ctx context.Context) ([]domain.App, error)
}

// FlagRepository reads the flags the compiler consumes. Archived flags are
// invisible to compilation but remain in the store.
type FlagRepository interface {
	ListActive(ctx context.Context, appID uint) ([]domain.Flag, error)
	Create(ctx context.Context, flag *domain.Flag) error
}

// CohortRepository reads an app's cohorts. Cohorts are never archived;
// the CRUD layer deletes them outright.
type CohortRepository interface {
	List(ctx context.Context, appID uint) ([]domain.Cohort, error)
	Create(ctx context.Context, cohort *domain.Cohort) error
}

// ExperimentRepository reads the non-archived experiments the compiler
// consumes.
type ExperimentRepository interface {
	ListActive(ctx context.Context, appID uint) ([]domain.Experiment, error)
	Create(ctx context.Context, exp *domain.Experiment) error
}

// SigningKeyRepository persists signing keys. Activate performs the
// deactivate-all-then-activate-one flip atomically in one transaction,
// independent of any publish-level lock, because manual rotation happens
// outside publishes too.
type SigningKeyRepository interface {
	Create(ctx context.Context, key *domain.SigningKey) error
	ListByApp(ctx context.Context, appID uint) ([]domain.SigningKey, error)
	FindByKID(ctx context.Context, appID uint, kid string) (*domain.SigningKey, error)
	FindActive(ctx context.Context, appID uint) (*domain.SigningKey, error)
	Activate(ctx context.Context, appID uint, kid string) error
	Delete(ctx context.Context, appID uint, kid string) error
	// Purge deletes a key even when it is active. Reserved for the app
	// bootstrap rollback; operator deletes always go through Delete.
	Purge(ctx context.Context, appID uint, kid string) error
}

// PublishRecordRepository appends and reads the audit log. Append is the
// only write; records are immutable.
type PublishRecordRepository interface {
	Append(ctx context.Context, rec *domain.PublishRecord) error
	ListByApp(ctx context.Context, appID uint) ([]domain.PublishRecord, error)
	// VersionsWithPrefix returns the version strings of the app's records
	// whose version begins with the given date prefix. Used by the
	// version allocator's max-suffix scan.
	VersionsWithPrefix(ctx context.Context, appID uint, prefix string) ([]string, error)
}
