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

	"gorm.io/gorm"

	"github.com/AleutianAI/flagforge/internal/domain"
)

type GormFlagRepository struct{ db *gorm.DB }

func NewFlagRepository(db *gorm.DB) *GormFlagRepository {
	return &GormFlagRepository{db: db}
}

var _ FlagRepository = (*GormFlagRepository)(nil)

func (r *GormFlagRepository) ListActive(ctx context.Context, appID uint) ([]domain.Flag, error) {
	var flags []domain.Flag
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND archived = ?", appID, false).
		Order("key asc").
		Find(&flags).Error
	return flags, err
}

func (r *GormFlagRepository) Create(ctx context.Context, flag *domain.Flag) error {
	return r.db.WithContext(ctx).Create(flag).Error
}

type GormCohortRepository struct{ db *gorm.DB }

func NewCohortRepository(db *gorm.DB) *GormCohortRepository {
	return &GormCohortRepository{db: db}
}

var _ CohortRepository = (*GormCohortRepository)(nil)

func (r *GormCohortRepository) List(ctx context.Context, appID uint) ([]domain.Cohort, error) {
	var cohorts []domain.Cohort
	err := r.db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("key asc").
		Find(&cohorts).Error
	return cohorts, err
}

func (r *GormCohortRepository) Create(ctx context.Context, cohort *domain.Cohort) error {
	return r.db.WithContext(ctx).Create(cohort).Error
}

type GormExperimentRepository struct{ db *gorm.DB }

func NewExperimentRepository(db *gorm.DB) *GormExperimentRepository {
	return &GormExperimentRepository{db: db}
}

var _ ExperimentRepository = (*GormExperimentRepository)(nil)

func (r *GormExperimentRepository) ListActive(ctx context.Context, appID uint) ([]domain.Experiment, error) {
	var exps []domain.Experiment
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND archived = ?", appID, false).
		Order("key asc").
		Find(&exps).Error
	return exps, err
}

func (r *GormExperimentRepository) Create(ctx context.Context, exp *domain.Experiment) error {
	return r.db.WithContext(ctx).Create(exp).Error
}
