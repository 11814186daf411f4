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
	"errors"

	"gorm.io/gorm"

	"github.com/AleutianAI/flagforge/internal/domain"
)

type GormPublishRecordRepository struct{ db *gorm.DB }

func NewPublishRecordRepository(db *gorm.DB) *GormPublishRecordRepository {
	return &GormPublishRecordRepository{db: db}
}

var _ PublishRecordRepository = (*GormPublishRecordRepository)(nil)

func (r *GormPublishRecordRepository) Append(ctx context.Context, rec *domain.PublishRecord) error {
	err := r.db.WithContext(ctx).Create(rec).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		// (app_id, version) uniqueness backstop against allocation races.
		return domain.ErrConflict
	}
	return err
}

func (r *GormPublishRecordRepository) ListByApp(ctx context.Context, appID uint) ([]domain.PublishRecord, error) {
	var recs []domain.PublishRecord
	err := r.db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("published_at desc").
		Find(&recs).Error
	return recs, err
}

func (r *GormPublishRecordRepository) VersionsWithPrefix(ctx context.Context, appID uint, prefix string) ([]string, error) {
	var versions []string
	err := r.db.WithContext(ctx).
		Model(&domain.PublishRecord{}).
		Where("app_id = ? AND version LIKE ?", appID, prefix+"%").
		Pluck("version", &versions).Error
	return versions, err
}
