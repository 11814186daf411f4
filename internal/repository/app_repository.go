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

type GormAppRepository struct{ db *gorm.DB }

func NewAppRepository(db *gorm.DB) *GormAppRepository {
	return &GormAppRepository{db: db}
}

var _ AppRepository = (*GormAppRepository)(nil)

func (r *GormAppRepository) Create(ctx context.Context, app *domain.App) error {
	err := r.db.WithContext(ctx).Create(app).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAppExists
	}
	return err
}

func (r *GormAppRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.App{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAppNotFound
	}
	return nil
}

func (r *GormAppRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.App, error) {
	var app domain.App
	err := r.db.WithContext(ctx).Where("identifier = ?", identifier).First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAppNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (r *GormAppRepository) List(ctx context.Context) ([]domain.App, error) {
	var apps []domain.App
	err := r.db.WithContext(ctx).Order("identifier asc").Find(&apps).Error
	return apps, err
}
