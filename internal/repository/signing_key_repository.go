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

type GormSigningKeyRepository struct{ db *gorm.DB }

func NewSigningKeyRepository(db *gorm.DB) *GormSigningKeyRepository {
	return &GormSigningKeyRepository{db: db}
}

var _ SigningKeyRepository = (*GormSigningKeyRepository)(nil)

func (r *GormSigningKeyRepository) Create(ctx context.Context, key *domain.SigningKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

func (r *GormSigningKeyRepository) ListByApp(ctx context.Context, appID uint) ([]domain.SigningKey, error) {
	var keys []domain.SigningKey
	err := r.db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("created_at asc").
		Find(&keys).Error
	return keys, err
}

func (r *GormSigningKeyRepository) FindByKID(ctx context.Context, appID uint, kid string) (*domain.SigningKey, error) {
	var key domain.SigningKey
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND kid = ?", appID, kid).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, err
	}
	return &key, nil
}

func (r *GormSigningKeyRepository) FindActive(ctx context.Context, appID uint) (*domain.SigningKey, error) {
	var key domain.SigningKey
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND active = ?", appID, true).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSigningKeyMissing
		}
		return nil, err
	}
	return &key, nil
}

// Activate flips the active flag to the target key inside one transaction:
// deactivate every key for the app, then activate the target. No state
// observable outside the transaction ever has two active keys or, once a
// key has been activated, zero.
func (r *GormSigningKeyRepository) Activate(ctx context.Context, appID uint, kid string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var key domain.SigningKey
		if err := tx.Where("app_id = ? AND kid = ?", appID, kid).First(&key).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrKeyNotFound
			}
			return err
		}
		if err := tx.Model(&domain.SigningKey{}).
			Where("app_id = ?", appID).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&domain.SigningKey{}).
			Where("app_id = ? AND kid = ?", appID, kid).
			Update("active", true).Error
	})
}

// Delete removes a key and with it all verification trust in signatures it
// issued. Deleting the active key is a conflict; the caller must activate
// a replacement first.
func (r *GormSigningKeyRepository) Delete(ctx context.Context, appID uint, kid string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var key domain.SigningKey
		if err := tx.Where("app_id = ? AND kid = ?", appID, kid).First(&key).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrKeyNotFound
			}
			return err
		}
		if key.Active {
			return domain.ErrKeyActive
		}
		return tx.Delete(&key).Error
	})
}

// Purge removes a key unconditionally, active or not. Only the app
// bootstrap rollback uses it: when the app record itself is being undone
// there is no replacement key to activate first.
func (r *GormSigningKeyRepository) Purge(ctx context.Context, appID uint, kid string) error {
	return r.db.WithContext(ctx).
		Where("app_id = ? AND kid = ?", appID, kid).
		Delete(&domain.SigningKey{}).Error
}
