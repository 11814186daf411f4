// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package signing owns signing-key lifecycle and artifact signature
// computation.
//
// Key rotation is modeled as an owned state transition, never as separate
// deactivate and activate calls: Activate is the only way active status
// moves between keys, and the repository performs the flip in one
// transaction. Deactivation does not revoke verification trust — retired
// keys still verify the artifacts they signed until they are deleted.
package signing

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/AleutianAI/flagforge/internal/domain"
	"github.com/AleutianAI/flagforge/internal/repository"
)

// AlgorithmEdDSA is the only signature scheme currently issued.
const AlgorithmEdDSA = "EdDSA"

// Manager implements the single-active-key lifecycle for an app's
// signing keys.
type Manager struct {
	keys   repository.SigningKeyRepository
	logger *slog.Logger
}

// NewManager creates a Manager over the key repository.
func NewManager(keys repository.SigningKeyRepository, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{keys: keys, logger: logger}
}

// Generate creates a new Ed25519 key pair for the app. The key is created
// inactive; it signs nothing until Activate is called on it.
func (m *Manager) Generate(ctx context.Context, appID uint) (*domain.SigningKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, &domain.SignatureError{Reason: "key generation failed", Err: err}
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, &domain.SignatureError{Reason: "encode private key", Err: err}
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, &domain.SignatureError{Reason: "encode public key", Err: err}
	}

	key := &domain.SigningKey{
		AppID:     appID,
		KID:       uuid.NewString(),
		Algorithm: AlgorithmEdDSA,
		PublicPEM: string(pem.EncodeToMemory(&pem.Block{
			Type: "PUBLIC KEY", Bytes: pubDER,
		})),
		PrivatePEM: string(pem.EncodeToMemory(&pem.Block{
			Type: "PRIVATE KEY", Bytes: privDER,
		})),
		Active: false,
	}
	if err := m.keys.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("store signing key: %w", err)
	}

	m.logger.Info("generated signing key", "app_id", appID, "kid", key.KID)
	return key, nil
}

// Activate atomically transfers active status to the given key. Every
// other key for the app is deactivated in the same transaction.
func (m *Manager) Activate(ctx context.Context, appID uint, kid string) error {
	if err := m.keys.Activate(ctx, appID, kid); err != nil {
		return err
	}
	m.logger.Info("activated signing key", "app_id", appID, "kid", kid)
	return nil
}

// Delete removes a key, revoking verification trust in its signatures.
// Fails with domain.ErrKeyActive while the key is active: a replacement
// must be activated first so the app is never left unable to sign.
func (m *Manager) Delete(ctx context.Context, appID uint, kid string) error {
	if err := m.keys.Delete(ctx, appID, kid); err != nil {
		return err
	}
	m.logger.Info("deleted signing key", "app_id", appID, "kid", kid)
	return nil
}

// Purge removes a key unconditionally, bypassing the active-key guard.
// Only the app bootstrap rollback calls this.
func (m *Manager) Purge(ctx context.Context, appID uint, kid string) error {
	if err := m.keys.Purge(ctx, appID, kid); err != nil {
		return err
	}
	m.logger.Warn("purged signing key", "app_id", appID, "kid", kid)
	return nil
}

// ActiveKey returns the app's active key, or domain.ErrSigningKeyMissing.
func (m *Manager) ActiveKey(ctx context.Context, appID uint) (*domain.SigningKey, error) {
	return m.keys.FindActive(ctx, appID)
}

// PublicKeys returns the distributable projections of every key the app
// has, active and retired, so clients can verify artifacts signed by a
// retired-but-not-deleted key.
func (m *Manager) PublicKeys(ctx context.Context, appID uint) ([]domain.PublicKeyInfo, error) {
	keys, err := m.keys.ListByApp(ctx, appID)
	if err != nil {
		return nil, err
	}
	infos := make([]domain.PublicKeyInfo, len(keys))
	for i, k := range keys {
		infos[i] = k.Public()
	}
	return infos, nil
}
