// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package domain

import "time"

// SigningKey is an asymmetric key pair used to sign published artifacts.
//
// Invariant: for a given app, at most one key is active at any observable
// instant. Activation is a single atomic flip (deactivate all, activate
// one) performed inside one transaction. Deactivating a key does not
// revoke verification trust in signatures it already issued; only deleting
// the key does.
type SigningKey struct {
	ID    uint `gorm:"primaryKey" json:"id"`
	AppID uint `gorm:"not null;index;uniqueIndex:idx_key_app_kid" json:"app_id"`

	// KID identifies the key in signed-envelope headers.
	KID string `gorm:"column:kid;size:64;not null;uniqueIndex:idx_key_app_kid" json:"kid"`

	// Algorithm tags the signature scheme, e.g. "EdDSA".
	Algorithm string `gorm:"size:16;not null" json:"algorithm"`

	// PublicPEM is distributed to clients for verification.
	PublicPEM string `gorm:"type:text;not null" json:"public_pem"`

	// PrivatePEM never leaves the signing operation. It is excluded from
	// JSON serialization entirely.
	PrivatePEM string `gorm:"type:text;not null" json:"-"`

	Active bool `gorm:"not null;default:false" json:"active"`

	CreatedAt time.Time `json:"created_at"`
}

// PublicKeyInfo is the client-facing projection of a signing key served by
// the public-key distribution endpoint and the bootstrap descriptor.
type PublicKeyInfo struct {
	KID       string    `json:"kid"`
	PEM       string    `json:"pem"`
	Algorithm string    `json:"algorithm"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Public returns the key's distributable projection.
func (k *SigningKey) Public() PublicKeyInfo {
	return PublicKeyInfo{
		KID:       k.KID,
		PEM:       k.PublicPEM,
		Algorithm: k.Algorithm,
		Active:    k.Active,
		CreatedAt: k.CreatedAt,
	}
}
