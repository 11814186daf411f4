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

import (
	"path"
	"time"
)

// App is a client application with its own publish stream, artifact
// location, and signing keys.
//
// An App must never exist without at least one successfully verified
// publish: creation triggers a baseline publish, and a failure there
// rolls the App record back (see publish.Bootstrapper).
type App struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Identifier is globally unique and doubles as the storage path
	// segment for the app's artifacts.
	Identifier string `gorm:"uniqueIndex;size:128;not null" json:"identifier"`

	// StoragePrefix is the object-storage prefix artifacts are written
	// under. Empty means the store root.
	StoragePrefix string `gorm:"size:255" json:"storage_prefix"`

	// MinPollSeconds is the minimum interval clients should wait between
	// artifact fetches.
	MinPollSeconds int `gorm:"not null;default:300" json:"min_poll_seconds"`

	// CacheTTLSeconds is the hard cache lifetime after which clients must
	// refetch even without a poll trigger.
	CacheTTLSeconds int `gorm:"not null;default:86400" json:"cache_ttl_seconds"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArtifactPath returns the deterministic object-storage path the app's
// current signed artifact is published to.
func (a *App) ArtifactPath() string {
	return path.Join(a.StoragePrefix, a.Identifier, "config.json")
}

// FetchPolicy is the client-facing projection of the app's polling rules,
// embedded into the bootstrap descriptor.
type FetchPolicy struct {
	MinPollSeconds  int `json:"min_poll_seconds"`
	CacheTTLSeconds int `json:"cache_ttl_seconds"`
}

// Policy returns the app's fetch policy.
func (a *App) Policy() FetchPolicy {
	return FetchPolicy{
		MinPollSeconds:  a.MinPollSeconds,
		CacheTTLSeconds: a.CacheTTLSeconds,
	}
}
