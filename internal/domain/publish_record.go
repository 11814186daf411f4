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

// PublishRecord is the append-only audit entry written after every
// successful publish. Records are never mutated; a failed audit write
// after a successful upload is surfaced as AuditWriteError and retried by
// the operator with a fresh publish, never by patching an existing row.
//
// The (AppID, Version) uniqueness constraint is the backstop for version
// allocation races: if two publishes somehow allocate the same version,
// the second audit write fails instead of silently overwriting history.
type PublishRecord struct {
	ID    uint `gorm:"primaryKey" json:"id"`
	AppID uint `gorm:"not null;index;uniqueIndex:idx_publish_app_version" json:"app_id"`

	// Version is the allocated YYYY-MM-DD.N identifier.
	Version string `gorm:"size:32;not null;uniqueIndex:idx_publish_app_version" json:"version"`

	PublishedAt time.Time `gorm:"not null" json:"published_at"`

	// Author is the opaque identity supplied by the caller, e.g. "system"
	// or a dashboard user id.
	Author string `gorm:"size:128;not null" json:"author"`

	Changelog string `gorm:"type:text;not null" json:"changelog"`

	// Summary is the structured diff against the previously published
	// artifact.
	Summary ChangeSet `gorm:"type:text" json:"summary"`

	// ArtifactBytes is the size of the uploaded signed envelope.
	ArtifactBytes int64 `gorm:"not null" json:"artifact_bytes"`

	CreatedAt time.Time `json:"created_at"`
}
