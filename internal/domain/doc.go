// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package domain holds the entities the publishing pipeline operates on:
// apps, flags, cohorts, experiments, signing keys, publish records, and
// the compiled artifact served to client SDKs.
//
// Entities carry gorm tags for the relational store but no behavior that
// depends on any particular datastore. Collection-valued fields are stored
// as JSON columns via driver.Valuer/sql.Scanner implementations so the
// same types round-trip through sqlite and postgres.
//
// The package also defines the error taxonomy shared by every component:
// sentinel errors for not-found/conflict classification plus typed errors
// (ValidationError, MigrationRequiredError, StorageError, SignatureError,
// AuditWriteError) that carry enough context for operators to react.
package domain
