// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package repository provides narrow per-entity data access for the
// publishing pipeline. The pipeline depends only on the interfaces here;
// gorm-backed implementations cover sqlite and postgres, and the in-memory
// implementations back unit tests.
package repository

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AleutianAI/flagforge/internal/domain"
)

// Open connects to the entity store. Supported drivers: "sqlite" (DSN is
// a file path, ":memory:" works for tests) and "postgres".
//
// TranslateError maps driver-specific unique-constraint failures to
// gorm.ErrDuplicatedKey, which the repositories rely on to report
// ErrAppExists and ErrConflict.
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return db, nil
}

// Migrate creates or updates the schema for all pipeline entities.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.App{},
		&domain.Flag{},
		&domain.Cohort{},
		&domain.Experiment{},
		&domain.SigningKey{},
		&domain.PublishRecord{},
	)
}
