// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package version computes the next monotonic version identifier for an
// app's publish stream.
package version

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/flagforge/internal/repository"
)

// Allocator produces version strings of the form YYYY-MM-DD.N, where the
// date is the compile date in UTC and N is a 1-based integer unique among
// the app's publishes on that date.
//
// The max-then-increment scan is only safe under the pipeline's per-app
// serialization; callers must hold the app's publish lock. The audit
// log's (app_id, version) uniqueness constraint backstops any violation.
type Allocator struct {
	records repository.PublishRecordRepository
}

// New creates an Allocator over the audit log.
func New(records repository.PublishRecordRepository) *Allocator {
	return &Allocator{records: records}
}

// Allocate returns the next version for the app as of the given UTC
// instant: the maximum numeric suffix among today's published versions
// plus one, or 1 when nothing has been published today.
func (a *Allocator) Allocate(ctx context.Context, appID uint, asOf time.Time) (string, error) {
	prefix := asOf.UTC().Format("2006-01-02")

	versions, err := a.records.VersionsWithPrefix(ctx, appID, prefix)
	if err != nil {
		return "", fmt.Errorf("scan versions for %s: %w", prefix, err)
	}

	highest := 0
	for _, v := range versions {
		suffix, ok := strings.CutPrefix(v, prefix+".")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			// Malformed audit rows never block allocation.
			continue
		}
		if n > highest {
			highest = n
		}
	}

	return fmt.Sprintf("%s.%d", prefix, highest+1), nil
}
