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
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for classification via errors.Is. Entity-specific
// variants wrap the base sentinels so callers can match either level.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")

	ErrAppNotFound        = fmt.Errorf("app %w", ErrNotFound)
	ErrFlagNotFound       = fmt.Errorf("flag %w", ErrNotFound)
	ErrCohortNotFound     = fmt.Errorf("cohort %w", ErrNotFound)
	ErrExperimentNotFound = fmt.Errorf("experiment %w", ErrNotFound)
	ErrKeyNotFound        = fmt.Errorf("signing key %w", ErrNotFound)
	ErrRecordNotFound     = fmt.Errorf("publish record %w", ErrNotFound)

	ErrAppExists = fmt.Errorf("app %w", ErrAlreadyExists)

	// ErrKeyActive rejects deletion of the currently active signing key.
	// The caller must activate a replacement first.
	ErrKeyActive = fmt.Errorf("signing key is active: %w", ErrConflict)

	// ErrSigningKeyMissing aborts a publish when the app has no active key.
	ErrSigningKeyMissing = errors.New("no active signing key")
)

// ValidationError reports a malformed identifier key, an out-of-range
// percentage, or a traffic split that does not sum to 100. Any violation
// fails the whole compile; compilation never partially succeeds.
type ValidationError struct {
	Entity string
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("validation failed for %s %q: %s", e.Entity, e.Key, e.Reason)
}

// MigrationRequiredError reports a flag whose stored defaults predate the
// current schema. The missing environments are never silently defaulted.
type MigrationRequiredError struct {
	FlagKey string
	Missing []Environment
}

func (e *MigrationRequiredError) Error() string {
	envs := make([]string, len(e.Missing))
	for i, env := range e.Missing {
		envs[i] = string(env)
	}
	return fmt.Sprintf("flag %q requires migration: missing default values for %s",
		e.FlagKey, strings.Join(envs, ", "))
}

// StorageError wraps an object-storage failure. Permanent failures (bad
// credentials, missing bucket) fail fast; transient ones are retried with
// bounded backoff before surfacing.
type StorageError struct {
	Op        string
	Permanent bool
	Err       error
}

func (e *StorageError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("storage %s failed (%s): %v", e.Op, kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SignatureError reports malformed key material or a failed signature
// computation.
type SignatureError struct {
	Reason string
	Err    error
}

func (e *SignatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signature error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("signature error: %s", e.Reason)
}

func (e *SignatureError) Unwrap() error { return e.Err }

// AuditWriteError is the one accepted inconsistency window: the signed
// artifact uploaded successfully but the audit record write failed. The
// artifact is live; the operation must still be reported as a failure so
// the operator can retry (allocating a fresh version) rather than trust an
// incomplete audit trail.
type AuditWriteError struct {
	AppIdentifier string
	Version       string
	Err           error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("artifact %s for app %q is live but the audit record write failed: %v",
		e.Version, e.AppIdentifier, e.Err)
}

func (e *AuditWriteError) Unwrap() error { return e.Err }

// Compile-time interface satisfaction checks
var (
	_ error = (*ValidationError)(nil)
	_ error = (*MigrationRequiredError)(nil)
	_ error = (*StorageError)(nil)
	_ error = (*SignatureError)(nil)
	_ error = (*AuditWriteError)(nil)
)
