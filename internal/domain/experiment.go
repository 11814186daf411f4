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
	"encoding/json"
	"time"
)

// ExperimentKind distinguishes multi-variant tests from single-percentage
// rollouts.
type ExperimentKind string

const (
	KindTest    ExperimentKind = "TEST"
	KindRollout ExperimentKind = "ROLLOUT"
)

// EnvValue is the value an experiment contributes for one environment.
//
// Legacy schema evolution left two shapes in the wild: a flat value that
// applies to every target flag, and a map keyed by target flag. The two are
// modeled as an explicit tagged union rather than runtime type-sniffing;
// Resolve implements the per-flag-then-flat resolution order.
type EnvValue struct {
	Flat    json.RawMessage            `json:"flat,omitempty"`
	PerFlag map[string]json.RawMessage `json:"per_flag,omitempty"`
}

// Resolve returns the value this EnvValue contributes for the given flag
// key, or ok=false when the experiment defines nothing usable for it.
// A per-flag map that does not name the flag (or names it null) resolves
// to nothing; the flat value is only consulted when no per-flag map is set.
func (v EnvValue) Resolve(flagKey string) (json.RawMessage, bool) {
	if v.PerFlag != nil {
		raw, ok := v.PerFlag[flagKey]
		if !ok || isJSONNull(raw) {
			return nil, false
		}
		return raw, true
	}
	if isJSONNull(v.Flat) {
		return nil, false
	}
	return v.Flat, true
}

// IsZero reports whether the EnvValue defines neither shape.
func (v EnvValue) IsZero() bool {
	return v.PerFlag == nil && len(v.Flat) == 0
}

// TestVariant is one arm of a TEST experiment: a traffic-split percentage
// and the per-environment values it assigns to target flags.
type TestVariant struct {
	Percentage int         `json:"percentage"`
	Values     EnvValueMap `json:"values"`
}

// Experiment is a TEST or ROLLOUT targeting a set of flags.
type Experiment struct {
	ID    uint `gorm:"primaryKey" json:"id"`
	AppID uint `gorm:"not null;index;uniqueIndex:idx_experiment_app_key" json:"app_id"`

	Key  string         `gorm:"size:128;not null;uniqueIndex:idx_experiment_app_key" json:"key"`
	Name string         `gorm:"size:255;not null" json:"name"`
	Kind ExperimentKind `gorm:"size:16;not null" json:"kind"`

	// Salt seeds the client SDK's consistent-hash bucketing. Generated at
	// creation and immutable thereafter.
	Salt string `gorm:"size:64;not null" json:"salt"`

	// Conditions are the entry rules a user must match before bucketing.
	Conditions ConditionList `gorm:"type:text" json:"conditions"`

	// FlagKeys are the keys of the flags this experiment targets.
	FlagKeys StringList `gorm:"type:text" json:"flag_keys"`

	// Variants is populated for kind=TEST only.
	Variants TestVariantMap `gorm:"type:text" json:"variants,omitempty"`

	// Percentage and Values are populated for kind=ROLLOUT only.
	Percentage int         `gorm:"not null;default:0" json:"percentage"`
	Values     EnvValueMap `gorm:"type:text" json:"values,omitempty"`

	Archived   bool       `gorm:"not null;default:false;index" json:"archived"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Targets reports whether the experiment targets the given flag key.
func (e *Experiment) Targets(flagKey string) bool {
	for _, k := range e.FlagKeys {
		if k == flagKey {
			return true
		}
	}
	return false
}
