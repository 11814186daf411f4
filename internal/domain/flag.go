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

// Condition is a single membership rule: an attribute, an operator, and a
// value set. Conditions appear on cohorts, conditional variants, and
// experiment entry rules. A condition may reference a cohort by key via
// the "cohort" attribute, but cohorts themselves never nest.
type Condition struct {
	Attribute string   `json:"attribute"`
	Operator  string   `json:"operator"`
	Values    []string `json:"values"`
}

// ConditionalVariant is an author-defined override on a flag's value,
// scoped by conditions and ordered by an explicit integer.
type ConditionalVariant struct {
	Order      int             `json:"order"`
	Value      json.RawMessage `json:"value"`
	Conditions []Condition     `json:"conditions,omitempty"`
}

// Flag is a feature flag with per-environment defaults and conditional
// variants.
type Flag struct {
	ID    uint `gorm:"primaryKey" json:"id"`
	AppID uint `gorm:"not null;index;uniqueIndex:idx_flag_app_key" json:"app_id"`

	// Key is the namespaced flag identifier, e.g. "store/paywall_enabled".
	Key string `gorm:"size:128;not null;uniqueIndex:idx_flag_app_key" json:"key"`

	Type        FlagType `gorm:"size:16;not null" json:"type"`
	Description string   `gorm:"size:512" json:"description"`

	// Defaults must contain a non-null value for every environment before
	// the flag can be compiled; a missing entry means the record predates
	// the current schema and publishing is blocked with MigrationRequired.
	Defaults DefaultsMap `gorm:"type:text;not null" json:"defaults"`

	// Variants are the per-environment conditional variants with their
	// authored order values.
	Variants VariantsMap `gorm:"type:text" json:"variants"`

	Archived   bool       `gorm:"not null;default:false;index" json:"archived"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MissingDefaults returns the environments the flag has no usable default
// for, in canonical order. A JSON null counts as missing.
func (f *Flag) MissingDefaults() []Environment {
	var missing []Environment
	for _, env := range Environments() {
		v, ok := f.Defaults[env]
		if !ok || isJSONNull(v) {
			missing = append(missing, env)
		}
	}
	return missing
}

// isJSONNull reports whether a raw value is absent or the JSON literal null.
func isJSONNull(v json.RawMessage) bool {
	return len(v) == 0 || string(v) == "null"
}
