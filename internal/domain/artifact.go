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
	"regexp"
	"time"
)

// ArtifactSchemaVersion is the current wire schema of compiled artifacts.
// Bump only with a corresponding client SDK release.
const ArtifactSchemaVersion = 1

// VersionPattern matches allocated config versions: a UTC date prefix and
// a 1-based numeric suffix unique among that app's publishes on that date.
var VersionPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.\d+$`)

// Variant is one entry in a flag's per-environment variant array. Exactly
// one of the three kinds appears:
//
//   - "conditional": author-defined override with Value and Conditions
//   - "test": reference to a TEST experiment via Test, with the resolved Value
//   - "rollout": reference to a ROLLOUT experiment via Rollout, with the
//     resolved Value and the rollout Percentage
//
// Arrays are sorted ascending by Order; conditional entries keep their
// authored order, experiment entries are appended above the existing
// maximum so they always evaluate after author overrides.
//
// Percentage is always present on the wire, matching the rollouts table;
// it is meaningful only for "rollout" entries and zero elsewhere.
type Variant struct {
	Type       string          `json:"type"`
	Order      int             `json:"order"`
	Value      json.RawMessage `json:"value,omitempty"`
	Conditions []Condition     `json:"conditions,omitempty"`
	Test       string          `json:"test,omitempty"`
	Rollout    string          `json:"rollout,omitempty"`
	Percentage int             `json:"percentage"`
}

// EnvConfig is a flag's compiled configuration for one environment.
type EnvConfig struct {
	Default  json.RawMessage `json:"default"`
	Variants []Variant       `json:"variants"`
}

// FlagConfig is a flag's compiled configuration across all environments.
type FlagConfig struct {
	Type        FlagType  `json:"type"`
	Description string    `json:"description,omitempty"`
	Development EnvConfig `json:"development"`
	Staging     EnvConfig `json:"staging"`
	Production  EnvConfig `json:"production"`
}

// Env returns the environment-specific view of the flag config.
func (f FlagConfig) Env(env Environment) EnvConfig {
	switch env {
	case EnvStaging:
		return f.Staging
	case EnvProduction:
		return f.Production
	default:
		return f.Development
	}
}

// CohortConfig is a cohort's compiled shape.
type CohortConfig struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Conditions  []Condition `json:"conditions"`
}

// TestConfig is a TEST experiment's compiled shape, carrying everything
// the client needs to bucket a user: salt, entry conditions, and the
// traffic split per variant.
type TestConfig struct {
	Name       string                   `json:"name"`
	Salt       string                   `json:"salt"`
	Conditions []Condition              `json:"conditions,omitempty"`
	Variants   map[string]TestSplitInfo `json:"variants"`
}

// TestSplitInfo is one variant's share of test traffic.
type TestSplitInfo struct {
	Percentage int `json:"percentage"`
}

// RolloutConfig is a ROLLOUT experiment's compiled shape.
type RolloutConfig struct {
	Name       string      `json:"name"`
	Salt       string      `json:"salt"`
	Percentage int         `json:"percentage"`
	Conditions []Condition `json:"conditions,omitempty"`
}

// Artifact is the compiled, versioned configuration document served to
// client SDKs. It is the only entity shipped to clients and is never
// persisted relationally; the signed envelope in object storage is its
// single durable form.
//
// ConfigVersion and PublishedAt are left unset by the compiler and stamped
// by the publish pipeline after version allocation.
type Artifact struct {
	SchemaVersion int       `json:"schema_version"`
	ConfigVersion string    `json:"config_version"`
	PublishedAt   time.Time `json:"published_at"`
	AppIdentifier string    `json:"app_identifier"`

	Cohorts  map[string]CohortConfig  `json:"cohorts"`
	Flags    map[string]FlagConfig    `json:"flags"`
	Tests    map[string]TestConfig    `json:"tests"`
	Rollouts map[string]RolloutConfig `json:"rollouts"`
}

// EmptyArtifact returns the baseline artifact published when an app is
// created, before any entities exist.
func EmptyArtifact(appIdentifier string) *Artifact {
	return &Artifact{
		SchemaVersion: ArtifactSchemaVersion,
		AppIdentifier: appIdentifier,
		Cohorts:       map[string]CohortConfig{},
		Flags:         map[string]FlagConfig{},
		Tests:         map[string]TestConfig{},
		Rollouts:      map[string]RolloutConfig{},
	}
}
