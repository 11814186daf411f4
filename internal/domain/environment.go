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
	"regexp"
)

// Environment is one of the three deployment environments every flag is
// configured for.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Environments returns all environments in canonical order.
//
// Every compiled flag must define a default for each of these; a stored
// flag missing one predates the current schema and blocks publishing.
func Environments() []Environment {
	return []Environment{EnvDevelopment, EnvStaging, EnvProduction}
}

// FlagType is the declared value type of a flag.
type FlagType string

const (
	TypeBool   FlagType = "bool"
	TypeString FlagType = "string"
	TypeInt    FlagType = "int"
	TypeDouble FlagType = "double"
	TypeDate   FlagType = "date"
	TypeJSON   FlagType = "json"
)

// MaxKeyLength bounds flag, cohort, and experiment keys.
const MaxKeyLength = 128

// keyPattern matches lowercase segment/underscore identifiers such as
// "store/paywall_enabled" or "winter_promo".
var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(/[a-z][a-z0-9_]*)*$`)

// ValidateKey checks the namespaced-key format shared by flags, cohorts,
// and experiments. Returns a *ValidationError naming the entity and key
// on violation.
func ValidateKey(entity, key string) error {
	if key == "" {
		return &ValidationError{Entity: entity, Key: key, Reason: "key is empty"}
	}
	if len(key) > MaxKeyLength {
		return &ValidationError{Entity: entity, Key: key, Reason: "key exceeds maximum length"}
	}
	if !keyPattern.MatchString(key) {
		return &ValidationError{Entity: entity, Key: key, Reason: "key must be lowercase segments of [a-z0-9_] separated by '/'"}
	}
	return nil
}
