// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diff compares a newly compiled artifact against the previously
// published one and produces the change summary recorded in the audit
// trail. Diffing is purely informational and never blocks publishing:
// byte-identical content yields an empty change list but still gets a new
// version.
package diff

import (
	"encoding/json"
	"sort"

	"github.com/AleutianAI/flagforge/internal/domain"
)

// Engine computes ChangeSets between artifacts.
type Engine struct{}

// New creates a diff engine.
func New() *Engine { return &Engine{} }

// Diff compares artifacts. previous may be nil (first publish); every
// entity in next is then reported as added. Added/removed classification
// is by key set; shared keys are classified modified or unchanged by
// structural deep equality of their compiled shapes.
func (e *Engine) Diff(next *domain.Artifact, previous *domain.Artifact) domain.ChangeSet {
	set := domain.ChangeSet{
		Changes:     []domain.Change{},
		FlagCount:   len(next.Flags),
		CohortCount: len(next.Cohorts),
	}

	var prevFlags map[string]domain.FlagConfig
	var prevCohorts map[string]domain.CohortConfig
	if previous != nil {
		prevFlags = previous.Flags
		prevCohorts = previous.Cohorts
	}

	for _, key := range sortedKeys(next.Flags) {
		prev, existed := prevFlags[key]
		switch {
		case !existed:
			set.Changes = append(set.Changes, change(domain.EntityFlag, domain.ActionAdded, key, next.Flags[key].Description))
		case !deepEqual(next.Flags[key], prev):
			set.Changes = append(set.Changes, change(domain.EntityFlag, domain.ActionModified, key, next.Flags[key].Description))
		}
	}
	for _, key := range sortedKeys(prevFlags) {
		if _, exists := next.Flags[key]; !exists {
			set.Changes = append(set.Changes, change(domain.EntityFlag, domain.ActionRemoved, key, prevFlags[key].Description))
		}
	}

	for _, key := range sortedKeys(next.Cohorts) {
		prev, existed := prevCohorts[key]
		switch {
		case !existed:
			set.Changes = append(set.Changes, change(domain.EntityCohort, domain.ActionAdded, key, next.Cohorts[key].Name))
		case !deepEqual(next.Cohorts[key], prev):
			set.Changes = append(set.Changes, change(domain.EntityCohort, domain.ActionModified, key, next.Cohorts[key].Name))
		}
	}
	for _, key := range sortedKeys(prevCohorts) {
		if _, exists := next.Cohorts[key]; !exists {
			set.Changes = append(set.Changes, change(domain.EntityCohort, domain.ActionRemoved, key, prevCohorts[key].Name))
		}
	}

	return set
}

func change(entity domain.ChangeEntity, action domain.ChangeAction, key, name string) domain.Change {
	return domain.Change{EntityType: entity, Action: action, Key: key, Name: name}
}

// deepEqual compares compiled shapes through their canonical JSON
// encodings. The compiler produces normalized structures, so encoding
// equality is structural equality without tripping over raw-message byte
// aliasing.
func deepEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
