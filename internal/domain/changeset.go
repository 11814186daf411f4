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

import "database/sql/driver"

// ChangeAction classifies what happened to an entity between two artifacts.
type ChangeAction string

const (
	ActionAdded    ChangeAction = "added"
	ActionModified ChangeAction = "modified"
	ActionRemoved  ChangeAction = "removed"
)

// ChangeEntity names the kind of entity a change refers to.
type ChangeEntity string

const (
	EntityFlag   ChangeEntity = "flag"
	EntityCohort ChangeEntity = "cohort"
)

// Change is one entry in a publish's human-readable change summary.
type Change struct {
	EntityType ChangeEntity `json:"entity_type"`
	Action     ChangeAction `json:"action"`
	Key        string       `json:"key"`
	Name       string       `json:"name,omitempty"`
}

// ChangeSet is the structured diff summary recorded with every publish.
// It is purely informational: an empty change list never blocks a publish.
type ChangeSet struct {
	Changes     []Change `json:"changes"`
	FlagCount   int      `json:"flag_count"`
	CohortCount int      `json:"cohort_count"`
}

// Empty reports whether the publish changed nothing.
func (c ChangeSet) Empty() bool { return len(c.Changes) == 0 }

func (c ChangeSet) Value() (driver.Value, error) { return jsonValue(c) }
func (c *ChangeSet) Scan(src any) error          { return jsonScan(src, c) }
