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

import "time"

// Cohort is a named, reusable group of users defined purely by membership
// conditions. It carries no sampling percentage; all percentage-based
// sampling lives on experiments. Earlier schema revisions attached a salt
// and percentage here directly; those columns were dropped in the cohort
// migration and must not reappear.
type Cohort struct {
	ID    uint `gorm:"primaryKey" json:"id"`
	AppID uint `gorm:"not null;index;uniqueIndex:idx_cohort_app_key" json:"app_id"`

	Key         string `gorm:"size:128;not null;uniqueIndex:idx_cohort_app_key" json:"key"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"size:512" json:"description"`

	Conditions ConditionList `gorm:"type:text" json:"conditions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
