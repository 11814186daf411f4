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
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonValue serializes a collection field for storage as a text column.
func jsonValue(v any) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// jsonScan deserializes a text column into a collection field. Accepts
// both []byte (postgres) and string (sqlite) source representations.
func jsonScan(src, dst any) error {
	if src == nil {
		return nil
	}
	switch s := src.(type) {
	case []byte:
		return json.Unmarshal(s, dst)
	case string:
		return json.Unmarshal([]byte(s), dst)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
}

// ConditionList is a JSON-columned list of membership conditions.
type ConditionList []Condition

func (l ConditionList) Value() (driver.Value, error) { return jsonValue(l) }
func (l *ConditionList) Scan(src any) error          { return jsonScan(src, l) }

// StringList is a JSON-columned list of strings (e.g. target flag keys).
type StringList []string

func (l StringList) Value() (driver.Value, error) { return jsonValue(l) }
func (l *StringList) Scan(src any) error          { return jsonScan(src, l) }

// DefaultsMap holds a flag's per-environment default values.
type DefaultsMap map[Environment]json.RawMessage

func (m DefaultsMap) Value() (driver.Value, error) { return jsonValue(m) }
func (m *DefaultsMap) Scan(src any) error          { return jsonScan(src, m) }

// VariantsMap holds a flag's per-environment conditional variants.
type VariantsMap map[Environment][]ConditionalVariant

func (m VariantsMap) Value() (driver.Value, error) { return jsonValue(m) }
func (m *VariantsMap) Scan(src any) error          { return jsonScan(src, m) }

// EnvValueMap holds per-environment experiment values.
type EnvValueMap map[Environment]EnvValue

func (m EnvValueMap) Value() (driver.Value, error) { return jsonValue(m) }
func (m *EnvValueMap) Scan(src any) error          { return jsonScan(src, m) }

// TestVariantMap holds a TEST experiment's variant-name → variant map.
type TestVariantMap map[string]TestVariant

func (m TestVariantMap) Value() (driver.Value, error) { return jsonValue(m) }
func (m *TestVariantMap) Scan(src any) error          { return jsonScan(src, m) }
