// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// =============================================================================
// ValidateKey Tests
// =============================================================================

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"simple key", "dark_mode", false},
		{"namespaced key", "store/paywall_enabled", false},
		{"deeply namespaced", "store/checkout/promo_banner", false},
		{"digits after first char", "promo2024", false},
		{"empty", "", true},
		{"uppercase", "DarkMode", true},
		{"leading digit", "2fast", true},
		{"leading slash", "/store/paywall", true},
		{"trailing slash", "store/", true},
		{"empty segment", "store//paywall", true},
		{"segment starting with digit", "store/2fast", true},
		{"hyphen", "dark-mode", true},
		{"space", "dark mode", true},
		{"too long", strings.Repeat("a", MaxKeyLength+1), true},
		{"max length ok", strings.Repeat("a", MaxKeyLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey("flag", tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("ValidateKey(%q) should return *ValidationError, got %T", tt.key, err)
				}
			}
		})
	}
}

// =============================================================================
// Flag Tests
// =============================================================================

func TestFlag_MissingDefaults(t *testing.T) {
	tests := []struct {
		name     string
		defaults DefaultsMap
		want     []Environment
	}{
		{
			name: "complete",
			defaults: DefaultsMap{
				EnvDevelopment: json.RawMessage(`true`),
				EnvStaging:     json.RawMessage(`true`),
				EnvProduction:  json.RawMessage(`false`),
			},
			want: nil,
		},
		{
			name: "missing staging",
			defaults: DefaultsMap{
				EnvDevelopment: json.RawMessage(`true`),
				EnvProduction:  json.RawMessage(`false`),
			},
			want: []Environment{EnvStaging},
		},
		{
			name: "json null counts as missing",
			defaults: DefaultsMap{
				EnvDevelopment: json.RawMessage(`true`),
				EnvStaging:     json.RawMessage(`null`),
				EnvProduction:  json.RawMessage(`false`),
			},
			want: []Environment{EnvStaging},
		},
		{
			name:     "all missing",
			defaults: DefaultsMap{},
			want:     []Environment{EnvDevelopment, EnvStaging, EnvProduction},
		},
		{
			name: "false is a real value",
			defaults: DefaultsMap{
				EnvDevelopment: json.RawMessage(`false`),
				EnvStaging:     json.RawMessage(`false`),
				EnvProduction:  json.RawMessage(`false`),
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Flag{Key: "test_flag", Type: TypeBool, Defaults: tt.defaults}
			got := f.MissingDefaults()
			if len(got) != len(tt.want) {
				t.Fatalf("MissingDefaults() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("MissingDefaults()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// =============================================================================
// EnvValue Tests
// =============================================================================

func TestEnvValue_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		value   EnvValue
		flagKey string
		want    string
		wantOK  bool
	}{
		{
			name:    "flat applies to any flag",
			value:   EnvValue{Flat: json.RawMessage(`42`)},
			flagKey: "anything",
			want:    `42`,
			wantOK:  true,
		},
		{
			name: "per-flag hit",
			value: EnvValue{PerFlag: map[string]json.RawMessage{
				"dark_mode": json.RawMessage(`true`),
			}},
			flagKey: "dark_mode",
			want:    `true`,
			wantOK:  true,
		},
		{
			name: "per-flag miss resolves to nothing",
			value: EnvValue{PerFlag: map[string]json.RawMessage{
				"dark_mode": json.RawMessage(`true`),
			}},
			flagKey: "other_flag",
			wantOK:  false,
		},
		{
			name: "per-flag null resolves to nothing",
			value: EnvValue{PerFlag: map[string]json.RawMessage{
				"dark_mode": json.RawMessage(`null`),
			}},
			flagKey: "dark_mode",
			wantOK:  false,
		},
		{
			name: "per-flag map shadows flat even on miss",
			value: EnvValue{
				Flat:    json.RawMessage(`1`),
				PerFlag: map[string]json.RawMessage{"x": json.RawMessage(`2`)},
			},
			flagKey: "y",
			wantOK:  false,
		},
		{
			name:    "zero value resolves to nothing",
			value:   EnvValue{},
			flagKey: "dark_mode",
			wantOK:  false,
		},
		{
			name:    "null flat resolves to nothing",
			value:   EnvValue{Flat: json.RawMessage(`null`)},
			flagKey: "dark_mode",
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.value.Resolve(tt.flagKey)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.flagKey, ok, tt.wantOK)
			}
			if ok && string(got) != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.flagKey, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Error Chain Tests
// =============================================================================

func TestErrorChains(t *testing.T) {
	if !errors.Is(ErrAppNotFound, ErrNotFound) {
		t.Error("ErrAppNotFound should wrap ErrNotFound")
	}
	if !errors.Is(ErrKeyNotFound, ErrNotFound) {
		t.Error("ErrKeyNotFound should wrap ErrNotFound")
	}
	if !errors.Is(ErrAppExists, ErrAlreadyExists) {
		t.Error("ErrAppExists should wrap ErrAlreadyExists")
	}
	if !errors.Is(ErrKeyActive, ErrConflict) {
		t.Error("ErrKeyActive should wrap ErrConflict")
	}
}

func TestAuditWriteError(t *testing.T) {
	inner := errors.New("disk full")
	err := &AuditWriteError{AppIdentifier: "ios", Version: "2026-08-30.1", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("AuditWriteError should unwrap to the inner error")
	}
	if !strings.Contains(err.Error(), "2026-08-30.1") {
		t.Errorf("Error() should name the live version: %s", err.Error())
	}
}

// =============================================================================
// App Tests
// =============================================================================

func TestApp_ArtifactPath(t *testing.T) {
	tests := []struct {
		name string
		app  App
		want string
	}{
		{"no prefix", App{Identifier: "ios-client"}, "ios-client/config.json"},
		{"with prefix", App{Identifier: "ios-client", StoragePrefix: "prod"}, "prod/ios-client/config.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.app.ArtifactPath(); got != tt.want {
				t.Errorf("ArtifactPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Version Pattern Tests
// =============================================================================

func TestVersionPattern(t *testing.T) {
	valid := []string{"2026-08-30.1", "2026-08-30.17", "2025-01-01.100"}
	invalid := []string{"2026-8-30.1", "2026-08-30", "2026-08-30.", "v1.2.3", "2026-08-30.1.2"}

	for _, v := range valid {
		if !VersionPattern.MatchString(v) {
			t.Errorf("VersionPattern should match %q", v)
		}
	}
	for _, v := range invalid {
		if VersionPattern.MatchString(v) {
			t.Errorf("VersionPattern should not match %q", v)
		}
	}
}
