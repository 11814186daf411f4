// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/AleutianAI/flagforge/internal/domain"
	"github.com/AleutianAI/flagforge/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture returns a compiler over fresh in-memory repositories and the
// app every entity in the test should attach to.
func newFixture(t *testing.T) (*Compiler, *repository.Memory, *domain.App) {
	t.Helper()
	mem := repository.NewMemory()
	app := &domain.App{Identifier: "checkout"}
	if err := mem.Apps().Create(context.Background(), app); err != nil {
		t.Fatalf("create app: %v", err)
	}
	c := New(mem.Flags(), mem.Cohorts(), mem.Experiments(), discardLogger())
	return c, mem, app
}

func boolDefaults(dev, staging, prod bool) domain.DefaultsMap {
	raw := func(b bool) json.RawMessage {
		if b {
			return json.RawMessage(`true`)
		}
		return json.RawMessage(`false`)
	}
	return domain.DefaultsMap{
		domain.EnvDevelopment: raw(dev),
		domain.EnvStaging:     raw(staging),
		domain.EnvProduction:  raw(prod),
	}
}

// =============================================================================
// Compile: basics
// =============================================================================

func TestCompile_EmptyApp(t *testing.T) {
	c, _, app := newFixture(t)

	artifact, err := c.Compile(context.Background(), app)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if artifact.SchemaVersion != domain.ArtifactSchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", artifact.SchemaVersion, domain.ArtifactSchemaVersion)
	}
	if artifact.AppIdentifier != "checkout" {
		t.Errorf("AppIdentifier = %q, want %q", artifact.AppIdentifier, "checkout")
	}
	if artifact.ConfigVersion != "" {
		t.Errorf("ConfigVersion = %q, want unset (the publish pipeline stamps it)", artifact.ConfigVersion)
	}
	// Empty maps must still be non-nil so the wire artifact carries {}.
	if artifact.Cohorts == nil || artifact.Flags == nil || artifact.Tests == nil || artifact.Rollouts == nil {
		t.Error("empty artifact has nil maps")
	}
}

func TestCompile_MissingDefault(t *testing.T) {
	c, mem, app := newFixture(t)
	ctx := context.Background()

	flag := &domain.Flag{
		AppID: app.ID,
		Key:   "new_pricing",
		Type:  domain.TypeBool,
		Defaults: domain.DefaultsMap{
			domain.EnvDevelopment: json.RawMessage(`true`),
			domain.EnvProduction:  json.RawMessage(`false`),
		},
	}
	if err := mem.Flags().Create(ctx, flag); err != nil {
		t.Fatalf("create flag: %v", err)
	}

	_, err := c.Compile(ctx, app)
	var migErr *domain.MigrationRequiredError
	if !errors.As(err, &migErr) {
		t.Fatalf("Compile() error = %v, want MigrationRequiredError", err)
	}
	if migErr.FlagKey != "new_pricing" {
		t.Errorf("FlagKey = %q, want %q", migErr.FlagKey, "new_pricing")
	}
	if len(migErr.Missing) != 1 || migErr.Missing[0] != domain.EnvStaging {
		t.Errorf("Missing = %v, want [staging]", migErr.Missing)
	}
}

func TestCompile_ArchivedEntitiesExcluded(t *testing.T) {
	c, mem, app := newFixture(t)
	ctx := context.Background()

	live := &domain.Flag{
		AppID:    app.ID,
		Key:      "live_flag",
		Type:     domain.TypeBool,
		Defaults: boolDefaults(false, false, false),
	}
	retired := &domain.Flag{
		AppID:    app.ID,
		Key:      "retired_flag",
		Type:     domain.TypeBool,
		Defaults: boolDefaults(false, false, false),
		Archived: true,
	}
	for _, f := range []*domain.Flag{live, retired} {
		if err := mem.Flags().Create(ctx, f); err != nil {
			t.Fatalf("create flag: %v", err)
		}
	}
	exp := &domain.Experiment{
		AppID:    app.ID,
		Key:      "retired_rollout",
		Name:     "Retired",
		Kind:     domain.KindRollout,
		Salt:     "s1",
		FlagKeys: domain.StringList{"live_flag"},
		Archived: true,
	}
	if err := mem.Experiments().Create(ctx, exp); err != nil {
		t.Fatalf("create experiment: %v", err)
	}

	artifact, err := c.Compile(ctx, app)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if _, ok := artifact.Flags["retired_flag"]; ok {
		t.Error("archived flag compiled into artifact")
	}
	if _, ok := artifact.Flags["live_flag"]; !ok {
		t.Error("live flag missing from artifact")
	}
	if len(artifact.Rollouts) != 0 {
		t.Errorf("archived rollout compiled into artifact: %v", artifact.Rollouts)
	}
}

// =============================================================================
// Compile: validation failures
// =============================================================================

func TestCompile_ValidationFailures(t *testing.T) {
	tests := []struct {
		name       string
		seed       func(t *testing.T, mem *repository.Memory, appID uint)
		wantReason string
	}{
		{
			name: "malformed flag key",
			seed: func(t *testing.T, mem *repository.Memory, appID uint) {
				createFlag(t, mem, &domain.Flag{
					AppID: appID, Key: "Bad-Key", Type: domain.TypeBool,
					Defaults: boolDefaults(false, false, false),
				})
			},
			wantReason: "lowercase",
		},
		{
			name: "cohort referencing cohort",
			seed: func(t *testing.T, mem *repository.Memory, appID uint) {
				createCohort(t, mem, &domain.Cohort{
					AppID: appID, Key: "insiders", Name: "Insiders",
					Conditions: domain.ConditionList{
						{Attribute: "cohort", Operator: "in", Values: []string{"beta_testers"}},
					},
				})
			},
			wantReason: "must not reference other cohorts",
		},
		{
			name: "test split does not sum to 100",
			seed: func(t *testing.T, mem *repository.Memory, appID uint) {
				createExperiment(t, mem, &domain.Experiment{
					AppID: appID, Key: "lopsided_test", Name: "Lopsided",
					Kind: domain.KindTest, Salt: "s1",
					Variants: domain.TestVariantMap{
						"control":   {Percentage: 50},
						"treatment": {Percentage: 40},
					},
				})
			},
			wantReason: "sums to 90",
		},
		{
			name: "test arm percentage out of range",
			seed: func(t *testing.T, mem *repository.Memory, appID uint) {
				createExperiment(t, mem, &domain.Experiment{
					AppID: appID, Key: "overweight_test", Name: "Overweight",
					Kind: domain.KindTest, Salt: "s1",
					Variants: domain.TestVariantMap{
						"control": {Percentage: 120},
					},
				})
			},
			wantReason: "out of range",
		},
		{
			name: "rollout percentage out of range",
			seed: func(t *testing.T, mem *repository.Memory, appID uint) {
				createExperiment(t, mem, &domain.Experiment{
					AppID: appID, Key: "runaway_rollout", Name: "Runaway",
					Kind: domain.KindRollout, Salt: "s1", Percentage: 150,
				})
			},
			wantReason: "out of range",
		},
		{
			name: "unknown experiment kind",
			seed: func(t *testing.T, mem *repository.Memory, appID uint) {
				createExperiment(t, mem, &domain.Experiment{
					AppID: appID, Key: "odd_experiment", Name: "Odd",
					Kind: domain.ExperimentKind("CANARY"), Salt: "s1",
				})
			},
			wantReason: "unknown kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mem, app := newFixture(t)
			tt.seed(t, mem, app.ID)

			_, err := c.Compile(context.Background(), app)
			var valErr *domain.ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("Compile() error = %v, want ValidationError", err)
			}
			if !strings.Contains(valErr.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want containing %q", valErr.Reason, tt.wantReason)
			}
		})
	}
}

// =============================================================================
// Compile: variant assembly
// =============================================================================

func TestCompile_VariantOrdering(t *testing.T) {
	c, mem, app := newFixture(t)
	ctx := context.Background()

	// Conditional variants authored out of order; the compiled array must
	// come back sorted ascending with experiment variants after them.
	createFlag(t, mem, &domain.Flag{
		AppID:    app.ID,
		Key:      "checkout_button",
		Type:     domain.TypeString,
		Defaults: domain.DefaultsMap{
			domain.EnvDevelopment: json.RawMessage(`"blue"`),
			domain.EnvStaging:     json.RawMessage(`"blue"`),
			domain.EnvProduction:  json.RawMessage(`"blue"`),
		},
		Variants: domain.VariantsMap{
			domain.EnvProduction: []domain.ConditionalVariant{
				{Order: 5, Value: json.RawMessage(`"red"`), Conditions: []domain.Condition{
					{Attribute: "country", Operator: "in", Values: []string{"US"}},
				}},
				{Order: 3, Value: json.RawMessage(`"green"`), Conditions: []domain.Condition{
					{Attribute: "plan", Operator: "in", Values: []string{"pro"}},
				}},
			},
		},
	})
	createExperiment(t, mem, &domain.Experiment{
		AppID: app.ID, Key: "button_test", Name: "Button Test",
		Kind: domain.KindTest, Salt: "s-test",
		FlagKeys: domain.StringList{"checkout_button"},
		Variants: domain.TestVariantMap{
			"control": {Percentage: 50, Values: domain.EnvValueMap{
				domain.EnvProduction: {PerFlag: map[string]json.RawMessage{"checkout_button": json.RawMessage(`"blue"`)}},
			}},
			"treatment": {Percentage: 50, Values: domain.EnvValueMap{
				domain.EnvProduction: {PerFlag: map[string]json.RawMessage{"checkout_button": json.RawMessage(`"orange"`)}},
			}},
		},
	})
	createExperiment(t, mem, &domain.Experiment{
		AppID: app.ID, Key: "button_rollout", Name: "Button Rollout",
		Kind: domain.KindRollout, Salt: "s-roll", Percentage: 10,
		FlagKeys: domain.StringList{"checkout_button"},
		Values: domain.EnvValueMap{
			domain.EnvProduction: {Flat: json.RawMessage(`"purple"`)},
		},
	})

	artifact, err := c.Compile(ctx, app)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	variants := artifact.Flags["checkout_button"].Production.Variants
	if len(variants) != 4 {
		t.Fatalf("got %d variants, want 4: %+v", len(variants), variants)
	}

	wantOrders := []int{3, 5, 15, 25}
	wantTypes := []string{"conditional", "conditional", "test", "rollout"}
	for i, v := range variants {
		if v.Order != wantOrders[i] {
			t.Errorf("variants[%d].Order = %d, want %d", i, v.Order, wantOrders[i])
		}
		if v.Type != wantTypes[i] {
			t.Errorf("variants[%d].Type = %q, want %q", i, v.Type, wantTypes[i])
		}
	}

	testVariant := variants[2]
	if testVariant.Test != "button_test" {
		t.Errorf("test variant references %q, want %q", testVariant.Test, "button_test")
	}
	var arms map[string]json.RawMessage
	if err := json.Unmarshal(testVariant.Value, &arms); err != nil {
		t.Fatalf("test variant value is not an object: %v", err)
	}
	if string(arms["control"]) != `"blue"` || string(arms["treatment"]) != `"orange"` {
		t.Errorf("test variant arms = %v", arms)
	}

	rolloutVariant := variants[3]
	if rolloutVariant.Rollout != "button_rollout" {
		t.Errorf("rollout variant references %q, want %q", rolloutVariant.Rollout, "button_rollout")
	}
	if rolloutVariant.Percentage != 10 {
		t.Errorf("rollout variant percentage = %d, want 10", rolloutVariant.Percentage)
	}
	if string(rolloutVariant.Value) != `"purple"` {
		t.Errorf("rollout variant value = %s", rolloutVariant.Value)
	}

	// The experiment only defined production values, so the other
	// environments keep just their conditional variants (none here).
	if n := len(artifact.Flags["checkout_button"].Development.Variants); n != 0 {
		t.Errorf("development has %d variants, want 0", n)
	}
	if n := len(artifact.Flags["checkout_button"].Staging.Variants); n != 0 {
		t.Errorf("staging has %d variants, want 0", n)
	}
}

func TestCompile_UnresolvableExperimentValueSkipped(t *testing.T) {
	c, mem, app := newFixture(t)
	ctx := context.Background()

	createFlag(t, mem, &domain.Flag{
		AppID: app.ID, Key: "promo_banner", Type: domain.TypeBool,
		Defaults: boolDefaults(false, false, false),
	})
	// Targets promo_banner but only carries a per-flag value for a
	// different key, so nothing resolves. The rollout still appears in the
	// artifact's rollout table; it just contributes no variant.
	createExperiment(t, mem, &domain.Experiment{
		AppID: app.ID, Key: "promo_rollout", Name: "Promo Rollout",
		Kind: domain.KindRollout, Salt: "s1", Percentage: 50,
		FlagKeys: domain.StringList{"promo_banner"},
		Values: domain.EnvValueMap{
			domain.EnvProduction: {PerFlag: map[string]json.RawMessage{
				"some_other_flag": json.RawMessage(`true`),
			}},
		},
	})

	artifact, err := c.Compile(ctx, app)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if n := len(artifact.Flags["promo_banner"].Production.Variants); n != 0 {
		t.Errorf("production has %d variants, want 0", n)
	}
	if _, ok := artifact.Rollouts["promo_rollout"]; !ok {
		t.Error("rollout missing from artifact rollout table")
	}
}

func TestCompile_NullExperimentValueSkipped(t *testing.T) {
	c, mem, app := newFixture(t)
	ctx := context.Background()

	createFlag(t, mem, &domain.Flag{
		AppID: app.ID, Key: "promo_banner", Type: domain.TypeBool,
		Defaults: boolDefaults(false, false, false),
	})
	createExperiment(t, mem, &domain.Experiment{
		AppID: app.ID, Key: "promo_rollout", Name: "Promo Rollout",
		Kind: domain.KindRollout, Salt: "s1", Percentage: 50,
		FlagKeys: domain.StringList{"promo_banner"},
		Values: domain.EnvValueMap{
			domain.EnvProduction: {PerFlag: map[string]json.RawMessage{
				"promo_banner": json.RawMessage(`null`),
			}},
		},
	})

	artifact, err := c.Compile(ctx, app)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if n := len(artifact.Flags["promo_banner"].Production.Variants); n != 0 {
		t.Errorf("null value produced %d variants, want 0", n)
	}
}

func TestCompile_ZeroPercentRolloutKeepsPercentageOnWire(t *testing.T) {
	c, mem, app := newFixture(t)
	ctx := context.Background()

	createFlag(t, mem, &domain.Flag{
		AppID: app.ID, Key: "promo_banner", Type: domain.TypeBool,
		Defaults: boolDefaults(false, false, false),
	})
	createExperiment(t, mem, &domain.Experiment{
		AppID: app.ID, Key: "promo_rollout", Name: "Promo Rollout",
		Kind: domain.KindRollout, Salt: "s1", Percentage: 0,
		FlagKeys: domain.StringList{"promo_banner"},
		Values: domain.EnvValueMap{
			domain.EnvProduction: {Flat: json.RawMessage(`true`)},
		},
	})

	artifact, err := c.Compile(ctx, app)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	variants := artifact.Flags["promo_banner"].Production.Variants
	if len(variants) != 1 {
		t.Fatalf("got %d variants, want 1", len(variants))
	}
	// A paused rollout still serializes its percentage, matching the
	// top-level rollouts table so SDK parsers see one variant shape.
	raw, err := json.Marshal(variants[0])
	if err != nil {
		t.Fatalf("marshal variant: %v", err)
	}
	if !strings.Contains(string(raw), `"percentage":0`) {
		t.Errorf("variant JSON = %s, want explicit percentage field", raw)
	}
}

// =============================================================================
// Compile: golden artifact
// =============================================================================

func TestCompile_GoldenArtifact(t *testing.T) {
	c, mem, app := newFixture(t)
	ctx := context.Background()

	createCohort(t, mem, &domain.Cohort{
		AppID: app.ID, Key: "beta_testers", Name: "Beta Testers",
		Conditions: domain.ConditionList{
			{Attribute: "email", Operator: "ends_with", Values: []string{"@example.com"}},
		},
	})
	createFlag(t, mem, &domain.Flag{
		AppID:       app.ID,
		Key:         "new_pricing",
		Type:        domain.TypeBool,
		Description: "Enables the new pricing page",
		Defaults:    boolDefaults(true, false, false),
		Variants: domain.VariantsMap{
			domain.EnvProduction: []domain.ConditionalVariant{
				{Order: 1, Value: json.RawMessage(`true`), Conditions: []domain.Condition{
					{Attribute: "cohort", Operator: "in", Values: []string{"beta_testers"}},
				}},
			},
		},
	})
	createExperiment(t, mem, &domain.Experiment{
		AppID: app.ID, Key: "pricing_rollout", Name: "Pricing Rollout",
		Kind: domain.KindRollout, Salt: "s-pricing", Percentage: 25,
		FlagKeys: domain.StringList{"new_pricing"},
		Values: domain.EnvValueMap{
			domain.EnvProduction: {Flat: json.RawMessage(`true`)},
		},
	})

	artifact, err := c.Compile(ctx, app)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	g := goldie.New(t)
	g.AssertJson(t, "artifact", artifact)
}

// =============================================================================
// Helpers
// =============================================================================

func createFlag(t *testing.T, mem *repository.Memory, flag *domain.Flag) {
	t.Helper()
	if err := mem.Flags().Create(context.Background(), flag); err != nil {
		t.Fatalf("create flag %q: %v", flag.Key, err)
	}
}

func createCohort(t *testing.T, mem *repository.Memory, cohort *domain.Cohort) {
	t.Helper()
	if err := mem.Cohorts().Create(context.Background(), cohort); err != nil {
		t.Fatalf("create cohort %q: %v", cohort.Key, err)
	}
}

func createExperiment(t *testing.T, mem *repository.Memory, exp *domain.Experiment) {
	t.Helper()
	if err := mem.Experiments().Create(context.Background(), exp); err != nil {
		t.Fatalf("create experiment %q: %v", exp.Key, err)
	}
}
