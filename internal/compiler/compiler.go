// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compiler turns an app's live entities into a configuration
// artifact. Compilation is a pure read-and-transform: it has no side
// effects, and it either produces a complete artifact or fails — never a
// partial one.
package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/AleutianAI/flagforge/internal/domain"
	"github.com/AleutianAI/flagforge/internal/repository"
)

// experimentOrderStep is the gap experiment variants are appended above
// the current maximum order, leaving room for later manual reordering.
const experimentOrderStep = 10

// Compiler reads an app's non-archived flags, all cohorts, and
// non-archived experiments and produces an Artifact.
//
// The produced artifact has ConfigVersion and PublishedAt unset; the
// publish pipeline stamps them after version allocation.
type Compiler struct {
	flags       repository.FlagRepository
	cohorts     repository.CohortRepository
	experiments repository.ExperimentRepository
	logger      *slog.Logger
}

// New creates a Compiler over the given repositories.
func New(
	flags repository.FlagRepository,
	cohorts repository.CohortRepository,
	experiments repository.ExperimentRepository,
	logger *slog.Logger,
) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{
		flags:       flags,
		cohorts:     cohorts,
		experiments: experiments,
		logger:      logger,
	}
}

// Compile builds the artifact for an app.
//
// Failure modes:
//
//   - *domain.MigrationRequiredError when any flag's per-environment
//     default set is incomplete (names the flag and the missing
//     environments; nothing is silently defaulted)
//   - *domain.ValidationError for malformed keys, nested cohort
//     references, out-of-range percentages, or TEST traffic splits that
//     do not sum to 100
//
// An experiment value whose legacy shape cannot be resolved for a
// flag/environment combination contributes no variant there; that skip is
// logged as a warning, not treated as an error.
func (c *Compiler) Compile(ctx context.Context, app *domain.App) (*domain.Artifact, error) {
	flags, err := c.flags.ListActive(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}
	cohorts, err := c.cohorts.List(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("load cohorts: %w", err)
	}
	experiments, err := c.experiments.ListActive(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("load experiments: %w", err)
	}

	if err := c.validate(flags, cohorts, experiments); err != nil {
		return nil, err
	}

	artifact := domain.EmptyArtifact(app.Identifier)

	for _, cohort := range cohorts {
		artifact.Cohorts[cohort.Key] = domain.CohortConfig{
			Name:        cohort.Name,
			Description: cohort.Description,
			Conditions:  conditionsOrEmpty(cohort.Conditions),
		}
	}

	tests, rollouts := splitExperiments(experiments)
	for _, exp := range tests {
		splits := make(map[string]domain.TestSplitInfo, len(exp.Variants))
		for name, variant := range exp.Variants {
			splits[name] = domain.TestSplitInfo{Percentage: variant.Percentage}
		}
		artifact.Tests[exp.Key] = domain.TestConfig{
			Name:       exp.Name,
			Salt:       exp.Salt,
			Conditions: exp.Conditions,
			Variants:   splits,
		}
	}
	for _, exp := range rollouts {
		artifact.Rollouts[exp.Key] = domain.RolloutConfig{
			Name:       exp.Name,
			Salt:       exp.Salt,
			Percentage: exp.Percentage,
			Conditions: exp.Conditions,
		}
	}

	for _, flag := range flags {
		if missing := flag.MissingDefaults(); len(missing) > 0 {
			return nil, &domain.MigrationRequiredError{FlagKey: flag.Key, Missing: missing}
		}
		cfg := domain.FlagConfig{
			Type:        flag.Type,
			Description: flag.Description,
		}
		for _, env := range domain.Environments() {
			envCfg := domain.EnvConfig{
				Default:  flag.Defaults[env],
				Variants: c.buildVariants(flag, env, tests, rollouts),
			}
			switch env {
			case domain.EnvDevelopment:
				cfg.Development = envCfg
			case domain.EnvStaging:
				cfg.Staging = envCfg
			case domain.EnvProduction:
				cfg.Production = envCfg
			}
		}
		artifact.Flags[flag.Key] = cfg
	}

	return artifact, nil
}

// buildVariants assembles one flag's variant array for one environment:
// the flag's own conditional variants with their authored orders, then one
// appended variant per targeting TEST and ROLLOUT experiment that resolves
// a non-null value for this environment. Each appended variant takes
// order = max(existing orders, 0) + 10, so experiment variants always sort
// after author overrides and after each other in append order. The final
// array is sorted ascending by order; the sort is stable, so equal orders
// keep insertion order.
func (c *Compiler) buildVariants(
	flag domain.Flag,
	env domain.Environment,
	tests, rollouts []domain.Experiment,
) []domain.Variant {
	variants := make([]domain.Variant, 0, len(flag.Variants[env]))

	for _, cv := range flag.Variants[env] {
		variants = append(variants, domain.Variant{
			Type:       "conditional",
			Order:      cv.Order,
			Value:      cv.Value,
			Conditions: cv.Conditions,
		})
	}

	for _, exp := range tests {
		if !exp.Targets(flag.Key) {
			continue
		}
		value, ok := c.resolveTestValue(exp, env, flag.Key)
		if !ok {
			continue
		}
		variants = append(variants, domain.Variant{
			Type:  "test",
			Order: maxOrder(variants) + experimentOrderStep,
			Test:  exp.Key,
			Value: value,
		})
	}

	for _, exp := range rollouts {
		if !exp.Targets(flag.Key) {
			continue
		}
		envValue, defined := exp.Values[env]
		if !defined || envValue.IsZero() {
			continue
		}
		value, ok := envValue.Resolve(flag.Key)
		if !ok {
			c.logger.Warn("rollout defines no resolvable value, skipping",
				"rollout", exp.Key, "flag", flag.Key, "environment", env)
			continue
		}
		variants = append(variants, domain.Variant{
			Type:       "rollout",
			Order:      maxOrder(variants) + experimentOrderStep,
			Rollout:    exp.Key,
			Value:      value,
			Percentage: exp.Percentage,
		})
	}

	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Order < variants[j].Order
	})
	return variants
}

// resolveTestValue resolves a TEST experiment's contribution for one
// flag/environment: an object of variant-name → resolved value, covering
// every arm that defines a non-null value there. Returns ok=false when no
// arm resolves, in which case the experiment contributes no variant for
// that combination.
func (c *Compiler) resolveTestValue(
	exp domain.Experiment,
	env domain.Environment,
	flagKey string,
) (json.RawMessage, bool) {
	resolved := make(map[string]json.RawMessage)
	for name, arm := range exp.Variants {
		envValue, defined := arm.Values[env]
		if !defined || envValue.IsZero() {
			continue
		}
		if v, ok := envValue.Resolve(flagKey); ok {
			resolved[name] = v
		}
	}
	if len(resolved) == 0 {
		return nil, false
	}
	value, err := json.Marshal(resolved)
	if err != nil {
		c.logger.Warn("failed to encode test variant values, skipping",
			"test", exp.Key, "flag", flagKey, "environment", env, "error", err)
		return nil, false
	}
	return value, true
}

// validate re-checks every key format and experiment shape at compile
// time; any violation fails the whole compile.
func (c *Compiler) validate(
	flags []domain.Flag,
	cohorts []domain.Cohort,
	experiments []domain.Experiment,
) error {
	for _, flag := range flags {
		if err := domain.ValidateKey("flag", flag.Key); err != nil {
			return err
		}
	}
	for _, cohort := range cohorts {
		if err := domain.ValidateKey("cohort", cohort.Key); err != nil {
			return err
		}
		// Cohorts are pure condition groups; one referencing another is a
		// schema violation, not a supported composition.
		for _, cond := range cohort.Conditions {
			if cond.Attribute == "cohort" {
				return &domain.ValidationError{
					Entity: "cohort",
					Key:    cohort.Key,
					Reason: "cohorts must not reference other cohorts",
				}
			}
		}
	}
	for _, exp := range experiments {
		if err := domain.ValidateKey("experiment", exp.Key); err != nil {
			return err
		}
		switch exp.Kind {
		case domain.KindTest:
			total := 0
			for name, variant := range exp.Variants {
				if variant.Percentage < 0 || variant.Percentage > 100 {
					return &domain.ValidationError{
						Entity: "experiment",
						Key:    exp.Key,
						Reason: fmt.Sprintf("variant %q percentage %d out of range", name, variant.Percentage),
					}
				}
				total += variant.Percentage
			}
			if total != 100 {
				return &domain.ValidationError{
					Entity: "experiment",
					Key:    exp.Key,
					Reason: fmt.Sprintf("traffic split sums to %d, must sum to 100", total),
				}
			}
		case domain.KindRollout:
			if exp.Percentage < 0 || exp.Percentage > 100 {
				return &domain.ValidationError{
					Entity: "experiment",
					Key:    exp.Key,
					Reason: fmt.Sprintf("percentage %d out of range", exp.Percentage),
				}
			}
		default:
			return &domain.ValidationError{
				Entity: "experiment",
				Key:    exp.Key,
				Reason: fmt.Sprintf("unknown kind %q", exp.Kind),
			}
		}
	}
	return nil
}

// splitExperiments partitions experiments by kind, preserving order.
func splitExperiments(experiments []domain.Experiment) (tests, rollouts []domain.Experiment) {
	for _, exp := range experiments {
		switch exp.Kind {
		case domain.KindTest:
			tests = append(tests, exp)
		case domain.KindRollout:
			rollouts = append(rollouts, exp)
		}
	}
	return tests, rollouts
}

// maxOrder returns the highest order in the array, floored at zero.
func maxOrder(variants []domain.Variant) int {
	max := 0
	for _, v := range variants {
		if v.Order > max {
			max = v.Order
		}
	}
	return max
}

// conditionsOrEmpty normalizes nil condition lists to empty slices so the
// wire artifact always carries an array.
func conditionsOrEmpty(conditions []domain.Condition) []domain.Condition {
	if conditions == nil {
		return []domain.Condition{}
	}
	return conditions
}
