// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/flagforge/internal/domain"
)

// Memory is a shared in-memory entity store. Per-interface views are
// obtained via Apps(), Flags(), and so on; all views mutate the same state
// under one mutex, which mirrors the transaction boundaries the gorm
// implementations get from the database. Used by unit tests and by the
// pipeline's concurrency tests.
type Memory struct {
	mu      sync.Mutex
	nextID  uint
	apps    []domain.App
	flags   []domain.Flag
	cohorts []domain.Cohort
	exps    []domain.Experiment
	keys    []domain.SigningKey
	records []domain.PublishRecord

	// failAppend makes the next audit append fail, simulating the
	// upload-succeeded-audit-failed inconsistency window.
	failAppend error
}

func NewMemory() *Memory { return &Memory{nextID: 1} }

// FailNextAppend arms a one-shot failure for the next publish-record
// append.
func (m *Memory) FailNextAppend(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAppend = err
}

func (m *Memory) Apps() AppRepository                  { return &memoryApps{m} }
func (m *Memory) Flags() FlagRepository                { return &memoryFlags{m} }
func (m *Memory) Cohorts() CohortRepository            { return &memoryCohorts{m} }
func (m *Memory) Experiments() ExperimentRepository    { return &memoryExperiments{m} }
func (m *Memory) SigningKeys() SigningKeyRepository    { return &memoryKeys{m} }
func (m *Memory) PublishRecords() PublishRecordRepository { return &memoryRecords{m} }

func (m *Memory) allocID() uint {
	id := m.nextID
	m.nextID++
	return id
}

// --- AppRepository ---

type memoryApps struct{ m *Memory }

var _ AppRepository = (*memoryApps)(nil)

func (r *memoryApps) Create(_ context.Context, app *domain.App) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.apps {
		if a.Identifier == app.Identifier {
			return domain.ErrAppExists
		}
	}
	app.ID = m.allocID()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}
	m.apps = append(m.apps, *app)
	return nil
}

func (r *memoryApps) Delete(_ context.Context, id uint) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.apps {
		if a.ID == id {
			m.apps = append(m.apps[:i], m.apps[i+1:]...)
			return nil
		}
	}
	return domain.ErrAppNotFound
}

func (r *memoryApps) FindByIdentifier(_ context.Context, identifier string) (*domain.App, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.apps {
		if a.Identifier == identifier {
			app := a
			return &app, nil
		}
	}
	return nil, domain.ErrAppNotFound
}

func (r *memoryApps) List(_ context.Context) ([]domain.App, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.App(nil), m.apps...)
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

// --- FlagRepository ---

type memoryFlags struct{ m *Memory }

var _ FlagRepository = (*memoryFlags)(nil)

func (r *memoryFlags) ListActive(_ context.Context, appID uint) ([]domain.Flag, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Flag
	for _, f := range m.flags {
		if f.AppID == appID && !f.Archived {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *memoryFlags) Create(_ context.Context, flag *domain.Flag) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	flag.ID = m.allocID()
	m.flags = append(m.flags, *flag)
	return nil
}

// --- CohortRepository ---

type memoryCohorts struct{ m *Memory }

var _ CohortRepository = (*memoryCohorts)(nil)

func (r *memoryCohorts) List(_ context.Context, appID uint) ([]domain.Cohort, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Cohort
	for _, c := range m.cohorts {
		if c.AppID == appID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *memoryCohorts) Create(_ context.Context, cohort *domain.Cohort) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	cohort.ID = m.allocID()
	m.cohorts = append(m.cohorts, *cohort)
	return nil
}

// --- ExperimentRepository ---

type memoryExperiments struct{ m *Memory }

var _ ExperimentRepository = (*memoryExperiments)(nil)

func (r *memoryExperiments) ListActive(_ context.Context, appID uint) ([]domain.Experiment, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Experiment
	for _, e := range m.exps {
		if e.AppID == appID && !e.Archived {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *memoryExperiments) Create(_ context.Context, exp *domain.Experiment) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	exp.ID = m.allocID()
	m.exps = append(m.exps, *exp)
	return nil
}

// --- SigningKeyRepository ---

type memoryKeys struct{ m *Memory }

var _ SigningKeyRepository = (*memoryKeys)(nil)

func (r *memoryKeys) Create(_ context.Context, key *domain.SigningKey) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	key.ID = m.allocID()
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	m.keys = append(m.keys, *key)
	return nil
}

func (r *memoryKeys) ListByApp(_ context.Context, appID uint) ([]domain.SigningKey, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SigningKey
	for _, k := range m.keys {
		if k.AppID == appID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryKeys) FindByKID(_ context.Context, appID uint, kid string) (*domain.SigningKey, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.AppID == appID && k.KID == kid {
			key := k
			return &key, nil
		}
	}
	return nil, domain.ErrKeyNotFound
}

func (r *memoryKeys) FindActive(_ context.Context, appID uint) (*domain.SigningKey, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.AppID == appID && k.Active {
			key := k
			return &key, nil
		}
	}
	return nil, domain.ErrSigningKeyMissing
}

func (r *memoryKeys) Activate(_ context.Context, appID uint, kid string) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	target := -1
	for i, k := range m.keys {
		if k.AppID == appID && k.KID == kid {
			target = i
			break
		}
	}
	if target == -1 {
		return domain.ErrKeyNotFound
	}
	for i := range m.keys {
		if m.keys[i].AppID == appID {
			m.keys[i].Active = false
		}
	}
	m.keys[target].Active = true
	return nil
}

func (r *memoryKeys) Delete(_ context.Context, appID uint, kid string) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, k := range m.keys {
		if k.AppID == appID && k.KID == kid {
			if k.Active {
				return domain.ErrKeyActive
			}
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			return nil
		}
	}
	return domain.ErrKeyNotFound
}

func (r *memoryKeys) Purge(_ context.Context, appID uint, kid string) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, k := range m.keys {
		if k.AppID == appID && k.KID == kid {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			return nil
		}
	}
	return nil
}

// --- PublishRecordRepository ---

type memoryRecords struct{ m *Memory }

var _ PublishRecordRepository = (*memoryRecords)(nil)

func (r *memoryRecords) Append(_ context.Context, rec *domain.PublishRecord) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		err := m.failAppend
		m.failAppend = nil
		return err
	}
	for _, existing := range m.records {
		if existing.AppID == rec.AppID && existing.Version == rec.Version {
			return domain.ErrConflict
		}
	}
	rec.ID = m.allocID()
	m.records = append(m.records, *rec)
	return nil
}

func (r *memoryRecords) ListByApp(_ context.Context, appID uint) ([]domain.PublishRecord, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PublishRecord
	for _, rec := range m.records {
		if rec.AppID == appID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out, nil
}

func (r *memoryRecords) VersionsWithPrefix(_ context.Context, appID uint, prefix string) ([]string, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, rec := range m.records {
		if rec.AppID == appID && strings.HasPrefix(rec.Version, prefix) {
			out = append(out, rec.Version)
		}
	}
	return out, nil
}
