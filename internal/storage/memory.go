// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"sync"
)

// MemoryStore is the in-process ArtifactStore used by tests. FailPuts can
// inject transient or permanent failures to exercise the pipeline's retry
// and fail-fast paths.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// failPuts holds errors returned by successive Put calls before the
	// store starts accepting writes again.
	failPuts []error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

var _ ArtifactStore = (*MemoryStore)(nil)

// FailPuts arms errors for the next len(errs) Put calls.
func (s *MemoryStore) FailPuts(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPuts = append(s.failPuts, errs...)
}

func (s *MemoryStore) Put(_ context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failPuts) > 0 {
		err := s.failPuts[0]
		s.failPuts = s.failPuts[1:]
		return err
	}
	s.objects[path] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
