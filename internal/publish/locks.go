// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package publish

import "sync"

// appLocks serializes publishes per app identifier. Publishes for
// different apps proceed concurrently; two publishes for the same app
// queue behind one mutex so version allocation and upload never
// interleave. The (app, version) uniqueness constraint on the audit table
// remains the backstop for multi-process deployments this in-process lock
// cannot cover.
type appLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAppLocks() *appLocks {
	return &appLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire returns the mutex for the identifier, creating it on first use.
// Locks are never evicted; the map grows with the number of distinct apps
// published through this process, which is bounded and small.
func (l *appLocks) acquire(identifier string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[identifier]
	if !ok {
		m = &sync.Mutex{}
		l.locks[identifier] = m
	}
	return m
}
