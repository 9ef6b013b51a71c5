// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package baseline

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryStore keeps records in a map. Used by tests and single-process
// comparisons.
//
// Thread Safety: Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Record)}
}

// Get returns a copy of the record for key.
func (m *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.data[key]
	if !ok {
		return nil, ErrBaselineNotFound
	}
	return rec.clone(), nil
}

// Set stores a copy of rec.
func (m *MemoryStore) Set(_ context.Context, key string, rec *Record) error {
	if rec == nil {
		return errors.New("baseline record must not be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := rec.clone()
	touch(stored, m.data[key])
	m.data[key] = stored
	return nil
}

// List returns all keys, sorted.
func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the record for key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; !ok {
		return ErrBaselineNotFound
	}
	delete(m.data, key)
	return nil
}

var _ Store = (*MemoryStore)(nil)
