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
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const fileExt = ".json"

// FileStore keeps one JSON file per key in a directory.
//
// Keys are path-escaped so a key containing slashes maps to a single
// file. Files are written to a temporary name and renamed into place.
//
// Thread Safety: Safe for concurrent use within one process.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create baseline directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store directory.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) filePath(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+fileExt)
}

// Get reads and decodes the record for key.
func (f *FileStore) Get(_ context.Context, key string) (*Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.read(key)
}

func (f *FileStore) read(key string) (*Record, error) {
	data, err := os.ReadFile(f.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBaselineNotFound
		}
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseline, err)
	}
	return &rec, nil
}

// Set encodes rec and writes it atomically.
func (f *FileStore) Set(_ context.Context, key string, rec *Record) error {
	if rec == nil {
		return errors.New("baseline record must not be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prev, _ := f.read(key)
	stored := rec.clone()
	touch(stored, prev)

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}

	path := f.filePath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace baseline: %w", err)
	}
	return nil
}

// List returns all stored keys, sorted.
func (f *FileStore) List(_ context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the file for key.
func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.filePath(key))
	if os.IsNotExist(err) {
		return ErrBaselineNotFound
	}
	return err
}

var _ Store = (*FileStore)(nil)
