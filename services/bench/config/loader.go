// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a benchmark configuration file.
//
//	defaults:
//	  warmup_time: 1s
//	  measurement_time: 3s
//	  sampling_mode: flat
//	benchmarks:
//	  sort/quick:
//	    sample_size: 50
//
// Per-benchmark sections only override the keys they name.
type File struct {
	Defaults   Config               `yaml:"defaults"`
	Benchmarks map[string]yaml.Node `yaml:"benchmarks,omitempty"`
}

// Parse decodes a configuration file, starting from Default().
func Parse(data []byte) (*File, error) {
	f := &File{Defaults: Default()}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse benchmark config: %w", err)
	}
	return f, nil
}

// Load reads and parses a configuration file.
//
// A missing path returns a File holding Default() so callers can treat
// the config file as optional.
func Load(path string) (*File, error) {
	if path == "" {
		return &File{Defaults: Default()}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &File{Defaults: Default()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read benchmark config %s: %w", path, err)
	}
	return Parse(data)
}

// For returns the configuration of one benchmark: the defaults overlaid
// with that benchmark's section, if any.
func (f *File) For(name string) (Config, error) {
	cfg := f.Defaults
	node, ok := f.Benchmarks[name]
	if !ok {
		return cfg, nil
	}
	if err := node.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config for %s: %w", name, err)
	}
	return cfg, nil
}

// Names returns the benchmarks with explicit sections, sorted.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Benchmarks))
	for name := range f.Benchmarks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteDefault writes a file holding Default() to path, creating parent
// directories as needed.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(&File{Defaults: Default()})
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
