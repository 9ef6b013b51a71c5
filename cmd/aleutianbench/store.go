// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/AleutianAI/AleutianBench/services/bench/baseline"
	benchdb "github.com/AleutianAI/AleutianBench/services/bench/storage/badger"
)

const (
	storeFile   = "file"
	storeBadger = "badger"
	storeMemory = "memory"
	storeNone   = "none"

	defaultStoreDir = ".aleutianbench"
)

// openStore opens the baseline store selected by kind.
//
// Inputs:
//   - kind: One of file, badger, memory or none.
//   - dir: Root directory for the persistent stores.
//   - logger: Receives badger's internal messages.
//
// Outputs:
//   - baseline.Store: nil for kind "none".
//   - func() error: Releases the store. Never nil.
//   - error: Unknown kind or open failure.
func openStore(kind, dir string, logger *slog.Logger) (baseline.Store, func() error, error) {
	noop := func() error { return nil }

	switch kind {
	case storeFile, "":
		fs, err := baseline.NewFileStore(filepath.Join(dir, "baselines"))
		if err != nil {
			return nil, noop, err
		}
		return fs, noop, nil

	case storeBadger:
		cfg := benchdb.DefaultConfig(filepath.Join(dir, "badger"))
		cfg.Logger = logger
		db, err := benchdb.Open(cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("open badger store: %w", err)
		}
		return baseline.NewBadgerStore(db), db.Close, nil

	case storeMemory:
		return baseline.NewMemoryStore(), noop, nil

	case storeNone:
		return nil, noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown store %q (want %s, %s, %s or %s)",
			kind, storeFile, storeBadger, storeMemory, storeNone)
	}
}
