// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger opens the embedded BadgerDB used for baseline history.
//
// Baselines are small JSON documents written once per benchmark run, so
// the database is tuned for durability over throughput: synchronous
// writes and one version per key. Value log GC never runs in the
// background, where it would compete with measured code; callers run
// CollectGarbage explicitly after deleting baselines.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for a BadgerDB instance.
type Config struct {
	// Path is the directory for database files.
	// Required unless InMemory is true.
	Path string

	// InMemory keeps all data in RAM. Used by tests and dry runs.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal messages.
	// If nil, internal logging is disabled.
	Logger *slog.Logger

	// GCDiscardRatio is the garbage ratio at which CollectGarbage
	// rewrites a value log file. Must be in (0, 1); 0 selects 0.5.
	GCDiscardRatio float64
}

// DefaultConfig returns the configuration for a persistent store at path.
//
// Description:
//
//	Returns a Config with:
//	- SyncWrites enabled so a saved baseline survives a crash
//	- 50% discard ratio threshold for CollectGarbage
//
// Inputs:
//
//	path - Store directory. Created on open if missing.
//
// Outputs:
//
//	Config - Ready-to-use configuration
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCDiscardRatio: defaultDiscardRatio,
	}
}

const defaultDiscardRatio = 0.5

// InMemoryConfig returns configuration for an in-memory store.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// DB wraps a BadgerDB instance with lifecycle management.
type DB struct {
	*badger.DB

	inMemory     bool
	discardRatio float64
	closeOnce    sync.Once
}

// Open opens a database with the given configuration.
//
// Description:
//
//	Creates the directory of a persistent database if needed and applies
//	the configuration.
//
// Inputs:
//
//	cfg - Database configuration. Path is required unless InMemory.
//
// Outputs:
//
//	*DB - The managed database. Caller must call Close().
//	error - Non-nil if the path is invalid or the database cannot open.
//
// Thread Safety: The returned DB is safe for concurrent use.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	raw, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	ratio := cfg.GCDiscardRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = defaultDiscardRatio
	}
	return &DB{DB: raw, inMemory: cfg.InMemory, discardRatio: ratio}, nil
}

// OpenInMemory opens an in-memory database. Data is lost on Close.
func OpenInMemory() (*DB, error) {
	return Open(InMemoryConfig())
}

// CollectGarbage rewrites value log files until none holds at least the
// configured discard ratio of garbage.
//
// Description:
//
//	Deleted baselines leave stale values behind in the value log. Each
//	pass of RunValueLogGC rewrites at most one file, so passes repeat
//	until badger reports nothing worth rewriting. In-memory databases
//	have no value log and return immediately.
//
// Inputs:
//
//	ctx - Checked before every pass.
//
// Outputs:
//
//	int - Number of value log files rewritten.
//	error - Context or GC failure.
func (d *DB) CollectGarbage(ctx context.Context) (int, error) {
	if d.inMemory {
		return 0, nil
	}
	rewrites := 0
	for {
		if err := ctx.Err(); err != nil {
			return rewrites, fmt.Errorf("context cancelled: %w", err)
		}
		err := d.DB.RunValueLogGC(d.discardRatio)
		switch {
		case errors.Is(err, badger.ErrNoRewrite):
			return rewrites, nil
		case err != nil:
			return rewrites, fmt.Errorf("value log GC: %w", err)
		}
		rewrites++
	}
}

// InMemory returns true if this is an in-memory database.
func (d *DB) InMemory() bool {
	return d.inMemory
}

// Close closes the database.
//
// Safe to call multiple times; only the first call has effect.
func (d *DB) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = d.DB.Close()
	})
	return err
}

// WithTxn executes fn within a read-write transaction.
//
// Description:
//
//	Commits if fn returns nil; discards otherwise.
//
// Inputs:
//
//	ctx - Checked before the transaction starts.
//	fn - Function to execute within the transaction.
//
// Outputs:
//
//	error - Context, fn or commit error.
//
// Thread Safety: Safe for concurrent use.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// WithReadTxn executes fn within a read-only transaction.
//
// Thread Safety: Safe for concurrent use.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}
