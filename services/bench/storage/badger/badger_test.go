// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpenInMemory verifies in-memory database creation works.
func TestOpenInMemory(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, db.InMemory())

	ctx := context.Background()
	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("base/sort"), []byte("{}"))
	})
	require.NoError(t, err)

	err = db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("base/sort"))
		require.NoError(t, err)
		return item.Value(func(val []byte) error {
			assert.Equal(t, []byte("{}"), val)
			return nil
		})
	})
	require.NoError(t, err)
}

// TestOpen_Persistent verifies data survives a reopen.
func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(DefaultConfig(dir))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	}))
	require.NoError(t, db.Close())

	db2, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer db2.Close()

	err = db2.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("k"))
		require.NoError(t, err)
		val, err := item.ValueCopy(nil)
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), val)
		return nil
	})
	require.NoError(t, err)
}

// TestOpenRequiresPath verifies that persistent mode requires a path.
func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestConfigFunctions(t *testing.T) {
	t.Run("DefaultConfig is durable", func(t *testing.T) {
		cfg := DefaultConfig("/tmp/x")
		assert.Equal(t, "/tmp/x", cfg.Path)
		assert.True(t, cfg.SyncWrites)
		assert.False(t, cfg.InMemory)
		assert.Equal(t, 0.5, cfg.GCDiscardRatio)
	})

	t.Run("InMemoryConfig", func(t *testing.T) {
		cfg := InMemoryConfig()
		assert.True(t, cfg.InMemory)
		assert.Empty(t, cfg.Path)
	})
}

func TestDB_WithTxn_ContextCancelled(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("key"), []byte("value"))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")

	err = db.WithReadTxn(ctx, func(*badger.Txn) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDB_WithTxn_RollbackOnError(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set([]byte("rollback-key"), []byte("x")); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	err = db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("rollback-key"))
		assert.ErrorIs(t, err, badger.ErrKeyNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestDB_CollectGarbage(t *testing.T) {
	ctx := context.Background()

	t.Run("persistent store after deletes", func(t *testing.T) {
		cfg := DefaultConfig(t.TempDir())
		cfg.SyncWrites = false
		db, err := Open(cfg)
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
			return txn.Set([]byte("baseline:base/a"), []byte(`{"name":"base"}`))
		}))
		require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
			return txn.Delete([]byte("baseline:base/a"))
		}))

		n, err := db.CollectGarbage(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 0)
	})

	t.Run("in-memory is a no-op", func(t *testing.T) {
		db, err := OpenInMemory()
		require.NoError(t, err)
		defer db.Close()

		n, err := db.CollectGarbage(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("cancelled context", func(t *testing.T) {
		db, err := Open(DefaultConfig(t.TempDir()))
		require.NoError(t, err)
		defer db.Close()

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = db.CollectGarbage(cancelled)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("out of range ratio falls back", func(t *testing.T) {
		cfg := DefaultConfig(t.TempDir())
		cfg.GCDiscardRatio = 2
		db, err := Open(cfg)
		require.NoError(t, err)
		defer db.Close()

		assert.Equal(t, 0.5, db.discardRatio)
		_, err = db.CollectGarbage(ctx)
		require.NoError(t, err)
	})
}

func TestDB_CloseTwice(t *testing.T) {
	db, err := Open(DefaultConfig(t.TempDir()))
	require.NoError(t, err)

	require.NoError(t, db.Close())
	// second close is a no-op
	require.NoError(t, db.Close())
}
