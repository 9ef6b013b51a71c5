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

	"github.com/dgraph-io/badger/v4"

	benchdb "github.com/AleutianAI/AleutianBench/services/bench/storage/badger"
)

// keyPrefix namespaces baseline keys inside the database.
const keyPrefix = "baseline/"

// BadgerStore keeps records as JSON values in BadgerDB.
//
// Get-then-put in Set runs in one transaction, so CreatedAt survives
// concurrent writers.
//
// Thread Safety: Safe for concurrent use.
type BadgerStore struct {
	db *benchdb.DB
}

// NewBadgerStore wraps an open database. The caller owns db and closes it.
func NewBadgerStore(db *benchdb.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func dbKey(key string) []byte {
	return []byte(keyPrefix + key)
}

func getRecord(txn *badger.Txn, key string) (*Record, error) {
	item, err := txn.Get(dbKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrBaselineNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseline, err)
	}
	return &rec, nil
}

// Get reads the record for key.
func (b *BadgerStore) Get(ctx context.Context, key string) (*Record, error) {
	var rec *Record
	err := b.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, key)
		return err
	})
	return rec, err
}

// Set writes rec under key.
func (b *BadgerStore) Set(ctx context.Context, key string, rec *Record) error {
	if rec == nil {
		return errors.New("baseline record must not be nil")
	}

	return b.db.WithTxn(ctx, func(txn *badger.Txn) error {
		prev, err := getRecord(txn, key)
		if err != nil && !errors.Is(err, ErrBaselineNotFound) && !errors.Is(err, ErrInvalidBaseline) {
			return err
		}

		stored := rec.clone()
		touch(stored, prev)

		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("encode baseline: %w", err)
		}
		return txn.Set(dbKey(key), data)
	})
}

// List returns all stored keys in key order.
func (b *BadgerStore) List(ctx context.Context) ([]string, error) {
	var keys []string
	err := b.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().Key()
			keys = append(keys, string(k[len(keyPrefix):]))
		}
		return nil
	})
	return keys, err
}

// Delete removes the record for key.
func (b *BadgerStore) Delete(ctx context.Context, key string) error {
	return b.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(dbKey(key)); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrBaselineNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(dbKey(key))
	})
}

// Compact runs value log GC on the underlying database.
func (b *BadgerStore) Compact(ctx context.Context) (int, error) {
	return b.db.CollectGarbage(ctx)
}

var (
	_ Store     = (*BadgerStore)(nil)
	_ Compactor = (*BadgerStore)(nil)
)
