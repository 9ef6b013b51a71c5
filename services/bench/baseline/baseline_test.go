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
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBench/services/bench"
	benchdb "github.com/AleutianAI/AleutianBench/services/bench/storage/badger"
)

// storeFactories returns one constructor per Store implementation.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file": func() Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"badger": func() Store {
			db, err := benchdb.OpenInMemory()
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })
			return NewBadgerStore(db)
		},
	}
}

// awkwardResult carries values whose decimal forms do not terminate.
func awkwardResult() *bench.Result {
	slope := bench.Estimate{
		Point:         1.0 / 3.0,
		StandardError: math.Nextafter(0.01, 1),
		Interval:      bench.ConfidenceInterval{Lower: 0.1 + 0.2, Upper: math.Pi / 7, Level: 0.95},
	}
	return &bench.Result{
		Name:  "fib/recursive",
		RunID: "run-1",
		Sample: bench.RawSample{
			Times: []float64{0.1 + 0.2, 1.0 / 3.0, 2.0 / 3.0, math.SmallestNonzeroFloat64, 1e300, 12345.678901234567},
			Iters: []float64{1, 2, 3, 4, 5, 6},
		},
		Estimates: bench.Estimates{
			Mean:   bench.Estimate{Point: math.E, StandardError: 1e-17, Interval: bench.ConfidenceInterval{Lower: 2.7, Upper: 2.8, Level: 0.95}},
			Median: bench.Estimate{Point: math.Sqrt2},
			StdDev: bench.Estimate{Point: 0.7000000000000001},
			MAD:    bench.Estimate{Point: 1.4826},
			Slope:  &slope,
		},
	}
}

func TestStores_RoundTripIsExact(t *testing.T) {
	ctx := context.Background()

	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			result := awkwardResult()

			require.NoError(t, Save(ctx, store, "base", result))

			rec, err := store.Get(ctx, Key("base", result.Name))
			require.NoError(t, err)

			require.Len(t, rec.Sample.Times, len(result.Sample.Times))
			for i := range result.Sample.Times {
				assert.Equal(t, math.Float64bits(result.Sample.Times[i]), math.Float64bits(rec.Sample.Times[i]), "times[%d]", i)
				assert.Equal(t, math.Float64bits(result.Sample.Iters[i]), math.Float64bits(rec.Sample.Iters[i]), "iters[%d]", i)
			}
			assert.Equal(t, result.Estimates, rec.Estimates)
			assert.Equal(t, "base", rec.Name)
			assert.Equal(t, "fib/recursive", rec.Benchmark)
			assert.Equal(t, "run-1", rec.RunID)
			assert.Equal(t, 6, rec.SampleSize)
			assert.False(t, rec.CreatedAt.IsZero())
		})
	}
}

func TestStores_CRUD(t *testing.T) {
	ctx := context.Background()

	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()

			_, err := store.Get(ctx, "base/missing")
			assert.ErrorIs(t, err, ErrBaselineNotFound)
			assert.ErrorIs(t, store.Delete(ctx, "base/missing"), ErrBaselineNotFound)

			first := NewRecord("base", awkwardResult())
			require.NoError(t, store.Set(ctx, "base/a", first))
			require.NoError(t, store.Set(ctx, "other/b", first))

			got, err := store.Get(ctx, "base/a")
			require.NoError(t, err)
			created := got.CreatedAt

			require.NoError(t, store.Set(ctx, "base/a", first))
			got, err = store.Get(ctx, "base/a")
			require.NoError(t, err)
			assert.True(t, got.CreatedAt.Equal(created), "CreatedAt survives overwrite")
			assert.False(t, got.UpdatedAt.Before(created))

			keys, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"base/a", "other/b"}, keys)

			require.NoError(t, store.Delete(ctx, "base/a"))
			keys, err = store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"other/b"}, keys)

			assert.Error(t, store.Set(ctx, "x", nil))
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec := NewRecord("base", awkwardResult())
	require.NoError(t, store.Set(ctx, "k", rec))
	rec.Sample.Times[0] = -1

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.NotEqual(t, -1.0, got.Sample.Times[0])

	got.Estimates.Slope.Point = -1
	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.NotEqual(t, -1.0, again.Estimates.Slope.Point)
}

func TestBadgerStore_CompactAfterDelete(t *testing.T) {
	ctx := context.Background()
	db, err := benchdb.Open(benchdb.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := NewBadgerStore(db)

	require.NoError(t, store.Set(ctx, "base/a", NewRecord("base", awkwardResult())))
	require.NoError(t, store.Delete(ctx, "base/a"))

	_, err = store.Compact(ctx)
	require.NoError(t, err)

	_, err = store.Get(ctx, "base/a")
	assert.ErrorIs(t, err, ErrBaselineNotFound)
}

func TestFileStore_CorruptFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "base%2Fbroken.json"), []byte("{not json"), 0644))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"base/broken"}, keys)

	_, err = store.Get(ctx, "base/broken")
	assert.ErrorIs(t, err, ErrInvalidBaseline)

	b, err := Load(ctx, store, "base/broken", 6)
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrInvalidBaseline)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "base/sort", Key("", "sort"))
	assert.Equal(t, "nightly/group/sort", Key("nightly", "group/sort"))
}

func TestNewRecord_GeneratesRunID(t *testing.T) {
	result := awkwardResult()
	result.RunID = ""

	rec := NewRecord("", result)
	assert.Equal(t, DefaultName, rec.Name)
	assert.Len(t, rec.RunID, 36)
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Record) {}},
		{name: "size disagrees", mutate: func(r *Record) { r.SampleSize = 3 }, wantErr: true},
		{name: "lengths differ", mutate: func(r *Record) { r.Sample.Iters = r.Sample.Iters[:2] }, wantErr: true},
		{name: "zero iterations", mutate: func(r *Record) { r.Sample.Iters[0] = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord("base", awkwardResult())
			tt.mutate(rec)
			err := rec.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBaseline)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	result := awkwardResult()
	require.NoError(t, Save(ctx, store, "base", result))
	key := Key("base", result.Name)

	t.Run("present", func(t *testing.T) {
		b, err := Load(ctx, store, key, 6)
		require.NoError(t, err)
		require.NotNil(t, b)
		assert.Equal(t, result.Sample, b.Sample)
		assert.Equal(t, result.Estimates, b.Estimates)
	})

	t.Run("absent is not an error", func(t *testing.T) {
		b, err := Load(ctx, store, "base/none", 6)
		assert.NoError(t, err)
		assert.Nil(t, b)
	})

	t.Run("nil store", func(t *testing.T) {
		b, err := Load(ctx, nil, key, 6)
		assert.NoError(t, err)
		assert.Nil(t, b)
	})

	t.Run("sample size mismatch", func(t *testing.T) {
		b, err := Load(ctx, store, key, 100)
		assert.Nil(t, b)
		assert.ErrorIs(t, err, ErrSampleSizeMismatch)
	})

	t.Run("invalid record", func(t *testing.T) {
		bad := NewRecord("base", result)
		bad.Sample.Iters[0] = -1
		require.NoError(t, store.Set(ctx, "base/bad", bad))

		b, err := Load(ctx, store, "base/bad", 6)
		assert.Nil(t, b)
		assert.ErrorIs(t, err, ErrInvalidBaseline)
	})

	t.Run("nil store save is a no-op", func(t *testing.T) {
		assert.NoError(t, Save(ctx, nil, "base", result))
	})
}
