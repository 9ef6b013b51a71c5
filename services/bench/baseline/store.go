// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package baseline persists benchmark runs for later comparison.
//
// # Keys
//
// A baseline is addressed by a baseline name (for example "base" or
// "before-refactor") and a benchmark name. Key joins them with a slash;
// stores treat the key as opaque.
//
// # Degradation
//
// A missing, corrupt or incompatible baseline never fails a run. Load
// reports why the baseline was unusable and the caller continues with no
// comparison.
//
// # Encoding
//
// Records are JSON. Go's float encoding is the shortest representation
// that parses back to the same bits, so a saved sample reloads exactly.
package baseline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianBench/services/bench"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrBaselineNotFound indicates no baseline exists for the key.
	ErrBaselineNotFound = errors.New("baseline not found")

	// ErrInvalidBaseline indicates the stored data is corrupted.
	ErrInvalidBaseline = errors.New("invalid baseline data")

	// ErrSampleSizeMismatch indicates a baseline recorded with a different
	// sample size than the current run.
	ErrSampleSizeMismatch = errors.New("baseline sample size mismatch")
)

// DefaultName is the baseline name used when none is given.
const DefaultName = "base"

// -----------------------------------------------------------------------------
// Store Interface
// -----------------------------------------------------------------------------

// Store persists baseline records.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the record for key.
	// Returns ErrBaselineNotFound if no record exists.
	Get(ctx context.Context, key string) (*Record, error)

	// Set stores rec under key, replacing any previous record.
	Set(ctx context.Context, key string, rec *Record) error

	// List returns all stored keys.
	List(ctx context.Context) ([]string, error)

	// Delete removes the record for key.
	// Returns ErrBaselineNotFound if no record exists.
	Delete(ctx context.Context, key string) error
}

// Compactor is implemented by stores that keep deleted records on disk
// until they are compacted.
type Compactor interface {
	// Compact reclaims the space of deleted records and returns the
	// number of storage files rewritten.
	Compact(ctx context.Context) (int, error)
}

// Key returns the store key of a benchmark under a baseline name.
func Key(name, benchmark string) string {
	if name == "" {
		name = DefaultName
	}
	return name + "/" + benchmark
}

// -----------------------------------------------------------------------------
// Record
// -----------------------------------------------------------------------------

// Record is one saved benchmark run.
type Record struct {
	// Name is the baseline name the run was saved under.
	Name string `json:"name"`

	// Benchmark is the benchmark identifier.
	Benchmark string `json:"benchmark"`

	// RunID identifies the run that produced this record.
	RunID string `json:"run_id"`

	// CreatedAt is when the key was first written.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the key was last written.
	UpdatedAt time.Time `json:"updated_at"`

	// SampleSize is the number of slots in Sample.
	SampleSize int `json:"sample_size"`

	// Sample is the raw measurement in slot order.
	Sample bench.RawSample `json:"sample"`

	// Estimates are the statistics computed from Sample.
	Estimates bench.Estimates `json:"estimates"`
}

// NewRecord builds a record from a completed run.
//
// The run ID of the result is reused; a result without one gets a fresh
// UUID.
func NewRecord(name string, result *bench.Result) *Record {
	runID := result.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	if name == "" {
		name = DefaultName
	}
	return &Record{
		Name:       name,
		Benchmark:  result.Name,
		RunID:      runID,
		SampleSize: result.Sample.Len(),
		Sample:     result.Sample.Clone(),
		Estimates:  cloneEstimates(result.Estimates),
	}
}

// Validate checks the structural invariants of a record.
func (r *Record) Validate() error {
	if err := r.Sample.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBaseline, err)
	}
	if r.SampleSize != r.Sample.Len() {
		return fmt.Errorf("%w: sample_size %d but %d slots", ErrInvalidBaseline, r.SampleSize, r.Sample.Len())
	}
	return nil
}

// Baseline converts the record to the comparison form.
func (r *Record) Baseline() *bench.Baseline {
	return &bench.Baseline{
		Sample:    r.Sample.Clone(),
		Estimates: cloneEstimates(r.Estimates),
	}
}

// clone returns a deep copy of the record.
func (r *Record) clone() *Record {
	c := *r
	c.Sample = r.Sample.Clone()
	c.Estimates = cloneEstimates(r.Estimates)
	return &c
}

func cloneEstimates(e bench.Estimates) bench.Estimates {
	if e.Slope != nil {
		slope := *e.Slope
		e.Slope = &slope
	}
	return e
}

// touch stamps UpdatedAt and, for new keys, CreatedAt.
func touch(rec *Record, prev *Record) {
	rec.UpdatedAt = time.Now().UTC()
	switch {
	case prev != nil && !prev.CreatedAt.IsZero():
		rec.CreatedAt = prev.CreatedAt
	case rec.CreatedAt.IsZero():
		rec.CreatedAt = rec.UpdatedAt
	}
}

// -----------------------------------------------------------------------------
// Load and Save
// -----------------------------------------------------------------------------

// Load fetches the baseline for key and checks it against the run.
//
// Description:
//
//	Returns (nil, nil) when no baseline exists. Any other failure returns
//	a nil baseline with the reason: a store error, a record that fails
//	validation, or a sample size different from sampleSize. Callers treat
//	every error as "no baseline" and surface it as a warning.
//
// Inputs:
//
//	ctx - Context for the store call.
//	store - Baseline store. nil behaves as an empty store.
//	key - Store key from Key().
//	sampleSize - Sample size of the current run.
//
// Outputs:
//
//	*bench.Baseline - The baseline, or nil.
//	error - Why an existing baseline could not be used.
func Load(ctx context.Context, store Store, key string, sampleSize int) (*bench.Baseline, error) {
	if store == nil {
		return nil, nil
	}

	rec, err := store.Get(ctx, key)
	if errors.Is(err, ErrBaselineNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load baseline %s: %w", key, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("load baseline %s: %w", key, err)
	}
	if rec.SampleSize != sampleSize {
		return nil, fmt.Errorf("%w: baseline %s has %d samples, run has %d",
			ErrSampleSizeMismatch, key, rec.SampleSize, sampleSize)
	}
	return rec.Baseline(), nil
}

// Save writes a completed run under a baseline name.
func Save(ctx context.Context, store Store, name string, result *bench.Result) error {
	if store == nil {
		return nil
	}
	rec := NewRecord(name, result)
	if err := store.Set(ctx, Key(rec.Name, rec.Benchmark), rec); err != nil {
		return fmt.Errorf("save baseline %s: %w", Key(rec.Name, rec.Benchmark), err)
	}
	return nil
}
