// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package measure

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWarmup indicates a non-positive warmup duration.
	ErrInvalidWarmup = errors.New("warmup time must be positive")

	// ErrClockStalled indicates the clock never advanced while the
	// routine ran, so warmup could not finish.
	ErrClockStalled = errors.New("clock did not advance during warmup")
)

// maxWarmupBatch bounds the doubling schedule.
const maxWarmupBatch = uint64(1) << 62

// Calibration is the outcome of warmup.
type Calibration struct {
	// MET is the mean execution time per iteration in ms.
	MET float64

	// TotalIters is the number of iterations run during warmup.
	TotalIters uint64

	// ElapsedMs is the accumulated timed duration of warmup.
	ElapsedMs float64
}

// Warmup runs the routine until the accumulated timed duration exceeds
// warmupMs and estimates the per-iteration cost.
//
// Description:
//
//	Runs batches of 1, 2, 4, ... iterations, timing each batch alone and
//	accumulating the elapsed time and iteration count. Stops as soon as
//	the accumulated time is strictly greater than warmupMs. The doubling
//	keeps the cost of clock reads negligible for fast routines while
//	bounding overshoot for slow ones.
//
// Inputs:
//
//	clock - Time source.
//	routine - Code under test.
//	warmupMs - Target warmup duration. Must be positive.
//
// Outputs:
//
//	Calibration - MET = elapsed / iterations, always positive.
//	error - Wraps ErrInvalidWarmup for a non-positive warmupMs, or
//	        ErrClockStalled if the batch size overflows first.
func Warmup(clock Clock, routine Routine, warmupMs float64) (Calibration, error) {
	if !(warmupMs > 0) {
		return Calibration{}, fmt.Errorf("%w: got %vms", ErrInvalidWarmup, warmupMs)
	}

	var (
		elapsed float64
		total   uint64
		batch   uint64 = 1
	)
	for {
		start := clock.Now()
		routine(batch)
		elapsed += clock.Now() - start
		total += batch

		if elapsed > warmupMs {
			break
		}
		if batch >= maxWarmupBatch {
			return Calibration{}, fmt.Errorf("%w: %d iterations in %vms", ErrClockStalled, total, elapsed)
		}
		batch *= 2
	}

	return Calibration{
		MET:        elapsed / float64(total),
		TotalIters: total,
		ElapsedMs:  elapsed,
	}, nil
}
