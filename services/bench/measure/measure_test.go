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
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constantCost returns a routine that advances clock by cost ms per
// iteration.
func constantCost(clock *ManualClock, cost float64) Routine {
	return func(iters uint64) {
		clock.Advance(cost * float64(iters))
	}
}

// -----------------------------------------------------------------------------
// Clock Tests
// -----------------------------------------------------------------------------

func TestManualClock(t *testing.T) {
	var c ManualClock
	assert.Equal(t, 0.0, c.Now())

	c.Advance(1.5)
	c.Advance(-3)
	assert.Equal(t, 1.5, c.Now())
}

func TestMonotonicClock(t *testing.T) {
	c := NewMonotonicClock()
	prev := c.Now()
	for i := 0; i < 1000; i++ {
		now := c.Now()
		require.GreaterOrEqual(t, now, prev)
		prev = now
	}
}

// -----------------------------------------------------------------------------
// Black Box Tests
// -----------------------------------------------------------------------------

func TestBlackBox_ReturnsInput(t *testing.T) {
	assert.Equal(t, 42, BlackBox(42))
	assert.Equal(t, "x", BlackBox("x"))
	s := []int{1, 2}
	assert.Equal(t, s, BlackBox(s))

	type matrix [16]float32
	m := matrix{1, 2, 3}
	assert.Equal(t, m, BlackBox(m))
	assert.Same(t, &s[0], &BlackBox(s)[0], "slices pass through without copying")
}

func TestBind_RunsEveryIteration(t *testing.T) {
	calls := 0
	routine := Bind(func() int {
		calls++
		return calls
	})
	routine(17)
	assert.Equal(t, 17, calls)

	other := 0
	BindNoResult(func() { other++ })(5)
	assert.Equal(t, 5, other)
}

// -----------------------------------------------------------------------------
// Warmup Tests
// -----------------------------------------------------------------------------

func TestWarmup_ConstantCost(t *testing.T) {
	var clock ManualClock
	cal, err := Warmup(&clock, constantCost(&clock, 0.25), 10)
	require.NoError(t, err)

	assert.Equal(t, 0.25, cal.MET)
	assert.Greater(t, cal.ElapsedMs, 10.0)
	// batches 1,2,...,32 total 63 iterations, 15.75ms > 10
	assert.Equal(t, uint64(63), cal.TotalIters)
	assert.Equal(t, 15.75, cal.ElapsedMs)
}

func TestWarmup_DoublingSchedule(t *testing.T) {
	var clock ManualClock
	var batches []uint64
	routine := func(iters uint64) {
		batches = append(batches, iters)
		clock.Advance(float64(iters))
	}

	_, err := Warmup(&clock, routine, 20)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 4, 8, 16}, batches)
}

func TestWarmup_SlowRoutineStopsAfterOneBatch(t *testing.T) {
	var clock ManualClock
	cal, err := Warmup(&clock, constantCost(&clock, 500), 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cal.TotalIters)
	assert.Equal(t, 500.0, cal.MET)
}

func TestWarmup_Errors(t *testing.T) {
	var clock ManualClock

	_, err := Warmup(&clock, constantCost(&clock, 1), 0)
	assert.ErrorIs(t, err, ErrInvalidWarmup)

	_, err = Warmup(&clock, func(uint64) {}, 1)
	assert.ErrorIs(t, err, ErrClockStalled)
}

// -----------------------------------------------------------------------------
// Executor Tests
// -----------------------------------------------------------------------------

func TestExecute_ConstantCost(t *testing.T) {
	var clock ManualClock
	iters := []uint64{5, 10, 15, 20}
	zeroCalls := 0

	m := Execute(&clock, constantCost(&clock, 2), iters, func() { zeroCalls++ })

	assert.Equal(t, []float64{10, 20, 30, 40}, m.Sample.Times)
	assert.Equal(t, []float64{5, 10, 15, 20}, m.Sample.Iters)
	assert.Equal(t, []float64{2, 2, 2, 2}, m.SortedAverages)
	assert.False(t, m.ZeroTime)
	assert.Zero(t, zeroCalls)
}

func TestExecute_PreservesSlotOrderAndSortsAverages(t *testing.T) {
	var clock ManualClock
	costs := []float64{3, 1, 2}
	slot := 0
	routine := func(iters uint64) {
		clock.Advance(costs[slot] * float64(iters))
		slot++
	}

	m := Execute(&clock, routine, []uint64{1, 1, 1}, nil)

	assert.Equal(t, []float64{3, 1, 2}, m.Sample.Times)
	assert.Equal(t, []float64{1, 2, 3}, m.SortedAverages)
	assert.True(t, slices.IsSorted(m.SortedAverages))
}

func TestExecute_ZeroTimeReportedOnce(t *testing.T) {
	var clock ManualClock
	zeroCalls := 0

	m := Execute(&clock, func(uint64) {}, []uint64{1, 2, 3}, func() { zeroCalls++ })

	assert.True(t, m.ZeroTime)
	assert.Equal(t, 1, zeroCalls)
	assert.Len(t, m.Sample.Times, 3, "measurement continues after a zero slot")
}
