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

	"github.com/AleutianAI/AleutianBench/services/bench"
)

// Measurement is the output of executing a sampling plan.
type Measurement struct {
	// Sample holds slot times and counts in plan order.
	Sample bench.RawSample

	// SortedAverages holds times[i]/iters[i] in ascending order.
	SortedAverages []float64

	// ZeroTime is set when any slot measured no elapsed time.
	ZeroTime bool
}

// Execute runs every slot of a plan and records its elapsed time.
//
// Description:
//
//	For slot i the routine runs iters[i] times between two clock reads.
//	A slot that measures exactly zero elapsed time means the clock is too
//	coarse for the routine; onZero is then called once for the run, after
//	the slot's timing has completed. Result slices are allocated before
//	the first slot.
//
// Inputs:
//
//	clock - Time source.
//	routine - Code under test.
//	iters - Per-slot iteration counts from the plan. Each must be positive.
//	onZero - Optional callback for the first zero-time slot.
//
// Outputs:
//
//	Measurement - Raw sample and sorted per-iteration averages.
func Execute(clock Clock, routine Routine, iters []uint64, onZero func()) Measurement {
	n := len(iters)
	m := Measurement{
		Sample: bench.RawSample{
			Times: make([]float64, n),
			Iters: make([]float64, n),
		},
		SortedAverages: make([]float64, n),
	}

	for i, count := range iters {
		start := clock.Now()
		routine(count)
		elapsed := clock.Now() - start

		m.Sample.Times[i] = elapsed
		m.Sample.Iters[i] = float64(count)

		if elapsed == 0 && !m.ZeroTime {
			m.ZeroTime = true
			if onZero != nil {
				onZero()
			}
		}
	}

	for i := range m.SortedAverages {
		m.SortedAverages[i] = m.Sample.Times[i] / m.Sample.Iters[i]
	}
	slices.Sort(m.SortedAverages)
	return m
}
