// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package suites

import (
	"github.com/AleutianAI/AleutianBench/services/bench/engine"
	"github.com/AleutianAI/AleutianBench/services/bench/measure"
)

// FactorialInput is the argument used by both factorial benchmarks.
// 20! is the largest factorial that fits in a uint64.
const FactorialInput = 20

// Factorial compares a recursive and an iterative factorial.
func Factorial() Suite {
	return Suite{
		Name: "factorial",
		Benchmarks: []engine.Benchmark{
			engine.Func("recursive", func() uint64 {
				return RecursiveFactorial(measure.BlackBox(uint64(FactorialInput)))
			}),
			engine.Func("loop", func() uint64 {
				return LoopFactorial(measure.BlackBox(uint64(FactorialInput)))
			}),
		},
	}
}

// RecursiveFactorial returns n! by recursion.
func RecursiveFactorial(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	return n * RecursiveFactorial(n-1)
}

// LoopFactorial returns n! with a loop.
func LoopFactorial(n uint64) uint64 {
	r := uint64(1)
	for ; n > 1; n-- {
		r *= n
	}
	return r
}
