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

import "runtime"

// BlackBox returns v unchanged while forcing the compiler to treat it as
// used. Routine results must pass through it so the computation producing
// them is not eliminated. The call is never inlined.
//
//go:noinline
func BlackBox[T any](v T) T {
	runtime.KeepAlive(v)
	return v
}

// Routine runs the code under test iters times.
type Routine func(iters uint64)

// Bind wraps a function returning a value into a Routine. Every result is
// passed through BlackBox.
//
// Example:
//
//	routine := measure.Bind(func() int { return fib(20) })
func Bind[T any](fn func() T) Routine {
	return func(iters uint64) {
		for i := uint64(0); i < iters; i++ {
			BlackBox(fn())
		}
	}
}

// BindNoResult wraps a function with no result into a Routine.
func BindNoResult(fn func()) Routine {
	return func(iters uint64) {
		for i := uint64(0); i < iters; i++ {
			fn()
		}
	}
}
