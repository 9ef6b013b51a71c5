// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package measure runs routines under a clock: warmup calibration and
// execution of a sampling plan.
//
// Nothing in this package allocates or logs between the two clock reads
// of a timed region.
package measure

import (
	"sync"
	"time"
)

// Clock returns monotonically non-decreasing timestamps in milliseconds.
type Clock interface {
	Now() float64
}

// MonotonicClock reads Go's monotonic clock relative to its creation.
type MonotonicClock struct {
	origin time.Time
}

// NewMonotonicClock creates a clock whose zero is the time of the call.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{origin: time.Now()}
}

// Now returns milliseconds elapsed since the clock was created.
func (c *MonotonicClock) Now() float64 {
	return float64(time.Since(c.origin)) / float64(time.Millisecond)
}

// ManualClock is a Clock advanced explicitly. It is used to drive the
// engine deterministically, typically from inside the routine under test.
//
// Thread Safety: Safe for concurrent use.
type ManualClock struct {
	mu  sync.Mutex
	now float64
}

// Now returns the current manual time.
func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by ms. Negative values are ignored.
func (c *ManualClock) Advance(ms float64) {
	if ms <= 0 {
		return
	}
	c.mu.Lock()
	c.now += ms
	c.mu.Unlock()
}
