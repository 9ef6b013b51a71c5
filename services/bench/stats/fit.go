// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stats

// Dot returns the dot product of x and y over their common length.
func Dot(x, y []float64) float64 {
	n := min(len(x), len(y))
	var sum float64
	for i := 0; i < n; i++ {
		sum += x[i] * y[i]
	}
	return sum
}

// Slope fits y = slope * x through the origin by least squares.
//
// Description:
//
//	Returns dot(x, y) / dot(x, x), the least-squares fit of y = b*x with
//	no intercept. With x the iteration counts and y the slot times of a
//	linear plan, the slope is the per-iteration time. A fixed per-slot
//	overhead a is not removed; it biases the slope by a*sum(x)/dot(x, x),
//	which shrinks as the iteration counts grow.
//
// Inputs:
//
//	x - Independent variable (iteration counts). Must not be all zero.
//	y - Dependent variable (elapsed times). Same length as x.
//
// Outputs:
//
//	float64 - Fitted slope.
//
// Example:
//
//	Slope([]float64{1, 2, 3}, []float64{2, 4, 6}) // 2
func Slope(x, y []float64) float64 {
	return Dot(x, y) / Dot(x, x)
}
