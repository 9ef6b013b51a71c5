// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stats provides the descriptive statistics used by the harness.
//
// Functions documented as taking a sorted slice do not sort it themselves;
// passing unsorted input yields meaningless results. None of the functions
// mutate their input.
package stats

import (
	"math"
	"slices"
)

// MADScale makes the median absolute deviation a consistent estimator of
// the standard deviation for normally distributed data.
const MADScale = 1.4826

// -----------------------------------------------------------------------------
// Moments
// -----------------------------------------------------------------------------

// Mean returns the arithmetic mean of xs.
//
// Returns NaN for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the Bessel-corrected sample variance of xs around mean.
//
// Description:
//
//	Computes Σ(x-mean)² / (n-1). The caller supplies the mean so the
//	bootstrap can reuse one already computed for the same resample.
//
// Inputs:
//
//	xs - Sample values. Must have at least 2 elements for a finite result.
//	mean - Mean of xs.
//
// Outputs:
//
//	float64 - Sample variance. NaN when len(xs) < 2.
func Variance(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs)-1)
}

// StdDev returns sqrt(Variance(xs, mean)).
func StdDev(xs []float64, mean float64) float64 {
	return math.Sqrt(Variance(xs, mean))
}

// WelchT returns Welch's t statistic for two independent samples.
//
//	t = (mean(a) - mean(b)) / sqrt(var(a)/len(a) + var(b)/len(b))
//
// Both samples having zero variance produces a non-finite result; callers
// decide how to treat it.
func WelchT(a, b []float64) float64 {
	meanA, meanB := Mean(a), Mean(b)
	varA, varB := Variance(a, meanA), Variance(b, meanB)
	return (meanA - meanB) / math.Sqrt(varA/float64(len(a))+varB/float64(len(b)))
}

// -----------------------------------------------------------------------------
// Order Statistics
// -----------------------------------------------------------------------------

// Sorted returns an ascending copy of xs.
func Sorted(xs []float64) []float64 {
	out := slices.Clone(xs)
	slices.Sort(out)
	return out
}

// Median returns the median of an ascending slice.
//
// Even-length input averages the two middle elements. Returns NaN for an
// empty slice.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// MAD returns the scaled median absolute deviation of an ascending slice.
//
// Description:
//
//	Builds |x - median| for every element, sorts those deviations, and
//	returns MADScale times their median.
//
// Inputs:
//
//	sorted - Ascending sample.
//	median - Median of sorted.
//
// Outputs:
//
//	float64 - 1.4826 * median(|x - median|).
//
// Example:
//
//	MAD([]float64{1, 2, 3, 4, 100}, 3) // 1.4826
func MAD(sorted []float64, median float64) float64 {
	dev := make([]float64, len(sorted))
	for i, x := range sorted {
		dev[i] = math.Abs(x - median)
	}
	slices.Sort(dev)
	return MADScale * Median(dev)
}

// Percentile returns the p-th percentile of an ascending slice.
//
// Description:
//
//	Uses rank = p/100 * (n-1) and interpolates linearly between the two
//	neighbouring elements. p == 100 returns the last element exactly, as
//	does any rank whose upper neighbour would fall off the end.
//
// Inputs:
//
//	sorted - Ascending sample. Must not be empty.
//	p - Percentile in [0, 100].
//
// Outputs:
//
//	float64 - Interpolated value. NaN for empty input.
//
// Example:
//
//	Percentile([]float64{10, 20, 30, 40}, 50) // 25
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p >= 100 {
		return sorted[n-1]
	}
	if p <= 0 {
		return sorted[0]
	}

	rank := p / 100 * float64(n-1)
	lower := int(math.Floor(rank))
	if lower+1 >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

// CIBounds returns the two-sided confidence bounds of a sorted bootstrap
// distribution at the given level (0 < level < 1).
//
// The bounds are the 50(1-level) and 50(1+level) percentiles.
func CIBounds(sortedDist []float64, level float64) (lower, upper float64) {
	lower = Percentile(sortedDist, 50*(1-level))
	upper = Percentile(sortedDist, 50*(1+level))
	return lower, upper
}

// -----------------------------------------------------------------------------
// Hypothesis Testing
// -----------------------------------------------------------------------------

// TwoSidedPValue returns the two-tailed p-value of t under dist.
//
// Description:
//
//	Counts hits, the entries of dist strictly below t, and returns
//	2 * min(hits, n-hits) / n. dist need not be sorted. Non-finite entries
//	of dist are ignored; a non-finite t or a distribution with no finite
//	entries carries no evidence and yields 1.
//
// Inputs:
//
//	dist - Null distribution of the statistic.
//	t - Observed statistic.
//
// Outputs:
//
//	float64 - p-value in [0, 1].
func TwoSidedPValue(dist []float64, t float64) float64 {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 1
	}
	var n, hits int
	for _, x := range dist {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		n++
		if x < t {
			hits++
		}
	}
	if n == 0 {
		return 1
	}
	return 2 * float64(min(hits, n-hits)) / float64(n)
}
