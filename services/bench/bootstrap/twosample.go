// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bootstrap

import (
	"math"
	"slices"

	"github.com/AleutianAI/AleutianBench/services/bench/stats"
)

// MixedT bootstraps Welch's t statistic under the null hypothesis.
//
// Description:
//
//	Concatenates current and baseline into one pooled array of length
//	2n. Each draw takes two independent resamples of size n from the pool
//	and records WelchT between them. The result is unsorted; only
//	stats.TwoSidedPValue consumes it.
//
// Inputs:
//
//	current - Current per-iteration averages.
//	baseline - Baseline per-iteration averages. Same length as current.
//
// Outputs:
//
//	[]float64 - t distribution of length Resamples(). Entries may be
//	            non-finite when both draws have zero variance.
func (r *Resampler) MixedT(current, baseline []float64) []float64 {
	n := len(current)
	pooled := make([]float64, 0, n+len(baseline))
	pooled = append(pooled, current...)
	pooled = append(pooled, baseline...)

	dist := make([]float64, r.resamples)
	a := make([]float64, n)
	b := make([]float64, n)
	for i := 0; i < r.resamples; i++ {
		r.resampleInto(pooled, a)
		r.resampleInto(pooled, b)
		dist[i] = stats.WelchT(a, b)
	}
	return dist
}

// RelativeChange bootstraps the relative change of mean and median.
//
// Description:
//
//	Uses a stratified scheme: the outer loop runs ceil(sqrt(R)) times and
//	each outer step sorts one resample of current. The R draws are split
//	into consecutive chunks of ceil(R/outer); the last chunk is clipped at
//	R. Each inner step sorts a fresh baseline resample and records
//
//	  mean(cur)/mean(base) - 1 and median(cur)/median(base) - 1
//
//	This costs O(sqrt(R)) sorts of current rather than O(R).
//
// Inputs:
//
//	current - Current per-iteration averages.
//	baseline - Baseline per-iteration averages.
//
// Outputs:
//
//	mean - Sorted relative mean change distribution of length Resamples().
//	median - Sorted relative median change distribution of length Resamples().
func (r *Resampler) RelativeChange(current, baseline []float64) (mean, median []float64) {
	total := r.resamples
	outer := int(math.Ceil(math.Sqrt(float64(total))))
	chunk := (total + outer - 1) / outer

	mean = make([]float64, total)
	median = make([]float64, total)
	cur := make([]float64, len(current))
	base := make([]float64, len(baseline))

	for i := 0; i < outer; i++ {
		start := i * chunk
		if start >= total {
			break
		}
		end := min(start+chunk, total)

		r.resampleInto(current, cur)
		slices.Sort(cur)
		curMean := stats.Mean(cur)
		curMedian := stats.Median(cur)

		for k := start; k < end; k++ {
			r.resampleInto(baseline, base)
			slices.Sort(base)
			mean[k] = curMean/stats.Mean(base) - 1
			median[k] = curMedian/stats.Median(base) - 1
		}
	}

	slices.Sort(mean)
	slices.Sort(median)
	return mean, median
}
