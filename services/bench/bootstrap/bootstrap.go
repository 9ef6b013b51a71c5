// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bootstrap builds resampling distributions for benchmark statistics.
//
// # Overview
//
// Every distribution is produced by drawing with replacement from the
// observed data a fixed number of times (the resample count) and
// recomputing a statistic on each draw. Confidence intervals are then read
// off the sorted distribution with stats.CIBounds.
//
// Four schemes are provided:
//
//   - Univariate: mean, std-dev, median and MAD of one sample
//   - Slope: paired (iters, time) draws for the origin-constrained fit
//   - MixedT: null t distribution drawn from the pooled samples
//   - RelativeChange: stratified current/baseline ratios of mean and median
//
// # Thread Safety
//
// A Resampler owns scratch buffers and its random source; it is not safe
// for concurrent use. Create one per goroutine.
package bootstrap

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/AleutianAI/AleutianBench/services/bench"
	"github.com/AleutianAI/AleutianBench/services/bench/stats"
)

// ErrNoResamples indicates a non-positive resample count.
var ErrNoResamples = errors.New("resample count must be positive")

// -----------------------------------------------------------------------------
// Random Source
// -----------------------------------------------------------------------------

// Source yields uniform indices in [0, n).
//
// *rand.Rand from math/rand/v2 satisfies this interface.
type Source interface {
	IntN(n int) int
}

// NewSource returns a PCG source seeded from the wall clock.
//
// Runs are not reproducible across invocations.
func NewSource() *rand.Rand {
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
}

// NewSeededSource returns a deterministic PCG source for tests and replays.
func NewSeededSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// -----------------------------------------------------------------------------
// Resampler
// -----------------------------------------------------------------------------

// Resampler draws bootstrap distributions from a single random source.
type Resampler struct {
	src       Source
	resamples int
}

// New creates a Resampler.
//
// Inputs:
//
//	src - Random source. nil selects NewSource().
//	resamples - Number of bootstrap draws per distribution. Must be positive.
//
// Outputs:
//
//	*Resampler - Ready to use.
//	error - Wraps ErrNoResamples when resamples < 1.
func New(src Source, resamples int) (*Resampler, error) {
	if resamples < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNoResamples, resamples)
	}
	if src == nil {
		src = NewSource()
	}
	return &Resampler{src: src, resamples: resamples}, nil
}

// Resamples returns the configured draw count.
func (r *Resampler) Resamples() int {
	return r.resamples
}

// resampleInto fills dst with len(dst) draws from xs.
func (r *Resampler) resampleInto(xs, dst []float64) {
	n := len(xs)
	for i := range dst {
		dst[i] = xs[r.src.IntN(n)]
	}
}

// Distributions holds sorted bootstrap distributions of one sample.
type Distributions struct {
	Mean   []float64
	StdDev []float64
	Median []float64
	MAD    []float64
}

// Univariate bootstraps the mean, std-dev, median and MAD of a sample.
//
// Description:
//
//	Each draw resamples the average times with replacement, sorts the
//	draw, and computes all four statistics from that same draw. The
//	std-dev reuses the draw's own mean and the MAD the draw's own median.
//
// Inputs:
//
//	sortedAvg - Sorted per-iteration average times. Must not be empty.
//
// Outputs:
//
//	Distributions - Four sorted distributions, each of length Resamples().
func (r *Resampler) Univariate(sortedAvg []float64) Distributions {
	d := Distributions{
		Mean:   make([]float64, r.resamples),
		StdDev: make([]float64, r.resamples),
		Median: make([]float64, r.resamples),
		MAD:    make([]float64, r.resamples),
	}
	draw := make([]float64, len(sortedAvg))

	for i := 0; i < r.resamples; i++ {
		r.resampleInto(sortedAvg, draw)
		slices.Sort(draw)

		mean := stats.Mean(draw)
		median := stats.Median(draw)
		d.Mean[i] = mean
		d.StdDev[i] = stats.StdDev(draw, mean)
		d.Median[i] = median
		d.MAD[i] = stats.MAD(draw, median)
	}

	slices.Sort(d.Mean)
	slices.Sort(d.StdDev)
	slices.Sort(d.Median)
	slices.Sort(d.MAD)
	return d
}

// Slope bootstraps the origin-constrained regression slope.
//
// Description:
//
//	Each draw picks len(iters) indices with replacement and takes the
//	(iters, times) pair at each index together, preserving the pairing.
//
// Inputs:
//
//	iters - Iteration counts per slot.
//	times - Elapsed time per slot. Same length as iters.
//
// Outputs:
//
//	[]float64 - Sorted slope distribution of length Resamples().
func (r *Resampler) Slope(iters, times []float64) []float64 {
	n := len(iters)
	dist := make([]float64, r.resamples)
	x := make([]float64, n)
	y := make([]float64, n)

	for i := 0; i < r.resamples; i++ {
		for j := 0; j < n; j++ {
			k := r.src.IntN(n)
			x[j] = iters[k]
			y[j] = times[k]
		}
		dist[i] = stats.Slope(x, y)
	}

	slices.Sort(dist)
	return dist
}

// -----------------------------------------------------------------------------
// Point Estimates
// -----------------------------------------------------------------------------

// Estimate combines a point value with the bounds of its sorted bootstrap
// distribution. The standard error is the std-dev of the distribution, or 0
// when fewer than two resamples were drawn.
func Estimate(point float64, sortedDist []float64, level float64) bench.Estimate {
	lo, hi := stats.CIBounds(sortedDist, level)
	se := 0.0
	if len(sortedDist) >= 2 {
		se = stats.StdDev(sortedDist, stats.Mean(sortedDist))
	}
	return bench.Estimate{
		Point:         point,
		StandardError: se,
		Interval: bench.ConfidenceInterval{
			Lower: lo,
			Upper: hi,
			Level: level,
		},
	}
}

// Estimates computes every per-run estimate for a measured sample.
//
// Description:
//
//	Point values come from the observed sorted averages. When linear is
//	true the slope of times over iterations is fitted and bootstrapped as
//	well.
//
// Inputs:
//
//	sample - The raw sample in slot order.
//	sortedAvg - Sorted per-iteration averages of sample.
//	linear - Whether the sample came from a linear plan.
//	level - Confidence level in (0, 1).
//
// Outputs:
//
//	bench.Estimates - Mean, median, std-dev, MAD and optional slope.
func (r *Resampler) Estimates(sample bench.RawSample, sortedAvg []float64, linear bool, level float64) bench.Estimates {
	mean := stats.Mean(sortedAvg)
	median := stats.Median(sortedAvg)
	dist := r.Univariate(sortedAvg)

	est := bench.Estimates{
		Mean:   Estimate(mean, dist.Mean, level),
		Median: Estimate(median, dist.Median, level),
		StdDev: Estimate(stats.StdDev(sortedAvg, mean), dist.StdDev, level),
		MAD:    Estimate(stats.MAD(sortedAvg, median), dist.MAD, level),
	}

	if linear {
		slope := Estimate(stats.Slope(sample.Iters, sample.Times), r.Slope(sample.Iters, sample.Times), level)
		est.Slope = &slope
	}
	return est
}
