// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compare measures the change of a run relative to its baseline.
//
// # Decision Rules
//
// Two independent questions are answered:
//
//   - Is the difference statistically significant? A Welch t statistic is
//     tested against a null distribution bootstrapped from the pooled
//     samples; significant means p < significance level.
//   - Is the difference larger than noise? The confidence interval of the
//     relative mean change is compared with ±noise threshold.
//
// A change can be significant yet within noise, or outside noise yet not
// significant. Both outcomes are reported; neither overrides the other.
package compare

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianBench/services/bench"
	"github.com/AleutianAI/AleutianBench/services/bench/bootstrap"
	"github.com/AleutianAI/AleutianBench/services/bench/config"
	"github.com/AleutianAI/AleutianBench/services/bench/stats"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNoBaseline is returned when Compare is called without a baseline.
	ErrNoBaseline = errors.New("no baseline to compare against")

	// ErrSampleSizeMismatch is returned when the baseline was recorded
	// with a different sample size.
	ErrSampleSizeMismatch = errors.New("baseline sample size does not match")
)

// Thresholds are the decision parameters of a comparison.
type Thresholds struct {
	ConfidenceLevel   float64
	SignificanceLevel float64
	NoiseThreshold    float64
}

// ThresholdsFrom extracts the comparison parameters of a configuration.
func ThresholdsFrom(cfg config.Config) Thresholds {
	return Thresholds{
		ConfidenceLevel:   cfg.ConfidenceLevel,
		SignificanceLevel: cfg.SignificanceLevel,
		NoiseThreshold:    cfg.NoiseThreshold,
	}
}

// Classify places a relative change interval against the noise band.
//
// Improved requires the whole interval below -noise, Regressed the whole
// interval above +noise. Anything else, including an interval that
// straddles a bound, is WithinNoise.
func Classify(ci bench.ConfidenceInterval, noise float64) bench.ChangeVerdict {
	switch {
	case ci.Lower < -noise && ci.Upper < -noise:
		return bench.Improved
	case ci.Lower > noise && ci.Upper > noise:
		return bench.Regressed
	default:
		return bench.WithinNoise
	}
}

// Compare evaluates the current run against a baseline.
//
// Description:
//
//  1. t = WelchT(current, baseline averages).
//  2. p = two-sided p-value of t under the pooled null t distribution.
//  3. Stratified bootstrap of mean and median relative change.
//  4. Verdict from the mean change interval; Significant = p < alpha.
//
// Inputs:
//
//	r - Resampler. Consumes 3 * Resamples() draws of randomness.
//	current - Sorted per-iteration averages of the current run.
//	base - Baseline. nil returns ErrNoBaseline.
//	th - Decision thresholds.
//
// Outputs:
//
//	*bench.ChangeReport - Relative change estimates and verdicts.
//	error - ErrNoBaseline or ErrSampleSizeMismatch.
//
// Example:
//
//	report, err := compare.Compare(resampler, sorted, baseline, compare.ThresholdsFrom(cfg))
//	if err != nil {
//	    return err
//	}
//	if report.Significant && report.Verdict == bench.Regressed {
//	    // act on the regression
//	}
func Compare(r *bootstrap.Resampler, current []float64, base *bench.Baseline, th Thresholds) (*bench.ChangeReport, error) {
	if base == nil {
		return nil, ErrNoBaseline
	}

	baseAvg := base.Sample.AverageTimes()
	if len(baseAvg) != len(current) {
		return nil, fmt.Errorf("%w: baseline has %d, run has %d", ErrSampleSizeMismatch, len(baseAvg), len(current))
	}

	tPoint := stats.WelchT(current, baseAvg)
	pValue := stats.TwoSidedPValue(r.MixedT(current, baseAvg), tPoint)

	baseSorted := stats.Sorted(baseAvg)
	meanDist, medianDist := r.RelativeChange(current, baseSorted)

	meanChange := stats.Mean(current)/stats.Mean(baseSorted) - 1
	medianChange := stats.Median(current)/stats.Median(baseSorted) - 1

	report := &bench.ChangeReport{
		Mean:       bootstrap.Estimate(meanChange, meanDist, th.ConfidenceLevel),
		Median:     bootstrap.Estimate(medianChange, medianDist, th.ConfidenceLevel),
		TStatistic: tPoint,
		PValue:     pValue,
	}
	report.Verdict = Classify(report.Mean.Interval, th.NoiseThreshold)
	report.Significant = pValue < th.SignificanceLevel
	return report, nil
}
