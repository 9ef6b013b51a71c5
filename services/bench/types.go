// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bench

import (
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidSample indicates a raw sample whose arrays disagree in length
	// or carry a non-positive iteration count.
	ErrInvalidSample = errors.New("invalid raw sample")

	// ErrInsufficientSamples indicates not enough points for analysis.
	ErrInsufficientSamples = errors.New("insufficient samples for statistical analysis")
)

// -----------------------------------------------------------------------------
// Raw Sample
// -----------------------------------------------------------------------------

// RawSample is the unprocessed output of one measurement run.
//
// Times[i] is the total elapsed milliseconds for slot i and Iters[i] the
// number of routine invocations in that slot. Both slices are kept in slot
// order and always have the same length (the sample size).
type RawSample struct {
	Times []float64 `json:"times"`
	Iters []float64 `json:"iters"`
}

// Len returns the number of slots in the sample.
func (s RawSample) Len() int {
	return len(s.Times)
}

// Validate checks the structural invariants of the sample.
//
// Outputs:
//
//	error - Wraps ErrInvalidSample when lengths differ or an iteration
//	        count is not positive.
func (s RawSample) Validate() error {
	if len(s.Times) != len(s.Iters) {
		return fmt.Errorf("%w: %d times but %d iteration counts", ErrInvalidSample, len(s.Times), len(s.Iters))
	}
	for i, n := range s.Iters {
		if n <= 0 {
			return fmt.Errorf("%w: slot %d has %v iterations", ErrInvalidSample, i, n)
		}
	}
	return nil
}

// AverageTimes returns times[i]/iters[i] in slot order.
//
// The result is a fresh slice; callers sort it themselves when needed.
func (s RawSample) AverageTimes() []float64 {
	avg := make([]float64, len(s.Times))
	for i := range s.Times {
		avg[i] = s.Times[i] / s.Iters[i]
	}
	return avg
}

// Clone returns a deep copy of the sample.
func (s RawSample) Clone() RawSample {
	return RawSample{
		Times: append([]float64(nil), s.Times...),
		Iters: append([]float64(nil), s.Iters...),
	}
}

// -----------------------------------------------------------------------------
// Estimates
// -----------------------------------------------------------------------------

// ConfidenceInterval is a two-sided interval at a given confidence level.
type ConfidenceInterval struct {
	Lower float64 `json:"lower_bound"`
	Upper float64 `json:"upper_bound"`
	Level float64 `json:"confidence_level"`
}

// Contains reports whether x lies inside the closed interval.
func (ci ConfidenceInterval) Contains(x float64) bool {
	return x >= ci.Lower && x <= ci.Upper
}

// Width returns Upper - Lower.
func (ci ConfidenceInterval) Width() float64 {
	return ci.Upper - ci.Lower
}

// Estimate is a point estimate with its bootstrap confidence interval.
type Estimate struct {
	Point         float64            `json:"point_estimate"`
	StandardError float64            `json:"standard_error"`
	Interval      ConfidenceInterval `json:"confidence_interval"`
}

// Estimates groups the per-run statistics.
//
// Slope is only populated for linear sampling plans, where the
// per-iteration time is fitted through the origin.
type Estimates struct {
	Mean   Estimate  `json:"mean"`
	Median Estimate  `json:"median"`
	StdDev Estimate  `json:"std_dev"`
	MAD    Estimate  `json:"median_abs_dev"`
	Slope  *Estimate `json:"slope,omitempty"`
}

// Primary returns the estimate reported to users: the slope for linear
// plans and the mean otherwise.
func (e Estimates) Primary() Estimate {
	if e.Slope != nil {
		return *e.Slope
	}
	return e.Mean
}

// -----------------------------------------------------------------------------
// Baseline
// -----------------------------------------------------------------------------

// Baseline is a previously recorded run used for comparison.
//
// A nil *Baseline is the absent case. There is no partially valid
// baseline: a value either carries both sample and estimates or does
// not exist.
type Baseline struct {
	Sample    RawSample `json:"sample"`
	Estimates Estimates `json:"estimates"`
}

// -----------------------------------------------------------------------------
// Sampling Plan Kind
// -----------------------------------------------------------------------------

// PlanKind identifies the sampling plan shape.
type PlanKind int

const (
	// PlanLinear assigns (i+1)*d iterations to slot i.
	PlanLinear PlanKind = iota
	// PlanFlat assigns the same iteration count to every slot.
	PlanFlat
)

// String returns the string representation of a PlanKind.
func (k PlanKind) String() string {
	switch k {
	case PlanLinear:
		return "linear"
	case PlanFlat:
		return "flat"
	default:
		return fmt.Sprintf("plan_kind(%d)", k)
	}
}

// FaultyConfiguration describes a plan that could not honour the target
// measurement time because its per-slot increment collapsed to one.
type FaultyConfiguration struct {
	Kind                  PlanKind `json:"kind"`
	AchievedMs            float64  `json:"achieved_ms"`
	RecommendedSampleSize int      `json:"recommended_sample_size"`
}

// -----------------------------------------------------------------------------
// Outliers
// -----------------------------------------------------------------------------

// OutlierCounts holds Tukey-fence classification counts.
//
// Each point is counted in at most one bucket.
type OutlierCounts struct {
	LowSevere  int `json:"low_severe"`
	LowMild    int `json:"low_mild"`
	HighMild   int `json:"high_mild"`
	HighSevere int `json:"high_severe"`
}

// Total returns the number of classified outliers.
func (c OutlierCounts) Total() int {
	return c.LowSevere + c.LowMild + c.HighMild + c.HighSevere
}

// -----------------------------------------------------------------------------
// Change Report
// -----------------------------------------------------------------------------

// ChangeVerdict classifies a relative change against the noise threshold.
type ChangeVerdict int

const (
	// WithinNoise means the interval straddles or sits inside ±noise.
	WithinNoise ChangeVerdict = iota
	// Improved means the whole interval lies below -noise.
	Improved
	// Regressed means the whole interval lies above +noise.
	Regressed
)

// String returns the string representation of a ChangeVerdict.
func (v ChangeVerdict) String() string {
	switch v {
	case WithinNoise:
		return "within_noise"
	case Improved:
		return "improved"
	case Regressed:
		return "regressed"
	default:
		return fmt.Sprintf("change_verdict(%d)", v)
	}
}

// ChangeReport is the outcome of comparing a run against its baseline.
//
// Mean and Median are relative changes (current/baseline - 1). Verdict is
// derived from the mean interval; Significant is the separate p-value test.
type ChangeReport struct {
	Mean        Estimate      `json:"mean"`
	Median      Estimate      `json:"median"`
	TStatistic  float64       `json:"t_statistic"`
	PValue      float64       `json:"p_value"`
	Verdict     ChangeVerdict `json:"verdict"`
	Significant bool          `json:"significant"`
}

// -----------------------------------------------------------------------------
// Result
// -----------------------------------------------------------------------------

// Result is the complete record of one benchmark run.
//
// It is returned by value from the engine; nothing about a run is kept
// in package state.
type Result struct {
	Name      string    `json:"name"`
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`

	// Plan is the sampling plan that was executed.
	Plan PlanKind `json:"plan"`

	// MET is the mean execution time per iteration from warmup, in ms.
	MET float64 `json:"met_ms"`

	Sample    RawSample     `json:"sample"`
	Estimates Estimates     `json:"estimates"`
	Outliers  OutlierCounts `json:"outliers"`

	// Change is nil when no usable baseline existed.
	Change *ChangeReport `json:"change,omitempty"`

	// FaultyConfig is set when the plan could not reach the target time.
	FaultyConfig *FaultyConfiguration `json:"faulty_config,omitempty"`

	// FaultyBenchmark is set when any slot measured zero elapsed time.
	FaultyBenchmark bool `json:"faulty_benchmark"`

	// Warnings collects configuration and baseline warnings.
	Warnings []string `json:"warnings,omitempty"`
}
