// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sampling turns a warmup estimate into a per-slot iteration plan.
//
// # Plans
//
// A linear plan gives slot i the count (i+1)*d, so the slot times trace
// a line whose slope is the per-iteration cost. A flat plan gives every
// slot the same count. Both aim to fill the configured measurement time
// given the mean execution time (MET) measured during warmup.
//
// When the per-slot increment of either plan collapses to one iteration
// the plan cannot honour the target time. The plan still runs, but it
// carries a FaultyConfiguration with a recommended sample size.
package sampling

import (
	"math"

	"github.com/AleutianAI/AleutianBench/services/bench"
	"github.com/AleutianAI/AleutianBench/services/bench/config"
)

// RecommendStep is the granularity of recommended sample sizes. Advice is
// rounded down to a multiple of it and never falls below it.
var RecommendStep = 10

// Plan is the iteration count of every measurement slot.
type Plan struct {
	Kind  bench.PlanKind
	Iters []uint64

	// Faulty is set when the plan could not reach the target time.
	Faulty *bench.FaultyConfiguration
}

// TotalIterations returns the sum of all slot counts.
func (p Plan) TotalIterations() uint64 {
	var total uint64
	for _, n := range p.Iters {
		total += n
	}
	return total
}

// ExpectedMs returns the predicted plan duration for the given MET.
func (p Plan) ExpectedMs(met float64) float64 {
	return float64(p.TotalIterations()) * met
}

// Planner builds plans for one configuration.
type Planner struct {
	SampleSize    int
	MeasurementMs float64
	Mode          config.SamplingMode
}

// NewPlanner creates a Planner from a validated configuration.
func NewPlanner(cfg config.Config) Planner {
	return Planner{
		SampleSize:    cfg.SampleSize,
		MeasurementMs: cfg.MeasurementMs(),
		Mode:          cfg.SamplingMode,
	}
}

// totalRuns returns n(n+1)/2, the sum of linear slot multipliers.
func (p Planner) totalRuns() float64 {
	n := float64(p.SampleSize)
	return n * (n + 1) / 2
}

// linearIncrement returns ceil(measurementMs / met / totalRuns).
func (p Planner) linearIncrement(met float64) float64 {
	return math.Ceil(p.MeasurementMs / met / p.totalRuns())
}

// Plan builds the plan selected by the configured mode.
//
// Description:
//
//	Auto mode defers to ChooseAutoMode; Linear and Flat force the
//	corresponding plan.
//
// Inputs:
//
//	met - Mean execution time per iteration in ms. Must be positive.
//
// Outputs:
//
//	Plan - Slot counts, kind and any faulty configuration.
func (p Planner) Plan(met float64) Plan {
	kind := bench.PlanLinear
	switch p.Mode {
	case config.Flat:
		kind = bench.PlanFlat
	case config.Auto:
		kind = p.ChooseAutoMode(met)
	}
	if kind == bench.PlanFlat {
		return p.Flat(met)
	}
	return p.Linear(met)
}

// ChooseAutoMode picks flat when a linear plan would take more than twice
// the measurement time, and linear otherwise.
func (p Planner) ChooseAutoMode(met float64) bench.PlanKind {
	totalRuns := p.totalRuns()
	d := p.linearIncrement(met)
	if totalRuns*d*met > 2*p.MeasurementMs {
		return bench.PlanFlat
	}
	return bench.PlanLinear
}

// Linear builds a plan with slot i running (i+1)*d iterations.
//
// Description:
//
//	d = max(1, ceil(measurementMs / met / totalRuns)). When d is 1 the
//	routine is too slow for the sample size; the plan records the time a
//	d=1 run will take and a sample size that would fit.
func (p Planner) Linear(met float64) Plan {
	d := uint64(max(1, p.linearIncrement(met)))
	iters := make([]uint64, p.SampleSize)
	for i := range iters {
		iters[i] = uint64(i+1) * d
	}

	plan := Plan{Kind: bench.PlanLinear, Iters: iters}
	if d == 1 {
		plan.Faulty = &bench.FaultyConfiguration{
			Kind:                  bench.PlanLinear,
			AchievedMs:            p.totalRuns() * met,
			RecommendedSampleSize: p.RecommendLinearSampleSize(met),
		}
	}
	return plan
}

// Flat builds a plan with every slot running the same count.
//
// Description:
//
//	count = max(1, ceil(measurementMs / sampleSize / met)). A count of 1
//	marks the plan faulty with the time sampleSize*met and a recommended
//	sample size.
func (p Planner) Flat(met float64) Plan {
	count := uint64(max(1, math.Ceil(p.MeasurementMs/float64(p.SampleSize)/met)))
	iters := make([]uint64, p.SampleSize)
	for i := range iters {
		iters[i] = count
	}

	plan := Plan{Kind: bench.PlanFlat, Iters: iters}
	if count == 1 {
		plan.Faulty = &bench.FaultyConfiguration{
			Kind:                  bench.PlanFlat,
			AchievedMs:            float64(p.SampleSize) * met,
			RecommendedSampleSize: p.RecommendFlatSampleSize(met),
		}
	}
	return plan
}

// RecommendLinearSampleSize returns the largest sample size whose d=1
// linear plan fits in the measurement time.
//
// Solves n(n+1)/2 * met = measurementMs for n, then rounds down to a
// multiple of RecommendStep with a floor of RecommendStep.
func (p Planner) RecommendLinearSampleSize(met float64) int {
	c := p.MeasurementMs / met
	n := (-1 + math.Sqrt(1+8*c)) / 2
	return roundRecommendation(n)
}

// RecommendFlatSampleSize returns measurementMs/met rounded down to a
// multiple of RecommendStep with a floor of RecommendStep.
func (p Planner) RecommendFlatSampleSize(met float64) int {
	return roundRecommendation(p.MeasurementMs / met)
}

func roundRecommendation(n float64) int {
	step := RecommendStep
	if math.IsNaN(n) || n < float64(step) {
		return step
	}
	if math.IsInf(n, 1) || n > math.MaxInt32 {
		n = math.MaxInt32
	}
	return int(n) / step * step
}
