// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sampling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBench/services/bench"
	"github.com/AleutianAI/AleutianBench/services/bench/config"
)

func planner(n int, measurementMs float64, mode config.SamplingMode) Planner {
	return Planner{SampleSize: n, MeasurementMs: measurementMs, Mode: mode}
}

func TestNewPlanner(t *testing.T) {
	cfg := config.Default().With(
		config.WithSampleSize(20),
		config.WithMeasurementTime(250*time.Millisecond),
		config.WithSamplingMode(config.Flat),
	)
	p := NewPlanner(cfg)
	assert.Equal(t, 20, p.SampleSize)
	assert.Equal(t, 250.0, p.MeasurementMs)
	assert.Equal(t, config.Flat, p.Mode)
}

func TestFlat(t *testing.T) {
	t.Run("shape", func(t *testing.T) {
		plan := planner(10, 100, config.Flat).Flat(1)

		require.Len(t, plan.Iters, 10)
		for _, n := range plan.Iters {
			assert.Equal(t, uint64(10), n)
		}
		assert.Equal(t, bench.PlanFlat, plan.Kind)
		assert.Nil(t, plan.Faulty)
		assert.Equal(t, uint64(100), plan.TotalIterations())
		assert.Equal(t, 100.0, plan.ExpectedMs(1))
	})

	t.Run("rounds up", func(t *testing.T) {
		plan := planner(10, 100, config.Flat).Flat(3)
		// ceil(100/10/3) = 4
		assert.Equal(t, uint64(4), plan.Iters[0])
	})

	t.Run("faulty", func(t *testing.T) {
		plan := planner(100, 10, config.Flat).Flat(1)

		for _, n := range plan.Iters {
			assert.Equal(t, uint64(1), n)
		}
		require.NotNil(t, plan.Faulty)
		assert.Equal(t, bench.PlanFlat, plan.Faulty.Kind)
		assert.Equal(t, 100.0, plan.Faulty.AchievedMs)
		assert.Equal(t, 10, plan.Faulty.RecommendedSampleSize)
	})
}

func TestLinear(t *testing.T) {
	t.Run("shape", func(t *testing.T) {
		// totalRuns = 55, d = ceil(550/1/55) = 10
		plan := planner(10, 550, config.Linear).Linear(1)

		require.Len(t, plan.Iters, 10)
		for i, n := range plan.Iters {
			assert.Equal(t, uint64(i+1)*plan.Iters[0], n)
		}
		assert.Equal(t, uint64(10), plan.Iters[0])
		assert.Equal(t, uint64(100), plan.Iters[9])
		assert.Equal(t, bench.PlanLinear, plan.Kind)
		assert.Nil(t, plan.Faulty)
	})

	t.Run("faulty", func(t *testing.T) {
		// totalRuns = 5050, d = ceil(100/5050) = 1
		plan := planner(100, 100, config.Linear).Linear(1)

		assert.Equal(t, uint64(1), plan.Iters[0])
		assert.Equal(t, uint64(100), plan.Iters[99])
		require.NotNil(t, plan.Faulty)
		assert.Equal(t, bench.PlanLinear, plan.Faulty.Kind)
		assert.Equal(t, 5050.0, plan.Faulty.AchievedMs)
		// n(n+1)/2 = 100 -> n ~ 13.65 -> 10
		assert.Equal(t, 10, plan.Faulty.RecommendedSampleSize)
	})
}

func TestRecommendations(t *testing.T) {
	tests := []struct {
		name          string
		measurementMs float64
		met           float64
		linear        int
		flat          int
	}{
		{"floor applies", 5, 1, 10, 10},
		{"rounded down", 10000, 1, 140, 10000},
		{"flat rounding", 257, 1, 20, 250},
		{"very slow routine", 1, 1000, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := planner(100, tt.measurementMs, config.Auto)
			assert.Equal(t, tt.linear, p.RecommendLinearSampleSize(tt.met))
			assert.Equal(t, tt.flat, p.RecommendFlatSampleSize(tt.met))
		})
	}
}

func TestRecommendations_AreMultiplesOfStep(t *testing.T) {
	p := planner(100, 3000, config.Auto)
	for _, met := range []float64{0.001, 0.37, 1, 2.5, 19, 400} {
		lin := p.RecommendLinearSampleSize(met)
		flat := p.RecommendFlatSampleSize(met)
		assert.Zero(t, lin%RecommendStep, "met=%v", met)
		assert.Zero(t, flat%RecommendStep, "met=%v", met)
		assert.GreaterOrEqual(t, lin, RecommendStep)
		assert.GreaterOrEqual(t, flat, RecommendStep)
	}
}

func TestChooseAutoMode(t *testing.T) {
	tests := []struct {
		name string
		met  float64
		want bench.PlanKind
	}{
		{"fast routine", 1, bench.PlanLinear},
		{"ceil overshoot within bound", 100.0 / 60, bench.PlanLinear},
		{"slow routine", 1000, bench.PlanFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := planner(10, 550, config.Auto)
			assert.Equal(t, tt.want, p.ChooseAutoMode(tt.met))
		})
	}
}

func TestPlan_Dispatch(t *testing.T) {
	t.Run("forced linear", func(t *testing.T) {
		plan := planner(10, 550, config.Linear).Plan(1000)
		assert.Equal(t, bench.PlanLinear, plan.Kind)
		assert.NotNil(t, plan.Faulty)
	})

	t.Run("forced flat", func(t *testing.T) {
		plan := planner(10, 550, config.Flat).Plan(1)
		assert.Equal(t, bench.PlanFlat, plan.Kind)
	})

	t.Run("auto slow picks flat", func(t *testing.T) {
		plan := planner(10, 550, config.Auto).Plan(1000)
		assert.Equal(t, bench.PlanFlat, plan.Kind)
	})

	t.Run("auto fast picks linear", func(t *testing.T) {
		plan := planner(10, 550, config.Auto).Plan(1)
		assert.Equal(t, bench.PlanLinear, plan.Kind)
	})
}
