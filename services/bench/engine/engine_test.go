// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/AleutianBench/services/bench"
	"github.com/AleutianAI/AleutianBench/services/bench/baseline"
	"github.com/AleutianAI/AleutianBench/services/bench/bootstrap"
	"github.com/AleutianAI/AleutianBench/services/bench/config"
	"github.com/AleutianAI/AleutianBench/services/bench/measure"
)

// -----------------------------------------------------------------------------
// Test Helpers
// -----------------------------------------------------------------------------

// cost is 2^-7 ms, so every clock reading stays exactly representable.
const cost = 0.0078125

// recorder captures callbacks in order.
type recorder struct {
	NopReporter
	events   []string
	faulty   *bench.FaultyConfiguration
	result   *bench.Estimate
	change   *bench.ChangeReport
	outliers *bench.OutlierCounts
	warnings []string
	skipped  []error

	onMeasurement func()
}

func (r *recorder) WarmupStarted(string, float64) { r.events = append(r.events, "warmup") }
func (r *recorder) MeasurementStarted(string, float64, uint64) {
	r.events = append(r.events, "measurement")
	if r.onMeasurement != nil {
		r.onMeasurement()
	}
}
func (r *recorder) AnalyzingStarted(string) { r.events = append(r.events, "analyzing") }
func (r *recorder) FaultyConfiguration(_ string, fc bench.FaultyConfiguration) {
	r.events = append(r.events, "faulty_config")
	r.faulty = &fc
}
func (r *recorder) FaultyBenchmark(string) { r.events = append(r.events, "faulty_benchmark") }
func (r *recorder) Result(_ string, _ bench.PlanKind, est bench.Estimate) {
	r.events = append(r.events, "result")
	r.result = &est
}
func (r *recorder) Change(_ string, c bench.ChangeReport) {
	r.events = append(r.events, "change")
	r.change = &c
}
func (r *recorder) Outliers(_ string, c bench.OutlierCounts, _ int) {
	r.events = append(r.events, "outliers")
	r.outliers = &c
}
func (r *recorder) Warning(_ string, msg string) {
	r.events = append(r.events, "warning")
	r.warnings = append(r.warnings, msg)
}
func (r *recorder) Skipped(_ string, err error) {
	r.events = append(r.events, "skipped")
	r.skipped = append(r.skipped, err)
}

// fixture wires a manual clock to a constant-cost routine.
type fixture struct {
	clock *measure.ManualClock
	cost  float64
	rec   *recorder
}

func newFixture(c float64) *fixture {
	return &fixture{clock: &measure.ManualClock{}, cost: c, rec: &recorder{}}
}

func (f *fixture) routine(iters uint64) {
	f.clock.Advance(f.cost * float64(iters))
}

func (f *fixture) benchmark(name string, opts ...config.Option) Benchmark {
	return Benchmark{Name: name, Routine: f.routine, Options: opts}
}

func testConfig() config.Config {
	return config.Default().With(
		config.WithWarmupTime(time.Millisecond),
		config.WithMeasurementTime(time.Millisecond),
		config.WithSampleSize(10),
		config.WithNumResamples(1000),
	)
}

func (f *fixture) engine(opts ...Option) *Engine {
	base := []Option{
		WithClock(f.clock),
		WithReporter(f.rec),
		WithSource(bootstrap.NewSeededSource(7)),
	}
	return New(testConfig(), append(base, opts...)...)
}

// -----------------------------------------------------------------------------
// Run
// -----------------------------------------------------------------------------

func TestRun_ConstantCost(t *testing.T) {
	f := newFixture(cost)

	result, err := f.engine().Run(context.Background(), f.benchmark("constant"))
	require.NoError(t, err)

	assert.Equal(t, "constant", result.Name)
	assert.Len(t, result.RunID, 36)
	assert.Equal(t, cost, result.MET)
	assert.Equal(t, bench.PlanLinear, result.Plan)
	assert.Equal(t, 10, result.Sample.Len())
	assert.Nil(t, result.FaultyConfig)
	assert.False(t, result.FaultyBenchmark)
	assert.Nil(t, result.Change)

	// d = ceil(1ms / cost / 55) = 3
	assert.Equal(t, []float64{3, 6, 9, 12, 15, 18, 21, 24, 27, 30}, result.Sample.Iters)

	mean := result.Estimates.Mean
	assert.Equal(t, cost, mean.Point)
	assert.True(t, mean.Interval.Contains(cost))
	require.NotNil(t, result.Estimates.Slope)
	assert.Equal(t, cost, result.Estimates.Slope.Point)
	assert.Zero(t, result.Outliers.Total())

	assert.Equal(t, []string{"warmup", "measurement", "analyzing", "result"}, f.rec.events)
	require.NotNil(t, f.rec.result)
	assert.Equal(t, *result.Estimates.Slope, *f.rec.result)
}

func TestRun_FlatModeReportsMean(t *testing.T) {
	f := newFixture(cost)

	result, err := f.engine().Run(context.Background(),
		f.benchmark("flat", config.WithSamplingMode(config.Flat)))
	require.NoError(t, err)

	assert.Equal(t, bench.PlanFlat, result.Plan)
	assert.Nil(t, result.Estimates.Slope)
	for _, n := range result.Sample.Iters {
		assert.Equal(t, result.Sample.Iters[0], n)
	}
	require.NotNil(t, f.rec.result)
	assert.Equal(t, result.Estimates.Mean, *f.rec.result)
}

func TestRun_FaultyConfiguration(t *testing.T) {
	f := newFixture(0.5)

	result, err := f.engine().Run(context.Background(), f.benchmark("slow"))
	require.NoError(t, err)

	require.NotNil(t, result.FaultyConfig)
	assert.Equal(t, bench.PlanFlat, result.FaultyConfig.Kind)
	assert.Equal(t, 5.0, result.FaultyConfig.AchievedMs)
	assert.Equal(t, 10, result.FaultyConfig.RecommendedSampleSize)
	assert.Equal(t, result.FaultyConfig, f.rec.faulty)

	assert.Equal(t, []string{"warmup", "faulty_config", "measurement", "analyzing", "result"}, f.rec.events)
}

func TestRun_FaultyBenchmarkReportedOnce(t *testing.T) {
	f := newFixture(cost)
	// The routine stops advancing the clock once measurement starts.
	f.rec.onMeasurement = func() { f.cost = 0 }

	result, err := f.engine().Run(context.Background(), f.benchmark("free"))
	require.NoError(t, err)

	assert.True(t, result.FaultyBenchmark)
	count := 0
	for _, ev := range f.rec.events {
		if ev == "faulty_benchmark" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRun_InvalidConfigIsSkipped(t *testing.T) {
	f := newFixture(cost)

	result, err := f.engine().Run(context.Background(), f.benchmark("bad", config.WithSampleSize(5)))
	assert.Nil(t, result)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Equal(t, []string{"skipped"}, f.rec.events)
	require.Len(t, f.rec.skipped, 1)
}

func TestRun_NilRoutine(t *testing.T) {
	f := newFixture(cost)

	_, err := f.engine().Run(context.Background(), Benchmark{Name: "nil"})
	assert.ErrorIs(t, err, ErrNilRoutine)
	assert.Equal(t, []string{"skipped"}, f.rec.events)
}

func TestRun_ConfigWarnings(t *testing.T) {
	f := newFixture(cost)

	result, err := f.engine().Run(context.Background(), f.benchmark("few", config.WithNumResamples(100)))
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, result.Warnings, f.rec.warnings)
	assert.Equal(t, "warning", f.rec.events[0])
}

func TestRun_CancelledBeforeWarmup(t *testing.T) {
	f := newFixture(cost)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine().Run(ctx, f.benchmark("cancelled"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, f.rec.events, "warmup")
}

func TestRun_StalledClock(t *testing.T) {
	f := newFixture(0)

	_, err := f.engine().Run(context.Background(), f.benchmark("stalled"))
	assert.ErrorIs(t, err, measure.ErrClockStalled)
}

func TestRun_Outliers(t *testing.T) {
	clock := &measure.ManualClock{}
	slot := 0
	measuring := false
	rec := &recorder{onMeasurement: func() { measuring = true }}

	// One slot runs 64x slower per iteration than the rest.
	routine := func(iters uint64) {
		c := cost
		if measuring {
			if slot == 4 {
				c = cost * 64
			}
			slot++
		}
		clock.Advance(c * float64(iters))
	}

	eng := New(testConfig(), WithClock(clock), WithReporter(rec), WithSource(bootstrap.NewSeededSource(1)))
	result, err := eng.Run(context.Background(), Benchmark{Name: "spiky", Routine: routine})
	require.NoError(t, err)

	assert.Equal(t, bench.OutlierCounts{HighSevere: 1}, result.Outliers)
	require.NotNil(t, rec.outliers)
	assert.Equal(t, result.Outliers, *rec.outliers)
	assert.Equal(t, "outliers", rec.events[len(rec.events)-1])
}

// -----------------------------------------------------------------------------
// Baselines
// -----------------------------------------------------------------------------

func TestRun_SavesAndComparesBaseline(t *testing.T) {
	store := baseline.NewMemoryStore()
	ctx := context.Background()

	first := newFixture(cost)
	r1, err := first.engine(WithStore(store)).Run(ctx, first.benchmark("fib"))
	require.NoError(t, err)
	assert.Nil(t, r1.Change)

	rec, err := store.Get(ctx, baseline.Key(baseline.DefaultName, "fib"))
	require.NoError(t, err)
	assert.Equal(t, r1.RunID, rec.RunID)
	assert.Equal(t, r1.Sample, rec.Sample)

	second := newFixture(cost)
	r2, err := second.engine(WithStore(store)).Run(ctx, second.benchmark("fib"))
	require.NoError(t, err)

	require.NotNil(t, r2.Change)
	assert.Equal(t, 0.0, r2.Change.Mean.Point)
	assert.Equal(t, bench.WithinNoise, r2.Change.Verdict)
	assert.False(t, r2.Change.Significant)
	assert.Equal(t, 1.0, r2.Change.PValue)
	assert.Equal(t, []string{"warmup", "measurement", "analyzing", "result", "change"}, second.rec.events)
}

func TestRun_SingleResampleSavesToFileStore(t *testing.T) {
	store, err := baseline.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	f := newFixture(cost)

	r, err := f.engine(WithStore(store)).Run(ctx, f.benchmark("one", config.WithNumResamples(1)))
	require.NoError(t, err)

	require.Len(t, r.Warnings, 1, "only the resample count warning: %v", r.Warnings)
	assert.Equal(t, 0.0, r.Estimates.Mean.StandardError)
	assert.Equal(t, 0.0, r.Estimates.Primary().StandardError)

	rec, err := store.Get(ctx, baseline.Key(baseline.DefaultName, "one"))
	require.NoError(t, err)
	assert.Equal(t, r.RunID, rec.RunID)
	assert.Equal(t, r.Estimates.Mean, rec.Estimates.Mean)
}

func TestRun_DetectsRegressionAgainstBaseline(t *testing.T) {
	store := baseline.NewMemoryStore()
	ctx := context.Background()

	fast := newFixture(cost)
	_, err := fast.engine(WithStore(store)).Run(ctx, fast.benchmark("sort"))
	require.NoError(t, err)

	slow := newFixture(cost * 2)
	r, err := slow.engine(WithStore(store), WithBaselineNames(baseline.DefaultName, "")).Run(ctx, slow.benchmark("sort"))
	require.NoError(t, err)

	require.NotNil(t, r.Change)
	assert.Equal(t, 1.0, r.Change.Mean.Point)
	assert.Equal(t, bench.Regressed, r.Change.Verdict)

	// saving was disabled, so the stored run is still the fast one
	rec, err := store.Get(ctx, baseline.Key(baseline.DefaultName, "sort"))
	require.NoError(t, err)
	assert.Equal(t, cost, rec.Estimates.Mean.Point)
}

func TestRun_SampleSizeMismatchDropsBaseline(t *testing.T) {
	store := baseline.NewMemoryStore()
	ctx := context.Background()

	first := newFixture(cost)
	_, err := first.engine(WithStore(store)).Run(ctx, first.benchmark("mm"))
	require.NoError(t, err)

	second := newFixture(cost)
	r, err := second.engine(WithStore(store)).Run(ctx, second.benchmark("mm", config.WithSampleSize(20)))
	require.NoError(t, err)

	assert.Nil(t, r.Change)
	require.Len(t, second.rec.warnings, 1)
	assert.Contains(t, second.rec.warnings[0], "sample size mismatch")
	assert.NotContains(t, second.rec.events, "change")
}

type failingStore struct{}

func (*failingStore) Get(context.Context, string) (*baseline.Record, error) {
	return nil, errors.New("disk on fire")
}

func (*failingStore) Set(context.Context, string, *baseline.Record) error {
	return errors.New("disk still on fire")
}

func (*failingStore) List(context.Context) ([]string, error) { return nil, nil }
func (*failingStore) Delete(context.Context, string) error   { return nil }

func TestRun_StoreFailuresDegradeToWarnings(t *testing.T) {
	f := newFixture(cost)

	r, err := f.engine(WithStore(&failingStore{})).Run(context.Background(), f.benchmark("x"))
	require.NoError(t, err)

	assert.Nil(t, r.Change)
	require.Len(t, r.Warnings, 2)
	assert.Contains(t, r.Warnings[0], "disk on fire")
	assert.Contains(t, r.Warnings[1], "disk still on fire")
}

// -----------------------------------------------------------------------------
// RunAll and tracing
// -----------------------------------------------------------------------------

func TestRunAll_SkipsInvalidAndContinues(t *testing.T) {
	f := newFixture(cost)

	results, err := f.engine().RunAll(context.Background(), []Benchmark{
		f.benchmark("a"),
		f.benchmark("bad", config.WithConfidenceLevel(1.5)),
		f.benchmark("c"),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Name)
	assert.Equal(t, "c", results[1].Name)
}

func TestRun_EmitsPhaseSpans(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	defer tp.Shutdown(context.Background())

	f := newFixture(cost)
	_, err := f.engine(WithTracerProvider(tp)).Run(context.Background(), f.benchmark("traced"))
	require.NoError(t, err)

	var names []string
	for _, s := range spans.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"bench.warmup", "bench.measure", "bench.analyze", "bench.Run"}, names)
}

func TestFunc_BindsTypedRoutine(t *testing.T) {
	calls := 0
	b := Func("typed", func() int { calls++; return calls }, config.WithSampleSize(20))

	b.Routine(5)
	assert.Equal(t, 5, calls)
	assert.Equal(t, "typed", b.Name)
	assert.Len(t, b.Options, 1)
}

func TestMultiReporter_FansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := MultiReporter{a, b}

	m.WarmupStarted("x", 1)
	m.Result("x", bench.PlanFlat, bench.Estimate{Point: 1})
	m.Skipped("x", errors.New("nope"))

	for _, r := range []*recorder{a, b} {
		assert.Equal(t, []string{"warmup", "result", "skipped"}, r.events)
	}
}
