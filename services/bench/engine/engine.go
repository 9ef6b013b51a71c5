// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine runs benchmarks end to end.
//
// An Engine owns the collaborators of a run (clock, random source,
// baseline store, reporter) and drives one benchmark through warmup,
// planning, measurement and analysis:
//
//	validate config ─► load baseline ─► warmup ─► plan ─► measure
//	      │                                                   │
//	      ▼                                                   ▼
//	   Skipped                        estimates ◄── sorted averages
//	                                      │
//	                     compare (baseline present) ─► outliers ─► save
//
// Runs are synchronous. The context is consulted once, before warmup;
// nothing interrupts a run once timing has begun.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianBench/services/bench"
	"github.com/AleutianAI/AleutianBench/services/bench/baseline"
	"github.com/AleutianAI/AleutianBench/services/bench/bootstrap"
	"github.com/AleutianAI/AleutianBench/services/bench/compare"
	"github.com/AleutianAI/AleutianBench/services/bench/config"
	"github.com/AleutianAI/AleutianBench/services/bench/measure"
	"github.com/AleutianAI/AleutianBench/services/bench/outliers"
	"github.com/AleutianAI/AleutianBench/services/bench/sampling"
)

const instrumentationName = "github.com/AleutianAI/AleutianBench/services/bench/engine"

// ErrNilRoutine indicates a benchmark without a routine.
var ErrNilRoutine = errors.New("benchmark routine must not be nil")

// -----------------------------------------------------------------------------
// Benchmark
// -----------------------------------------------------------------------------

// Benchmark is a named routine with per-benchmark configuration overrides.
type Benchmark struct {
	// Name identifies the benchmark in reports and baseline keys.
	Name string

	// Routine runs the code under test the requested number of times.
	Routine measure.Routine

	// Options override the engine configuration for this benchmark only.
	Options []config.Option
}

// Func builds a Benchmark from a function returning a value. The value
// is passed through measure.BlackBox on every call.
func Func[T any](name string, fn func() T, opts ...config.Option) Benchmark {
	return Benchmark{Name: name, Routine: measure.Bind(fn), Options: opts}
}

// -----------------------------------------------------------------------------
// Engine
// -----------------------------------------------------------------------------

// Engine runs benchmarks against a base configuration.
//
// Thread Safety: An Engine may be shared, but runs against the same
// baseline key must not overlap.
type Engine struct {
	cfg      config.Config
	reporter Reporter
	clock    measure.Clock
	source   bootstrap.Source
	store    baseline.Store
	loadName string
	saveName string
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithReporter sets the lifecycle reporter. Default: NopReporter.
func WithReporter(r Reporter) Option {
	return func(e *Engine) {
		if r != nil {
			e.reporter = r
		}
	}
}

// WithClock sets the time source. Default: measure.NewMonotonicClock().
func WithClock(c measure.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithSource sets the randomness for resampling. Default: an unseeded
// source per run.
func WithSource(src bootstrap.Source) Option {
	return func(e *Engine) { e.source = src }
}

// WithStore sets the baseline store. Without one no baseline is loaded
// or saved.
func WithStore(s baseline.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithBaselineNames sets the baseline name compared against and the
// name saved to. An empty name disables that side.
// Default: both baseline.DefaultName.
func WithBaselineNames(load, save string) Option {
	return func(e *Engine) {
		e.loadName = load
		e.saveName = save
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracerProvider sets the tracer provider. Default: the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// New creates an Engine.
//
// Inputs:
//
//	cfg - Base configuration. Validated per benchmark, after overrides.
//	opts - Collaborator overrides.
//
// Outputs:
//
//	*Engine - Ready to run.
//
// Example:
//
//	eng := engine.New(config.Default(),
//	    engine.WithReporter(report.NewConsoleWriter(os.Stdout)),
//	    engine.WithStore(store),
//	)
//	result, err := eng.Run(ctx, engine.Func("fib", func() int { return fib(20) }))
func New(cfg config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		reporter: NopReporter{},
		clock:    measure.NewMonotonicClock(),
		loadName: baseline.DefaultName,
		saveName: baseline.DefaultName,
		logger:   slog.Default(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the base configuration.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// Run measures one benchmark.
//
// Description:
//
//	Applies the benchmark's overrides and validates the result; an
//	invalid configuration is reported through Skipped and returned as an
//	error wrapping config.ErrInvalidConfig. Otherwise the run proceeds to
//	completion: baseline load, warmup, measurement, estimation, optional
//	comparison, outlier classification and baseline save. Baseline
//	problems never fail the run; they become warnings.
//
// Inputs:
//
//	ctx - Checked before warmup and passed to the baseline store.
//	b - Benchmark to run.
//
// Outputs:
//
//	*bench.Result - The complete run record.
//	error - Configuration error, nil routine, cancelled context or a
//	        clock that never advanced during warmup.
func (e *Engine) Run(ctx context.Context, b Benchmark) (*bench.Result, error) {
	ctx, span := e.tracer.Start(ctx, "bench.Run",
		trace.WithAttributes(attribute.String("benchmark.name", b.Name)),
	)
	defer span.End()

	result, err := e.run(ctx, span, b)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (e *Engine) run(ctx context.Context, span trace.Span, b Benchmark) (*bench.Result, error) {
	name := b.Name
	logger := e.logger.With(slog.String("benchmark", name))

	if b.Routine == nil {
		e.reporter.Skipped(name, ErrNilRoutine)
		return nil, fmt.Errorf("benchmark %s: %w", name, ErrNilRoutine)
	}

	cfg := e.cfg.With(b.Options...)
	warnings, err := cfg.Validate()
	if err != nil {
		logger.Warn("benchmark skipped", slog.String("error", err.Error()))
		e.reporter.Skipped(name, err)
		return nil, fmt.Errorf("benchmark %s: %w", name, err)
	}

	result := &bench.Result{
		Name:      name,
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	warn := func(msg string) {
		logger.Warn(msg)
		result.Warnings = append(result.Warnings, msg)
		e.reporter.Warning(name, msg)
	}
	for _, w := range warnings {
		warn(w)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("benchmark %s: %w", name, err)
	}

	resampler, err := bootstrap.New(e.source, cfg.NumResamples)
	if err != nil {
		return nil, fmt.Errorf("benchmark %s: %w", name, err)
	}

	var base *bench.Baseline
	if e.store != nil && e.loadName != "" {
		base, err = baseline.Load(ctx, e.store, baseline.Key(e.loadName, name), cfg.SampleSize)
		if err != nil {
			warn(err.Error())
		}
	}

	span.SetAttributes(
		attribute.String("run.id", result.RunID),
		attribute.Int("config.sample_size", cfg.SampleSize),
		attribute.Int("config.num_resamples", cfg.NumResamples),
		attribute.String("config.sampling_mode", cfg.SamplingMode.String()),
		attribute.Bool("baseline.present", base != nil),
	)

	logger.Debug("warmup started", slog.Float64("warmup_ms", cfg.WarmupMs()))
	e.reporter.WarmupStarted(name, cfg.WarmupMs())

	_, warmupSpan := e.tracer.Start(ctx, "bench.warmup")
	cal, err := measure.Warmup(e.clock, b.Routine, cfg.WarmupMs())
	if err != nil {
		warmupSpan.RecordError(err)
		warmupSpan.SetStatus(codes.Error, err.Error())
		warmupSpan.End()
		return nil, fmt.Errorf("benchmark %s: %w", name, err)
	}
	warmupSpan.SetAttributes(
		attribute.Float64("warmup.met_ms", cal.MET),
		attribute.Int64("warmup.iterations", int64(cal.TotalIters)),
	)
	warmupSpan.End()
	result.MET = cal.MET

	plan := sampling.NewPlanner(cfg).Plan(cal.MET)
	result.Plan = plan.Kind
	if plan.Faulty != nil {
		fc := *plan.Faulty
		result.FaultyConfig = &fc
		logger.Warn("faulty configuration",
			slog.String("plan", fc.Kind.String()),
			slog.Float64("achieved_ms", fc.AchievedMs),
			slog.Int("recommended_sample_size", fc.RecommendedSampleSize),
		)
		e.reporter.FaultyConfiguration(name, fc)
	}

	expectedMs := plan.ExpectedMs(cal.MET)
	e.reporter.MeasurementStarted(name, expectedMs, plan.TotalIterations())

	_, measureSpan := e.tracer.Start(ctx, "bench.measure",
		trace.WithAttributes(
			attribute.String("plan.kind", plan.Kind.String()),
			attribute.Int64("plan.total_iterations", int64(plan.TotalIterations())),
			attribute.Float64("plan.expected_ms", expectedMs),
		),
	)
	m := measure.Execute(e.clock, b.Routine, plan.Iters, func() {
		e.reporter.FaultyBenchmark(name)
	})
	measureSpan.End()
	result.Sample = m.Sample
	result.FaultyBenchmark = m.ZeroTime
	if m.ZeroTime {
		logger.Warn("faulty benchmark: slot measured zero elapsed time")
	}

	e.reporter.AnalyzingStarted(name)
	_, analyzeSpan := e.tracer.Start(ctx, "bench.analyze")
	e.analyze(result, resampler, m, plan.Kind == bench.PlanLinear, base, cfg)
	analyzeSpan.End()

	if e.store != nil && e.saveName != "" {
		if err := baseline.Save(ctx, e.store, e.saveName, result); err != nil {
			warn(err.Error())
		}
	}

	logger.Info("benchmark complete",
		slog.String("run_id", result.RunID),
		slog.String("plan", result.Plan.String()),
		slog.Float64("estimate_ms", result.Estimates.Primary().Point),
		slog.Int("outliers", result.Outliers.Total()),
	)
	return result, nil
}

// analyze fills estimates, change and outliers and fires their callbacks.
func (e *Engine) analyze(result *bench.Result, r *bootstrap.Resampler, m measure.Measurement,
	linear bool, base *bench.Baseline, cfg config.Config) {

	name := result.Name
	result.Estimates = r.Estimates(m.Sample, m.SortedAverages, linear, cfg.ConfidenceLevel)
	e.reporter.Result(name, result.Plan, result.Estimates.Primary())

	if base != nil {
		change, err := compare.Compare(r, m.SortedAverages, base, compare.ThresholdsFrom(cfg))
		if err != nil {
			msg := err.Error()
			result.Warnings = append(result.Warnings, msg)
			e.reporter.Warning(name, msg)
		} else {
			result.Change = change
			e.reporter.Change(name, *change)
		}
	}

	result.Outliers = outliers.Classify(m.SortedAverages)
	if result.Outliers.Total() > 0 {
		e.reporter.Outliers(name, result.Outliers, result.Sample.Len())
	}
}

// RunAll runs benchmarks one after another.
//
// Description:
//
//	A benchmark that fails to run is skipped and its error joined into
//	the returned error; the rest still run. A cancelled context stops
//	the loop before the next benchmark.
//
// Outputs:
//
//	[]*bench.Result - Results of the benchmarks that completed, in order.
//	error - errors.Join of every per-benchmark error, or nil.
func (e *Engine) RunAll(ctx context.Context, benchmarks []Benchmark) ([]*bench.Result, error) {
	results := make([]*bench.Result, 0, len(benchmarks))
	var errs []error

	for _, b := range benchmarks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := e.Run(ctx, b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}
