// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianBench/services/bench"
)

const instrumentationName = "github.com/AleutianAI/AleutianBench/services/bench/telemetry"

var (
	// ErrOTelInitFailed is returned when instrument creation fails.
	ErrOTelInitFailed = errors.New("opentelemetry initialization failed")

	// ErrInvalidOTelConfig is returned when the OTel configuration is invalid.
	ErrInvalidOTelConfig = errors.New("invalid opentelemetry configuration")
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// OTelConfig configures the OpenTelemetry sink.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type OTelConfig struct {
	// ServiceName is the service name for telemetry. Required.
	ServiceName string

	// ServiceVersion is reported as the instrumentation version.
	ServiceVersion string

	// TracerProvider is the tracer provider to use.
	// If nil, uses the global tracer provider.
	TracerProvider trace.TracerProvider

	// MeterProvider is the meter provider to use.
	// If nil, uses the global meter provider.
	MeterProvider metric.MeterProvider

	// TraceEnabled enables one span per recorded result.
	TraceEnabled bool

	// MetricsEnabled enables metric recording.
	MetricsEnabled bool
}

// DefaultOTelConfig returns a configuration with tracing and metrics on.
func DefaultOTelConfig() *OTelConfig {
	return &OTelConfig{
		ServiceName:    "aleutianbench",
		ServiceVersion: "1.0.0",
		TraceEnabled:   true,
		MetricsEnabled: true,
	}
}

// Validate checks that the configuration is valid.
func (c *OTelConfig) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service name is required")
	}
	return nil
}

// -----------------------------------------------------------------------------
// OpenTelemetry Sink
// -----------------------------------------------------------------------------

// OTelSink records results as OpenTelemetry metrics and spans.
//
// Description:
//
//	Each result produces one "benchmark.record" span carrying the
//	primary estimate and verdict, and updates these instruments
//	(all times in ms):
//
//	  bench.estimate        gauge      {benchmark, statistic, bound}
//	  bench.change          gauge      {benchmark, statistic}
//	  bench.slot.time       histogram  per-iteration time of every slot
//	  bench.runs            counter    {benchmark, plan, verdict}
//	  bench.outliers        counter    {benchmark, severity}
//	  bench.faults          counter    {benchmark, kind}
//
//	The sink does not own the providers; shut them down separately.
//
// Thread Safety: Safe for concurrent use.
//
// Example:
//
//	config := telemetry.DefaultOTelConfig()
//	config.MeterProvider = mp
//	sink, err := telemetry.NewOTelSink(config)
//	if err != nil {
//	    return fmt.Errorf("create otel sink: %w", err)
//	}
//	defer sink.Close()
type OTelSink struct {
	config OTelConfig
	tracer trace.Tracer
	meter  metric.Meter

	estimate metric.Float64Gauge
	change   metric.Float64Gauge
	slotTime metric.Float64Histogram
	runs     metric.Int64Counter
	outliers metric.Int64Counter
	faults   metric.Int64Counter

	mu     sync.RWMutex
	closed bool
}

// NewOTelSink creates an OpenTelemetry sink.
//
// Inputs:
//   - config: OpenTelemetry configuration. Must not be nil.
//
// Outputs:
//   - *OTelSink: Never nil on success.
//   - error: Wraps ErrInvalidOTelConfig or ErrOTelInitFailed.
func NewOTelSink(config *OTelConfig) (*OTelSink, error) {
	if config == nil {
		return nil, ErrInvalidOTelConfig
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidOTelConfig, err)
	}

	cfg := *config
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	s := &OTelSink{
		config: cfg,
		tracer: tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(cfg.ServiceVersion)),
		meter:  mp.Meter(instrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion)),
	}

	if cfg.MetricsEnabled {
		if err := s.initializeMetrics(); err != nil {
			return nil, errors.Join(ErrOTelInitFailed, err)
		}
	}
	return s, nil
}

func (s *OTelSink) initializeMetrics() error {
	var err error

	s.estimate, err = s.meter.Float64Gauge(
		"bench.estimate",
		metric.WithDescription("Per-iteration estimate with confidence bounds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.change, err = s.meter.Float64Gauge(
		"bench.change",
		metric.WithDescription("Relative change against the baseline"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	s.slotTime, err = s.meter.Float64Histogram(
		"bench.slot.time",
		metric.WithDescription("Per-iteration time of each measured slot"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.runs, err = s.meter.Int64Counter(
		"bench.runs",
		metric.WithDescription("Completed benchmark runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	s.outliers, err = s.meter.Int64Counter(
		"bench.outliers",
		metric.WithDescription("Outliers found across runs"),
		metric.WithUnit("{measurement}"),
	)
	if err != nil {
		return err
	}

	s.faults, err = s.meter.Int64Counter(
		"bench.faults",
		metric.WithDescription("Faulty configurations and zero-time measurements"),
		metric.WithUnit("{fault}"),
	)
	return err
}

// RecordResult records one result as a span and metric updates.
//
// Thread Safety: Safe for concurrent use.
func (s *OTelSink) RecordResult(ctx context.Context, result *bench.Result) error {
	if err := checkArgs(ctx, result); err != nil {
		return err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrSinkClosed
	}
	s.mu.RUnlock()

	name := result.Name
	if name == "" {
		name = "unknown"
	}
	verdict := verdictLabel(result.Change)
	primary := result.Estimates.Primary()

	if s.config.TraceEnabled {
		_, span := s.tracer.Start(ctx, "benchmark.record",
			trace.WithAttributes(
				attribute.String("benchmark.name", name),
				attribute.String("benchmark.run_id", result.RunID),
				attribute.String("benchmark.plan", result.Plan.String()),
			),
			trace.WithTimestamp(result.StartedAt),
		)
		span.SetAttributes(
			attribute.Float64("estimate.point_ms", primary.Point),
			attribute.Float64("estimate.lower_ms", primary.Interval.Lower),
			attribute.Float64("estimate.upper_ms", primary.Interval.Upper),
			attribute.Int("sample.size", result.Sample.Len()),
			attribute.Int("outliers.total", result.Outliers.Total()),
			attribute.String("change.verdict", verdict),
		)
		if c := result.Change; c != nil {
			span.SetAttributes(
				attribute.Float64("change.mean", c.Mean.Point),
				attribute.Float64("change.p_value", c.PValue),
			)
		}
		if len(result.Warnings) > 0 {
			span.SetAttributes(attribute.StringSlice("warnings", result.Warnings))
		}
		if result.FaultyBenchmark {
			span.SetStatus(codes.Error, "zero elapsed time measured")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	if !s.config.MetricsEnabled {
		return nil
	}

	nameAttr := attribute.String("benchmark", name)
	for _, st := range statistics(result.Estimates) {
		stat := attribute.String("statistic", st.name)
		s.estimate.Record(ctx, st.est.Point, metric.WithAttributes(nameAttr, stat, attribute.String("bound", "point")))
		s.estimate.Record(ctx, st.est.Interval.Lower, metric.WithAttributes(nameAttr, stat, attribute.String("bound", "lower")))
		s.estimate.Record(ctx, st.est.Interval.Upper, metric.WithAttributes(nameAttr, stat, attribute.String("bound", "upper")))
	}

	if c := result.Change; c != nil {
		s.change.Record(ctx, c.Mean.Point, metric.WithAttributes(nameAttr, attribute.String("statistic", "mean")))
		s.change.Record(ctx, c.Median.Point, metric.WithAttributes(nameAttr, attribute.String("statistic", "median")))
	}

	slotAttrs := metric.WithAttributes(nameAttr)
	for _, avg := range result.Sample.AverageTimes() {
		s.slotTime.Record(ctx, avg, slotAttrs)
	}

	s.runs.Add(ctx, 1, metric.WithAttributes(
		nameAttr,
		attribute.String("plan", result.Plan.String()),
		attribute.String("verdict", verdict),
	))

	for _, o := range []struct {
		severity string
		n        int
	}{
		{"low_severe", result.Outliers.LowSevere},
		{"low_mild", result.Outliers.LowMild},
		{"high_mild", result.Outliers.HighMild},
		{"high_severe", result.Outliers.HighSevere},
	} {
		if o.n > 0 {
			s.outliers.Add(ctx, int64(o.n), metric.WithAttributes(nameAttr, attribute.String("severity", o.severity)))
		}
	}

	if result.FaultyConfig != nil {
		s.faults.Add(ctx, 1, metric.WithAttributes(nameAttr, attribute.String("kind", "configuration")))
	}
	if result.FaultyBenchmark {
		s.faults.Add(ctx, 1, metric.WithAttributes(nameAttr, attribute.String("kind", "benchmark")))
	}
	return nil
}

// Flush is a no-op; call ForceFlush on the providers to export.
func (s *OTelSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	return nil
}

// Close marks the sink closed. Providers are left running. Idempotent.
func (s *OTelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Sink = (*OTelSink)(nil)
