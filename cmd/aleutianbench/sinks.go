// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/AleutianBench/services/bench"
	"github.com/AleutianAI/AleutianBench/services/bench/telemetry"
)

// =============================================================================
// Tracing
// =============================================================================

// newTracerProvider returns a provider for engine and result spans.
//
// Spans go to the OTLP collector at opts.OTLPEndpoint when one is set and
// are printed to w otherwise. Export is synchronous so no background
// goroutine runs while a benchmark is being measured; spans end between
// phases, outside the timed loops.
func newTracerProvider(ctx context.Context, opts runOptions, w io.Writer) (*sdktrace.TracerProvider, error) {
	var exp sdktrace.SpanExporter
	var err error

	if opts.OTLPEndpoint != "" {
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.OTLPEndpoint)}
		if opts.OTLPInsecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exp, err = otlptracegrpc.New(ctx, grpcOpts...)
	} else {
		exp, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	), nil
}

// =============================================================================
// Result Sinks
// =============================================================================

// sinkSet owns the result sinks of one run.
//
// Results are recorded after all benchmarks finished; nothing here runs
// while code is being measured.
type sinkSet struct {
	sink telemetry.Sink

	prom        *telemetry.PrometheusSink
	metricsFile string

	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	exporter sdkmetric.Exporter
}

// newSinkSet builds the sinks selected by opts. The returned set has a
// nil sink when no sink was requested.
//
// Inputs:
//   - opts: Run options; the telemetry fields select sinks.
//   - tp: Tracer provider for result spans. May be nil.
//   - w: Destination of the stdout metric exporter.
func newSinkSet(opts runOptions, tp *sdktrace.TracerProvider, w io.Writer) (*sinkSet, error) {
	s := &sinkSet{metricsFile: opts.MetricsFile}
	var sinks []telemetry.Sink

	if opts.MetricsFile != "" {
		prom, err := telemetry.NewPrometheusSink(telemetry.DefaultPrometheusConfig())
		if err != nil {
			return nil, err
		}
		s.prom = prom
		sinks = append(sinks, prom)
	}

	if opts.Influx.URL != "" {
		cfg := opts.Influx
		if cfg.Token == "" {
			cfg.Token = os.Getenv("INFLUX_TOKEN")
		}
		influx, err := telemetry.NewInfluxSink(&cfg)
		if err != nil {
			closeAll(sinks)
			return nil, err
		}
		sinks = append(sinks, influx)
	}

	if tp != nil || opts.OTelMetrics {
		cfg := telemetry.DefaultOTelConfig()
		cfg.TraceEnabled = tp != nil
		cfg.MetricsEnabled = opts.OTelMetrics
		if tp != nil {
			cfg.TracerProvider = tp
		}
		if opts.OTelMetrics {
			exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
			if err != nil {
				closeAll(sinks)
				return nil, fmt.Errorf("create metric exporter: %w", err)
			}
			s.exporter = exp
			s.reader = sdkmetric.NewManualReader()
			s.provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(s.reader))
			cfg.MeterProvider = s.provider
		}
		otelSink, err := telemetry.NewOTelSink(cfg)
		if err != nil {
			closeAll(sinks)
			return nil, err
		}
		sinks = append(sinks, otelSink)
	}

	if len(sinks) == 0 {
		return s, nil
	}
	composite, err := telemetry.NewCompositeSink(sinks...)
	if err != nil {
		closeAll(sinks)
		return nil, err
	}
	s.sink = composite
	return s, nil
}

// record sends every result to the sinks and publishes the pull-based
// outputs (metrics file, stdout metrics).
func (s *sinkSet) record(ctx context.Context, results []*bench.Result) error {
	if s.sink == nil {
		return nil
	}

	var errs []error
	for _, r := range results {
		if err := s.sink.RecordResult(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.sink.Flush(ctx); err != nil {
		errs = append(errs, err)
	}

	if s.prom != nil {
		if err := s.prom.WriteToTextfile(s.metricsFile); err != nil {
			errs = append(errs, err)
		}
	}

	if s.reader != nil {
		var rm metricdata.ResourceMetrics
		if err := s.reader.Collect(ctx, &rm); err != nil {
			errs = append(errs, fmt.Errorf("collect otel metrics: %w", err))
		} else if err := s.exporter.Export(ctx, &rm); err != nil {
			errs = append(errs, fmt.Errorf("export otel metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}

// close releases every sink and the meter provider.
func (s *sinkSet) close(ctx context.Context) error {
	var errs []error
	if s.sink != nil {
		errs = append(errs, s.sink.Close())
	}
	if s.provider != nil {
		errs = append(errs, s.provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func closeAll(sinks []telemetry.Sink) {
	for _, s := range sinks {
		_ = s.Close()
	}
}
