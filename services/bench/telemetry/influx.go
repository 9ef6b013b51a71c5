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
	"fmt"
	"math"
	"sync"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/AleutianBench/services/bench"
)

// ErrInvalidInfluxConfig is returned when the InfluxDB configuration is invalid.
var ErrInvalidInfluxConfig = errors.New("invalid influxdb configuration")

// DefaultMeasurement is the InfluxDB measurement results are written to.
const DefaultMeasurement = "benchmark_results"

// InfluxConfig configures the InfluxDB sink.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// Measurement defaults to DefaultMeasurement.
	Measurement string
}

// Validate checks that the connection fields are set.
func (c *InfluxConfig) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if c.Org == "" {
		errs = append(errs, errors.New("org is required"))
	}
	if c.Bucket == "" {
		errs = append(errs, errors.New("bucket is required"))
	}
	return errors.Join(errs...)
}

// pointWriter is the subset of api.WriteAPIBlocking the sink uses.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
	Flush(ctx context.Context) error
}

// InfluxSink writes one point per result to InfluxDB.
//
// Description:
//
//	Writes are blocking so a failed write surfaces as the RecordResult
//	error instead of disappearing in a background batch. See ResultPoint
//	for the point layout.
//
// Thread Safety: Safe for concurrent use.
type InfluxSink struct {
	client      influxdb2.Client
	writer      pointWriter
	measurement string

	mu     sync.RWMutex
	closed bool
}

// NewInfluxSink connects a blocking write API to the configured bucket.
//
// The client is created lazily by the library; no request is made until
// the first RecordResult.
func NewInfluxSink(config *InfluxConfig) (*InfluxSink, error) {
	if config == nil {
		return nil, ErrInvalidInfluxConfig
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidInfluxConfig, err)
	}

	client := influxdb2.NewClient(config.URL, config.Token)
	sink := newInfluxSink(client.WriteAPIBlocking(config.Org, config.Bucket), config.Measurement)
	sink.client = client
	return sink, nil
}

func newInfluxSink(w pointWriter, measurement string) *InfluxSink {
	if measurement == "" {
		measurement = DefaultMeasurement
	}
	return &InfluxSink{writer: w, measurement: measurement}
}

// RecordResult writes the result's point.
func (s *InfluxSink) RecordResult(ctx context.Context, result *bench.Result) error {
	if err := checkArgs(ctx, result); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	if err := s.writer.WritePoint(ctx, ResultPoint(s.measurement, result)); err != nil {
		return fmt.Errorf("write %s to influxdb: %w", result.Name, err)
	}
	return nil
}

// Flush flushes the write API.
func (s *InfluxSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	return s.writer.Flush(ctx)
}

// Close closes the client. Idempotent.
func (s *InfluxSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// ResultPoint builds the InfluxDB point for a result.
//
// Description:
//
//	Tags: benchmark, plan, verdict and run_id. Fields carry every
//	estimate as <statistic>_{ms,lower_ms,upper_ms}, the warmup MET,
//	outlier counts, fault flags and, with a baseline, the mean and
//	median change with the p-value. Non-finite values are left out
//	because line protocol cannot encode them. The timestamp is the
//	run's start time.
func ResultPoint(measurement string, result *bench.Result) *write.Point {
	p := influxdb2.NewPointWithMeasurement(measurement).
		AddTag("benchmark", result.Name).
		AddTag("plan", result.Plan.String()).
		AddTag("verdict", verdictLabel(result.Change)).
		AddTag("run_id", result.RunID).
		AddField("sample_size", int64(result.Sample.Len())).
		AddField("iterations", int64(totalIterations(result.Sample))).
		AddField("outliers_low_severe", int64(result.Outliers.LowSevere)).
		AddField("outliers_low_mild", int64(result.Outliers.LowMild)).
		AddField("outliers_high_mild", int64(result.Outliers.HighMild)).
		AddField("outliers_high_severe", int64(result.Outliers.HighSevere)).
		AddField("faulty_config", result.FaultyConfig != nil).
		AddField("faulty_benchmark", result.FaultyBenchmark).
		SetTime(result.StartedAt)

	addFloat(p, "met_ms", result.MET)
	for _, st := range statistics(result.Estimates) {
		addFloat(p, st.name+"_ms", st.est.Point)
		addFloat(p, st.name+"_lower_ms", st.est.Interval.Lower)
		addFloat(p, st.name+"_upper_ms", st.est.Interval.Upper)
	}

	if c := result.Change; c != nil {
		addFloat(p, "change_mean", c.Mean.Point)
		addFloat(p, "change_mean_lower", c.Mean.Interval.Lower)
		addFloat(p, "change_mean_upper", c.Mean.Interval.Upper)
		addFloat(p, "change_median", c.Median.Point)
		addFloat(p, "p_value", c.PValue)
		addFloat(p, "t_statistic", c.TStatistic)
	}
	return p
}

func addFloat(p *write.Point, key string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	p.AddField(key, v)
}

var _ Sink = (*InfluxSink)(nil)
