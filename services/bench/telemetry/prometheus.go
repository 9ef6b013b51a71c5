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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianBench/services/bench"
)

// ErrInvalidPrometheusConfig is returned when the Prometheus configuration is invalid.
var ErrInvalidPrometheusConfig = errors.New("invalid prometheus configuration")

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// PrometheusConfig configures the Prometheus sink.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type PrometheusConfig struct {
	// Namespace is the metrics namespace. Required.
	Namespace string

	// Subsystem is the metrics subsystem. Required.
	Subsystem string

	// Registry receives the collectors. If nil, the sink creates its own
	// registry so a textfile export contains only benchmark metrics.
	Registry *prometheus.Registry

	// MaxLabelCardinality caps distinct benchmark names; later names are
	// recorded as "_other". Default: 1000.
	MaxLabelCardinality int
}

// DefaultPrometheusConfig returns a configuration with sensible defaults.
//
// Example:
//
//	config := telemetry.DefaultPrometheusConfig()
//	sink, err := telemetry.NewPrometheusSink(config)
func DefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Namespace:           "aleutianbench",
		Subsystem:           "bench",
		MaxLabelCardinality: 1000,
	}
}

// Validate checks that required fields are set.
func (c *PrometheusConfig) Validate() error {
	if c.Namespace == "" {
		return errors.New("namespace is required")
	}
	if c.Subsystem == "" {
		return errors.New("subsystem is required")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Prometheus Sink
// -----------------------------------------------------------------------------

// PrometheusSink exposes results as Prometheus metrics.
//
// Description:
//
//	Gauges hold the latest estimate, change and outlier figures per
//	benchmark; counters accumulate runs, verdicts, faults and iterations.
//	Times are exported in seconds following Prometheus conventions.
//	Metrics can be scraped from Registry() or written once to a node
//	exporter textfile with WriteToTextfile.
//
// Thread Safety: Safe for concurrent use.
//
// Example:
//
//	sink, err := telemetry.NewPrometheusSink(telemetry.DefaultPrometheusConfig())
//	if err != nil {
//	    return fmt.Errorf("create prometheus sink: %w", err)
//	}
//	defer sink.Close()
//
//	sink.RecordResult(ctx, result)
//	sink.WriteToTextfile("/var/lib/node_exporter/bench.prom")
type PrometheusSink struct {
	config   PrometheusConfig
	registry *prometheus.Registry

	estimateSeconds *prometheus.GaugeVec
	changeRatio     *prometheus.GaugeVec
	changePValue    *prometheus.GaugeVec
	outliers        *prometheus.GaugeVec
	metSeconds      *prometheus.GaugeVec
	runsTotal       *prometheus.CounterVec
	verdictsTotal   *prometheus.CounterVec
	faultsTotal     *prometheus.CounterVec
	warningsTotal   *prometheus.CounterVec
	iterationsTotal *prometheus.CounterVec

	collectors []prometheus.Collector

	mu     sync.RWMutex
	closed bool

	labelMu   sync.Mutex
	seenNames map[string]struct{}
	maxNames  int
}

// NewPrometheusSink creates a Prometheus sink and registers its collectors.
//
// Inputs:
//   - config: Prometheus configuration. Must not be nil.
//
// Outputs:
//   - *PrometheusSink: Never nil on success.
//   - error: Wraps ErrInvalidPrometheusConfig for bad configuration, or a
//     registration error when the registry already holds these metrics.
func NewPrometheusSink(config *PrometheusConfig) (sink *PrometheusSink, err error) {
	if config == nil {
		return nil, ErrInvalidPrometheusConfig
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidPrometheusConfig, err)
	}

	cfg := *config
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.MaxLabelCardinality <= 0 {
		cfg.MaxLabelCardinality = 1000
	}

	// promauto panics on duplicate registration; surface it as an error.
	defer func() {
		if r := recover(); r != nil {
			sink, err = nil, fmt.Errorf("register benchmark metrics: %v", r)
		}
	}()

	factory := promauto.With(cfg.Registry)
	s := &PrometheusSink{
		config:    cfg,
		registry:  cfg.Registry,
		seenNames: make(map[string]struct{}),
		maxNames:  cfg.MaxLabelCardinality,
	}

	s.estimateSeconds = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "estimate_seconds",
		Help:      "Latest per-iteration estimate by statistic and interval bound",
	}, []string{"benchmark", "statistic", "bound"})

	s.changeRatio = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "change_ratio",
		Help:      "Relative change against the baseline by statistic and interval bound",
	}, []string{"benchmark", "statistic", "bound"})

	s.changePValue = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "change_p_value",
		Help:      "Two-sided p-value of the latest baseline comparison",
	}, []string{"benchmark"})

	s.outliers = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "outliers",
		Help:      "Outliers found in the latest run by severity",
	}, []string{"benchmark", "severity"})

	s.metSeconds = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "warmup_mean_execution_seconds",
		Help:      "Mean execution time per iteration measured during warmup",
	}, []string{"benchmark"})

	s.runsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "runs_total",
		Help:      "Completed benchmark runs by sampling plan",
	}, []string{"benchmark", "plan"})

	s.verdictsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "verdicts_total",
		Help:      "Baseline comparison outcomes",
	}, []string{"benchmark", "verdict"})

	s.faultsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "faults_total",
		Help:      "Faulty configurations and zero-time measurements",
	}, []string{"benchmark", "kind"})

	s.warningsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "warnings_total",
		Help:      "Configuration and baseline warnings",
	}, []string{"benchmark"})

	s.iterationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "iterations_total",
		Help:      "Routine invocations executed in timed slots",
	}, []string{"benchmark"})

	s.collectors = []prometheus.Collector{
		s.estimateSeconds, s.changeRatio, s.changePValue, s.outliers, s.metSeconds,
		s.runsTotal, s.verdictsTotal, s.faultsTotal, s.warningsTotal, s.iterationsTotal,
	}
	return s, nil
}

// Registry returns the registry holding the sink's collectors.
func (s *PrometheusSink) Registry() *prometheus.Registry {
	return s.registry
}

// RecordResult updates every metric from one result.
//
// Thread Safety: Safe for concurrent use.
func (s *PrometheusSink) RecordResult(ctx context.Context, result *bench.Result) error {
	if err := checkArgs(ctx, result); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	name := s.sanitizeName(result.Name)

	for _, st := range statistics(result.Estimates) {
		s.estimateSeconds.WithLabelValues(name, st.name, "point").Set(st.est.Point / 1e3)
		s.estimateSeconds.WithLabelValues(name, st.name, "lower").Set(st.est.Interval.Lower / 1e3)
		s.estimateSeconds.WithLabelValues(name, st.name, "upper").Set(st.est.Interval.Upper / 1e3)
	}
	s.metSeconds.WithLabelValues(name).Set(result.MET / 1e3)

	if c := result.Change; c != nil {
		for _, st := range []namedEstimate{{"mean", c.Mean}, {"median", c.Median}} {
			s.changeRatio.WithLabelValues(name, st.name, "point").Set(st.est.Point)
			s.changeRatio.WithLabelValues(name, st.name, "lower").Set(st.est.Interval.Lower)
			s.changeRatio.WithLabelValues(name, st.name, "upper").Set(st.est.Interval.Upper)
		}
		s.changePValue.WithLabelValues(name).Set(c.PValue)
	}
	s.verdictsTotal.WithLabelValues(name, verdictLabel(result.Change)).Inc()

	s.outliers.WithLabelValues(name, "low_severe").Set(float64(result.Outliers.LowSevere))
	s.outliers.WithLabelValues(name, "low_mild").Set(float64(result.Outliers.LowMild))
	s.outliers.WithLabelValues(name, "high_mild").Set(float64(result.Outliers.HighMild))
	s.outliers.WithLabelValues(name, "high_severe").Set(float64(result.Outliers.HighSevere))

	s.runsTotal.WithLabelValues(name, result.Plan.String()).Inc()
	s.iterationsTotal.WithLabelValues(name).Add(totalIterations(result.Sample))

	if result.FaultyConfig != nil {
		s.faultsTotal.WithLabelValues(name, "configuration").Inc()
	}
	if result.FaultyBenchmark {
		s.faultsTotal.WithLabelValues(name, "benchmark").Inc()
	}
	if n := len(result.Warnings); n > 0 {
		s.warningsTotal.WithLabelValues(name).Add(float64(n))
	}
	return nil
}

// WriteToTextfile writes the registry in the text exposition format,
// atomically replacing path.
func (s *PrometheusSink) WriteToTextfile(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Flush is a no-op; Prometheus metrics are pull-based.
func (s *PrometheusSink) Flush(ctx context.Context) error {
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

// Close unregisters all collectors. Idempotent.
func (s *PrometheusSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, c := range s.collectors {
		s.registry.Unregister(c)
	}
	return nil
}

// sanitizeName caps benchmark label cardinality.
func (s *PrometheusSink) sanitizeName(name string) string {
	if name == "" {
		name = "unknown"
	}

	s.labelMu.Lock()
	defer s.labelMu.Unlock()

	if _, ok := s.seenNames[name]; ok {
		return name
	}
	if len(s.seenNames) >= s.maxNames {
		return "_other"
	}
	s.seenNames[name] = struct{}{}
	return name
}

var _ Sink = (*PrometheusSink)(nil)
