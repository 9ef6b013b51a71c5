// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"github.com/AleutianAI/AleutianBench/pkg/logging"
	"github.com/AleutianAI/AleutianBench/services/bench"
	"github.com/AleutianAI/AleutianBench/services/bench/engine"
)

// Log writes every callback as a structured record.
//
// Phase transitions log at debug, results at info, and faults, warnings
// and skips at warn or error. Every record carries a "benchmark" attribute.
//
// Thread Safety: Safe for concurrent use.
type Log struct {
	logger *logging.Logger
}

// NewLog creates a Log reporter. A nil logger uses logging.Default().
func NewLog(logger *logging.Logger) *Log {
	if logger == nil {
		logger = logging.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) WarmupStarted(name string, warmupMs float64) {
	l.logger.Debug("warmup started", "benchmark", name, "warmup_ms", warmupMs)
}

func (l *Log) MeasurementStarted(name string, estimatedMs float64, totalIters uint64) {
	l.logger.Debug("measurement started",
		"benchmark", name,
		"estimated_ms", estimatedMs,
		"total_iterations", totalIters,
	)
}

func (l *Log) AnalyzingStarted(name string) {
	l.logger.Debug("analysis started", "benchmark", name)
}

func (l *Log) FaultyConfiguration(name string, fc bench.FaultyConfiguration) {
	l.logger.Warn("faulty sampling configuration",
		"benchmark", name,
		"plan", fc.Kind.String(),
		"achieved_ms", fc.AchievedMs,
		"recommended_sample_size", fc.RecommendedSampleSize,
	)
}

func (l *Log) FaultyBenchmark(name string) {
	l.logger.Warn("zero elapsed time measured", "benchmark", name)
}

func (l *Log) Result(name string, kind bench.PlanKind, est bench.Estimate) {
	l.logger.Info("benchmark result",
		"benchmark", name,
		"plan", kind.String(),
		"estimate_ms", est.Point,
		"lower_ms", est.Interval.Lower,
		"upper_ms", est.Interval.Upper,
		"std_err_ms", est.StandardError,
	)
}

func (l *Log) Change(name string, change bench.ChangeReport) {
	l.logger.Info("baseline comparison",
		"benchmark", name,
		"mean_change", change.Mean.Point,
		"mean_change_lower", change.Mean.Interval.Lower,
		"mean_change_upper", change.Mean.Interval.Upper,
		"median_change", change.Median.Point,
		"p_value", change.PValue,
		"significant", change.Significant,
		"verdict", change.Verdict.String(),
	)
}

func (l *Log) Outliers(name string, counts bench.OutlierCounts, sampleSize int) {
	l.logger.Info("outliers found",
		"benchmark", name,
		"total", counts.Total(),
		"sample_size", sampleSize,
		"low_severe", counts.LowSevere,
		"low_mild", counts.LowMild,
		"high_mild", counts.HighMild,
		"high_severe", counts.HighSevere,
	)
}

func (l *Log) Warning(name string, msg string) {
	l.logger.Warn(msg, "benchmark", name)
}

func (l *Log) Skipped(name string, err error) {
	l.logger.Error("benchmark skipped", "benchmark", name, "error", err.Error())
}

var _ engine.Reporter = (*Log)(nil)
