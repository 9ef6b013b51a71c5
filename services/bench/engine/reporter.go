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
	"github.com/AleutianAI/AleutianBench/services/bench"
)

// Reporter receives lifecycle callbacks during a run.
//
// Description:
//
//	Callbacks are side-effect only; the engine never reads anything back.
//	They fire outside timed regions, in this order for one benchmark:
//
//	  Warning*  WarmupStarted  FaultyConfiguration?  MeasurementStarted
//	  FaultyBenchmark?  AnalyzingStarted  Result  Change?  Outliers?
//
//	Skipped replaces the whole sequence when the configuration is
//	rejected. Warning may also follow Outliers when the baseline could
//	not be saved.
//
// Thread Safety: Called from the goroutine running the benchmark.
type Reporter interface {
	// WarmupStarted fires before warmup with its target duration.
	WarmupStarted(name string, warmupMs float64)

	// MeasurementStarted fires before the first timed slot.
	MeasurementStarted(name string, estimatedMs float64, totalIters uint64)

	// AnalyzingStarted fires once measurement is complete.
	AnalyzingStarted(name string)

	// FaultyConfiguration fires when the plan degenerated to one
	// iteration per slot.
	FaultyConfiguration(name string, fc bench.FaultyConfiguration)

	// FaultyBenchmark fires at most once per run, on the first slot that
	// measured zero elapsed time.
	FaultyBenchmark(name string)

	// Result carries the slope for linear plans and the mean otherwise.
	Result(name string, kind bench.PlanKind, est bench.Estimate)

	// Change fires only when a usable baseline was loaded.
	Change(name string, change bench.ChangeReport)

	// Outliers fires only when at least one outlier was found.
	Outliers(name string, counts bench.OutlierCounts, sampleSize int)

	// Warning reports configuration warnings and baseline problems.
	Warning(name string, msg string)

	// Skipped reports a benchmark that did not run.
	Skipped(name string, err error)
}

// NopReporter ignores every callback. Embed it to implement only the
// callbacks of interest.
type NopReporter struct{}

func (NopReporter) WarmupStarted(string, float64)                         {}
func (NopReporter) MeasurementStarted(string, float64, uint64)            {}
func (NopReporter) AnalyzingStarted(string)                               {}
func (NopReporter) FaultyConfiguration(string, bench.FaultyConfiguration) {}
func (NopReporter) FaultyBenchmark(string)                                {}
func (NopReporter) Result(string, bench.PlanKind, bench.Estimate)         {}
func (NopReporter) Change(string, bench.ChangeReport)                     {}
func (NopReporter) Outliers(string, bench.OutlierCounts, int)             {}
func (NopReporter) Warning(string, string)                                {}
func (NopReporter) Skipped(string, error)                                 {}

// MultiReporter fans every callback out to its members in order.
type MultiReporter []Reporter

func (m MultiReporter) WarmupStarted(name string, warmupMs float64) {
	for _, r := range m {
		r.WarmupStarted(name, warmupMs)
	}
}

func (m MultiReporter) MeasurementStarted(name string, estimatedMs float64, totalIters uint64) {
	for _, r := range m {
		r.MeasurementStarted(name, estimatedMs, totalIters)
	}
}

func (m MultiReporter) AnalyzingStarted(name string) {
	for _, r := range m {
		r.AnalyzingStarted(name)
	}
}

func (m MultiReporter) FaultyConfiguration(name string, fc bench.FaultyConfiguration) {
	for _, r := range m {
		r.FaultyConfiguration(name, fc)
	}
}

func (m MultiReporter) FaultyBenchmark(name string) {
	for _, r := range m {
		r.FaultyBenchmark(name)
	}
}

func (m MultiReporter) Result(name string, kind bench.PlanKind, est bench.Estimate) {
	for _, r := range m {
		r.Result(name, kind, est)
	}
}

func (m MultiReporter) Change(name string, change bench.ChangeReport) {
	for _, r := range m {
		r.Change(name, change)
	}
}

func (m MultiReporter) Outliers(name string, counts bench.OutlierCounts, sampleSize int) {
	for _, r := range m {
		r.Outliers(name, counts, sampleSize)
	}
}

func (m MultiReporter) Warning(name string, msg string) {
	for _, r := range m {
		r.Warning(name, msg)
	}
}

func (m MultiReporter) Skipped(name string, err error) {
	for _, r := range m {
		r.Skipped(name, err)
	}
}

var (
	_ Reporter = NopReporter{}
	_ Reporter = MultiReporter(nil)
)
