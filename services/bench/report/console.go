// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders engine callbacks for people and for logs.
//
// Console writes the familiar human-readable progress lines:
//
//	fib: warming up for 3 seconds.
//	fib: collecting samples in estimated 5.012 s (5050 iterations)
//	fib                     time:   [12.30 µs 12.41 µs 12.55 µs]
//	                        change: [-1.2034% +0.4410% +2.0112%] (p = 0.4800)
//	                        No change in performance detected.
//	Found 3 outliers among 100 measurements (3%)
//	  1 (1%) high mild
//	  2 (2%) high severe
//
// Log turns the same callbacks into structured log records, and Summary
// prints a table over a set of finished results.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianBench/pkg/ux"
	"github.com/AleutianAI/AleutianBench/services/bench"
	"github.com/AleutianAI/AleutianBench/services/bench/engine"
)

// labelWidth is the column at which "time:" and "change:" start.
const labelWidth = 24

// Console prints progress and results for a terminal or a pipe.
//
// Description:
//
//	Colors and icons follow the printer's personality level, so piping
//	the output into a file yields plain text with the same wording.
//
// Thread Safety: Safe for concurrent use; the printer serializes lines.
type Console struct {
	engine.NopReporter

	out     *ux.Printer
	verbose bool
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithVerbose also prints the measuring and analyzing phase lines.
func WithVerbose(v bool) ConsoleOption {
	return func(c *Console) { c.verbose = v }
}

// NewConsole creates a Console writing through p.
func NewConsole(p *ux.Printer, opts ...ConsoleOption) *Console {
	c := &Console{out: p}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewConsoleWriter creates a Console on w with a detected personality.
func NewConsoleWriter(w io.Writer, opts ...ConsoleOption) *Console {
	return NewConsole(ux.NewPrinter(w, ""), opts...)
}

func (c *Console) WarmupStarted(name string, warmupMs float64) {
	secs := strconv.FormatFloat(warmupMs/1000, 'f', -1, 64)
	c.out.Printf("%s: warming up for %s seconds.", name, secs)
}

func (c *Console) MeasurementStarted(name string, estimatedMs float64, totalIters uint64) {
	if !c.verbose {
		return
	}
	c.out.Printf("%s: collecting samples in estimated %s (%d iterations)",
		name, FormatDuration(estimatedMs), totalIters)
}

func (c *Console) AnalyzingStarted(name string) {
	if !c.verbose {
		return
	}
	c.out.Printf("%s: analyzing", name)
}

func (c *Console) FaultyConfiguration(name string, fc bench.FaultyConfiguration) {
	var hint string
	switch fc.Kind {
	case bench.PlanFlat:
		hint = "increase the measurement time or reduce the sample size"
	default:
		hint = "increase the measurement time, switch to flat sampling or reduce the sample size"
	}
	c.out.Warning(fmt.Sprintf(
		"%s: unable to reach the target time with one iteration per sample; the run will take %s. You may wish to %s to %d.",
		name, FormatDuration(fc.AchievedMs), hint, fc.RecommendedSampleSize))
}

func (c *Console) FaultyBenchmark(name string) {
	c.out.Warning(fmt.Sprintf(
		"%s: a measurement took zero time; the clock is too coarse or the routine was optimized away", name))
}

func (c *Console) Result(name string, _ bench.PlanKind, est bench.Estimate) {
	c.out.Println(
		padLabel(name)+"time:  ",
		"["+c.out.Style(ux.Styles.Muted, FormatDuration(est.Interval.Lower)),
		c.out.Style(ux.Styles.Bold, FormatDuration(est.Point)),
		c.out.Style(ux.Styles.Muted, FormatDuration(est.Interval.Upper))+"]",
	)
}

func (c *Console) Change(_ string, change bench.ChangeReport) {
	mean := change.Mean
	c.out.Println(
		padLabel("")+"change:",
		"["+c.out.Style(ux.Styles.Muted, FormatPercent(mean.Interval.Lower)),
		c.out.Style(ux.Styles.Bold, FormatPercent(mean.Point)),
		c.out.Style(ux.Styles.Muted, FormatPercent(mean.Interval.Upper))+"]",
		"(p = "+strconv.FormatFloat(change.PValue, 'f', 4, 64)+")",
	)

	var line string
	style := ux.Styles.Muted
	switch {
	case !change.Significant:
		line = "No change in performance detected."
	case change.Verdict == bench.Regressed:
		line, style = "Performance has regressed.", ux.Styles.Error
	case change.Verdict == bench.Improved:
		line, style = "Performance has improved.", ux.Styles.Success
	default:
		line = "Change within noise threshold."
	}
	c.out.Println(padLabel("") + c.out.Style(style, line))
}

func (c *Console) Outliers(_ string, counts bench.OutlierCounts, sampleSize int) {
	total := counts.Total()
	if total == 0 {
		return
	}

	c.out.Println(c.out.Style(ux.Styles.Warning, fmt.Sprintf(
		"Found %d outliers among %d measurements (%s%%)", total, sampleSize, truncPercent(total, sampleSize))))

	buckets := []struct {
		n     int
		label string
	}{
		{counts.LowSevere, "low severe"},
		{counts.LowMild, "low mild"},
		{counts.HighMild, "high mild"},
		{counts.HighSevere, "high severe"},
	}
	for _, b := range buckets {
		if b.n == 0 {
			continue
		}
		c.out.Printf("  %d (%s%%) %s", b.n, truncPercent(b.n, sampleSize), b.label)
	}
}

func (c *Console) Warning(name string, msg string) {
	c.out.Warning(name + ": " + msg)
}

func (c *Console) Skipped(name string, err error) {
	c.out.Error(fmt.Sprintf("%s: skipped: %v", name, err))
}

// padLabel left-aligns name in the label column, keeping at least one
// space before the label that follows.
func padLabel(name string) string {
	if len(name) >= labelWidth {
		return name + " "
	}
	return name + strings.Repeat(" ", labelWidth-len(name))
}

var _ engine.Reporter = (*Console)(nil)
