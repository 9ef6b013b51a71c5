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
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBench/pkg/logging"
	"github.com/AleutianAI/AleutianBench/pkg/ux"
	"github.com/AleutianAI/AleutianBench/services/bench"
)

func newMachineConsole(opts ...ConsoleOption) (*Console, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewConsole(ux.NewPrinter(&buf, ux.PersonalityMachine), opts...), &buf
}

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

// -----------------------------------------------------------------------------
// Formatting
// -----------------------------------------------------------------------------

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   float64
		want string
	}{
		{0, "0 ns"},
		{0.00025, "250.0 ns"},
		{0.5, "500.0 µs"},
		{1.5, "1.500 ms"},
		{12.25, "12.25 ms"},
		{-2, "-2.000 ms"},
		{1500, "1.500 s"},
		{math.NaN(), "NaN ms"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.ms))
		})
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "+1.2300%", FormatPercent(0.0123))
	assert.Equal(t, "-50.0000%", FormatPercent(-0.5))
	assert.Equal(t, "+0.0000%", FormatPercent(0))
}

func TestTruncPercent(t *testing.T) {
	assert.Equal(t, "10", truncPercent(3, 30))
	assert.Equal(t, "3.33", truncPercent(1, 30))
	assert.Equal(t, "6.66", truncPercent(2, 30))
	assert.Equal(t, "0", truncPercent(1, 0))
}

// -----------------------------------------------------------------------------
// Console
// -----------------------------------------------------------------------------

func TestConsole_WarmupLine(t *testing.T) {
	c, buf := newMachineConsole()

	c.WarmupStarted("fib", 3000)
	c.WarmupStarted("sort", 1500)

	assert.Equal(t, []string{
		"fib: warming up for 3 seconds.",
		"sort: warming up for 1.5 seconds.",
	}, lines(buf))
}

func TestConsole_PhaseLinesNeedVerbose(t *testing.T) {
	quiet, quietBuf := newMachineConsole()
	quiet.MeasurementStarted("fib", 5012, 5050)
	quiet.AnalyzingStarted("fib")
	assert.Empty(t, quietBuf.String())

	loud, loudBuf := newMachineConsole(WithVerbose(true))
	loud.MeasurementStarted("fib", 5012, 5050)
	loud.AnalyzingStarted("fib")
	assert.Equal(t, []string{
		"fib: collecting samples in estimated 5.012 s (5050 iterations)",
		"fib: analyzing",
	}, lines(loudBuf))
}

func TestConsole_ResultLine(t *testing.T) {
	c, buf := newMachineConsole()

	c.Result("fib", bench.PlanLinear, bench.Estimate{
		Point:    1.5,
		Interval: bench.ConfidenceInterval{Lower: 0.5, Upper: 2.5, Level: 0.95},
	})

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "fib "))
	assert.Contains(t, out, "time:   [500.0 µs 1.500 ms 2.500 ms]")
	assert.Equal(t, labelWidth, strings.Index(out, "time:"))
}

func TestConsole_ChangeVerdicts(t *testing.T) {
	mean := bench.Estimate{
		Point:    0.25,
		Interval: bench.ConfidenceInterval{Lower: -0.5, Upper: 1, Level: 0.95},
	}
	tests := []struct {
		name   string
		change bench.ChangeReport
		want   string
	}{
		{"not significant", bench.ChangeReport{Mean: mean, PValue: 0.5, Verdict: bench.Regressed}, "No change in performance detected."},
		{"regressed", bench.ChangeReport{Mean: mean, PValue: 0.01, Significant: true, Verdict: bench.Regressed}, "Performance has regressed."},
		{"improved", bench.ChangeReport{Mean: mean, PValue: 0.01, Significant: true, Verdict: bench.Improved}, "Performance has improved."},
		{"noise", bench.ChangeReport{Mean: mean, PValue: 0.01, Significant: true, Verdict: bench.WithinNoise}, "Change within noise threshold."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, buf := newMachineConsole()
			c.Change("fib", tt.change)

			got := lines(buf)
			require.Len(t, got, 2)
			assert.Contains(t, got[0], "change: [-50.0000% +25.0000% +100.0000%]")
			assert.Equal(t, strings.Repeat(" ", labelWidth)+tt.want, got[1])
		})
	}
}

func TestConsole_ChangePValue(t *testing.T) {
	c, buf := newMachineConsole()
	c.Change("fib", bench.ChangeReport{PValue: 0.5})
	assert.Contains(t, buf.String(), "(p = 0.5000)")
}

func TestConsole_Outliers(t *testing.T) {
	c, buf := newMachineConsole()

	c.Outliers("fib", bench.OutlierCounts{HighMild: 1, HighSevere: 2}, 30)

	assert.Equal(t, []string{
		"Found 3 outliers among 30 measurements (10%)",
		"  1 (3.33%) high mild",
		"  2 (6.66%) high severe",
	}, lines(buf))
}

func TestConsole_OutliersAllBuckets(t *testing.T) {
	c, buf := newMachineConsole()

	c.Outliers("fib", bench.OutlierCounts{LowSevere: 1, LowMild: 1, HighMild: 1, HighSevere: 1}, 100)

	assert.Equal(t, []string{
		"Found 4 outliers among 100 measurements (4%)",
		"  1 (1%) low severe",
		"  1 (1%) low mild",
		"  1 (1%) high mild",
		"  1 (1%) high severe",
	}, lines(buf))
}

func TestConsole_NoOutliersPrintsNothing(t *testing.T) {
	c, buf := newMachineConsole()
	c.Outliers("fib", bench.OutlierCounts{}, 100)
	assert.Empty(t, buf.String())
}

func TestConsole_WarningsAndFaults(t *testing.T) {
	c, buf := newMachineConsole()

	c.Warning("fib", "low resample count")
	c.Skipped("fib", errors.New("boom"))
	c.FaultyBenchmark("fib")
	c.FaultyConfiguration("fib", bench.FaultyConfiguration{
		Kind:                  bench.PlanFlat,
		AchievedMs:            1500,
		RecommendedSampleSize: 40,
	})

	got := lines(buf)
	require.Len(t, got, 4)
	assert.Equal(t, "WARN: fib: low resample count", got[0])
	assert.Equal(t, "ERROR: fib: skipped: boom", got[1])
	assert.True(t, strings.HasPrefix(got[2], "WARN: fib: a measurement took zero time"))
	assert.Contains(t, got[3], "the run will take 1.500 s")
	assert.True(t, strings.HasSuffix(got[3], "reduce the sample size to 40."))
}

func TestConsole_ColoredOutputKeepsText(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ux.NewPrinter(&buf, ux.PersonalityFull))

	c.Result("fib", bench.PlanFlat, bench.Estimate{
		Point:    1.5,
		Interval: bench.ConfidenceInterval{Lower: 0.5, Upper: 2.5},
	})

	out := buf.String()
	for _, want := range []string{"fib", "time:", "500.0 µs", "1.500 ms", "2.500 ms"} {
		assert.Contains(t, out, want)
	}
}

// -----------------------------------------------------------------------------
// Log
// -----------------------------------------------------------------------------

// jsonLogger returns a debug logger writing JSON lines to the returned
// buffer.
func jsonLogger(t *testing.T) (*logging.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelDebug, JSON: true, Output: &buf})
	t.Cleanup(func() { _ = logger.Close() })
	return logger, &buf
}

func decodeEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range lines(buf) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestLog_Records(t *testing.T) {
	logger, buf := jsonLogger(t)

	r := NewLog(logger)
	r.WarmupStarted("fib", 3000)
	r.MeasurementStarted("fib", 5000, 5050)
	r.AnalyzingStarted("fib")
	r.Result("fib", bench.PlanLinear, bench.Estimate{Point: 1.5})
	r.Change("fib", bench.ChangeReport{Verdict: bench.Regressed, Significant: true})
	r.Outliers("fib", bench.OutlierCounts{HighSevere: 2}, 100)
	r.Warning("fib", "baseline discarded")
	r.Skipped("sort", errors.New("invalid config"))

	entries := decodeEntries(t, buf)
	require.Len(t, entries, 8)

	assert.Equal(t, "DEBUG", entries[0]["level"])
	assert.Equal(t, "warmup started", entries[0]["msg"])
	assert.Equal(t, 5050.0, entries[1]["total_iterations"])

	assert.Equal(t, "INFO", entries[3]["level"])
	assert.Equal(t, "linear", entries[3]["plan"])
	assert.Equal(t, 1.5, entries[3]["estimate_ms"])

	assert.Equal(t, "regressed", entries[4]["verdict"])
	assert.Equal(t, true, entries[4]["significant"])

	assert.Equal(t, 2.0, entries[5]["total"])

	assert.Equal(t, "WARN", entries[6]["level"])
	assert.Equal(t, "baseline discarded", entries[6]["msg"])

	assert.Equal(t, "ERROR", entries[7]["level"])
	assert.Equal(t, "sort", entries[7]["benchmark"])
	assert.Equal(t, "invalid config", entries[7]["error"])
}

func TestLog_Faults(t *testing.T) {
	logger, buf := jsonLogger(t)

	r := NewLog(logger)
	r.FaultyConfiguration("fib", bench.FaultyConfiguration{Kind: bench.PlanFlat, AchievedMs: 12, RecommendedSampleSize: 10})
	r.FaultyBenchmark("fib")

	entries := decodeEntries(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "flat", entries[0]["plan"])
	assert.Equal(t, 10.0, entries[0]["recommended_sample_size"])
	assert.Equal(t, "WARN", entries[1]["level"])
}

// -----------------------------------------------------------------------------
// Summary
// -----------------------------------------------------------------------------

func summaryResults() []bench.Result {
	return []bench.Result{
		{
			Name:      "fib",
			Plan:      bench.PlanLinear,
			Estimates: bench.Estimates{Mean: bench.Estimate{Point: 2}, Slope: &bench.Estimate{Point: 1.5}},
			Outliers:  bench.OutlierCounts{HighMild: 2},
			Change:    &bench.ChangeReport{Mean: bench.Estimate{Point: 0.5}, Verdict: bench.Regressed, Significant: true},
		},
		{
			Name:      "sort",
			Plan:      bench.PlanFlat,
			Estimates: bench.Estimates{Mean: bench.Estimate{Point: 0.5}},
		},
	}
}

func TestSummaryRows(t *testing.T) {
	rows := SummaryRows(summaryResults())
	assert.Equal(t, [][]string{
		{"fib", "linear", "1.500 ms", "+50.0000%", "regressed", "2"},
		{"sort", "flat", "500.0 µs", "-", "-", "0"},
	}, rows)
}

func TestSummary_MachineIsTabSeparated(t *testing.T) {
	var buf bytes.Buffer
	Summary(ux.NewPrinter(&buf, ux.PersonalityMachine), summaryResults())

	got := lines(&buf)
	require.Len(t, got, 3)
	assert.Equal(t, "benchmark\tplan\testimate\tchange\tverdict\toutliers", got[0])
	assert.Equal(t, "fib\tlinear\t1.500 ms\t+50.0000%\tregressed\t2", got[1])
}

func TestSummary_TableContainsRows(t *testing.T) {
	var buf bytes.Buffer
	Summary(ux.NewPrinter(&buf, ux.PersonalityFull), summaryResults())

	out := buf.String()
	for _, want := range []string{"benchmark", "fib", "sort", "regressed"} {
		assert.Contains(t, out, want)
	}
}

func TestSummary_EmptyPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	Summary(ux.NewPrinter(&buf, ux.PersonalityMachine), nil)
	assert.Empty(t, buf.String())
}
