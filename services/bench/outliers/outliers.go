// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package outliers classifies sample points with Tukey fences.
//
// Classification is diagnostic only. Points are counted, never removed,
// and the counts do not feed back into any estimate.
package outliers

import (
	"github.com/AleutianAI/AleutianBench/services/bench"
	"github.com/AleutianAI/AleutianBench/services/bench/stats"
)

// Fence multipliers of the interquartile range.
const (
	MildFactor   = 1.5
	SevereFactor = 3.0
)

// Severity is the bucket a single point falls in.
type Severity int

const (
	// NotOutlier lies within the mild fences.
	NotOutlier Severity = iota
	// LowSevere lies below q1 - 3*iqr.
	LowSevere
	// LowMild lies below q1 - 1.5*iqr.
	LowMild
	// HighMild lies above q3 + 1.5*iqr.
	HighMild
	// HighSevere lies above q3 + 3*iqr.
	HighSevere
)

// String returns the label used in reports.
func (s Severity) String() string {
	switch s {
	case LowSevere:
		return "low severe"
	case LowMild:
		return "low mild"
	case HighMild:
		return "high mild"
	case HighSevere:
		return "high severe"
	default:
		return "not outlier"
	}
}

// Fences are the four Tukey thresholds of a sample.
type Fences struct {
	LowSevere  float64
	LowMild    float64
	HighMild   float64
	HighSevere float64
}

// NewFences computes fences from the quartiles of a sorted sample.
//
// Description:
//
//	q1 and q3 are the 25th and 75th percentiles; iqr = q3 - q1. The mild
//	fences sit 1.5*iqr outside the quartiles and the severe fences 3*iqr.
//
// Inputs:
//
//	sorted - Ascending sample. Must not be empty.
//
// Outputs:
//
//	Fences - The four thresholds.
func NewFences(sorted []float64) Fences {
	q1 := stats.Percentile(sorted, 25)
	q3 := stats.Percentile(sorted, 75)
	iqr := q3 - q1
	return Fences{
		LowSevere:  q1 - SevereFactor*iqr,
		LowMild:    q1 - MildFactor*iqr,
		HighMild:   q3 + MildFactor*iqr,
		HighSevere: q3 + SevereFactor*iqr,
	}
}

// Label returns the bucket of x. Severe fences are checked before mild
// ones so each point lands in exactly one bucket.
func (f Fences) Label(x float64) Severity {
	switch {
	case x < f.LowSevere:
		return LowSevere
	case x < f.LowMild:
		return LowMild
	case x > f.HighSevere:
		return HighSevere
	case x > f.HighMild:
		return HighMild
	default:
		return NotOutlier
	}
}

// Classify counts the outliers of a sorted sample.
//
// Example:
//
//	counts := outliers.Classify(sortedAverages)
//	if counts.Total() > 0 {
//	    reporter.Outliers(name, counts, len(sortedAverages))
//	}
func Classify(sorted []float64) bench.OutlierCounts {
	var counts bench.OutlierCounts
	if len(sorted) == 0 {
		return counts
	}

	fences := NewFences(sorted)
	for _, x := range sorted {
		switch fences.Label(x) {
		case LowSevere:
			counts.LowSevere++
		case LowMild:
			counts.LowMild++
		case HighMild:
			counts.HighMild++
		case HighSevere:
			counts.HighSevere++
		}
	}
	return counts
}
