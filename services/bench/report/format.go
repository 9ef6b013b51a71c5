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
	"math"
	"strconv"
)

// FormatDuration renders a millisecond value with a unit that keeps the
// integer part below 1000 and four significant digits.
//
// Example:
//
//	FormatDuration(0.0123)  // "12.30 µs"
//	FormatDuration(1500)    // "1.500 s"
func FormatDuration(ms float64) string {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return strconv.FormatFloat(ms, 'f', -1, 64) + " ms"
	}

	abs := math.Abs(ms)
	switch {
	case abs == 0:
		return "0 ns"
	case abs < 1e-3:
		return sig4(ms*1e6) + " ns"
	case abs < 1:
		return sig4(ms*1e3) + " µs"
	case abs < 1e3:
		return sig4(ms) + " ms"
	default:
		return sig4(ms/1e3) + " s"
	}
}

// FormatPercent renders a ratio as a signed percentage, e.g. 0.0123 as
// "+1.2300%".
func FormatPercent(ratio float64) string {
	s := strconv.FormatFloat(ratio*100, 'f', 4, 64)
	if ratio >= 0 {
		s = "+" + s
	}
	return s + "%"
}

// truncPercent returns 100*n/total truncated to two decimals, printed
// without trailing zeros.
func truncPercent(n, total int) string {
	if total == 0 {
		return "0"
	}
	p := 100 * float64(n) / float64(total)
	return strconv.FormatFloat(math.Trunc(p*100)/100, 'f', -1, 64)
}

// sig4 formats v with four significant digits for |v| in [1, 1000).
func sig4(v float64) string {
	decimals := 3
	switch abs := math.Abs(v); {
	case abs >= 100:
		decimals = 1
	case abs >= 10:
		decimals = 2
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
