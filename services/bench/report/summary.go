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
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/AleutianAI/AleutianBench/pkg/ux"
	"github.com/AleutianAI/AleutianBench/services/bench"
)

// summaryHeaders are the columns of the end-of-run table.
var summaryHeaders = []string{"benchmark", "plan", "estimate", "change", "verdict", "outliers"}

// SummaryRows flattens results into table cells, one row per result.
func SummaryRows(results []bench.Result) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		change, verdict := "-", "-"
		if r.Change != nil {
			change = FormatPercent(r.Change.Mean.Point)
			verdict = r.Change.Verdict.String()
			if !r.Change.Significant {
				verdict = "no change"
			}
		}
		rows = append(rows, []string{
			r.Name,
			r.Plan.String(),
			FormatDuration(r.Estimates.Primary().Point),
			change,
			verdict,
			strconv.Itoa(r.Outliers.Total()),
		})
	}
	return rows
}

// Summary prints a table over finished results.
//
// Machine output is tab-separated with a header line so it can be piped
// into cut or awk; other levels get a bordered lipgloss table.
func Summary(p *ux.Printer, results []bench.Result) {
	if len(results) == 0 {
		return
	}
	rows := SummaryRows(results)

	if !p.Level().ShowColors() {
		p.Println(strings.Join(summaryHeaders, "\t"))
		for _, row := range rows {
			p.Println(strings.Join(row, "\t"))
		}
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ux.ColorTealDeep)).
		Headers(summaryHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Inherit(ux.Styles.Title)
			}
			if col == 4 && row >= 0 && row < len(rows) {
				switch rows[row][col] {
				case bench.Regressed.String():
					return s.Inherit(ux.Styles.Error)
				case bench.Improved.String():
					return s.Inherit(ux.Styles.Success)
				}
			}
			return s
		})
	p.Println(t.Render())
}
