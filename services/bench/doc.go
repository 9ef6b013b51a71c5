// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bench holds the shared types of the micro-benchmark harness.
//
// # Overview
//
// A benchmark run calibrates a routine, executes a sampling plan against a
// monotonic clock, and turns the resulting raw sample into bootstrap
// estimates, an outlier classification and, when a baseline exists, a
// change report. The sub-packages each own one step:
//
//	┌──────────────────────────────────────────────────────────────────────┐
//	│                              engine.Run                              │
//	├──────────────────────────────────────────────────────────────────────┤
//	│                                                                      │
//	│  measure.Warmup ──► sampling.Planner ──► measure.Execute             │
//	│        │                   │                    │                    │
//	│        ▼                   ▼                    ▼                    │
//	│       MET              Plan (iters)         RawSample                │
//	│                                                 │                    │
//	│          ┌──────────────────┬───────────────────┼─────────────┐      │
//	│          ▼                  ▼                   ▼             ▼      │
//	│   bootstrap.Univariate  stats.Slope     compare.Compare  outliers    │
//	│          │                  │                   │             │      │
//	│          └──────────────────┴─────────┬─────────┴─────────────┘      │
//	│                                       ▼                              │
//	│                                 bench.Result                         │
//	│                                                                      │
//	└──────────────────────────────────────────────────────────────────────┘
//
// All times are float64 milliseconds. A Result is a plain value; the engine
// keeps no per-run state between calls.
//
// # Packages
//
//   - stats: descriptive statistics, percentiles, p-values, slope fit
//   - bootstrap: resampling distributions and estimates
//   - sampling: warmup-driven plan selection and sample size advice
//   - measure: clock, black box sink, warmup and plan execution
//   - outliers: Tukey fence classification
//   - compare: relative change against a baseline
//   - baseline: persistent baseline stores
//   - engine: orchestration and lifecycle callbacks
//   - report, telemetry: console, log, Prometheus, OTel and InfluxDB sinks
package bench
