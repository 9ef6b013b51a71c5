// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianBench/pkg/ux"
	"github.com/AleutianAI/AleutianBench/services/bench/baseline"
	"github.com/AleutianAI/AleutianBench/services/bench/config"
)

// --- Global Command Variables ---
var (
	personalityLevel string // UX personality level (full/standard/minimal/machine)
	storeKind        string
	storeDir         string

	runOpts      runOptions
	samplingMode config.SamplingMode // --sampling-mode, read by flagOverrides

	rootCmd = &cobra.Command{
		Use:   "aleutianbench",
		Short: "Statistics-driven micro-benchmarks with baseline comparison",
		Long: `AleutianBench measures small routines, estimates their cost with
bootstrap confidence intervals and reports whether performance changed
since the last saved baseline.`,
		SilenceUsage: true,
	}

	// --- Benchmarks ---
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the built-in benchmarks and compare against a baseline",
		Long: `Runs every built-in benchmark (or those matching --filter), prints
per-benchmark estimates and changes, and saves the results as a new
baseline.

Examples:
  aleutianbench run
  aleutianbench run --filter '^sort/' --sample-size 50
  aleutianbench run --baseline main --save-baseline feature
  aleutianbench run --metrics-file bench.prom --json-logs`,
		Args: cobra.NoArgs,
		RunE: runBenchCommand, // Defined in cmd_run.go
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the built-in benchmarks",
		Args:  cobra.NoArgs,
		RunE:  runListCommand, // Defined in cmd_run.go
	}

	// --- Baselines ---
	baselinesCmd = &cobra.Command{
		Use:   "baselines",
		Short: "Inspect and manage saved baselines",
	}
	listBaselinesCmd = &cobra.Command{
		Use:   "list",
		Short: "List saved baseline keys",
		Args:  cobra.NoArgs,
		RunE:  runListBaselines, // Defined in cmd_baselines.go
	}
	showBaselineCmd = &cobra.Command{
		Use:   "show [key]",
		Short: "Show the estimates stored under a baseline key",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowBaseline, // Defined in cmd_baselines.go
	}
	deleteBaselineCmd = &cobra.Command{
		Use:   "delete [key...]",
		Short: "Delete saved baselines",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDeleteBaselines, // Defined in cmd_baselines.go
	}

	// --- Configuration ---
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage benchmark configuration files",
	}
	configInitCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit, // Defined in cmd_baselines.go
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full, standard, minimal, or machine (default: detected from the terminal)")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", storeFile,
		"Baseline store: file, badger, memory, or none")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store-dir", defaultStoreDir,
		"Directory of the file and badger baseline stores")

	// --- Run ---
	rootCmd.AddCommand(runCmd)
	f := runCmd.Flags()
	f.StringVarP(&runOpts.ConfigPath, "config", "c", "", "YAML configuration file (see 'config init')")
	f.StringVarP(&runOpts.Filter, "filter", "f", "", "Only run benchmarks whose name matches this regexp")
	f.StringVar(&runOpts.LoadBaseline, "baseline", baseline.DefaultName,
		"Baseline to compare against; empty disables comparison")
	f.StringVar(&runOpts.SaveBaseline, "save-baseline", baseline.DefaultName,
		"Baseline to save results under; empty disables saving")
	f.BoolVar(&runOpts.FailOnRegression, "fail-on-regression", false,
		"Exit non-zero when any benchmark regressed")

	addOverrideFlags(f, &samplingMode)

	// telemetry
	f.StringVar(&runOpts.MetricsFile, "metrics-file", "",
		"Write Prometheus metrics to this file in text exposition format")
	f.StringVar(&runOpts.Influx.URL, "influx-url", "", "InfluxDB server URL; enables the InfluxDB sink")
	f.StringVar(&runOpts.Influx.Token, "influx-token", "", "InfluxDB token (default: $INFLUX_TOKEN)")
	f.StringVar(&runOpts.Influx.Org, "influx-org", "", "InfluxDB organization")
	f.StringVar(&runOpts.Influx.Bucket, "influx-bucket", "", "InfluxDB bucket")
	f.BoolVar(&runOpts.Trace, "trace", false, "Print OpenTelemetry spans to stderr")
	f.StringVar(&runOpts.OTLPEndpoint, "otlp-endpoint", "",
		"Send OpenTelemetry spans to this OTLP/gRPC collector (host:port) instead of stderr")
	f.BoolVar(&runOpts.OTLPInsecure, "otlp-insecure", false, "Connect to the OTLP collector without TLS")
	f.BoolVar(&runOpts.OTelMetrics, "otel-metrics", false, "Print OpenTelemetry metrics to stderr after the run")

	// logging
	f.BoolVar(&runOpts.JSONLogs, "json-logs", false, "Emit structured JSON logs on stderr")
	f.StringVar(&runOpts.LogDir, "log-dir", "", "Also write JSON logs to a file in this directory")
	f.StringVar(&runOpts.LogLevel, "log-level", "",
		"Minimum log level: debug, info, warn, or error (default: info, debug with --verbose)")
	f.BoolVarP(&runOpts.Verbose, "verbose", "v", false, "Show phase progress and debug logs")

	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&runOpts.Filter, "filter", "f", "", "Only list benchmarks whose name matches this regexp")

	// --- Baselines ---
	rootCmd.AddCommand(baselinesCmd)
	baselinesCmd.AddCommand(listBaselinesCmd)
	baselinesCmd.AddCommand(showBaselineCmd)
	baselinesCmd.AddCommand(deleteBaselineCmd)

	// --- Config ---
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

// personality returns the --personality level, or "" to detect it from
// the output.
func personality() ux.PersonalityLevel {
	if personalityLevel == "" {
		return ""
	}
	return ux.ParsePersonalityLevel(personalityLevel)
}
