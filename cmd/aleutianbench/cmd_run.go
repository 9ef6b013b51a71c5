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
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/AleutianBench/pkg/logging"
	"github.com/AleutianAI/AleutianBench/pkg/ux"
	"github.com/AleutianAI/AleutianBench/services/bench"
	"github.com/AleutianAI/AleutianBench/services/bench/config"
	"github.com/AleutianAI/AleutianBench/services/bench/engine"
	"github.com/AleutianAI/AleutianBench/services/bench/report"
	"github.com/AleutianAI/AleutianBench/services/bench/suites"
	"github.com/AleutianAI/AleutianBench/services/bench/telemetry"
)

// serviceName labels logs and spans.
const serviceName = "aleutianbench"

var (
	// errRegressed is returned with --fail-on-regression.
	errRegressed = errors.New("performance regressed")

	// errNoBenchmarks means the filter matched nothing.
	errNoBenchmarks = errors.New("no benchmarks match the filter")
)

// runOptions holds everything one run needs besides the benchmarks.
type runOptions struct {
	ConfigPath   string
	Filter       string
	LoadBaseline string
	SaveBaseline string

	Store       string
	StoreDir    string
	Personality ux.PersonalityLevel

	MetricsFile  string
	Influx       telemetry.InfluxConfig
	Trace        bool
	OTLPEndpoint string
	OTLPInsecure bool
	OTelMetrics  bool

	JSONLogs bool
	LogDir   string
	LogLevel string
	Verbose  bool

	FailOnRegression bool

	// Overrides apply on top of the configuration file for every benchmark.
	Overrides []config.Option
}

// runBenchCommand is the cobra entry point of "run".
func runBenchCommand(cmd *cobra.Command, _ []string) error {
	opts := runOpts
	opts.Store = storeKind
	opts.StoreDir = storeDir
	opts.Personality = personality()

	overrides, err := flagOverrides(cmd.Flags(), samplingMode)
	if err != nil {
		return err
	}
	opts.Overrides = overrides

	return runBenchmarks(cmd.Context(), opts, suites.Benchmarks(suites.All()),
		cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// addOverrideFlags registers the configuration override flags on f.
func addOverrideFlags(f *pflag.FlagSet, mode *config.SamplingMode) {
	f.Int("sample-size", 0, "Override the number of measurement slots")
	f.Duration("warmup-time", 0, "Override the warmup duration")
	f.Duration("measurement-time", 0, "Override the target measurement duration")
	f.Int("resamples", 0, "Override the number of bootstrap resamples")
	f.Float64("noise-threshold", 0, "Override the relative change treated as noise")
	f.Var(mode, "sampling-mode", "Override the sampling plan: auto, linear, or flat")
}

// flagOverrides turns the override flags the user actually set into
// options. Unset flags leave the configuration file in charge.
func flagOverrides(f *pflag.FlagSet, mode config.SamplingMode) ([]config.Option, error) {
	var opts []config.Option

	if f.Changed("sample-size") {
		n, err := f.GetInt("sample-size")
		if err != nil {
			return nil, err
		}
		opts = append(opts, config.WithSampleSize(n))
	}
	if f.Changed("warmup-time") {
		d, err := f.GetDuration("warmup-time")
		if err != nil {
			return nil, err
		}
		opts = append(opts, config.WithWarmupTime(d))
	}
	if f.Changed("measurement-time") {
		d, err := f.GetDuration("measurement-time")
		if err != nil {
			return nil, err
		}
		opts = append(opts, config.WithMeasurementTime(d))
	}
	if f.Changed("resamples") {
		n, err := f.GetInt("resamples")
		if err != nil {
			return nil, err
		}
		opts = append(opts, config.WithNumResamples(n))
	}
	if f.Changed("noise-threshold") {
		v, err := f.GetFloat64("noise-threshold")
		if err != nil {
			return nil, err
		}
		opts = append(opts, config.WithNoiseThreshold(v))
	}
	if f.Changed("sampling-mode") {
		opts = append(opts, config.WithSamplingMode(mode))
	}
	return opts, nil
}

// runBenchmarks runs the selected benchmarks and reports them.
//
// Description:
//
//	Loads the configuration file, filters the benchmarks, opens the
//	baseline store, runs everything through one engine, then records the
//	results to the telemetry sinks and prints a summary table.
//
// Inputs:
//
//	ctx - Cancels the run between benchmarks.
//	opts - Run options.
//	benchmarks - Candidates before filtering.
//	stdout - Console report and summary.
//	stderr - Logs, spans and stdout metrics.
//
// Outputs:
//
//	error - Setup failures, skipped benchmarks, sink errors, or
//	        errRegressed when FailOnRegression is set.
func runBenchmarks(ctx context.Context, opts runOptions, benchmarks []engine.Benchmark,
	stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	file, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	selected, err := suites.Filter(benchmarks, opts.Filter)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("%w: %q", errNoBenchmarks, opts.Filter)
	}

	selected, err = applyConfig(selected, file, opts.Overrides)
	if err != nil {
		return err
	}

	logger, err := newLogger(opts, stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	printer := ux.NewPrinter(stdout, opts.Personality)
	reporters := engine.MultiReporter{report.NewConsole(printer, report.WithVerbose(opts.Verbose))}
	if opts.JSONLogs || opts.Verbose || opts.LogDir != "" || opts.LogLevel != "" {
		reporters = append(reporters, report.NewLog(logger))
	}

	store, closeStore, err := openStore(opts.Store, opts.StoreDir, logger.Slog())
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close baseline store", "error", err)
		}
	}()

	engineOpts := []engine.Option{
		engine.WithReporter(reporters),
		engine.WithBaselineNames(opts.LoadBaseline, opts.SaveBaseline),
		engine.WithLogger(logger.Slog()),
	}
	if store != nil {
		engineOpts = append(engineOpts, engine.WithStore(store))
	}

	var tp *sdktrace.TracerProvider
	if opts.Trace || opts.OTLPEndpoint != "" {
		tp, err = newTracerProvider(ctx, opts, stderr)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, engine.WithTracerProvider(tp))
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	sinks, err := newSinkSet(opts, tp, stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.close(context.Background()); err != nil {
			logger.Warn("close telemetry sinks", "error", err)
		}
	}()

	logger.Info("starting run", "benchmarks", len(selected), "store", opts.Store,
		"baseline", opts.LoadBaseline, "save_baseline", opts.SaveBaseline)

	eng := engine.New(file.Defaults, engineOpts...)
	results, runErr := eng.RunAll(ctx, selected)

	sinkErr := sinks.record(ctx, results)
	if sinkErr != nil {
		logger.Warn("record results", "error", sinkErr)
	}

	report.Summary(printer, derefResults(results))

	var errs []error
	if runErr != nil {
		errs = append(errs, fmt.Errorf("%d of %d benchmarks did not complete: %w",
			len(selected)-len(results), len(selected), runErr))
	}
	if sinkErr != nil {
		errs = append(errs, sinkErr)
	}
	if opts.FailOnRegression {
		if names := regressed(results); len(names) > 0 {
			errs = append(errs, fmt.Errorf("%w: %v", errRegressed, names))
		}
	}
	return errors.Join(errs...)
}

// applyConfig sets each benchmark's configuration: the file's section for
// its name, then the benchmark's own options, then the overrides.
func applyConfig(benchmarks []engine.Benchmark, file *config.File, overrides []config.Option) ([]engine.Benchmark, error) {
	out := make([]engine.Benchmark, len(benchmarks))
	for i, b := range benchmarks {
		cfg, err := file.For(b.Name)
		if err != nil {
			return nil, fmt.Errorf("configuration for %s: %w", b.Name, err)
		}
		opts := make([]config.Option, 0, 1+len(b.Options)+len(overrides))
		opts = append(opts, config.Replace(cfg))
		opts = append(opts, b.Options...)
		opts = append(opts, overrides...)
		b.Options = opts
		out[i] = b
	}
	return out, nil
}

// newLogger builds the run logger. Logs stay quiet unless JSON logs,
// verbose output or an explicit level were requested, so the console
// report is the only default output. --log-level wins over --verbose.
func newLogger(opts runOptions, stderr io.Writer) (*logging.Logger, error) {
	level := logging.LevelInfo
	if opts.Verbose {
		level = logging.LevelDebug
	}
	if opts.LogLevel != "" {
		parsed, err := logging.ParseLevel(opts.LogLevel)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  opts.LogDir,
		Service: serviceName,
		JSON:    opts.JSONLogs,
		Quiet:   !opts.JSONLogs && !opts.Verbose && opts.LogLevel == "",
		Output:  stderr,
	}), nil
}

func derefResults(results []*bench.Result) []bench.Result {
	out := make([]bench.Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// regressed returns the names of significantly regressed benchmarks.
func regressed(results []*bench.Result) []string {
	var names []string
	for _, r := range results {
		if r != nil && r.Change != nil && r.Change.Significant && r.Change.Verdict == bench.Regressed {
			names = append(names, r.Name)
		}
	}
	return names
}

// runListCommand prints the built-in benchmark names in run order.
func runListCommand(cmd *cobra.Command, _ []string) error {
	benchmarks, err := suites.Filter(suites.Benchmarks(suites.All()), runOpts.Filter)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, name := range suites.Names(benchmarks) {
		fmt.Fprintln(out, name)
	}
	return nil
}
