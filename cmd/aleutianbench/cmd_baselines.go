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
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianBench/pkg/ux"
	"github.com/AleutianAI/AleutianBench/services/bench/baseline"
	"github.com/AleutianAI/AleutianBench/services/bench/config"
	"github.com/AleutianAI/AleutianBench/services/bench/report"
)

// defaultConfigPath is where "config init" writes without an argument.
const defaultConfigPath = "aleutianbench.yaml"

// withStore opens the store selected by the global flags, runs fn and
// closes the store.
func withStore(kind, dir string, fn func(baseline.Store) error) error {
	store, closeStore, err := openStore(kind, dir, slog.New(slog.DiscardHandler))
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("store %q keeps no baselines", kind)
	}
	return errors.Join(fn(store), closeStore())
}

// runListBaselines prints every stored key in sorted order.
func runListBaselines(cmd *cobra.Command, _ []string) error {
	return withStore(storeKind, storeDir, func(store baseline.Store) error {
		return listBaselines(cmd.Context(), store, cmd.OutOrStdout())
	})
}

func listBaselines(ctx context.Context, store baseline.Store, w io.Writer) error {
	keys, err := store.List(ctx)
	if err != nil {
		return err
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintln(w, k)
	}
	return nil
}

// runShowBaseline prints the estimates of one stored record.
func runShowBaseline(cmd *cobra.Command, args []string) error {
	return withStore(storeKind, storeDir, func(store baseline.Store) error {
		printer := ux.NewPrinter(cmd.OutOrStdout(), personality())
		return showBaseline(cmd.Context(), store, args[0], printer)
	})
}

func showBaseline(ctx context.Context, store baseline.Store, key string, p *ux.Printer) error {
	rec, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "benchmark:   %s\n", rec.Benchmark)
	fmt.Fprintf(&b, "baseline:    %s\n", rec.Name)
	fmt.Fprintf(&b, "run id:      %s\n", rec.RunID)
	fmt.Fprintf(&b, "updated:     %s\n", rec.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "sample size: %d\n", rec.SampleSize)
	if rec.Estimates.Slope != nil {
		fmt.Fprintf(&b, "slope:       %s\n", report.FormatDuration(rec.Estimates.Slope.Point))
	}
	fmt.Fprintf(&b, "mean:        %s\n", report.FormatDuration(rec.Estimates.Mean.Point))
	fmt.Fprintf(&b, "median:      %s\n", report.FormatDuration(rec.Estimates.Median.Point))
	fmt.Fprintf(&b, "std dev:     %s", report.FormatDuration(rec.Estimates.StdDev.Point))

	p.Box(key, b.String())
	return nil
}

// runDeleteBaselines removes every key given. A key without a "/" is
// taken as a baseline name and removes all of its benchmarks. Stores that
// implement baseline.Compactor are compacted afterwards.
func runDeleteBaselines(cmd *cobra.Command, args []string) error {
	return withStore(storeKind, storeDir, func(store baseline.Store) error {
		deleted, err := deleteBaselines(cmd.Context(), store, args)
		for _, k := range deleted {
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", k)
		}
		return err
	})
}

func deleteBaselines(ctx context.Context, store baseline.Store, args []string) ([]string, error) {
	var targets []string
	var errs []error

	for _, arg := range args {
		if strings.Contains(arg, "/") {
			targets = append(targets, arg)
			continue
		}
		keys, err := store.List(ctx)
		if err != nil {
			return nil, err
		}
		prefix := baseline.Key(arg, "")
		n := len(targets)
		for _, k := range keys {
			if strings.HasPrefix(k, prefix) {
				targets = append(targets, k)
			}
		}
		if len(targets) == n {
			errs = append(errs, fmt.Errorf("%s: %w", arg, baseline.ErrBaselineNotFound))
		}
	}

	slices.Sort(targets)
	targets = slices.Compact(targets)

	var deleted []string
	for _, k := range targets {
		if err := store.Delete(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		deleted = append(deleted, k)
	}

	// reclaim disk space here, never during a run
	if c, ok := store.(baseline.Compactor); ok && len(deleted) > 0 {
		if _, err := c.Compact(ctx); err != nil {
			errs = append(errs, fmt.Errorf("compact store: %w", err))
		}
	}
	return deleted, errors.Join(errs...)
}

// runConfigInit writes the default configuration file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	path := defaultConfigPath
	if len(args) == 1 {
		path = args[0]
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
