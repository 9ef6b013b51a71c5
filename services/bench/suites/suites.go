// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package suites holds the built-in benchmarks shipped with the CLI.
//
// Each suite is a small, well-known workload (factorials, array sorts,
// 4x4 matrix scaling) useful for checking the harness itself and for
// comparing machines. Inputs are generated from fixed seeds so two runs
// measure identical work.
package suites

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/AleutianAI/AleutianBench/services/bench/engine"
)

// Suite is a named group of benchmarks.
type Suite struct {
	Name       string
	Benchmarks []engine.Benchmark
}

// All returns every built-in suite in a stable order.
func All() []Suite {
	return []Suite{
		Factorial(),
		Sort(),
		Matrix(),
	}
}

// Benchmarks flattens suites into one list, prefixing each benchmark
// name with "<suite>/".
func Benchmarks(suites []Suite) []engine.Benchmark {
	var out []engine.Benchmark
	for _, s := range suites {
		for _, b := range s.Benchmarks {
			b.Name = s.Name + "/" + b.Name
			out = append(out, b)
		}
	}
	return out
}

// Filter keeps the benchmarks whose full name matches pattern. An empty
// pattern keeps everything.
func Filter(benchmarks []engine.Benchmark, pattern string) ([]engine.Benchmark, error) {
	if pattern == "" {
		return benchmarks, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", pattern, err)
	}
	return slices.DeleteFunc(slices.Clone(benchmarks), func(b engine.Benchmark) bool {
		return !re.MatchString(b.Name)
	}), nil
}

// Names returns the names of benchmarks in order.
func Names(benchmarks []engine.Benchmark) []string {
	names := make([]string, len(benchmarks))
	for i, b := range benchmarks {
		names[i] = b.Name
	}
	return names
}
