// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package suites

import (
	"math/rand/v2"
	"slices"

	"github.com/AleutianAI/AleutianBench/services/bench/engine"
)

// SortLength is the number of elements sorted per iteration.
const SortLength = 99

const sortSeed = 0x5eed

// sortInput returns the shared unsorted array.
func sortInput() []float64 {
	rng := rand.New(rand.NewPCG(sortSeed, sortSeed))
	in := make([]float64, SortLength)
	for i := range in {
		in[i] = rng.Float64()
	}
	return in
}

// Sort runs several sorting algorithms over the same input. Every
// iteration copies the unsorted input into a scratch buffer first, so
// the copy is part of each measurement.
func Sort() Suite {
	input := sortInput()

	sorter := func(name string, sortFn func([]float64)) engine.Benchmark {
		work := make([]float64, len(input))
		return engine.Func(name, func() float64 {
			copy(work, input)
			sortFn(work)
			return work[0]
		})
	}

	return Suite{
		Name: "sort",
		Benchmarks: []engine.Benchmark{
			sorter("bubble", BubbleSort),
			sorter("insertion", InsertionSort),
			sorter("selection", SelectionSort),
			sorter("merge", MergeSort),
			sorter("quick", QuickSort),
			sorter("stdlib", slices.Sort[[]float64]),
		},
	}
}

// BubbleSort sorts a in place.
func BubbleSort(a []float64) {
	for n := len(a); n > 1; n-- {
		swapped := false
		for i := 1; i < n; i++ {
			if a[i-1] > a[i] {
				a[i-1], a[i] = a[i], a[i-1]
				swapped = true
			}
		}
		if !swapped {
			return
		}
	}
}

// InsertionSort sorts a in place.
func InsertionSort(a []float64) {
	for i := 1; i < len(a); i++ {
		v := a[i]
		j := i - 1
		for ; j >= 0 && a[j] > v; j-- {
			a[j+1] = a[j]
		}
		a[j+1] = v
	}
}

// SelectionSort sorts a in place.
func SelectionSort(a []float64) {
	for i := 0; i < len(a)-1; i++ {
		lo := i
		for j := i + 1; j < len(a); j++ {
			if a[j] < a[lo] {
				lo = j
			}
		}
		a[i], a[lo] = a[lo], a[i]
	}
}

// MergeSort sorts a using a scratch buffer of the same length.
func MergeSort(a []float64) {
	if len(a) < 2 {
		return
	}
	mergeSort(a, make([]float64, len(a)))
}

func mergeSort(a, scratch []float64) {
	if len(a) < 2 {
		return
	}
	mid := len(a) / 2
	mergeSort(a[:mid], scratch[:mid])
	mergeSort(a[mid:], scratch[mid:])

	copy(scratch, a)
	i, j, k := 0, mid, 0
	for i < mid && j < len(a) {
		if scratch[i] <= scratch[j] {
			a[k] = scratch[i]
			i++
		} else {
			a[k] = scratch[j]
			j++
		}
		k++
	}
	k += copy(a[k:], scratch[i:mid])
	copy(a[k:], scratch[j:len(a)])
}

// QuickSort sorts a in place with Lomuto partitioning.
func QuickSort(a []float64) {
	for len(a) > 1 {
		p := partition(a)
		// recurse into the smaller side to bound stack depth
		if p < len(a)-p {
			QuickSort(a[:p])
			a = a[p+1:]
		} else {
			QuickSort(a[p+1:])
			a = a[:p]
		}
	}
}

func partition(a []float64) int {
	last := len(a) - 1
	a[len(a)/2], a[last] = a[last], a[len(a)/2]
	pivot := a[last]
	i := 0
	for j := 0; j < last; j++ {
		if a[j] < pivot {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[last] = a[last], a[i]
	return i
}
