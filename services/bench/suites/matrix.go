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

	"github.com/AleutianAI/AleutianBench/services/bench/engine"
	"github.com/AleutianAI/AleutianBench/services/bench/measure"
)

// NumMatrices is the number of matrices scaled per iteration.
const NumMatrices = 100

const matrixSeed = 0x4d34

// Matrix4 is a column-major 4x4 float32 matrix.
type Matrix4 [16]float32

// MultiplyScalar scales every element by s with one loop.
func (m *Matrix4) MultiplyScalar(s float32) *Matrix4 {
	for i := range m {
		m[i] *= s
	}
	return m
}

// MultiplyScalarUnrolled scales every element by s, four lanes at a time.
func (m *Matrix4) MultiplyScalarUnrolled(s float32) *Matrix4 {
	for i := 0; i < len(m); i += 4 {
		m[i] *= s
		m[i+1] *= s
		m[i+2] *= s
		m[i+3] *= s
	}
	return m
}

func randomMatrices() []Matrix4 {
	rng := rand.New(rand.NewPCG(matrixSeed, matrixSeed))
	ms := make([]Matrix4, NumMatrices)
	for i := range ms {
		for j := range ms[i] {
			ms[i][j] = float32(rng.Float64()*100 - 50)
		}
	}
	return ms
}

// Matrix scales a batch of 4x4 matrices in place. Values are rescaled
// toward 1 after each pass so repeated iterations never overflow.
func Matrix() Suite {
	scale := func(name string, fn func(*Matrix4, float32) *Matrix4) engine.Benchmark {
		ms := randomMatrices()
		factor := float32(5)
		return engine.Func(name, func() float32 {
			s := measure.BlackBox(factor)
			for i := range ms {
				fn(&ms[i], s)
			}
			factor = 1 / factor
			return ms[0][0]
		})
	}

	return Suite{
		Name: "mat4",
		Benchmarks: []engine.Benchmark{
			scale("scale", (*Matrix4).MultiplyScalar),
			scale("scale unrolled", (*Matrix4).MultiplyScalarUnrolled),
		},
	}
}
