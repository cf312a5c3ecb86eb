// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

// Package embedding holds the fixed-dimension face embedding type and the
// vector math shared by the matching pipeline and its store backends.
package embedding

import "math"

// Dim is the fixed length of a face embedding vector. Any other length is
// rejected before normalization or storage.
const Dim = 128

// Normalize rescales v to unit L2 norm in place and returns it.
// A zero vector has no direction to preserve; it is returned unchanged.
func Normalize(v []float32) []float32 {
	n := Norm(v)
	if n == 0 {
		return v
	}
	inv := float32(1 / n)
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b. Vectors of mismatched
// length or zero magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (na * nb)
}

// Scrub overwrites v with zeros. Best effort: the runtime may already have
// copied the backing array, so this reduces exposure rather than guaranteeing
// erasure.
func Scrub(v []float32) {
	for i := range v {
		v[i] = 0
	}
}
