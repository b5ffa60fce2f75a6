// Package testutil provides testing utilities for dpmm.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe RNG for generating clustered data and
// a minimal prior family that lets samplers be tested without a real
// conjugate prior.
//
// # Clustered Data
//
//	rng := testutil.NewRNG(seed)
//	data, truth := rng.GaussianBlobs([][]float64{{0, 0}, {10, 10}}, 100, 0.5)
//
// # Test Family
//
//	fam := testutil.NewUnitFamily(2)
//	s := fam.FromData(rows) // counts and sums only
package testutil
