// Package testutil provides testing utilities for the virtualizer.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe RNG that generates report-like page
// payloads and skewed access patterns.
//
// # Page Generation
//
//	rng := testutil.NewRNG(seed)
//	p := rng.Page(7, 40, 6) // page 7, 40 rows of 6 cells
//
// # Access Patterns
//
//	idx := rng.Skewed(len(pages)) // hot pages are revisited more often
package testutil
