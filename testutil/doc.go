// Package testutil provides testing utilities for tracekit.
//
// This package is intended for use in tests and benchmarks only.
// It generates synthetic ftrace-style traces from a seeded RNG and writes
// them plain or compressed.
//
// # Synthetic Traces
//
//	rng := testutil.NewRNG(seed)
//	trace := rng.Trace(10000)          // header plus 10000 event lines
//	word := rng.Word(12)               // random token of up to 12 bytes
//
// Event names are drawn with a Zipf skew, so a handful of events dominate
// like they do in real scheduler traces.
//
// # Compressed Fixtures
//
//	path := testutil.WriteTrace(t, t.TempDir(), "trace.zst", testutil.CodecZstd, []byte(trace))
package testutil
