package benchmark_test

import (
	"testing"

	"github.com/hupe1980/tracekit/testutil"
)

// ============================================================================
// Benchmark Configuration
// ============================================================================

// Standard trace sizes in lines.
const (
	sizeSmall  = 10_000  // Quick iteration
	sizeMedium = 100_000 // Default CI
)

// Seed for deterministic benchmarks - enables reproducible comparisons.
const benchSeed = 42

// ============================================================================
// Benchmark Helpers
// ============================================================================

// benchTrace returns a deterministic synthetic ftrace log of n lines.
func benchTrace(n int) []byte {
	return []byte(testutil.NewRNG(benchSeed).Trace(n))
}

// writeBenchTrace writes a trace of n lines encoded with codec and returns
// its path and decoded size.
func writeBenchTrace(b *testing.B, n int, codec testutil.Codec) (string, int64) {
	b.Helper()
	data := benchTrace(n)
	path := testutil.WriteTrace(b, b.TempDir(), "trace."+string(codec), codec, data)
	return path, int64(len(data))
}
