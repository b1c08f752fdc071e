// Package resource implements the Controller for limits shared by parsers.
//
// The Controller provides centralized management of three resource types:
//
//   - Memory: Track and limit arena memory across parsers (non-blocking, fail-fast)
//   - Workers: Limit how many traces are parsed at the same time
//   - IO: Rate-limit reads from trace sources
//
// # Memory Management
//
// Memory tracking uses a weighted semaphore for hard limits and atomic counters
// for usage tracking. AcquireMemory is non-blocking and returns immediately
// with ErrMemoryLimitExceeded if the limit would be exceeded. Arena pools treat
// that as fatal for the current parse:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB limit
//	})
//	chars, err := mempool.New[byte](256, mempool.WithMemoryAcquirer(rc))
//
// # Worker Limits
//
//	if err := rc.AcquireWorker(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseWorker()
//
// # IO Rate Limiting
//
// Token bucket rate limiter for trace reads:
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 100 * 1024 * 1024, // 100MB/s
//	})
//	r := resource.NewRateLimitedReader(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
