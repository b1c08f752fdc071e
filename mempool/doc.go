// Package mempool provides a page-backed bump allocator with a two-phase
// reserve/commit protocol.
//
// A Pool hands out contiguous runs of a single element type. Variable-length
// content is written into a worst-case sized reservation and only the used
// prefix is committed, so strings and word arrays are stored without a second
// copy or a resizing allocation.
//
// # Usage
//
//	chars, err := mempool.New[byte](256)
//	if err != nil { ... }
//	defer chars.Free()
//
//	scratch, _ := chars.Reserve(maxLen)   // worst case
//	n := copy(scratch, word)
//	stored, _ := chars.Commit(n)          // only n bytes become permanent
//
// # Lifecycle
//
//   - Reserve grows the pool on demand; a new page is sized to the page
//     capacity, or to the request when it is larger.
//   - Reset rewinds every page for reuse without returning memory.
//   - Free drops all pages. The pool cannot be used afterwards.
//
// # Memory Limits
//
// A MemoryAcquirer (for example resource.Controller) is charged for every page.
// If it refuses, Reserve fails with an error wrapping ErrExhausted. That is the
// only failure of a well-formed Reserve and it is never retried.
//
// # Thread Safety
//
// A Pool is not safe for concurrent use. Use one pool per goroutine.
package mempool
