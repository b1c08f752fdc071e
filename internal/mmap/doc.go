// Package mmap provides read-only memory-mapped file access.
//
// # Overview
//
// Trace files can be gigabytes in size. Mapping them avoids copying data
// through kernel buffers before the tokenizer copies words into its arena,
// and the sequential access hint lets the kernel read ahead aggressively.
//
// # Usage
//
//	r, err := mmap.OpenReader("trace.txt") // mapped + MADV_SEQUENTIAL
//	if err != nil { ... }
//	defer r.Close()
//	n, err := r.Read(buf)
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): Uses mmap(2) with madvise(2) for access hints
//   - Other platforms: Open returns ErrUnsupported; callers fall back to
//     plain file reads
//
// # Thread Safety
//
// Mapping is safe for concurrent read access and Close is idempotent.
// Reader is not safe for concurrent use.
package mmap
