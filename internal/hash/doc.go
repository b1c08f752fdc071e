// Package hash provides hashing helpers for the string interning table.
//
// # CRC32-Castagnoli (CRC32C)
//
// Bucket selection uses CRC32-Castagnoli, which Go's hash/crc32 computes with
// hardware instructions when available (SSE4.2 on x86, CRC on ARM):
//
//	Platform          Throughput
//	x86-64 (SSE4.2)   ~20 GB/s
//	ARM64 (CRC)       ~10 GB/s
//	Software          ~2 GB/s
//
// Interned tokens are short (event names, task names, CPU columns), so the
// hash is dominated by call overhead rather than throughput.
//
// # Usage
//
//	b := hash.Bucket(token, uint32(len(table)))
package hash
