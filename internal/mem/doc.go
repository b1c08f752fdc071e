// Package mem provides memory allocation utilities.
//
// # Aligned Buffers
//
// AlignedBuffers carves equally sized, 64-byte aligned buffers out of a
// single allocation. The trace reader uses it for its ping-pong read buffers
// so both halves start on a cache line.
package mem
