package mem

import (
	"unsafe"
)

// Alignment is the byte alignment of every buffer (one cache line).
const Alignment = 64

// AlignedBuffers allocates n buffers of size bytes from one backing array.
// Each buffer starts at a 64-byte aligned address and has its capacity
// clipped to size, so appends cannot spill into a neighbour.
func AlignedBuffers(n, size int) [][]byte {
	if n <= 0 || size <= 0 {
		return nil
	}

	stride := (size + Alignment - 1) &^ (Alignment - 1)
	buf := make([]byte, n*stride+Alignment)

	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // unsafe is required for memory alignment
	offset := int((Alignment - (addr & (Alignment - 1))) & (Alignment - 1))

	out := make([][]byte, n)
	for i := range out {
		start := offset + i*stride
		out[i] = buf[start : start+size : start+size]
	}
	return out
}
