package hash

import (
	"hash/crc32"
)

// crc32cTable is pre-computed for CRC32-Castagnoli polynomial.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// Bucket maps data to a slot in [0, n). n must be positive.
func Bucket(data []byte, n uint32) uint32 {
	if n <= 1 {
		return 0
	}
	return CRC32C(data) % n
}
