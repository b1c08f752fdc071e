// Package conv provides checked integer conversions.
//
// Counters and line numbers are stored in 32 bits (roaring bitmaps and
// per-bucket statistics are uint32). These helpers make the narrowing
// explicit instead of silently wrapping.
package conv
