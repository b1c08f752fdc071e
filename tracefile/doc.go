// Package tracefile tokenizes line-oriented trace logs.
//
// A Reader pulls the input in fixed-size chunks into two alternating
// buffers. Each line is split on runs of blanks (space, tab, CR, VT, FF)
// into words that are copied into a character arena; the word slices of a
// line are stored in a pointer arena. Lines are views: they stay valid
// until the reader's arenas are reset.
//
//	r, err := tracefile.Open(ctx, "trace.txt.zst")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	var line tracefile.Line
//	for !r.AtEnd() {
//	    n, err := r.ReadLine(&line)
//	    if err != nil {
//	        return err // arena exhaustion
//	    }
//	    _ = n
//	}
//	if err := r.Err(); err != nil {
//	    return err // the stream ended on a read error
//	}
//
// # Limits
//
// Lines keep at most MaxColumns words; the rest of a longer line is skipped
// and its number recorded (see IsTruncated). Words keep at most MaxWordLen
// bytes. Neither is an error.
//
// # End of stream
//
// A read that returns no data or fails ends the stream for good. AtEnd
// turns true and stays true; Err tells a clean end from a failed read.
//
// # Compressed input
//
// Open detects gzip, zstd and LZ4 frame streams by their magic bytes and
// decodes them on the fly. NewReader does the same with
// WithDecompression(true).
package tracefile
