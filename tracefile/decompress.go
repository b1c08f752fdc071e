package tracefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Format identifies the encoding of a trace stream.
type Format uint8

const (
	// FormatPlain is uncompressed text.
	FormatPlain Format = iota
	// FormatGzip is a gzip member stream.
	FormatGzip
	// FormatZstd is a zstandard frame stream.
	FormatZstd
	// FormatLZ4 is an LZ4 frame stream.
	FormatLZ4
)

func (f Format) String() string {
	switch f {
	case FormatPlain:
		return "plain"
	case FormatGzip:
		return "gzip"
	case FormatZstd:
		return "zstd"
	case FormatLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

const magicLen = 4

var magics = []struct {
	format Format
	magic  []byte
}{
	{FormatGzip, []byte{0x1f, 0x8b}},
	{FormatZstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{FormatLZ4, []byte{0x04, 0x22, 0x4d, 0x18}},
}

type failedReader struct{ err error }

func (r failedReader) Read([]byte) (int, error) { return 0, r.err }

// Detect peeks at the head of r and returns its format together with a
// reader that still yields the whole stream. A read error while peeking is
// replayed by the returned reader after the bytes already consumed.
func Detect(r io.Reader) (Format, io.Reader) {
	head := make([]byte, magicLen)
	n, err := io.ReadFull(r, head)
	head = head[:n]

	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return FormatPlain, bytes.NewReader(head)
	default:
		return FormatPlain, io.MultiReader(bytes.NewReader(head), failedReader{err})
	}

	rest := io.MultiReader(bytes.NewReader(head), r)
	for _, m := range magics {
		if bytes.HasPrefix(head, m.magic) {
			return m.format, rest
		}
	}
	return FormatPlain, rest
}

// decoder wraps r in the decompressor for format. The closer, if any, must
// be closed once the stream is done.
func decoder(format Format, r io.Reader) (io.Reader, io.Closer, error) {
	switch format {
	case FormatPlain:
		return r, nil, nil
	case FormatGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("tracefile: gzip stream: %w", err)
		}
		return zr, zr, nil
	case FormatZstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, fmt.Errorf("tracefile: zstd stream: %w", err)
		}
		rc := zr.IOReadCloser()
		return rc, rc, nil
	case FormatLZ4:
		return lz4.NewReader(r), nil, nil
	default:
		return nil, nil, fmt.Errorf("tracefile: unknown format %v", format)
	}
}
