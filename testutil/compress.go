package testutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec names a fixture encoding.
type Codec string

const (
	CodecNone Codec = "none"
	CodecGzip Codec = "gzip"
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
)

// Codecs returns every compressed codec.
func Codecs() []Codec {
	return []Codec{CodecGzip, CodecZstd, CodecLZ4}
}

// Compress encodes data with codec.
func Compress(codec Codec, data []byte) ([]byte, error) {
	var (
		buf bytes.Buffer
		w   io.WriteCloser
	)
	switch codec {
	case CodecNone, "":
		return bytes.Clone(data), nil
	case CodecGzip:
		w = gzip.NewWriter(&buf)
	case CodecZstd:
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		w = zw
	case CodecLZ4:
		w = lz4.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("testutil: unknown codec %q", codec)
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTrace writes data encoded with codec to dir/name and returns the path.
func WriteTrace(tb testing.TB, dir, name string, codec Codec, data []byte) string {
	tb.Helper()

	encoded, err := Compress(codec, data)
	if err != nil {
		tb.Fatalf("compress %s: %v", codec, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}
