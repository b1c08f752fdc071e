package testutil

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	t1 := rng.Trace(20)

	rng.Reset()
	t2 := rng.Trace(20)

	assert.Equal(t, t1, t2)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestTrace(t *testing.T) {
	rng := NewRNG(42)
	trace := rng.Trace(100)

	lines := strings.Split(strings.TrimSuffix(trace, "\n"), "\n")
	require.Len(t, lines, 103)
	assert.Equal(t, "# tracer: nop", lines[0])

	for _, l := range lines[3:] {
		f := strings.Fields(l)
		require.GreaterOrEqual(t, len(f), 6, l)
		assert.True(t, strings.HasPrefix(f[1], "["), l)
		assert.True(t, strings.HasSuffix(f[3], ":"), l)
		assert.True(t, strings.HasSuffix(f[4], ":"), l)
	}
}

func TestZipf(t *testing.T) {
	rng := NewRNG(7)
	counts := make([]int, 10)
	for range 10000 {
		counts[rng.Zipf(10, 1.5)]++
	}
	assert.Greater(t, counts[0], counts[9]*5)
	assert.Equal(t, 0, rng.Zipf(1, 1.5))
}

func TestWords(t *testing.T) {
	rng := NewRNG(1)
	for _, w := range rng.Words(500, 8) {
		assert.NotEmpty(t, w)
		assert.LessOrEqual(t, len(w), 8)
		assert.Equal(t, []string{w}, strings.Fields(w))
	}
	assert.Len(t, rng.Word(0), 1)
}

func decompress(t *testing.T, codec Codec, data []byte) []byte {
	t.Helper()

	var r io.Reader
	switch codec {
	case CodecNone:
		return data
	case CodecGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		require.NoError(t, err)
		r = zr
	case CodecZstd:
		zr, err := zstd.NewReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	case CodecLZ4:
		r = lz4.NewReader(bytes.NewReader(data))
	}
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func TestCompress(t *testing.T) {
	data := []byte(NewRNG(3).Trace(50))

	for _, codec := range append(Codecs(), CodecNone) {
		t.Run(string(codec), func(t *testing.T) {
			encoded, err := Compress(codec, data)
			require.NoError(t, err)
			assert.Equal(t, data, decompress(t, codec, encoded))

			path := WriteTrace(t, t.TempDir(), "trace", codec, data)
			onDisk, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, encoded, onDisk)
		})
	}

	_, err := Compress("brotli", data)
	assert.Error(t, err)
}
