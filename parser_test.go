package tracekit_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tracekit"
	"github.com/hupe1980/tracekit/resource"
	"github.com/hupe1980/tracekit/strpool"
	"github.com/hupe1980/tracekit/testutil"
	"github.com/hupe1980/tracekit/tracefile"
)

func fields(input string) [][]string {
	lines := strings.Split(input, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	out := make([][]string, len(lines))
	for i, l := range lines {
		out[i] = strings.Fields(l)
	}
	return out
}

func scanAll(t *testing.T, p *tracekit.Parser) ([][]string, [][]string) {
	t.Helper()
	var words, interned [][]string
	err := p.Scan(t.Context(), func(line *tracefile.Line, recs []*strpool.Record) error {
		require.Len(t, recs, line.Len())
		words = append(words, line.Strings())
		row := make([]string, len(recs))
		for i, r := range recs {
			row[i] = r.String()
		}
		interned = append(interned, row)
		return nil
	})
	require.NoError(t, err)
	return words, interned
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	args := m.Called(ctx, name)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

type trackingCloser struct {
	io.Reader
	closed int
}

func (c *trackingCloser) Close() error {
	c.closed++
	return nil
}

func TestParser_Scan(t *testing.T) {
	trace := testutil.NewRNG(7).Trace(500)
	want := fields(trace)
	path := testutil.WriteTrace(t, t.TempDir(), "trace.txt", testutil.CodecNone, []byte(trace))

	p, err := tracekit.Open(t.Context(), path)
	require.NoError(t, err)
	defer p.Close()

	words, interned := scanAll(t, p)
	assert.Equal(t, want, words)
	assert.Equal(t, want, interned)
	assert.True(t, p.AtEnd())
	assert.NoError(t, p.Err())

	distinct := map[string]struct{}{}
	total := 0
	for _, row := range want {
		for _, w := range row {
			distinct[w] = struct{}{}
			total++
		}
	}

	stats := p.Stats()
	assert.Equal(t, path, stats.Name)
	assert.Equal(t, len(want), stats.Reader.Lines)
	assert.Equal(t, int64(total), stats.Reader.Words)
	assert.Equal(t, len(distinct), stats.Pool.Records)
	assert.Equal(t, uint64(len(distinct)), stats.Pool.Allocs)
	assert.Equal(t, uint64(total), stats.Pool.Allocs+stats.Pool.Reuses)
}

func TestParser_InternIdentity(t *testing.T) {
	p, err := tracekit.New(t.Context(), strings.NewReader("sched_switch cpu=0\nsched_switch cpu=1\n"))
	require.NoError(t, err)
	defer p.Close()

	var first *strpool.Record
	err = p.Scan(t.Context(), func(line *tracefile.Line, recs []*strpool.Record) error {
		if first == nil {
			first = recs[0]
			return nil
		}
		assert.Same(t, first, recs[0])
		return nil
	})
	require.NoError(t, err)

	rec, err := p.Intern([]byte("sched_switch"))
	require.NoError(t, err)
	assert.Same(t, first, rec)
	assert.Equal(t, "<stream>", p.Name())
}

func TestParser_EmptyLines(t *testing.T) {
	p, err := tracekit.New(t.Context(), strings.NewReader("a b a\n\nc\n"))
	require.NoError(t, err)
	defer p.Close()

	words, _ := scanAll(t, p)
	assert.Equal(t, [][]string{{"a", "b", "a"}, {}, {"c"}}, words)
	assert.Equal(t, 3, p.Stats().Pool.Records)
}

func TestParser_Compressed(t *testing.T) {
	trace := testutil.NewRNG(11).Trace(300)
	want := fields(trace)

	for _, codec := range testutil.Codecs() {
		t.Run(string(codec), func(t *testing.T) {
			path := testutil.WriteTrace(t, t.TempDir(), "trace."+string(codec), codec, []byte(trace))

			p, err := tracekit.Open(t.Context(), path, tracekit.WithReaderConfig(tracefile.Config{BufferSize: 1024}))
			require.NoError(t, err)
			defer p.Close()

			words, _ := scanAll(t, p)
			assert.Equal(t, want, words)
			assert.Equal(t, string(codec), p.Stats().Reader.Format.String())
		})
	}

	t.Run("stream needs opt in", func(t *testing.T) {
		data, err := testutil.Compress(testutil.CodecZstd, []byte(trace))
		require.NoError(t, err)

		p, err := tracekit.New(t.Context(), bytes.NewReader(data), tracekit.WithDecompression(true))
		require.NoError(t, err)
		defer p.Close()

		words, _ := scanAll(t, p)
		assert.Equal(t, want, words)
	})
}

func TestParser_Source(t *testing.T) {
	body := &trackingCloser{Reader: strings.NewReader("x y\nz\n")}
	src := &mockSource{}
	src.On("Open", mock.Anything, "host1/trace.txt").Return(body, nil).Once()

	p, err := tracekit.Open(t.Context(), "host1/trace.txt", tracekit.WithSource(src))
	require.NoError(t, err)

	words, _ := scanAll(t, p)
	assert.Equal(t, [][]string{{"x", "y"}, {"z"}}, words)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, body.closed)
	src.AssertExpectations(t)
}

func TestOpen_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		metrics := &tracekit.BasicMetricsCollector{}
		_, err := tracekit.Open(t.Context(), "/does/not/exist.txt", tracekit.WithMetricsCollector(metrics))

		var ote *tracekit.ErrOpenTrace
		require.ErrorAs(t, err, &ote)
		assert.Equal(t, "/does/not/exist.txt", ote.Name)
		assert.ErrorIs(t, err, tracekit.ErrNotFound)
		assert.ErrorIs(t, err, tracefile.ErrOpen)

		stats := metrics.GetStats()
		assert.Equal(t, int64(1), stats.OpenCount)
		assert.Equal(t, int64(1), stats.OpenErrors)
	})

	t.Run("source failure", func(t *testing.T) {
		boom := errors.New("access denied")
		src := &mockSource{}
		src.On("Open", mock.Anything, "k").Return(nil, boom)

		_, err := tracekit.Open(t.Context(), "k", tracekit.WithSource(src))
		var ote *tracekit.ErrOpenTrace
		require.ErrorAs(t, err, &ote)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), `"k"`)
	})

	t.Run("corrupt stream closes source", func(t *testing.T) {
		body := &trackingCloser{Reader: bytes.NewReader([]byte{0x1f, 0x8b, 0x00, 0x00, 0x01})}
		src := &mockSource{}
		src.On("Open", mock.Anything, "bad.gz").Return(body, nil)

		_, err := tracekit.Open(t.Context(), "bad.gz", tracekit.WithSource(src))
		var ote *tracekit.ErrOpenTrace
		require.ErrorAs(t, err, &ote)
		assert.ErrorIs(t, err, tracefile.ErrOpen)
		assert.Equal(t, 1, body.closed)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := tracekit.New(t.Context(), strings.NewReader("a\n"),
			tracekit.WithReaderConfig(tracefile.Config{MaxColumns: -1}))
		assert.ErrorIs(t, err, tracefile.ErrInvalidConfig)
	})

	t.Run("memory limit", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MemoryLimitBytes: 1024})
		_, err := tracekit.New(t.Context(), strings.NewReader("a\n"),
			tracekit.WithResourceController(rc),
			tracekit.WithReaderConfig(tracefile.Config{BufferSize: 4096}))
		assert.ErrorIs(t, err, tracekit.ErrExhausted)
		assert.Equal(t, int64(0), rc.MemoryUsage())
	})
}

func TestScan_Context(t *testing.T) {
	trace := testutil.NewRNG(3).Trace(100)

	t.Run("canceled before", func(t *testing.T) {
		p, err := tracekit.New(t.Context(), strings.NewReader(trace))
		require.NoError(t, err)
		defer p.Close()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		calls := 0
		err = p.Scan(ctx, func(*tracefile.Line, []*strpool.Record) error {
			calls++
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls)
	})

	t.Run("canceled between lines", func(t *testing.T) {
		p, err := tracekit.New(t.Context(), strings.NewReader(trace))
		require.NoError(t, err)
		defer p.Close()

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		calls := 0
		err = p.Scan(ctx, func(*tracefile.Line, []*strpool.Record) error {
			calls++
			if calls == 10 {
				cancel()
			}
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 10, calls)
		assert.False(t, p.AtEnd())
	})
}

func TestScan_CallbackError(t *testing.T) {
	stop := errors.New("stop")
	metrics := &tracekit.BasicMetricsCollector{}

	p, err := tracekit.New(t.Context(), strings.NewReader("a\nb\nc\n"), tracekit.WithMetricsCollector(metrics))
	require.NoError(t, err)
	defer p.Close()

	var seen []string
	err = p.Scan(t.Context(), func(line *tracefile.Line, _ []*strpool.Record) error {
		seen = append(seen, string(line.Word(0)))
		if len(seen) == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"a", "b"}, seen)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.ScanCount)
	assert.Equal(t, int64(1), stats.ScanErrors)
	assert.Equal(t, int64(2), stats.Lines)
}

func TestScan_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	src := io.MultiReader(strings.NewReader("a b\nc"), iotest.ErrReader(boom))

	p, err := tracekit.New(t.Context(), src)
	require.NoError(t, err)
	defer p.Close()

	var words [][]string
	err = p.Scan(t.Context(), func(line *tracefile.Line, _ []*strpool.Record) error {
		words = append(words, line.Strings())
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, words)
	assert.True(t, p.AtEnd())
	assert.ErrorIs(t, p.Err(), boom)
}

func TestScan_Window(t *testing.T) {
	trace := testutil.NewRNG(5).Trace(1000)
	cfg := tracefile.Config{CharPages: 1, PointerPages: 1}

	scan := func(opts ...tracekit.Option) tracekit.Stats {
		metrics := &tracekit.BasicMetricsCollector{}
		opts = append(opts, tracekit.WithReaderConfig(cfg), tracekit.WithMetricsCollector(metrics))
		p, err := tracekit.New(t.Context(), strings.NewReader(trace), opts...)
		require.NoError(t, err)
		defer p.Close()

		require.NoError(t, p.Scan(t.Context(), nil))
		stats := p.Stats()
		assert.Equal(t, int64(stats.Resets), metrics.GetStats().ResetCount)
		return stats
	}

	full := scan()
	windowed := scan(tracekit.WithWindow(10))

	assert.Equal(t, 0, full.Resets)
	assert.Equal(t, full.Reader.Lines/10, windowed.Resets)
	assert.Equal(t, full.Reader.Words, windowed.Reader.Words)
	assert.Equal(t, full.Pool.Records, windowed.Pool.Records)
	assert.Less(t, windowed.Reader.Chars.Pages, full.Reader.Chars.Pages)
}

func TestScan_Exhausted(t *testing.T) {
	opts := []tracekit.Option{
		tracekit.WithReaderConfig(tracefile.Config{BufferSize: 1024, CharPages: 1, PointerPages: 1}),
		tracekit.WithStringPoolConfig(strpool.Config{Buckets: 64, Pages: 16}),
	}

	probe := resource.NewController(resource.Config{})
	p, err := tracekit.New(t.Context(), strings.NewReader(""), append(opts, tracekit.WithResourceController(probe))...)
	require.NoError(t, err)
	initial := probe.MemoryUsage()
	require.NoError(t, p.Close())
	require.Equal(t, int64(0), probe.MemoryUsage())

	rc := resource.NewController(resource.Config{MemoryLimitBytes: initial})
	p, err = tracekit.New(t.Context(), strings.NewReader(testutil.NewRNG(1).Trace(2000)),
		append(opts, tracekit.WithResourceController(rc))...)
	require.NoError(t, err)

	err = p.Scan(t.Context(), nil)
	assert.ErrorIs(t, err, tracekit.ErrExhausted)

	require.NoError(t, p.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestParser_Reset(t *testing.T) {
	metrics := &tracekit.BasicMetricsCollector{}
	p, err := tracekit.New(t.Context(), strings.NewReader("a b\nc d\n"), tracekit.WithMetricsCollector(metrics))
	require.NoError(t, err)
	defer p.Close()

	var line tracefile.Line
	_, err = p.ReadLine(&line)
	require.NoError(t, err)
	recs, err := p.InternLine(&line, nil)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	p.Reset(t.Context())
	assert.False(t, p.Pool().Valid(recs[0]))
	assert.False(t, p.Reader().Valid(&line))
	assert.Zero(t, p.Stats().Pool.Records)
	assert.Equal(t, 1, p.Stats().Resets)
	assert.Equal(t, int64(1), metrics.GetStats().ResetCount)

	words, _ := scanAll(t, p)
	assert.Equal(t, [][]string{{"c", "d"}}, words)
}

func TestParser_Truncated(t *testing.T) {
	p, err := tracekit.New(t.Context(), strings.NewReader("a b c\nd\ne f g h\n"),
		tracekit.WithReaderConfig(tracefile.Config{MaxColumns: 2}))
	require.NoError(t, err)
	defer p.Close()

	words, _ := scanAll(t, p)
	assert.Equal(t, [][]string{{"a", "b"}, {"d"}, {"e", "f"}}, words)
	assert.Equal(t, []uint32{1, 3}, p.Truncated())
}

func TestParser_Closed(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64 << 20})
	p, err := tracekit.New(t.Context(), strings.NewReader("a\n"), tracekit.WithResourceController(rc))
	require.NoError(t, err)
	assert.Positive(t, p.Stats().Memory)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())

	var line tracefile.Line
	_, err = p.ReadLine(&line)
	assert.ErrorIs(t, err, tracekit.ErrClosed)
	_, err = p.Intern([]byte("a"))
	assert.ErrorIs(t, err, tracekit.ErrClosed)
	_, err = p.InternLine(&line, nil)
	assert.ErrorIs(t, err, tracekit.ErrClosed)
	assert.ErrorIs(t, p.Scan(t.Context(), nil), tracekit.ErrClosed)
	assert.True(t, p.AtEnd())
	assert.NoError(t, p.Err())
	assert.Nil(t, p.Truncated())
	p.Reset(t.Context())
}

func TestParser_Parallel(t *testing.T) {
	const traces = 4

	dir := t.TempDir()
	rng := testutil.NewRNG(21)
	paths := make([]string, traces)
	lines := 0
	for i := range paths {
		trace := rng.Trace(200 + i*50)
		lines += len(fields(trace))
		paths[i] = testutil.WriteTrace(t, dir, "trace"+string(rune('a'+i))+".gz", testutil.CodecGzip, []byte(trace))
	}

	rc := resource.NewController(resource.Config{MaxWorkers: 2})
	metrics := &tracekit.BasicMetricsCollector{}

	var wg sync.WaitGroup
	errs := make([]error, traces)
	for i, path := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rc.AcquireWorker(t.Context()); err != nil {
				errs[i] = err
				return
			}
			defer rc.ReleaseWorker()

			p, err := tracekit.Open(t.Context(), path,
				tracekit.WithResourceController(rc), tracekit.WithMetricsCollector(metrics))
			if err != nil {
				errs[i] = err
				return
			}
			defer p.Close()
			errs[i] = p.Scan(t.Context(), nil)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	stats := metrics.GetStats()
	assert.Equal(t, int64(traces), stats.OpenCount)
	assert.Equal(t, int64(traces), stats.ScanCount)
	assert.Equal(t, int64(lines), stats.Lines)
	assert.Equal(t, int64(0), rc.MemoryUsage())
}
