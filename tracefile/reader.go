package tracefile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/tracekit/internal/conv"
	"github.com/hupe1980/tracekit/internal/fs"
	"github.com/hupe1980/tracekit/internal/mem"
	"github.com/hupe1980/tracekit/mempool"
	"github.com/hupe1980/tracekit/resource"
)

const streamName = "<stream>"

// delim marks word separators; blank is delim without the newline.
var (
	blank = [256]bool{' ': true, '\t': true, '\r': true, '\v': true, '\f': true}
	delim = [256]bool{' ': true, '\t': true, '\r': true, '\v': true, '\f': true, '\n': true}
)

// Reader splits a byte stream into lines of whitespace-separated words.
//
// Input is read in chunks into two alternating buffers. Words are copied
// into a character arena, zero terminated; a line's word slices live in a
// pointer arena. A Reader is not safe for concurrent use.
type Reader struct {
	cfg        Config
	logger     *slog.Logger
	rc         *resource.Controller
	decompress bool

	src    io.Reader
	format Format
	owned  []io.Closer
	codecs []io.Closer

	bufs    [][]byte
	bufMem  int64
	active  int
	n       int
	pos     int
	drained bool
	eof     bool
	err     error
	fatal   error

	chars     *mempool.Pool[byte]
	ptrs      *mempool.Pool[[]byte]
	truncated *roaring.Bitmap
	gen       uint32
	closed    bool

	lines          int
	words          int64
	bytesRead      int64
	truncatedWords int64
}

// Open opens name through the configured file system and reads the first
// chunk. Compressed traces are decoded unless WithDecompression(false) is
// given. An open failure is returned as *OpenError.
func Open(ctx context.Context, name string, opts ...Option) (*Reader, error) {
	o := newOptions(opts, true)

	f, err := o.fs.Open(name)
	if err != nil {
		return nil, &OpenError{Name: name, Err: err}
	}

	r, err := newReader(ctx, name, f, o, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

// NewReader tokenizes src and reads the first chunk. src is closed by the
// reader only when passed through WithCloser.
func NewReader(ctx context.Context, src io.Reader, opts ...Option) (*Reader, error) {
	return newReader(ctx, streamName, src, newOptions(opts, false), nil)
}

func newOptions(opts []Option, decompress bool) options {
	o := options{fs: fs.Default}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = fs.Default
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.decompress == nil {
		o.decompress = &decompress
	}
	return o
}

func newReader(ctx context.Context, name string, src io.Reader, o options, file io.Closer) (*Reader, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	cfg := o.cfg.withDefaults()

	bufMem := 2 * int64(cfg.BufferSize)
	if err := o.controller.AcquireMemory(bufMem); err != nil {
		return nil, fmt.Errorf("%w: read buffers of %d bytes: %w", mempool.ErrExhausted, bufMem, err)
	}

	var popts []mempool.Option
	if o.controller != nil {
		popts = append(popts, mempool.WithMemoryAcquirer(o.controller))
	}
	chars, err := mempool.New[byte](cfg.CharPages, append(popts, mempool.WithName("tracefile-chars"))...)
	if err != nil {
		o.controller.ReleaseMemory(bufMem)
		return nil, err
	}
	ptrs, err := mempool.New[[]byte](cfg.PointerPages, append(popts, mempool.WithName("tracefile-words"))...)
	if err != nil {
		chars.Free()
		o.controller.ReleaseMemory(bufMem)
		return nil, err
	}

	r := &Reader{
		cfg:        cfg,
		logger:     o.logger,
		rc:         o.controller,
		decompress: *o.decompress,
		bufs:       mem.AlignedBuffers(2, cfg.BufferSize),
		bufMem:     bufMem,
		chars:      chars,
		ptrs:       ptrs,
		truncated:  roaring.New(),
		gen:        1,
	}
	if file != nil {
		r.owned = append(r.owned, file)
	}
	if o.closer != nil {
		r.owned = append(r.owned, o.closer)
	}

	if err := r.attach(ctx, name, src); err != nil {
		r.owned = nil
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// attach installs src as the input stream and performs the first read.
func (r *Reader) attach(ctx context.Context, name string, src io.Reader) error {
	r.src = nil
	r.n, r.pos = 0, 0
	r.drained, r.eof, r.err = true, true, nil

	src = resource.NewRateLimitedReader(ctx, src, r.rc)
	r.format = FormatPlain
	if r.decompress {
		format, peeked := Detect(src)
		dec, closer, err := decoder(format, peeked)
		if err != nil {
			return &OpenError{Name: name, Err: err}
		}
		if closer != nil {
			r.codecs = append(r.codecs, closer)
		}
		src = dec
		r.format = format
	}

	r.src = src
	r.active = 1
	r.drained, r.eof = false, false
	r.fill()

	r.logger.Debug("trace stream attached", "name", name, "format", r.format.String(), "eof", r.eof)
	return nil
}

// fill makes sure the active buffer has unread bytes, refilling the other
// buffer and swapping roles when it is used up. It reports false once the
// stream has ended.
func (r *Reader) fill() bool {
	if r.pos < r.n {
		return true
	}
	if r.eof {
		return false
	}
	if r.drained {
		r.finish()
		return false
	}

	r.active ^= 1
	r.pos = 0
	n, err := r.src.Read(r.bufs[r.active])
	r.n = max(n, 0)
	r.bytesRead += int64(r.n)

	if err != nil {
		r.drained = true
		if !errors.Is(err, io.EOF) {
			r.err = err
			r.logger.Warn("trace read failed", "error", err, "bytes", r.bytesRead)
		}
	}
	if r.n == 0 {
		r.finish()
		return false
	}
	return true
}

func (r *Reader) finish() {
	r.eof = true
	r.logger.Debug("trace stream ended", "lines", r.lines, "bytes", r.bytesRead)
}

// skipBlank consumes separators. It reports whether a word starts at the
// cursor; false means the line's newline was consumed or the stream ended.
func (r *Reader) skipBlank() bool {
	for r.fill() {
		buf := r.bufs[r.active][r.pos:r.n]
		for i, c := range buf {
			if c == '\n' {
				r.pos += i + 1
				return false
			}
			if !blank[c] {
				r.pos += i
				return true
			}
		}
		r.pos = r.n
	}
	return false
}

// scanWord copies the word at the cursor into dst and returns its length.
// Bytes that do not fit are consumed and dropped.
func (r *Reader) scanWord(dst []byte) int {
	n, seen := 0, 0
	for r.fill() {
		buf := r.bufs[r.active][r.pos:r.n]
		end := len(buf)
		for i, c := range buf {
			if delim[c] {
				end = i
				break
			}
		}
		n += copy(dst[n:], buf[:end])
		seen += end
		r.pos += end
		if end < len(buf) {
			break
		}
	}
	if seen > n {
		r.truncatedWords++
	}
	return n
}

// skipLine discards the rest of the line including its newline and reports
// whether it held another word.
func (r *Reader) skipLine() bool {
	more := false
	for r.fill() {
		buf := r.bufs[r.active][r.pos:r.n]
		i := bytes.IndexByte(buf, '\n')
		seg := buf
		if i >= 0 {
			seg = buf[:i]
		}
		if !more {
			for _, c := range seg {
				if !blank[c] {
					more = true
					break
				}
			}
		}
		if i >= 0 {
			r.pos += i + 1
			return more
		}
		r.pos = r.n
	}
	return more
}

// ReadLine tokenizes the next line into line and returns its word count.
// Zero means an empty line or the end of the stream; AtEnd tells them
// apart. Words beyond MaxColumns are dropped and the line is recorded as
// truncated. The only errors are arena exhaustion and ErrClosed. Exhaustion
// is final: later calls return the same error even if memory is freed.
func (r *Reader) ReadLine(line *Line) (int, error) {
	if r.closed {
		line.reset(0)
		return 0, ErrClosed
	}
	line.reset(r.gen)
	if r.fatal != nil {
		return 0, r.fatal
	}
	if !r.fill() {
		return 0, nil
	}

	ptrs, err := r.ptrs.Reserve(r.cfg.MaxColumns)
	if err != nil {
		return 0, r.abort(err)
	}
	r.lines++

	col := 0
	for col < r.cfg.MaxColumns && r.skipBlank() {
		scratch, err := r.chars.Reserve(r.cfg.MaxWordLen + 1)
		if err != nil {
			return 0, r.abort(err)
		}
		n := r.scanWord(scratch[:r.cfg.MaxWordLen])
		scratch[n] = 0
		word, err := r.chars.Commit(n + 1)
		if err != nil {
			return 0, r.abort(err)
		}
		ptrs[col] = word[:n:n]
		col++
	}
	if col == r.cfg.MaxColumns && r.skipLine() {
		r.truncated.Add(conv.SaturateUint32(r.lines))
	}

	words, err := r.ptrs.Commit(col)
	if err != nil {
		return 0, r.abort(err)
	}
	r.words += int64(col)

	// Look ahead so AtEnd is accurate right after the last line.
	r.fill()

	line.Words = words
	line.Number = r.lines
	return col, nil
}

// abort ends the stream after an arena failure. The cursor may sit inside
// a line, so every later ReadLine returns err until ResetSource.
func (r *Reader) abort(err error) error {
	r.fatal = err
	r.eof = true
	r.logger.Warn("trace reader aborted", "line", r.lines, "error", err)
	return err
}

// AtEnd reports whether the stream has ended. It never reverts to false
// until ResetSource.
func (r *Reader) AtEnd() bool {
	return r.eof
}

// Err returns the first read error other than io.EOF. A read error ends the
// stream like EOF does.
func (r *Reader) Err() error {
	return r.err
}

// Format returns the detected stream encoding.
func (r *Reader) Format() Format {
	return r.format
}

// Lines returns the number of lines read from the current stream.
func (r *Reader) Lines() int {
	return r.lines
}

// Valid reports whether line was filled since the last arena reset.
func (r *Reader) Valid(line *Line) bool {
	return line != nil && !r.closed && line.gen == r.gen
}

// IsTruncated reports whether line number n had more than MaxColumns words.
func (r *Reader) IsTruncated(n int) bool {
	if n <= 0 {
		return false
	}
	return r.truncated.Contains(conv.SaturateUint32(n))
}

// Truncated returns the numbers of all truncated lines in ascending order.
func (r *Reader) Truncated() []uint32 {
	return r.truncated.ToArray()
}

// Reset rewinds both arenas and keeps the stream position, so a long trace
// can be processed in windows with bounded memory. All lines handed out
// before become stale.
func (r *Reader) Reset() {
	if r.closed {
		return
	}
	r.chars.Reset()
	r.ptrs.Reset()
	r.gen++
	r.logger.Debug("trace reader arenas reset", "line", r.lines)
}

// ResetSource closes the owned stream and continues with src, starting at
// line 1. src is not owned by the reader.
func (r *Reader) ResetSource(ctx context.Context, src io.Reader) error {
	if r.closed {
		return ErrClosed
	}

	err := r.closeSources()
	r.Reset()
	r.truncated.Clear()
	r.fatal = nil
	r.lines = 0
	r.words = 0
	r.bytesRead = 0
	r.truncatedWords = 0

	if aerr := r.attach(ctx, streamName, src); aerr != nil {
		return errors.Join(err, aerr)
	}
	return err
}

func (r *Reader) closeSources() error {
	var errs []error
	for i := len(r.codecs) - 1; i >= 0; i-- {
		errs = append(errs, r.codecs[i].Close())
	}
	for _, c := range r.owned {
		errs = append(errs, c.Close())
	}
	r.codecs = nil
	r.owned = nil
	r.src = nil
	return errors.Join(errs...)
}

// Close releases the buffers, the arenas and the owned stream.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.closeSources()
	r.chars.Free()
	r.ptrs.Free()
	r.rc.ReleaseMemory(r.bufMem)
	r.bufMem = 0
	r.bufs = nil
	r.n, r.pos = 0, 0
	r.eof = true
	r.gen++
	return err
}

// Stats describes the reader's progress and memory.
type Stats struct {
	Lines          int
	Words          int64
	BytesRead      int64 // decoded bytes
	TruncatedLines uint64
	TruncatedWords int64
	Format         Format
	Chars          mempool.Stats
	Pointers       mempool.Stats
}

// Stats returns the current statistics.
func (r *Reader) Stats() Stats {
	return Stats{
		Lines:          r.lines,
		Words:          r.words,
		BytesRead:      r.bytesRead,
		TruncatedLines: r.truncated.GetCardinality(),
		TruncatedWords: r.truncatedWords,
		Format:         r.format,
		Chars:          r.chars.Stats(),
		Pointers:       r.ptrs.Stats(),
	}
}
