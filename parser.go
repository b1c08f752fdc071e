package tracekit

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/tracekit/resource"
	"github.com/hupe1980/tracekit/strpool"
	"github.com/hupe1980/tracekit/tracefile"
)

const streamName = "<stream>"

// Parser tokenizes one trace and interns its words.
//
// Each Parser owns its reader and string pool; nothing is shared between
// parsers except the resource controller and the metrics collector. A
// Parser is not safe for concurrent use.
type Parser struct {
	name    string
	reader  *tracefile.Reader
	pool    *strpool.Pool
	rc      *resource.Controller
	logger  *Logger
	metrics MetricsCollector
	window  int
	resets  int
	closed  bool
}

// Open opens the trace called name and reads its first chunk. Names are
// resolved by the source configured with WithSource, or on the local file
// system. Compressed traces are decoded unless WithDecompression(false) is
// given. Open failures are returned as *ErrOpenTrace.
func Open(ctx context.Context, name string, optFns ...Option) (*Parser, error) {
	o := applyOptions(optFns)
	start := time.Now()

	r, err := openReader(ctx, name, o)
	if err != nil {
		err = translateError(name, err)
		o.metricsCollector.RecordOpen(time.Since(start), err)
		o.logger.WithTrace(name).LogOpen(ctx, "", err)
		return nil, err
	}

	p, err := newParser(name, r, o)
	o.metricsCollector.RecordOpen(time.Since(start), err)
	if err != nil {
		return nil, err
	}
	p.logger.LogOpen(ctx, r.Format().String(), nil)
	return p, nil
}

// New parses the trace read from r. r is not closed by the parser.
// Decompression is off unless WithDecompression(true) is given.
func New(ctx context.Context, r io.Reader, optFns ...Option) (*Parser, error) {
	o := applyOptions(optFns)
	start := time.Now()

	reader, err := tracefile.NewReader(ctx, r, readerOptions(o, false)...)
	if err != nil {
		err = translateError(streamName, err)
		o.metricsCollector.RecordOpen(time.Since(start), err)
		return nil, err
	}

	p, err := newParser(streamName, reader, o)
	o.metricsCollector.RecordOpen(time.Since(start), err)
	if err != nil {
		return nil, err
	}
	p.logger.LogOpen(ctx, reader.Format().String(), nil)
	return p, nil
}

func openReader(ctx context.Context, name string, o options) (*tracefile.Reader, error) {
	if o.source == nil {
		return tracefile.Open(ctx, name, readerOptions(o, true)...)
	}

	rc, err := o.source.Open(ctx, name)
	if err != nil {
		return nil, &ErrOpenTrace{Name: name, cause: err}
	}
	opts := append(readerOptions(o, true), tracefile.WithCloser(rc))
	r, err := tracefile.NewReader(ctx, rc, opts...)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return r, nil
}

func readerOptions(o options, decompress bool) []tracefile.Option {
	if o.decompress != nil {
		decompress = *o.decompress
	}
	return []tracefile.Option{
		tracefile.WithConfig(o.readerConfig),
		tracefile.WithLogger(o.logger.Logger),
		tracefile.WithController(o.controller),
		tracefile.WithDecompression(decompress),
	}
}

func newParser(name string, r *tracefile.Reader, o options) (*Parser, error) {
	cfg := strpool.DefaultConfig()
	if o.poolConfig != nil {
		cfg = *o.poolConfig
	}
	var popts []strpool.Option
	if o.controller != nil {
		popts = append(popts, strpool.WithMemoryAcquirer(o.controller))
	}
	pool, err := strpool.New(cfg, popts...)
	if err != nil {
		_ = r.Close()
		return nil, err
	}

	return &Parser{
		name:    name,
		reader:  r,
		pool:    pool,
		rc:      o.controller,
		logger:  o.logger.WithTrace(name),
		metrics: o.metricsCollector,
		window:  o.window,
	}, nil
}

// Name returns the trace name, or "<stream>" for parsers created by New.
func (p *Parser) Name() string { return p.name }

// ReadLine tokenizes the next line. See tracefile.Reader.ReadLine.
func (p *Parser) ReadLine(line *tracefile.Line) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	n, err := p.reader.ReadLine(line)
	return n, translateError(p.name, err)
}

// AtEnd reports whether the trace has been read to its end.
func (p *Parser) AtEnd() bool {
	return p.closed || p.reader.AtEnd()
}

// Err returns the read error that ended the trace early, if any.
func (p *Parser) Err() error {
	if p.closed {
		return nil
	}
	return p.reader.Err()
}

// Intern returns the canonical record for word.
func (p *Parser) Intern(word []byte) (*strpool.Record, error) {
	if p.closed {
		return nil, ErrClosed
	}
	rec, err := p.pool.Intern(word)
	return rec, translateError(p.name, err)
}

// InternLine interns every word of line and appends the records to dst.
func (p *Parser) InternLine(line *tracefile.Line, dst []*strpool.Record) ([]*strpool.Record, error) {
	if p.closed {
		return dst, ErrClosed
	}
	for _, w := range line.Words {
		rec, err := p.pool.Intern(w)
		if err != nil {
			return dst, translateError(p.name, err)
		}
		dst = append(dst, rec)
	}
	return dst, nil
}

// ScanFunc receives one line and the interned records of its words. Both
// are reused by the next call. Returning an error stops the scan.
type ScanFunc func(line *tracefile.Line, words []*strpool.Record) error

// Scan reads the trace to its end, interning every word and calling fn for
// each line. fn may be nil. Cancellation of ctx is checked between lines.
// A read error that ended the trace early is returned after the lines read
// before it were delivered.
func (p *Parser) Scan(ctx context.Context, fn ScanFunc) error {
	if p.closed {
		return ErrClosed
	}

	start := time.Now()
	before := p.pool.Stats()

	var (
		line  tracefile.Line
		recs  []*strpool.Record
		lines int
		words int64
		err   error
	)
	for !p.reader.AtEnd() {
		if err = ctx.Err(); err != nil {
			break
		}

		var n int
		if n, err = p.ReadLine(&line); err != nil {
			break
		}
		if line.Number == 0 {
			break
		}
		if recs, err = p.InternLine(&line, recs[:0]); err != nil {
			break
		}
		lines++
		words += int64(n)

		if fn != nil {
			if err = fn(&line, recs); err != nil {
				break
			}
		}

		if p.window > 0 && lines%p.window == 0 {
			p.reader.Reset()
			p.resets++
			p.metrics.RecordReset()
		}
	}
	if err == nil {
		if rerr := p.reader.Err(); rerr != nil {
			err = fmt.Errorf("tracekit: read %s: %w", p.name, rerr)
		}
	}

	after := p.pool.Stats()
	p.metrics.RecordScan(lines, words, time.Since(start), err)
	if after.Allocs >= before.Allocs && after.Reuses >= before.Reuses {
		p.metrics.RecordIntern(int64(after.Allocs-before.Allocs), int64(after.Reuses-before.Reuses)) //nolint:gosec // counters are far below MaxInt64
	}
	p.logger.LogScan(ctx, lines, words, after.Records, err)
	return err
}

// Truncated returns the numbers of lines that had more words than the
// column limit.
func (p *Parser) Truncated() []uint32 {
	if p.closed {
		return nil
	}
	return p.reader.Truncated()
}

// Reset rewinds the tokenizer arenas and clears the string pool while
// keeping the stream position. Lines and records obtained before become
// stale.
func (p *Parser) Reset(ctx context.Context) {
	if p.closed {
		return
	}
	p.reader.Reset()
	p.pool.Reset()
	p.resets++
	p.metrics.RecordReset()
	p.logger.LogReset(ctx, p.reader.Lines())
}

// Reader returns the underlying tokenizer.
func (p *Parser) Reader() *tracefile.Reader { return p.reader }

// Pool returns the underlying string pool.
func (p *Parser) Pool() *strpool.Pool { return p.pool }

// Close releases all memory and the trace stream. Closing twice is a no-op.
func (p *Parser) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	err := p.reader.Close()
	p.pool.Close()
	p.logger.LogClose(context.Background(), err)
	if err != nil {
		return fmt.Errorf("tracekit: close %s: %w", p.name, err)
	}
	return nil
}

// Stats summarizes a parser.
type Stats struct {
	Name   string
	Reader tracefile.Stats
	Pool   strpool.Stats
	Resets int
	// Memory is the controller's total usage, shared by all its parsers.
	Memory int64
}

// Stats returns the current statistics.
func (p *Parser) Stats() Stats {
	return Stats{
		Name:   p.name,
		Reader: p.reader.Stats(),
		Pool:   p.pool.Stats(),
		Resets: p.resets,
		Memory: p.rc.MemoryUsage(),
	}
}
