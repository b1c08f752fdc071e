package tracekit

import (
	"log/slog"

	"github.com/hupe1980/tracekit/resource"
	"github.com/hupe1980/tracekit/source"
	"github.com/hupe1980/tracekit/strpool"
	"github.com/hupe1980/tracekit/tracefile"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	controller       *resource.Controller
	source           source.Source
	readerConfig     tracefile.Config
	poolConfig       *strpool.Config
	decompress       *bool
	window           int
}

// Option configures Open and New.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &tracekit.BasicMetricsCollector{}
//	p, _ := tracekit.Open(ctx, "trace.txt", tracekit.WithMetricsCollector(metrics))
//	// ... scan ...
//	stats := metrics.GetStats()
//	fmt.Printf("Lines: %d, hit rate: %.2f\n", stats.Lines, stats.HitRate())
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := tracekit.NewJSONLogger(slog.LevelInfo)
//	p, _ := tracekit.Open(ctx, "trace.txt", tracekit.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController charges every buffer, arena page and heap-owned
// string to rc and applies its IO limit. One controller is typically shared
// by all parsers of a process.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithSource makes Open resolve names through src instead of the local
// file system.
func WithSource(src source.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithReaderConfig sets buffer size, word and column limits and arena sizes
// of the tokenizer. Zero fields take their defaults.
func WithReaderConfig(cfg tracefile.Config) Option {
	return func(o *options) {
		o.readerConfig = cfg
	}
}

// WithStringPoolConfig sets the interning table size and arena budget.
func WithStringPoolConfig(cfg strpool.Config) Option {
	return func(o *options) {
		o.poolConfig = &cfg
	}
}

// WithDecompression toggles gzip, zstd and LZ4 detection. It is on by
// default for Open and off for New.
func WithDecompression(enabled bool) Option {
	return func(o *options) {
		o.decompress = &enabled
	}
}

// WithWindow makes Scan rewind the tokenizer arenas every n lines, bounding
// the memory of a long trace. Lines handed to the scan callback are only
// valid during the callback. Interned records are not affected.
func WithWindow(n int) Option {
	return func(o *options) {
		o.window = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
