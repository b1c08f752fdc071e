package tracefile

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/tracekit/internal/fs"
	"github.com/hupe1980/tracekit/resource"
)

const (
	// DefaultBufferSize is the size of each of the two read buffers.
	DefaultBufferSize = 256 << 10
	// DefaultMaxWordLen is the longest word kept; longer words are truncated.
	DefaultMaxWordLen = 256
	// DefaultMaxColumns is the most words kept per line.
	DefaultMaxColumns = 256
	// DefaultCharPages is the character arena page budget (8 MiB pages).
	DefaultCharPages = 2048
	// DefaultPointerPages is the word-pointer arena page budget.
	DefaultPointerPages = 256
)

// Config holds the reader tunables. Zero fields take their defaults.
type Config struct {
	BufferSize   int `yaml:"buffer_size"`
	MaxWordLen   int `yaml:"max_word_len"`
	MaxColumns   int `yaml:"max_columns"`
	CharPages    int `yaml:"char_pages"`
	PointerPages int `yaml:"pointer_pages"`
}

// DefaultConfig returns the default reader configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:   DefaultBufferSize,
		MaxWordLen:   DefaultMaxWordLen,
		MaxColumns:   DefaultMaxColumns,
		CharPages:    DefaultCharPages,
		PointerPages: DefaultPointerPages,
	}
}

// Validate rejects negative values.
func (c Config) Validate() error {
	fields := []struct {
		name string
		v    int
	}{
		{"buffer size", c.BufferSize},
		{"max word length", c.MaxWordLen},
		{"max columns", c.MaxColumns},
		{"char pages", c.CharPages},
		{"pointer pages", c.PointerPages},
	}
	for _, f := range fields {
		if f.v < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidConfig, f.name, f.v)
		}
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BufferSize == 0 {
		c.BufferSize = d.BufferSize
	}
	if c.MaxWordLen == 0 {
		c.MaxWordLen = d.MaxWordLen
	}
	if c.MaxColumns == 0 {
		c.MaxColumns = d.MaxColumns
	}
	if c.CharPages == 0 {
		c.CharPages = d.CharPages
	}
	if c.PointerPages == 0 {
		c.PointerPages = d.PointerPages
	}
	return c
}

type options struct {
	cfg        Config
	fs         fs.FileSystem
	logger     *slog.Logger
	controller *resource.Controller
	decompress *bool
	closer     io.Closer
}

// Option configures a Reader.
type Option func(*options)

// WithConfig sets the reader tunables.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithFileSystem sets the file system used by Open.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithLogger sets the logger for stream events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithController charges buffers and arenas to rc and applies its IO limit
// to the raw stream.
func WithController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithDecompression toggles detection of gzip, zstd and LZ4 input. It is on
// by default for Open and off for NewReader.
func WithDecompression(enabled bool) Option {
	return func(o *options) {
		o.decompress = &enabled
	}
}

// WithCloser hands ownership of c to the reader; Close closes it.
func WithCloser(c io.Closer) Option {
	return func(o *options) {
		o.closer = c
	}
}
