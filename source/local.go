package source

import (
	"context"
	"errors"
	"io"
	"path/filepath"

	"github.com/hupe1980/tracekit/internal/fs"
	"github.com/hupe1980/tracekit/internal/mmap"
)

// Local opens traces from the local file system.
type Local struct {
	root string
	fs   fs.FileSystem
	mmap bool
}

// LocalOption configures a Local source.
type LocalOption func(*Local)

// WithRoot resolves relative names against dir.
func WithRoot(dir string) LocalOption {
	return func(l *Local) {
		l.root = dir
	}
}

// WithMmap maps files into memory with sequential access advice instead of
// reading them. Platforms without mmap fall back to plain reads.
func WithMmap(enabled bool) LocalOption {
	return func(l *Local) {
		l.mmap = enabled
	}
}

// WithFileSystem replaces the file system used for plain reads.
func WithFileSystem(fsys fs.FileSystem) LocalOption {
	return func(l *Local) {
		l.fs = fsys
	}
}

// NewLocal creates a local source.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{fs: fs.Default}
	for _, opt := range opts {
		opt(l)
	}
	if l.fs == nil {
		l.fs = fs.Default
	}
	return l
}

// Open opens name for reading.
func (l *Local) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := name
	if l.root != "" && !filepath.IsAbs(name) {
		path = filepath.Join(l.root, name)
	}

	if l.mmap {
		r, err := mmap.OpenReader(path)
		if !errors.Is(err, mmap.ErrUnsupported) {
			if err != nil {
				return nil, err
			}
			return r, nil
		}
	}
	return l.fs.Open(path)
}
