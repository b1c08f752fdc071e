package mmap

import (
	"io"
	"os"
	"sync/atomic"
)

// Mapping represents a read-only memory-mapped file.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

// Open maps the file at path into memory as read-only.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &Mapping{}, nil
	}
	if size < 0 || int64(int(size)) != size {
		return nil, ErrInvalidSize
	}

	data, unmap, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}

	return &Mapping{data: data, unmap: unmap}, nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

// Bytes returns the mapped bytes. The slice is valid only until Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// DropWindow is how many consumed bytes a Reader lets accumulate before it
// releases their pages from the process with MADV_DONTNEED. The file's page
// cache is not evicted; the kernel reclaims it as usual.
const DropWindow = 8 << 20

// Reader is a forward-only io.ReadCloser over a mapping. Closing it closes
// the mapping.
type Reader struct {
	m       *Mapping
	off     int
	dropped int
	window  int
}

// NewReader returns a sequential reader over m.
func NewReader(m *Mapping) *Reader {
	return &Reader{m: m, window: DropWindow}
}

// OpenReader maps path and returns a reader advised for sequential access.
func OpenReader(path string) (*Reader, error) {
	m, err := Open(path)
	if err != nil {
		return nil, err
	}
	// The hint is advisory; a failure does not affect correctness.
	_ = m.Advise(AccessSequential)
	return NewReader(m), nil
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.m.closed.Load() {
		return 0, ErrClosed
	}
	if r.off >= len(r.m.data) {
		return 0, io.EOF
	}
	n := copy(p, r.m.data[r.off:])
	r.off += n
	r.drop()
	return n, nil
}

// drop advises the kernel that whole pages behind the cursor are done.
func (r *Reader) drop() {
	if r.window <= 0 || r.off-r.dropped < r.window {
		return
	}
	end := r.off &^ (os.Getpagesize() - 1)
	if end <= r.dropped {
		return
	}
	_ = osAdvise(r.m.data[r.dropped:end], AccessDontNeed)
	r.dropped = end
}

// Dropped returns how many leading bytes were released from the mapping's
// resident set.
func (r *Reader) Dropped() int {
	return r.dropped
}

// Close unmaps the underlying mapping.
func (r *Reader) Close() error {
	return r.m.Close()
}
