package mempool

import (
	"errors"
	"fmt"
	"unsafe"
)

// PageSize is the sizing unit used for page budgets.
const PageSize = 4096

// DefaultPages is used when New is called with a non-positive page budget.
const DefaultPages = 256

var (
	// ErrExhausted is returned when the pool cannot grow.
	ErrExhausted = errors.New("mempool: memory exhausted")
	// ErrNoReservation is returned by Commit when no reservation is pending.
	ErrNoReservation = errors.New("mempool: commit without reservation")
	// ErrCommitOverflow is returned when a commit exceeds the pending reservation.
	ErrCommitOverflow = errors.New("mempool: commit exceeds reservation")
	// ErrFreed is returned when a freed pool is used.
	ErrFreed = errors.New("mempool: pool is freed")
)

// MemoryAcquirer is charged for every page the pool allocates.
type MemoryAcquirer interface {
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}

// Stats tracks pool usage.
//
// Note on semantics:
//   - Pages / Capacity: currently held pages and their total element capacity
//   - Committed: elements finalized in the current generation
//   - PageAllocs: historical, pages ever allocated (not reset)
type Stats struct {
	ElemSize   int
	Pages      int
	Capacity   int
	Committed  int
	PageAllocs uint64
	Resets     uint64
	Generation uint32
}

type page[T any] struct {
	data []T
	used int
}

func (p *page[T]) free() int { return len(p.data) - p.used }

// Pool is an arena of T elements with reserve/commit allocation.
type Pool[T any] struct {
	name     string
	elemSize int
	pageCap  int

	pages []*page[T]
	cur   int

	// reserved is the length of the pending reservation, -1 if none.
	reserved  int
	committed int

	generation uint32
	pageAllocs uint64
	resets     uint64
	acquired   int64

	acquirer MemoryAcquirer
	freed    bool
}

type options struct {
	name     string
	acquirer MemoryAcquirer
}

// Option configures a Pool.
type Option func(*options)

// WithMemoryAcquirer charges page allocations to acquirer.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(o *options) {
		o.acquirer = acquirer
	}
}

// WithName labels the pool in String output.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// New creates a pool whose pages hold pages*PageSize bytes worth of T.
// The first page is allocated eagerly.
func New[T any](pages int, opts ...Option) (*Pool[T], error) {
	if pages <= 0 {
		pages = DefaultPages
	}

	o := options{name: "pool"}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 {
		elemSize = 1
	}

	pageCap := pages * PageSize / elemSize
	if pageCap < 1 {
		pageCap = 1
	}

	p := &Pool[T]{
		name:       o.name,
		elemSize:   elemSize,
		pageCap:    pageCap,
		reserved:   -1,
		generation: 1,
		acquirer:   o.acquirer,
	}

	if _, err := p.grow(pageCap); err != nil {
		return nil, err
	}
	return p, nil
}

// PagesFor estimates a page budget for count elements of elemSize bytes.
// The result is never below floor.
func PagesFor(count int, elemSize uintptr, floor int) int {
	if floor < 1 {
		floor = 1
	}
	if count <= 0 || elemSize == 0 {
		return floor
	}
	pages := count * int(elemSize) / PageSize
	return max(pages, floor)
}

// Reserve returns n writable elements. The slice stays valid until the next
// Reserve that is not preceded by Commit.
func (p *Pool[T]) Reserve(n int) ([]T, error) {
	if p.freed {
		return nil, ErrFreed
	}
	if n < 0 {
		n = 0
	}

	pg := p.pages[p.cur]
	if pg.free() < n {
		var err error
		if pg, err = p.advance(n); err != nil {
			return nil, err
		}
	}

	p.reserved = n
	return pg.data[pg.used : pg.used+n : pg.used+n], nil
}

// Commit finalizes the first m elements of the pending reservation and
// returns them.
func (p *Pool[T]) Commit(m int) ([]T, error) {
	if p.freed {
		return nil, ErrFreed
	}
	if p.reserved < 0 {
		return nil, ErrNoReservation
	}
	if m < 0 || m > p.reserved {
		return nil, fmt.Errorf("%w: commit %d of %d", ErrCommitOverflow, m, p.reserved)
	}

	pg := p.pages[p.cur]
	out := pg.data[pg.used : pg.used+m : pg.used+m]
	pg.used += m
	p.committed += m
	p.reserved = -1
	return out, nil
}

// advance moves to the next retained page that can hold n elements, or
// allocates a new one. Pages after cur are always empty.
func (p *Pool[T]) advance(n int) (*page[T], error) {
	for i := p.cur + 1; i < len(p.pages); i++ {
		if len(p.pages[i].data) >= n {
			p.cur = i
			return p.pages[i], nil
		}
	}
	return p.grow(max(p.pageCap, n))
}

func (p *Pool[T]) grow(size int) (*page[T], error) {
	bytes := int64(size) * int64(p.elemSize)
	if p.acquirer != nil {
		if err := p.acquirer.AcquireMemory(bytes); err != nil {
			return nil, fmt.Errorf("%w: %s page of %d bytes: %w", ErrExhausted, p.name, bytes, err)
		}
		p.acquired += bytes
	}

	pg := &page[T]{data: make([]T, size)}
	p.pages = append(p.pages, pg)
	p.cur = len(p.pages) - 1
	p.pageAllocs++
	return pg, nil
}

// Reset rewinds every page. Memory is kept; everything handed out before
// becomes invalid.
func (p *Pool[T]) Reset() {
	if p.freed {
		return
	}
	for _, pg := range p.pages {
		pg.used = 0
	}
	p.cur = 0
	p.reserved = -1
	p.committed = 0
	p.generation++
	p.resets++
}

// Free releases all pages. The pool cannot be reused.
func (p *Pool[T]) Free() {
	if p.freed {
		return
	}
	if p.acquirer != nil && p.acquired > 0 {
		p.acquirer.ReleaseMemory(p.acquired)
	}
	p.acquired = 0
	p.pages = nil
	p.cur = 0
	p.reserved = -1
	p.committed = 0
	p.generation++
	p.freed = true
}

// Committed returns the number of committed elements in this generation.
func (p *Pool[T]) Committed() int {
	return p.committed
}

// Generation returns the current generation. It changes on Reset and Free.
func (p *Pool[T]) Generation() uint32 {
	return p.generation
}

// Stats returns the current pool statistics.
func (p *Pool[T]) Stats() Stats {
	capacity := 0
	for _, pg := range p.pages {
		capacity += len(pg.data)
	}
	return Stats{
		ElemSize:   p.elemSize,
		Pages:      len(p.pages),
		Capacity:   capacity,
		Committed:  p.committed,
		PageAllocs: p.pageAllocs,
		Resets:     p.resets,
		Generation: p.generation,
	}
}

func (p *Pool[T]) String() string {
	s := p.Stats()
	usage := 0.0
	if s.Capacity > 0 {
		usage = float64(s.Committed) / float64(s.Capacity) * 100
	}
	return fmt.Sprintf(
		"Pool{name: %s, elem: %dB, pages: %d, reserved: %.2f MB, committed: %.2f MB, usage: %.1f%%, gen: %d}",
		p.name,
		s.ElemSize,
		s.Pages,
		float64(s.Capacity*s.ElemSize)/(1024*1024),
		float64(s.Committed*s.ElemSize)/(1024*1024),
		usage,
		s.Generation,
	)
}
