package strpool

import (
	"bytes"
	"errors"
	"fmt"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/tracekit/internal/hash"
	"github.com/hupe1980/tracekit/mempool"
)

const (
	// DefaultBuckets is the table size used by DefaultConfig.
	DefaultBuckets = 4096
	// DefaultPages is the character arena page budget used by DefaultConfig.
	DefaultPages = 256
	// DefaultMaxLen is the longest value stored in the character arena.
	DefaultMaxLen = 256

	minCharPages = 16
)

// ErrClosed is returned when a closed pool is used.
var ErrClosed = errors.New("strpool: pool is closed")

// Config holds construction-time tunables. There is no runtime resizing.
type Config struct {
	// Buckets is the hash table size. Values below 1 are rounded up to 1.
	Buckets int
	// Pages is the character arena page budget (at least 16).
	Pages int
	// MaxLen is the reservation size for arena strings. Longer values are
	// stored on the heap. Defaults to DefaultMaxLen.
	MaxLen int
}

// DefaultConfig returns a configuration sized for typical ftrace vocabularies.
func DefaultConfig() Config {
	return Config{
		Buckets: DefaultBuckets,
		Pages:   DefaultPages,
		MaxLen:  DefaultMaxLen,
	}
}

// Owner tells which storage holds a record's bytes.
type Owner uint8

const (
	// OwnerArena records live in the pool's character arena.
	OwnerArena Owner = iota
	// OwnerHeap records were too long for the arena reservation and own a
	// separate heap allocation.
	OwnerHeap
)

func (o Owner) String() string {
	switch o {
	case OwnerArena:
		return "arena"
	case OwnerHeap:
		return "heap"
	default:
		return fmt.Sprintf("Owner(%d)", uint8(o))
	}
}

// Record is an interned string. Records are owned by the pool and become
// invalid on Clear, Reset and Close; use Pool.Valid to check.
type Record struct {
	data   []byte
	bucket uint32
	gen    uint32
	owner  Owner
}

// Bytes returns the interned bytes. Callers must not modify them.
func (r *Record) Bytes() []byte { return r.data }

// String returns a copy of the interned bytes as a string.
func (r *Record) String() string { return string(r.data) }

// Len returns the length in bytes.
func (r *Record) Len() int { return len(r.data) }

// Bucket returns the hash table slot holding the record.
func (r *Record) Bucket() uint32 { return r.bucket }

// Owner returns the storage variant of the record.
func (r *Record) Owner() Owner { return r.owner }

// Pool deduplicates byte strings. It is not safe for concurrent use.
type Pool struct {
	cfg     Config
	buckets uint32

	table    []*node
	allocs   []uint32
	reuses   []uint32
	occupied *roaring.Bitmap

	nodes *mempool.Pool[node]
	chars *mempool.Pool[byte]

	records     int
	heapRecords int
	heapBytes   int64

	acquirer mempool.MemoryAcquirer
	gen      uint32
	closed   bool
}

type options struct {
	acquirer mempool.MemoryAcquirer
}

// Option configures a Pool.
type Option func(*options)

// WithMemoryAcquirer charges arena pages and heap-owned records to acquirer.
func WithMemoryAcquirer(acquirer mempool.MemoryAcquirer) Option {
	return func(o *options) {
		o.acquirer = acquirer
	}
}

// New creates a string pool.
func New(cfg Config, opts ...Option) (*Pool, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Buckets < 1 {
		cfg.Buckets = 1
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = DefaultMaxLen
	}
	cfg.Pages = max(cfg.Pages, minCharPages)

	var popts []mempool.Option
	if o.acquirer != nil {
		popts = append(popts, mempool.WithMemoryAcquirer(o.acquirer))
	}

	nodePages := mempool.PagesFor(2*cfg.Buckets, unsafe.Sizeof(node{}), 1)
	nodes, err := mempool.New[node](nodePages, append(popts, mempool.WithName("strpool-nodes"))...)
	if err != nil {
		return nil, err
	}
	chars, err := mempool.New[byte](cfg.Pages, append(popts, mempool.WithName("strpool-chars"))...)
	if err != nil {
		nodes.Free()
		return nil, err
	}

	return &Pool{
		cfg:      cfg,
		buckets:  uint32(cfg.Buckets), //nolint:gosec // table sizes are far below 2^32
		table:    make([]*node, cfg.Buckets),
		allocs:   make([]uint32, cfg.Buckets),
		reuses:   make([]uint32, cfg.Buckets),
		occupied: roaring.New(),
		nodes:    nodes,
		chars:    chars,
		acquirer: o.acquirer,
		gen:      1,
	}, nil
}

// Intern returns the canonical record for b, creating it on first use.
// A repeated value bumps its bucket's reuse counter and returns the same
// record. The only error besides ErrClosed is arena exhaustion.
func (p *Pool) Intern(b []byte) (*Record, error) {
	if p.closed {
		return nil, ErrClosed
	}

	h := hash.Bucket(b, p.buckets)
	if n := find(p.table[h], b); n != nil {
		p.reuses[h]++
		return &n.rec, nil
	}

	n, err := p.newNode(b, h)
	if err != nil {
		return nil, err
	}

	p.table[h] = insert(p.table[h], n)
	p.occupied.Add(h)
	p.allocs[h]++
	p.records++
	return &n.rec, nil
}

// InternString is Intern for strings without copying s up front.
func (p *Pool) InternString(s string) (*Record, error) {
	return p.Intern(unsafe.Slice(unsafe.StringData(s), len(s))) //nolint:gosec // b is only read
}

// Lookup returns the record for b if it is interned. Statistics are not
// touched.
func (p *Pool) Lookup(b []byte) (*Record, bool) {
	if p.closed {
		return nil, false
	}
	n := find(p.table[hash.Bucket(b, p.buckets)], b)
	if n == nil {
		return nil, false
	}
	return &n.rec, true
}

func (p *Pool) newNode(b []byte, bucket uint32) (*node, error) {
	data, owner, err := p.store(b)
	if err != nil {
		return nil, err
	}

	slot, err := p.nodes.Reserve(1)
	if err != nil {
		return nil, err
	}
	slot[0] = node{
		rec: Record{
			data:   data,
			bucket: bucket,
			gen:    p.gen,
			owner:  owner,
		},
		height: 1,
	}
	committed, err := p.nodes.Commit(1)
	if err != nil {
		return nil, err
	}
	return &committed[0], nil
}

// store copies b into the character arena, or onto the heap when it is
// longer than the arena reservation.
func (p *Pool) store(b []byte) ([]byte, Owner, error) {
	if len(b) > p.cfg.MaxLen {
		size := int64(len(b))
		if p.acquirer != nil {
			if err := p.acquirer.AcquireMemory(size); err != nil {
				return nil, OwnerHeap, fmt.Errorf("%w: heap string of %d bytes: %w", mempool.ErrExhausted, size, err)
			}
		}
		p.heapRecords++
		p.heapBytes += size
		return bytes.Clone(b), OwnerHeap, nil
	}

	scratch, err := p.chars.Reserve(p.cfg.MaxLen)
	if err != nil {
		return nil, OwnerArena, err
	}
	data, err := p.chars.Commit(copy(scratch, b))
	if err != nil {
		return nil, OwnerArena, err
	}
	return data, OwnerArena, nil
}

// releaseHeap drops every heap-owned record and returns its memory to the
// acquirer.
func (p *Pool) releaseHeap() {
	if p.heapRecords == 0 {
		return
	}

	it := p.occupied.Iterator()
	for it.HasNext() {
		walk(p.table[it.Next()], func(n *node) bool {
			switch n.rec.owner {
			case OwnerArena:
			case OwnerHeap:
				n.rec.data = nil
			default:
				panic(fmt.Sprintf("strpool: unknown owner %v", n.rec.owner))
			}
			return true
		})
	}

	if p.acquirer != nil {
		p.acquirer.ReleaseMemory(p.heapBytes)
	}
	p.heapRecords = 0
	p.heapBytes = 0
}

// Clear drops every record. Arena memory is kept for reuse; heap-owned
// records are released.
func (p *Pool) Clear() {
	if p.closed {
		return
	}

	p.releaseHeap()

	it := p.occupied.Iterator()
	for it.HasNext() {
		b := it.Next()
		p.table[b] = nil
		p.allocs[b] = 0
		p.reuses[b] = 0
	}
	p.occupied.Clear()

	p.nodes.Reset()
	p.chars.Reset()
	p.records = 0
	p.gen++
}

// Reset is an alias for Clear.
func (p *Pool) Reset() {
	p.Clear()
}

// Close releases all memory. The pool cannot be used afterwards.
func (p *Pool) Close() {
	if p.closed {
		return
	}
	p.releaseHeap()
	p.nodes.Free()
	p.chars.Free()
	p.table = nil
	p.allocs = nil
	p.reuses = nil
	p.occupied.Clear()
	p.records = 0
	p.gen++
	p.closed = true
}

// Valid reports whether r was produced by this pool in the current epoch.
func (p *Pool) Valid(r *Record) bool {
	return r != nil && !p.closed && r.gen == p.gen
}

// Len returns the number of distinct records.
func (p *Pool) Len() int {
	return p.records
}

// Range calls fn for every record, bucket by bucket and in byte order within
// a bucket, until fn returns false.
func (p *Pool) Range(fn func(*Record) bool) {
	if p.closed {
		return
	}
	it := p.occupied.Iterator()
	for it.HasNext() {
		if !walk(p.table[it.Next()], func(n *node) bool { return fn(&n.rec) }) {
			return
		}
	}
}

// BucketStats returns the allocation and reuse counters of bucket i.
func (p *Pool) BucketStats(i int) (allocs, reuses uint32) {
	if i < 0 || i >= len(p.allocs) {
		return 0, 0
	}
	return p.allocs[i], p.reuses[i]
}

// Buckets returns the hash table size.
func (p *Pool) Buckets() int {
	return int(p.buckets)
}

// Stats summarizes the pool.
type Stats struct {
	Buckets     int
	UsedBuckets int
	Records     int
	Allocs      uint64
	Reuses      uint64
	HeapRecords int
	HeapBytes   int64
	Nodes       mempool.Stats
	Chars       mempool.Stats
}

// HitRate returns the share of Intern calls served by an existing record.
func (s Stats) HitRate() float64 {
	total := s.Allocs + s.Reuses
	if total == 0 {
		return 0
	}
	return float64(s.Reuses) / float64(total)
}

// Stats returns the current statistics.
func (p *Pool) Stats() Stats {
	s := Stats{
		Buckets:     int(p.buckets),
		UsedBuckets: int(p.occupied.GetCardinality()),
		Records:     p.records,
		HeapRecords: p.heapRecords,
		HeapBytes:   p.heapBytes,
		Nodes:       p.nodes.Stats(),
		Chars:       p.chars.Stats(),
	}
	it := p.occupied.Iterator()
	for it.HasNext() {
		b := it.Next()
		s.Allocs += uint64(p.allocs[b])
		s.Reuses += uint64(p.reuses[b])
	}
	return s
}
