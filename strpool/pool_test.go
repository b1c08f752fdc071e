package strpool

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tracekit/internal/hash"
	"github.com/hupe1980/tracekit/mempool"
	"github.com/hupe1980/tracekit/resource"
)

func newPool(t *testing.T, cfg Config, opts ...Option) *Pool {
	t.Helper()
	p, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func collect(p *Pool) []string {
	var out []string
	p.Range(func(r *Record) bool {
		out = append(out, r.String())
		return true
	})
	sort.Strings(out)
	return out
}

func TestNew(t *testing.T) {
	t.Run("buckets rounded up", func(t *testing.T) {
		p := newPool(t, Config{})
		assert.Equal(t, 1, p.Buckets())
		assert.Equal(t, DefaultMaxLen, p.cfg.MaxLen)
		assert.Equal(t, minCharPages, p.cfg.Pages)
	})

	t.Run("default config", func(t *testing.T) {
		p := newPool(t, DefaultConfig())
		assert.Equal(t, DefaultBuckets, p.Buckets())
		assert.Equal(t, 0, p.Len())
	})
}

func TestIntern_Idempotent(t *testing.T) {
	p := newPool(t, DefaultConfig())

	a, err := p.Intern([]byte("sched_switch"))
	require.NoError(t, err)
	b, err := p.InternString("sched_switch")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, "sched_switch", a.String())
	assert.Equal(t, 12, a.Len())
	assert.Equal(t, OwnerArena, a.Owner())
	assert.Equal(t, hash.Bucket([]byte("sched_switch"), DefaultBuckets), a.Bucket())
	assert.Equal(t, 1, p.Len())

	allocs, reuses := p.BucketStats(int(a.Bucket()))
	assert.Equal(t, uint32(1), allocs)
	assert.Equal(t, uint32(1), reuses)
}

func TestIntern_InputNotRetained(t *testing.T) {
	p := newPool(t, DefaultConfig())

	buf := []byte("irq_handler_entry")
	r, err := p.Intern(buf)
	require.NoError(t, err)

	copy(buf, "XXXXXXXXXXXXXXXXX")
	assert.Equal(t, "irq_handler_entry", r.String())
}

func TestIntern_EmptyString(t *testing.T) {
	p := newPool(t, DefaultConfig())

	a, err := p.Intern(nil)
	require.NoError(t, err)
	b, err := p.Intern([]byte{})
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 0, a.Len())
}

func TestIntern_SingleBucket(t *testing.T) {
	// All values share one tree.
	p := newPool(t, Config{Buckets: 1})

	words := make([]string, 0, 2000)
	for i := range 2000 {
		words = append(words, fmt.Sprintf("w%05d", i))
	}
	rng := rand.New(rand.NewSource(1))
	rng.Shuffle(len(words), func(i, j int) { words[i], words[j] = words[j], words[i] })

	recs := make(map[string]*Record, len(words))
	for _, w := range words {
		r, err := p.InternString(w)
		require.NoError(t, err)
		recs[w] = r
	}
	for _, w := range words {
		r, err := p.InternString(w)
		require.NoError(t, err)
		assert.Same(t, recs[w], r)
	}

	assert.Equal(t, len(words), p.Len())
	allocs, reuses := p.BucketStats(0)
	assert.Equal(t, uint32(2000), allocs)
	assert.Equal(t, uint32(2000), reuses)

	var got []string
	p.Range(func(r *Record) bool {
		got = append(got, r.String())
		return true
	})
	assert.True(t, sort.StringsAreSorted(got), "single bucket range is in byte order")
	assert.Len(t, got, 2000)

	// Records stay intact after the arenas grew.
	for w, r := range recs {
		assert.Equal(t, w, r.String())
	}
}

func TestLookup(t *testing.T) {
	p := newPool(t, DefaultConfig())

	_, ok := p.Lookup([]byte("cpu"))
	assert.False(t, ok)

	r, err := p.InternString("cpu")
	require.NoError(t, err)

	got, ok := p.Lookup([]byte("cpu"))
	require.True(t, ok)
	assert.Same(t, r, got)

	s := p.Stats()
	assert.Equal(t, uint64(1), s.Allocs)
	assert.Equal(t, uint64(0), s.Reuses)
}

func TestStats(t *testing.T) {
	p := newPool(t, DefaultConfig())

	for _, w := range strings.Fields("a b a c a b") {
		_, err := p.InternString(w)
		require.NoError(t, err)
	}

	s := p.Stats()
	assert.Equal(t, DefaultBuckets, s.Buckets)
	assert.Equal(t, 3, s.Records)
	assert.Equal(t, uint64(3), s.Allocs)
	assert.Equal(t, uint64(3), s.Reuses)
	assert.InDelta(t, 0.5, s.HitRate(), 1e-9)
	assert.LessOrEqual(t, s.UsedBuckets, 3)
	assert.Positive(t, s.UsedBuckets)
	assert.Equal(t, 3, s.Nodes.Committed)
	assert.Equal(t, 3, s.Chars.Committed)

	assert.Zero(t, Stats{}.HitRate())

	a, r := p.BucketStats(-1)
	assert.Zero(t, a)
	assert.Zero(t, r)
	a, r = p.BucketStats(DefaultBuckets)
	assert.Zero(t, a)
	assert.Zero(t, r)
}

func TestRange_Stop(t *testing.T) {
	p := newPool(t, Config{Buckets: 8})
	for i := range 50 {
		_, err := p.InternString(fmt.Sprintf("k%d", i))
		require.NoError(t, err)
	}

	n := 0
	p.Range(func(*Record) bool {
		n++
		return n < 5
	})
	assert.Equal(t, 5, n)
}

func TestClear(t *testing.T) {
	p := newPool(t, DefaultConfig())

	old, err := p.InternString("sched_wakeup")
	require.NoError(t, err)
	_, err = p.InternString("sched_wakeup")
	require.NoError(t, err)
	require.True(t, p.Valid(old))

	charPages := p.Stats().Chars.Pages
	p.Clear()

	assert.False(t, p.Valid(old))
	assert.Equal(t, 0, p.Len())
	assert.Empty(t, collect(p))
	s := p.Stats()
	assert.Zero(t, s.Allocs)
	assert.Zero(t, s.Reuses)
	assert.Zero(t, s.UsedBuckets)
	assert.Equal(t, charPages, s.Chars.Pages, "arena pages are retained")

	// A previously seen value is a fresh allocation again.
	r, err := p.InternString("sched_wakeup")
	require.NoError(t, err)
	assert.True(t, p.Valid(r))
	allocs, reuses := p.BucketStats(int(r.Bucket()))
	assert.Equal(t, uint32(1), allocs)
	assert.Equal(t, uint32(0), reuses)

	p.Reset()
	assert.False(t, p.Valid(r))
}

func TestDeterminism(t *testing.T) {
	var input []string
	for i := range 500 {
		input = append(input, fmt.Sprintf("event_%d", i%137))
	}

	build := func(p *Pool, seed int64) []string {
		words := append([]string(nil), input...)
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(words), func(i, j int) { words[i], words[j] = words[j], words[i] })
		for _, w := range words {
			_, err := p.InternString(w)
			require.NoError(t, err)
		}
		return collect(p)
	}

	p1 := newPool(t, Config{Buckets: 16})
	first := build(p1, 1)
	assert.Len(t, first, 137)

	p2 := newPool(t, Config{Buckets: 16})
	assert.Equal(t, first, build(p2, 2))

	p1.Clear()
	assert.Equal(t, first, build(p1, 3))
	assert.Equal(t, uint64(500-137), p1.Stats().Reuses)
}

func TestHeapOwned(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	p, err := New(Config{Buckets: 4, MaxLen: 8}, WithMemoryAcquirer(rc))
	require.NoError(t, err)

	arenaBytes := rc.MemoryUsage()
	long := bytes.Repeat([]byte("x"), 20)

	r, err := p.Intern(long)
	require.NoError(t, err)
	assert.Equal(t, OwnerHeap, r.Owner())
	assert.Equal(t, "heap", r.Owner().String())
	assert.Equal(t, string(long), r.String())
	assert.Equal(t, arenaBytes+20, rc.MemoryUsage())

	again, err := p.Intern(long)
	require.NoError(t, err)
	assert.Same(t, r, again)

	short, err := p.InternString("short")
	require.NoError(t, err)
	assert.Equal(t, OwnerArena, short.Owner())

	s := p.Stats()
	assert.Equal(t, 1, s.HeapRecords)
	assert.Equal(t, int64(20), s.HeapBytes)

	p.Clear()
	assert.Equal(t, arenaBytes, rc.MemoryUsage())
	assert.Zero(t, p.Stats().HeapRecords)

	p.Close()
	assert.Zero(t, rc.MemoryUsage())
}

func TestExhaustion(t *testing.T) {
	t.Run("arena", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MemoryLimitBytes: 256 << 10})
		p, err := New(Config{Buckets: 64, Pages: 16}, WithMemoryAcquirer(rc))
		require.NoError(t, err)
		defer p.Close()

		var lastErr error
		for i := range 100000 {
			if _, lastErr = p.InternString(fmt.Sprintf("value-%08d", i)); lastErr != nil {
				break
			}
		}
		require.ErrorIs(t, lastErr, mempool.ErrExhausted)
		assert.ErrorIs(t, lastErr, resource.ErrMemoryLimitExceeded)
	})

	t.Run("heap", func(t *testing.T) {
		rc := resource.NewController(resource.Config{})
		p, err := New(Config{MaxLen: 4}, WithMemoryAcquirer(rc))
		require.NoError(t, err)
		defer p.Close()

		limited := resource.NewController(resource.Config{MemoryLimitBytes: 1})
		p.acquirer = limited

		_, err = p.InternString("too long for the arena")
		assert.ErrorIs(t, err, mempool.ErrExhausted)
		assert.Zero(t, p.Len())
	})
}

func TestClose(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)

	r, err := p.InternString("x")
	require.NoError(t, err)

	p.Close()
	p.Close()
	p.Clear()

	assert.False(t, p.Valid(r))
	_, err = p.InternString("x")
	assert.ErrorIs(t, err, ErrClosed)
	_, ok := p.Lookup([]byte("x"))
	assert.False(t, ok)
	assert.Empty(t, collect(p))
}
