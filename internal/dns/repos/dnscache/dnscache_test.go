package dnscache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/cachedns/internal/dns/common/clock"
	"github.com/haukened/cachedns/internal/dns/domain"
)

var epoch = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T, size int) (*dnsCache, *clock.MockClock) {
	t.Helper()
	clk := &clock.MockClock{CurrentTime: epoch}
	c, err := New(size, clk)
	require.NoError(t, err)
	return c, clk
}

func q(name string, rrtype domain.RRType) domain.Question {
	return domain.Question{Name: domain.MustParseName(name), Type: rrtype, Class: domain.RRClassIN}
}

func a(name string, ttl uint32, last byte) domain.ResourceRecord {
	return domain.ResourceRecord{
		Name:  domain.MustParseName(name),
		Type:  domain.RRTypeA,
		Class: domain.RRClassIN,
		TTL:   ttl,
		RData: []byte{192, 0, 2, last},
	}
}

func TestInvalidCacheSize(t *testing.T) {
	_, err := New(0, nil)
	assert.Error(t, err)
	_, err = New(-1, nil)
	assert.Error(t, err)
}

func TestNew_DefaultsToRealClock(t *testing.T) {
	c, err := New(1, nil)
	require.NoError(t, err)
	assert.IsType(t, clock.RealClock{}, c.clock)
}

func TestLookup_Miss(t *testing.T) {
	c, _ := newTestCache(t, 4)
	_, ok := c.Lookup(q("example.com", domain.RRTypeA))
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}

func TestInsertThenLookup(t *testing.T) {
	c, _ := newTestCache(t, 4)
	question := q("example.com", domain.RRTypeA)

	require.True(t, c.Insert(question, a("example.com", 30, 1)))
	got, ok := c.Lookup(question)
	require.True(t, ok)
	assert.Equal(t, uint32(30), got.TTL)
	assert.Equal(t, []byte{192, 0, 2, 1}, got.RData)
	assert.Equal(t, uint64(1), c.Stats().Hits)
}

func TestLookup_RemainingTTLDecreases(t *testing.T) {
	c, clk := newTestCache(t, 4)
	question := q("example.com", domain.RRTypeA)
	require.True(t, c.Insert(question, a("example.com", 10, 1)))

	var last uint32 = 10
	for _, step := range []time.Duration{0, 900 * time.Millisecond, 100 * time.Millisecond, 3 * time.Second, 5*time.Second + 999*time.Millisecond} {
		clk.Advance(step)
		got, ok := c.Lookup(question)
		require.True(t, ok)
		assert.LessOrEqual(t, got.TTL, last)
		last = got.TTL
	}
	// 9.999s elapsed
	assert.Equal(t, uint32(0), last)
}

func TestLookup_ExpiryIsLazyAndEvicts(t *testing.T) {
	c, clk := newTestCache(t, 4)
	question := q("example.com", domain.RRTypeA)
	require.True(t, c.Insert(question, a("example.com", 1, 1)))

	got, ok := c.Lookup(question)
	require.True(t, ok)
	assert.Equal(t, uint32(1), got.TTL)

	clk.Advance(time.Second)
	assert.Equal(t, 1, c.Len(), "no background sweep")

	_, ok = c.Lookup(question)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Expired)

	_, ok = c.Lookup(question)
	assert.False(t, ok)
}

func TestLookup_StoredRecordNotMutated(t *testing.T) {
	c, clk := newTestCache(t, 4)
	question := q("example.com", domain.RRTypeA)
	rr := a("example.com", 100, 1)
	require.True(t, c.Insert(question, rr))

	rr.RData[3] = 99 // caller's copy
	clk.Advance(40 * time.Second)
	got, ok := c.Lookup(question)
	require.True(t, ok)
	assert.Equal(t, uint32(60), got.TTL)
	assert.Equal(t, byte(1), got.RData[3])

	got.RData[3] = 42
	got.TTL = 1
	again, _ := c.Lookup(question)
	assert.Equal(t, byte(1), again.RData[3])
	assert.Equal(t, uint32(60), again.TTL)

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, uint32(100), func() uint32 {
		e, _ := c.lru.Peek(question.Key())
		return e.Record.TTL
	}(), "stored TTL keeps the original value")
}

func TestKeyedByFullQuestion(t *testing.T) {
	c, _ := newTestCache(t, 8)
	require.True(t, c.Insert(q("example.com", domain.RRTypeA), a("example.com", 60, 1)))

	_, ok := c.Lookup(q("example.com", domain.RRTypeMX))
	assert.False(t, ok, "different type")
	_, ok = c.Lookup(domain.Question{Name: domain.MustParseName("example.com"), Type: domain.RRTypeA, Class: domain.RRClassCH})
	assert.False(t, ok, "different class")
	_, ok = c.Lookup(q("EXAMPLE.com", domain.RRTypeA))
	assert.True(t, ok, "names compare case-insensitively")
}

func TestInsert_Overwrites(t *testing.T) {
	c, clk := newTestCache(t, 4)
	question := q("example.com", domain.RRTypeA)
	require.True(t, c.Insert(question, a("example.com", 10, 1)))
	clk.Advance(5 * time.Second)
	require.True(t, c.Insert(question, a("example.com", 100, 2)))

	got, ok := c.Lookup(question)
	require.True(t, ok)
	assert.Equal(t, uint32(100), got.TTL)
	assert.Equal(t, byte(2), got.RData[3])
	assert.Equal(t, 1, c.Len())
}

func TestInsert_ZeroTTLNotRetrievable(t *testing.T) {
	c, _ := newTestCache(t, 4)
	assert.False(t, c.Insert(q("zero.example", domain.RRTypeA), a("zero.example", 0, 1)))
	assert.False(t, c.Insert(q("neg.example", domain.RRTypeA), a("neg.example", 0x80000000, 1)))
}

func TestCapacityEviction(t *testing.T) {
	c, _ := newTestCache(t, 2)
	require.True(t, c.Insert(q("one.example", domain.RRTypeA), a("one.example", 60, 1)))
	require.True(t, c.Insert(q("two.example", domain.RRTypeA), a("two.example", 60, 2)))
	_, _ = c.Lookup(q("one.example", domain.RRTypeA)) // one is now most recent
	require.True(t, c.Insert(q("three.example", domain.RRTypeA), a("three.example", 60, 3)))

	_, ok := c.Lookup(q("two.example", domain.RRTypeA))
	assert.False(t, ok, "least recently used entry evicted")
	_, ok = c.Lookup(q("one.example", domain.RRTypeA))
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
	assert.Equal(t, 2, c.Stats().Capacity)
}

func TestEntries_SkipsExpired(t *testing.T) {
	c, clk := newTestCache(t, 4)
	require.True(t, c.Insert(q("short.example", domain.RRTypeA), a("short.example", 5, 1)))
	require.True(t, c.Insert(q("long.example", domain.RRTypeA), a("long.example", 50, 2)))
	clk.Advance(10 * time.Second)

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "long.example", entries[0].Question.Name.String())
	assert.Equal(t, uint32(40), entries[0].Record.TTL)
	assert.Equal(t, epoch.Add(50*time.Second), entries[0].ExpiresAt)
	assert.Equal(t, 2, c.Len(), "Entries does not evict")
}

func TestPurge(t *testing.T) {
	c, _ := newTestCache(t, 4)
	require.True(t, c.Insert(q("a.example", domain.RRTypeA), a("a.example", 60, 1)))
	require.True(t, c.Insert(q("b.example", domain.RRTypeA), a("b.example", 60, 2)))
	assert.Equal(t, 2, c.Purge())
	assert.Equal(t, 0, c.Len())
}

func TestPurgeApex(t *testing.T) {
	c, _ := newTestCache(t, 8)
	for _, name := range []string{"www.example.co.uk", "mail.example.co.uk", "example.co.uk", "other.co.uk", "example.com"} {
		require.True(t, c.Insert(q(name, domain.RRTypeA), a(name, 60, 1)))
	}

	removed := c.PurgeApex(domain.MustParseName("API.Example.co.uk"))
	assert.Equal(t, 3, removed)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Lookup(q("other.co.uk", domain.RRTypeA))
	assert.True(t, ok)
	_, ok = c.Lookup(q("example.com", domain.RRTypeA))
	assert.True(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(t, 64)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				name := fmt.Sprintf("host%d.example", j%8)
				question := q(name, domain.RRTypeA)
				c.Insert(question, a(name, uint32(10+i), byte(i)))
				if got, ok := c.Lookup(question); ok {
					// whichever writer won, the entry is whole
					assert.Equal(t, 4, len(got.RData))
					assert.Equal(t, uint32(10+int(got.RData[3])), got.TTL)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 8)
}

func TestNoopCache(t *testing.T) {
	var n NoopCache
	question := q("example.com", domain.RRTypeA)
	assert.True(t, n.Insert(question, a("example.com", 60, 1)))
	_, ok := n.Lookup(question)
	assert.False(t, ok)
	assert.Zero(t, n.Len())
	assert.Nil(t, n.Entries())
	assert.Zero(t, n.Purge())
	assert.Zero(t, n.PurgeApex(question.Name))
	assert.Equal(t, domain.CacheStats{}, n.Stats())
}
