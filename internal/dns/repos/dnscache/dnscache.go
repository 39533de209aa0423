// Package dnscache is the TTL-aware answer cache. Entries are keyed by the full question
// and expire lazily: an expired entry is removed by the lookup that finds it.
package dnscache

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/haukened/cachedns/internal/dns/common/clock"
	"github.com/haukened/cachedns/internal/dns/common/utils"
	"github.com/haukened/cachedns/internal/dns/domain"
	"github.com/haukened/cachedns/internal/dns/services/resolver"
)

// dnsCache is an in-memory answer cache with absolute expiry, bounded by an LRU.
// A single mutex covers the LRU and the counters, so every Lookup and Insert is atomic
// with respect to the others.
type dnsCache struct {
	mu    sync.Mutex
	lru   *simplelru.LRU[string, domain.CacheEntry]
	clock clock.Clock
	size  int

	hits      uint64
	misses    uint64
	expired   uint64
	evictions uint64
}

// New returns a cache holding at most size answers.
func New(size int, clk clock.Clock) (*dnsCache, error) {
	lru, err := simplelru.NewLRU[string, domain.CacheEntry](size, nil)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &dnsCache{lru: lru, clock: clk, size: size}, nil
}

// Lookup returns the cached answer for q with its TTL set to the whole seconds remaining.
// An entry found at or past its expiry is removed and reported as a miss.
func (c *dnsCache) Lookup(q domain.Question) (domain.ResourceRecord, bool) {
	key := q.Key()
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return domain.ResourceRecord{}, false
	}
	if e.Expired(now) {
		c.lru.Remove(key)
		c.expired++
		c.misses++
		return domain.ResourceRecord{}, false
	}
	c.hits++
	return e.View(now), true
}

// Insert stores rr as the answer to q, replacing any previous entry.
// It reports false when the entry is not retrievable afterwards, which is the case
// for records whose lifetime is zero.
func (c *dnsCache) Insert(q domain.Question, rr domain.ResourceRecord) bool {
	key := q.Key()
	e := domain.NewCacheEntry(q, rr.Clone(), c.clock.Now())

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lru.Add(key, e) {
		c.evictions++
	}
	stored, ok := c.lru.Peek(key)
	return ok && stored.ExpiresAt.Equal(e.ExpiresAt) && !stored.Expired(e.StoredAt)
}

// Len returns the number of stored entries, expired ones included.
func (c *dnsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Entries returns the unexpired entries, oldest first, with record TTLs set to the time remaining.
// It does not affect recency or evict anything.
func (c *dnsCache) Entries() []domain.CacheEntry {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.CacheEntry, 0, c.lru.Len())
	for _, e := range c.lru.Values() {
		if e.Expired(now) {
			continue
		}
		e.Record = e.View(now)
		out = append(out, e)
	}
	return out
}

// Stats returns a snapshot of the cache counters.
func (c *dnsCache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CacheStats{
		Entries:   c.lru.Len(),
		Capacity:  c.size,
		Hits:      c.hits,
		Misses:    c.misses,
		Expired:   c.expired,
		Evictions: c.evictions,
	}
}

// Purge removes every entry and returns how many were removed.
func (c *dnsCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.lru.Len()
	c.lru.Purge()
	return n
}

// PurgeApex removes every entry whose question name shares the registrable domain
// (eTLD+1) of name, e.g. purging "www.example.co.uk" also drops "mail.example.co.uk".
func (c *dnsCache) PurgeApex(name domain.Name) int {
	apex := utils.ApexOf(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if utils.ApexOf(e.Question.Name) == apex {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

var _ resolver.Cache = (*dnsCache)(nil)
