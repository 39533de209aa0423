package domain

import (
	"math"
	"time"
)

// CacheEntry is one stored answer. ExpiresAt is fixed at insertion as StoredAt plus the
// record's lifetime; the stored Record keeps the TTL it arrived with.
type CacheEntry struct {
	Question  Question
	Record    ResourceRecord
	StoredAt  time.Time
	ExpiresAt time.Time
}

// NewCacheEntry builds an entry for rr received at now.
func NewCacheEntry(q Question, rr ResourceRecord, now time.Time) CacheEntry {
	return CacheEntry{
		Question:  q,
		Record:    rr,
		StoredAt:  now,
		ExpiresAt: now.Add(rr.Lifetime()),
	}
}

// Expired reports whether the entry is no longer valid at now (now >= ExpiresAt).
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Remaining returns the whole seconds left before expiry, rounded down.
func (e CacheEntry) Remaining(now time.Time) uint32 {
	d := e.ExpiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := d / time.Second
	if secs > math.MaxInt32 {
		return math.MaxInt32
	}
	return uint32(secs)
}

// View returns a copy of the stored record carrying the remaining TTL at now.
func (e CacheEntry) View(now time.Time) ResourceRecord {
	return e.Record.WithTTL(e.Remaining(now))
}

// CacheStats is a point-in-time snapshot of answer cache counters.
type CacheStats struct {
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Expired   uint64 `json:"expired"`
	Evictions uint64 `json:"evictions"`
}
