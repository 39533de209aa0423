package dnscache

import (
	"github.com/haukened/cachedns/internal/dns/domain"
	"github.com/haukened/cachedns/internal/dns/services/resolver"
)

// NoopCache stands in when caching is disabled: nothing is stored and every lookup misses.
type NoopCache struct{}

func (NoopCache) Lookup(domain.Question) (domain.ResourceRecord, bool) {
	return domain.ResourceRecord{}, false
}

// Insert reports success so a disabled cache never turns into a dropped query.
func (NoopCache) Insert(domain.Question, domain.ResourceRecord) bool { return true }

func (NoopCache) Len() int { return 0 }

func (NoopCache) Entries() []domain.CacheEntry { return nil }

func (NoopCache) Stats() domain.CacheStats { return domain.CacheStats{} }

func (NoopCache) Purge() int { return 0 }

func (NoopCache) PurgeApex(domain.Name) int { return 0 }

var _ resolver.Cache = NoopCache{}
