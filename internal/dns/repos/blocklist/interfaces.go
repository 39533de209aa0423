package blocklist

import "github.com/haukened/cachedns/internal/dns/domain"

// BloomSizer computes Bloom filter parameters from capacity (n) and target FP rate (p).
// It returns m (number of bits) and k (number of hash functions).
type BloomSizer interface {
	Size(n uint64, p float64) (m uint64, k uint8)
}

// BloomFilter is the minimal interface the repository needs from Bloom filters.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory builds filters sized for a rule set.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// DecisionCache caches block decisions by canonical name with basic metrics.
type DecisionCache interface {
	Get(name string) (domain.BlockDecision, bool)
	Put(name string, d domain.BlockDecision)
	Len() int
	Purge()
	Stats() CacheStats
}

// Store is the persistent rule index.
//   - RebuildAll replaces every rule in one transaction
//   - GetFirstMatch returns the exact rule for name, else the most specific suffix rule
type Store interface {
	RebuildAll(rules []domain.BlockRule, version uint64, updatedUnix int64) error
	GetFirstMatch(name string) (domain.BlockRule, bool, error)
	Purge() error
	Stats() StoreStats
	Close() error
}

// Repository is the composition layer that wires cache → bloom → store.
// Decide returns a value-type BlockDecision for the query name.
// UpdateAll rebuilds the store, refreshes the Bloom filter and clears the cache.
type Repository interface {
	Decide(name domain.Name) domain.BlockDecision
	UpdateAll(rules []domain.BlockRule, version uint64, updatedUnix int64) error
	Stats() RepoStats
	Close() error
}
