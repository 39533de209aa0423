package blocklist

import (
	"strings"
	"sync"

	"github.com/haukened/cachedns/internal/dns/common/utils"
	"github.com/haukened/cachedns/internal/dns/domain"
	"github.com/haukened/cachedns/internal/dns/services/resolver"
)

// repository implements Repository by composing a Store, a Bloom filter (via factory)
// and a DecisionCache. Reads run cache → bloom → store; writes swap a fresh snapshot.
type repository struct {
	mu      sync.RWMutex
	store   Store
	cache   DecisionCache
	bloom   BloomFilter
	factory BloomFactory
	fpRate  float64
}

// NewRepository constructs a Repository.
// fpRate is the target false-positive rate for the Bloom filter when rebuilding.
func NewRepository(store Store, cache DecisionCache, factory BloomFactory, fpRate float64) Repository {
	return &repository{store: store, cache: cache, factory: factory, fpRate: fpRate}
}

// Decide returns a BlockDecision for the query name.
// Store errors resolve to allow so a broken index never blocks traffic.
func (r *repository) Decide(name domain.Name) domain.BlockDecision {
	cn := utils.CanonicalDNSName(name.String())
	if cn == "" {
		return domain.EmptyDecision()
	}
	if d, ok := r.checkCache(cn); ok {
		return d
	}
	if !r.checkBloom(cn) {
		return domain.EmptyDecision()
	}
	dec := r.checkStore(name, cn)
	r.updateCache(cn, dec)
	return dec
}

// UpdateAll rebuilds the store, then builds and swaps a Bloom filter sized for the new rules.
// The decision cache is purged with the swap. On a store error nothing is swapped.
func (r *repository) UpdateAll(rules []domain.BlockRule, version uint64, updatedUnix int64) error {
	if err := r.store.RebuildAll(rules, version, updatedUnix); err != nil {
		return err
	}

	var n uint64
	for _, ru := range rules {
		if ru.Kind == domain.BlockRuleExact || ru.Kind == domain.BlockRuleSuffix {
			n++
		}
	}
	bf := r.factory.New(n, r.fpRate)
	for _, ru := range rules {
		switch ru.Kind {
		case domain.BlockRuleExact:
			bf.Add([]byte(ru.Name))
		case domain.BlockRuleSuffix:
			bf.Add([]byte(reverseString(ru.Name)))
		}
	}

	r.mu.Lock()
	r.bloom = bf
	r.cache.Purge()
	r.mu.Unlock()
	return nil
}

// Stats snapshots the decision cache and the store.
func (r *repository) Stats() RepoStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RepoStats{Cache: r.cache.Stats(), Store: r.store.Stats()}
}

func (r *repository) Close() error {
	return r.store.Close()
}

// reverseString reverses s byte-wise, the same reversal the store applies to suffix keys.
func reverseString(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// checkBloom reports whether the store must be consulted. A nil filter always says yes.
func (r *repository) checkBloom(cn string) bool {
	r.mu.RLock()
	bf := r.bloom
	r.mu.RUnlock()
	if bf == nil {
		return true
	}
	if bf.MightContain([]byte(cn)) {
		return true
	}
	// suffix anchors, most specific first
	a := cn
	for a != "" {
		if bf.MightContain([]byte(reverseString(a))) {
			return true
		}
		i := strings.IndexByte(a, '.')
		if i < 0 {
			break
		}
		a = a[i+1:]
	}
	return false
}

func (r *repository) checkCache(cn string) (domain.BlockDecision, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache.Get(cn)
}

// checkStore only accepts a store hit whose rule actually covers name.
func (r *repository) checkStore(name domain.Name, cn string) domain.BlockDecision {
	rule, ok, err := r.store.GetFirstMatch(cn)
	if err == nil && ok && rule.Matches(name) {
		return domain.DecisionFor(rule)
	}
	return domain.EmptyDecision()
}

func (r *repository) updateCache(cn string, dec domain.BlockDecision) {
	r.mu.Lock()
	r.cache.Put(cn, dec)
	r.mu.Unlock()
}

var _ resolver.Blocklist = (*repository)(nil)
