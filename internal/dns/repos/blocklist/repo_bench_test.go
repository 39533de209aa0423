package blocklist_test

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/haukened/cachedns/internal/dns/domain"
	"github.com/haukened/cachedns/internal/dns/repos/blocklist"
	"github.com/haukened/cachedns/internal/dns/repos/blocklist/bloom"
	"github.com/haukened/cachedns/internal/dns/repos/blocklist/bolt"
	"github.com/haukened/cachedns/internal/dns/repos/blocklist/lru"
)

func newBenchRepository(b *testing.B, cacheSize int) blocklist.Repository {
	b.Helper()
	store, err := bolt.New(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		b.Fatal(err)
	}
	repo := blocklist.NewRepository(store, cache, bloom.NewFactory(), 0.01)
	b.Cleanup(func() { _ = repo.Close() })

	now := time.Unix(1723550000, 0).UTC()
	rules := make([]domain.BlockRule, 0, 5000)
	for i := 0; i < 5000; i++ {
		rules = append(rules, domain.BlockRule{
			Name:    fmt.Sprintf("ads%d.bench.test", i),
			Kind:    domain.BlockRuleSuffix,
			Source:  "bench",
			AddedAt: now,
		})
	}
	if err := repo.UpdateAll(rules, 1, now.Unix()); err != nil {
		b.Fatal(err)
	}
	return repo
}

func benchNames() []domain.Name {
	return []domain.Name{
		domain.MustParseName("cdn.ads42.bench.test"),
		domain.MustParseName("www.example.com"),
		domain.MustParseName("mail.example.org"),
	}
}

func BenchmarkRepository_Decide_Cached(b *testing.B) {
	repo := newBenchRepository(b, 1000)
	names := benchNames()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = repo.Decide(names[i%len(names)])
	}
}

func BenchmarkRepository_Decide_Uncached(b *testing.B) {
	repo := newBenchRepository(b, 0)
	names := benchNames()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = repo.Decide(names[i%len(names)])
	}
}
