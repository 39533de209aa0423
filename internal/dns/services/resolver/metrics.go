package resolver

import "github.com/prometheus/client_golang/prometheus"

const (
	resultCacheHit = "cache_hit"
	resultUpstream = "upstream"
	resultBlocked  = "blocked"
	resultServfail = "servfail"
	resultDropped  = "dropped"
)

type metrics struct {
	queries          *prometheus.CounterVec
	upstreamDuration prometheus.Histogram
	coalesced        prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cachedns_queries_total",
			Help: "Queries handled, by outcome",
		}, []string{"result"}),
		upstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cachedns_upstream_duration_seconds",
			Help:    "Duration of upstream exchanges",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cachedns_coalesced_total",
			Help: "Queries answered from an upstream exchange shared with identical concurrent queries",
		}),
	}
	// pre-create every label so the series exist at zero
	for _, r := range []string{resultCacheHit, resultUpstream, resultBlocked, resultServfail, resultDropped} {
		m.queries.WithLabelValues(r)
	}
	return m
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.queries, m.upstreamDuration, m.coalesced}
}
