// Package resolver orchestrates the handling of one inbound query: decode, blocklist,
// cache lookup, upstream forwarding with miss coalescing, and response synthesis.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/haukened/cachedns/internal/dns/common/log"
	"github.com/haukened/cachedns/internal/dns/domain"
	"github.com/haukened/cachedns/internal/dns/gateways/wire"
)

// DefaultUpstreamTimeout bounds an upstream exchange when no timeout is configured.
const DefaultUpstreamTimeout = 5 * time.Second

type Resolver struct {
	blocklist  Blocklist
	blockRCode domain.RCode
	cache      Cache
	codec      Codec
	logger     log.Logger
	timeout    time.Duration
	upstream   Upstream

	flight  singleflight.Group
	metrics *metrics
}

type ResolverOptions struct {
	// Blocklist is optional; a nil Blocklist blocks nothing.
	Blocklist Blocklist
	// BlockRCode is the response code for blocked names (REFUSED or NXDOMAIN).
	BlockRCode      domain.RCode
	Cache           Cache
	Codec           Codec
	Logger          log.Logger
	Upstream        Upstream
	UpstreamTimeout time.Duration
}

func NewResolver(opts ResolverOptions) *Resolver {
	r := &Resolver{
		blocklist:  opts.Blocklist,
		blockRCode: opts.BlockRCode,
		cache:      opts.Cache,
		codec:      opts.Codec,
		logger:     opts.Logger,
		timeout:    opts.UpstreamTimeout,
		upstream:   opts.Upstream,
		metrics:    newMetrics(),
	}
	if r.logger == nil {
		r.logger = log.NewNoopLogger()
	}
	if r.timeout <= 0 {
		r.timeout = DefaultUpstreamTimeout
	}
	if r.blockRCode == domain.NOERROR {
		r.blockRCode = domain.REFUSED
	}
	return r
}

// RegisterMetrics registers the resolver's collectors with reg.
func (r *Resolver) RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range r.metrics.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// HandlePacket answers one datagram. A non-nil reply is sent back to the client;
// a nil reply means the query is dropped and err carries the reason.
// No error returned here is fatal to the service.
func (r *Resolver) HandlePacket(ctx context.Context, packet []byte, client net.Addr) ([]byte, error) {
	req, err := r.codec.DecodeMessage(packet)
	if err != nil {
		return r.drop(r.logger, err, "Dropping undecodable query")
	}
	if req.IsResponse() {
		return r.drop(r.logger, fmt.Errorf("%w: inbound message has QR set", domain.ErrNotQuery), "Dropping inbound response")
	}
	q, err := req.PrimaryQuestion()
	if err != nil {
		return r.drop(r.logger, err, "Dropping query without exactly one question")
	}

	logger := r.logger.With(map[string]any{
		"id":       req.Header.ID,
		"question": q.String(),
		"client":   addrString(client),
	})

	if r.blocklist != nil {
		if d := r.blocklist.Decide(q.Name); d.IsBlocked() {
			logger.Info(map[string]any{"rule": d.MatchedRule, "source": d.Source, "kind": d.Kind.String()}, "Blocked query")
			r.metrics.queries.WithLabelValues(resultBlocked).Inc()
			return r.synthesize(req, r.blockRCode)
		}
	}

	if rr, ok := r.cache.Lookup(q); ok {
		logger.Debug(map[string]any{"ttl": rr.TTL}, "Cache hit")
		resp, err := r.cachedResponse(req, rr)
		if err != nil {
			return r.drop(logger, err, "Failed to encode cached response")
		}
		r.metrics.queries.WithLabelValues(resultCacheHit).Inc()
		return resp, nil
	}

	reply, err := r.forward(ctx, req, q, packet, logger)
	switch {
	case err == nil:
		r.metrics.queries.WithLabelValues(resultUpstream).Inc()
		return reply, nil
	case errors.Is(err, domain.ErrProtocolViolation), errors.Is(err, domain.ErrCacheInsert):
		logger.Warn(map[string]any{"error": err.Error()}, "Dropping query after upstream exchange")
		r.metrics.queries.WithLabelValues(resultDropped).Inc()
		return nil, err
	default:
		logger.Warn(map[string]any{"error": err.Error()}, "Upstream exchange failed, answering SERVFAIL")
		r.metrics.queries.WithLabelValues(resultServfail).Inc()
		return r.synthesize(req, domain.SERVFAIL)
	}
}

// forward sends the client's bytes upstream unmodified. Identical concurrent queries
// share one exchange; each caller gets the reply carrying its own message ID.
func (r *Resolver) forward(ctx context.Context, req domain.Message, q domain.Question, packet []byte, logger log.Logger) ([]byte, error) {
	key := string(wire.WithID(packet, 0))
	v, err, shared := r.flight.Do(key, func() (any, error) {
		return r.exchange(ctx, q, packet, logger)
	})
	if shared {
		r.metrics.coalesced.Inc()
	}
	if err != nil {
		return nil, err
	}
	return wire.WithID(v.([]byte), req.Header.ID), nil
}

// exchange performs one upstream round trip and caches the first answer of the reply.
// It runs detached from the client's cancellation so an abandoned query still warms the cache.
func (r *Resolver) exchange(ctx context.Context, q domain.Question, packet []byte, logger log.Logger) ([]byte, error) {
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	start := time.Now()
	reply, err := r.upstream.Exchange(uctx, packet)
	r.metrics.upstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	resp, err := r.codec.DecodeMessage(reply)
	if err != nil {
		return nil, fmt.Errorf("undecodable upstream reply: %w", err)
	}
	if !resp.IsResponse() {
		return nil, fmt.Errorf("%w: upstream reply has QR clear", domain.ErrProtocolViolation)
	}
	if len(resp.Answers) == 0 {
		logger.Debug(map[string]any{"rcode": resp.Header.RCode.String()}, "Upstream reply carries no answers")
		return reply, nil
	}

	rr, err := r.codec.DetachAnswer(resp, 0)
	if err != nil {
		logger.Warn(map[string]any{"error": err.Error()}, "Relaying upstream reply uncached")
		return reply, nil
	}
	if rr.Lifetime() == 0 {
		logger.Debug(map[string]any{"record": rr.String()}, "Not caching zero TTL answer")
		return reply, nil
	}
	if !r.cache.Insert(q, rr) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCacheInsert, q)
	}
	logger.Debug(map[string]any{"record": rr.String()}, "Cached upstream answer")
	return reply, nil
}

// cachedResponse rebuilds a reply around a cached answer. The request's questions,
// authority and additional sections are copied through as received.
func (r *Resolver) cachedResponse(req domain.Message, rr domain.ResourceRecord) ([]byte, error) {
	resp := domain.Message{
		Questions:  req.Questions,
		Answers:    []domain.ResourceRecord{rr},
		Authority:  req.Authority,
		Additional: req.Additional,
	}
	resp.Header = wire.BuildResponseHeader(req, resp)
	return r.codec.EncodeMessage(resp)
}

// synthesize answers with only the question section and the given rcode.
func (r *Resolver) synthesize(req domain.Message, rcode domain.RCode) ([]byte, error) {
	resp := domain.Message{Questions: req.Questions}
	resp.Header = wire.BuildResponseHeader(req, resp)
	resp.Header.RA = true
	resp.Header.RCode = rcode
	out, err := r.codec.EncodeMessage(resp)
	if err != nil {
		return r.drop(r.logger, err, "Failed to encode synthesized response")
	}
	return out, nil
}

func (r *Resolver) drop(logger log.Logger, err error, msg string) ([]byte, error) {
	logger.Debug(map[string]any{"error": err.Error()}, msg)
	r.metrics.queries.WithLabelValues(resultDropped).Inc()
	return nil, err
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

var _ PacketHandler = (*Resolver)(nil)
