// Package admin exposes the operator HTTP surface: health, Prometheus metrics,
// answer cache inspection and purge, and blocklist statistics.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haukened/cachedns/internal/dns/common/log"
	"github.com/haukened/cachedns/internal/dns/common/rrdata"
	"github.com/haukened/cachedns/internal/dns/common/utils"
	"github.com/haukened/cachedns/internal/dns/domain"
	"github.com/haukened/cachedns/internal/dns/repos/blocklist"
)

const readHeaderTimeout = 5 * time.Second

// CacheInspector is the read and purge surface of the answer cache.
type CacheInspector interface {
	Entries() []domain.CacheEntry
	Stats() domain.CacheStats
	Purge() int
	PurgeApex(name domain.Name) int
}

// BlocklistInspector reports blocklist statistics.
type BlocklistInspector interface {
	Stats() blocklist.RepoStats
}

// Options configures the admin server. Cache is required; Gatherer and Blocklist are optional.
type Options struct {
	Address   string
	Cache     CacheInspector
	Blocklist BlocklistInspector
	Gatherer  prometheus.Gatherer
	Logger    log.Logger
}

// Server serves the admin endpoints over HTTP.
type Server struct {
	addr      string
	cache     CacheInspector
	blocklist BlocklistInspector
	gatherer  prometheus.Gatherer
	logger    log.Logger
	router    chi.Router

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// EntryView is the JSON form of one cached answer.
type EntryView struct {
	Question  string    `json:"question"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Class     string    `json:"class"`
	TTL       uint32    `json:"ttl"`
	Data      string    `json:"data"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PurgeResult is returned by the purge endpoints.
type PurgeResult struct {
	Apex   string `json:"apex,omitempty"`
	Purged int    `json:"purged"`
}

// NewServer builds the router. Nothing listens until Start.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		addr:      opts.Address,
		cache:     opts.Cache,
		blocklist: opts.Blocklist,
		gatherer:  opts.Gatherer,
		logger:    opts.Logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/cache", func(r chi.Router) {
		r.Get("/", s.handleCacheStats)
		r.Delete("/", s.handleCachePurge)
		r.Get("/entries", s.handleCacheEntries)
		r.Delete("/{name}", s.handleCachePurgeName)
	})
	r.Get("/blocklist", s.handleBlocklistStats)
	return r
}

// Handler returns the admin router.
func (s *Server) Handler() http.Handler { return s.router }

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return errors.New("admin server already running")
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind admin listener on %s: %w", s.addr, err)
	}
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: readHeaderTimeout}
	s.srv, s.listener = srv, ln

	s.logger.Info(map[string]any{"address": ln.Addr().String()}, "Admin server started")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(map[string]any{"error": err.Error()}, "Admin server failed")
		}
	}()
	return nil
}

// Address returns the bound address while running, otherwise the configured one.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.listener = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	s.logger.Info(nil, "Admin server stopped")
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Server) handleCacheEntries(w http.ResponseWriter, _ *http.Request) {
	entries := s.cache.Entries()
	out := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		data, err := rrdata.Text(e.Record.Type, e.Record.RData)
		if err != nil {
			data = rrdata.Generic(e.Record.RData)
		}
		out = append(out, EntryView{
			Question:  e.Question.String(),
			Name:      e.Record.Name.FQDN(),
			Type:      e.Record.Type.String(),
			Class:     e.Record.Class.String(),
			TTL:       e.Record.TTL,
			Data:      data,
			StoredAt:  e.StoredAt.UTC(),
			ExpiresAt: e.ExpiresAt.UTC(),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCachePurge(w http.ResponseWriter, _ *http.Request) {
	n := s.cache.Purge()
	s.logger.Info(map[string]any{"purged": n}, "Cache purged")
	s.writeJSON(w, http.StatusOK, PurgeResult{Purged: n})
}

func (s *Server) handleCachePurgeName(w http.ResponseWriter, r *http.Request) {
	name, err := domain.ParseName(chi.URLParam(r, "name"))
	if err != nil || name.IsRoot() {
		http.Error(w, "invalid domain name", http.StatusBadRequest)
		return
	}
	apex := utils.ApexOf(name)
	n := s.cache.PurgeApex(name)
	s.logger.Info(map[string]any{"apex": apex, "purged": n}, "Cache purged for domain")
	s.writeJSON(w, http.StatusOK, PurgeResult{Apex: apex, Purged: n})
}

func (s *Server) handleBlocklistStats(w http.ResponseWriter, _ *http.Request) {
	if s.blocklist == nil {
		http.Error(w, "blocklist disabled", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, s.blocklist.Stats())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(map[string]any{"error": err.Error()}, "Failed to write admin response")
	}
}
