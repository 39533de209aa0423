package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/haukened/cachedns/internal/dns/common/clock"
	"github.com/haukened/cachedns/internal/dns/common/log"
	"github.com/haukened/cachedns/internal/dns/config"
	"github.com/haukened/cachedns/internal/dns/domain"
	"github.com/haukened/cachedns/internal/dns/gateways/admin"
	"github.com/haukened/cachedns/internal/dns/gateways/transport"
	"github.com/haukened/cachedns/internal/dns/gateways/upstream"
	"github.com/haukened/cachedns/internal/dns/gateways/wire"
	"github.com/haukened/cachedns/internal/dns/repos/blocklist"
	"github.com/haukened/cachedns/internal/dns/repos/blocklist/bloom"
	"github.com/haukened/cachedns/internal/dns/repos/blocklist/bolt"
	"github.com/haukened/cachedns/internal/dns/repos/blocklist/lru"
	"github.com/haukened/cachedns/internal/dns/repos/blocklist/parsers"
	"github.com/haukened/cachedns/internal/dns/repos/dnscache"
	"github.com/haukened/cachedns/internal/dns/services/resolver"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "cachednsd"

	defaultShutdownTimeout = 10 * time.Second
)

// answerCache is what both the resolver and the admin surface need from the cache.
type answerCache interface {
	resolver.Cache
	admin.CacheInspector
}

// Application holds all the components of the DNS server
type Application struct {
	config    *config.AppConfig
	logger    log.Logger
	cache     answerCache
	blocklist blocklist.Repository // nil when no lists are configured
	resolver  *resolver.Resolver
	transport resolver.ServerTransport
	admin     *admin.Server // nil when disabled
	registry  *prometheus.Registry
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           appName,
		Short:         "Caching DNS forwarder",
		Long:          "cachednsd answers DNS queries over UDP from an in-memory cache and forwards misses to upstream resolvers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd.Context(), configPath)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", appName, err)
			}
			return err
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML, JSON or TOML config file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
		},
	})
	return root
}

// run loads configuration, builds the application and serves until SIGINT or SIGTERM.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		return fmt.Errorf("logging configuration error: %w", err)
	}
	logger := log.GetLogger()

	logger.Info(map[string]any{
		"version":   version,
		"env":       cfg.Env,
		"log_level": cfg.Log.Level,
		"listen":    cfg.ListenAddr(),
		"servers":   cfg.Upstream.Servers,
		"cache":     !cfg.Cache.Disabled,
		"blocklist": cfg.Blocklist.Enabled(),
	}, "Starting cachedns")

	app, err := buildApplication(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		return err
	}
	logger.Info(nil, "cachedns stopped gracefully")
	return nil
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig, logger log.Logger) (*Application, error) {
	clk := clock.RealClock{}
	codec := wire.NewCodec(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cache, err := buildCache(cfg.Cache, clk, logger)
	if err != nil {
		return nil, err
	}

	up, err := upstream.NewResolver(upstream.Options{
		Servers:  cfg.Upstream.Servers,
		Timeout:  cfg.Upstream.Timeout,
		Parallel: cfg.Upstream.Parallel,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}
	logger.Info(map[string]any{
		"servers":  cfg.Upstream.Servers,
		"timeout":  cfg.Upstream.Timeout.String(),
		"parallel": cfg.Upstream.Parallel,
	}, "Upstream DNS client configured")

	tr, err := transport.NewTransport(transport.TransportUDP, transport.Options{
		Address:   cfg.ListenAddr(),
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	// opens the index file; any later failure must close it
	bl, err := buildBlocklist(cfg.Blocklist, clk, logger)
	if err != nil {
		return nil, err
	}

	opts := resolver.ResolverOptions{
		BlockRCode:      blockRCode(cfg.Blocklist.Strategy),
		Cache:           cache,
		Codec:           codec,
		Logger:          logger,
		Upstream:        up,
		UpstreamTimeout: cfg.Upstream.Timeout,
	}
	if bl != nil {
		opts.Blocklist = bl
	}
	res := resolver.NewResolver(opts)
	if err := res.RegisterMetrics(registry); err != nil {
		closeBlocklist(bl, logger)
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	app := &Application{
		config:    cfg,
		logger:    logger,
		cache:     cache,
		blocklist: bl,
		resolver:  res,
		transport: tr,
		registry:  registry,
	}

	if cfg.Admin.Enabled {
		adminOpts := admin.Options{
			Address:  cfg.Admin.Address,
			Cache:    cache,
			Gatherer: registry,
			Logger:   logger,
		}
		if bl != nil {
			adminOpts.Blocklist = bl
		}
		app.admin = admin.NewServer(adminOpts)
	}
	return app, nil
}

func buildCache(cfg config.CacheConfig, clk clock.Clock, logger log.Logger) (answerCache, error) {
	if cfg.Disabled {
		logger.Info(map[string]any{"disabled": true}, "DNS answer caching disabled")
		return dnscache.NoopCache{}, nil
	}
	cache, err := dnscache.New(cfg.Size, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to create answer cache: %w", err)
	}
	logger.Info(map[string]any{"type": "LRU", "size": cfg.Size}, "DNS answer cache configured")
	return cache, nil
}

// buildBlocklist loads every configured list into a freshly rebuilt index.
// It returns nil when no lists are configured.
func buildBlocklist(cfg config.BlocklistConfig, clk clock.Clock, logger log.Logger) (blocklist.Repository, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	now := clk.Now()
	rules, err := parsers.LoadFiles(cfg.Plain, cfg.Hosts, logger, now)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DB), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create blocklist db directory: %w", err)
	}
	store, err := bolt.New(cfg.DB)
	if err != nil {
		return nil, err
	}
	decisions, err := lru.New(cfg.CacheSize)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create blocklist decision cache: %w", err)
	}

	repo := blocklist.NewRepository(store, decisions, bloom.NewFactory(), cfg.FPRate)
	if err := repo.UpdateAll(rules, uint64(now.Unix()), now.Unix()); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to build blocklist index: %w", err)
	}

	st := repo.Stats().Store
	logger.Info(map[string]any{
		"rules":    len(rules),
		"exact":    st.ExactKeys,
		"suffix":   st.SuffixKeys,
		"db":       cfg.DB,
		"strategy": cfg.Strategy,
	}, "Blocklist loaded")
	return repo, nil
}

func blockRCode(strategy string) domain.RCode {
	if strategy == "nxdomain" {
		return domain.NXDOMAIN
	}
	return domain.REFUSED
}

func closeBlocklist(bl blocklist.Repository, logger log.Logger) {
	if bl == nil {
		return
	}
	if err := bl.Close(); err != nil {
		logger.Warn(map[string]any{"error": err.Error()}, "Error closing blocklist store")
	}
}

// Run starts the DNS server and blocks until ctx is cancelled, then shuts everything down.
func (app *Application) Run(ctx context.Context) error {
	defer closeBlocklist(app.blocklist, app.logger)

	if err := app.transport.Start(ctx, app.resolver); err != nil {
		return fmt.Errorf("failed to start UDP transport: %w", err)
	}
	if app.admin != nil {
		if err := app.admin.Start(); err != nil {
			_ = app.transport.Stop()
			return fmt.Errorf("failed to start admin server: %w", err)
		}
	}

	app.logger.Info(map[string]any{
		"address":   app.transport.Address(),
		"transport": "udp",
	}, "DNS server started")

	<-ctx.Done()
	app.logger.Info(nil, "Shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	var errs []error
	if err := app.transport.Stop(); err != nil {
		app.logger.Warn(map[string]any{"error": err.Error()}, "Error during transport shutdown")
	}
	if app.admin != nil {
		if err := app.admin.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("admin shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
