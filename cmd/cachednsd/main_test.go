package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/cachedns/internal/dns/common/log"
	"github.com/haukened/cachedns/internal/dns/config"
	"github.com/haukened/cachedns/internal/dns/domain"
	"github.com/haukened/cachedns/internal/dns/repos/dnscache"
)

// testConfig returns the defaults bound to ephemeral loopback ports.
func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := config.DEFAULT_APP_CONFIG
	cfg.Server.Address = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Upstream.Servers = []string{"127.0.0.1:53"}
	cfg.Upstream.Timeout = time.Second
	cfg.Blocklist.DB = filepath.Join(t.TempDir(), "state", "blocklist.db")
	cfg.Admin.Address = "127.0.0.1:0"
	return &cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "cachednsd 0.1.0-dev\n", out.String())
}

func TestRootCommand_ConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing config file",
			args:    []string{"--config", filepath.Join(t.TempDir(), "absent.yaml")},
			wantErr: "configuration error",
		},
		{
			name:    "unsupported extension",
			args:    []string{"-c", writeFile(t, "cachedns.ini", "x=1")},
			wantErr: "unsupported config file extension",
		},
		{
			name:    "invalid values",
			args:    []string{"-c", writeFile(t, "cachedns.yaml", "upstream:\n  servers: [\"not-an-address\"]\n")},
			wantErr: "validation failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand()
			var stderr bytes.Buffer
			cmd.SetErr(&stderr)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, stderr.String(), "cachednsd: ")
		})
	}
}

func TestRootCommand_RejectsArgs(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}

func TestBuildApplication_Defaults(t *testing.T) {
	cfg := testConfig(t)
	app, err := buildApplication(cfg, log.NewNoopLogger())
	require.NoError(t, err)

	assert.Same(t, cfg, app.config)
	assert.NotNil(t, app.resolver)
	assert.NotNil(t, app.transport)
	assert.NotNil(t, app.registry)
	assert.Nil(t, app.blocklist)
	assert.Nil(t, app.admin)
	assert.Equal(t, cfg.Cache.Size, app.cache.Stats().Capacity)
	assert.Equal(t, "127.0.0.1:0", app.transport.Address())

	families, err := app.registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "cachedns_queries_total")
	assert.Contains(t, names, "go_goroutines")
}

func TestBuildApplication_CacheDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Disabled = true
	app, err := buildApplication(cfg, log.NewNoopLogger())
	require.NoError(t, err)
	assert.IsType(t, dnscache.NoopCache{}, app.cache)
}

func TestBuildApplication_AdminEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Admin.Enabled = true
	app, err := buildApplication(cfg, log.NewNoopLogger())
	require.NoError(t, err)
	require.NotNil(t, app.admin)
	assert.Equal(t, "127.0.0.1:0", app.admin.Address())
}

func TestBuildApplication_Blocklist(t *testing.T) {
	cfg := testConfig(t)
	cfg.Blocklist.Plain = []string{writeFile(t, "plain.txt", "*.ads.test\ntracker.test\n")}
	cfg.Blocklist.Hosts = []string{writeFile(t, "hosts", "0.0.0.0 malware.test\n")}

	app, err := buildApplication(cfg, log.NewNoopLogger())
	require.NoError(t, err)
	require.NotNil(t, app.blocklist)
	t.Cleanup(func() { _ = app.blocklist.Close() })

	assert.FileExists(t, cfg.Blocklist.DB)
	stats := app.blocklist.Stats().Store
	assert.Equal(t, uint64(2), stats.ExactKeys)
	assert.Equal(t, uint64(1), stats.SuffixKeys)

	tests := map[string]bool{
		"ads.test":         true,
		"cdn.ads.test":     true,
		"tracker.test":     true,
		"sub.tracker.test": false,
		"malware.test":     true,
		"example.com":      false,
	}
	for name, blocked := range tests {
		assert.Equal(t, blocked, app.blocklist.Decide(domain.MustParseName(name)).Blocked, name)
	}
}

func TestBuildApplication_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T, cfg *config.AppConfig)
		wantErr string
	}{
		{
			name:    "no upstream servers",
			mutate:  func(_ *testing.T, cfg *config.AppConfig) { cfg.Upstream.Servers = nil },
			wantErr: "failed to create upstream client",
		},
		{
			name:    "invalid cache size",
			mutate:  func(_ *testing.T, cfg *config.AppConfig) { cfg.Cache.Size = 0 },
			wantErr: "failed to create answer cache",
		},
		{
			name: "missing blocklist file",
			mutate: func(t *testing.T, cfg *config.AppConfig) {
				cfg.Blocklist.Plain = []string{filepath.Join(t.TempDir(), "absent.txt")}
			},
			wantErr: "failed to open blocklist",
		},
		{
			name: "blocklist db is a directory",
			mutate: func(t *testing.T, cfg *config.AppConfig) {
				cfg.Blocklist.Plain = []string{writeFile(t, "plain.txt", "ads.test\n")}
				cfg.Blocklist.DB = t.TempDir()
			},
			wantErr: "failed to open blocklist db",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(t, cfg)
			app, err := buildApplication(cfg, log.NewNoopLogger())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, app)
		})
	}
}

func TestBlockRCode(t *testing.T) {
	assert.Equal(t, domain.NXDOMAIN, blockRCode("nxdomain"))
	assert.Equal(t, domain.REFUSED, blockRCode("refused"))
	assert.Equal(t, domain.REFUSED, blockRCode(""))
}
