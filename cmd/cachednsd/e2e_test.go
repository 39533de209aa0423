package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/cachedns/internal/dns/common/log"
	"github.com/haukened/cachedns/internal/dns/gateways/admin"
)

// startFakeUpstream serves www.example.com A 192.0.2.10 and NXDOMAIN for everything else.
func startFakeUpstream(t *testing.T) (string, *atomic.Int32) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	var queries atomic.Int32
	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		queries.Add(1)
		m := new(dns.Msg)
		m.SetReply(req)
		if req.Question[0].Name == "www.example.com." && req.Question[0].Qtype == dns.TypeA {
			rr, err := dns.NewRR("www.example.com. 300 IN A 192.0.2.10")
			if err == nil {
				m.Answer = append(m.Answer, rr)
			}
		} else {
			m.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("fake upstream did not start")
	}
	return pc.LocalAddr().String(), &queries
}

func TestE2E_CachingBlockingAndAdmin(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	upstreamAddr, upstreamQueries := startFakeUpstream(t)

	cfg := testConfig(t)
	cfg.Upstream.Servers = []string{upstreamAddr}
	cfg.Blocklist.Plain = []string{writeFile(t, "plain.txt", "*.ads.test\n")}
	cfg.Admin.Enabled = true

	app, err := buildApplication(cfg, log.NewNoopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	appErr := make(chan error, 1)
	go func() { appErr <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		return app.transport.Address() != "127.0.0.1:0" && app.admin.Address() != "127.0.0.1:0"
	}, 2*time.Second, 10*time.Millisecond)

	client := &dns.Client{Net: "udp", Timeout: 2 * time.Second}
	query := func(name string) *dns.Msg {
		t.Helper()
		m := new(dns.Msg)
		m.SetQuestion(name, dns.TypeA)
		resp, _, err := client.Exchange(m, app.transport.Address())
		require.NoError(t, err)
		require.Equal(t, m.Id, resp.Id)
		return resp
	}

	t.Run("miss is forwarded", func(t *testing.T) {
		resp := query("www.example.com.")
		assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
		require.Len(t, resp.Answer, 1)
		a, ok := resp.Answer[0].(*dns.A)
		require.True(t, ok)
		assert.Equal(t, "192.0.2.10", a.A.String())
		assert.Equal(t, int32(1), upstreamQueries.Load())
	})

	t.Run("hit is served from cache", func(t *testing.T) {
		resp := query("WWW.Example.COM.")
		assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
		require.Len(t, resp.Answer, 1)
		assert.LessOrEqual(t, resp.Answer[0].Header().Ttl, uint32(300))
		assert.Equal(t, int32(1), upstreamQueries.Load())
	})

	t.Run("blocked name is refused locally", func(t *testing.T) {
		resp := query("tracker.ads.test.")
		assert.Equal(t, dns.RcodeRefused, resp.Rcode)
		assert.Empty(t, resp.Answer)
		assert.True(t, resp.Response)
		assert.Equal(t, int32(1), upstreamQueries.Load())
	})

	t.Run("upstream NXDOMAIN is relayed", func(t *testing.T) {
		resp := query("missing.example.com.")
		assert.Equal(t, dns.RcodeNameError, resp.Rcode)
		assert.Equal(t, int32(2), upstreamQueries.Load())
	})

	base := "http://" + app.admin.Address()

	t.Run("admin lists cached entries", func(t *testing.T) {
		resp, err := http.Get(base + "/cache/entries")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var entries []admin.EntryView
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
		var found bool
		for _, e := range entries {
			if e.Type == "A" && e.Data == "192.0.2.10" {
				found = true
			}
		}
		assert.True(t, found, "cached A record listed")
	})

	t.Run("admin exposes metrics", func(t *testing.T) {
		resp, err := http.Get(base + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `cachedns_queries_total{result="cache_hit"} 1`)
		assert.Contains(t, string(body), `cachedns_queries_total{result="blocked"} 1`)
	})

	cancel()
	select {
	case err := <-appErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not stop")
	}
}

func TestApplicationRun_StartFailure(t *testing.T) {
	blocker, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()

	cfg := testConfig(t)
	cfg.Server.Port = blocker.LocalAddr().(*net.UDPAddr).Port
	app, err := buildApplication(cfg, log.NewNoopLogger())
	require.NoError(t, err)

	err = app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start UDP transport")
}

func TestApplicationRun_AdminBindFailure(t *testing.T) {
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()

	cfg := testConfig(t)
	cfg.Admin.Enabled = true
	cfg.Admin.Address = blocker.Addr().String()
	app, err := buildApplication(cfg, log.NewNoopLogger())
	require.NoError(t, err)

	err = app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start admin server")
	assert.Equal(t, "127.0.0.1:0", app.transport.Address(), "transport stopped again")
}
