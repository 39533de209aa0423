package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/time/rate"

	"github.com/haukened/cachedns/internal/dns/common/log"
	"github.com/haukened/cachedns/internal/dns/services/resolver"
)

// maxDatagramSize is the receive buffer for inbound queries.
const maxDatagramSize = 1500

// UDPTransport implements resolver.ServerTransport for standard DNS over UDP (RFC 1035).
// One loop reads datagrams; each datagram is copied and handled on its own goroutine.
type UDPTransport struct {
	addr    string
	conn    *net.UDPConn
	logger  log.Logger
	limiter *rate.Limiter

	// Synchronization for graceful shutdown
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// NewUDPTransport creates a new UDP transport instance.
func NewUDPTransport(opts Options, logger log.Logger) *UDPTransport {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &UDPTransport{
		addr:    opts.Address,
		logger:  logger,
		limiter: opts.limiter(),
		stopCh:  make(chan struct{}),
	}
}

// Start binds the UDP socket and starts the receive loop.
// It returns once the socket is bound; a bind failure is returned to the caller.
func (t *UDPTransport) Start(ctx context.Context, handler resolver.PacketHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("UDP transport already running")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", t.addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", t.addr, err)
	}

	t.conn = conn
	t.running = true
	t.stopCh = make(chan struct{})

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   conn.LocalAddr().String(),
	}, "DNS transport started")

	go t.listenLoop(ctx, conn, t.stopCh, handler)

	return nil
}

// Stop closes the socket. Replies for queries still being handled are discarded.
func (t *UDPTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}

	close(t.stopCh)

	var closeErr error
	if t.conn != nil {
		closeErr = t.conn.Close()
		if closeErr != nil {
			t.logger.Warn(map[string]any{
				"error": closeErr.Error(),
			}, "Error closing UDP connection")
		}
	}

	t.running = false

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   t.addr,
	}, "DNS transport stopped")

	return closeErr
}

// Address returns the bound address while running, otherwise the configured one.
func (t *UDPTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.running && t.conn != nil {
		return t.conn.LocalAddr().String()
	}
	return t.addr
}

func (t *UDPTransport) isRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// listenLoop reads datagrams until the transport is stopped or ctx is cancelled.
func (t *UDPTransport) listenLoop(ctx context.Context, conn *net.UDPConn, stopCh <-chan struct{}, handler resolver.PacketHandler) {
	go func() {
		select {
		case <-ctx.Done():
			t.logger.Debug(nil, "UDP transport stopping due to context cancellation")
			_ = t.Stop()
		case <-stopCh:
		}
	}()

	buffer := make([]byte, maxDatagramSize)
	for {
		n, clientAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			select {
			case <-stopCh:
				t.logger.Debug(nil, "UDP transport stopping due to stop signal")
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			t.logger.Warn(map[string]any{
				"error": err.Error(),
			}, "Failed to read UDP packet")
			continue
		}

		if t.limiter != nil && !t.limiter.Allow() {
			t.logger.Debug(map[string]any{
				"client": clientAddr.String(),
			}, "Rate limit exceeded, dropping datagram")
			continue
		}

		packet := make([]byte, n)
		copy(packet, buffer[:n])
		go t.handlePacket(ctx, conn, packet, clientAddr, handler)
	}
}

// handlePacket runs the handler for one datagram and sends its reply, if any.
func (t *UDPTransport) handlePacket(ctx context.Context, conn *net.UDPConn, data []byte, clientAddr *net.UDPAddr, handler resolver.PacketHandler) {
	t.logger.Debug(map[string]any{
		"client": clientAddr.String(),
		"size":   len(data),
	}, "Received DNS query datagram")

	reply, err := handler.HandlePacket(ctx, data, clientAddr)
	if reply == nil {
		fields := map[string]any{"client": clientAddr.String()}
		if err != nil {
			fields["error"] = err.Error()
		}
		t.logger.Debug(fields, "Query dropped without reply")
		return
	}

	if !t.isRunning() {
		return
	}

	if _, err := conn.WriteToUDP(reply, clientAddr); err != nil {
		if !t.isRunning() || errors.Is(err, net.ErrClosed) {
			return
		}
		t.logger.Error(map[string]any{
			"client": clientAddr.String(),
			"error":  err.Error(),
		}, "Failed to send DNS response")
		return
	}

	t.logger.Debug(map[string]any{
		"client": clientAddr.String(),
		"size":   len(reply),
	}, "Sent DNS response")
}

var _ resolver.ServerTransport = (*UDPTransport)(nil)
