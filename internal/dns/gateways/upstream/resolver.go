package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/haukened/cachedns/internal/dns/common/log"
	"github.com/haukened/cachedns/internal/dns/domain"
	"github.com/haukened/cachedns/internal/dns/gateways/wire"
	"github.com/haukened/cachedns/internal/dns/services/resolver"
)

// Error message constants for consistent error handling
const (
	errNoServersProvided = "no upstream DNS servers provided"
	errQueryTooShort     = "query shorter than a DNS header"
	errServerFailed      = "server %s: %w"
	errAllServersFailed  = "all %d upstream servers failed"
	errQueryTimeout      = "%w after %v"
	errFailedToConnect   = "failed to connect: %w"
	errWriteFailed       = "write failed: %w"
	errReadFailed        = "read failed: %w"
	errSetDeadline       = "failed to set connection deadline: %w"
)

// maxReplySize is large enough for any UDP datagram.
const maxReplySize = 64 * 1024

// Resolver forwards raw queries to upstream DNS servers over UDP.
// Replies are returned as received; the only check applied is that the reply carries the query's ID.
type Resolver struct {
	servers  []string      // List of upstream DNS servers (e.g., "1.1.1.1:53")
	timeout  time.Duration // Default timeout when the context carries no deadline
	parallel bool          // Whether to query all servers at once
	dial     DialFunc      // Dial function to create network connections
	logger   log.Logger
}

// DialFunc defines a function type for establishing a network connection.
// It takes a context for cancellation, the network type (e.g., "tcp", "udp"),
// and the address to connect to, returning a net.Conn and an error if any occurs.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Options defines configuration parameters for the upstream resolver.
type Options struct {
	// required parameters
	Servers  []string
	Timeout  time.Duration
	Parallel bool
	Logger   log.Logger
	// options to inject for testing purposes
	Dial DialFunc
}

// NewResolver creates a new upstream resolver with the specified options.
// Returns an error if the server list is empty.
// Sets default timeout to 5 seconds and default dial function if not provided.
func NewResolver(opts Options) (*Resolver, error) {
	if len(opts.Servers) == 0 {
		return nil, errors.New(errNoServersProvided)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Dial == nil {
		opts.Dial = (&net.Dialer{}).DialContext
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Resolver{
		servers:  opts.Servers,
		timeout:  opts.Timeout,
		parallel: opts.Parallel,
		dial:     opts.Dial,
		logger:   opts.Logger,
	}, nil
}

// ensureContextDeadline ensures the context has a deadline, adding the resolver's default timeout if needed.
// Returns the context (potentially with added timeout) and a cancel function if one was created.
func (r *Resolver) ensureContextDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, r.timeout)
	}
	return ctx, nil
}

// Exchange sends query to the upstream servers and returns the first reply carrying the
// query's ID. A reply that does not arrive before the deadline yields domain.ErrUpstreamTimeout.
func (r *Resolver) Exchange(ctx context.Context, query []byte) ([]byte, error) {
	id, ok := wire.PeekID(query)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFormat, errQueryTooShort)
	}

	ctx, cancel := r.ensureContextDeadline(ctx)
	if cancel != nil {
		defer cancel()
	}

	var (
		reply []byte
		err   error
	)
	if r.parallel {
		reply, err = r.exchangeParallel(ctx, query, id)
	} else {
		reply, err = r.exchangeSerial(ctx, query, id)
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrUpstreamTimeout) {
		return nil, fmt.Errorf(errQueryTimeout+": %w", domain.ErrUpstreamTimeout, r.timeout, err)
	}
	return reply, err
}

// exchangeSerial tries each server in order until one replies.
func (r *Resolver) exchangeSerial(ctx context.Context, query []byte, id uint16) ([]byte, error) {
	var lastErr error
	for _, server := range r.servers {
		reply, err := r.exchangeWith(ctx, server, query, id)
		if err == nil {
			return reply, nil
		}
		r.logger.Debug(map[string]any{"server": server, "error": err.Error()}, "Upstream server failed")
		lastErr = fmt.Errorf(errServerFailed, server, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf(errAllServersFailed+": %w", len(r.servers), lastErr)
}

// exchangeParallel queries every server at once and returns the first reply.
func (r *Resolver) exchangeParallel(ctx context.Context, query []byte, id uint16) ([]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	replyChan := make(chan []byte, 1)
	errorChan := make(chan error, len(r.servers))

	for _, server := range r.servers {
		go func(srv string) {
			reply, err := r.exchangeWith(ctx, srv, query, id)
			if err != nil {
				errorChan <- fmt.Errorf(errServerFailed, srv, err)
				return
			}
			select {
			case replyChan <- reply:
			default:
				// another server answered first
			}
		}(server)
	}

	var errs []error
	for i := 0; i < len(r.servers); i++ {
		select {
		case reply := <-replyChan:
			return reply, nil
		case err := <-errorChan:
			errs = append(errs, err)
		case <-ctx.Done():
			return nil, fmt.Errorf(errQueryTimeout, domain.ErrUpstreamTimeout, r.timeout)
		}
	}
	return nil, fmt.Errorf(errAllServersFailed+": %w", len(r.servers), errors.Join(errs...))
}

// exchangeWith performs one UDP round trip. Datagrams carrying a different ID are
// discarded and reading continues until the deadline.
func (r *Resolver) exchangeWith(ctx context.Context, server string, query []byte, id uint16) ([]byte, error) {
	conn, err := r.dial(ctx, "udp", server)
	if err != nil {
		return nil, fmt.Errorf(errFailedToConnect, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf(errSetDeadline, err)
		}
	}

	type result struct {
		reply []byte
		err   error
	}
	resultChan := make(chan result, 1)

	go func() {
		if _, err := conn.Write(query); err != nil {
			resultChan <- result{err: fmt.Errorf(errWriteFailed, err)}
			return
		}
		buffer := make([]byte, maxReplySize)
		for {
			n, err := conn.Read(buffer)
			if err != nil {
				resultChan <- result{err: fmt.Errorf(errReadFailed, err)}
				return
			}
			if got, ok := wire.PeekID(buffer[:n]); !ok || got != id {
				r.logger.Debug(map[string]any{"server": server, "expected_id": id, "bytes": n}, "Ignoring unrelated upstream datagram")
				continue
			}
			reply := make([]byte, n)
			copy(reply, buffer[:n])
			resultChan <- result{reply: reply}
			return
		}
	}()

	select {
	case res := <-resultChan:
		if res.err != nil && isTimeout(res.err) {
			return nil, fmt.Errorf(errQueryTimeout+": %w", domain.ErrUpstreamTimeout, r.timeout, res.err)
		}
		return res.reply, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

var _ resolver.Upstream = (*Resolver)(nil)
