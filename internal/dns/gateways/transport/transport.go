// Package transport owns the listening sockets. It reads raw datagrams, hands each one
// to a resolver.PacketHandler and writes back whatever reply the handler produces.
package transport

import "golang.org/x/time/rate"

// TransportType represents the different types of DNS transport protocols supported.
type TransportType string

const (
	// TransportUDP represents standard DNS over UDP (RFC 1035)
	TransportUDP TransportType = "udp"
)

// Options configures a listener.
type Options struct {
	// Address is the host:port to bind, e.g. ":8053".
	Address string
	// RateLimit caps accepted datagrams per second across all clients; 0 disables limiting.
	RateLimit float64
	// RateBurst is the number of datagrams accepted above RateLimit in a burst.
	RateBurst int
}

// limiter returns nil when rate limiting is disabled.
func (o Options) limiter() *rate.Limiter {
	if o.RateLimit <= 0 {
		return nil
	}
	burst := o.RateBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(o.RateLimit), burst)
}
