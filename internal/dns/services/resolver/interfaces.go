package resolver

import (
	"context"
	"net"

	"github.com/haukened/cachedns/internal/dns/domain"
)

// Cache stores the first answer of upstream replies keyed by question.
type Cache interface {
	// Lookup returns the answer with its TTL set to the seconds remaining, or false on a miss.
	Lookup(q domain.Question) (domain.ResourceRecord, bool)
	// Insert stores rr as the answer to q and reports whether it can be looked up afterwards.
	Insert(q domain.Question, rr domain.ResourceRecord) bool
}

// Blocklist decides whether a query name is refused before any cache or upstream work.
type Blocklist interface {
	Decide(name domain.Name) domain.BlockDecision
}

// Upstream exchanges a raw query with an upstream resolver and returns the raw reply.
type Upstream interface {
	Exchange(ctx context.Context, query []byte) ([]byte, error)
}

// Codec converts between datagrams and messages.
type Codec interface {
	DecodeMessage(data []byte) (domain.Message, error)
	EncodeMessage(msg domain.Message) ([]byte, error)
	DetachAnswer(msg domain.Message, i int) (domain.ResourceRecord, error)
}

// PacketHandler turns one inbound datagram into at most one outbound datagram.
// A nil reply means the query is dropped; the returned error says why.
type PacketHandler interface {
	HandlePacket(ctx context.Context, packet []byte, client net.Addr) ([]byte, error)
}

// ServerTransport defines the interface for DNS server transport implementations.
// The transport owns the socket; the handler only sees raw datagrams.
type ServerTransport interface {
	// Start begins listening for requests and handling them via the provided handler.
	Start(ctx context.Context, handler PacketHandler) error

	// Stop closes the listener. Replies still in flight are discarded.
	Stop() error

	// Address returns the network address the transport is bound to.
	Address() string
}
