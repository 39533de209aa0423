// Package wire encodes and decodes DNS messages in the RFC 1035 wire format,
// including domain name compression.
package wire

import (
	"github.com/haukened/cachedns/internal/dns/common/log"
	"github.com/haukened/cachedns/internal/dns/domain"
)

// DNSCodec converts between raw datagrams and domain.Message values.
type DNSCodec interface {
	DecodeMessage(data []byte) (domain.Message, error)
	EncodeMessage(msg domain.Message) ([]byte, error)
	// DetachAnswer returns answer i with any compressed names inside its rdata expanded,
	// so the record can be re-encoded into a different message.
	DetachAnswer(msg domain.Message, i int) (domain.ResourceRecord, error)
}

// Codec is the UDP wire codec. It holds no per-message state and is safe for concurrent use.
type Codec struct {
	logger log.Logger
}

// NewCodec creates a Codec that reports encode/decode steps at debug level on logger.
func NewCodec(logger log.Logger) *Codec {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Codec{
		logger: logger,
	}
}

var _ DNSCodec = (*Codec)(nil)
