package transport

import (
	"fmt"

	"github.com/haukened/cachedns/internal/dns/common/log"
	"github.com/haukened/cachedns/internal/dns/services/resolver"
)

// NewTransport creates a new transport instance based on the specified type.
func NewTransport(transportType TransportType, opts Options, logger log.Logger) (resolver.ServerTransport, error) {
	switch transportType {
	case TransportUDP:
		return NewUDPTransport(opts, logger), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", transportType)
	}
}

// GetSupportedTransports returns a list of currently supported transport types.
func GetSupportedTransports() []TransportType {
	return []TransportType{
		TransportUDP,
	}
}

// IsTransportSupported checks if a given transport type is currently supported.
func IsTransportSupported(transportType TransportType) bool {
	for _, t := range GetSupportedTransports() {
		if t == transportType {
			return true
		}
	}
	return false
}
