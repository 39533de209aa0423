package blocklist

import (
	"github.com/haukened/cachedns/internal/dns/domain"
	"github.com/haukened/cachedns/internal/dns/services/resolver"
)

// NoopBlocklist blocks nothing. It is used when no lists are configured.
type NoopBlocklist struct{}

func (NoopBlocklist) Decide(domain.Name) domain.BlockDecision {
	return domain.EmptyDecision()
}

var _ resolver.Blocklist = NoopBlocklist{}
