package utils

import (
	"strings"

	"github.com/haukened/cachedns/internal/dns/domain"
	"golang.org/x/net/publicsuffix"
)

// CanonicalDNSName returns a DNS name lower-cased, trimmed of surrounding whitespace,
// and without trailing dots. Blocklist keys and apex lookups use this form.
func CanonicalDNSName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimRight(name, ".")
}

// GetApexDomain returns the registrable domain (eTLD+1) of name. Names the public
// suffix list cannot split, such as single labels, are returned canonicalised.
func GetApexDomain(name string) string {
	name = CanonicalDNSName(name)
	apexDomain, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return apexDomain
}

// ApexOf is GetApexDomain for a label sequence.
func ApexOf(name domain.Name) string {
	if name.IsRoot() {
		return ""
	}
	return GetApexDomain(name.String())
}
