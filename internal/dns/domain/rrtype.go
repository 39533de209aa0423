package domain

import (
	"fmt"
	"strings"
)

// RRType represents a DNS resource record type (e.g. A, AAAA, MX).
// See IANA DNS Parameters for assigned codes. The codec carries any 16-bit value;
// the constants below only name the ones the rest of the system refers to.
type RRType uint16

// DNS Resource Record Type constants
const (
	RRTypeA      RRType = 1   // A - IPv4 address
	RRTypeNS     RRType = 2   // NS - Name server
	RRTypeMD     RRType = 3   // MD - Mail destination (obsolete)
	RRTypeMF     RRType = 4   // MF - Mail forwarder (obsolete)
	RRTypeCNAME  RRType = 5   // CNAME - Canonical name
	RRTypeSOA    RRType = 6   // SOA - Start of authority
	RRTypeMB     RRType = 7   // MB - Mailbox domain name
	RRTypeMG     RRType = 8   // MG - Mail group member
	RRTypeMR     RRType = 9   // MR - Mail rename domain name
	RRTypeNULL   RRType = 10  // NULL - Null record
	RRTypePTR    RRType = 12  // PTR - Pointer
	RRTypeHINFO  RRType = 13  // HINFO - Host information
	RRTypeMINFO  RRType = 14  // MINFO - Mailbox information
	RRTypeMX     RRType = 15  // MX - Mail exchange
	RRTypeTXT    RRType = 16  // TXT - Text
	RRTypeAAAA   RRType = 28  // AAAA - IPv6 address
	RRTypeSRV    RRType = 33  // SRV - Service
	RRTypeNAPTR  RRType = 35  // NAPTR - Naming authority pointer
	RRTypeOPT    RRType = 41  // OPT - EDNS option
	RRTypeDS     RRType = 43  // DS - Delegation signer
	RRTypeRRSIG  RRType = 46  // RRSIG - Resource record signature
	RRTypeNSEC   RRType = 47  // NSEC - Next secure
	RRTypeDNSKEY RRType = 48  // DNSKEY - DNS key
	RRTypeTLSA   RRType = 52  // TLSA - TLS association
	RRTypeSVCB   RRType = 64  // SVCB - Service binding
	RRTypeHTTPS  RRType = 65  // HTTPS - HTTPS binding
	RRTypeANY    RRType = 255 // ANY - Any type (query only)
	RRTypeCAA    RRType = 257 // CAA - Certificate authority authorization
)

var rrTypeNames = map[RRType]string{
	RRTypeA:      "A",
	RRTypeNS:     "NS",
	RRTypeMD:     "MD",
	RRTypeMF:     "MF",
	RRTypeCNAME:  "CNAME",
	RRTypeSOA:    "SOA",
	RRTypeMB:     "MB",
	RRTypeMG:     "MG",
	RRTypeMR:     "MR",
	RRTypeNULL:   "NULL",
	RRTypePTR:    "PTR",
	RRTypeHINFO:  "HINFO",
	RRTypeMINFO:  "MINFO",
	RRTypeMX:     "MX",
	RRTypeTXT:    "TXT",
	RRTypeAAAA:   "AAAA",
	RRTypeSRV:    "SRV",
	RRTypeNAPTR:  "NAPTR",
	RRTypeOPT:    "OPT",
	RRTypeDS:     "DS",
	RRTypeRRSIG:  "RRSIG",
	RRTypeNSEC:   "NSEC",
	RRTypeDNSKEY: "DNSKEY",
	RRTypeTLSA:   "TLSA",
	RRTypeSVCB:   "SVCB",
	RRTypeHTTPS:  "HTTPS",
	RRTypeANY:    "ANY",
	RRTypeCAA:    "CAA",
}

var rrTypeValues = func() map[string]RRType {
	m := make(map[string]RRType, len(rrTypeNames))
	for t, name := range rrTypeNames {
		m[name] = t
	}
	return m
}()

// IsValid returns true if the RRType is one of the named types.
func (t RRType) IsValid() bool {
	_, ok := rrTypeNames[t]
	return ok
}

// HasCompressibleNames reports whether the RDATA of this type may contain
// compressed domain names (RFC 3597 §4: only the RFC 1035 well-known types).
func (t RRType) HasCompressibleNames() bool {
	switch t {
	case RRTypeNS, RRTypeMD, RRTypeMF, RRTypeCNAME, RRTypeSOA, RRTypeMB, RRTypeMG,
		RRTypeMR, RRTypePTR, RRTypeMINFO, RRTypeMX:
		return true
	default:
		return false
	}
}

// String returns the textual representation of the RRType.
// For unknown types, it returns "UNKNOWN(<value>)".
func (t RRType) String() string {
	if name, ok := rrTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", t)
}

// RRTypeFromString converts a record type string to its corresponding RRType value.
// Matching is case-insensitive; unknown names return 0.
func RRTypeFromString(s string) RRType {
	return rrTypeValues[strings.ToUpper(strings.TrimSpace(s))]
}
