package domain

import (
	"fmt"
	"math"
	"time"
)

// ResourceRecord is one entry of an answer, authority or additional section.
// RData is opaque type-specific data; its length is the record's RDLENGTH.
// TTL is the value as received and is never decremented in place.
type ResourceRecord struct {
	Name  Name
	Type  RRType
	Class RRClass
	TTL   uint32
	RData []byte
}

// NewResourceRecord constructs a ResourceRecord from a presentation name and validates it.
func NewResourceRecord(name string, rrtype RRType, class RRClass, ttl uint32, rdata []byte) (ResourceRecord, error) {
	n, err := ParseName(name)
	if err != nil {
		return ResourceRecord{}, fmt.Errorf("invalid record name %q: %w", name, err)
	}
	rr := ResourceRecord{
		Name:  n,
		Type:  rrtype,
		Class: class,
		TTL:   ttl,
		RData: rdata,
	}
	if err := rr.Validate(); err != nil {
		return ResourceRecord{}, err
	}
	return rr, nil
}

// Validate checks whether the ResourceRecord fields fit the wire format.
func (rr ResourceRecord) Validate() error {
	if err := rr.Name.Validate(); err != nil {
		return err
	}
	if len(rr.RData) > math.MaxUint16 {
		return fmt.Errorf("rdata too large: %d bytes (max %d)", len(rr.RData), math.MaxUint16)
	}
	return nil
}

// RDLength returns the length of the record data.
func (rr ResourceRecord) RDLength() int {
	return len(rr.RData)
}

// Lifetime returns how long the record may be cached from the moment it was received.
// TTL values with the most significant bit set are treated as zero (RFC 2181 §8).
func (rr ResourceRecord) Lifetime() time.Duration {
	if rr.TTL > math.MaxInt32 {
		return 0
	}
	return time.Duration(rr.TTL) * time.Second
}

// WithTTL returns a deep copy of the record carrying the given TTL.
func (rr ResourceRecord) WithTTL(ttl uint32) ResourceRecord {
	out := rr.Clone()
	out.TTL = ttl
	return out
}

// Clone returns a deep copy of the record.
func (rr ResourceRecord) Clone() ResourceRecord {
	out := rr
	out.Name = rr.Name.Clone()
	if rr.RData != nil {
		out.RData = make([]byte, len(rr.RData))
		copy(out.RData, rr.RData)
	}
	return out
}

// String returns a compact human readable form.
func (rr ResourceRecord) String() string {
	return fmt.Sprintf("%s %d %s %s rdlen=%d", rr.Name.FQDN(), rr.TTL, rr.Class, rr.Type, len(rr.RData))
}
