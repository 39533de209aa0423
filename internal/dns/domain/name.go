package domain

import (
	"fmt"
	"strings"
)

const (
	// MaxLabelLength is the longest label permitted by RFC 1035 §2.3.4.
	MaxLabelLength = 63
	// MaxNameLength is the longest name permitted on the wire, length octets included.
	MaxNameLength = 255
)

// Name is a domain name held as its ordered label sequence, most specific label first.
// The root name has no labels. Equality is defined over the label sequence, never over
// a joined string, since a label may itself contain a '.' octet.
type Name []string

// ParseName converts a dotted presentation name into a Name.
// A single trailing dot is accepted; "" and "." both yield the root name.
func ParseName(s string) (Name, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return Name{}, nil
	}
	n := Name(strings.Split(s, "."))
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// MustParseName is like ParseName but panics on error. Intended for constants and tests.
func MustParseName(s string) Name {
	n, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Validate checks label and total length limits.
func (n Name) Validate() error {
	for i, label := range n {
		if len(label) == 0 {
			return fmt.Errorf("empty label at index %d", i)
		}
		if len(label) > MaxLabelLength {
			return fmt.Errorf("label too long: %d octets (max %d)", len(label), MaxLabelLength)
		}
	}
	if l := n.WireLength(); l > MaxNameLength {
		return fmt.Errorf("name too long: %d octets (max %d)", l, MaxNameLength)
	}
	return nil
}

// WireLength returns the number of octets the name occupies uncompressed on the wire.
func (n Name) WireLength() int {
	l := 1
	for _, label := range n {
		l += 1 + len(label)
	}
	return l
}

// IsRoot reports whether n is the root name.
func (n Name) IsRoot() bool { return len(n) == 0 }

// String returns the dotted form without a trailing dot, or "." for the root.
func (n Name) String() string {
	if len(n) == 0 {
		return "."
	}
	return strings.Join(n, ".")
}

// FQDN returns the dotted form with a trailing dot.
func (n Name) FQDN() string {
	if len(n) == 0 {
		return "."
	}
	return strings.Join(n, ".") + "."
}

// Key returns an unambiguous, case-preserving key built from the length-prefixed labels.
func (n Name) Key() string {
	var b strings.Builder
	b.Grow(n.WireLength())
	for _, label := range n {
		b.WriteByte(byte(len(label)))
		b.WriteString(label)
	}
	return b.String()
}

// Equal compares two names label by label, ignoring ASCII case (RFC 4343).
func (n Name) Equal(other Name) bool {
	if len(n) != len(other) {
		return false
	}
	for i := range n {
		if !equalFoldASCII(n[i], other[i]) {
			return false
		}
	}
	return true
}

// Canonical returns a copy of n with every label lower-cased (ASCII only).
func (n Name) Canonical() Name {
	out := make(Name, len(n))
	for i, label := range n {
		out[i] = lowerASCII(label)
	}
	return out
}

// Clone returns a copy that shares no backing array with n.
func (n Name) Clone() Name {
	if n == nil {
		return nil
	}
	out := make(Name, len(n))
	copy(out, n)
	return out
}

// IsSubdomainOf reports whether n equals parent or sits below it.
func (n Name) IsSubdomainOf(parent Name) bool {
	if len(parent) > len(n) {
		return false
	}
	return n[len(n)-len(parent):].Equal(parent)
}

func lowerASCII(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if b[j] >= 'A' && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
