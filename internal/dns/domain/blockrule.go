package domain

import (
	"fmt"
	"strings"
	"time"
)

// BlockRuleKind defines how a rule matches query names.
// An exact rule matches one name; a suffix rule matches the name and everything below it.
type BlockRuleKind uint8

const (
	// BlockRuleExact matches only the exact domain.
	BlockRuleExact BlockRuleKind = iota
	// BlockRuleSuffix matches the domain and all its subdomains (apex-inclusive).
	BlockRuleSuffix
)

// String returns a stable string representation of the rule kind.
func (k BlockRuleKind) String() string {
	switch k {
	case BlockRuleExact:
		return "exact"
	case BlockRuleSuffix:
		return "suffix"
	default:
		return fmt.Sprintf("BlockRuleKind(%d)", k)
	}
}

// ParseBlockRuleKind converts a string into a BlockRuleKind.
// Accepts: "exact", "suffix" (case-insensitive).
func ParseBlockRuleKind(s string) (BlockRuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact":
		return BlockRuleExact, nil
	case "suffix":
		return BlockRuleSuffix, nil
	default:
		return 0, fmt.Errorf("unsupported BlockRuleKind: %q", s)
	}
}

// BlockRule is a single blocking rule read from a configured list file.
// Name is canonical: lower-case, no trailing dot.
type BlockRule struct {
	Name    string        // e.g. "ads.example.com"
	Kind    BlockRuleKind // exact or suffix (apex-inclusive)
	Source  string        // list file the rule came from
	AddedAt time.Time     // ingestion timestamp
}

// NewBlockRule constructs a BlockRule and validates its fields.
func NewBlockRule(name string, kind BlockRuleKind, source string, addedAt time.Time) (BlockRule, error) {
	r := BlockRule{
		Name:    strings.TrimSpace(name),
		Kind:    kind,
		Source:  strings.TrimSpace(source),
		AddedAt: addedAt,
	}
	if err := r.Validate(); err != nil {
		return BlockRule{}, err
	}
	return r, nil
}

// NewExactBlockRule convenience constructor for an exact rule.
func NewExactBlockRule(name, source string, addedAt time.Time) (BlockRule, error) {
	return NewBlockRule(name, BlockRuleExact, source, addedAt)
}

// NewSuffixBlockRule convenience constructor for a suffix rule (apex-inclusive).
func NewSuffixBlockRule(name, source string, addedAt time.Time) (BlockRule, error) {
	return NewBlockRule(name, BlockRuleSuffix, source, addedAt)
}

// Validate checks the BlockRule for required fields and supported values.
func (r BlockRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	if _, err := ParseName(r.Name); err != nil {
		return fmt.Errorf("invalid rule name %q: %w", r.Name, err)
	}
	if r.Source == "" {
		return fmt.Errorf("rule source must not be empty")
	}
	if r.AddedAt.IsZero() {
		return fmt.Errorf("rule addedAt must be set")
	}
	switch r.Kind {
	case BlockRuleExact, BlockRuleSuffix:
		// ok
	default:
		return fmt.Errorf("unsupported BlockRuleKind: %d", r.Kind)
	}
	return nil
}

// IsExact returns true when the rule kind is exact.
func (r BlockRule) IsExact() bool { return r.Kind == BlockRuleExact }

// IsSuffix returns true when the rule kind is suffix (apex-inclusive).
func (r BlockRule) IsSuffix() bool { return r.Kind == BlockRuleSuffix }

// Matches reports whether the rule applies to the given query name.
func (r BlockRule) Matches(name Name) bool {
	ruleName, err := ParseName(r.Name)
	if err != nil {
		return false
	}
	if r.Kind == BlockRuleSuffix {
		return name.IsSubdomainOf(ruleName)
	}
	return name.Equal(ruleName)
}
