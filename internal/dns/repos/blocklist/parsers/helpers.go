package parsers

import (
	"strings"
	"unicode"

	"github.com/haukened/cachedns/internal/dns/common/utils"
	"github.com/haukened/cachedns/internal/dns/domain"
)

// ruleKindFromRaw returns BlockRuleSuffix for names written "*.x" or ".x", otherwise BlockRuleExact.
func ruleKindFromRaw(raw string) domain.BlockRuleKind {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "*.") || strings.HasPrefix(raw, ".") {
		return domain.BlockRuleSuffix
	}
	return domain.BlockRuleExact
}

// isValidFQDN accepts names of at most 255 octets with two or more labels of 1-63 octets,
// the first starting with a letter, digit or '*'.
func isValidFQDN(name string) bool {
	if len(name) > domain.MaxNameLength {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) == 0 || len(label) > domain.MaxLabelLength {
			return false
		}
	}
	first := []rune(labels[0])[0]
	return isAlphaNumeric(first) || isWildcard(first)
}

// normalizeDomainName strips a suffix marker and returns the canonical name.
func normalizeDomainName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "*.")
	name = strings.TrimPrefix(name, ".")
	return utils.CanonicalDNSName(name)
}

func isAlphaNumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isWildcard(r rune) bool {
	return r == '*'
}

// stripLineBOM removes a UTF-8 byte order mark from the start of a line.
func stripLineBOM(line string) string {
	return strings.TrimPrefix(line, "\uFEFF")
}

// classifyLine reports whether a line is blank or a whole-line '#' comment.
func classifyLine(line string) (isEmpty, isComment bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true, false
	}
	return false, strings.HasPrefix(trimmed, "#")
}

// stripInlineComment drops everything from the first '#'.
func stripInlineComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}
