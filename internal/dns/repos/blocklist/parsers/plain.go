package parsers

import (
	"bufio"
	"io"
	"strings"
	"time"

	logpkg "github.com/haukened/cachedns/internal/dns/common/log"
	"github.com/haukened/cachedns/internal/dns/domain"
)

// ParsePlainList parses a newline-delimited list of names into rules.
// A name is exact unless written "*.name" or ".name", which makes it a suffix rule
// covering the name itself and everything below it. Comments start with '#'.
// Duplicates of the same name and kind are dropped, first occurrence wins.
func ParsePlainList(r io.Reader, source string, logger logpkg.Logger, now time.Time) ([]domain.BlockRule, error) {
	scanner := bufio.NewScanner(r)
	// exact and suffix rules for the same name may coexist
	seen := make(map[string]struct{})
	out := make([]domain.BlockRule, 0, 256)

	logger.Debug(map[string]any{"source": source}, "Parsing plain list")

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := stripLineBOM(scanner.Text())
		if isEmpty, isComment := classifyLine(line); isEmpty || isComment {
			continue
		}

		raw := strings.TrimSpace(stripInlineComment(line))
		kind := ruleKindFromRaw(raw)
		name := normalizeDomainName(raw)
		if !isValidFQDN(name) {
			logger.Debug(map[string]any{"source": source, "line": lineNum, "raw": raw}, "Skipping invalid name")
			continue
		}

		seenKey := name + "|" + kind.String()
		if _, ok := seen[seenKey]; ok {
			continue
		}
		rule, err := domain.NewBlockRule(name, kind, source, now)
		if err != nil {
			logger.Debug(map[string]any{"source": source, "line": lineNum, "name": name, "error": err.Error()}, "Skipping invalid rule")
			continue
		}
		out = append(out, rule)
		seen[seenKey] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "Parsed plain list")
	return out, nil
}
