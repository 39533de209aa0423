package parsers

import (
	"bufio"
	"io"
	"strings"
	"time"

	logpkg "github.com/haukened/cachedns/internal/dns/common/log"
	"github.com/haukened/cachedns/internal/dns/common/utils"
	"github.com/haukened/cachedns/internal/dns/domain"
)

// ParseHostsFile parses an /etc/hosts-style list and returns exact rules for every hostname.
//
//   - the address field is ignored; each following token is a hostname
//   - blank lines and '#' comments (whole-line or inline) are skipped
//   - tokens containing '*' or starting with '.' are skipped; hosts files have no wildcards
//   - names are canonicalised and de-duplicated, first occurrence wins
func ParseHostsFile(r io.Reader, source string, logger logpkg.Logger, now time.Time) ([]domain.BlockRule, error) {
	scanner := bufio.NewScanner(r)
	seen := make(map[string]struct{})
	out := make([]domain.BlockRule, 0, 256)

	logger.Debug(map[string]any{"source": source}, "Parsing hosts list")

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := stripLineBOM(scanner.Text())
		if isEmpty, isComment := classifyLine(line); isEmpty || isComment {
			continue
		}

		fields := strings.Fields(stripInlineComment(line))
		if len(fields) < 2 {
			logger.Debug(map[string]any{"source": source, "line": lineNum}, "Hosts line has no hostnames")
			continue
		}

		for _, raw := range fields[1:] {
			if strings.HasPrefix(raw, ".") || strings.Contains(raw, "*") {
				logger.Debug(map[string]any{"source": source, "line": lineNum, "raw": raw}, "Skipping wildcard hosts token")
				continue
			}
			name := utils.CanonicalDNSName(raw)
			if !isValidFQDN(name) {
				logger.Debug(map[string]any{"source": source, "line": lineNum, "name": name}, "Skipping invalid hostname")
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			rule, err := domain.NewExactBlockRule(name, source, now)
			if err != nil {
				logger.Debug(map[string]any{"source": source, "line": lineNum, "name": name, "error": err.Error()}, "Skipping invalid rule")
				continue
			}
			out = append(out, rule)
			seen[name] = struct{}{}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "Parsed hosts list")
	return out, nil
}
