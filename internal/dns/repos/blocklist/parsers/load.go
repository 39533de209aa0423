package parsers

import (
	"fmt"
	"io"
	"os"
	"time"

	logpkg "github.com/haukened/cachedns/internal/dns/common/log"
	"github.com/haukened/cachedns/internal/dns/domain"
)

// ParseFunc is the signature shared by the list parsers.
type ParseFunc func(r io.Reader, source string, logger logpkg.Logger, now time.Time) ([]domain.BlockRule, error)

// openFile is a seam for tests.
var openFile = func(path string) (io.ReadCloser, error) { return os.Open(path) }

// LoadFiles parses plain lists and hosts files from disk and concatenates their rules
// in configuration order. Each rule's source is the path it was read from.
// A file that cannot be opened or read fails the whole load.
func LoadFiles(plain, hosts []string, logger logpkg.Logger, now time.Time) ([]domain.BlockRule, error) {
	var rules []domain.BlockRule
	for _, set := range []struct {
		paths []string
		parse ParseFunc
	}{
		{paths: plain, parse: ParsePlainList},
		{paths: hosts, parse: ParseHostsFile},
	} {
		for _, path := range set.paths {
			parsed, err := loadFile(path, set.parse, logger, now)
			if err != nil {
				return nil, err
			}
			rules = append(rules, parsed...)
		}
	}
	return rules, nil
}

func loadFile(path string, parse ParseFunc, logger logpkg.Logger, now time.Time) ([]domain.BlockRule, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open blocklist %s: %w", path, err)
	}
	defer f.Close()

	rules, err := parse(f, path, logger, now)
	if err != nil {
		return nil, fmt.Errorf("failed to read blocklist %s: %w", path, err)
	}
	logger.Info(map[string]any{"source": path, "rules": len(rules)}, "Loaded blocklist")
	return rules, nil
}
