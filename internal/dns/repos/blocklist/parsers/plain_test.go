package parsers

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/cachedns/internal/dns/common/log"
	"github.com/haukened/cachedns/internal/dns/domain"
)

type ruleShape struct {
	Name string
	Kind domain.BlockRuleKind
}

func shapes(rules []domain.BlockRule) []ruleShape {
	out := make([]ruleShape, 0, len(rules))
	for _, r := range rules {
		out = append(out, ruleShape{r.Name, r.Kind})
	}
	return out
}

func TestParsePlainList(t *testing.T) {
	input := "\uFEFF# list header\n" +
		"Example.COM   \n" +
		"example.com.#inline comment\n" +
		"\n" +
		"\tsub.Example.com.\n" +
		"*.wild.example.com\n" +
		".root.example.org\n" +
		"not_a_domain\n" +
		"localhost\n" +
		"example.com   # duplicate\n" +
		"*.example.com\n"

	now := time.Unix(1723550000, 0)
	got, err := ParsePlainList(strings.NewReader(input), "ads.txt", log.NewNoopLogger(), now)
	require.NoError(t, err)

	assert.Equal(t, []ruleShape{
		{"example.com", domain.BlockRuleExact},
		{"sub.example.com", domain.BlockRuleExact},
		{"wild.example.com", domain.BlockRuleSuffix},
		{"root.example.org", domain.BlockRuleSuffix},
		{"example.com", domain.BlockRuleSuffix},
	}, shapes(got))
	for _, r := range got {
		assert.Equal(t, "ads.txt", r.Source)
		assert.True(t, r.AddedAt.Equal(now))
	}
}

func TestParsePlainList_EmptyAndCommentsOnly(t *testing.T) {
	got, err := ParsePlainList(strings.NewReader("\n# one\n   # two\n\t\n"), "s", log.NewNoopLogger(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParsePlainList_InvalidRulesAreSkipped(t *testing.T) {
	got, err := ParsePlainList(strings.NewReader("example.com\n"), "", log.NewNoopLogger(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, got, "empty source")

	got, err = ParsePlainList(strings.NewReader("example.com\n"), "s", log.NewNoopLogger(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, got, "zero timestamp")
}

func TestParsePlainList_ScannerError(t *testing.T) {
	big := bytes.Repeat([]byte{'a'}, 70000)
	got, err := ParsePlainList(bytes.NewReader(big), "s", log.NewNoopLogger(), time.Now())
	assert.Error(t, err)
	assert.Nil(t, got)
}
