package bloom

import (
	"math"

	"github.com/haukened/cachedns/internal/dns/repos/blocklist"
)

// defaultFPRate applies when the configured rate is outside (0, 1).
const defaultFPRate = 0.01

// sizer implements blocklist.BloomSizer with the usual formulas:
//
//	m = -(n * ln p) / (ln 2)^2
//	k = (m / n) * ln 2
//
// Both results are at least 1.
type sizer struct{}

// NewSizer returns a BloomSizer implementation.
func NewSizer() blocklist.BloomSizer { return sizer{} }

func (sizer) Size(n uint64, p float64) (uint64, uint8) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = defaultFPRate
	}
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m == 0 {
		m = 1
	}
	k := uint8(math.Max(1, math.Round((float64(m)/float64(n))*math.Ln2)))
	return m, k
}
