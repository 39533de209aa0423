package wire

import (
	"encoding/binary"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/haukened/cachedns/internal/dns/common/log"
)

func newTestCodec() *Codec {
	return NewCodec(log.NewNoopLogger())
}

// header builds a 12-byte header.
func header(id, flags, qd, an, ns, ar uint16) []byte {
	b := make([]byte, 0, headerLen)
	for _, v := range []uint16{id, flags, qd, an, ns, ar} {
		b = binary.BigEndian.AppendUint16(b, v)
	}
	return b
}

// labels encodes an uncompressed name terminated by the root label.
func labels(parts ...string) []byte {
	var b []byte
	for _, p := range parts {
		b = append(b, byte(len(p)))
		b = append(b, p...)
	}
	return append(b, 0)
}

func ptr(off int) []byte {
	return []byte{0xC0 | byte(off>>8), byte(off)}
}

func u16(v uint16) []byte { return binary.BigEndian.AppendUint16(nil, v) }
func u32(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }

func concat(parts ...[]byte) []byte {
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

// packMiekg packs m with compression enabled.
func packMiekg(t *testing.T, m *dns.Msg) []byte {
	t.Helper()
	m.Compress = true
	b, err := m.Pack()
	require.NoError(t, err)
	return b
}

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}
