package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/haukened/cachedns/internal/dns/domain"
)

// DetachAnswer returns a deep copy of msg.Answers[i] whose rdata no longer depends on msg.Raw.
// For the RFC 1035 types whose rdata may carry compressed names (NS, CNAME, PTR, MX, SOA,
// MB, MG, MR, MINFO, MD, MF) those names are decoded against msg.Raw and rewritten
// uncompressed. Any other rdata is copied as is.
func (c *Codec) DetachAnswer(msg domain.Message, i int) (domain.ResourceRecord, error) {
	if i < 0 || i >= len(msg.Answers) {
		return domain.ResourceRecord{}, fmt.Errorf("answer index %d out of range (have %d)", i, len(msg.Answers))
	}
	rr := msg.Answers[i].Clone()
	if !rr.Type.HasCompressibleNames() || msg.Raw == nil {
		return rr, nil
	}

	start, err := answerRDataOffset(msg.Raw, int(msg.Header.QDCount), i)
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	end := start + len(rr.RData)
	if end > len(msg.Raw) {
		return domain.ResourceRecord{}, fmt.Errorf("%w: rdata of answer %d outside message", domain.ErrFormat, i)
	}

	rdata, err := expandRData(msg.Raw, start, end, rr.Type)
	if err != nil {
		return domain.ResourceRecord{}, fmt.Errorf("answer %d (%s): %w", i, rr.Type, err)
	}
	if len(rdata) > 0xFFFF {
		return domain.ResourceRecord{}, fmt.Errorf("expanded rdata too large: %d bytes", len(rdata))
	}
	rr.RData = rdata

	c.logger.Debug(map[string]any{
		"type":   rr.Type.String(),
		"before": end - start,
		"after":  len(rdata),
		"answer": i,
		"owner":  rr.Name.FQDN(),
	}, "detached answer rdata")

	return rr, nil
}

// answerRDataOffset walks raw past the header, qdcount questions and the first i answers,
// and returns the offset at which answer i's rdata begins.
func answerRDataOffset(raw []byte, qdcount, i int) (int, error) {
	if len(raw) < headerLen {
		return 0, fmt.Errorf("%w: message too short for header", domain.ErrFormat)
	}
	off := headerLen
	for q := 0; q < qdcount; q++ {
		_, next, err := readQuestion(raw, off)
		if err != nil {
			return 0, err
		}
		off = next
	}
	for a := 0; ; a++ {
		_, next, err := readName(raw, off)
		if err != nil {
			return 0, err
		}
		if next+recordTail > len(raw) {
			return 0, fmt.Errorf("%w: record header truncated at offset %d", domain.ErrFormat, next)
		}
		rdStart := next + recordTail
		if a == i {
			return rdStart, nil
		}
		off = rdStart + int(binary.BigEndian.Uint16(raw[next+8:]))
	}
}

// expandRData rewrites the rdata in raw[start:end] with every embedded name uncompressed.
// Each name must lie fully inside the rdata; the layout must consume it exactly.
func expandRData(raw []byte, start, end int, rtype domain.RRType) ([]byte, error) {
	out := make([]byte, 0, end-start+32)
	off := start

	name := func() error {
		if off >= end {
			return fmt.Errorf("%w: rdata too short for name", domain.ErrFormat)
		}
		n, next, err := readName(raw[:end], off)
		if err != nil {
			return err
		}
		out = appendName(out, n)
		off = next
		return nil
	}
	fixed := func(n int) error {
		if off+n > end {
			return fmt.Errorf("%w: rdata too short for %d fixed bytes", domain.ErrFormat, n)
		}
		out = append(out, raw[off:off+n]...)
		off += n
		return nil
	}

	var err error
	switch rtype {
	case domain.RRTypeMX:
		if err = fixed(2); err == nil {
			err = name()
		}
	case domain.RRTypeSOA:
		if err = name(); err == nil {
			if err = name(); err == nil {
				err = fixed(20)
			}
		}
	case domain.RRTypeMINFO:
		if err = name(); err == nil {
			err = name()
		}
	default: // NS, MD, MF, CNAME, MB, MG, MR, PTR
		err = name()
	}
	if err != nil {
		return nil, err
	}
	if off != end {
		return nil, fmt.Errorf("%w: %d trailing bytes in %s rdata", domain.ErrFormat, end-off, rtype)
	}
	return out, nil
}
