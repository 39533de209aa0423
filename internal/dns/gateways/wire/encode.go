package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/haukened/cachedns/internal/dns/domain"
)

// encoder accumulates one outgoing message and its compression table.
// The table maps a full name, exactly as written, to the offset of its first literal
// occurrence. Only whole names are matched; suffixes are never shared.
type encoder struct {
	buf   []byte
	names map[string]int
}

// EncodeMessage serialises msg. Header counts are derived from the section lengths,
// not taken from msg.Header. Names repeated within the message are compressed to
// pointers at their first occurrence; record rdata is written verbatim.
func (c *Codec) EncodeMessage(msg domain.Message) ([]byte, error) {
	counts := [4]int{len(msg.Questions), len(msg.Answers), len(msg.Authority), len(msg.Additional)}
	for i, n := range counts {
		if n > math.MaxUint16 {
			return nil, fmt.Errorf("section %d has too many entries: %d (max %d)", i, n, math.MaxUint16)
		}
	}

	e := &encoder{
		buf:   make([]byte, headerLen, 512),
		names: make(map[string]int),
	}
	binary.BigEndian.PutUint16(e.buf[0:2], msg.Header.ID)
	binary.BigEndian.PutUint16(e.buf[2:4], packFlags(msg.Header))
	for i, n := range counts {
		binary.BigEndian.PutUint16(e.buf[4+2*i:], uint16(n))
	}

	for i, q := range msg.Questions {
		if err := e.writeName(q.Name); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(q.Type))
		e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(q.Class))
	}

	sections := []struct {
		name    string
		records []domain.ResourceRecord
	}{
		{"answer", msg.Answers},
		{"authority", msg.Authority},
		{"additional", msg.Additional},
	}
	for _, s := range sections {
		for i, rr := range s.records {
			if err := e.writeRecord(rr); err != nil {
				return nil, fmt.Errorf("%s record %d: %w", s.name, i, err)
			}
		}
	}

	c.logger.Debug(map[string]any{
		"id":    msg.Header.ID,
		"qd":    counts[0],
		"an":    counts[1],
		"ns":    counts[2],
		"ar":    counts[3],
		"bytes": len(e.buf),
	}, "encoded dns message")

	return e.buf, nil
}

func (e *encoder) writeRecord(rr domain.ResourceRecord) error {
	if len(rr.RData) > math.MaxUint16 {
		return fmt.Errorf("rdata too large: %d bytes (max %d)", len(rr.RData), math.MaxUint16)
	}
	if err := e.writeName(rr.Name); err != nil {
		return err
	}
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(rr.Type))
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(rr.Class))
	e.buf = binary.BigEndian.AppendUint32(e.buf, rr.TTL)
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(len(rr.RData)))
	e.buf = append(e.buf, rr.RData...)
	return nil
}

// writeName writes name as a pointer when the identical name was already written,
// otherwise literally, recording its offset if it is reachable by a 14-bit pointer.
func (e *encoder) writeName(name domain.Name) error {
	if err := name.Validate(); err != nil {
		return fmt.Errorf("cannot encode name %q: %w", name.String(), err)
	}
	if name.IsRoot() {
		e.buf = append(e.buf, 0)
		return nil
	}

	key := name.Key()
	if ptr, ok := e.names[key]; ok {
		e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(pointerMask)<<8|uint16(ptr))
		return nil
	}
	if len(e.buf) <= pointerOffset {
		e.names[key] = len(e.buf)
	}
	e.buf = appendName(e.buf, name)
	return nil
}

// appendName writes name uncompressed. The caller has validated it.
func appendName(b []byte, name domain.Name) []byte {
	for _, label := range name {
		b = append(b, byte(len(label)))
		b = append(b, label...)
	}
	return append(b, 0)
}
