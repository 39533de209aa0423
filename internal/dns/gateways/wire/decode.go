package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/haukened/cachedns/internal/dns/domain"
)

const (
	pointerMask   = 0xC0
	pointerOffset = 0x3FFF
	questionTail  = 4  // QTYPE + QCLASS
	recordTail    = 10 // TYPE + CLASS + TTL + RDLENGTH
)

// DecodeMessage parses a complete DNS message: the header, QDCOUNT questions, then
// ANCOUNT, NSCOUNT and ARCOUNT records in that order. The header counts are trusted;
// running out of bytes before they are satisfied is a format error.
// The returned message keeps a reference to data in Raw; callers must not modify it afterwards.
func (c *Codec) DecodeMessage(data []byte) (domain.Message, error) {
	if len(data) < headerLen {
		return domain.Message{}, fmt.Errorf("%w: message too short for header: %d bytes", domain.ErrFormat, len(data))
	}

	msg := domain.Message{
		Header: unpackHeader(data),
		Raw:    data,
	}
	off := headerLen

	for i := 0; i < int(msg.Header.QDCount); i++ {
		q, next, err := readQuestion(data, off)
		if err != nil {
			return domain.Message{}, fmt.Errorf("question %d: %w", i, err)
		}
		msg.Questions = append(msg.Questions, q)
		off = next
	}

	var err error
	if msg.Answers, off, err = readRecords(data, off, msg.Header.ANCount, "answer"); err != nil {
		return domain.Message{}, err
	}
	if msg.Authority, off, err = readRecords(data, off, msg.Header.NSCount, "authority"); err != nil {
		return domain.Message{}, err
	}
	if msg.Additional, off, err = readRecords(data, off, msg.Header.ARCount, "additional"); err != nil {
		return domain.Message{}, err
	}

	c.logger.Debug(map[string]any{
		"id":       msg.Header.ID,
		"qr":       msg.Header.QR,
		"qd":       msg.Header.QDCount,
		"an":       msg.Header.ANCount,
		"ns":       msg.Header.NSCount,
		"ar":       msg.Header.ARCount,
		"trailing": len(data) - off,
	}, "decoded dns message")

	return msg, nil
}

func readQuestion(data []byte, off int) (domain.Question, int, error) {
	name, off, err := readName(data, off)
	if err != nil {
		return domain.Question{}, 0, err
	}
	if off+questionTail > len(data) {
		return domain.Question{}, 0, fmt.Errorf("%w: question truncated at offset %d", domain.ErrFormat, off)
	}
	q := domain.Question{
		Name:  name,
		Type:  domain.RRType(binary.BigEndian.Uint16(data[off:])),
		Class: domain.RRClass(binary.BigEndian.Uint16(data[off+2:])),
	}
	return q, off + questionTail, nil
}

func readRecords(data []byte, off int, count uint16, section string) ([]domain.ResourceRecord, int, error) {
	var records []domain.ResourceRecord
	for i := 0; i < int(count); i++ {
		rr, next, err := readRecord(data, off)
		if err != nil {
			return nil, 0, fmt.Errorf("%s record %d: %w", section, i, err)
		}
		records = append(records, rr)
		off = next
	}
	return records, off, nil
}

// readRecord reads the owner name, the fixed 10-byte tail, and exactly RDLENGTH bytes of
// opaque rdata. The rdata is copied out of data.
func readRecord(data []byte, off int) (domain.ResourceRecord, int, error) {
	name, off, err := readName(data, off)
	if err != nil {
		return domain.ResourceRecord{}, 0, err
	}
	if off+recordTail > len(data) {
		return domain.ResourceRecord{}, 0, fmt.Errorf("%w: record header truncated at offset %d", domain.ErrFormat, off)
	}
	rr := domain.ResourceRecord{
		Name:  name,
		Type:  domain.RRType(binary.BigEndian.Uint16(data[off:])),
		Class: domain.RRClass(binary.BigEndian.Uint16(data[off+2:])),
		TTL:   binary.BigEndian.Uint32(data[off+4:]),
	}
	rdlen := int(binary.BigEndian.Uint16(data[off+8:]))
	off += recordTail
	if off+rdlen > len(data) {
		return domain.ResourceRecord{}, 0, fmt.Errorf("%w: rdata truncated: need %d bytes at offset %d, have %d",
			domain.ErrFormat, rdlen, off, len(data)-off)
	}
	rr.RData = make([]byte, rdlen)
	copy(rr.RData, data[off:off+rdlen])
	return rr, off + rdlen, nil
}

// readName decodes the domain name starting at off and returns it together with the offset
// just past the name's encoding at off (after the first pointer, if one was followed).
//
// A name is a run of length-prefixed labels ending either in a zero octet or in a 2-byte
// pointer (top bits 11, low 14 bits an offset into data). Pointer targets may hold more
// labels and further pointers. Every pointer must land strictly before the start of the
// label run that contains it, which bounds the walk.
func readName(data []byte, off int) (domain.Name, int, error) {
	labels := domain.Name{}
	end := -1
	runStart := off
	wireLen := 1

	for {
		if off >= len(data) {
			return nil, 0, fmt.Errorf("%w: name overruns message at offset %d", domain.ErrFormat, off)
		}
		l := int(data[off])

		switch l & pointerMask {
		case 0x00:
			if l == 0 {
				if end < 0 {
					end = off + 1
				}
				return labels, end, nil
			}
			off++
			if off+l > len(data) {
				return nil, 0, fmt.Errorf("%w: label overruns message at offset %d", domain.ErrFormat, off)
			}
			wireLen += 1 + l
			if wireLen > domain.MaxNameLength {
				return nil, 0, fmt.Errorf("%w: name exceeds %d octets", domain.ErrFormat, domain.MaxNameLength)
			}
			labels = append(labels, string(data[off:off+l]))
			off += l

		case pointerMask:
			if off+1 >= len(data) {
				return nil, 0, fmt.Errorf("%w: compression pointer truncated at offset %d", domain.ErrFormat, off)
			}
			target := int(binary.BigEndian.Uint16(data[off:]) & pointerOffset)
			if target >= runStart {
				return nil, 0, fmt.Errorf("%w: compression pointer at offset %d does not point backwards (target %d)",
					domain.ErrFormat, off, target)
			}
			if end < 0 {
				end = off + 2
			}
			runStart = target
			off = target

		default:
			return nil, 0, fmt.Errorf("%w: reserved label type 0x%02x at offset %d", domain.ErrFormat, l&pointerMask, off)
		}
	}
}
