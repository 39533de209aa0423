package wire

import (
	"encoding/binary"

	"github.com/haukened/cachedns/internal/dns/domain"
)

const (
	headerLen = 12

	flagQR = 1 << 15
	flagAA = 1 << 10
	flagTC = 1 << 9
	flagRD = 1 << 8
	flagRA = 1 << 7
	flagZ  = 1 << 6
	flagAD = 1 << 5
	flagCD = 1 << 4

	opcodeShift = 11
)

// packFlags lays out the second header word:
// byte 2 = QR<<7 | Opcode<<3 | AA<<2 | TC<<1 | RD, byte 3 = RA<<7 | Z<<6 | AD<<5 | CD<<4 | RCODE.
func packFlags(h domain.Header) uint16 {
	var f uint16
	setIf := func(cond bool, bit uint16) {
		if cond {
			f |= bit
		}
	}
	setIf(h.QR, flagQR)
	f |= uint16(h.Opcode&0x0F) << opcodeShift
	setIf(h.AA, flagAA)
	setIf(h.TC, flagTC)
	setIf(h.RD, flagRD)
	setIf(h.RA, flagRA)
	setIf(h.Z, flagZ)
	setIf(h.AD, flagAD)
	setIf(h.CD, flagCD)
	f |= uint16(h.RCode & 0x0F)
	return f
}

func unpackHeader(data []byte) domain.Header {
	f := binary.BigEndian.Uint16(data[2:4])
	return domain.Header{
		ID:      binary.BigEndian.Uint16(data[0:2]),
		QR:      f&flagQR != 0,
		Opcode:  domain.Opcode((f >> opcodeShift) & 0x0F),
		AA:      f&flagAA != 0,
		TC:      f&flagTC != 0,
		RD:      f&flagRD != 0,
		RA:      f&flagRA != 0,
		Z:       f&flagZ != 0,
		AD:      f&flagAD != 0,
		CD:      f&flagCD != 0,
		RCode:   domain.RCode(f & 0x0F),
		QDCount: binary.BigEndian.Uint16(data[4:6]),
		ANCount: binary.BigEndian.Uint16(data[6:8]),
		NSCount: binary.BigEndian.Uint16(data[8:10]),
		ARCount: binary.BigEndian.Uint16(data[10:12]),
	}
}

// BuildResponseHeader derives a response header from the request header: QR is set and
// ANCOUNT reflects the response's answers. Every other field, including opcode and RD,
// carries through from the request unchanged.
func BuildResponseHeader(request, response domain.Message) domain.Header {
	h := request.Header
	h.QR = true
	h.ANCount = uint16(len(response.Answers))
	return h
}

// PeekID returns the message ID of a raw datagram, or false if it is shorter than a header.
func PeekID(packet []byte) (uint16, bool) {
	if len(packet) < headerLen {
		return 0, false
	}
	return binary.BigEndian.Uint16(packet[0:2]), true
}

// WithID returns a copy of packet carrying the given message ID. Everything else is untouched.
func WithID(packet []byte, id uint16) []byte {
	out := make([]byte, len(packet))
	copy(out, packet)
	if len(out) >= 2 {
		binary.BigEndian.PutUint16(out[0:2], id)
	}
	return out
}
