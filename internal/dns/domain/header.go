package domain

import "strconv"

// Opcode is the 4-bit kind of query carried in the header.
type Opcode uint8

const (
	OpcodeQuery  Opcode = 0
	OpcodeIQuery Opcode = 1
	OpcodeStatus Opcode = 2
	OpcodeNotify Opcode = 4
	OpcodeUpdate Opcode = 5
)

// String returns the mnemonic for the opcode.
func (o Opcode) String() string {
	switch o {
	case OpcodeQuery:
		return "QUERY"
	case OpcodeIQuery:
		return "IQUERY"
	case OpcodeStatus:
		return "STATUS"
	case OpcodeNotify:
		return "NOTIFY"
	case OpcodeUpdate:
		return "UPDATE"
	default:
		return "OPCODE" + strconv.Itoa(int(o))
	}
}

// Header is the fixed 12-octet message header.
// Counts reflect what was read off the wire; encoders recompute them from section lengths.
type Header struct {
	ID     uint16
	QR     bool   // response
	Opcode Opcode // 4 bits
	AA     bool   // authoritative answer
	TC     bool   // truncated
	RD     bool   // recursion desired
	RA     bool   // recursion available
	Z      bool   // reserved
	AD     bool   // authentic data
	CD     bool   // checking disabled
	RCode  RCode  // 4 bits

	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}
