// Package rrdata renders record data in presentation form for the admin surface.
// It expects self-contained RDATA (no compression pointers), which is what the
// answer cache stores.
package rrdata

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/haukened/cachedns/internal/dns/domain"
)

type decoder func([]byte) (string, error)

var decoders = map[domain.RRType]decoder{
	domain.RRTypeA:     decodeA,
	domain.RRTypeAAAA:  decodeAAAA,
	domain.RRTypeNS:    decodeSingleName,
	domain.RRTypeCNAME: decodeSingleName,
	domain.RRTypePTR:   decodeSingleName,
	domain.RRTypeMB:    decodeSingleName,
	domain.RRTypeMG:    decodeSingleName,
	domain.RRTypeMR:    decodeSingleName,
	domain.RRTypeMINFO: decodeMINFO,
	domain.RRTypeMX:    decodeMX,
	domain.RRTypeTXT:   decodeTXT,
	domain.RRTypeSOA:   decodeSOA,
	domain.RRTypeSRV:   decodeSRV,
	domain.RRTypeCAA:   decodeCAA,
}

// Text returns the presentation form of rdata for the given type.
// Types without a decoder use the RFC 3597 generic form: `\# <len> <hex>`.
func Text(rrtype domain.RRType, rdata []byte) (string, error) {
	if dec, ok := decoders[rrtype]; ok {
		return dec(rdata)
	}
	return Generic(rdata), nil
}

// Generic renders rdata in the RFC 3597 unknown-type form.
func Generic(rdata []byte) string {
	if len(rdata) == 0 {
		return `\# 0`
	}
	return fmt.Sprintf(`\# %d %s`, len(rdata), hex.EncodeToString(rdata))
}

func decodeA(b []byte) (string, error) {
	if len(b) != 4 {
		return "", fmt.Errorf("invalid A rdata length: %d", len(b))
	}
	return netip.AddrFrom4([4]byte(b)).String(), nil
}

func decodeAAAA(b []byte) (string, error) {
	if len(b) != 16 {
		return "", fmt.Errorf("invalid AAAA rdata length: %d", len(b))
	}
	return netip.AddrFrom16([16]byte(b)).String(), nil
}

func decodeSingleName(b []byte) (string, error) {
	name, n, err := readName(b, 0)
	if err != nil {
		return "", err
	}
	if n != len(b) {
		return "", fmt.Errorf("trailing bytes after name: %d", len(b)-n)
	}
	return name, nil
}

func decodeMINFO(b []byte) (string, error) {
	rmail, off, err := readName(b, 0)
	if err != nil {
		return "", err
	}
	email, _, err := readName(b, off)
	if err != nil {
		return "", err
	}
	return rmail + " " + email, nil
}

func decodeMX(b []byte) (string, error) {
	if len(b) < 3 {
		return "", fmt.Errorf("invalid MX rdata length: %d", len(b))
	}
	exchange, _, err := readName(b, 2)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %s", binary.BigEndian.Uint16(b), exchange), nil
}

func decodeTXT(b []byte) (string, error) {
	var parts []string
	for i := 0; i < len(b); {
		l := int(b[i])
		i++
		if i+l > len(b) {
			return "", fmt.Errorf("TXT segment overruns rdata")
		}
		parts = append(parts, strconv.Quote(string(b[i:i+l])))
		i += l
	}
	return strings.Join(parts, " "), nil
}

func decodeSOA(b []byte) (string, error) {
	mname, off, err := readName(b, 0)
	if err != nil {
		return "", fmt.Errorf("invalid SOA mname: %w", err)
	}
	rname, off, err := readName(b, off)
	if err != nil {
		return "", fmt.Errorf("invalid SOA rname: %w", err)
	}
	if len(b)-off != 20 {
		return "", fmt.Errorf("invalid SOA rdata length: %d", len(b))
	}
	var nums [5]uint32
	for i := range nums {
		nums[i] = binary.BigEndian.Uint32(b[off+i*4:])
	}
	return fmt.Sprintf("%s %s %d %d %d %d %d", mname, rname, nums[0], nums[1], nums[2], nums[3], nums[4]), nil
}

func decodeSRV(b []byte) (string, error) {
	if len(b) < 7 {
		return "", fmt.Errorf("invalid SRV rdata length: %d", len(b))
	}
	target, _, err := readName(b, 6)
	if err != nil {
		return "", err
	}
	priority := binary.BigEndian.Uint16(b[0:2])
	weight := binary.BigEndian.Uint16(b[2:4])
	port := binary.BigEndian.Uint16(b[4:6])
	return fmt.Sprintf("%d %d %d %s", priority, weight, port, target), nil
}

// decodeCAA renders flag, tag and value. The value is opaque (a CA domain or a URI)
// and is passed through without canonicalisation.
func decodeCAA(b []byte) (string, error) {
	if len(b) < 2 {
		return "", fmt.Errorf("invalid CAA rdata length: %d", len(b))
	}
	flag, tagLen := b[0], int(b[1])
	if tagLen == 0 || 2+tagLen > len(b) {
		return "", fmt.Errorf("invalid CAA tag length: %d", tagLen)
	}
	tag := string(b[2 : 2+tagLen])
	return fmt.Sprintf("%d %s %s", flag, tag, strconv.Quote(string(b[2+tagLen:]))), nil
}

// readName reads an uncompressed name starting at off and returns its FQDN form
// together with the offset just past it.
func readName(b []byte, off int) (string, int, error) {
	var labels domain.Name
	for {
		if off >= len(b) {
			return "", 0, fmt.Errorf("name overruns rdata")
		}
		l := int(b[off])
		off++
		if l == 0 {
			return labels.FQDN(), off, nil
		}
		if l > domain.MaxLabelLength {
			return "", 0, fmt.Errorf("unexpected label marker 0x%02x in rdata", l)
		}
		if off+l > len(b) {
			return "", 0, fmt.Errorf("label overruns rdata")
		}
		labels = append(labels, string(b[off:off+l]))
		off += l
	}
}
