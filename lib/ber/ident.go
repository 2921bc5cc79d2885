package ber

import (
	"github.com/bitgrove/asn1kit/lib/asn1"
)

// Identifier octet layout: class in bits 8-7, constructed flag in bit
// 6, tag number in bits 5-1 or, for numbers of 31 and above, the long
// form of base-128 continuation octets.
const (
	classShift      = 6
	constructedBit  = 0x20
	numberMask      = 0x1F
	longFormMarker  = 0x1F
	continuationBit = 0x80
)

func appendIdentifier(dst []byte, t asn1.Tag) []byte {
	first := byte(t.Class) << classShift
	if t.Constructed {
		first |= constructedBit
	}
	if t.Number < longFormMarker {
		return append(dst, first|byte(t.Number))
	}
	dst = append(dst, first|longFormMarker)
	n := 1
	for x := t.Number >> 7; x > 0; x >>= 7 {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		b := byte(t.Number>>(uint(i)*7)) & 0x7F
		if i > 0 {
			b |= continuationBit
		}
		dst = append(dst, b)
	}
	return dst
}

// parseIdentifier reads the identifier octets at data[offset:] and
// returns the tag and the number of octets consumed. Canonical
// variants reject long forms that would have fit the short form.
func parseIdentifier(data []byte, offset int, canonical bool) (asn1.Tag, int, error) {
	if offset >= len(data) {
		return asn1.Tag{}, 0, asn1.NewDecodeError(offset, "identifier octet", asn1.ErrTruncated)
	}
	first := data[offset]
	tag := asn1.Tag{
		Class:       asn1.Class(first >> classShift),
		Constructed: first&constructedBit != 0,
	}
	if first&numberMask != longFormMarker {
		tag.Number = uint64(first & numberMask)
		return tag, 1, nil
	}

	n := 1
	var number uint64
	for {
		if offset+n >= len(data) {
			return asn1.Tag{}, 0, asn1.NewDecodeError(offset+n, "identifier continuation", asn1.ErrTruncated)
		}
		b := data[offset+n]
		if n == 1 && b == continuationBit {
			return asn1.Tag{}, 0, asn1.NewDecodeError(offset+n, "padded long-form tag number", asn1.ErrInvalidTag)
		}
		if number > 1<<57 {
			return asn1.Tag{}, 0, asn1.NewDecodeError(offset+n, "tag number overflow", asn1.ErrInvalidTag)
		}
		number = number<<7 | uint64(b&0x7F)
		n++
		if b&continuationBit == 0 {
			break
		}
	}
	if canonical && number < longFormMarker {
		return asn1.Tag{}, 0, asn1.NewDecodeError(offset, "long-form tag number below 31", asn1.ErrNonCanonical)
	}
	tag.Number = number
	return tag, n, nil
}
