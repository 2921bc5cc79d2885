package ber

import (
	"math/bits"

	"github.com/bitgrove/asn1kit/lib/asn1"
)

// indefiniteMarker is the length octet announcing indefinite form;
// the content then runs until a two-zero-octet end-of-contents.
const indefiniteMarker = 0x80

// appendLength appends the minimal definite length form: one octet
// for lengths up to 127, otherwise 0x80+n followed by n base-256
// octets without leading zeros.
func appendLength(dst []byte, length int) []byte {
	if length < 0x80 {
		return append(dst, byte(length))
	}
	n := (bits.Len64(uint64(length)) + 7) / 8
	dst = append(dst, byte(0x80|n))
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(uint64(length)>>(uint(i)*8)))
	}
	return dst
}

// parseLength reads the length octets at data[offset:]. It returns
// the content length (zero when indefinite), whether the indefinite
// form was used, and the octets consumed. The strict canonical
// variant rejects indefinite form; both canonical variants reject
// non-minimal definite forms.
func parseLength(data []byte, offset int, v Variant) (length int, indefinite bool, n int, err error) {
	if offset >= len(data) {
		return 0, false, 0, asn1.NewDecodeError(offset, "length octet", asn1.ErrTruncated)
	}
	first := data[offset]
	if first < 0x80 {
		return int(first), false, 1, nil
	}
	if first == indefiniteMarker {
		if v == DER {
			return 0, false, 0, asn1.NewDecodeError(offset, "indefinite length", asn1.ErrNonCanonical)
		}
		return 0, true, 1, nil
	}
	count := int(first & 0x7F)
	if count > 8 {
		return 0, false, 0, asn1.NewDecodeError(offset, "length overflow", asn1.ErrLengthMismatch)
	}
	if offset+1+count > len(data) {
		return 0, false, 0, asn1.NewDecodeError(offset, "length octets", asn1.ErrTruncated)
	}
	var value uint64
	for _, b := range data[offset+1 : offset+1+count] {
		value = value<<8 | uint64(b)
	}
	if value > uint64(1)<<31 {
		return 0, false, 0, asn1.NewDecodeError(offset, "length overflow", asn1.ErrLengthMismatch)
	}
	if v.Canonical() {
		if data[offset+1] == 0 {
			return 0, false, 0, asn1.NewDecodeError(offset, "padded long-form length", asn1.ErrNonCanonical)
		}
		if value < 0x80 {
			return 0, false, 0, asn1.NewDecodeError(offset, "long-form length below 128", asn1.ErrNonCanonical)
		}
	}
	return int(value), false, 1 + count, nil
}
