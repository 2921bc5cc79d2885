package asn1

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/cockroachdb/apd/v3"
)

// X.690 8.5.9 special-value content octets.
const (
	realPlusInfinity  = 0x40
	realMinusInfinity = 0x41
	realNotANumber    = 0x42
	realMinusZero     = 0x43
)

// splitFloat extracts a mantissa and base-2 exponent from an IEEE 754
// double, normalized so the mantissa is zero or odd. Odd mantissas
// give the unique canonical form X.690 11.3.1 requires.
func splitFloat(value float64) (mantissa int64, exponent int) {
	if value == 0.0 {
		return 0, 0
	}
	b := math.Float64bits(value)
	var (
		sign = b>>63&1 == 1
		bexp = int(b >> 52 & 0x7FF)
		frac = int64(b & 0xFFFFFFFFFFFFF)
	)
	if bexp == 0 {
		mantissa = frac
		exponent = -1022 - 52
	} else {
		mantissa = int64(1)<<52 | frac
		exponent = bexp - 1023 - 52
	}
	for mantissa != 0 && mantissa%2 == 0 {
		mantissa >>= 1
		exponent++
	}
	if sign {
		mantissa = -mantissa
	}
	return mantissa, exponent
}

func appendTwosComplement(dst []byte, v int64, octets int) []byte {
	for i := octets - 1; i >= 0; i-- {
		dst = append(dst, byte(uint64(v)>>(uint(i)*8)))
	}
	return dst
}

// twosComplementOctets returns the minimal octet count holding v.
func twosComplementOctets(v int64) int {
	n := 1
	if v >= 0 {
		n = bits.Len64(uint64(v)) + 1
	} else {
		n = bits.Len64(uint64(^v)) + 1
	}
	return (n + 7) / 8
}

// EncodeRealContents produces the content octets of a REAL value:
// empty for +0, one special octet for ±∞, NaN and −0, and the base-2
// binary form with normalized odd mantissa otherwise. Both rule-set
// families frame these same octets.
func EncodeRealContents(value float64) []byte {
	switch {
	case math.IsInf(value, 1):
		return []byte{realPlusInfinity}
	case math.IsInf(value, -1):
		return []byte{realMinusInfinity}
	case math.IsNaN(value):
		return []byte{realNotANumber}
	case value == 0.0 && math.Signbit(value):
		return []byte{realMinusZero}
	case value == 0.0:
		return nil
	}

	mantissa, exponent := splitFloat(value)
	sign := byte(0)
	if mantissa < 0 {
		sign = 0x40
		mantissa = -mantissa
	}

	// First octet: bit 8 set (binary), sign, base 00 (base 2),
	// scaling factor 00, exponent length in the low two bits.
	expOctets := twosComplementOctets(int64(exponent))
	out := make([]byte, 0, 2+expOctets+8)
	if expOctets <= 3 {
		out = append(out, 0x80|sign|byte(expOctets-1))
	} else {
		out = append(out, 0x80|sign|0x03, byte(expOctets))
	}
	out = appendTwosComplement(out, int64(exponent), expOctets)

	mOctets := (bits.Len64(uint64(mantissa)) + 7) / 8
	for i := mOctets - 1; i >= 0; i-- {
		out = append(out, byte(uint64(mantissa)>>(uint(i)*8)))
	}
	return out
}

// DecodeRealContents reconstructs a float64 from REAL content octets.
// Binary encodings in bases 2, 8 and 16 and the ISO 6093 decimal
// forms NR1-NR3 are accepted; anything else is ErrUnsupportedVariant.
func DecodeRealContents(contents []byte) (float64, error) {
	if len(contents) == 0 {
		return 0.0, nil
	}
	first := contents[0]

	// 8.5.9: special values.
	if first&0xC0 == 0x40 {
		if len(contents) != 1 {
			return 0, fmt.Errorf("special real with trailing octets: %w", ErrLengthMismatch)
		}
		switch first {
		case realPlusInfinity:
			return math.Inf(1), nil
		case realMinusInfinity:
			return math.Inf(-1), nil
		case realNotANumber:
			return math.NaN(), nil
		case realMinusZero:
			return math.Copysign(0, -1), nil
		}
		return 0, fmt.Errorf("special real octet %#02x: %w", first, ErrUnsupportedVariant)
	}

	// 8.5.8: decimal character encoding.
	if first&0x80 == 0 {
		switch first & 0x3F {
		case 0x01, 0x02, 0x03: // NR1, NR2, NR3
		default:
			return 0, fmt.Errorf("decimal real form %#02x: %w", first, ErrUnsupportedVariant)
		}
		return decodeDecimalReal(string(contents[1:]))
	}

	// 8.5.7: binary encoding.
	var (
		sign  = int64(1)
		shift = 0 // log2 of the base
	)
	if first&0x40 != 0 {
		sign = -1
	}
	switch first >> 4 & 0x03 {
	case 0:
		shift = 1
	case 1:
		shift = 3
	case 2:
		shift = 4
	default:
		return 0, fmt.Errorf("reserved real base: %w", ErrUnsupportedVariant)
	}
	scale := int(first >> 2 & 0x03)

	var (
		exponent int
		offset   = 1
	)
	switch first & 0x03 {
	case 0, 1, 2:
		n := int(first&0x03) + 1
		if offset+n > len(contents) {
			return 0, fmt.Errorf("real exponent: %w", ErrTruncated)
		}
		var raw uint64
		for _, b := range contents[offset : offset+n] {
			raw = raw<<8 | uint64(b)
		}
		exponent = int(raw)
		if raw&(1<<(uint(n*8)-1)) != 0 {
			exponent -= 1 << uint(n*8)
		}
		offset += n
	case 3:
		if offset+1 > len(contents) {
			return 0, fmt.Errorf("real exponent length: %w", ErrTruncated)
		}
		n := int(contents[offset])
		offset++
		if n == 0 || offset+n > len(contents) {
			return 0, fmt.Errorf("real exponent: %w", ErrTruncated)
		}
		if n > 8 {
			return 0, fmt.Errorf("real exponent of %d octets: %w", n, ErrUnsupportedVariant)
		}
		var raw uint64
		for _, b := range contents[offset : offset+n] {
			raw = raw<<8 | uint64(b)
		}
		exponent = int(raw)
		if n < 8 && raw&(1<<(uint(n*8)-1)) != 0 {
			exponent -= 1 << uint(n*8)
		}
		offset += n
	}

	var mantissa int64
	for _, b := range contents[offset:] {
		mantissa = mantissa<<8 | int64(b)
	}
	mantissa *= sign

	if shift == 1 {
		return math.Ldexp(float64(mantissa), exponent+scale), nil
	}
	// Base 8 or 16: the exponent scales by 3 or 4 bits per unit.
	perUnit := shift
	return math.Ldexp(float64(mantissa), exponent*perUnit+scale), nil
}

// decodeDecimalReal parses an ISO 6093 character form exactly, then
// rounds once to float64. apd carries the intermediate decimal so a
// long NR3 mantissa does not lose digits before the final conversion.
func decodeDecimalReal(s string) (float64, error) {
	trimmed := ""
	for _, r := range s {
		if r == ' ' {
			continue
		}
		if r == ',' {
			r = '.'
		}
		trimmed += string(r)
	}
	dec, _, err := apd.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("decimal real %q: %w", s, ErrUnsupportedVariant)
	}
	f, err := dec.Float64()
	if err != nil {
		return 0, fmt.Errorf("decimal real %q: %w", s, ErrUnsupportedVariant)
	}
	return f, nil
}
