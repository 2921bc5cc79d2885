package asn1

import "fmt"

// BitString is a bit-addressable buffer with an explicit bit length.
// Bit 0 is the most significant bit of Bytes[0]; unused trailing bits
// of the final byte are zero.
type BitString struct {
	Bytes     []byte
	BitLength int
}

// NewBitString builds a BitString over data, validating that the
// declared length fits and that padding bits are zero.
func NewBitString(data []byte, bitLength int) (BitString, error) {
	if bitLength < 0 || bitLength > len(data)*8 {
		return BitString{}, fmt.Errorf("bit length %d does not fit %d bytes: %w",
			bitLength, len(data), ErrLengthMismatch)
	}
	if pad := len(data)*8 - bitLength; pad > 0 && len(data) > 0 {
		if data[len(data)-1]&(1<<pad-1) != 0 {
			return BitString{}, fmt.Errorf("nonzero padding bits: %w", ErrLengthMismatch)
		}
	}
	return BitString{Bytes: data, BitLength: bitLength}, nil
}

// At returns the bit at position i (0 or 1).
func (b BitString) At(i int) int {
	if i < 0 || i >= b.BitLength {
		return 0
	}
	return int(b.Bytes[i/8]>>(7-uint(i)%8)) & 1
}

// RightTrimmed returns a copy with trailing zero bits removed, the
// form canonical rule sets require for named-bit values.
func (b BitString) RightTrimmed() BitString {
	n := b.BitLength
	for n > 0 && b.At(n-1) == 0 {
		n--
	}
	nbytes := (n + 7) / 8
	out := make([]byte, nbytes)
	copy(out, b.Bytes[:nbytes])
	if pad := nbytes*8 - n; pad > 0 && nbytes > 0 {
		out[nbytes-1] &^= 1<<pad - 1
	}
	return BitString{Bytes: out, BitLength: n}
}

// Equal reports bit-for-bit equality.
func (b BitString) Equal(o BitString) bool {
	if b.BitLength != o.BitLength {
		return false
	}
	for i := 0; i < b.BitLength; i++ {
		if b.At(i) != o.At(i) {
			return false
		}
	}
	return true
}

func (b BitString) String() string {
	return fmt.Sprintf("BitString{%d bits}", b.BitLength)
}
