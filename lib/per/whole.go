package per

import (
	"fmt"
	"math/bits"

	"github.com/bitgrove/asn1kit/lib/asn1"
	"github.com/bitgrove/asn1kit/lib/bitstream"
)

// bitsFor returns the width of the minimal non-negative binary
// integer field holding value. X.691 11.3.
func bitsFor(value uint64) int {
	if value == 0 {
		return 1
	}
	return bits.Len64(value)
}

func octetsFor(value uint64) int {
	return (bitsFor(value) + 7) / 8
}

// writeConstrainedWhole packs value-lo into the field X.691 11.5
// prescribes for the range hi-lo+1. Unaligned: a minimal bit-field.
// Aligned: a bit-field up to a range of 255, one octet at 256, two
// octets up to 64K, and a length-prefixed minimal octet field beyond.
func writeConstrainedWhole(c *bitstream.Cursor, aligned bool, value, lo, hi int64) error {
	if value < lo || value > hi {
		return fmt.Errorf("per: value %d outside [%d,%d]: %w", value, lo, hi, asn1.ErrConstraintViolation)
	}
	bounds := asn1.ValueRange(lo, hi)
	rng := bounds.Range()
	offset := uint64(value) - uint64(lo)
	if rng == 1 {
		return nil
	}
	if !aligned {
		return c.Write(uint8(bounds.WidthBits()), offset)
	}
	switch {
	case rng == 0:
		// The full 64-bit span only fits the length-prefixed form.
	case rng <= 255:
		return c.Write(uint8(bounds.WidthBits()), offset)
	case rng == 256:
		c.Align()
		return c.Write(8, offset)
	case rng <= maxConstrainedLength:
		c.Align()
		return c.Write(16, offset)
	}
	// Indefinite-length case: the octet count is itself a constrained
	// whole number, then the value fills that many octets.
	n := octetsFor(offset)
	maxOctets := octetsFor(rng - 1)
	if err := writeConstrainedWhole(c, aligned, int64(n), 1, int64(maxOctets)); err != nil {
		return err
	}
	c.Align()
	return c.Write(uint8(n*8), offset)
}

func readConstrainedWhole(c *bitstream.Cursor, aligned bool, lo, hi int64) (int64, error) {
	bounds := asn1.ValueRange(lo, hi)
	rng := bounds.Range()
	if rng == 1 {
		return lo, nil
	}
	read := func(width uint8) (int64, error) {
		offset, err := c.Read(width)
		if err != nil {
			return 0, err
		}
		if offset > rng-1 {
			return 0, fmt.Errorf("per: offset %d exceeds range: %w", offset, asn1.ErrConstraintViolation)
		}
		return int64(uint64(lo) + offset), nil
	}
	if !aligned {
		return read(uint8(bounds.WidthBits()))
	}
	switch {
	case rng == 0:
		// Length-prefixed form, mirrored below.
	case rng <= 255:
		return read(uint8(bounds.WidthBits()))
	case rng == 256:
		c.Advance()
		return read(8)
	case rng <= maxConstrainedLength:
		c.Advance()
		return read(16)
	}
	maxOctets := octetsFor(rng - 1)
	n, err := readConstrainedWhole(c, aligned, 1, int64(maxOctets))
	if err != nil {
		return 0, err
	}
	c.Advance()
	return read(uint8(n * 8))
}

// writeNormallySmall packs a normally-small non-negative whole
// number: a zero bit and six bits below 64, otherwise a one bit and
// the semi-constrained form with a length determinant. X.691 11.6.
func writeNormallySmall(c *bitstream.Cursor, aligned bool, value uint64) error {
	if value < smallLengthLimit {
		if err := c.Write(1, 0); err != nil {
			return err
		}
		return c.Write(6, value)
	}
	if err := c.Write(1, 1); err != nil {
		return err
	}
	n := octetsFor(value)
	if err := writeLength(c, aligned, uint64(n), asn1.None); err != nil {
		return err
	}
	if aligned {
		c.Align()
	}
	return c.Write(uint8(n*8), value)
}

func readNormallySmall(c *bitstream.Cursor, aligned bool) (uint64, error) {
	marker, err := c.Read(1)
	if err != nil {
		return 0, err
	}
	if marker == 0 {
		return c.Read(6)
	}
	n, _, err := readLength(c, aligned, asn1.None)
	if err != nil {
		return 0, err
	}
	if n == 0 || n > 8 {
		return 0, fmt.Errorf("per: small number of %d octets: %w", n, asn1.ErrLengthMismatch)
	}
	if aligned {
		c.Advance()
	}
	return c.Read(uint8(n * 8))
}
