package per

import (
	"fmt"

	"github.com/bitgrove/asn1kit/lib/asn1"
	"github.com/bitgrove/asn1kit/lib/bitstream"
)

// writeDeterminant writes one general length determinant. With more
// set, chunk must be a whole multiple of the fragment unit and the
// single fragment octet 11xxxxxx announces it; otherwise chunk is
// below 16K and takes the one- or two-octet form. X.691 11.9.3.
func writeDeterminant(c *bitstream.Cursor, aligned bool, chunk uint64, more bool) error {
	if aligned {
		c.Align()
	}
	if more {
		m := chunk / fragmentUnit
		if m < 1 || m > maxFragmentMultiplier || chunk%fragmentUnit != 0 {
			return fmt.Errorf("per: fragment of %d items: %w", chunk, asn1.ErrLengthMismatch)
		}
		return c.Write(8, 0xC0|m)
	}
	if chunk <= 127 {
		return c.Write(8, chunk)
	}
	if chunk < fragmentUnit {
		return c.Write(16, 0x8000|chunk)
	}
	return fmt.Errorf("per: determinant %d needs fragmentation: %w", chunk, asn1.ErrLengthMismatch)
}

// readDeterminant reads one general length determinant. more is set
// for the fragment form, whose chunk is followed by another
// determinant after the items it covers.
func readDeterminant(c *bitstream.Cursor, aligned bool) (chunk uint64, more bool, err error) {
	if aligned {
		c.Advance()
	}
	first, err := c.Read(8)
	if err != nil {
		return 0, false, err
	}
	switch {
	case first&0x80 == 0:
		return first, false, nil
	case first&0x40 == 0:
		second, err := c.Read(8)
		if err != nil {
			return 0, false, err
		}
		return (first&0x3F)<<8 | second, false, nil
	default:
		m := first & 0x3F
		if m < 1 || m > maxFragmentMultiplier {
			return 0, false, fmt.Errorf("per: fragment multiplier %d: %w", m, asn1.ErrLengthMismatch)
		}
		return m * fragmentUnit, true, nil
	}
}

// splitFragment decides how much of remaining the next determinant
// covers: the largest permitted fragment while 16K or more remain,
// the exact count (possibly zero) otherwise.
func splitFragment(remaining uint64) (chunk uint64, more bool) {
	if remaining >= fragmentUnit {
		m := remaining / fragmentUnit
		if m > maxFragmentMultiplier {
			m = maxFragmentMultiplier
		}
		return m * fragmentUnit, true
	}
	return remaining, false
}

// writeLength writes the determinant for a count whose size
// constraints are known. A fixed size below 64K needs no bits; a
// bounded size below 64K is a constrained whole number; anything
// else takes the general form, which the caller must fragment when
// the count reaches 16K.
func writeLength(c *bitstream.Cursor, aligned bool, n uint64, sc asn1.Constraints) error {
	if fixed, ok := sc.FixedSize(); ok && fixed < maxConstrainedLength {
		if n != fixed {
			return fmt.Errorf("per: count %d, fixed size %d: %w", n, fixed, asn1.ErrConstraintViolation)
		}
		return nil
	}
	if sc.MaxSize != nil && *sc.MaxSize < maxConstrainedLength {
		lo := uint64(0)
		if sc.MinSize != nil {
			lo = *sc.MinSize
		}
		return writeConstrainedWhole(c, aligned, int64(n), int64(lo), int64(*sc.MaxSize))
	}
	return writeDeterminant(c, aligned, n, false)
}

// readLength mirrors writeLength; more is set when the general form
// announced a fragment.
func readLength(c *bitstream.Cursor, aligned bool, sc asn1.Constraints) (n uint64, more bool, err error) {
	if fixed, ok := sc.FixedSize(); ok && fixed < maxConstrainedLength {
		return fixed, false, nil
	}
	if sc.MaxSize != nil && *sc.MaxSize < maxConstrainedLength {
		lo := uint64(0)
		if sc.MinSize != nil {
			lo = *sc.MinSize
		}
		v, err := readConstrainedWhole(c, aligned, int64(lo), int64(*sc.MaxSize))
		if err != nil {
			return 0, false, err
		}
		return uint64(v), false, nil
	}
	return readDeterminant(c, aligned)
}

// writeNormallySmallLength writes a count of at least one in the
// normally-small form: six bits of count-1 up to 64, the general
// determinant beyond. X.691 11.9.3.4.
func writeNormallySmallLength(c *bitstream.Cursor, aligned bool, n uint64) error {
	if n == 0 {
		return fmt.Errorf("per: normally-small length of zero: %w", asn1.ErrLengthMismatch)
	}
	if n <= smallLengthLimit {
		if err := c.Write(1, 0); err != nil {
			return err
		}
		return c.Write(6, n-1)
	}
	if err := c.Write(1, 1); err != nil {
		return err
	}
	return writeDeterminant(c, aligned, n, false)
}

func readNormallySmallLength(c *bitstream.Cursor, aligned bool) (uint64, error) {
	marker, err := c.Read(1)
	if err != nil {
		return 0, err
	}
	if marker == 0 {
		v, err := c.Read(6)
		if err != nil {
			return 0, err
		}
		return v + 1, nil
	}
	n, more, err := readDeterminant(c, aligned)
	if err != nil {
		return 0, err
	}
	if more {
		return 0, fmt.Errorf("per: fragmented normally-small length: %w", asn1.ErrLengthMismatch)
	}
	return n, nil
}
