package asn1

import (
	"fmt"
	"math/bits"
)

// Constraints carries the declared value-range and size-range bounds
// attached to an encode or decode call site. Bounds are not stored in
// values; the schema layer passes them alongside each call.
//
// A nil bound means unbounded on that side. When Extensible is set,
// out-of-range values are legal but forfeit the packed representation
// and fall back to the unconstrained encoding path.
type Constraints struct {
	Min, Max         *int64
	MinSize, MaxSize *uint64
	Extensible       bool
}

// None is the empty constraint set.
var None = Constraints{}

// ValueRange constrains the integer value to lo..hi inclusive.
func ValueRange(lo, hi int64) Constraints {
	return Constraints{Min: &lo, Max: &hi}
}

// SemiConstrained constrains the integer value below by lo only.
func SemiConstrained(lo int64) Constraints {
	return Constraints{Min: &lo}
}

// SizeRange constrains the size (octets, bits, characters or element
// count, depending on the type) to lo..hi inclusive.
func SizeRange(lo, hi uint64) Constraints {
	return Constraints{MinSize: &lo, MaxSize: &hi}
}

// SizeFixed constrains the size to exactly n.
func SizeFixed(n uint64) Constraints {
	return SizeRange(n, n)
}

// Extensible marks c as carrying an extension marker.
func Extensible(c Constraints) Constraints {
	c.Extensible = true
	return c
}

// Bounded reports whether both value bounds are present.
func (c Constraints) Bounded() bool { return c.Min != nil && c.Max != nil }

// FixedSize returns the single permitted size when the size range is a
// point.
func (c Constraints) FixedSize() (uint64, bool) {
	if c.MinSize != nil && c.MaxSize != nil && *c.MinSize == *c.MaxSize {
		return *c.MinSize, true
	}
	return 0, false
}

// SizeBounded reports whether an upper size bound exists.
func (c Constraints) SizeBounded() bool { return c.MaxSize != nil }

// ValueInRange reports whether v lies within the declared value range.
func (c Constraints) ValueInRange(v int64) bool {
	if c.Min != nil && v < *c.Min {
		return false
	}
	if c.Max != nil && v > *c.Max {
		return false
	}
	return true
}

// SizeInRange reports whether n lies within the declared size range.
func (c Constraints) SizeInRange(n uint64) bool {
	if c.MinSize != nil && n < *c.MinSize {
		return false
	}
	if c.MaxSize != nil && n > *c.MaxSize {
		return false
	}
	return true
}

// CheckValue enforces the value range for non-extensible constraints.
func (c Constraints) CheckValue(v int64) error {
	if !c.Extensible && !c.ValueInRange(v) {
		return fmt.Errorf("value %d outside range: %w", v, ErrConstraintViolation)
	}
	return nil
}

// CheckSize enforces the size range for non-extensible constraints.
func (c Constraints) CheckSize(n uint64) error {
	if !c.Extensible && !c.SizeInRange(n) {
		return fmt.Errorf("size %d outside range: %w", n, ErrConstraintViolation)
	}
	return nil
}

// Range returns max-min+1 as a uint64. Only meaningful when Bounded;
// the full int64 span wraps to 0, which WidthBits treats as 2^64.
func (c Constraints) Range() uint64 {
	return uint64(*c.Max) - uint64(*c.Min) + 1
}

// WidthBits returns the minimal number of bits needed to represent any
// value of a bounded range as an offset from its lower bound:
// ceil(log2(max-min+1)). A single-value range needs zero bits.
func (c Constraints) WidthBits() int {
	if !c.Bounded() {
		return 0
	}
	r := c.Range()
	if r == 0 {
		return 64
	}
	if r == 1 {
		return 0
	}
	return bits.Len64(r - 1)
}
