package per

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/bitgrove/asn1kit/lib/asn1"
	"github.com/bitgrove/asn1kit/lib/bitstream"
)

// Encoder packs a value tree into the bit-oriented form. It
// implements asn1.Encoder; tags are accepted for interface parity but
// never written, since the packed rules carry no identifier octets.
type Encoder struct {
	cursor  *bitstream.Cursor
	aligned bool
}

// NewEncoder returns an encoder for the aligned or unaligned variant.
func NewEncoder(aligned bool) *Encoder {
	return &Encoder{cursor: bitstream.NewWriter(), aligned: aligned}
}

// Bytes returns the encoded output, zero-padded to a whole octet.
func (e *Encoder) Bytes() []byte { return e.cursor.Bytes() }

// Aligned reports which variant the encoder writes.
func (e *Encoder) Aligned() bool { return e.aligned }

func (e *Encoder) child() *Encoder { return NewEncoder(e.aligned) }

// writeBits copies nbits from data, MSB of data[0] first.
func (e *Encoder) writeBits(data []byte, nbits int) error {
	whole := nbits / 8
	for i := 0; i < whole; i++ {
		if err := e.cursor.Write(8, uint64(data[i])); err != nil {
			return err
		}
	}
	if rem := nbits % 8; rem > 0 {
		if err := e.cursor.Write(uint8(rem), uint64(data[whole]>>(8-rem))); err != nil {
			return err
		}
	}
	return nil
}

// writeOctetBlock writes data under the octet-string framing rules: a
// fixed size of up to two octets is a bit-field, a fixed size below
// 64K is an aligned field with no determinant, anything else carries
// a determinant and fragments at 16K. X.691 16.
func (e *Encoder) writeOctetBlock(data []byte, sc asn1.Constraints) error {
	if fixed, ok := sc.FixedSize(); ok && !sc.Extensible && fixed < maxConstrainedLength {
		if uint64(len(data)) != fixed {
			return fmt.Errorf("per: %d octets, fixed size %d: %w", len(data), fixed, asn1.ErrConstraintViolation)
		}
		if fixed == 0 {
			return nil
		}
		if fixed > 2 && e.aligned {
			e.cursor.Align()
		}
		return e.writeBits(data, len(data)*8)
	}
	sc, err := e.writeSizeExtension(sc, uint64(len(data)))
	if err != nil {
		return err
	}
	if sc.MaxSize != nil && *sc.MaxSize < maxConstrainedLength {
		if err := writeLength(e.cursor, e.aligned, uint64(len(data)), sc); err != nil {
			return err
		}
		if len(data) > 0 {
			if e.aligned {
				e.cursor.Align()
			}
			return e.writeBits(data, len(data)*8)
		}
		return nil
	}
	remaining := data
	for {
		chunk, more := splitFragment(uint64(len(remaining)))
		if err := writeDeterminant(e.cursor, e.aligned, chunk, more); err != nil {
			return err
		}
		if e.aligned && chunk > 0 {
			e.cursor.Align()
		}
		if err := e.writeBits(remaining[:chunk], int(chunk)*8); err != nil {
			return err
		}
		remaining = remaining[chunk:]
		if !more {
			return nil
		}
	}
}

// writeSizeExtension writes the extension bit for an extensible size
// constraint and returns the constraints the length should be written
// under: the root bounds inside the range, none outside it.
func (e *Encoder) writeSizeExtension(sc asn1.Constraints, n uint64) (asn1.Constraints, error) {
	if !sc.Extensible {
		return sc, nil
	}
	in := sc.SizeInRange(n)
	bit := uint64(1)
	if in {
		bit = 0
	}
	if err := e.cursor.Write(1, bit); err != nil {
		return asn1.Constraints{}, err
	}
	if in {
		sc.Extensible = false
		return sc, nil
	}
	return asn1.None, nil
}

func (e *Encoder) EncodeBool(_ asn1.Tag, value bool) error {
	bit := uint64(0)
	if value {
		bit = 1
	}
	return e.cursor.Write(1, bit)
}

func (e *Encoder) EncodeInteger(_ asn1.Tag, c asn1.Constraints, value *big.Int) error {
	if value == nil {
		return fmt.Errorf("per: nil integer value")
	}
	if c.Extensible {
		in := value.IsInt64() && c.ValueInRange(value.Int64())
		bit := uint64(1)
		if in {
			bit = 0
		}
		if err := e.cursor.Write(1, bit); err != nil {
			return err
		}
		if !in {
			return e.writeUnconstrainedInteger(value)
		}
		c.Extensible = false
	}
	if c.Bounded() {
		if !value.IsInt64() || !c.ValueInRange(value.Int64()) {
			return fmt.Errorf("per: integer %v outside range: %w", value, asn1.ErrConstraintViolation)
		}
		return writeConstrainedWhole(e.cursor, e.aligned, value.Int64(), *c.Min, *c.Max)
	}
	if c.Min != nil {
		// Semi-constrained: a minimal octet field of value-min behind
		// a length determinant. X.691 11.7.
		offset := new(big.Int).Sub(value, big.NewInt(*c.Min))
		if offset.Sign() < 0 {
			return fmt.Errorf("per: integer %v below %d: %w", value, *c.Min, asn1.ErrConstraintViolation)
		}
		octets := offset.Bytes()
		if len(octets) == 0 {
			octets = []byte{0x00}
		}
		return e.writeOctetBlock(octets, asn1.None)
	}
	return e.writeUnconstrainedInteger(value)
}

func (e *Encoder) writeUnconstrainedInteger(value *big.Int) error {
	return e.writeOctetBlock(asn1.EncodeIntegerContents(value), asn1.None)
}

func (e *Encoder) EncodeEnumerated(_ asn1.Tag, spec asn1.EnumSpec, value int64) error {
	root := spec.RootIndex(value)
	if spec.Extensible {
		bit := uint64(1)
		if root >= 0 {
			bit = 0
		}
		if err := e.cursor.Write(1, bit); err != nil {
			return err
		}
		if root < 0 {
			ext := spec.ExtensionIndex(value)
			if ext < 0 {
				return fmt.Errorf("per: enumerated value %d not declared: %w", value, asn1.ErrConstraintViolation)
			}
			return writeNormallySmall(e.cursor, e.aligned, uint64(ext))
		}
	}
	if root < 0 {
		return fmt.Errorf("per: enumerated value %d not declared: %w", value, asn1.ErrConstraintViolation)
	}
	return writeConstrainedWhole(e.cursor, e.aligned, int64(root), 0, int64(len(spec.Values)-1))
}

func (e *Encoder) EncodeBitString(_ asn1.Tag, c asn1.Constraints, value asn1.BitString) error {
	nbits := uint64(value.BitLength)
	if fixed, ok := c.FixedSize(); ok && !c.Extensible && fixed < maxConstrainedLength {
		if nbits != fixed {
			return fmt.Errorf("per: %d bits, fixed size %d: %w", nbits, fixed, asn1.ErrConstraintViolation)
		}
		if fixed > 16 && e.aligned {
			e.cursor.Align()
		}
		return e.writeBits(value.Bytes, value.BitLength)
	}
	c, err := e.writeSizeExtension(c, nbits)
	if err != nil {
		return err
	}
	if c.MaxSize != nil && *c.MaxSize < maxConstrainedLength {
		if err := writeLength(e.cursor, e.aligned, nbits, c); err != nil {
			return err
		}
		if nbits > 0 {
			if e.aligned {
				e.cursor.Align()
			}
			return e.writeBits(value.Bytes, value.BitLength)
		}
		return nil
	}
	// Unbounded bit counts fragment at 16K bits.
	bit := 0
	remaining := nbits
	for {
		chunk, more := splitFragment(remaining)
		if err := writeDeterminant(e.cursor, e.aligned, chunk, more); err != nil {
			return err
		}
		if e.aligned && chunk > 0 {
			e.cursor.Align()
		}
		for i := uint64(0); i < chunk; i++ {
			if err := e.cursor.Write(1, uint64(value.At(bit))); err != nil {
				return err
			}
			bit++
		}
		remaining -= chunk
		if !more {
			return nil
		}
	}
}

func (e *Encoder) EncodeOctetString(_ asn1.Tag, c asn1.Constraints, value []byte) error {
	return e.writeOctetBlock(value, c)
}

func (e *Encoder) EncodeNull(_ asn1.Tag) error { return nil }

func (e *Encoder) EncodeObjectIdentifier(_ asn1.Tag, value asn1.ObjectIdentifier) error {
	contents, err := value.ContentBytes()
	if err != nil {
		return err
	}
	return e.writeOctetBlock(contents, asn1.None)
}

func (e *Encoder) EncodeReal(_ asn1.Tag, value float64) error {
	return e.writeOctetBlock(asn1.EncodeRealContents(value), asn1.None)
}

func (e *Encoder) EncodeString(_ asn1.Tag, kind asn1.StringKind, c asn1.Constraints, value string) error {
	if err := kind.Validate(value); err != nil {
		return err
	}
	if !kind.KnownMultiplier() {
		contents, err := kind.ContentBytes(value)
		if err != nil {
			return err
		}
		return e.writeOctetBlock(contents, c)
	}
	runes := []rune(value)
	count := uint64(len(runes))
	width := kind.CharWidth(e.aligned)
	c, err := e.writeSizeExtension(c, count)
	if err != nil {
		return err
	}
	writeChars := func(chars []rune) error {
		for _, r := range chars {
			v, err := kind.CharValue(r, width)
			if err != nil {
				return err
			}
			if err := e.cursor.Write(uint8(width), v); err != nil {
				return err
			}
		}
		return nil
	}
	fixed, isFixed := c.FixedSize()
	if isFixed && fixed < maxConstrainedLength {
		if count != fixed {
			return fmt.Errorf("per: %d characters, fixed size %d: %w", count, fixed, asn1.ErrConstraintViolation)
		}
		// A short fixed-size field stays a bit-field; longer character
		// data starts on an octet boundary in the aligned variant.
		if e.aligned && count*uint64(width) > 16 {
			e.cursor.Align()
		}
		return writeChars(runes)
	}
	if c.MaxSize != nil && *c.MaxSize < maxConstrainedLength {
		if err := writeLength(e.cursor, e.aligned, count, c); err != nil {
			return err
		}
		if e.aligned && count > 0 {
			e.cursor.Align()
		}
		return writeChars(runes)
	}
	remaining := runes
	for {
		chunk, more := splitFragment(uint64(len(remaining)))
		if err := writeDeterminant(e.cursor, e.aligned, chunk, more); err != nil {
			return err
		}
		if e.aligned && chunk > 0 {
			e.cursor.Align()
		}
		if err := writeChars(remaining[:chunk]); err != nil {
			return err
		}
		remaining = remaining[chunk:]
		if !more {
			return nil
		}
	}
}

func (e *Encoder) EncodeTime(_ asn1.Tag, kind asn1.TimeKind, value time.Time) error {
	contents, err := kind.CanonicalContent(value)
	if err != nil {
		return err
	}
	return e.writeOctetBlock(contents, asn1.None)
}

func checkPresence(spec asn1.SequenceSpec, present []bool) error {
	want := len(spec.Fields) + len(spec.Extensions)
	if len(present) != want {
		return fmt.Errorf("per: presence vector has %d entries, schema has %d fields", len(present), want)
	}
	for i, f := range spec.Fields {
		if !present[i] && !f.Optional && !f.Default {
			return asn1.WrapField(f.Name, fmt.Errorf("required field absent: %w", asn1.ErrConstraintViolation))
		}
	}
	return nil
}

// canonicalOrder returns root field indices in canonical tag order,
// the component order the packed SET encoding uses. An untagged
// choice field orders by its first alternative.
func canonicalOrder(spec asn1.SequenceSpec) []int {
	order := make([]int, len(spec.Fields))
	for i := range order {
		order[i] = i
	}
	tagOf := func(f asn1.Field) asn1.Tag {
		if f.Choice != nil && len(f.Choice.Alternatives) > 0 {
			return f.Choice.Alternatives[0].Tag
		}
		return f.Tag
	}
	sort.SliceStable(order, func(a, b int) bool {
		return tagOf(spec.Fields[order[a]]).Compare(tagOf(spec.Fields[order[b]])) < 0
	})
	return order
}

func (e *Encoder) encodeComposite(spec asn1.SequenceSpec, present []bool, order []int, field func(asn1.Encoder, int) error) error {
	if err := checkPresence(spec, present); err != nil {
		return err
	}
	extPresent := false
	for i := range spec.Extensions {
		if present[len(spec.Fields)+i] {
			extPresent = true
			break
		}
	}
	if spec.Extensible {
		bit := uint64(0)
		if extPresent {
			bit = 1
		}
		if err := e.cursor.Write(1, bit); err != nil {
			return err
		}
	} else if extPresent {
		return fmt.Errorf("per: extension fields on a non-extensible type: %w", asn1.ErrConstraintViolation)
	}
	// Presence preamble: one bit per optional or defaulted root field.
	for _, i := range order {
		f := spec.Fields[i]
		if !f.Optional && !f.Default {
			continue
		}
		bit := uint64(0)
		if present[i] {
			bit = 1
		}
		if err := e.cursor.Write(1, bit); err != nil {
			return err
		}
	}
	for _, i := range order {
		if !present[i] {
			continue
		}
		if err := field(e, i); err != nil {
			return asn1.WrapField(spec.Fields[i].Name, err)
		}
	}
	if !extPresent {
		return nil
	}
	// Extension additions: a normally-small count, the presence
	// bitmap, then each present addition as an open type. X.691 19.8.
	n := uint64(len(spec.Extensions))
	if err := writeNormallySmallLength(e.cursor, e.aligned, n); err != nil {
		return err
	}
	for i := range spec.Extensions {
		bit := uint64(0)
		if present[len(spec.Fields)+i] {
			bit = 1
		}
		if err := e.cursor.Write(1, bit); err != nil {
			return err
		}
	}
	for i, f := range spec.Extensions {
		idx := len(spec.Fields) + i
		if !present[idx] {
			continue
		}
		if err := e.writeOpenType(func(sub *Encoder) error { return field(sub, idx) }); err != nil {
			return asn1.WrapField(f.Name, err)
		}
	}
	return nil
}

// writeOpenType wraps a complete nested encoding in octets behind a
// determinant. An empty encoding still occupies one octet. X.691 10.2.
func (e *Encoder) writeOpenType(inner func(*Encoder) error) error {
	sub := e.child()
	if err := inner(sub); err != nil {
		return err
	}
	data := sub.Bytes()
	if len(data) == 0 {
		data = []byte{0x00}
	}
	return e.writeOctetBlock(data, asn1.None)
}

func (e *Encoder) EncodeSequence(_ asn1.Tag, spec asn1.SequenceSpec, present []bool, field func(asn1.Encoder, int) error) error {
	order := make([]int, len(spec.Fields))
	for i := range order {
		order[i] = i
	}
	return e.encodeComposite(spec, present, order, field)
}

func (e *Encoder) EncodeSet(_ asn1.Tag, spec asn1.SequenceSpec, present []bool, field func(asn1.Encoder, int) error) error {
	return e.encodeComposite(spec, present, canonicalOrder(spec), field)
}

func (e *Encoder) encodeElements(c asn1.Constraints, count int, elem func(asn1.Encoder, int) error) error {
	c, err := e.writeSizeExtension(c, uint64(count))
	if err != nil {
		return err
	}
	if fixed, ok := c.FixedSize(); ok && fixed < maxConstrainedLength {
		if uint64(count) != fixed {
			return fmt.Errorf("per: %d elements, fixed size %d: %w", count, fixed, asn1.ErrConstraintViolation)
		}
		for i := 0; i < count; i++ {
			if err := elem(e, i); err != nil {
				return asn1.WrapElem("", i, err)
			}
		}
		return nil
	}
	if c.MaxSize != nil && *c.MaxSize < maxConstrainedLength {
		if err := writeLength(e.cursor, e.aligned, uint64(count), c); err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			if err := elem(e, i); err != nil {
				return asn1.WrapElem("", i, err)
			}
		}
		return nil
	}
	// Element counts fragment at 16K like string contents do.
	i := 0
	remaining := uint64(count)
	for {
		chunk, more := splitFragment(remaining)
		if err := writeDeterminant(e.cursor, e.aligned, chunk, more); err != nil {
			return err
		}
		for j := uint64(0); j < chunk; j++ {
			if err := elem(e, i); err != nil {
				return asn1.WrapElem("", i, err)
			}
			i++
		}
		remaining -= chunk
		if !more {
			return nil
		}
	}
}

func (e *Encoder) EncodeSequenceOf(_ asn1.Tag, c asn1.Constraints, count int, elem func(asn1.Encoder, int) error) error {
	return e.encodeElements(c, count, elem)
}

func (e *Encoder) EncodeSetOf(_ asn1.Tag, c asn1.Constraints, count int, elem func(asn1.Encoder, int) error) error {
	return e.encodeElements(c, count, elem)
}

func (e *Encoder) EncodeChoice(_ asn1.Tag, spec asn1.ChoiceSpec, index int, value func(asn1.Encoder) error) error {
	root := len(spec.Alternatives)
	total := root + len(spec.Extensions)
	if index < 0 || index >= total {
		return fmt.Errorf("per: choice index %d of %d alternatives: %w", index, total, asn1.ErrUnsupportedVariant)
	}
	if spec.Extensible {
		bit := uint64(0)
		if index >= root {
			bit = 1
		}
		if err := e.cursor.Write(1, bit); err != nil {
			return err
		}
	} else if index >= root {
		return fmt.Errorf("per: extension alternative on a non-extensible choice: %w", asn1.ErrUnsupportedVariant)
	}
	if index < root {
		if root > 1 {
			if err := writeConstrainedWhole(e.cursor, e.aligned, int64(index), 0, int64(root-1)); err != nil {
				return err
			}
		}
		if err := value(e); err != nil {
			return asn1.WrapField(spec.Alternatives[index].Name, err)
		}
		return nil
	}
	if err := writeNormallySmall(e.cursor, e.aligned, uint64(index-root)); err != nil {
		return err
	}
	if err := e.writeOpenType(func(sub *Encoder) error { return value(sub) }); err != nil {
		return asn1.WrapField(spec.Extensions[index-root].Name, err)
	}
	return nil
}

// EncodeExplicit is the inner encoding alone: the packed rules have
// no identifier octets for the wrapper to carry.
func (e *Encoder) EncodeExplicit(_ asn1.Tag, inner func(asn1.Encoder) error) error {
	return inner(e)
}
