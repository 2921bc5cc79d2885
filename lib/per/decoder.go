package per

import (
	"fmt"
	"math/big"
	"time"

	"github.com/bitgrove/asn1kit/lib/asn1"
	"github.com/bitgrove/asn1kit/lib/bitstream"
)

const defaultMaxDepth = 64

// Decoder unpacks the bit-oriented form. It implements asn1.Decoder;
// the schema drives every read, since the wire carries no identifier
// octets to dispatch on.
type Decoder struct {
	cursor   *bitstream.Cursor
	aligned  bool
	depth    int
	maxDepth int
}

// NewDecoder returns a decoder over data for the aligned or unaligned
// variant.
func NewDecoder(aligned bool, data []byte) *Decoder {
	return &Decoder{cursor: bitstream.NewReader(data), aligned: aligned, maxDepth: defaultMaxDepth}
}

// SetMaxDepth bounds constructed nesting; decode fails with
// ErrRecursionLimit beyond it.
func (d *Decoder) SetMaxDepth(n int) {
	if n > 0 {
		d.maxDepth = n
	}
}

// Trailing always reports false: the schema drives packed reads, so
// no content is ever skipped inside a declared length.
func (d *Decoder) Trailing() bool { return false }

func (d *Decoder) descend() error {
	d.depth++
	if d.depth > d.maxDepth {
		return fmt.Errorf("per: nesting too deep: %w", asn1.ErrRecursionLimit)
	}
	return nil
}

func (d *Decoder) openTypeDecoder(data []byte) (*Decoder, error) {
	if d.depth+1 > d.maxDepth {
		return nil, fmt.Errorf("per: nesting too deep: %w", asn1.ErrRecursionLimit)
	}
	sub := NewDecoder(d.aligned, data)
	sub.depth = d.depth + 1
	sub.maxDepth = d.maxDepth
	return sub, nil
}

// readBits reads nbits into a fresh buffer, MSB of the first byte
// first, trailing bits zero.
func (d *Decoder) readBits(nbits int) ([]byte, error) {
	out := make([]byte, (nbits+7)/8)
	whole := nbits / 8
	for i := 0; i < whole; i++ {
		v, err := d.cursor.Read(8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	if rem := nbits % 8; rem > 0 {
		v, err := d.cursor.Read(uint8(rem))
		if err != nil {
			return nil, err
		}
		out[whole] = byte(v) << (8 - rem)
	}
	return out, nil
}

// readSizeExtension mirrors the encoder's extension bit for an
// extensible size constraint.
func (d *Decoder) readSizeExtension(sc asn1.Constraints) (asn1.Constraints, error) {
	if !sc.Extensible {
		return sc, nil
	}
	bit, err := d.cursor.Read(1)
	if err != nil {
		return asn1.Constraints{}, err
	}
	if bit == 0 {
		sc.Extensible = false
		return sc, nil
	}
	return asn1.None, nil
}

// readOctetBlock mirrors writeOctetBlock, reassembling fragments.
func (d *Decoder) readOctetBlock(sc asn1.Constraints) ([]byte, error) {
	if fixed, ok := sc.FixedSize(); ok && !sc.Extensible && fixed < maxConstrainedLength {
		if fixed == 0 {
			return nil, nil
		}
		if fixed > 2 && d.aligned {
			d.cursor.Advance()
		}
		return d.readBits(int(fixed) * 8)
	}
	sc, err := d.readSizeExtension(sc)
	if err != nil {
		return nil, err
	}
	if sc.MaxSize != nil && *sc.MaxSize < maxConstrainedLength {
		n, _, err := readLength(d.cursor, d.aligned, sc)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		if d.aligned {
			d.cursor.Advance()
		}
		return d.readBits(int(n) * 8)
	}
	var out []byte
	for {
		chunk, more, err := readDeterminant(d.cursor, d.aligned)
		if err != nil {
			return nil, err
		}
		if chunk > 0 {
			if d.aligned {
				d.cursor.Advance()
			}
			part, err := d.readBits(int(chunk) * 8)
			if err != nil {
				return nil, err
			}
			out = append(out, part...)
		}
		if !more {
			return out, nil
		}
	}
}

func (d *Decoder) DecodeBool(_ asn1.Tag) (bool, error) {
	bit, err := d.cursor.Read(1)
	if err != nil {
		return false, err
	}
	return bit == 1, nil
}

func (d *Decoder) DecodeInteger(_ asn1.Tag, c asn1.Constraints) (*big.Int, error) {
	if c.Extensible {
		bit, err := d.cursor.Read(1)
		if err != nil {
			return nil, err
		}
		if bit == 1 {
			return d.readUnconstrainedInteger()
		}
		c.Extensible = false
	}
	if c.Bounded() {
		v, err := readConstrainedWhole(d.cursor, d.aligned, *c.Min, *c.Max)
		if err != nil {
			return nil, err
		}
		return big.NewInt(v), nil
	}
	if c.Min != nil {
		octets, err := d.readOctetBlock(asn1.None)
		if err != nil {
			return nil, err
		}
		if len(octets) == 0 {
			return nil, fmt.Errorf("per: empty semi-constrained integer: %w", asn1.ErrLengthMismatch)
		}
		v := new(big.Int).SetBytes(octets)
		return v.Add(v, big.NewInt(*c.Min)), nil
	}
	return d.readUnconstrainedInteger()
}

func (d *Decoder) readUnconstrainedInteger() (*big.Int, error) {
	octets, err := d.readOctetBlock(asn1.None)
	if err != nil {
		return nil, err
	}
	return asn1.DecodeIntegerContents(octets)
}

func (d *Decoder) DecodeEnumerated(_ asn1.Tag, spec asn1.EnumSpec) (int64, error) {
	if spec.Extensible {
		bit, err := d.cursor.Read(1)
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			idx, err := readNormallySmall(d.cursor, d.aligned)
			if err != nil {
				return 0, err
			}
			if idx >= uint64(len(spec.Extensions)) {
				return 0, fmt.Errorf("per: enumerated extension index %d unknown: %w", idx, asn1.ErrUnsupportedVariant)
			}
			return spec.Extensions[idx], nil
		}
	}
	if len(spec.Values) == 0 {
		return 0, fmt.Errorf("per: enumerated type with no root values: %w", asn1.ErrConstraintViolation)
	}
	idx, err := readConstrainedWhole(d.cursor, d.aligned, 0, int64(len(spec.Values)-1))
	if err != nil {
		return 0, err
	}
	return spec.Values[idx], nil
}

func (d *Decoder) DecodeBitString(_ asn1.Tag, c asn1.Constraints) (asn1.BitString, error) {
	if fixed, ok := c.FixedSize(); ok && !c.Extensible && fixed < maxConstrainedLength {
		if fixed > 16 && d.aligned {
			d.cursor.Advance()
		}
		body, err := d.readBits(int(fixed))
		if err != nil {
			return asn1.BitString{}, err
		}
		return asn1.NewBitString(body, int(fixed))
	}
	c, err := d.readSizeExtension(c)
	if err != nil {
		return asn1.BitString{}, err
	}
	if c.MaxSize != nil && *c.MaxSize < maxConstrainedLength {
		n, _, err := readLength(d.cursor, d.aligned, c)
		if err != nil {
			return asn1.BitString{}, err
		}
		if n > 0 && d.aligned {
			d.cursor.Advance()
		}
		body, err := d.readBits(int(n))
		if err != nil {
			return asn1.BitString{}, err
		}
		return asn1.NewBitString(body, int(n))
	}
	cursorOut := bitstream.NewWriter()
	total := 0
	for {
		chunk, more, err := readDeterminant(d.cursor, d.aligned)
		if err != nil {
			return asn1.BitString{}, err
		}
		if chunk > 0 {
			if d.aligned {
				d.cursor.Advance()
			}
			for i := uint64(0); i < chunk; i++ {
				bit, err := d.cursor.Read(1)
				if err != nil {
					return asn1.BitString{}, err
				}
				if err := cursorOut.Write(1, bit); err != nil {
					return asn1.BitString{}, err
				}
			}
			total += int(chunk)
		}
		if !more {
			return asn1.NewBitString(cursorOut.Bytes(), total)
		}
	}
}

func (d *Decoder) DecodeOctetString(_ asn1.Tag, c asn1.Constraints) ([]byte, error) {
	data, err := d.readOctetBlock(c)
	if err != nil {
		return nil, err
	}
	if err := c.CheckSize(uint64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

func (d *Decoder) DecodeNull(_ asn1.Tag) error { return nil }

func (d *Decoder) DecodeObjectIdentifier(_ asn1.Tag) (asn1.ObjectIdentifier, error) {
	contents, err := d.readOctetBlock(asn1.None)
	if err != nil {
		return nil, err
	}
	return asn1.ParseOIDContent(contents)
}

func (d *Decoder) DecodeReal(_ asn1.Tag) (float64, error) {
	contents, err := d.readOctetBlock(asn1.None)
	if err != nil {
		return 0, err
	}
	return asn1.DecodeRealContents(contents)
}

func (d *Decoder) DecodeString(_ asn1.Tag, kind asn1.StringKind, c asn1.Constraints) (string, error) {
	if !kind.KnownMultiplier() {
		contents, err := d.readOctetBlock(c)
		if err != nil {
			return "", err
		}
		return kind.FromContent(contents)
	}
	width := kind.CharWidth(d.aligned)
	readChars := func(count uint64) ([]rune, error) {
		out := make([]rune, 0, count)
		for i := uint64(0); i < count; i++ {
			v, err := d.cursor.Read(uint8(width))
			if err != nil {
				return nil, err
			}
			r, err := kind.CharFromValue(v, width)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		return out, nil
	}
	c, err := d.readSizeExtension(c)
	if err != nil {
		return "", err
	}
	if fixed, ok := c.FixedSize(); ok && fixed < maxConstrainedLength {
		if d.aligned && fixed*uint64(width) > 16 {
			d.cursor.Advance()
		}
		runes, err := readChars(fixed)
		if err != nil {
			return "", err
		}
		return string(runes), nil
	}
	if c.MaxSize != nil && *c.MaxSize < maxConstrainedLength {
		n, _, err := readLength(d.cursor, d.aligned, c)
		if err != nil {
			return "", err
		}
		if d.aligned && n > 0 {
			d.cursor.Advance()
		}
		runes, err := readChars(n)
		if err != nil {
			return "", err
		}
		return string(runes), nil
	}
	var runes []rune
	for {
		chunk, more, err := readDeterminant(d.cursor, d.aligned)
		if err != nil {
			return "", err
		}
		if chunk > 0 {
			if d.aligned {
				d.cursor.Advance()
			}
			part, err := readChars(chunk)
			if err != nil {
				return "", err
			}
			runes = append(runes, part...)
		}
		if !more {
			return string(runes), nil
		}
	}
}

func (d *Decoder) DecodeTime(_ asn1.Tag, kind asn1.TimeKind) (time.Time, error) {
	contents, err := d.readOctetBlock(asn1.None)
	if err != nil {
		return time.Time{}, err
	}
	return kind.ParseContent(contents, true)
}

func (d *Decoder) decodeComposite(spec asn1.SequenceSpec, order []int, field func(asn1.Decoder, int) error) error {
	if err := d.descend(); err != nil {
		return err
	}
	defer func() { d.depth-- }()

	extPresent := false
	if spec.Extensible {
		bit, err := d.cursor.Read(1)
		if err != nil {
			return err
		}
		extPresent = bit == 1
	}
	present := make([]bool, len(spec.Fields))
	for _, i := range order {
		f := spec.Fields[i]
		if !f.Optional && !f.Default {
			present[i] = true
			continue
		}
		bit, err := d.cursor.Read(1)
		if err != nil {
			return err
		}
		present[i] = bit == 1
	}
	for _, i := range order {
		if !present[i] {
			continue
		}
		if err := field(d, i); err != nil {
			return asn1.WrapField(spec.Fields[i].Name, err)
		}
	}
	if !extPresent {
		return nil
	}
	n, err := readNormallySmallLength(d.cursor, d.aligned)
	if err != nil {
		return err
	}
	bitmap := make([]bool, n)
	for i := range bitmap {
		bit, err := d.cursor.Read(1)
		if err != nil {
			return err
		}
		bitmap[i] = bit == 1
	}
	for i, set := range bitmap {
		if !set {
			continue
		}
		data, err := d.readOctetBlock(asn1.None)
		if err != nil {
			return err
		}
		// Additions beyond the known schema are skipped; a newer peer
		// may have more extensions than we do.
		if i >= len(spec.Extensions) {
			continue
		}
		sub, err := d.openTypeDecoder(data)
		if err != nil {
			return err
		}
		if err := field(sub, len(spec.Fields)+i); err != nil {
			return asn1.WrapField(spec.Extensions[i].Name, err)
		}
	}
	return nil
}

func (d *Decoder) DecodeSequence(_ asn1.Tag, spec asn1.SequenceSpec, field func(asn1.Decoder, int) error) error {
	order := make([]int, len(spec.Fields))
	for i := range order {
		order[i] = i
	}
	return d.decodeComposite(spec, order, field)
}

func (d *Decoder) DecodeSet(_ asn1.Tag, spec asn1.SequenceSpec, field func(asn1.Decoder, int) error) error {
	return d.decodeComposite(spec, canonicalOrder(spec), field)
}

func (d *Decoder) decodeElements(c asn1.Constraints, elem func(asn1.Decoder, int) error) error {
	if err := d.descend(); err != nil {
		return err
	}
	defer func() { d.depth-- }()

	c, err := d.readSizeExtension(c)
	if err != nil {
		return err
	}
	if fixed, ok := c.FixedSize(); ok && fixed < maxConstrainedLength {
		for i := uint64(0); i < fixed; i++ {
			if err := elem(d, int(i)); err != nil {
				return asn1.WrapElem("", int(i), err)
			}
		}
		return nil
	}
	if c.MaxSize != nil && *c.MaxSize < maxConstrainedLength {
		n, _, err := readLength(d.cursor, d.aligned, c)
		if err != nil {
			return err
		}
		for i := uint64(0); i < n; i++ {
			if err := elem(d, int(i)); err != nil {
				return asn1.WrapElem("", int(i), err)
			}
		}
		return nil
	}
	i := 0
	for {
		chunk, more, err := readDeterminant(d.cursor, d.aligned)
		if err != nil {
			return err
		}
		for j := uint64(0); j < chunk; j++ {
			if err := elem(d, i); err != nil {
				return asn1.WrapElem("", i, err)
			}
			i++
		}
		if !more {
			return nil
		}
	}
}

func (d *Decoder) DecodeSequenceOf(_ asn1.Tag, c asn1.Constraints, elem func(asn1.Decoder, int) error) error {
	return d.decodeElements(c, elem)
}

func (d *Decoder) DecodeSetOf(_ asn1.Tag, c asn1.Constraints, elem func(asn1.Decoder, int) error) error {
	return d.decodeElements(c, elem)
}

func (d *Decoder) DecodeChoice(_ asn1.Tag, spec asn1.ChoiceSpec, value func(asn1.Decoder, int) error) error {
	if err := d.descend(); err != nil {
		return err
	}
	defer func() { d.depth-- }()

	root := len(spec.Alternatives)
	if spec.Extensible {
		bit, err := d.cursor.Read(1)
		if err != nil {
			return err
		}
		if bit == 1 {
			idx, err := readNormallySmall(d.cursor, d.aligned)
			if err != nil {
				return err
			}
			data, err := d.readOctetBlock(asn1.None)
			if err != nil {
				return err
			}
			if idx >= uint64(len(spec.Extensions)) {
				return nil // unknown alternative, tolerated
			}
			sub, err := d.openTypeDecoder(data)
			if err != nil {
				return err
			}
			if err := value(sub, root+int(idx)); err != nil {
				return asn1.WrapField(spec.Extensions[idx].Name, err)
			}
			return nil
		}
	}
	if root == 0 {
		return fmt.Errorf("per: choice with no root alternatives: %w", asn1.ErrConstraintViolation)
	}
	idx := int64(0)
	if root > 1 {
		var err error
		idx, err = readConstrainedWhole(d.cursor, d.aligned, 0, int64(root-1))
		if err != nil {
			return err
		}
	}
	if err := value(d, int(idx)); err != nil {
		return asn1.WrapField(spec.Alternatives[idx].Name, err)
	}
	return nil
}

// DecodeExplicit is the inner decoding alone; there are no identifier
// octets to unwrap.
func (d *Decoder) DecodeExplicit(_ asn1.Tag, inner func(asn1.Decoder) error) error {
	return inner(d)
}
