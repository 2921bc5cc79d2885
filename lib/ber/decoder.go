package ber

import (
	"fmt"
	"math/big"
	"time"
	"unicode/utf8"

	"github.com/bitgrove/asn1kit/lib/asn1"
)

const defaultMaxDepth = 64

// Decoder reads the TLV form of a value tree. It implements
// asn1.Decoder; the variant decides which length forms and
// non-minimal encodings are tolerated.
type Decoder struct {
	variant  Variant
	data     []byte
	offset   int
	base     int // absolute position of data[0], for error offsets
	depth    int
	maxDepth int
	trailing *bool
}

// NewDecoder returns a decoder over data for the given variant.
func NewDecoder(v Variant, data []byte) *Decoder {
	t := false
	return &Decoder{variant: v, data: data, maxDepth: defaultMaxDepth, trailing: &t}
}

// SetMaxDepth bounds constructed nesting; decode fails with
// ErrRecursionLimit beyond it.
func (d *Decoder) SetMaxDepth(n int) {
	if n > 0 {
		d.maxDepth = n
	}
}

// Trailing reports whether any decode left unconsumed content inside
// a declared length. Only the relaxed rules ever set it.
func (d *Decoder) Trailing() bool { return *d.trailing }

// Remaining returns the unconsumed octet count.
func (d *Decoder) Remaining() int { return len(d.data) - d.offset }

func (d *Decoder) pos() int { return d.base + d.offset }

// sub returns a decoder over contents nested one level deeper,
// sharing the trailing flag with its parent.
func (d *Decoder) sub(contents []byte, abs int) (*Decoder, error) {
	if d.depth+1 > d.maxDepth {
		return nil, asn1.NewDecodeError(abs, "nesting too deep", asn1.ErrRecursionLimit)
	}
	return &Decoder{
		variant:  d.variant,
		data:     contents,
		base:     abs,
		depth:    d.depth + 1,
		maxDepth: d.maxDepth,
		trailing: d.trailing,
	}, nil
}

// peekTag reads the identifier octets at the cursor without
// consuming. The second result is false at end of content.
func (d *Decoder) peekTag() (asn1.Tag, bool) {
	if d.offset >= len(d.data) {
		return asn1.Tag{}, false
	}
	tag, _, err := parseIdentifier(d.data, d.offset, d.variant.Canonical())
	if err != nil {
		return asn1.Tag{}, false
	}
	return tag, true
}

// findEOC scans nested TLVs from start until the end-of-contents pair
// closing an indefinite length. It returns the content end and the
// position after the pair.
func findEOC(data []byte, start int, v Variant, depth, maxDepth int) (int, int, error) {
	if depth > maxDepth {
		return 0, 0, asn1.NewDecodeError(start, "nesting too deep", asn1.ErrRecursionLimit)
	}
	at := start
	for {
		if at+2 <= len(data) && data[at] == 0x00 && data[at+1] == 0x00 {
			return at, at + 2, nil
		}
		_, idLen, err := parseIdentifier(data, at, v.Canonical())
		if err != nil {
			return 0, 0, err
		}
		length, indefinite, lenLen, err := parseLength(data, at+idLen, v)
		if err != nil {
			return 0, 0, err
		}
		at += idLen + lenLen
		if indefinite {
			_, at, err = findEOC(data, at, v, depth+1, maxDepth)
			if err != nil {
				return 0, 0, err
			}
			continue
		}
		if at+length > len(data) {
			return 0, 0, asn1.NewDecodeError(at, "content octets", asn1.ErrTruncated)
		}
		at += length
	}
}

// next consumes one complete TLV and returns its tag, content octets
// and the absolute position of the content.
func (d *Decoder) next() (asn1.Tag, []byte, int, error) {
	tag, idLen, err := parseIdentifier(d.data, d.offset, d.variant.Canonical())
	if err != nil {
		return asn1.Tag{}, nil, 0, err
	}
	length, indefinite, lenLen, err := parseLength(d.data, d.offset+idLen, d.variant)
	if err != nil {
		return asn1.Tag{}, nil, 0, err
	}
	start := d.offset + idLen + lenLen
	if indefinite {
		if !tag.Constructed {
			return asn1.Tag{}, nil, 0, asn1.NewDecodeError(d.pos(), "indefinite length on primitive", asn1.ErrLengthMismatch)
		}
		end, after, err := findEOC(d.data, start, d.variant, d.depth, d.maxDepth)
		if err != nil {
			return asn1.Tag{}, nil, 0, err
		}
		d.offset = after
		return tag, d.data[start:end], d.base + start, nil
	}
	if start+length > len(d.data) {
		return asn1.Tag{}, nil, 0, asn1.NewDecodeError(d.base+start, "content octets", asn1.ErrTruncated)
	}
	d.offset = start + length
	return tag, d.data[start : start+length], d.base + start, nil
}

// skip consumes one complete TLV without interpreting it.
func (d *Decoder) skip() error {
	_, _, _, err := d.next()
	return err
}

// primitiveContents consumes a TLV with the wanted type and returns
// its content octets. A constructed form is rejected; string types go
// through stringContents instead.
func (d *Decoder) primitiveContents(want asn1.Tag) ([]byte, int, error) {
	at := d.pos()
	got, contents, abs, err := d.next()
	if err != nil {
		return nil, 0, err
	}
	if !got.SameType(want) {
		return nil, 0, asn1.NewDecodeError(at, fmt.Sprintf("tag %v, want %v", got, want), asn1.ErrInvalidTag)
	}
	if got.Constructed {
		return nil, 0, asn1.NewDecodeError(at, "constructed form of primitive type", asn1.ErrInvalidTag)
	}
	return contents, abs, nil
}

// stringContents consumes an octet-, bit- or character-string TLV.
// The relaxed rules allow the constructed form, whose segments carry
// the same tag in primitive form and concatenate; the strict
// canonical variant accepts only the primitive form.
func (d *Decoder) stringContents(want asn1.Tag) ([]byte, int, error) {
	at := d.pos()
	got, contents, abs, err := d.next()
	if err != nil {
		return nil, 0, err
	}
	if !got.SameType(want) {
		return nil, 0, asn1.NewDecodeError(at, fmt.Sprintf("tag %v, want %v", got, want), asn1.ErrInvalidTag)
	}
	if !got.Constructed {
		return contents, abs, nil
	}
	if d.variant == DER {
		return nil, 0, asn1.NewDecodeError(at, "constructed string", asn1.ErrNonCanonical)
	}
	sub, err := d.sub(contents, abs)
	if err != nil {
		return nil, 0, err
	}
	var joined []byte
	for sub.Remaining() > 0 {
		segment, _, err := sub.stringContents(want)
		if err != nil {
			return nil, 0, err
		}
		joined = append(joined, segment...)
	}
	return joined, abs, nil
}

func (d *Decoder) DecodeBool(tag asn1.Tag) (bool, error) {
	contents, abs, err := d.primitiveContents(tag)
	if err != nil {
		return false, err
	}
	if len(contents) != 1 {
		return false, asn1.NewDecodeError(abs, "boolean content length", asn1.ErrLengthMismatch)
	}
	b := contents[0]
	if d.variant.Canonical() && b != 0x00 && b != 0xFF {
		return false, asn1.NewDecodeError(abs, "boolean true must be 0xFF", asn1.ErrNonCanonical)
	}
	return b != 0x00, nil
}

func (d *Decoder) DecodeInteger(tag asn1.Tag, c asn1.Constraints) (*big.Int, error) {
	contents, _, err := d.primitiveContents(tag)
	if err != nil {
		return nil, err
	}
	v, err := asn1.DecodeIntegerContents(contents)
	if err != nil {
		return nil, err
	}
	if v.IsInt64() {
		if err := c.CheckValue(v.Int64()); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (d *Decoder) DecodeEnumerated(tag asn1.Tag, spec asn1.EnumSpec) (int64, error) {
	contents, abs, err := d.primitiveContents(tag)
	if err != nil {
		return 0, err
	}
	v, err := asn1.DecodeIntegerContents(contents)
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, asn1.NewDecodeError(abs, "enumerated discriminant overflow", asn1.ErrConstraintViolation)
	}
	value := v.Int64()
	if spec.RootIndex(value) < 0 && spec.ExtensionIndex(value) < 0 && !spec.Extensible {
		return 0, asn1.NewDecodeError(abs, fmt.Sprintf("enumerated discriminant %d not declared", value), asn1.ErrConstraintViolation)
	}
	return value, nil
}

func (d *Decoder) DecodeBitString(tag asn1.Tag, c asn1.Constraints) (asn1.BitString, error) {
	contents, abs, err := d.stringContents(tag)
	if err != nil {
		return asn1.BitString{}, err
	}
	if len(contents) == 0 {
		return asn1.BitString{}, asn1.NewDecodeError(abs, "missing unused-bits octet", asn1.ErrLengthMismatch)
	}
	pad := int(contents[0])
	if pad > 7 || (len(contents) == 1 && pad != 0) {
		return asn1.BitString{}, asn1.NewDecodeError(abs, "bad unused-bits octet", asn1.ErrLengthMismatch)
	}
	body := make([]byte, len(contents)-1)
	copy(body, contents[1:])
	bitLength := len(body)*8 - pad
	if pad > 0 {
		last := body[len(body)-1]
		if masked := last &^ (1<<pad - 1); masked != last {
			if d.variant.Canonical() {
				return asn1.BitString{}, asn1.NewDecodeError(abs, "nonzero padding bits", asn1.ErrNonCanonical)
			}
			body[len(body)-1] = masked
		}
	}
	bs, err := asn1.NewBitString(body, bitLength)
	if err != nil {
		return asn1.BitString{}, err
	}
	if err := c.CheckSize(uint64(bitLength)); err != nil {
		return asn1.BitString{}, err
	}
	return bs, nil
}

func (d *Decoder) DecodeOctetString(tag asn1.Tag, c asn1.Constraints) ([]byte, error) {
	contents, _, err := d.stringContents(tag)
	if err != nil {
		return nil, err
	}
	if err := c.CheckSize(uint64(len(contents))); err != nil {
		return nil, err
	}
	return contents, nil
}

func (d *Decoder) DecodeNull(tag asn1.Tag) error {
	contents, abs, err := d.primitiveContents(tag)
	if err != nil {
		return err
	}
	if len(contents) != 0 {
		return asn1.NewDecodeError(abs, "null with content", asn1.ErrLengthMismatch)
	}
	return nil
}

func (d *Decoder) DecodeObjectIdentifier(tag asn1.Tag) (asn1.ObjectIdentifier, error) {
	contents, _, err := d.primitiveContents(tag)
	if err != nil {
		return nil, err
	}
	return asn1.ParseOIDContent(contents)
}

func (d *Decoder) DecodeReal(tag asn1.Tag) (float64, error) {
	contents, abs, err := d.primitiveContents(tag)
	if err != nil {
		return 0, err
	}
	if d.variant.Canonical() && len(contents) > 0 {
		first := contents[0]
		switch {
		case first&0xC0 == 0x40: // special value
		case first&0x80 == 0:
			return 0, asn1.NewDecodeError(abs, "decimal real", asn1.ErrNonCanonical)
		case first>>4&0x03 != 0:
			return 0, asn1.NewDecodeError(abs, "real base not 2", asn1.ErrNonCanonical)
		}
	}
	return asn1.DecodeRealContents(contents)
}

func (d *Decoder) DecodeString(tag asn1.Tag, kind asn1.StringKind, c asn1.Constraints) (string, error) {
	contents, _, err := d.stringContents(tag)
	if err != nil {
		return "", err
	}
	s, err := kind.FromContent(contents)
	if err != nil {
		return "", err
	}
	if err := c.CheckSize(uint64(utf8.RuneCountInString(s))); err != nil {
		return "", err
	}
	return s, nil
}

func (d *Decoder) DecodeTime(tag asn1.Tag, kind asn1.TimeKind) (time.Time, error) {
	contents, _, err := d.primitiveContents(tag)
	if err != nil {
		return time.Time{}, err
	}
	return kind.ParseContent(contents, d.variant.Canonical())
}

// constructedContents consumes a TLV with the wanted constructed tag
// and returns a sub-decoder over its content.
func (d *Decoder) constructedContents(want asn1.Tag) (*Decoder, error) {
	at := d.pos()
	got, contents, abs, err := d.next()
	if err != nil {
		return nil, err
	}
	if !got.SameType(want) {
		return nil, asn1.NewDecodeError(at, fmt.Sprintf("tag %v, want %v", got, want), asn1.ErrInvalidTag)
	}
	if !got.Constructed {
		return nil, asn1.NewDecodeError(at, "primitive form of constructed type", asn1.ErrInvalidTag)
	}
	return d.sub(contents, abs)
}

// finish checks for unconsumed content inside a declared length. The
// relaxed rules record it; the canonical variants reject.
func (d *Decoder) finish(sub *Decoder) error {
	if sub.Remaining() == 0 {
		return nil
	}
	if d.variant.Canonical() {
		return asn1.NewDecodeError(sub.pos(), "unconsumed content", asn1.ErrLengthMismatch)
	}
	*d.trailing = true
	return nil
}

func (d *Decoder) DecodeSequence(tag asn1.Tag, spec asn1.SequenceSpec, field func(asn1.Decoder, int) error) error {
	sub, err := d.constructedContents(tag)
	if err != nil {
		return err
	}
	for i, f := range spec.Fields {
		next, ok := sub.peekTag()
		if ok && f.Matches(next) {
			if err := field(sub, i); err != nil {
				return asn1.WrapField(f.Name, err)
			}
			continue
		}
		if f.Optional || f.Default {
			continue
		}
		return asn1.WrapField(f.Name, fmt.Errorf("required field absent: %w", asn1.ErrInvalidTag))
	}
	for j, f := range spec.Extensions {
		next, ok := sub.peekTag()
		if ok && f.Matches(next) {
			if err := field(sub, len(spec.Fields)+j); err != nil {
				return asn1.WrapField(f.Name, err)
			}
		}
	}
	// Unknown trailing content: extension additions from a newer
	// schema version are skipped, anything else is an error.
	if spec.Extensible {
		for sub.Remaining() > 0 {
			if err := sub.skip(); err != nil {
				return err
			}
		}
	}
	return d.finish(sub)
}

func (d *Decoder) DecodeSet(tag asn1.Tag, spec asn1.SequenceSpec, field func(asn1.Decoder, int) error) error {
	sub, err := d.constructedContents(tag)
	if err != nil {
		return err
	}
	all := append(append([]asn1.Field{}, spec.Fields...), spec.Extensions...)
	seen := make([]bool, len(all))
	for sub.Remaining() > 0 {
		next, ok := sub.peekTag()
		if !ok {
			return asn1.NewDecodeError(sub.pos(), "bad identifier octets", asn1.ErrInvalidTag)
		}
		matched := -1
		for i, f := range all {
			if f.Matches(next) {
				matched = i
				break
			}
		}
		if matched < 0 {
			if spec.Extensible {
				if err := sub.skip(); err != nil {
					return err
				}
				continue
			}
			return asn1.NewDecodeError(sub.pos(), fmt.Sprintf("unexpected tag %v in set", next), asn1.ErrInvalidTag)
		}
		if seen[matched] {
			return asn1.WrapField(all[matched].Name, fmt.Errorf("duplicate set field: %w", asn1.ErrInvalidTag))
		}
		seen[matched] = true
		if err := field(sub, matched); err != nil {
			return asn1.WrapField(all[matched].Name, err)
		}
	}
	for i, f := range spec.Fields {
		if !seen[i] && !f.Optional && !f.Default {
			return asn1.WrapField(f.Name, fmt.Errorf("required field absent: %w", asn1.ErrInvalidTag))
		}
	}
	return nil
}

func (d *Decoder) decodeElements(tag asn1.Tag, c asn1.Constraints, elem func(asn1.Decoder, int) error) error {
	sub, err := d.constructedContents(tag)
	if err != nil {
		return err
	}
	count := 0
	for sub.Remaining() > 0 {
		if err := elem(sub, count); err != nil {
			return asn1.WrapElem("", count, err)
		}
		count++
	}
	return c.CheckSize(uint64(count))
}

func (d *Decoder) DecodeSequenceOf(tag asn1.Tag, c asn1.Constraints, elem func(asn1.Decoder, int) error) error {
	return d.decodeElements(tag, c, elem)
}

func (d *Decoder) DecodeSetOf(tag asn1.Tag, c asn1.Constraints, elem func(asn1.Decoder, int) error) error {
	return d.decodeElements(tag, c, elem)
}

func (d *Decoder) DecodeChoice(tag asn1.Tag, spec asn1.ChoiceSpec, value func(asn1.Decoder, int) error) error {
	chooser := d
	var wrapper *Decoder
	if tag != asn1.NoTag {
		sub, err := d.constructedContents(tag)
		if err != nil {
			return err
		}
		chooser, wrapper = sub, sub
	}
	next, ok := chooser.peekTag()
	if !ok {
		return asn1.NewDecodeError(chooser.pos(), "choice alternative", asn1.ErrTruncated)
	}
	all := append(append([]asn1.Field{}, spec.Alternatives...), spec.Extensions...)
	dispatched := false
	for i, alt := range all {
		if alt.Matches(next) {
			if err := value(chooser, i); err != nil {
				return asn1.WrapField(alt.Name, err)
			}
			dispatched = true
			break
		}
	}
	if !dispatched {
		if !spec.Extensible {
			return asn1.NewDecodeError(chooser.pos(), fmt.Sprintf("no alternative with tag %v", next), asn1.ErrUnsupportedVariant)
		}
		if err := chooser.skip(); err != nil {
			return err
		}
	}
	if wrapper != nil {
		return d.finish(wrapper)
	}
	return nil
}

func (d *Decoder) DecodeExplicit(tag asn1.Tag, inner func(asn1.Decoder) error) error {
	sub, err := d.constructedContents(tag)
	if err != nil {
		return err
	}
	if err := inner(sub); err != nil {
		return err
	}
	return d.finish(sub)
}
