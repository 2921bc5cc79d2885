package ber

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/bitgrove/asn1kit/lib/asn1"
)

// Encoder writes the TLV form of a value tree. It implements
// asn1.Encoder; the variant decides length forms, canonical ordering
// and minimality.
type Encoder struct {
	variant Variant
	buf     []byte
}

// NewEncoder returns an encoder for the given variant.
func NewEncoder(v Variant) *Encoder {
	return &Encoder{variant: v}
}

// Bytes returns the encoded output.
func (e *Encoder) Bytes() []byte { return e.buf }

// Variant returns the rule set the encoder was built with.
func (e *Encoder) Variant() Variant { return e.variant }

func (e *Encoder) child() *Encoder {
	return &Encoder{variant: e.variant}
}

func (e *Encoder) appendPrimitive(tag asn1.Tag, contents []byte) {
	tag.Constructed = false
	e.buf = appendIdentifier(e.buf, tag)
	e.buf = appendLength(e.buf, len(contents))
	e.buf = append(e.buf, contents...)
}

// appendConstructed frames constructed content. The relaxed canonical
// variant uses the indefinite form with an end-of-contents pair; the
// others use minimal definite lengths.
func (e *Encoder) appendConstructed(tag asn1.Tag, contents []byte) {
	tag.Constructed = true
	e.buf = appendIdentifier(e.buf, tag)
	if e.variant == CER {
		e.buf = append(e.buf, indefiniteMarker)
		e.buf = append(e.buf, contents...)
		e.buf = append(e.buf, 0x00, 0x00)
		return
	}
	e.buf = appendLength(e.buf, len(contents))
	e.buf = append(e.buf, contents...)
}

func (e *Encoder) EncodeBool(tag asn1.Tag, value bool) error {
	contents := []byte{0x00}
	if value {
		contents[0] = 0xFF
	}
	e.appendPrimitive(tag, contents)
	return nil
}

func (e *Encoder) EncodeInteger(tag asn1.Tag, c asn1.Constraints, value *big.Int) error {
	if value == nil {
		return fmt.Errorf("ber: nil integer value")
	}
	if value.IsInt64() {
		if err := c.CheckValue(value.Int64()); err != nil {
			return err
		}
	}
	e.appendPrimitive(tag, asn1.EncodeIntegerContents(value))
	return nil
}

func (e *Encoder) EncodeEnumerated(tag asn1.Tag, spec asn1.EnumSpec, value int64) error {
	if spec.RootIndex(value) < 0 && spec.ExtensionIndex(value) < 0 && !spec.Extensible {
		return fmt.Errorf("ber: enumerated value %d not declared: %w", value, asn1.ErrConstraintViolation)
	}
	e.appendPrimitive(tag, asn1.EncodeIntegerContents(big.NewInt(value)))
	return nil
}

func (e *Encoder) EncodeBitString(tag asn1.Tag, c asn1.Constraints, value asn1.BitString) error {
	// Named-bit values drop trailing zero bits under canonical rules;
	// a declared size bound pins the length instead.
	if e.variant.Canonical() && !c.SizeBounded() {
		value = value.RightTrimmed()
	}
	if err := c.CheckSize(uint64(value.BitLength)); err != nil {
		return err
	}
	pad := byte((8 - value.BitLength%8) % 8)
	contents := make([]byte, 0, 1+len(value.Bytes))
	contents = append(contents, pad)
	contents = append(contents, value.Bytes...)
	e.appendPrimitive(tag, contents)
	return nil
}

func (e *Encoder) EncodeOctetString(tag asn1.Tag, c asn1.Constraints, value []byte) error {
	if err := c.CheckSize(uint64(len(value))); err != nil {
		return err
	}
	e.appendPrimitive(tag, value)
	return nil
}

func (e *Encoder) EncodeNull(tag asn1.Tag) error {
	e.appendPrimitive(tag, nil)
	return nil
}

func (e *Encoder) EncodeObjectIdentifier(tag asn1.Tag, value asn1.ObjectIdentifier) error {
	contents, err := value.ContentBytes()
	if err != nil {
		return err
	}
	e.appendPrimitive(tag, contents)
	return nil
}

func (e *Encoder) EncodeReal(tag asn1.Tag, value float64) error {
	e.appendPrimitive(tag, asn1.EncodeRealContents(value))
	return nil
}

func (e *Encoder) EncodeString(tag asn1.Tag, kind asn1.StringKind, c asn1.Constraints, value string) error {
	if err := c.CheckSize(uint64(utf8.RuneCountInString(value))); err != nil {
		return err
	}
	contents, err := kind.ContentBytes(value)
	if err != nil {
		return err
	}
	e.appendPrimitive(tag, contents)
	return nil
}

func (e *Encoder) EncodeTime(tag asn1.Tag, kind asn1.TimeKind, value time.Time) error {
	contents, err := kind.CanonicalContent(value)
	if err != nil {
		return err
	}
	e.appendPrimitive(tag, contents)
	return nil
}

func checkPresence(spec asn1.SequenceSpec, present []bool) error {
	want := len(spec.Fields) + len(spec.Extensions)
	if len(present) != want {
		return fmt.Errorf("ber: presence vector has %d entries, schema has %d fields", len(present), want)
	}
	for i, f := range spec.Fields {
		if !present[i] && !f.Optional && !f.Default {
			return asn1.WrapField(f.Name, fmt.Errorf("required field absent: %w", asn1.ErrConstraintViolation))
		}
	}
	return nil
}

func (e *Encoder) encodeFields(spec asn1.SequenceSpec, present []bool, field func(asn1.Encoder, int) error) ([][]byte, error) {
	if err := checkPresence(spec, present); err != nil {
		return nil, err
	}
	all := append(append([]asn1.Field{}, spec.Fields...), spec.Extensions...)
	var encoded [][]byte
	for i, f := range all {
		if !present[i] {
			continue
		}
		sub := e.child()
		if err := field(sub, i); err != nil {
			return nil, asn1.WrapField(f.Name, err)
		}
		encoded = append(encoded, sub.buf)
	}
	return encoded, nil
}

func (e *Encoder) EncodeSequence(tag asn1.Tag, spec asn1.SequenceSpec, present []bool, field func(asn1.Encoder, int) error) error {
	encoded, err := e.encodeFields(spec, present, field)
	if err != nil {
		return err
	}
	e.appendConstructed(tag, bytes.Join(encoded, nil))
	return nil
}

// EncodeSet writes the fields sorted into canonical tag order under
// the canonical variants. Identifier octets order by class then
// number, so sorting the encodings bytewise realizes the tag order.
func (e *Encoder) EncodeSet(tag asn1.Tag, spec asn1.SequenceSpec, present []bool, field func(asn1.Encoder, int) error) error {
	encoded, err := e.encodeFields(spec, present, field)
	if err != nil {
		return err
	}
	if e.variant.Canonical() {
		sort.Slice(encoded, func(i, j int) bool {
			return bytes.Compare(encoded[i], encoded[j]) < 0
		})
	}
	e.appendConstructed(tag, bytes.Join(encoded, nil))
	return nil
}

func (e *Encoder) encodeElements(c asn1.Constraints, count int, elem func(asn1.Encoder, int) error) ([][]byte, error) {
	if err := c.CheckSize(uint64(count)); err != nil {
		return nil, err
	}
	encoded := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		sub := e.child()
		if err := elem(sub, i); err != nil {
			return nil, asn1.WrapElem("", i, err)
		}
		encoded = append(encoded, sub.buf)
	}
	return encoded, nil
}

func (e *Encoder) EncodeSequenceOf(tag asn1.Tag, c asn1.Constraints, count int, elem func(asn1.Encoder, int) error) error {
	encoded, err := e.encodeElements(c, count, elem)
	if err != nil {
		return err
	}
	e.appendConstructed(tag, bytes.Join(encoded, nil))
	return nil
}

// EncodeSetOf sorts the element encodings byte-lexicographically
// under the canonical variants; decode accepts any order.
func (e *Encoder) EncodeSetOf(tag asn1.Tag, c asn1.Constraints, count int, elem func(asn1.Encoder, int) error) error {
	encoded, err := e.encodeElements(c, count, elem)
	if err != nil {
		return err
	}
	if e.variant.Canonical() {
		sort.Slice(encoded, func(i, j int) bool {
			return bytes.Compare(encoded[i], encoded[j]) < 0
		})
	}
	e.appendConstructed(tag, bytes.Join(encoded, nil))
	return nil
}

func (e *Encoder) EncodeChoice(tag asn1.Tag, spec asn1.ChoiceSpec, index int, value func(asn1.Encoder) error) error {
	total := len(spec.Alternatives) + len(spec.Extensions)
	if index < 0 || index >= total {
		return fmt.Errorf("ber: choice index %d of %d alternatives: %w", index, total, asn1.ErrUnsupportedVariant)
	}
	inner := e.child()
	if err := value(inner); err != nil {
		alt := spec.Alternatives
		name := ""
		if index < len(alt) {
			name = alt[index].Name
		} else {
			name = spec.Extensions[index-len(alt)].Name
		}
		return asn1.WrapField(name, err)
	}
	if tag == asn1.NoTag {
		// Untagged choice: the alternative's own TLV is the encoding.
		e.buf = append(e.buf, inner.buf...)
		return nil
	}
	e.appendConstructed(tag, inner.buf)
	return nil
}

func (e *Encoder) EncodeExplicit(tag asn1.Tag, inner func(asn1.Encoder) error) error {
	sub := e.child()
	if err := inner(sub); err != nil {
		return err
	}
	e.appendConstructed(tag, sub.buf)
	return nil
}
