package asn1

import (
	"math/big"
	"time"
)

// Field describes one member of a SEQUENCE, SET or CHOICE. Tag is the
// member's outer tag after implicit tagging; when the member is an
// untagged CHOICE it has no single tag of its own and Choice carries
// the alternatives instead.
type Field struct {
	Name     string
	Tag      Tag
	Optional bool
	Default  bool
	Choice   *ChoiceSpec
}

// Matches reports whether a TLV with tag t starts this field.
func (f Field) Matches(t Tag) bool {
	if f.Choice != nil {
		for _, alt := range f.Choice.Alternatives {
			if alt.Tag.SameType(t) {
				return true
			}
		}
		return f.Choice.Extensible
	}
	return f.Tag.SameType(t)
}

// SequenceSpec is the schema of a SEQUENCE or SET: the root fields in
// declared order, then the extension additions when Extensible.
type SequenceSpec struct {
	Fields     []Field
	Extensions []Field
	Extensible bool
}

// OptionalCount returns how many root fields are optional or
// defaulted; the packed preamble carries one presence bit per such
// field.
func (s SequenceSpec) OptionalCount() int {
	n := 0
	for _, f := range s.Fields {
		if f.Optional || f.Default {
			n++
		}
	}
	return n
}

// ChoiceSpec is the schema of a CHOICE: the root alternatives in
// canonical tag order, then the extension alternatives when
// Extensible.
type ChoiceSpec struct {
	Alternatives []Field
	Extensions   []Field
	Extensible   bool
}

// IndexOf returns the root alternative whose tag matches t, or -1.
func (s ChoiceSpec) IndexOf(t Tag) int {
	for i, alt := range s.Alternatives {
		if alt.Tag.SameType(t) {
			return i
		}
	}
	return -1
}

// EnumSpec is the schema of an ENUMERATED type. Values holds the root
// discriminants in index order; the packed rules encode the index,
// the TLV rules encode the discriminant.
type EnumSpec struct {
	Values     []int64
	Extensions []int64
	Extensible bool
}

// RootIndex returns the index of discriminant v among the root
// values, or -1.
func (s EnumSpec) RootIndex(v int64) int {
	for i, d := range s.Values {
		if d == v {
			return i
		}
	}
	return -1
}

// ExtensionIndex returns the index of discriminant v among the
// extension values, or -1.
func (s EnumSpec) ExtensionIndex(v int64) int {
	for i, d := range s.Extensions {
		if d == v {
			return i
		}
	}
	return -1
}

// Constraints returns the index range of the root values, the bounds
// the packed rules use for the enumerated index.
func (s EnumSpec) Constraints() Constraints {
	if len(s.Values) == 0 {
		return None
	}
	return ValueRange(0, int64(len(s.Values)-1))
}

// Encoder is the write half of the rule-set contract. A schema type
// implements Encodable once; the engine behind the interface decides
// tag emission, length forms, canonical ordering and bit packing.
//
// Constructed operations take closures so the engine can frame the
// nested content its own way: definite or indefinite TLV lengths,
// packed presence preambles, canonical sorting of SET bodies.
type Encoder interface {
	EncodeBool(tag Tag, value bool) error
	EncodeInteger(tag Tag, c Constraints, value *big.Int) error
	EncodeEnumerated(tag Tag, spec EnumSpec, value int64) error
	EncodeBitString(tag Tag, c Constraints, value BitString) error
	EncodeOctetString(tag Tag, c Constraints, value []byte) error
	EncodeNull(tag Tag) error
	EncodeObjectIdentifier(tag Tag, value ObjectIdentifier) error
	EncodeReal(tag Tag, value float64) error
	EncodeString(tag Tag, kind StringKind, c Constraints, value string) error
	EncodeTime(tag Tag, kind TimeKind, value time.Time) error

	// EncodeSequence writes the root fields whose presence flag is
	// set, in declared order, invoking field once per present index.
	// present must cover spec.Fields followed by spec.Extensions.
	EncodeSequence(tag Tag, spec SequenceSpec, present []bool, field func(Encoder, int) error) error

	// EncodeSet is EncodeSequence with canonical tag-order sorting
	// under the canonical TLV variants.
	EncodeSet(tag Tag, spec SequenceSpec, present []bool, field func(Encoder, int) error) error

	// EncodeSequenceOf writes count elements via elem(enc, i).
	EncodeSequenceOf(tag Tag, c Constraints, count int, elem func(Encoder, int) error) error

	// EncodeSetOf is EncodeSequenceOf with byte-lexicographic sorting
	// of the element encodings under the canonical TLV variants.
	EncodeSetOf(tag Tag, c Constraints, count int, elem func(Encoder, int) error) error

	// EncodeChoice writes the alternative at index (counting root
	// alternatives first, then extensions) via value.
	EncodeChoice(tag Tag, spec ChoiceSpec, index int, value func(Encoder) error) error

	// EncodeExplicit wraps the inner encoding in an outer constructed
	// tag. The packed rules have no identifier octets, so there the
	// wrapper is the inner encoding alone.
	EncodeExplicit(tag Tag, inner func(Encoder) error) error
}

// Decoder is the read half of the rule-set contract. Field and
// element closures are invoked only for content actually present;
// absent optional fields are skipped silently, unknown extension
// content is skipped without error when the schema is extensible.
type Decoder interface {
	DecodeBool(tag Tag) (bool, error)
	DecodeInteger(tag Tag, c Constraints) (*big.Int, error)
	DecodeEnumerated(tag Tag, spec EnumSpec) (int64, error)
	DecodeBitString(tag Tag, c Constraints) (BitString, error)
	DecodeOctetString(tag Tag, c Constraints) ([]byte, error)
	DecodeNull(tag Tag) error
	DecodeObjectIdentifier(tag Tag) (ObjectIdentifier, error)
	DecodeReal(tag Tag) (float64, error)
	DecodeString(tag Tag, kind StringKind, c Constraints) (string, error)
	DecodeTime(tag Tag, kind TimeKind) (time.Time, error)

	DecodeSequence(tag Tag, spec SequenceSpec, field func(Decoder, int) error) error
	DecodeSet(tag Tag, spec SequenceSpec, field func(Decoder, int) error) error
	DecodeSequenceOf(tag Tag, c Constraints, elem func(Decoder, int) error) error
	DecodeSetOf(tag Tag, c Constraints, elem func(Decoder, int) error) error

	// DecodeChoice identifies the alternative on the wire and invokes
	// value with its index. An unknown alternative of an extensible
	// choice is skipped and value is never invoked.
	DecodeChoice(tag Tag, spec ChoiceSpec, value func(Decoder, int) error) error

	DecodeExplicit(tag Tag, inner func(Decoder) error) error

	// Trailing reports whether any decode so far left unconsumed
	// content inside a declared length. The relaxed TLV rules
	// tolerate this; canonical variants fail instead of setting it.
	Trailing() bool
}

// Encodable is implemented once per schema type; the engine passed in
// selects the rule set.
type Encodable interface {
	Encode(e Encoder) error
}

// Decodable is the read-side counterpart of Encodable.
type Decodable interface {
	Decode(d Decoder) error
}
