// Package asn1 defines the core model shared by every encoding rule
// set: tags, constraints, the value types of the abstract syntax, the
// error taxonomy, and the Encoder/Decoder contract that rule-set
// strategies implement.
package asn1

import "fmt"

// Class is the tag class of an identifier.
type Class uint8

const (
	ClassUniversal   Class = 0
	ClassApplication Class = 1
	ClassContext     Class = 2
	ClassPrivate     Class = 3
)

func (c Class) String() string {
	switch c {
	case ClassUniversal:
		return "universal"
	case ClassApplication:
		return "application"
	case ClassContext:
		return "context"
	case ClassPrivate:
		return "private"
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// Universal tag numbers assigned by X.680.
const (
	TagBoolean          = 1
	TagInteger          = 2
	TagBitString        = 3
	TagOctetString      = 4
	TagNull             = 5
	TagOID              = 6
	TagReal             = 9
	TagEnumerated       = 10
	TagUTF8String       = 12
	TagSequence         = 16
	TagSet              = 17
	TagNumericString    = 18
	TagPrintableString  = 19
	TagIA5String        = 22
	TagUTCTime          = 23
	TagGeneralizedTime  = 24
	TagVisibleString    = 26
	TagGeneralString    = 27
	TagBMPString        = 30
)

// Tag identifies a value's type on the wire: class, number and the
// constructed flag. Within one constructed context the triple uniquely
// selects decode dispatch.
type Tag struct {
	Class       Class
	Number      uint64
	Constructed bool
}

// Universal returns a universal-class tag with the given number.
func Universal(number uint64) Tag {
	return Tag{Class: ClassUniversal, Number: number}
}

// Context returns a context-class tag, the form used for explicit and
// implicit field tagging.
func Context(number uint64) Tag {
	return Tag{Class: ClassContext, Number: number}
}

// Application returns an application-class tag.
func Application(number uint64) Tag {
	return Tag{Class: ClassApplication, Number: number}
}

// Default tags for the universal types.
var (
	TagOfBoolean         = Universal(TagBoolean)
	TagOfInteger         = Universal(TagInteger)
	TagOfBitString       = Universal(TagBitString)
	TagOfOctetString     = Universal(TagOctetString)
	TagOfNull            = Universal(TagNull)
	TagOfOID             = Universal(TagOID)
	TagOfReal            = Universal(TagReal)
	TagOfEnumerated      = Universal(TagEnumerated)
	TagOfUTCTime         = Universal(TagUTCTime)
	TagOfGeneralizedTime = Universal(TagGeneralizedTime)
	TagOfSequence        = Tag{Class: ClassUniversal, Number: TagSequence, Constructed: true}
	TagOfSet             = Tag{Class: ClassUniversal, Number: TagSet, Constructed: true}
)

// NoTag marks the absence of an outer tag. An untagged CHOICE has no
// tag of its own; the chosen alternative's tag appears on the wire.
// Universal number zero is reserved by X.680, so the zero Tag cannot
// collide with a real one.
var NoTag = Tag{}

// SameType reports whether two tags agree on class and number,
// ignoring the constructed flag. Used where a type may legally appear
// in either form (octet strings under BER, explicit prefixes).
func (t Tag) SameType(o Tag) bool {
	return t.Class == o.Class && t.Number == o.Number
}

// Compare orders tags by class then number, the canonical SET field
// order. Returns -1, 0 or 1.
func (t Tag) Compare(o Tag) int {
	if t.Class != o.Class {
		if t.Class < o.Class {
			return -1
		}
		return 1
	}
	if t.Number != o.Number {
		if t.Number < o.Number {
			return -1
		}
		return 1
	}
	return 0
}

func (t Tag) String() string {
	kind := "primitive"
	if t.Constructed {
		kind = "constructed"
	}
	return fmt.Sprintf("[%s %d %s]", t.Class, t.Number, kind)
}
