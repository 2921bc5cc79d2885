// Package ber implements the TLV rule-set family: the basic encoding
// rules plus the two canonical refinements layered on the same
// tag-length-value grammar. The strict canonical variant forbids
// indefinite lengths and enforces minimal forms everywhere; the
// relaxed canonical variant keeps minimal primitive forms but frames
// constructed content with indefinite lengths so encoders need not
// know sizes up front.
package ber

import "fmt"

// Variant selects one of the three TLV rule sets.
type Variant int

const (
	BER Variant = iota
	CER
	DER
)

func (v Variant) String() string {
	switch v {
	case BER:
		return "BER"
	case CER:
		return "CER"
	case DER:
		return "DER"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// Canonical reports whether the variant demands minimal encodings and
// canonical ordering.
func (v Variant) Canonical() bool { return v != BER }
