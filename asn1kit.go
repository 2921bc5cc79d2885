// Package asn1kit maps structured values onto and from the ASN.1
// wire encodings: the TLV family (BER and its canonical refinements
// CER and DER) and the packed family (aligned and unaligned PER).
//
// A schema type implements asn1.Encodable and asn1.Decodable once;
// the rule set chosen at Marshal/Unmarshal time supplies the wire
// grammar. Encoders and decoders are single-use; values and rule
// sets are freely shareable across goroutines.
package asn1kit

import (
	"fmt"

	"github.com/bitgrove/asn1kit/lib/asn1"
	"github.com/bitgrove/asn1kit/lib/ber"
	"github.com/bitgrove/asn1kit/lib/per"
)

// RuleSet selects a wire encoding.
type RuleSet int

const (
	BER RuleSet = iota
	CER
	DER
	PER  // aligned
	UPER // unaligned
)

func (rs RuleSet) String() string {
	switch rs {
	case BER:
		return "BER"
	case CER:
		return "CER"
	case DER:
		return "DER"
	case PER:
		return "PER"
	case UPER:
		return "UPER"
	}
	return fmt.Sprintf("RuleSet(%d)", int(rs))
}

// Canonical reports whether the rule set defines a single valid byte
// sequence per value.
func (rs RuleSet) Canonical() bool {
	return rs == CER || rs == DER
}

// Options bounds resource use during decode.
type Options struct {
	// MaxDepth limits constructed nesting; decode fails with
	// ErrRecursionLimit beyond it.
	MaxDepth int

	// MaxMessageSize rejects input buffers above this size before any
	// parsing. Zero means unbounded.
	MaxMessageSize int
}

// DefaultOptions are applied by Marshal and Unmarshal.
var DefaultOptions = Options{MaxDepth: 64}

// Marshal encodes v under the rule set.
func Marshal(rs RuleSet, v asn1.Encodable) ([]byte, error) {
	switch rs {
	case BER, CER, DER:
		enc := ber.NewEncoder(tlvVariant(rs))
		if err := v.Encode(enc); err != nil {
			return nil, err
		}
		return enc.Bytes(), nil
	case PER, UPER:
		enc := per.NewEncoder(rs == PER)
		if err := v.Encode(enc); err != nil {
			return nil, err
		}
		return enc.Bytes(), nil
	}
	return nil, fmt.Errorf("asn1kit: unknown rule set %d: %w", int(rs), asn1.ErrUnsupportedVariant)
}

// Unmarshal decodes data into v under the rule set with the default
// options.
func Unmarshal(rs RuleSet, data []byte, v asn1.Decodable) error {
	return UnmarshalWith(rs, data, v, DefaultOptions)
}

// UnmarshalWith decodes data into v with explicit resource bounds.
// Malformed input yields a typed error, never a panic.
func UnmarshalWith(rs RuleSet, data []byte, v asn1.Decodable, opts Options) error {
	if opts.MaxMessageSize > 0 && len(data) > opts.MaxMessageSize {
		return fmt.Errorf("asn1kit: message of %d bytes exceeds limit %d: %w",
			len(data), opts.MaxMessageSize, asn1.ErrLengthMismatch)
	}
	switch rs {
	case BER, CER, DER:
		dec := ber.NewDecoder(tlvVariant(rs), data)
		dec.SetMaxDepth(opts.MaxDepth)
		return v.Decode(dec)
	case PER, UPER:
		dec := per.NewDecoder(rs == PER, data)
		dec.SetMaxDepth(opts.MaxDepth)
		return v.Decode(dec)
	}
	return fmt.Errorf("asn1kit: unknown rule set %d: %w", int(rs), asn1.ErrUnsupportedVariant)
}

func tlvVariant(rs RuleSet) ber.Variant {
	switch rs {
	case CER:
		return ber.CER
	case DER:
		return ber.DER
	}
	return ber.BER
}
