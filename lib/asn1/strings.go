package asn1

import (
	"fmt"
	"math/bits"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// StringKind selects one of the restricted character string types.
type StringKind int

const (
	UTF8String StringKind = iota
	NumericString
	PrintableString
	IA5String
	VisibleString
	BMPString
	GeneralString
)

func (k StringKind) String() string {
	switch k {
	case UTF8String:
		return "UTF8String"
	case NumericString:
		return "NumericString"
	case PrintableString:
		return "PrintableString"
	case IA5String:
		return "IA5String"
	case VisibleString:
		return "VisibleString"
	case BMPString:
		return "BMPString"
	case GeneralString:
		return "GeneralString"
	}
	return fmt.Sprintf("StringKind(%d)", int(k))
}

// Tag returns the universal tag for the string type.
func (k StringKind) Tag() Tag {
	switch k {
	case UTF8String:
		return Universal(TagUTF8String)
	case NumericString:
		return Universal(TagNumericString)
	case PrintableString:
		return Universal(TagPrintableString)
	case IA5String:
		return Universal(TagIA5String)
	case VisibleString:
		return Universal(TagVisibleString)
	case BMPString:
		return Universal(TagBMPString)
	case GeneralString:
		return Universal(TagGeneralString)
	}
	return Universal(TagUTF8String)
}

// numericAlphabet is the NumericString alphabet in ascending ISO 646
// order; indices are the compacted character values.
const numericAlphabet = " 0123456789"

func printableRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case ' ', '\'', '(', ')', '+', ',', '-', '.', '/', ':', '=', '?':
		return true
	}
	return false
}

func (k StringKind) runeAllowed(r rune) bool {
	switch k {
	case UTF8String:
		return true
	case NumericString:
		return r == ' ' || (r >= '0' && r <= '9')
	case PrintableString:
		return printableRune(r)
	case IA5String:
		return r <= 127
	case VisibleString:
		return r >= 32 && r <= 126
	case BMPString:
		return r <= 0xFFFF && (r < 0xD800 || r > 0xDFFF)
	case GeneralString:
		return r <= 255
	}
	return false
}

// Validate checks every character against the type's alphabet.
func (k StringKind) Validate(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s: invalid utf-8: %w", k, ErrCharset)
	}
	for i, r := range s {
		if !k.runeAllowed(r) {
			return fmt.Errorf("%s: character %q at %d: %w", k, r, i, ErrCharset)
		}
	}
	return nil
}

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// ContentBytes returns the TLV content octets for the string:
// UTF-16BE for BMPString, the raw bytes otherwise.
func (k StringKind) ContentBytes(s string) ([]byte, error) {
	if err := k.Validate(s); err != nil {
		return nil, err
	}
	if k == BMPString {
		return utf16be.NewEncoder().Bytes([]byte(s))
	}
	return []byte(s), nil
}

// FromContent reconstructs the string from TLV content octets,
// validating the alphabet.
func (k StringKind) FromContent(data []byte) (string, error) {
	var s string
	if k == BMPString {
		if len(data)%2 != 0 {
			return "", fmt.Errorf("BMPString: odd content length: %w", ErrLengthMismatch)
		}
		decoded, err := utf16be.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("BMPString: %w: %w", ErrCharset, err)
		}
		s = string(decoded)
	} else {
		s = string(data)
	}
	if err := k.Validate(s); err != nil {
		return "", err
	}
	return s, nil
}

// KnownMultiplier reports whether the packed rules encode this type
// character by character in a fixed bit width.
func (k StringKind) KnownMultiplier() bool {
	switch k {
	case NumericString, PrintableString, IA5String, VisibleString, BMPString:
		return true
	}
	return false
}

// alphabetSize returns N, the number of characters in the effective
// alphabet, and the largest associated value ub.
func (k StringKind) alphabetSize() (n int, ub uint64) {
	switch k {
	case NumericString:
		return len(numericAlphabet), 57
	case PrintableString:
		return 74, 122
	case IA5String:
		return 128, 127
	case VisibleString:
		return 95, 126
	case BMPString:
		return 1 << 16, 0xFFFF
	}
	return 0, 0
}

// CharWidth returns the packed bits per character: the minimum width
// for the alphabet size, rounded up to a power of two when aligned.
func (k StringKind) CharWidth(aligned bool) int {
	n, _ := k.alphabetSize()
	if n == 0 {
		return 0
	}
	b := bits.Len64(uint64(n - 1))
	if !aligned {
		return b
	}
	b2 := 1
	for b2 < b {
		b2 <<= 1
	}
	return b2
}

// compacted reports whether character values are remapped to dense
// indices because the natural values do not fit the packed width.
func (k StringKind) compacted(width int) bool {
	_, ub := k.alphabetSize()
	return ub > 1<<uint(width)-1
}

// CharValue maps a character to its packed value for the given width.
func (k StringKind) CharValue(r rune, width int) (uint64, error) {
	if !k.runeAllowed(r) {
		return 0, fmt.Errorf("%s: character %q: %w", k, r, ErrCharset)
	}
	if k.compacted(width) {
		// Only NumericString compacts in practice: its values span up
		// to 57 but the alphabet needs four bits.
		if r == ' ' {
			return 0, nil
		}
		return uint64(r-'0') + 1, nil
	}
	return uint64(r), nil
}

// CharFromValue maps a packed value back to its character.
func (k StringKind) CharFromValue(v uint64, width int) (rune, error) {
	if k.compacted(width) {
		if v >= uint64(len(numericAlphabet)) {
			return 0, fmt.Errorf("%s: value %d: %w", k, v, ErrCharset)
		}
		return rune(numericAlphabet[v]), nil
	}
	r := rune(v)
	if v > 0x10FFFF || !k.runeAllowed(r) {
		return 0, fmt.Errorf("%s: value %d: %w", k, v, ErrCharset)
	}
	return r, nil
}
