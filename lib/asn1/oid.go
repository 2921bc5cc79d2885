package asn1

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ObjectIdentifier is an ordered sequence of arcs. The first arc is
// 0, 1 or 2; when it is 0 or 1 the second arc is below 40, per the
// fixed-root convention that folds the first two arcs into one value.
type ObjectIdentifier []uint64

// Valid reports whether the arc sequence is encodable.
func (oid ObjectIdentifier) Valid() bool {
	if len(oid) < 2 {
		return false
	}
	if oid[0] > 2 {
		return false
	}
	if oid[0] < 2 && oid[1] >= 40 {
		return false
	}
	return true
}

// Equal reports arc-wise equality.
func (oid ObjectIdentifier) Equal(o ObjectIdentifier) bool {
	if len(oid) != len(o) {
		return false
	}
	for i := range oid {
		if oid[i] != o[i] {
			return false
		}
	}
	return true
}

func (oid ObjectIdentifier) String() string {
	parts := make([]string, len(oid))
	for i, arc := range oid {
		parts[i] = strconv.FormatUint(arc, 10)
	}
	return strings.Join(parts, ".")
}

// ParseOID parses dotted decimal notation ("1.2.840.113549").
func ParseOID(s string) (ObjectIdentifier, error) {
	parts := strings.Split(s, ".")
	oid := make(ObjectIdentifier, 0, len(parts))
	for _, p := range parts {
		arc, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("asn1: bad oid arc %q: %w", p, err)
		}
		oid = append(oid, arc)
	}
	if !oid.Valid() {
		return nil, fmt.Errorf("asn1: invalid oid %q: %w", s, ErrConstraintViolation)
	}
	return oid, nil
}

// MustOID is ParseOID for registry literals; panics on a bad constant.
func MustOID(s string) ObjectIdentifier {
	oid, err := ParseOID(s)
	if err != nil {
		panic(err)
	}
	return oid
}

// appendBase128 appends v as a base-128 variable-length integer, high
// bit of each octet set except the last.
func appendBase128(dst []byte, v uint64) []byte {
	n := 1
	for x := v >> 7; x > 0; x >>= 7 {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		b := byte(v>>(uint(i)*7)) & 0x7F
		if i > 0 {
			b |= 0x80
		}
		dst = append(dst, b)
	}
	return dst
}

// ContentBytes returns the content octets of the object identifier:
// the first two arcs folded as arc0*40+arc1, every value in base-128.
// Both rule-set families carry these same octets, the TLV family
// framed by tag and length, the packed family by a length determinant.
func (oid ObjectIdentifier) ContentBytes() ([]byte, error) {
	if !oid.Valid() {
		return nil, fmt.Errorf("asn1: invalid oid %v: %w", []uint64(oid), ErrConstraintViolation)
	}
	out := appendBase128(nil, oid[0]*40+oid[1])
	for _, arc := range oid[2:] {
		out = appendBase128(out, arc)
	}
	return out, nil
}

// ParseOIDContent reconstructs the arc sequence from content octets.
// It rejects empty content, unterminated continuations, non-minimal
// leading 0x80 octets, and a folded first value that is malformed.
func ParseOIDContent(data []byte) (ObjectIdentifier, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("asn1: empty oid content: %w", ErrTruncated)
	}
	var (
		oid   ObjectIdentifier
		v     uint64
		mid   bool
		first = true
	)
	for i, b := range data {
		if !mid && b == 0x80 {
			return nil, NewDecodeError(i, "non-minimal base-128 arc", ErrInvalidTag)
		}
		if v > 1<<57 {
			return nil, NewDecodeError(i, "oid arc overflow", ErrInvalidTag)
		}
		v = v<<7 | uint64(b&0x7F)
		mid = b&0x80 != 0
		if mid {
			continue
		}
		if first {
			first = false
			// Unfold arc0*40+arc1. Values of 80 and above belong to
			// the root arc 2, whose second arc is unbounded.
			switch {
			case v < 40:
				oid = append(oid, 0, v)
			case v < 80:
				oid = append(oid, 1, v-40)
			default:
				oid = append(oid, 2, v-80)
			}
		} else {
			oid = append(oid, v)
		}
		v = 0
	}
	if mid {
		return nil, fmt.Errorf("asn1: unterminated base-128 arc: %w", ErrTruncated)
	}
	return oid, nil
}

// wellKnownOIDs is the process-wide name registry: built once on first
// use, read-only afterwards, safe for unsynchronized concurrent reads.
var wellKnownOIDs = sync.OnceValue(func() map[string]string {
	return map[string]string{
		"1.2.840.113549.1.1.1":  "rsaEncryption",
		"1.2.840.113549.1.1.11": "sha256WithRSAEncryption",
		"1.2.840.10045.2.1":     "ecPublicKey",
		"1.2.840.10045.4.3.2":   "ecdsa-with-SHA256",
		"1.3.101.112":           "ed25519",
		"2.5.4.3":               "commonName",
		"2.5.4.6":               "countryName",
		"2.5.4.10":              "organizationName",
		"2.5.4.11":              "organizationalUnitName",
		"2.5.29.15":             "keyUsage",
		"2.5.29.17":             "subjectAltName",
		"2.5.29.19":             "basicConstraints",
		"2.16.840.1.101.3.4.2.1": "sha256",
		"1.3.6.1.5.5.7.3.1":     "serverAuth",
		"1.3.6.1.5.5.7.3.2":     "clientAuth",
	}
})

// Name returns the registered name for a well-known identifier, or
// the dotted form when unregistered.
func (oid ObjectIdentifier) Name() string {
	s := oid.String()
	if name, ok := wellKnownOIDs()[s]; ok {
		return name
	}
	return s
}
