package asn1

import (
	"fmt"
	"strings"
	"time"
)

// TimeKind selects between the two universal time types.
type TimeKind int

const (
	UTCTime TimeKind = iota
	GeneralizedTime
)

func (k TimeKind) String() string {
	if k == UTCTime {
		return "UTCTime"
	}
	return "GeneralizedTime"
}

// Tag returns the universal tag for the time type.
func (k TimeKind) Tag() Tag {
	if k == UTCTime {
		return Universal(TagUTCTime)
	}
	return Universal(TagGeneralizedTime)
}

// Canonical layouts: UTC, seconds always present, trailing Z. The
// canonical rule sets accept nothing else; X.690 11.7 and 11.8.
const (
	utcCanonicalLayout = "060102150405Z"
	genCanonicalLayout = "20060102150405Z"
)

// Relaxed layouts the non-canonical TLV rules tolerate on decode, in
// trial order.
var (
	utcLayouts = []string{
		utcCanonicalLayout,
		"0601021504Z",
		"060102150405-0700",
		"0601021504-0700",
	}
	genLayouts = []string{
		genCanonicalLayout,
		"20060102150405.999999999Z",
		"20060102150405",
		"20060102150405-0700",
		"200601021504Z",
		"2006010215Z",
	}
)

// CanonicalContent formats t as the canonical character content for
// the time type: UTC, whole seconds, Z suffix.
func (k TimeKind) CanonicalContent(t time.Time) ([]byte, error) {
	u := t.UTC()
	if k == UTCTime {
		y := u.Year()
		if y < 1950 || y > 2049 {
			return nil, fmt.Errorf("UTCTime year %d outside 1950..2049: %w", y, ErrConstraintViolation)
		}
		return []byte(u.Format(utcCanonicalLayout)), nil
	}
	// GeneralizedTime keeps fractional seconds when present, without
	// trailing zeros.
	if u.Nanosecond() != 0 {
		s := u.Format("20060102150405.999999999")
		return []byte(strings.TrimRight(s, "0") + "Z"), nil
	}
	return []byte(u.Format(genCanonicalLayout)), nil
}

// ParseContent parses time content octets. With strict set, only the
// canonical form is accepted; otherwise local offsets and missing
// seconds are tolerated as the basic TLV rules allow.
func (k TimeKind) ParseContent(data []byte, strict bool) (time.Time, error) {
	s := string(data)
	layouts := genLayouts
	if k == UTCTime {
		layouts = utcLayouts
	}
	if strict {
		layouts = layouts[:1]
		if k == GeneralizedTime && strings.Contains(s, ".") {
			if strings.HasSuffix(s, "0Z") || strings.HasSuffix(s, ".Z") {
				return time.Time{}, fmt.Errorf("%s %q: trailing zeros in fraction: %w", k, s, ErrNonCanonical)
			}
			layouts = []string{"20060102150405.999999999Z"}
		}
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			// X.690 47.3: a two-digit year of 50..99 is 1950..1999, but
			// time.Parse places 50..68 in 2050..2068.
			if k == UTCTime && t.Year() >= 2050 {
				t = t.AddDate(-100, 0, 0)
			}
			return t, nil
		}
	}
	if strict {
		return time.Time{}, fmt.Errorf("%s %q: not canonical: %w", k, s, ErrNonCanonical)
	}
	return time.Time{}, fmt.Errorf("%s %q: unparseable: %w", k, s, ErrCharset)
}
