package asn1

import (
	"bytes"
	"errors"
	"testing"
)

func TestStringKindValidate(t *testing.T) {
	test := func(kind StringKind, s string, ok bool, description string) {
		t.Run(description, func(t *testing.T) {
			err := kind.Validate(s)
			if ok && err != nil {
				t.Errorf("Validate(%q) failed: %v", s, err)
			}
			if !ok && !errors.Is(err, ErrCharset) {
				t.Errorf("Validate(%q) error = %v, want ErrCharset", s, err)
			}
		})
	}
	test(NumericString, "123 456", true, "digits and space are numeric")
	test(NumericString, "12a", false, "letters are not numeric")
	test(PrintableString, "Able was I (ere)", true, "printable subset")
	test(PrintableString, "semi;colon", false, "semicolon is not printable")
	test(IA5String, "ascii only\n", true, "all of ascii is ia5")
	test(IA5String, "héllo", false, "accents are not ia5")
	test(VisibleString, "no control", true, "visible range")
	test(VisibleString, "tab\there", false, "control characters are not visible")
	test(BMPString, "基本多文種", true, "basic multilingual plane")
	test(BMPString, "beyond \U0001F600", false, "astral plane is outside bmp")
	test(UTF8String, "anything at all \U0001F600", true, "utf8 takes everything")
}

func TestBMPContentBytes(t *testing.T) {
	content, err := BMPString.ContentBytes("aé")
	if err != nil {
		t.Fatalf("ContentBytes failed: %v", err)
	}
	if !bytes.Equal(content, []byte{0x00, 0x61, 0x00, 0xE9}) {
		t.Errorf("ContentBytes = %x, want 006100e9", content)
	}
	back, err := BMPString.FromContent(content)
	if err != nil {
		t.Fatalf("FromContent failed: %v", err)
	}
	if back != "aé" {
		t.Errorf("FromContent = %q", back)
	}

	if _, err := BMPString.FromContent([]byte{0x00}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("odd length error = %v, want ErrLengthMismatch", err)
	}
}

func TestCharWidth(t *testing.T) {
	test := func(kind StringKind, aligned bool, expected int, description string) {
		t.Run(description, func(t *testing.T) {
			if got := kind.CharWidth(aligned); got != expected {
				t.Errorf("CharWidth = %d, want %d", got, expected)
			}
		})
	}
	test(NumericString, false, 4, "numeric packs to 4 bits")
	test(NumericString, true, 4, "numeric aligned stays 4 bits")
	test(IA5String, false, 7, "ia5 packs to 7 bits")
	test(IA5String, true, 8, "ia5 aligned rounds to 8 bits")
	test(PrintableString, false, 7, "printable packs to 7 bits")
	test(PrintableString, true, 8, "printable aligned rounds to 8 bits")
	test(VisibleString, false, 7, "visible packs to 7 bits")
	test(BMPString, false, 16, "bmp packs to 16 bits")
	test(BMPString, true, 16, "bmp aligned stays 16 bits")
}

func TestNumericCompaction(t *testing.T) {
	width := NumericString.CharWidth(false)
	pairs := map[rune]uint64{' ': 0, '0': 1, '5': 6, '9': 10}
	for r, want := range pairs {
		v, err := NumericString.CharValue(r, width)
		if err != nil {
			t.Fatalf("CharValue(%q) failed: %v", r, err)
		}
		if v != want {
			t.Errorf("CharValue(%q) = %d, want %d", r, v, want)
		}
		back, err := NumericString.CharFromValue(v, width)
		if err != nil || back != r {
			t.Errorf("CharFromValue(%d) = %q, %v, want %q", v, back, err, r)
		}
	}
	if _, err := NumericString.CharFromValue(11, width); !errors.Is(err, ErrCharset) {
		t.Errorf("value past alphabet error = %v, want ErrCharset", err)
	}
}

func TestIA5CharValues(t *testing.T) {
	width := IA5String.CharWidth(false)
	v, err := IA5String.CharValue('A', width)
	if err != nil || v != 65 {
		t.Errorf("CharValue('A') = %d, %v, want 65", v, err)
	}
	r, err := IA5String.CharFromValue(65, width)
	if err != nil || r != 'A' {
		t.Errorf("CharFromValue(65) = %q, %v, want A", r, err)
	}
}

func TestKnownMultiplier(t *testing.T) {
	if UTF8String.KnownMultiplier() {
		t.Error("utf8 must not be a known-multiplier type")
	}
	if GeneralString.KnownMultiplier() {
		t.Error("general string must not be a known-multiplier type")
	}
	for _, k := range []StringKind{NumericString, PrintableString, IA5String, VisibleString, BMPString} {
		if !k.KnownMultiplier() {
			t.Errorf("%v should be a known-multiplier type", k)
		}
	}
}
