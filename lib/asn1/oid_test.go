package asn1

import (
	"bytes"
	"errors"
	"testing"
)

func TestOIDContentBytes(t *testing.T) {
	test := func(oid ObjectIdentifier, expected []byte, description string) {
		t.Run(description, func(t *testing.T) {
			got, err := oid.ContentBytes()
			if err != nil {
				t.Fatalf("ContentBytes failed: %v", err)
			}
			if !bytes.Equal(got, expected) {
				t.Errorf("ContentBytes = %x, want %x", got, expected)
			}
		})
	}
	test(ObjectIdentifier{1, 2, 840, 113549}, []byte{0x2A, 0x86, 0x48, 0x86, 0xF7, 0x0D}, "rsadsi arc")
	test(ObjectIdentifier{2, 5, 4, 3}, []byte{0x55, 0x04, 0x03}, "commonName")
	test(ObjectIdentifier{0, 0}, []byte{0x00}, "smallest oid")
	test(ObjectIdentifier{2, 999, 3}, []byte{0x88, 0x37, 0x03}, "second arc above 39 under root 2")
	test(ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 1}, []byte{0x2B, 0x06, 0x01, 0x05, 0x05, 0x07, 0x03, 0x01}, "serverAuth")
}

func TestOIDContentRoundTrip(t *testing.T) {
	for _, s := range []string{
		"1.2.840.113549",
		"2.5.4.3",
		"0.0",
		"2.999.3",
		"1.3.6.1.4.1.311.21.20",
		"2.16.840.1.101.3.4.2.1",
	} {
		oid := MustOID(s)
		content, err := oid.ContentBytes()
		if err != nil {
			t.Fatalf("%s: ContentBytes failed: %v", s, err)
		}
		back, err := ParseOIDContent(content)
		if err != nil {
			t.Fatalf("%s: ParseOIDContent failed: %v", s, err)
		}
		if !back.Equal(oid) {
			t.Errorf("%s: round trip produced %v", s, back)
		}
	}
}

func TestParseOIDContentRejects(t *testing.T) {
	test := func(content []byte, want error, description string) {
		t.Run(description, func(t *testing.T) {
			_, err := ParseOIDContent(content)
			if !errors.Is(err, want) {
				t.Errorf("error = %v, want %v", err, want)
			}
		})
	}
	test(nil, ErrTruncated, "empty content")
	test([]byte{0x80, 0x01}, ErrInvalidTag, "padded leading octet")
	test([]byte{0x2A, 0x86}, ErrTruncated, "unterminated continuation")
	test([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x7F}, ErrInvalidTag, "arc overflow")
}

func TestOIDValid(t *testing.T) {
	if (ObjectIdentifier{1}).Valid() {
		t.Error("single arc should be invalid")
	}
	if (ObjectIdentifier{3, 1}).Valid() {
		t.Error("first arc above 2 should be invalid")
	}
	if (ObjectIdentifier{1, 40}).Valid() {
		t.Error("second arc 40 under root 1 should be invalid")
	}
	if !(ObjectIdentifier{2, 999}).Valid() {
		t.Error("second arc 999 under root 2 should be valid")
	}
}

func TestOIDName(t *testing.T) {
	if name := MustOID("1.2.840.113549.1.1.1").Name(); name != "rsaEncryption" {
		t.Errorf("Name = %q, want rsaEncryption", name)
	}
	if name := MustOID("1.2.3.4").Name(); name != "1.2.3.4" {
		t.Errorf("unregistered Name = %q, want dotted form", name)
	}
}
