package ber

import (
	"bytes"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/bitgrove/asn1kit/lib/asn1"
)

func TestEncodeBoolean(t *testing.T) {
	enc := NewEncoder(DER)
	if err := enc.EncodeBool(asn1.TagOfBoolean, true); err != nil {
		t.Fatalf("EncodeBool failed: %v", err)
	}
	if err := enc.EncodeBool(asn1.TagOfBoolean, false); err != nil {
		t.Fatalf("EncodeBool failed: %v", err)
	}
	want := []byte{0x01, 0x01, 0xFF, 0x01, 0x01, 0x00}
	if !bytes.Equal(enc.Bytes(), want) {
		t.Errorf("Bytes = %x, want %x", enc.Bytes(), want)
	}
}

func TestEncodeInteger(t *testing.T) {
	test := func(value int64, expected []byte, description string) {
		t.Run(description, func(t *testing.T) {
			enc := NewEncoder(DER)
			if err := enc.EncodeInteger(asn1.TagOfInteger, asn1.None, big.NewInt(value)); err != nil {
				t.Fatalf("EncodeInteger failed: %v", err)
			}
			if !bytes.Equal(enc.Bytes(), expected) {
				t.Errorf("EncodeInteger(%d) = %x, want %x", value, enc.Bytes(), expected)
			}
		})
	}
	test(0, []byte{0x02, 0x01, 0x00}, "zero")
	test(127, []byte{0x02, 0x01, 0x7F}, "largest single octet")
	test(128, []byte{0x02, 0x02, 0x00, 0x80}, "128 needs a sign octet")
	test(256, []byte{0x02, 0x02, 0x01, 0x00}, "256")
	test(-1, []byte{0x02, 0x01, 0xFF}, "minus one")
	test(-128, []byte{0x02, 0x01, 0x80}, "smallest single octet")
	test(-129, []byte{0x02, 0x02, 0xFF, 0x7F}, "-129 needs two octets")
	test(65537, []byte{0x02, 0x03, 0x01, 0x00, 0x01}, "three octets")
}

func TestEncodeIntegerConstraint(t *testing.T) {
	enc := NewEncoder(DER)
	err := enc.EncodeInteger(asn1.TagOfInteger, asn1.ValueRange(0, 10), big.NewInt(11))
	if !errors.Is(err, asn1.ErrConstraintViolation) {
		t.Errorf("out-of-range error = %v, want ErrConstraintViolation", err)
	}
}

func TestEncodeObjectIdentifier(t *testing.T) {
	enc := NewEncoder(DER)
	if err := enc.EncodeObjectIdentifier(asn1.TagOfOID, asn1.MustOID("1.2.840.113549")); err != nil {
		t.Fatalf("EncodeObjectIdentifier failed: %v", err)
	}
	want := []byte{0x06, 0x06, 0x2A, 0x86, 0x48, 0x86, 0xF7, 0x0D}
	if !bytes.Equal(enc.Bytes(), want) {
		t.Errorf("Bytes = %x, want %x", enc.Bytes(), want)
	}
}

func TestEncodeNullAndOctetString(t *testing.T) {
	enc := NewEncoder(DER)
	if err := enc.EncodeNull(asn1.TagOfNull); err != nil {
		t.Fatalf("EncodeNull failed: %v", err)
	}
	if err := enc.EncodeOctetString(asn1.TagOfOctetString, asn1.None, []byte{0xDE, 0xAD}); err != nil {
		t.Fatalf("EncodeOctetString failed: %v", err)
	}
	want := []byte{0x05, 0x00, 0x04, 0x02, 0xDE, 0xAD}
	if !bytes.Equal(enc.Bytes(), want) {
		t.Errorf("Bytes = %x, want %x", enc.Bytes(), want)
	}
}

func TestEncodeBitString(t *testing.T) {
	// Canonical named-bit form drops trailing zeros when no size
	// constraint pins the length.
	padded, err := asn1.NewBitString([]byte{0xA0, 0x00}, 16)
	if err != nil {
		t.Fatalf("NewBitString failed: %v", err)
	}
	enc := NewEncoder(DER)
	if err := enc.EncodeBitString(asn1.TagOfBitString, asn1.None, padded); err != nil {
		t.Fatalf("EncodeBitString failed: %v", err)
	}
	want := []byte{0x03, 0x02, 0x05, 0xA0}
	if !bytes.Equal(enc.Bytes(), want) {
		t.Errorf("trimmed Bytes = %x, want %x", enc.Bytes(), want)
	}

	enc = NewEncoder(DER)
	if err := enc.EncodeBitString(asn1.TagOfBitString, asn1.SizeFixed(16), padded); err != nil {
		t.Fatalf("EncodeBitString failed: %v", err)
	}
	want = []byte{0x03, 0x03, 0x00, 0xA0, 0x00}
	if !bytes.Equal(enc.Bytes(), want) {
		t.Errorf("fixed-size Bytes = %x, want %x", enc.Bytes(), want)
	}
}

func TestEncodeLongFormLength(t *testing.T) {
	enc := NewEncoder(DER)
	if err := enc.EncodeOctetString(asn1.TagOfOctetString, asn1.None, make([]byte, 200)); err != nil {
		t.Fatalf("EncodeOctetString failed: %v", err)
	}
	got := enc.Bytes()
	if got[0] != 0x04 || got[1] != 0x81 || got[2] != 0xC8 {
		t.Errorf("header = %x, want 0481c8", got[:3])
	}
	if len(got) != 203 {
		t.Errorf("total length = %d, want 203", len(got))
	}
}

func TestEncodeHighTagNumber(t *testing.T) {
	enc := NewEncoder(DER)
	if err := enc.EncodeNull(asn1.Context(100)); err != nil {
		t.Fatalf("EncodeNull failed: %v", err)
	}
	want := []byte{0x9F, 0x64, 0x00}
	if !bytes.Equal(enc.Bytes(), want) {
		t.Errorf("Bytes = %x, want %x", enc.Bytes(), want)
	}
}

var pairSpec = asn1.SequenceSpec{
	Fields: []asn1.Field{
		{Name: "count", Tag: asn1.TagOfInteger},
		{Name: "ready", Tag: asn1.TagOfBoolean},
	},
}

func encodePair(e asn1.Encoder, count int64, ready bool) error {
	return e.EncodeSequence(asn1.TagOfSequence, pairSpec, []bool{true, true}, func(f asn1.Encoder, i int) error {
		switch i {
		case 0:
			return f.EncodeInteger(asn1.TagOfInteger, asn1.None, big.NewInt(count))
		default:
			return f.EncodeBool(asn1.TagOfBoolean, ready)
		}
	})
}

func TestEncodeSequence(t *testing.T) {
	enc := NewEncoder(DER)
	if err := encodePair(enc, 1, true); err != nil {
		t.Fatalf("sequence encode failed: %v", err)
	}
	want := []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x01, 0x01, 0xFF}
	if !bytes.Equal(enc.Bytes(), want) {
		t.Errorf("DER Bytes = %x, want %x", enc.Bytes(), want)
	}
}

func TestEncodeSequenceIndefiniteUnderCER(t *testing.T) {
	enc := NewEncoder(CER)
	if err := encodePair(enc, 1, true); err != nil {
		t.Fatalf("sequence encode failed: %v", err)
	}
	want := []byte{0x30, 0x80, 0x02, 0x01, 0x01, 0x01, 0x01, 0xFF, 0x00, 0x00}
	if !bytes.Equal(enc.Bytes(), want) {
		t.Errorf("CER Bytes = %x, want %x", enc.Bytes(), want)
	}
}

func TestEncodeMissingRequiredField(t *testing.T) {
	enc := NewEncoder(DER)
	err := enc.EncodeSequence(asn1.TagOfSequence, pairSpec, []bool{true, false}, func(f asn1.Encoder, i int) error {
		return f.EncodeInteger(asn1.TagOfInteger, asn1.None, big.NewInt(1))
	})
	if !errors.Is(err, asn1.ErrConstraintViolation) {
		t.Errorf("error = %v, want ErrConstraintViolation", err)
	}
	var fieldErr *asn1.FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Path != "ready" {
		t.Errorf("field path = %v, want ready", err)
	}
}

func TestEncodeSetSorting(t *testing.T) {
	spec := asn1.SequenceSpec{
		Fields: []asn1.Field{
			{Name: "b", Tag: asn1.Context(1)},
			{Name: "a", Tag: asn1.Context(0)},
		},
	}
	encode := func(variant Variant) []byte {
		enc := NewEncoder(variant)
		err := enc.EncodeSet(asn1.TagOfSet, spec, []bool{true, true}, func(f asn1.Encoder, i int) error {
			if i == 0 {
				return f.EncodeBool(asn1.Context(1), true)
			}
			return f.EncodeInteger(asn1.Context(0), asn1.None, big.NewInt(5))
		})
		if err != nil {
			t.Fatalf("set encode failed: %v", err)
		}
		return enc.Bytes()
	}

	der := encode(DER)
	wantSorted := []byte{0x31, 0x06, 0x80, 0x01, 0x05, 0x81, 0x01, 0xFF}
	if !bytes.Equal(der, wantSorted) {
		t.Errorf("DER set = %x, want %x", der, wantSorted)
	}

	berBytes := encode(BER)
	wantDeclared := []byte{0x31, 0x06, 0x81, 0x01, 0xFF, 0x80, 0x01, 0x05}
	if !bytes.Equal(berBytes, wantDeclared) {
		t.Errorf("BER set = %x, want %x", berBytes, wantDeclared)
	}
}

func TestEncodeSetOfSorting(t *testing.T) {
	enc := NewEncoder(DER)
	values := []int64{3, 1, 2}
	err := enc.EncodeSetOf(asn1.TagOfSet, asn1.None, len(values), func(f asn1.Encoder, i int) error {
		return f.EncodeInteger(asn1.TagOfInteger, asn1.None, big.NewInt(values[i]))
	})
	if err != nil {
		t.Fatalf("set-of encode failed: %v", err)
	}
	want := []byte{0x31, 0x09, 0x02, 0x01, 0x01, 0x02, 0x01, 0x02, 0x02, 0x01, 0x03}
	if !bytes.Equal(enc.Bytes(), want) {
		t.Errorf("DER set-of = %x, want %x", enc.Bytes(), want)
	}
}

func TestEncodeExplicit(t *testing.T) {
	enc := NewEncoder(DER)
	err := enc.EncodeExplicit(asn1.Context(0), func(inner asn1.Encoder) error {
		return inner.EncodeInteger(asn1.TagOfInteger, asn1.None, big.NewInt(7))
	})
	if err != nil {
		t.Fatalf("explicit encode failed: %v", err)
	}
	want := []byte{0xA0, 0x03, 0x02, 0x01, 0x07}
	if !bytes.Equal(enc.Bytes(), want) {
		t.Errorf("Bytes = %x, want %x", enc.Bytes(), want)
	}
}

func TestEncodeTime(t *testing.T) {
	enc := NewEncoder(DER)
	at := time.Date(2026, 8, 25, 12, 34, 56, 0, time.UTC)
	if err := enc.EncodeTime(asn1.TagOfUTCTime, asn1.UTCTime, at); err != nil {
		t.Fatalf("EncodeTime failed: %v", err)
	}
	want := append([]byte{0x17, 0x0D}, []byte("260825123456Z")...)
	if !bytes.Equal(enc.Bytes(), want) {
		t.Errorf("Bytes = %x, want %x", enc.Bytes(), want)
	}
}
