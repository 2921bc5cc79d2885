package asn1

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestEncodeRealContents(t *testing.T) {
	test := func(value float64, expected []byte, description string) {
		t.Run(description, func(t *testing.T) {
			got := EncodeRealContents(value)
			if !bytes.Equal(got, expected) {
				t.Errorf("EncodeRealContents(%g) = %x, want %x", value, got, expected)
			}
		})
	}
	test(0.0, nil, "plus zero is empty")
	test(math.Copysign(0, -1), []byte{0x43}, "minus zero")
	test(math.Inf(1), []byte{0x40}, "plus infinity")
	test(math.Inf(-1), []byte{0x41}, "minus infinity")
	test(math.NaN(), []byte{0x42}, "not a number")
	test(1.0, []byte{0x80, 0x00, 0x01}, "one")
	test(-1.0, []byte{0xC0, 0x00, 0x01}, "minus one")
	test(0.5, []byte{0x80, 0xFF, 0x01}, "half has exponent -1")
	test(10.0, []byte{0x80, 0x01, 0x05}, "ten is 5*2^1")
	test(3.0, []byte{0x80, 0x00, 0x03}, "three")
}

func TestRealContentsRoundTrip(t *testing.T) {
	values := []float64{
		0.0, 1.0, -1.0, 0.5, -0.5, 3.0, 10.0, 0.1, 3.141592653589793,
		1e10, -2.5e-3, 1.5e300, -1.5e-300,
		math.MaxFloat64, math.SmallestNonzeroFloat64,
		math.Inf(1), math.Inf(-1),
	}
	for _, v := range values {
		got, err := DecodeRealContents(EncodeRealContents(v))
		if err != nil {
			t.Fatalf("%g: decode failed: %v", v, err)
		}
		if got != v {
			t.Errorf("%g: round trip produced %g", v, got)
		}
	}

	if got, err := DecodeRealContents(EncodeRealContents(math.NaN())); err != nil || !math.IsNaN(got) {
		t.Errorf("NaN round trip = %g, %v", got, err)
	}
	neg := math.Copysign(0, -1)
	if got, err := DecodeRealContents(EncodeRealContents(neg)); err != nil || !math.Signbit(got) || got != 0 {
		t.Errorf("minus zero round trip = %g, %v", got, err)
	}
}

func TestDecodeRealBinaryBases(t *testing.T) {
	// Base 16 with exponent 1: 1 * 16^1.
	if got, err := DecodeRealContents([]byte{0xA0, 0x01, 0x01}); err != nil || got != 16.0 {
		t.Errorf("base-16 decode = %g, %v, want 16", got, err)
	}
	// Base 8 with exponent 1: 1 * 8^1.
	if got, err := DecodeRealContents([]byte{0x90, 0x01, 0x01}); err != nil || got != 8.0 {
		t.Errorf("base-8 decode = %g, %v, want 8", got, err)
	}
	// Scaling factor F=1 doubles the mantissa.
	if got, err := DecodeRealContents([]byte{0x84, 0x00, 0x01}); err != nil || got != 2.0 {
		t.Errorf("scaled decode = %g, %v, want 2", got, err)
	}
}

func TestDecodeRealDecimalForms(t *testing.T) {
	test := func(contents []byte, expected float64, description string) {
		t.Run(description, func(t *testing.T) {
			got, err := DecodeRealContents(contents)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if got != expected {
				t.Errorf("decode = %g, want %g", got, expected)
			}
		})
	}
	test([]byte{0x01, ' ', '4', '2'}, 42.0, "NR1 integer form")
	test([]byte{0x02, '3', '.', '1', '4'}, 3.14, "NR2 fixed point")
	test([]byte{0x02, '3', ',', '1', '4'}, 3.14, "NR2 comma separator")
	test([]byte{0x03, '1', '5', 'E', '1'}, 150.0, "NR3 scientific")
	test([]byte{0x03, '-', '1', '.', '5', 'E', '2'}, -150.0, "NR3 negative")
}

func TestDecodeRealRejects(t *testing.T) {
	test := func(contents []byte, want error, description string) {
		t.Run(description, func(t *testing.T) {
			_, err := DecodeRealContents(contents)
			if !errors.Is(err, want) {
				t.Errorf("error = %v, want %v", err, want)
			}
		})
	}
	test([]byte{0x40, 0x00}, ErrLengthMismatch, "special value with trailing octet")
	test([]byte{0x44}, ErrUnsupportedVariant, "unassigned special octet")
	test([]byte{0x04, '1'}, ErrUnsupportedVariant, "unassigned decimal form")
	test([]byte{0xB0, 0x00, 0x01}, ErrUnsupportedVariant, "reserved base")
	test([]byte{0x80}, ErrTruncated, "missing exponent")
	test([]byte{0x83, 0x02, 0x00}, ErrTruncated, "exponent longer than content")
	test(append([]byte{0x83, 0x09}, make([]byte, 10)...), ErrUnsupportedVariant, "nine-octet exponent")
	test([]byte{0x03, 'x'}, ErrUnsupportedVariant, "garbage decimal body")
}
