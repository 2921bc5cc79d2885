package asn1kit

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bitgrove/asn1kit/lib/asn1"
	"github.com/bitgrove/asn1kit/lib/bitstream"
)

// report exercises the schema surface end to end: a constrained
// integer, an optional string, an untagged choice and an extension
// addition.
var reportChoice = asn1.ChoiceSpec{
	Alternatives: []asn1.Field{
		{Name: "count", Tag: asn1.Context(0)},
		{Name: "armed", Tag: asn1.Context(1)},
	},
}

var reportSpec = asn1.SequenceSpec{
	Fields: []asn1.Field{
		{Name: "serial", Tag: asn1.TagOfInteger},
		{Name: "label", Tag: asn1.Universal(asn1.TagUTF8String), Optional: true},
		{Name: "payload", Choice: &reportChoice},
	},
	Extensions: []asn1.Field{
		{Name: "priority", Tag: asn1.TagOfInteger, Optional: true},
	},
	Extensible: true,
}

type report struct {
	serial   int64
	label    string
	hasLabel bool
	useFlag  bool
	count    int64
	armed    bool
	priority int64
	hasPrio  bool
}

func (r *report) Encode(e asn1.Encoder) error {
	present := []bool{true, r.hasLabel, true, r.hasPrio}
	return e.EncodeSequence(asn1.TagOfSequence, reportSpec, present, func(f asn1.Encoder, i int) error {
		switch i {
		case 0:
			return f.EncodeInteger(asn1.TagOfInteger, asn1.ValueRange(0, 4095), big.NewInt(r.serial))
		case 1:
			return f.EncodeString(asn1.Universal(asn1.TagUTF8String), asn1.UTF8String, asn1.None, r.label)
		case 2:
			idx := 0
			if r.useFlag {
				idx = 1
			}
			return f.EncodeChoice(asn1.NoTag, reportChoice, idx, func(v asn1.Encoder) error {
				if r.useFlag {
					return v.EncodeBool(asn1.Context(1), r.armed)
				}
				return v.EncodeInteger(asn1.Context(0), asn1.None, big.NewInt(r.count))
			})
		default:
			return f.EncodeInteger(asn1.TagOfInteger, asn1.None, big.NewInt(r.priority))
		}
	})
}

func (r *report) Decode(d asn1.Decoder) error {
	return d.DecodeSequence(asn1.TagOfSequence, reportSpec, func(f asn1.Decoder, i int) error {
		switch i {
		case 0:
			v, err := f.DecodeInteger(asn1.TagOfInteger, asn1.ValueRange(0, 4095))
			if err != nil {
				return err
			}
			r.serial = v.Int64()
		case 1:
			s, err := f.DecodeString(asn1.Universal(asn1.TagUTF8String), asn1.UTF8String, asn1.None)
			if err != nil {
				return err
			}
			r.label, r.hasLabel = s, true
		case 2:
			return f.DecodeChoice(asn1.NoTag, reportChoice, func(v asn1.Decoder, alt int) error {
				if alt == 1 {
					b, err := v.DecodeBool(asn1.Context(1))
					if err != nil {
						return err
					}
					r.useFlag, r.armed = true, b
					return nil
				}
				n, err := v.DecodeInteger(asn1.Context(0), asn1.None)
				if err != nil {
					return err
				}
				r.count = n.Int64()
				return nil
			})
		default:
			v, err := f.DecodeInteger(asn1.TagOfInteger, asn1.None)
			if err != nil {
				return err
			}
			r.priority, r.hasPrio = v.Int64(), true
		}
		return nil
	})
}

var allRuleSets = []RuleSet{BER, CER, DER, PER, UPER}

func TestRoundTripAllRuleSets(t *testing.T) {
	cases := []report{
		{serial: 5, useFlag: true, armed: true},
		{serial: 4095, label: "north tower", hasLabel: true, count: -17},
		{serial: 0, count: 1000000},
		{serial: 9, label: "x", hasLabel: true, useFlag: true, priority: 3, hasPrio: true},
	}
	for _, rs := range allRuleSets {
		for _, in := range cases {
			data, err := Marshal(rs, &in)
			if err != nil {
				t.Fatalf("%v: Marshal(%+v) failed: %v", rs, in, err)
			}
			var out report
			if err := Unmarshal(rs, data, &out); err != nil {
				t.Fatalf("%v: Unmarshal(%x) failed: %v", rs, data, err)
			}
			if diff := cmp.Diff(in, out, cmp.AllowUnexported(report{})); diff != "" {
				t.Errorf("%v round trip mismatch (-want +got):\n%s", rs, diff)
			}
		}
	}
}

func TestKnownVectors(t *testing.T) {
	in := report{serial: 5, useFlag: true, armed: true}

	der, err := Marshal(DER, &in)
	if err != nil {
		t.Fatalf("Marshal DER failed: %v", err)
	}
	wantDER := []byte{0x30, 0x06, 0x02, 0x01, 0x05, 0x81, 0x01, 0xFF}
	if !bytes.Equal(der, wantDER) {
		t.Errorf("DER = %x, want %x", der, wantDER)
	}

	uper, err := Marshal(UPER, &in)
	if err != nil {
		t.Fatalf("Marshal UPER failed: %v", err)
	}
	// ext=0, label absent, 12-bit serial, 1-bit index, 1-bit value.
	wantUPER := []byte{0x00, 0x17}
	if !bytes.Equal(uper, wantUPER) {
		t.Errorf("UPER = %x, want %x", uper, wantUPER)
	}
}

func TestCanonicalDeterminism(t *testing.T) {
	in := report{serial: 100, label: "pump", hasLabel: true, count: 2}
	for _, rs := range []RuleSet{CER, DER} {
		first, err := Marshal(rs, &in)
		if err != nil {
			t.Fatalf("%v: Marshal failed: %v", rs, err)
		}
		second, err := Marshal(rs, &in)
		if err != nil {
			t.Fatalf("%v: Marshal failed: %v", rs, err)
		}
		if !bytes.Equal(first, second) {
			t.Errorf("%v produced differing encodings: %x vs %x", rs, first, second)
		}
	}

	// The canonical refinements frame the same value differently: CER
	// uses indefinite lengths on constructed types, DER never does.
	der, _ := Marshal(DER, &in)
	cer, _ := Marshal(CER, &in)
	if bytes.Equal(der, cer) {
		t.Error("DER and CER encodings should differ in framing")
	}
	if cer[1] != 0x80 {
		t.Errorf("CER outer length = %#x, want indefinite 0x80", cer[1])
	}
}

func TestTruncatedInput(t *testing.T) {
	in := report{serial: 5, useFlag: true, armed: true}
	der, err := Marshal(DER, &in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out report
	if err := Unmarshal(DER, der[:len(der)-2], &out); !errors.Is(err, asn1.ErrTruncated) {
		t.Errorf("DER truncation error = %v, want ErrTruncated", err)
	}

	uper, err := Marshal(UPER, &in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := Unmarshal(UPER, uper[:1], &out); !errors.Is(err, bitstream.ErrUnderflow) {
		t.Errorf("UPER truncation error = %v, want ErrUnderflow", err)
	}
}

func TestMaxMessageSize(t *testing.T) {
	in := report{serial: 5, useFlag: true, armed: true}
	der, err := Marshal(DER, &in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out report
	opts := Options{MaxDepth: 64, MaxMessageSize: 4}
	if err := UnmarshalWith(DER, der, &out, opts); !errors.Is(err, asn1.ErrLengthMismatch) {
		t.Errorf("oversize error = %v, want ErrLengthMismatch", err)
	}
	opts.MaxMessageSize = len(der)
	if err := UnmarshalWith(DER, der, &out, opts); err != nil {
		t.Errorf("at-limit decode failed: %v", err)
	}
}

func TestUnknownRuleSet(t *testing.T) {
	in := report{serial: 1, useFlag: true}
	if _, err := Marshal(RuleSet(9), &in); !errors.Is(err, asn1.ErrUnsupportedVariant) {
		t.Errorf("Marshal error = %v, want ErrUnsupportedVariant", err)
	}
	var out report
	if err := Unmarshal(RuleSet(9), nil, &out); !errors.Is(err, asn1.ErrUnsupportedVariant) {
		t.Errorf("Unmarshal error = %v, want ErrUnsupportedVariant", err)
	}
}

func TestRuleSetNames(t *testing.T) {
	names := map[RuleSet]string{BER: "BER", CER: "CER", DER: "DER", PER: "PER", UPER: "UPER"}
	for rs, want := range names {
		if rs.String() != want {
			t.Errorf("String() = %q, want %q", rs.String(), want)
		}
	}
	if RuleSet(9).String() != "RuleSet(9)" {
		t.Errorf("unknown String() = %q", RuleSet(9).String())
	}
	if BER.Canonical() || PER.Canonical() || UPER.Canonical() {
		t.Error("only CER and DER are canonical")
	}
	if !CER.Canonical() || !DER.Canonical() {
		t.Error("CER and DER must be canonical")
	}
}
