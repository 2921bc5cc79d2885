package asn1

import "math/big"

// EncodeIntegerContents builds the minimal two's-complement octets of
// v: the shortest field whose leading nine bits are not all equal.
// The TLV rules frame these octets directly; the packed rules prefix
// them with a length determinant on the unconstrained path.
func EncodeIntegerContents(v *big.Int) []byte {
	if v.Sign() == 0 {
		return []byte{0x00}
	}
	if v.Sign() > 0 {
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			return append([]byte{0x00}, b...)
		}
		return b
	}
	n := 1
	for {
		min := new(big.Int).Lsh(big.NewInt(-1), uint(8*n-1))
		if v.Cmp(min) >= 0 {
			break
		}
		n++
	}
	tc := new(big.Int).Add(v, new(big.Int).Lsh(big.NewInt(1), uint(8*n)))
	b := tc.Bytes()
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

// DecodeIntegerContents parses two's-complement octets, rejecting
// padded encodings whose leading nine bits are all equal.
func DecodeIntegerContents(contents []byte) (*big.Int, error) {
	if len(contents) == 0 {
		return nil, NewDecodeError(0, "empty integer content", ErrLengthMismatch)
	}
	if len(contents) > 1 {
		if (contents[0] == 0x00 && contents[1]&0x80 == 0) ||
			(contents[0] == 0xFF && contents[1]&0x80 != 0) {
			return nil, NewDecodeError(0, "padded integer", ErrNonCanonical)
		}
	}
	v := new(big.Int).SetBytes(contents)
	if contents[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(8*len(contents))))
	}
	return v, nil
}
