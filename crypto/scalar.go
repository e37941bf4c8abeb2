package crypto

import (
	"encoding/binary"
	"errors"

	"git.gammaspectra.live/WATTx/privacy/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Scalar An integer modulo the secp256k1 group order
type Scalar = secp256k1.ModNScalar

var ErrInvalidScalar = errors.New("invalid scalar")

//nolint:recvcheck
type PrivateKeyBytes [PrivateKeySize]byte

var ZeroPrivateKeyBytes PrivateKeyBytes

// Scalar Parses the bytes as a valid (nonzero, canonical) scalar
func (k *PrivateKeyBytes) Scalar() (*Scalar, error) {
	return ScalarFromBytes(k[:])
}

func (k PrivateKeyBytes) String() string {
	return types.Bytes(k[:]).String()
}

func (k PrivateKeyBytes) MarshalJSON() ([]byte, error) {
	return types.AppendHexJSON(nil, k[:]), nil
}

func (k *PrivateKeyBytes) UnmarshalJSON(b []byte) error {
	return types.DecodeHexJSON(k[:], b)
}

// ScalarFromCanonicalBytes Parses a 32-byte big-endian scalar, rejecting values not below the group order.
// Zero is accepted.
func ScalarFromCanonicalBytes(buf []byte) (*Scalar, error) {
	if len(buf) != PrivateKeySize {
		return nil, ErrInvalidScalar
	}
	var s Scalar
	if overflow := s.SetByteSlice(buf); overflow {
		return nil, ErrInvalidScalar
	}
	return &s, nil
}

// ScalarFromBytes Parses a valid scalar: canonical and nonzero
func ScalarFromBytes(buf []byte) (*Scalar, error) {
	s, err := ScalarFromCanonicalBytes(buf)
	if err != nil {
		return nil, err
	}
	if s.IsZero() {
		return nil, ErrInvalidScalar
	}
	return s, nil
}

func ScalarFromUint64(dst *Scalar, v uint64) *Scalar {
	var buf [PrivateKeySize]byte
	binary.BigEndian.PutUint64(buf[PrivateKeySize-8:], v)
	dst.SetBytes(&buf)
	return dst
}

func ScalarBytes(s *Scalar) PrivateKeyBytes {
	return s.Bytes()
}

// ScalarInvert Sets dst to the modular inverse of s. s must not be zero.
func ScalarInvert(dst, s *Scalar) *Scalar {
	return dst.InverseValNonConst(s)
}

// ScalarSubtract dst = a - b
func ScalarSubtract(dst, a, b *Scalar) *Scalar {
	var negB Scalar
	negB.NegateVal(b)
	return dst.Add2(a, &negB)
}

// ScalarMulAdd dst = a * b + c
func ScalarMulAdd(dst, a, b, c *Scalar) *Scalar {
	var t Scalar
	t.Mul2(a, b)
	return dst.Add2(&t, c)
}
