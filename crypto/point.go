package crypto

import (
	"errors"
	"fmt"

	"git.gammaspectra.live/WATTx/privacy/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Point A secp256k1 group element in Jacobian coordinates. The zero value is the point at infinity.
type Point = secp256k1.JacobianPoint

var ErrPointAtInfinity = errors.New("point at infinity")
var ErrInvalidPoint = errors.New("invalid point encoding")

//nolint:recvcheck
type PublicKeyBytes [PublicKeySize]byte

var ZeroPublicKeyBytes PublicKeyBytes

// IsValid Checks the compressed encoding prefix only, it does not check the point is on the curve
func (k PublicKeyBytes) IsValid() bool {
	return k[0] == 0x02 || k[0] == 0x03
}

func (k PublicKeyBytes) IsZero() bool {
	return k == ZeroPublicKeyBytes
}

// Point Decodes into a curve point
func (k PublicKeyBytes) Point() (*Point, error) {
	return DecodeCompressedPoint(new(Point), k)
}

func (k PublicKeyBytes) Slice() []byte {
	return k[:]
}

func (k PublicKeyBytes) String() string {
	return types.Bytes(k[:]).String()
}

func (k PublicKeyBytes) MarshalJSON() ([]byte, error) {
	return types.AppendHexJSON(make([]byte, 0, PublicKeySize*2+2), k[:]), nil
}

func (k *PublicKeyBytes) UnmarshalJSON(b []byte) error {
	return types.DecodeHexJSON(k[:], b)
}

func PublicKeyBytesFromSlice(buf []byte) (k PublicKeyBytes, err error) {
	if len(buf) != PublicKeySize {
		return k, ErrInvalidPoint
	}
	copy(k[:], buf)
	return k, nil
}

// DecodeCompressedPoint Parses a 33-byte compressed encoding, rejecting points not on the curve
func DecodeCompressedPoint(dst *Point, buf PublicKeyBytes) (*Point, error) {
	if !buf.IsValid() {
		return nil, ErrInvalidPoint
	}
	pub, err := secp256k1.ParsePubKey(buf[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPoint, err)
	}
	pub.AsJacobian(dst)
	return dst, nil
}

// EncodeCompressedPoint Serializes p. The point at infinity has no encoding.
func EncodeCompressedPoint(p *Point) (out PublicKeyBytes, err error) {
	if IsInfinity(p) {
		return out, ErrPointAtInfinity
	}
	var affine Point
	affine.Set(p)
	affine.ToAffine()
	out[0] = 0x02
	if affine.Y.IsOdd() {
		out[0] = 0x03
	}
	affine.X.PutBytesUnchecked(out[1:])
	return out, nil
}

func IsInfinity(p *Point) bool {
	z := p.Z
	z.Normalize()
	return z.IsZero()
}

// PointEqual Compares two points by their affine representation
func PointEqual(a, b *Point) bool {
	aInf, bInf := IsInfinity(a), IsInfinity(b)
	if aInf || bInf {
		return aInf == bInf
	}
	aBytes, _ := EncodeCompressedPoint(a)
	bBytes, _ := EncodeCompressedPoint(b)
	return aBytes == bBytes
}

// PointCoordinates Returns the affine coordinates of p, each reduced modulo the group order
func PointCoordinates(p *Point) (x, y Scalar, err error) {
	if IsInfinity(p) {
		return x, y, ErrPointAtInfinity
	}
	var affine Point
	affine.Set(p)
	affine.ToAffine()
	x.SetBytes(affine.X.Bytes())
	y.SetBytes(affine.Y.Bytes())
	return x, y, nil
}

// ScalarBaseMult dst = k * G
func ScalarBaseMult(dst *Point, k *Scalar) *Point {
	var r Point
	secp256k1.ScalarBaseMultNonConst(k, &r)
	dst.Set(&r)
	return dst
}

// ScalarMult dst = k * p
func ScalarMult(dst *Point, k *Scalar, p *Point) *Point {
	var r Point
	secp256k1.ScalarMultNonConst(k, p, &r)
	dst.Set(&r)
	return dst
}

// AddPoints dst = a + b
func AddPoints(dst, a, b *Point) *Point {
	var r Point
	secp256k1.AddNonConst(a, b, &r)
	dst.Set(&r)
	return dst
}

// NegatePoint dst = -p
func NegatePoint(dst, p *Point) *Point {
	dst.Set(p)
	if IsInfinity(dst) {
		return dst
	}
	dst.Y.Normalize()
	dst.Y.Negate(1)
	dst.Y.Normalize()
	return dst
}

// SubtractPoints dst = a - b
func SubtractPoints(dst, a, b *Point) *Point {
	var negB Point
	NegatePoint(&negB, b)
	return AddPoints(dst, a, &negB)
}

// DoubleScalarBaseMult dst = a * A + b * G
func DoubleScalarBaseMult(dst *Point, a *Scalar, A *Point, b *Scalar) *Point {
	var aA, bG Point
	ScalarMult(&aA, a, A)
	ScalarBaseMult(&bG, b)
	return AddPoints(dst, &aA, &bG)
}

// DoubleScalarMult dst = a * A + b * B
func DoubleScalarMult(dst *Point, a *Scalar, A *Point, b *Scalar, B *Point) *Point {
	var aA, bB Point
	ScalarMult(&aA, a, A)
	ScalarMult(&bB, b, B)
	return AddPoints(dst, &aA, &bB)
}
