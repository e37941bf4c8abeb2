package ringct

import (
	"errors"
	"fmt"
	"io"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/types"
	"git.gammaspectra.live/WATTx/privacy/utils"
)

var ErrKeyMismatch = errors.New("private key does not match ring member")

// RingSignature Single input linkable ring signature.
// Each member answers the dual Schnorr equations
//
//	L = s G + c P
//	R = s Hp(P) + c I
//
// and the challenge chain c[i+1] = H(message, L[i], R[i]) must close at c0.
type RingSignature struct {
	Ring     Ring
	KeyImage crypto.KeyImage
	C0       crypto.Scalar
	S        []crypto.Scalar
}

func challenge(ctx *crypto.Context, dst *crypto.Scalar, message types.Hash, L, R *crypto.Point) error {
	lBytes, err := crypto.EncodeCompressedPoint(L)
	if err != nil {
		return err
	}
	rBytes, err := crypto.EncodeCompressedPoint(R)
	if err != nil {
		return err
	}
	ctx.HashToScalar(dst, "Challenge", message[:], lBytes[:], rBytes[:])
	return nil
}

// CreateRingSignature Signs message proving knowledge of the private key of ring[realIndex]
func CreateRingSignature(ctx *crypto.Context, message types.Hash, ring Ring, realIndex int, privateKey *crypto.Scalar, randomReader io.Reader) (*RingSignature, error) {
	if err := ring.Validate(); err != nil {
		return nil, err
	}
	if realIndex < 0 || realIndex >= len(ring) {
		return nil, ErrInvalidRealIndex
	}
	if privateKey.IsZero() {
		return nil, crypto.ErrInvalidScalar
	}

	if pub, err := crypto.PublicKeyFromPrivate(privateKey); err != nil || pub != ring[realIndex].PublicKey {
		return nil, ErrKeyMismatch
	}

	keyImage, err := ctx.GenerateKeyImage(privateKey, ring[realIndex].PublicKey)
	if err != nil {
		return nil, fmt.Errorf("key image: %w", err)
	}
	image, err := keyImage.Point()
	if err != nil {
		return nil, err
	}

	points, err := ring.points()
	if err != nil {
		return nil, err
	}

	n := len(ring)
	c := make([]crypto.Scalar, n)
	s := make([]crypto.Scalar, n)

	var alpha crypto.Scalar
	if crypto.RandomScalar(&alpha, randomReader) == nil {
		return nil, errors.New("could not read randomness")
	}

	var L, R, hp crypto.Point
	if _, err = ctx.HashToPoint(&hp, ring[realIndex].PublicKey); err != nil {
		return nil, err
	}
	crypto.ScalarBaseMult(&L, &alpha)
	crypto.ScalarMult(&R, &alpha, &hp)
	if err = challenge(ctx, &c[(realIndex+1)%n], message, &L, &R); err != nil {
		return nil, err
	}

	for j := 1; j < n; j++ {
		i := (realIndex + j) % n
		if crypto.RandomScalar(&s[i], randomReader) == nil {
			return nil, errors.New("could not read randomness")
		}
		if _, err = ctx.HashToPoint(&hp, ring[i].PublicKey); err != nil {
			return nil, err
		}
		crypto.DoubleScalarBaseMult(&L, &c[i], &points[i], &s[i])
		crypto.DoubleScalarMult(&R, &s[i], &hp, &c[i], image)
		if err = challenge(ctx, &c[(i+1)%n], message, &L, &R); err != nil {
			return nil, err
		}
	}

	// s = alpha - c * x
	var cx crypto.Scalar
	cx.Mul2(&c[realIndex], privateKey)
	crypto.ScalarSubtract(&s[realIndex], &alpha, &cx)

	sig := &RingSignature{
		Ring:     ring,
		KeyImage: keyImage,
		S:        s,
	}
	sig.C0.Set(&c[0])
	return sig, nil
}

// Verify Recomputes the challenge chain and checks it closes at C0
func (s *RingSignature) Verify(ctx *crypto.Context, message types.Hash) bool {
	if s.Ring.Validate() != nil {
		return false
	}
	if len(s.S) != len(s.Ring) || s.C0.IsZero() {
		return false
	}
	for i := range s.S {
		if s.S[i].IsZero() {
			return false
		}
	}

	image, err := s.KeyImage.Point()
	if err != nil {
		return false
	}
	points, err := s.Ring.points()
	if err != nil {
		return false
	}

	var ci crypto.Scalar
	ci.Set(&s.C0)

	var L, R, hp crypto.Point
	for i := range s.Ring {
		if _, err = ctx.HashToPoint(&hp, s.Ring[i].PublicKey); err != nil {
			return false
		}
		crypto.DoubleScalarBaseMult(&L, &ci, &points[i], &s.S[i])
		crypto.DoubleScalarMult(&R, &s.S[i], &hp, &ci, image)
		if err = challenge(ctx, &ci, message, &L, &R); err != nil {
			return false
		}
	}

	return ci.Equals(&s.C0)
}

func (s *RingSignature) BufferLength() int {
	return s.Ring.BufferLength() + crypto.PublicKeySize + crypto.PrivateKeySize*(1+len(s.S))
}

func (s *RingSignature) AppendBinary(preAllocatedBuf []byte) (data []byte, err error) {
	if len(s.S) != len(s.Ring) {
		return nil, ErrInvalidRing
	}
	buf, err := s.Ring.AppendBinary(preAllocatedBuf)
	if err != nil {
		return nil, err
	}
	buf = append(buf, s.KeyImage[:]...)
	c0 := s.C0.Bytes()
	buf = append(buf, c0[:]...)
	for i := range s.S {
		scalar := s.S[i].Bytes()
		buf = append(buf, scalar[:]...)
	}
	return buf, nil
}

func (s *RingSignature) FromReader(reader utils.ReaderAndByteReader) (err error) {
	if err = s.Ring.FromReader(reader); err != nil {
		return err
	}
	if _, err = io.ReadFull(reader, s.KeyImage[:]); err != nil {
		return err
	}

	var k crypto.PrivateKeyBytes
	if _, err = io.ReadFull(reader, k[:]); err != nil {
		return err
	}
	if overflow := s.C0.SetByteSlice(k[:]); overflow {
		return crypto.ErrInvalidScalar
	}

	s.S = make([]crypto.Scalar, len(s.Ring))
	for i := range s.S {
		if _, err = io.ReadFull(reader, k[:]); err != nil {
			return err
		}
		if overflow := s.S[i].SetByteSlice(k[:]); overflow {
			return crypto.ErrInvalidScalar
		}
	}
	return nil
}
