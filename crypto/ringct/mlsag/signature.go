package mlsag

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/crypto/ringct"
	"git.gammaspectra.live/WATTx/privacy/types"
	"git.gammaspectra.live/WATTx/privacy/utils"
)

// Signature Multilayer linkable ring signature over several inputs sharing one challenge chain.
// The real member of every input sits in the same column.
type Signature struct {
	Rings     RingMatrix
	KeyImages []crypto.KeyImage
	C0        crypto.Scalar
	// S One response per input and column
	S [][]crypto.Scalar
}

var ErrInvalidAmountOfKeyImages = errors.New("invalid amount of key images")
var ErrInvalidSS = errors.New("invalid SS")
var ErrInvalidCC = errors.New("invalid CC")
var ErrInvalidKeyImage = errors.New("invalid key image")

// columnHasher Collects the L, R pairs of one column for all inputs
type columnHasher struct {
	ctx     *crypto.Context
	message types.Hash
	buf     []byte
}

func newColumnHasher(ctx *crypto.Context, message types.Hash, inputs int) *columnHasher {
	return &columnHasher{
		ctx:     ctx,
		message: message,
		buf:     make([]byte, 0, inputs*2*crypto.PublicKeySize),
	}
}

func (h *columnHasher) append(L, R *crypto.Point) error {
	lBytes, err := crypto.EncodeCompressedPoint(L)
	if err != nil {
		return err
	}
	rBytes, err := crypto.EncodeCompressedPoint(R)
	if err != nil {
		return err
	}
	h.buf = append(h.buf, lBytes[:]...)
	h.buf = append(h.buf, rBytes[:]...)
	return nil
}

// challenge Hashes the collected column and resets the buffer
func (h *columnHasher) challenge(dst *crypto.Scalar) *crypto.Scalar {
	h.ctx.HashToScalar(dst, "MLSAGChallenge", h.message[:], h.buf)
	h.buf = h.buf[:0]
	return dst
}

// Sign Creates a signature where privateKeys[j] opens matrix[j][realIndex]
func Sign(ctx *crypto.Context, message types.Hash, matrix RingMatrix, realIndex int, privateKeys []*crypto.Scalar, randomReader io.Reader) (*Signature, error) {
	if err := matrix.Validate(); err != nil {
		return nil, err
	}
	m, n := len(matrix), matrix.MemberLen()
	if realIndex < 0 || realIndex >= n {
		return nil, ringct.ErrInvalidRealIndex
	}
	if len(privateKeys) != m {
		return nil, ErrInvalidAmountOfKeyImages
	}

	keyImages := make([]crypto.KeyImage, m)
	images := make([]crypto.Point, m)
	points := make([][]crypto.Point, m)
	hp := make([][]crypto.Point, m)
	for j, ring := range matrix {
		if privateKeys[j] == nil || privateKeys[j].IsZero() {
			return nil, crypto.ErrInvalidScalar
		}
		if pub, err := crypto.PublicKeyFromPrivate(privateKeys[j]); err != nil || pub != ring[realIndex].PublicKey {
			return nil, fmt.Errorf("input %d: %w", j, ringct.ErrKeyMismatch)
		}

		var err error
		if keyImages[j], err = ctx.GenerateKeyImage(privateKeys[j], ring[realIndex].PublicKey); err != nil {
			return nil, err
		}
		if _, err = crypto.DecodeCompressedPoint(&images[j], crypto.PublicKeyBytes(keyImages[j])); err != nil {
			return nil, err
		}

		points[j] = make([]crypto.Point, n)
		hp[j] = make([]crypto.Point, n)
		for i := range ring {
			if _, err = crypto.DecodeCompressedPoint(&points[j][i], ring[i].PublicKey); err != nil {
				return nil, err
			}
			if _, err = ctx.HashToPoint(&hp[j][i], ring[i].PublicKey); err != nil {
				return nil, err
			}
		}
	}

	for j := range keyImages {
		for k := j + 1; k < len(keyImages); k++ {
			if keyImages[j] == keyImages[k] {
				return nil, ErrInvalidKeyImage
			}
		}
	}

	c := make([]crypto.Scalar, n)
	s := make([][]crypto.Scalar, m)
	for j := range s {
		s[j] = make([]crypto.Scalar, n)
	}

	hasher := newColumnHasher(ctx, message, m)
	alpha := make([]crypto.Scalar, m)

	var L, R crypto.Point
	for j := range alpha {
		if crypto.RandomScalar(&alpha[j], randomReader) == nil {
			return nil, errors.New("could not read randomness")
		}
		crypto.ScalarBaseMult(&L, &alpha[j])
		crypto.ScalarMult(&R, &alpha[j], &hp[j][realIndex])
		if err := hasher.append(&L, &R); err != nil {
			return nil, err
		}
	}
	hasher.challenge(&c[(realIndex+1)%n])

	for k := 1; k < n; k++ {
		i := (realIndex + k) % n
		for j := range matrix {
			if crypto.RandomScalar(&s[j][i], randomReader) == nil {
				return nil, errors.New("could not read randomness")
			}
			crypto.DoubleScalarBaseMult(&L, &c[i], &points[j][i], &s[j][i])
			crypto.DoubleScalarMult(&R, &s[j][i], &hp[j][i], &c[i], &images[j])
			if err := hasher.append(&L, &R); err != nil {
				return nil, err
			}
		}
		hasher.challenge(&c[(i+1)%n])
	}

	var cx crypto.Scalar
	for j := range matrix {
		cx.Mul2(&c[realIndex], privateKeys[j])
		crypto.ScalarSubtract(&s[j][realIndex], &alpha[j], &cx)
	}

	sig := &Signature{
		Rings:     matrix,
		KeyImages: keyImages,
		S:         s,
	}
	sig.C0.Set(&c[0])
	return sig, nil
}

func (s *Signature) Verify(ctx *crypto.Context, message types.Hash) error {
	if err := s.Rings.Validate(); err != nil {
		return err
	}
	m, n := len(s.Rings), s.Rings.MemberLen()

	if len(s.KeyImages) != m {
		return ErrInvalidAmountOfKeyImages
	}

	if len(s.S) != m {
		return ErrInvalidSS
	}
	for j := range s.S {
		if len(s.S[j]) != n {
			return ErrInvalidSS
		}
		for i := range s.S[j] {
			if s.S[j][i].IsZero() {
				return ErrInvalidSS
			}
		}
	}

	if s.C0.IsZero() {
		return ErrInvalidCC
	}

	images := make([]crypto.Point, m)
	for j, ki := range s.KeyImages {
		if _, err := crypto.DecodeCompressedPoint(&images[j], crypto.PublicKeyBytes(ki)); err != nil {
			return ErrInvalidKeyImage
		}
		for k := j + 1; k < m; k++ {
			if ki == s.KeyImages[k] {
				return ErrInvalidKeyImage
			}
		}
	}

	hasher := newColumnHasher(ctx, message, m)

	var ci crypto.Scalar
	ci.Set(&s.C0)

	var L, R, P, hp crypto.Point
	for i := range n {
		for j, ring := range s.Rings {
			if _, err := crypto.DecodeCompressedPoint(&P, ring[i].PublicKey); err != nil {
				return ErrInvalidRing
			}
			if _, err := ctx.HashToPoint(&hp, ring[i].PublicKey); err != nil {
				return err
			}
			crypto.DoubleScalarBaseMult(&L, &ci, &P, &s.S[j][i])
			crypto.DoubleScalarMult(&R, &s.S[j][i], &hp, &ci, &images[j])
			if err := hasher.append(&L, &R); err != nil {
				return ErrInvalidCC
			}
		}
		hasher.challenge(&ci)
	}

	if !ci.Equals(&s.C0) {
		return ErrInvalidCC
	}

	return nil
}

func (s *Signature) BufferLength() int {
	n := utils.UVarInt64Size(len(s.Rings))
	for _, ring := range s.Rings {
		n += ring.BufferLength()
	}
	n += len(s.KeyImages)*crypto.PublicKeySize + crypto.PrivateKeySize
	for i := range s.S {
		n += crypto.PrivateKeySize * len(s.S[i])
	}
	return n
}

func (s *Signature) AppendBinary(preAllocatedBuf []byte) (data []byte, err error) {
	if len(s.KeyImages) != len(s.Rings) {
		return nil, ErrInvalidAmountOfKeyImages
	}
	if len(s.S) != len(s.Rings) {
		return nil, ErrInvalidSS
	}

	buf := binary.AppendUvarint(preAllocatedBuf, uint64(len(s.Rings)))
	for _, ring := range s.Rings {
		if buf, err = ring.AppendBinary(buf); err != nil {
			return nil, err
		}
	}
	for _, ki := range s.KeyImages {
		buf = append(buf, ki[:]...)
	}
	c0 := s.C0.Bytes()
	buf = append(buf, c0[:]...)
	for j, ss := range s.S {
		if len(ss) != len(s.Rings[j]) {
			return nil, ErrInvalidSS
		}
		for i := range ss {
			scalar := ss[i].Bytes()
			buf = append(buf, scalar[:]...)
		}
	}
	return buf, nil
}

func (s *Signature) FromReader(reader utils.ReaderAndByteReader) (err error) {
	m, err := utils.ReadLength(reader, MaxInputs)
	if err != nil {
		return err
	}
	s.Rings = make(RingMatrix, m)
	for j := range s.Rings {
		if err = s.Rings[j].FromReader(reader); err != nil {
			return err
		}
	}

	s.KeyImages = make([]crypto.KeyImage, m)
	for j := range s.KeyImages {
		if _, err = io.ReadFull(reader, s.KeyImages[j][:]); err != nil {
			return err
		}
	}

	var k crypto.PrivateKeyBytes
	if _, err = io.ReadFull(reader, k[:]); err != nil {
		return err
	}
	if overflow := s.C0.SetByteSlice(k[:]); overflow {
		return ErrInvalidCC
	}

	s.S = make([][]crypto.Scalar, m)
	for j := range s.S {
		s.S[j] = make([]crypto.Scalar, len(s.Rings[j]))
		for i := range s.S[j] {
			if _, err = io.ReadFull(reader, k[:]); err != nil {
				return err
			}
			if overflow := s.S[j][i].SetByteSlice(k[:]); overflow {
				return ErrInvalidSS
			}
		}
	}
	return nil
}
