package bulletproofs

import (
	"errors"
	"io"
	"slices"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/utils"
)

var ErrIncorrectAmountOfGenerators = errors.New("incorrect amount of generators")
var ErrDifferingLRLengths = errors.New("differing LR lengths")
var ErrInvalidInnerProduct = errors.New("invalid inner product proof")

// MaxInnerProductRounds Upper bound accepted when decoding, enough for 2^32 element vectors
const MaxInnerProductRounds = 32

// InnerProductProof Protocol 2 of the Bulletproofs paper. One L, R pair per halving round.
type InnerProductProof struct {
	L []crypto.PublicKeyBytes
	R []crypto.PublicKeyBytes
	A crypto.Scalar
	B crypto.Scalar
}

func transcriptLR(ctx *crypto.Context, transcript *crypto.Scalar, L, R crypto.PublicKeyBytes) *crypto.Scalar {
	t := transcript.Bytes()
	return ctx.HashToScalar(transcript, "InnerProduct", t[:], L[:], R[:])
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// CreateInnerProductProof Proves knowledge of a, b with P = <a, G> + <b, H> + <a, b> U.
// transcript seeds the fold challenges and must bind everything P depends on.
func CreateInnerProductProof(ctx *crypto.Context, transcript crypto.Scalar, G, H PointVector, U *crypto.Point, a, b ScalarVector) (*InnerProductProof, error) {
	if !isPowerOfTwo(len(a)) || len(a) != len(b) || len(G) != len(a) || len(H) != len(a) {
		return nil, ErrIncorrectAmountOfGenerators
	}

	GBold := slices.Clone(G)
	HBold := slices.Clone(H)
	a = slices.Clone(a)
	b = slices.Clone(b)

	proof := &InnerProductProof{}

	var L, R, tmp crypto.Point
	var x, xInv crypto.Scalar
	x.Set(&transcript)

	for len(GBold) > 1 {
		a1, a2 := a.Split()
		b1, b2 := b.Split()

		GBold1, GBold2 := GBold.Split()
		HBold1, HBold2 := HBold.Split()

		cl := a1.InnerProduct(b2)
		cr := a2.InnerProduct(b1)

		// L = <a1, G2> + <b2, H1> + cl U
		a1.MultiplyPoints(&L, GBold2)
		crypto.AddPoints(&L, &L, b2.MultiplyPoints(&tmp, HBold1))
		crypto.AddPoints(&L, &L, crypto.ScalarMult(&tmp, &cl, U))

		// R = <a2, G1> + <b1, H2> + cr U
		a2.MultiplyPoints(&R, GBold1)
		crypto.AddPoints(&R, &R, b1.MultiplyPoints(&tmp, HBold2))
		crypto.AddPoints(&R, &R, crypto.ScalarMult(&tmp, &cr, U))

		lBytes, err := crypto.EncodeCompressedPoint(&L)
		if err != nil {
			return nil, err
		}
		rBytes, err := crypto.EncodeCompressedPoint(&R)
		if err != nil {
			return nil, err
		}
		proof.L = append(proof.L, lBytes)
		proof.R = append(proof.R, rBytes)

		transcriptLR(ctx, &x, lBytes, rBytes)
		if x.IsZero() {
			return nil, ErrInvalidInnerProduct
		}
		crypto.ScalarInvert(&xInv, &x)

		// G' = x^-1 G1 + x G2, H' = x H1 + x^-1 H2
		nextG := make(PointVector, len(GBold1))
		nextH := make(PointVector, len(HBold1))
		for i := range GBold1 {
			crypto.DoubleScalarMult(&nextG[i], &xInv, &GBold1[i], &x, &GBold2[i])
			crypto.DoubleScalarMult(&nextH[i], &x, &HBold1[i], &xInv, &HBold2[i])
		}
		GBold, HBold = nextG, nextH

		// a' = x a1 + x^-1 a2, b' = x^-1 b1 + x b2
		a = slices.Clone(a1).Multiply(&x).AddVecMultiply(a2, &xInv)
		b = slices.Clone(b1).Multiply(&xInv).AddVecMultiply(b2, &x)
	}

	proof.A = a[0]
	proof.B = b[0]
	return proof, nil
}

// VerifyInnerProductProof Checks proof against P = <a, G> + <b, H>, where c = <a, b> is added here as c U
func VerifyInnerProductProof(ctx *crypto.Context, transcript crypto.Scalar, G, H PointVector, U, P *crypto.Point, c *crypto.Scalar, proof *InnerProductProof) error {
	n := len(G)
	if !isPowerOfTwo(n) || len(H) != n {
		return ErrIncorrectAmountOfGenerators
	}

	lrLen := 0
	for (1 << lrLen) < n {
		lrLen++
	}
	if len(proof.L) != lrLen {
		return ErrIncorrectAmountOfGenerators
	}
	if len(proof.L) != len(proof.R) {
		return ErrDifferingLRLengths
	}

	// P' = P + c U + sum(x^2 L + x^-2 R)
	var lhs, tmp, L, R crypto.Point
	lhs.Set(P)
	crypto.AddPoints(&lhs, &lhs, crypto.ScalarMult(&tmp, c, U))

	challenges := make([][2]crypto.Scalar, 0, lrLen)
	var x, xInv, x2, xInv2 crypto.Scalar
	x.Set(&transcript)
	for i := range proof.L {
		if _, err := crypto.DecodeCompressedPoint(&L, proof.L[i]); err != nil {
			return err
		}
		if _, err := crypto.DecodeCompressedPoint(&R, proof.R[i]); err != nil {
			return err
		}

		transcriptLR(ctx, &x, proof.L[i], proof.R[i])
		if x.IsZero() {
			return ErrInvalidInnerProduct
		}
		crypto.ScalarInvert(&xInv, &x)
		challenges = append(challenges, [2]crypto.Scalar{x, xInv})

		x2.SquareVal(&x)
		xInv2.SquareVal(&xInv)
		crypto.AddPoints(&lhs, &lhs, crypto.DoubleScalarMult(&tmp, &x2, &L, &xInv2, &R))
	}

	productCache := ChallengeProducts(challenges)

	// a <s, G> + b <s^-1, H> + a b U
	gScalars := make(ScalarVector, n)
	hScalars := make(ScalarVector, n)
	for i := range n {
		gScalars[i].Mul2(&productCache[i], &proof.A)
		hScalars[i].Mul2(&productCache[n-1-i], &proof.B)
	}

	var rhs crypto.Point
	gScalars.MultiplyPoints(&rhs, G)
	crypto.AddPoints(&rhs, &rhs, hScalars.MultiplyPoints(&tmp, H))
	var ab crypto.Scalar
	ab.Mul2(&proof.A, &proof.B)
	crypto.AddPoints(&rhs, &rhs, crypto.ScalarMult(&tmp, &ab, U))

	if !crypto.PointEqual(&lhs, &rhs) {
		return ErrInvalidInnerProduct
	}
	return nil
}

func (ipp *InnerProductProof) BufferLength() int {
	return 1 + crypto.PublicKeySize*(len(ipp.L)+len(ipp.R)) + crypto.PrivateKeySize*2
}

func (ipp *InnerProductProof) AppendBinary(preAllocatedBuf []byte) (data []byte, err error) {
	if len(ipp.L) != len(ipp.R) {
		return nil, ErrDifferingLRLengths
	}
	if len(ipp.L) > MaxInnerProductRounds {
		return nil, ErrIncorrectAmountOfGenerators
	}
	buf := append(preAllocatedBuf, uint8(len(ipp.L)))
	for i := range ipp.L {
		buf = append(buf, ipp.L[i][:]...)
		buf = append(buf, ipp.R[i][:]...)
	}
	a, b := ipp.A.Bytes(), ipp.B.Bytes()
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return buf, nil
}

func (ipp *InnerProductProof) FromReader(reader utils.ReaderAndByteReader) (err error) {
	rounds, err := reader.ReadByte()
	if err != nil {
		return err
	}
	if rounds > MaxInnerProductRounds {
		return ErrIncorrectAmountOfGenerators
	}
	ipp.L = make([]crypto.PublicKeyBytes, rounds)
	ipp.R = make([]crypto.PublicKeyBytes, rounds)
	for i := range ipp.L {
		if _, err = io.ReadFull(reader, ipp.L[i][:]); err != nil {
			return err
		}
		if _, err = io.ReadFull(reader, ipp.R[i][:]); err != nil {
			return err
		}
	}

	var k crypto.PrivateKeyBytes
	for _, s := range []*crypto.Scalar{&ipp.A, &ipp.B} {
		if _, err = io.ReadFull(reader, k[:]); err != nil {
			return err
		}
		if overflow := s.SetByteSlice(k[:]); overflow {
			return crypto.ErrInvalidScalar
		}
	}
	return nil
}
