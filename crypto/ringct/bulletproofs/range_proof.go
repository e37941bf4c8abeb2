package bulletproofs

import (
	"bytes"
	"errors"
	"io"
	"slices"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/crypto/ringct"
	"git.gammaspectra.live/WATTx/privacy/utils"
)

const (
	RangeProofVersion           = 0x01
	AggregatedRangeProofVersion = 0x02

	// LegacyProofSize Placeholder proofs from before range proofs were enforced
	LegacyProofSize               = 33
	legacyRangeProofTag           = 0xFF
	legacyAggregatedRangeProofTag = 0xFE

	// RangeProofHeaderSize version, A, S, T1, T2, tau_x, mu, t_hat
	RangeProofHeaderSize = 1 + 4*crypto.PublicKeySize + 3*crypto.PrivateKeySize
)

var ErrAmountTooLarge = errors.New("amount too large")
var ErrCommitmentMismatch = errors.New("commitment does not open to amount")
var ErrInvalidChallenge = errors.New("invalid challenge")
var ErrInvalidVersion = errors.New("invalid range proof version")

// RangeProof Proves a committed amount lies in [0, 2^64).
//
// THat carries t(x) - delta(y, z), so that
//
//	tau_x G + t_hat H == z^2 V + x T1 + x^2 T2
//
// holds exactly. The inner product argument then proves <l(x), r(x)> = t_hat + delta(y, z).
type RangeProof struct {
	A, S, T1, T2   crypto.PublicKeyBytes
	TauX, Mu, THat crypto.Scalar
	IP             InnerProductProof
}

func (g *Generators) transcriptYZ(y, z *crypto.Scalar, V, A, S crypto.PublicKeyBytes) {
	g.ctx.HashToScalar(y, "y", V[:], A[:], S[:])
	yBytes := y.Bytes()
	g.ctx.HashToScalar(z, "z", V[:], A[:], S[:], yBytes[:])
}

func (g *Generators) transcriptX(x *crypto.Scalar, z *crypto.Scalar, T1, T2 crypto.PublicKeyBytes) {
	zBytes := z.Bytes()
	g.ctx.HashToScalar(x, "x", zBytes[:], T1[:], T2[:])
}

func (g *Generators) transcriptIPA(w *crypto.Scalar, x *crypto.Scalar, p *RangeProof) {
	xBytes, tauX, mu, tHat := x.Bytes(), p.TauX.Bytes(), p.Mu.Bytes(), p.THat.Bytes()
	g.ctx.HashToScalar(w, "ipa", xBytes[:], tauX[:], mu[:], tHat[:])
}

// delta (z - z^2) <1, y^n> - z^3 <1, 2^n>
func delta(yPowers ScalarVector, z *crypto.Scalar) (out crypto.Scalar) {
	var z2, z3, tmp crypto.Scalar
	z2.SquareVal(z)
	z3.Mul2(&z2, z)

	crypto.ScalarSubtract(&tmp, z, &z2)
	ySum := yPowers.Sum()
	out.Mul2(&tmp, &ySum)

	twoSum := TwoScalarVectorPowers().Sum()
	tmp.Mul2(&z3, &twoSum)
	return *crypto.ScalarSubtract(&out, &out, &tmp)
}

// hPrime y^-i H_i
func (g *Generators) hPrime(y *crypto.Scalar) PointVector {
	var yInv crypto.Scalar
	crypto.ScalarInvert(&yInv, y)
	return slices.Clone(g.H).MultiplyVec(AppendScalarVectorPowers(nil, &yInv, len(g.H)))
}

func randomScalarVector(n int, randomReader io.Reader) (ScalarVector, error) {
	v := make(ScalarVector, n)
	for i := range v {
		if crypto.RandomScalar(&v[i], randomReader) == nil {
			return nil, errors.New("could not read randomness")
		}
	}
	return v, nil
}

// commitVectors blind G + <a, G_i> + <b, H_i>
func (g *Generators) commitVectors(blind *crypto.Scalar, a, b ScalarVector) (crypto.PublicKeyBytes, error) {
	var p, tmp crypto.Point
	crypto.ScalarBaseMult(&p, blind)
	crypto.AddPoints(&p, &p, a.MultiplyPoints(&tmp, g.G))
	crypto.AddPoints(&p, &p, b.MultiplyPoints(&tmp, g.H))
	return crypto.EncodeCompressedPoint(&p)
}

// Prove Creates a range proof for commitment = amount H + blinding G
func (g *Generators) Prove(amount uint64, blinding *crypto.Scalar, commitment crypto.PublicKeyBytes, randomReader io.Reader) (*RangeProof, error) {
	if amount > MaxAmount {
		return nil, ErrAmountTooLarge
	}
	if c, err := ringct.CreateCommitment(g.ctx, amount, blinding); err != nil {
		return nil, err
	} else if c != commitment {
		return nil, ErrCommitmentMismatch
	}

	const n = CommitmentBits
	proof := &RangeProof{}

	aL := Decompose(amount)
	aR := aL.Copy(make(ScalarVector, 0, n)).Subtract(&one)

	blinds, err := randomScalarVector(4, randomReader)
	if err != nil {
		return nil, err
	}
	alpha, rho, tau1, tau2 := &blinds[0], &blinds[1], &blinds[2], &blinds[3]

	if proof.A, err = g.commitVectors(alpha, aL, aR); err != nil {
		return nil, err
	}

	sL, err := randomScalarVector(n, randomReader)
	if err != nil {
		return nil, err
	}
	sR, err := randomScalarVector(n, randomReader)
	if err != nil {
		return nil, err
	}
	if proof.S, err = g.commitVectors(rho, sL, sR); err != nil {
		return nil, err
	}

	var y, z, x crypto.Scalar
	g.transcriptYZ(&y, &z, commitment, proof.A, proof.S)
	if y.IsZero() || z.IsZero() {
		return nil, ErrInvalidChallenge
	}

	yPowers := AppendScalarVectorPowers(nil, &y, n)
	var z2 crypto.Scalar
	z2.SquareVal(&z)

	// l(X) = l0 + l1 X, r(X) = r0 + r1 X
	l0 := aL.Copy(make(ScalarVector, 0, n)).Subtract(&z)
	l1 := sL
	r0 := aR.Copy(make(ScalarVector, 0, n)).Add(&z).MultiplyVec(yPowers).AddVecMultiply(TwoScalarVectorPowers(), &z2)
	r1 := sR.Copy(make(ScalarVector, 0, n)).MultiplyVec(yPowers)

	var t1, t2 crypto.Scalar
	t1a, t1b := l0.InnerProduct(r1), l1.InnerProduct(r0)
	t1.Add2(&t1a, &t1b)
	t2 = l1.InnerProduct(r1)

	var T crypto.Point
	if proof.T1, err = crypto.EncodeCompressedPoint(crypto.DoubleScalarBaseMult(&T, &t1, &g.AmountH, tau1)); err != nil {
		return nil, err
	}
	if proof.T2, err = crypto.EncodeCompressedPoint(crypto.DoubleScalarBaseMult(&T, &t2, &g.AmountH, tau2)); err != nil {
		return nil, err
	}

	g.transcriptX(&x, &z, proof.T1, proof.T2)
	if x.IsZero() {
		return nil, ErrInvalidChallenge
	}

	var x2 crypto.Scalar
	x2.SquareVal(&x)

	// tau_x = tau2 x^2 + tau1 x + z^2 gamma
	var tmp crypto.Scalar
	proof.TauX.Mul2(tau2, &x2)
	crypto.ScalarMulAdd(&proof.TauX, tau1, &x, &proof.TauX)
	tmp.Mul2(&z2, blinding)
	proof.TauX.Add(&tmp)

	// mu = alpha + rho x
	crypto.ScalarMulAdd(&proof.Mu, rho, &x, alpha)

	l := l0.Copy(make(ScalarVector, 0, n)).AddVecMultiply(l1, &x)
	r := r0.Copy(make(ScalarVector, 0, n)).AddVecMultiply(r1, &x)

	t := l.InnerProduct(r)
	d := delta(yPowers, &z)
	crypto.ScalarSubtract(&proof.THat, &t, &d)

	var w crypto.Scalar
	g.transcriptIPA(&w, &x, proof)
	if w.IsZero() {
		return nil, ErrInvalidChallenge
	}
	var U crypto.Point
	crypto.ScalarMult(&U, &w, &g.U)

	ip, err := CreateInnerProductProof(g.ctx, w, g.G, g.hPrime(&y), &U, l, r)
	if err != nil {
		return nil, err
	}
	proof.IP = *ip

	return proof, nil
}

// Verify Checks p against commitment
func (g *Generators) Verify(commitment crypto.PublicKeyBytes, p *RangeProof) bool {
	if p.TauX.IsZero() || p.Mu.IsZero() {
		return false
	}

	V, err := commitment.Point()
	if err != nil {
		return false
	}
	A, err := p.A.Point()
	if err != nil {
		return false
	}
	S, err := p.S.Point()
	if err != nil {
		return false
	}
	T1, err := p.T1.Point()
	if err != nil {
		return false
	}
	T2, err := p.T2.Point()
	if err != nil {
		return false
	}

	var y, z, x, w crypto.Scalar
	g.transcriptYZ(&y, &z, commitment, p.A, p.S)
	g.transcriptX(&x, &z, p.T1, p.T2)
	g.transcriptIPA(&w, &x, p)
	if y.IsZero() || z.IsZero() || x.IsZero() || w.IsZero() {
		return false
	}

	var z2, x2 crypto.Scalar
	z2.SquareVal(&z)
	x2.SquareVal(&x)

	// tau_x G + t_hat H == z^2 V + x T1 + x^2 T2
	var lhs, rhs, tmp crypto.Point
	crypto.ScalarBaseMult(&lhs, &p.TauX)
	if !p.THat.IsZero() {
		crypto.AddPoints(&lhs, &lhs, crypto.ScalarMult(&tmp, &p.THat, &g.AmountH))
	}
	crypto.ScalarMult(&rhs, &z2, V)
	crypto.AddPoints(&rhs, &rhs, crypto.DoubleScalarMult(&tmp, &x, T1, &x2, T2))
	if !crypto.PointEqual(&lhs, &rhs) {
		return false
	}

	const n = CommitmentBits
	if len(g.G) != n || len(g.H) != n {
		return false
	}
	yPowers := AppendScalarVectorPowers(nil, &y, n)
	hPrime := g.hPrime(&y)

	// P = A + x S - z <1, G> + <z y^n + z^2 2^n, H'> - mu G
	var P crypto.Point
	crypto.AddPoints(&P, A, crypto.ScalarMult(&tmp, &x, S))

	var negZ crypto.Scalar
	negZ.NegateVal(&z)
	crypto.AddPoints(&P, &P, crypto.ScalarMult(&tmp, &negZ, g.G.Sum(&tmp)))

	hScalars := yPowers.Copy(make(ScalarVector, 0, n)).Multiply(&z).AddVecMultiply(TwoScalarVectorPowers(), &z2)
	crypto.AddPoints(&P, &P, hScalars.MultiplyPoints(&tmp, hPrime))

	var negMu crypto.Scalar
	negMu.NegateVal(&p.Mu)
	crypto.AddPoints(&P, &P, crypto.ScalarBaseMult(&tmp, &negMu))

	var U crypto.Point
	crypto.ScalarMult(&U, &w, &g.U)

	d := delta(yPowers, &z)
	var c crypto.Scalar
	c.Add2(&p.THat, &d)

	return VerifyInnerProductProof(g.ctx, w, g.G, hPrime, &U, &P, &c, &p.IP) == nil
}

// CreateRangeProof Returns the serialized version 1 proof for commitment = amount H + blinding G
func (g *Generators) CreateRangeProof(amount uint64, blinding *crypto.Scalar, commitment crypto.PublicKeyBytes, randomReader io.Reader) ([]byte, error) {
	proof, err := g.Prove(amount, blinding, commitment, randomReader)
	if err != nil {
		return nil, err
	}
	return utils.MarshalBinary(proof)
}

// VerifyRangeProof Verifies a serialized version 1 proof. The legacy placeholder is accepted.
func (g *Generators) VerifyRangeProof(commitment crypto.PublicKeyBytes, proof []byte) bool {
	if len(proof) == LegacyProofSize && proof[LegacyProofSize-1] == legacyRangeProofTag {
		return true
	}
	if len(proof) < RangeProofHeaderSize || proof[0] != RangeProofVersion {
		return false
	}

	var p RangeProof
	reader := bytes.NewReader(proof)
	if err := p.FromReader(reader); err != nil {
		return false
	}
	if reader.Len() != 0 {
		return false
	}

	return g.Verify(commitment, &p)
}

func (p *RangeProof) BufferLength() int {
	return RangeProofHeaderSize + p.IP.BufferLength()
}

func (p *RangeProof) AppendBinary(preAllocatedBuf []byte) (data []byte, err error) {
	buf := append(preAllocatedBuf, RangeProofVersion)
	buf = append(buf, p.A[:]...)
	buf = append(buf, p.S[:]...)
	buf = append(buf, p.T1[:]...)
	buf = append(buf, p.T2[:]...)
	for _, s := range []*crypto.Scalar{&p.TauX, &p.Mu, &p.THat} {
		b := s.Bytes()
		buf = append(buf, b[:]...)
	}
	return p.IP.AppendBinary(buf)
}

func (p *RangeProof) FromReader(reader utils.ReaderAndByteReader) (err error) {
	version, err := reader.ReadByte()
	if err != nil {
		return err
	}
	if version != RangeProofVersion {
		return ErrInvalidVersion
	}

	for _, point := range []*crypto.PublicKeyBytes{&p.A, &p.S, &p.T1, &p.T2} {
		if _, err = io.ReadFull(reader, point[:]); err != nil {
			return err
		}
	}

	var k crypto.PrivateKeyBytes
	for _, s := range []*crypto.Scalar{&p.TauX, &p.Mu, &p.THat} {
		if _, err = io.ReadFull(reader, k[:]); err != nil {
			return err
		}
		if overflow := s.SetByteSlice(k[:]); overflow {
			return crypto.ErrInvalidScalar
		}
	}

	return p.IP.FromReader(reader)
}
