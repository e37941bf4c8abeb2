package ringct

import (
	"errors"
	"io"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"lukechampine.com/uint128"
)

var ErrInvalidBlindingFactor = errors.New("invalid blinding factor")

// Commitment The opening of a Pedersen commitment
type Commitment struct {
	Mask   crypto.Scalar
	Amount uint64
}

func AmountToScalar(dst *crypto.Scalar, amount uint64) *crypto.Scalar {
	return crypto.ScalarFromUint64(dst, amount)
}

// Commit dst = amount * H + mask * G
func Commit(ctx *crypto.Context, dst *crypto.Point, amount uint64, mask *crypto.Scalar) *crypto.Point {
	if amount == 0 {
		return crypto.ScalarBaseMult(dst, mask)
	}
	var amountK crypto.Scalar
	return crypto.DoubleScalarBaseMult(dst, AmountToScalar(&amountK, amount), ctx.GeneratorH(), mask)
}

// CreateCommitment C = amount * H + blinding * G, serialized. blinding must be a valid scalar.
func CreateCommitment(ctx *crypto.Context, amount uint64, blinding *crypto.Scalar) (crypto.PublicKeyBytes, error) {
	if blinding == nil || blinding.IsZero() {
		return crypto.ZeroPublicKeyBytes, ErrInvalidBlindingFactor
	}
	var c crypto.Point
	return crypto.EncodeCompressedPoint(Commit(ctx, &c, amount, blinding))
}

func CalculateCommitment(ctx *crypto.Context, c Commitment) (crypto.PublicKeyBytes, error) {
	return CreateCommitment(ctx, c.Amount, &c.Mask)
}

// CalculateFeeCommitment fee * H, a commitment to the fee without blinding
func CalculateFeeCommitment(ctx *crypto.Context, fee uint64) (crypto.PublicKeyBytes, error) {
	var p crypto.Point
	var feeK crypto.Scalar
	return crypto.EncodeCompressedPoint(crypto.ScalarMult(&p, AmountToScalar(&feeK, fee), ctx.GeneratorH()))
}

func sumCommitments(dst *crypto.Point, commitments []crypto.PublicKeyBytes) error {
	var p crypto.Point
	for _, c := range commitments {
		if _, err := crypto.DecodeCompressedPoint(&p, c); err != nil {
			return err
		}
		crypto.AddPoints(dst, dst, &p)
	}
	return nil
}

// VerifyCommitmentBalance Checks sum(inputs) == sum(outputs) + fee as points.
// fee may be nil. Any encoding failure, including a sum at infinity, fails the check.
func VerifyCommitmentBalance(inputs, outputs []crypto.PublicKeyBytes, fee *crypto.PublicKeyBytes) bool {
	var inSum, outSum crypto.Point
	if err := sumCommitments(&inSum, inputs); err != nil {
		return false
	}
	if err := sumCommitments(&outSum, outputs); err != nil {
		return false
	}
	if fee != nil {
		if err := sumCommitments(&outSum, []crypto.PublicKeyBytes{*fee}); err != nil {
			return false
		}
	}

	inBytes, err := crypto.EncodeCompressedPoint(&inSum)
	if err != nil {
		return false
	}
	outBytes, err := crypto.EncodeCompressedPoint(&outSum)
	if err != nil {
		return false
	}
	return inBytes == outBytes
}

// ComputeBalancingBlindingFactor sum(inputBlinds) - sum(otherOutputBlinds), the mask of the last output
func ComputeBalancingBlindingFactor(inputBlinds, otherOutputBlinds []crypto.Scalar) (*crypto.Scalar, error) {
	var result crypto.Scalar
	for i := range inputBlinds {
		result.Add(&inputBlinds[i])
	}
	for i := range otherOutputBlinds {
		crypto.ScalarSubtract(&result, &result, &otherOutputBlinds[i])
	}
	if result.IsZero() {
		return nil, ErrInvalidBlindingFactor
	}
	return &result, nil
}

func RandomBlindingFactor(randomReader io.Reader) (*crypto.Scalar, error) {
	var k crypto.Scalar
	if crypto.RandomScalar(&k, randomReader) == nil {
		return nil, errors.New("could not read randomness")
	}
	return &k, nil
}

// SumAmounts Adds amounts without wrapping
func SumAmounts(amounts []uint64) uint128.Uint128 {
	sum := uint128.Zero
	for _, a := range amounts {
		sum = sum.Add64(a)
	}
	return sum
}

// VerifyAmountBalance Checks sum(inputs) == sum(outputs) + fee in plaintext
func VerifyAmountBalance(inputs, outputs []uint64, fee uint64) bool {
	return SumAmounts(inputs).Equals(SumAmounts(outputs).Add64(fee))
}
