package ringct

import (
	"math"
	"testing"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var confidentialContext = crypto.MustNewContext(crypto.ConfidentialDomain, 0)

func TestCommitmentHomomorphism(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()

	amounts := [][2]uint64{
		{0, 0},
		{0, 1},
		{1, 1},
		{100, 1_000_000},
		{math.MaxUint32, math.MaxUint32},
		{1 << 62, 1<<62 - 1},
	}

	for _, pair := range amounts {
		r1, err := RandomBlindingFactor(rng)
		require.NoError(t, err)
		r2, err := RandomBlindingFactor(rng)
		require.NoError(t, err)

		c1, err := CreateCommitment(confidentialContext, pair[0], r1)
		require.NoError(t, err)
		c2, err := CreateCommitment(confidentialContext, pair[1], r2)
		require.NoError(t, err)

		var sumBlind crypto.Scalar
		sumBlind.Add2(r1, r2)
		expected, err := CreateCommitment(confidentialContext, pair[0]+pair[1], &sumBlind)
		require.NoError(t, err)

		p1, err := c1.Point()
		require.NoError(t, err)
		p2, err := c2.Point()
		require.NoError(t, err)

		sum, err := crypto.EncodeCompressedPoint(crypto.AddPoints(new(crypto.Point), p1, p2))
		require.NoError(t, err)
		assert.Equal(t, expected, sum, "amounts %d + %d", pair[0], pair[1])
	}
}

func TestCommitmentInvalidBlinding(t *testing.T) {
	_, err := CreateCommitment(confidentialContext, 1, new(crypto.Scalar))
	assert.ErrorIs(t, err, ErrInvalidBlindingFactor)

	_, err = CreateCommitment(confidentialContext, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidBlindingFactor)
}

func TestCommitmentBalance(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()

	inAmounts := []uint64{300, 700}
	outAmounts := []uint64{400, 550}
	const fee = 50

	inBlinds := make([]crypto.Scalar, len(inAmounts))
	inputs := make([]crypto.PublicKeyBytes, len(inAmounts))
	for i, amount := range inAmounts {
		r, err := RandomBlindingFactor(rng)
		require.NoError(t, err)
		inBlinds[i] = *r
		inputs[i], err = CreateCommitment(confidentialContext, amount, r)
		require.NoError(t, err)
	}

	firstBlind, err := RandomBlindingFactor(rng)
	require.NoError(t, err)
	lastBlind, err := ComputeBalancingBlindingFactor(inBlinds, []crypto.Scalar{*firstBlind})
	require.NoError(t, err)

	makeOutputs := func(amounts []uint64) []crypto.PublicKeyBytes {
		first, err := CreateCommitment(confidentialContext, amounts[0], firstBlind)
		require.NoError(t, err)
		last, err := CreateCommitment(confidentialContext, amounts[1], lastBlind)
		require.NoError(t, err)
		return []crypto.PublicKeyBytes{first, last}
	}

	feeCommitment, err := CalculateFeeCommitment(confidentialContext, fee)
	require.NoError(t, err)

	assert.True(t, VerifyAmountBalance(inAmounts, outAmounts, fee))
	assert.True(t, VerifyCommitmentBalance(inputs, makeOutputs(outAmounts), &feeCommitment))
	assert.False(t, VerifyCommitmentBalance(inputs, makeOutputs(outAmounts), nil))

	assert.False(t, VerifyCommitmentBalance(inputs, makeOutputs([]uint64{401, 550}), &feeCommitment))
	assert.False(t, VerifyCommitmentBalance(inputs, makeOutputs([]uint64{400, 549}), &feeCommitment))

	// fee folded into the amounts
	assert.True(t, VerifyCommitmentBalance(inputs, append(makeOutputs(outAmounts), feeCommitment), nil))

	malformed := append([]crypto.PublicKeyBytes{}, inputs...)
	malformed[0][0] = 0x07
	assert.False(t, VerifyCommitmentBalance(malformed, makeOutputs(outAmounts), &feeCommitment))

	// sums at infinity have no encoding
	assert.False(t, VerifyCommitmentBalance(nil, nil, nil))
}

func TestComputeBalancingBlindingFactor(t *testing.T) {
	var one crypto.Scalar
	one.SetInt(1)

	_, err := ComputeBalancingBlindingFactor([]crypto.Scalar{one}, []crypto.Scalar{one})
	assert.ErrorIs(t, err, ErrInvalidBlindingFactor)

	var two, three crypto.Scalar
	two.SetInt(2)
	three.SetInt(3)
	r, err := ComputeBalancingBlindingFactor([]crypto.Scalar{three}, []crypto.Scalar{two})
	require.NoError(t, err)
	assert.True(t, r.Equals(&one))
}

func TestVerifyAmountBalanceOverflow(t *testing.T) {
	inputs := []uint64{math.MaxUint64, math.MaxUint64}
	outputs := []uint64{math.MaxUint64, math.MaxUint64 - 10}
	assert.True(t, VerifyAmountBalance(inputs, outputs, 10))
	assert.False(t, VerifyAmountBalance(inputs, outputs, 9))
	assert.Equal(t, "36893488147419103230", SumAmounts(inputs).String())
}

func TestAmountEncryption(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()

	var secret, otherSecret crypto.PrivateKeyBytes
	_, _ = rng.Read(secret[:])
	_, _ = rng.Read(otherSecret[:])

	for _, amount := range []uint64{0, 1, 12345678, math.MaxUint64} {
		encrypted := EncryptAmount(confidentialContext, secret, amount)
		assert.Equal(t, amount, DecryptAmount(confidentialContext, secret, encrypted))
		assert.NotEqual(t, amount, DecryptAmount(confidentialContext, otherSecret, encrypted))
	}

	mask, err := RandomBlindingFactor(rng)
	require.NoError(t, err)
	commitment, err := CreateCommitment(confidentialContext, 424242, mask)
	require.NoError(t, err)

	a := Amount{
		Encrypted:  EncryptAmount(confidentialContext, secret, 424242),
		Commitment: commitment,
	}
	amount, ok := a.Open(confidentialContext, secret, mask)
	assert.True(t, ok)
	assert.Equal(t, uint64(424242), amount)

	_, ok = a.Open(confidentialContext, otherSecret, mask)
	assert.False(t, ok)
}
