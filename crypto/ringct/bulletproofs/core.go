package bulletproofs

import (
	"math/bits"

	"git.gammaspectra.live/WATTx/privacy/crypto"
)

func saturatingSub(a, b uint64) uint64 {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow > 0 {
		diff = 0
	}
	return diff
}

// ChallengeProducts Expands the fold challenges into the scalar each original generator ends up multiplied by.
//
// challenges[j] holds {x_j, x_j^-1}. products[i] picks x_j when bit (rounds - 1 - j) of i is set, x_j^-1 otherwise,
// so the first challenge decides the most significant bit.
// This matches the G side of the fold, the H side uses products[len - 1 - i].
func ChallengeProducts(challenges [][2]crypto.Scalar) []crypto.Scalar {
	products := []crypto.Scalar{
		*crypto.ScalarFromUint64(new(crypto.Scalar), 1),
		*crypto.ScalarFromUint64(new(crypto.Scalar), 1<<len(challenges)),
	}

	if len(challenges) > 0 {
		products[0] = challenges[0][1]
		products[1] = challenges[0][0]

		products = append(products, make([]crypto.Scalar, (1<<len(challenges))-2)...)

		for j, challenge := range challenges[1:] {
			slots := uint64((1 << (j + 2)) - 1)
			for slots > 0 {
				products[slots].Mul2(&products[slots/2], &challenge[0])
				products[slots-1].Mul2(&products[slots/2], &challenge[1])

				slots = saturatingSub(slots, 2)
			}
		}

		// Sanity check since if the above failed to populate, it'd be critical
		for _, product := range products {
			if product.IsZero() {
				panic("challenge product cannot be zero")
			}
		}
	}
	return products
}

var amountScalarBit = [2]crypto.Scalar{
	*new(crypto.Scalar).SetInt(0),
	*new(crypto.Scalar).SetInt(1),
}

// Decompose Little endian bits of amount, one scalar per bit
func Decompose(amount uint64) (out ScalarVector) {
	out = make(ScalarVector, 0, CommitmentBits)
	for range CommitmentBits {
		out = append(out, amountScalarBit[amount&1])
		amount >>= 1
	}
	return out
}

var LogCommitmentBits = bits.Len(CommitmentBits) - 1
