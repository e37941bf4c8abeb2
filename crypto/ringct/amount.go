package ringct

import (
	"encoding/binary"

	"git.gammaspectra.live/WATTx/privacy/crypto"
)

const EncryptedAmountSize = 8

var encryptedAmountKey = []byte("AmountEncrypt")

func amountMask(ctx *crypto.Context, secret crypto.PrivateKeyBytes) uint64 {
	key := crypto.Keccak256Var([]byte(ctx.Domain()), encryptedAmountKey, secret[:])
	return binary.LittleEndian.Uint64(key[:EncryptedAmountSize])
}

// EncryptAmount Masks amount with a key derived from the shared secret
func EncryptAmount(ctx *crypto.Context, secret crypto.PrivateKeyBytes, amount uint64) uint64 {
	return amount ^ amountMask(ctx, secret)
}

// DecryptAmount Inverse of EncryptAmount
func DecryptAmount(ctx *crypto.Context, secret crypto.PrivateKeyBytes, ciphertext uint64) uint64 {
	return ciphertext ^ amountMask(ctx, secret)
}

// Amount An encrypted amount with its commitment, as carried in an output
type Amount struct {
	Encrypted  uint64                `json:"encrypted"`
	Commitment crypto.PublicKeyBytes `json:"commitment"`
}

// Open Decrypts the amount and checks the commitment opens to it with mask
func (a Amount) Open(ctx *crypto.Context, secret crypto.PrivateKeyBytes, mask *crypto.Scalar) (uint64, bool) {
	amount := DecryptAmount(ctx, secret, a.Encrypted)
	c, err := CreateCommitment(ctx, amount, mask)
	if err != nil || c != a.Commitment {
		return 0, false
	}
	return amount, true
}
