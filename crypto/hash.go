package crypto

import (
	"hash"

	"git.gammaspectra.live/WATTx/privacy/types"
	"golang.org/x/crypto/sha3"
)

func NewKeccak256() hash.Hash {
	return sha3.NewLegacyKeccak256()
}

func Keccak256Var[T ~string | ~[]byte](data ...T) (result types.Hash) {
	h := NewKeccak256()
	for _, b := range data {
		_, _ = h.Write([]byte(b))
	}
	h.Sum(result[:0])

	return
}

func Keccak256[T ~string | ~[]byte](data T) (result types.Hash) {
	h := NewKeccak256()
	_, _ = h.Write([]byte(data))
	h.Sum(result[:0])

	return
}

// HashToScalar Keccak-256 of the concatenated data, reduced modulo the group order
func HashToScalar(dst *Scalar, data ...[]byte) *Scalar {
	h := Keccak256Var(data...)
	dst.SetBytes((*[32]byte)(&h))
	return dst
}
