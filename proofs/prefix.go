package proofs

import (
	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/types"
)

// TxPrefixHash Message signed by proofs about txId
func TxPrefixHash(txId types.Hash, message string) types.Hash {
	return crypto.Keccak256Var(txId[:], []byte(message))
}
