package bulletproofs

import (
	"encoding/binary"
	"errors"
	"io"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/utils"
)

// MaxAggregatedProofs Count is carried in a single byte
const MaxAggregatedProofs = 255

var ErrInvalidAggregation = errors.New("invalid aggregated range proof")

// CreateAggregatedRangeProof Concatenates one version 1 proof per output as
//
//	0x02 | count | (u16 length | proof)...
func (g *Generators) CreateAggregatedRangeProof(amounts []uint64, blindings []*crypto.Scalar, commitments []crypto.PublicKeyBytes, randomReader io.Reader) ([]byte, error) {
	count := len(amounts)
	if count == 0 || count > MaxAggregatedProofs || len(blindings) != count || len(commitments) != count {
		return nil, ErrInvalidAggregation
	}

	buf := make([]byte, 0, 2+count*(2+RangeProofHeaderSize+1+2*LogCommitmentBits*crypto.PublicKeySize+2*crypto.PrivateKeySize))
	buf = append(buf, AggregatedRangeProofVersion, uint8(count))

	for i := range amounts {
		proof, err := g.CreateRangeProof(amounts[i], blindings[i], commitments[i], randomReader)
		if err != nil {
			return nil, err
		}
		if len(proof) > 0xFFFF {
			return nil, ErrInvalidAggregation
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(proof)))
		buf = append(buf, proof...)
	}
	return buf, nil
}

// SplitAggregatedRangeProof Returns the version 1 proofs contained in proof
func SplitAggregatedRangeProof(proof []byte) ([][]byte, error) {
	if len(proof) < 2 || proof[0] != AggregatedRangeProofVersion {
		return nil, ErrInvalidVersion
	}
	count := int(proof[1])
	if count == 0 {
		return nil, ErrInvalidAggregation
	}
	proof = proof[2:]

	proofs := make([][]byte, 0, count)
	for range count {
		if len(proof) < 2 {
			return nil, io.ErrUnexpectedEOF
		}
		n := int(binary.LittleEndian.Uint16(proof))
		proof = proof[2:]
		if len(proof) < n {
			return nil, io.ErrUnexpectedEOF
		}
		proofs = append(proofs, proof[:n])
		proof = proof[n:]
	}
	if len(proof) != 0 {
		return nil, ErrInvalidAggregation
	}
	return proofs, nil
}

// VerifyAggregatedRangeProof Verifies every contained proof against its commitment, in parallel.
// The legacy placeholder is accepted. No commitments never verify.
func (g *Generators) VerifyAggregatedRangeProof(commitments []crypto.PublicKeyBytes, proof []byte) bool {
	if len(commitments) == 0 {
		return false
	}
	if len(proof) == LegacyProofSize && proof[LegacyProofSize-1] == legacyAggregatedRangeProofTag {
		return true
	}

	proofs, err := SplitAggregatedRangeProof(proof)
	if err != nil {
		return false
	}
	if len(proofs) != len(commitments) {
		return false
	}

	return utils.SplitWorkAll(0, uint64(len(proofs)), func(workIndex uint64) bool {
		return g.VerifyRangeProof(commitments[workIndex], proofs[workIndex])
	})
}
