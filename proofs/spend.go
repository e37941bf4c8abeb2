package proofs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	base58 "git.gammaspectra.live/P2Pool/monero-base58"
	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/crypto/ringct"
	"git.gammaspectra.live/WATTx/privacy/types"
	"git.gammaspectra.live/WATTx/privacy/utils"
)

const SpendProofPrefix = "SpendProof"

// MaxSpendProofInputs Upper bound of signatures accepted when decoding
const MaxSpendProofInputs = 256

var (
	ErrInvalidSpendProof = errors.New("invalid spend proof")
	ErrUnknownVersion    = errors.New("invalid spend proof: unknown version")
)

// SpendProof Proves the holder could spend every input of a transaction, one ring signature per input
type SpendProof struct {
	Version uint8

	Signatures []*ringct.RingSignature
}

func (p SpendProof) BufferLength() (n int) {
	n = utils.UVarInt64Size(len(p.Signatures))
	for _, sig := range p.Signatures {
		n += sig.BufferLength()
	}
	return n
}

func (p SpendProof) AppendBinary(preAllocatedBuf []byte) (data []byte, err error) {
	data = binary.AppendUvarint(preAllocatedBuf, uint64(len(p.Signatures)))
	for i, sig := range p.Signatures {
		if data, err = sig.AppendBinary(data); err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
	}
	return data, nil
}

func (p *SpendProof) FromReader(reader utils.ReaderAndByteReader) (err error) {
	n, err := utils.ReadLength(reader, MaxSpendProofInputs)
	if err != nil {
		return err
	}
	p.Signatures = make([]*ringct.RingSignature, n)
	for i := range p.Signatures {
		p.Signatures[i] = new(ringct.RingSignature)
		if err = p.Signatures[i].FromReader(reader); err != nil {
			return fmt.Errorf("signature %d: %w", i, err)
		}
	}
	return nil
}

// String Text form, the prefix and version followed by the base58 encoded signatures
func (p SpendProof) String() string {
	buf, err := p.AppendBinary(make([]byte, 0, p.BufferLength()))
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%sV%d", SpendProofPrefix, p.Version) + string(base58.EncodeMoneroBase58(buf))
}

// Verify Checks every signature signs prefixHash over rings[i] with keyImages[i]
func (p SpendProof) Verify(ctx *crypto.Context, prefixHash types.Hash, keyImages []crypto.KeyImage, rings []ringct.Ring) bool {
	if p.Version != 1 {
		return false
	}
	if len(keyImages) != len(rings) || len(p.Signatures) != len(rings) || len(rings) == 0 {
		return false
	}

	for i, sig := range p.Signatures {
		if sig == nil || sig.KeyImage != keyImages[i] || !slices.Equal(sig.Ring, rings[i]) {
			return false
		}
		if !sig.Verify(ctx, prefixHash) {
			return false
		}
	}

	return true
}

func NewSpendProofFromString(str string) (SpendProof, error) {
	proof := SpendProof{}

	if !strings.HasPrefix(str, SpendProofPrefix) {
		return SpendProof{}, fmt.Errorf("%w: unknown prefix", ErrInvalidSpendProof)
	}

	offset := len(SpendProofPrefix)

	if len(str) <= offset+2 || str[offset] != 'V' {
		return SpendProof{}, ErrInvalidSpendProof
	}

	switch str[offset+1] {
	case '1':
		proof.Version = 1
	default:
		return SpendProof{}, ErrUnknownVersion
	}

	offset += 2

	buf := base58.DecodeMoneroBase58([]byte(str[offset:]))
	if buf == nil {
		return SpendProof{}, fmt.Errorf("%w: invalid signature encoding", ErrInvalidSpendProof)
	}

	reader := bytes.NewReader(buf)
	if err := proof.FromReader(reader); err != nil {
		return SpendProof{}, fmt.Errorf("%w: %w", ErrInvalidSpendProof, err)
	}
	if reader.Len() != 0 {
		return SpendProof{}, fmt.Errorf("%w: %d trailing bytes", ErrInvalidSpendProof, reader.Len())
	}
	return proof, nil
}

func NewSpendProofFromSignatures(version uint8, signatures []*ringct.RingSignature) SpendProof {
	return SpendProof{
		Version:    version,
		Signatures: slices.Clone(signatures),
	}
}

// GetSpendProof Signs TxPrefixHash(txId, message) once per input. The signer of rings[i] is located by keyPairs[i] public key.
func GetSpendProof(ctx *crypto.Context, txId types.Hash, message string, version uint8, keyPairs []*crypto.KeyPair, rings []ringct.Ring, randomReader io.Reader) (SpendProof, error) {
	if version != 1 {
		return SpendProof{}, ErrUnknownVersion
	}
	if len(keyPairs) != len(rings) || len(keyPairs) == 0 {
		return SpendProof{}, errors.New("invalid ring count")
	}
	if len(rings) > MaxSpendProofInputs {
		return SpendProof{}, errors.New("too many inputs")
	}

	prefixHash := TxPrefixHash(txId, message)

	signatures := make([]*ringct.RingSignature, 0, len(rings))
	for i, ring := range rings {
		keyPair := keyPairs[i]
		realIndex := slices.IndexFunc(ring, func(m ringct.RingMember) bool {
			return keyPair.Matches(m.PublicKey)
		})
		if realIndex == -1 {
			return SpendProof{}, fmt.Errorf("input %d: %w", i, ringct.ErrKeyMismatch)
		}

		sig, err := ringct.CreateRingSignature(ctx, prefixHash, ring, realIndex, &keyPair.PrivateKey, randomReader)
		if err != nil {
			return SpendProof{}, fmt.Errorf("input %d: %w", i, err)
		}
		signatures = append(signatures, sig)
	}

	return NewSpendProofFromSignatures(version, signatures), nil
}
