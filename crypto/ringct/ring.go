package ringct

import (
	"encoding/binary"
	"errors"
	"io"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/types"
	"git.gammaspectra.live/WATTx/privacy/utils"
)

// MinRingSize A ring needs at least one decoy besides the real member
const MinRingSize = 2

// MaxRingSize Upper bound accepted when decoding rings
const MaxRingSize = 1024

var ErrInvalidRing = errors.New("invalid ring")
var ErrInvalidRealIndex = errors.New("invalid real index")

// RingMember An output that may be the one being spent
type RingMember struct {
	OutPoint  types.OutPoint        `json:"outpoint"`
	PublicKey crypto.PublicKeyBytes `json:"public_key"`
	// Commitment Amount commitment for confidential rings, zero when absent
	Commitment crypto.PublicKeyBytes `json:"commitment"`
}

func (m RingMember) HasCommitment() bool {
	return !m.Commitment.IsZero()
}

func (m RingMember) BufferLength() int {
	if m.HasCommitment() {
		return types.OutPointSize + crypto.PublicKeySize + 1 + crypto.PublicKeySize
	}
	return types.OutPointSize + crypto.PublicKeySize + 1
}

func (m RingMember) AppendBinary(preAllocatedBuf []byte) (data []byte, err error) {
	if m.HasCommitment() && !m.Commitment.IsValid() {
		return nil, crypto.ErrInvalidPoint
	}
	buf := m.OutPoint.AppendBinary(preAllocatedBuf)
	buf = append(buf, m.PublicKey[:]...)
	if m.HasCommitment() {
		buf = append(buf, 1)
		buf = append(buf, m.Commitment[:]...)
	} else {
		buf = append(buf, 0)
	}
	return buf, nil
}

func (m *RingMember) FromReader(reader utils.ReaderAndByteReader) (err error) {
	if err = m.OutPoint.FromReader(reader); err != nil {
		return err
	}
	if _, err = io.ReadFull(reader, m.PublicKey[:]); err != nil {
		return err
	}
	hasCommitment, err := reader.ReadByte()
	if err != nil {
		return err
	}
	switch hasCommitment {
	case 0:
		m.Commitment = crypto.ZeroPublicKeyBytes
	case 1:
		if _, err = io.ReadFull(reader, m.Commitment[:]); err != nil {
			return err
		}
		if !m.Commitment.IsValid() {
			return crypto.ErrInvalidPoint
		}
	default:
		return errors.New("invalid commitment flag")
	}
	return nil
}

// Ring An ordered list of members, one of which is real at a position only the signer knows
type Ring []RingMember

func (r Ring) Validate() error {
	if len(r) < MinRingSize {
		return ErrInvalidRing
	}
	for i := range r {
		if !r[i].PublicKey.IsValid() {
			return ErrInvalidRing
		}
	}
	return nil
}

func (r Ring) Contains(o types.OutPoint) bool {
	for i := range r {
		if r[i].OutPoint == o {
			return true
		}
	}
	return false
}

func (r Ring) BufferLength() (n int) {
	n = utils.UVarInt64Size(len(r))
	for i := range r {
		n += r[i].BufferLength()
	}
	return n
}

func (r Ring) AppendBinary(preAllocatedBuf []byte) (data []byte, err error) {
	buf := binary.AppendUvarint(preAllocatedBuf, uint64(len(r)))
	for i := range r {
		if buf, err = r[i].AppendBinary(buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (r *Ring) FromReader(reader utils.ReaderAndByteReader) (err error) {
	n, err := utils.ReadLength(reader, MaxRingSize)
	if err != nil {
		return err
	}
	ring := make(Ring, n)
	for i := range ring {
		if err = ring[i].FromReader(reader); err != nil {
			return err
		}
	}
	*r = ring
	return nil
}

// points Decodes every public key, failing on the first invalid encoding
func (r Ring) points() ([]crypto.Point, error) {
	points := make([]crypto.Point, len(r))
	for i := range r {
		if _, err := crypto.DecodeCompressedPoint(&points[i], r[i].PublicKey); err != nil {
			return nil, err
		}
	}
	return points, nil
}
