package keyimage

import (
	"encoding/binary"
	"errors"
	"io"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/types"
)

var ErrNotFound = errors.New("key image not found")
var ErrAlreadySpent = errors.New("key image already spent")
var ErrDuplicateKeyImage = errors.New("duplicate key image in batch")

// MempoolHeight Height recorded for spends not yet included in a block
const MempoolHeight = -1

const EntrySize = types.HashSize + 4

// Entry Records where a key image was spent
type Entry struct {
	TxHash types.Hash `json:"tx_hash"`
	Height int32      `json:"height"`
}

func (e Entry) MarshalBinary() (data []byte, err error) {
	data = make([]byte, 0, EntrySize)
	data = append(data, e.TxHash[:]...)
	return binary.LittleEndian.AppendUint32(data, uint32(e.Height)), nil
}

func (e *Entry) UnmarshalBinary(data []byte) error {
	if len(data) != EntrySize {
		return io.ErrUnexpectedEOF
	}
	copy(e.TxHash[:], data)
	e.Height = int32(binary.LittleEndian.Uint32(data[types.HashSize:]))
	return nil
}

// Spend A key image together with its Entry, the unit of batch writes
type Spend struct {
	KeyImage crypto.KeyImage `json:"key_image"`
	Entry
}

// Store Set of spent key images.
// Implementations allow concurrent readers and serialize writers.
type Store interface {
	IsSpent(keyImage crypto.KeyImage) (bool, error)
	// Get Returns ErrNotFound when keyImage is not spent
	Get(keyImage crypto.KeyImage) (Entry, error)

	// MarkSpent Records keyImage as spent, returning false without writing when it already was
	MarkSpent(keyImage crypto.KeyImage, txHash types.Hash, height int32) (bool, error)
	// UnmarkSpent Removes keyImage, returning false when it was not spent
	UnmarkSpent(keyImage crypto.KeyImage) (bool, error)

	// WriteKeyImages Records every spend or none. Fails with ErrAlreadySpent or ErrDuplicateKeyImage.
	WriteKeyImages(spends []Spend) error
	// EraseKeyImages Removes every given key image in one write, absent ones are ignored
	EraseKeyImages(keyImages []crypto.KeyImage) error

	Count() (uint64, error)
	Close() error
}

// checkSpends Validates a batch before any write: formats, duplicates within it, and already spent entries
func checkSpends(spends []Spend, isSpent func(keyImage crypto.KeyImage) (bool, error)) error {
	seen := make(map[crypto.KeyImage]struct{}, len(spends))
	for i := range spends {
		k := spends[i].KeyImage
		if !k.IsValid() {
			return crypto.ErrInvalidKeyImage
		}
		if _, ok := seen[k]; ok {
			return ErrDuplicateKeyImage
		}
		seen[k] = struct{}{}

		if spent, err := isSpent(k); err != nil {
			return err
		} else if spent {
			return ErrAlreadySpent
		}
	}
	return nil
}
