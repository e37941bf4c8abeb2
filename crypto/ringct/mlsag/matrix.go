package mlsag

import (
	"errors"

	"git.gammaspectra.live/WATTx/privacy/crypto/ringct"
)

// MaxInputs Upper bound accepted when decoding a matrix
const MaxInputs = 256

// RingMatrix One ring per input. All rings have the same size so columns line up.
type RingMatrix []ringct.Ring

// MemberLen Amount of columns
func (r RingMatrix) MemberLen() int {
	return len(r[0])
}

var ErrInvalidRing = errors.New("invalid ring")

func NewRingMatrix(rings ...ringct.Ring) (RingMatrix, error) {
	if len(rings) == 0 || len(rings) > MaxInputs {
		return nil, ErrInvalidRing
	}

	for _, ring := range rings {
		if len(ring) != len(rings[0]) {
			return nil, ErrInvalidRing
		}
		if ring.Validate() != nil {
			return nil, ErrInvalidRing
		}
	}

	return rings, nil
}

func (r RingMatrix) Validate() error {
	_, err := NewRingMatrix(r...)
	return err
}
