package curvetree

import (
	"encoding/binary"
	"fmt"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/utils"
)

// PedersenHash Hashes up to LeafLayerWidth field elements as Init + sum(e_i * G_i)
type PedersenHash struct {
	ctx        *crypto.Context
	init       crypto.Point
	generators []crypto.Point
}

func NewPedersenHash(ctx *crypto.Context) (*PedersenHash, error) {
	h := &PedersenHash{
		ctx:        ctx,
		generators: make([]crypto.Point, LeafLayerWidth),
	}
	if _, err := ctx.DerivePoint(&h.init, "PedersenInit"); err != nil {
		return nil, fmt.Errorf("init generator: %w", err)
	}

	err := utils.SplitWork(-2, uint64(len(h.generators)), func(workIndex uint64, _ int) error {
		if _, err := ctx.DerivePoint(&h.generators[workIndex], "PedersenGenerator", binary.AppendUvarint(nil, workIndex)); err != nil {
			return fmt.Errorf("generator %d: %w", workIndex, err)
		}
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (h *PedersenHash) Context() *crypto.Context {
	return h.ctx
}

// Init Hash of the empty input, also the root of an empty tree
func (h *PedersenHash) Init() crypto.PublicKeyBytes {
	k, _ := crypto.EncodeCompressedPoint(&h.init)
	return k
}

func (h *PedersenHash) Hash(elements []crypto.Scalar) (crypto.PublicKeyBytes, error) {
	if len(elements) > len(h.generators) {
		return crypto.ZeroPublicKeyBytes, ErrTooManyElements
	}
	var result, term crypto.Point
	result.Set(&h.init)
	for i := range elements {
		if elements[i].IsZero() {
			continue
		}
		crypto.ScalarMult(&term, &elements[i], &h.generators[i])
		crypto.AddPoints(&result, &result, &term)
	}
	return crypto.EncodeCompressedPoint(&result)
}

// Update Returns hash + sum(delta_j * G_{offset+j}), the hash of the same input with elements at offset shifted by delta
func (h *PedersenHash) Update(hash crypto.PublicKeyBytes, offset int, delta []crypto.Scalar) (crypto.PublicKeyBytes, error) {
	if offset < 0 || offset+len(delta) > len(h.generators) {
		return crypto.ZeroPublicKeyBytes, ErrTooManyElements
	}
	result, err := hash.Point()
	if err != nil {
		return crypto.ZeroPublicKeyBytes, err
	}
	var term crypto.Point
	for j := range delta {
		if delta[j].IsZero() {
			continue
		}
		crypto.ScalarMult(&term, &delta[j], &h.generators[offset+j])
		crypto.AddPoints(result, result, &term)
	}
	return crypto.EncodeCompressedPoint(result)
}
