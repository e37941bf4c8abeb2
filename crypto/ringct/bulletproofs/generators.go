package bulletproofs

import (
	"encoding/binary"
	"fmt"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/utils"
)

// CommitmentBits The amount of bits a value within a commitment may use.
const CommitmentBits = 64

// MaxAmount Largest amount a range proof is created for, amounts are signed 64-bit values on chain
const MaxAmount = 1 << 63

// Generators Vector generators for range proofs, with the Pedersen generators of the context they were derived on
type Generators struct {
	ctx *crypto.Context

	G PointVector
	H PointVector
	// AmountH Generator amounts are committed on, the blinding generator is G
	AmountH crypto.Point
	U       crypto.Point
}

// NewGenerators Derives CommitmentBits generators for each of G and H from ctx, in parallel
func NewGenerators(ctx *crypto.Context) (*Generators, error) {
	const size = CommitmentBits

	g := &Generators{
		ctx: ctx,
		G:   make(PointVector, size),
		H:   make(PointVector, size),
	}
	g.AmountH.Set(ctx.GeneratorH())
	g.U.Set(ctx.GeneratorU())

	err := utils.SplitWork(0, size*2, func(workIndex uint64, _ int) error {
		i := workIndex / 2
		index := binary.AppendUvarint(nil, i)
		if workIndex%2 == 0 {
			if _, err := ctx.DerivePoint(&g.G[i], "BulletproofG", index); err != nil {
				return fmt.Errorf("generator G %d: %w", i, err)
			}
		} else {
			if _, err := ctx.DerivePoint(&g.H[i], "BulletproofH", index); err != nil {
				return fmt.Errorf("generator H %d: %w", i, err)
			}
		}
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Generators) Context() *crypto.Context {
	return g.ctx
}
