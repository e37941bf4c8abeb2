package curvetree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/utils"
)

var ErrInvalidBranch = errors.New("invalid branch")

// TreeBranch Membership proof of one output. Layers[0] holds the field elements of every output
// sharing its leaf commitment, each following layer the elements of every child of the next node up.
type TreeBranch struct {
	LeafIndex uint64
	Layers    [][]crypto.Scalar
}

// GetBranch Builds the membership proof for the output at leafIndex against the current root
func (t *CurveTree) GetBranch(leafIndex uint64) (*TreeBranch, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if leafIndex >= t.outputCount {
		return nil, ErrNotFound
	}

	branch := &TreeBranch{
		LeafIndex: leafIndex,
		Layers:    make([][]crypto.Scalar, 0, t.depth),
	}

	index := TreeIndex{Layer: 0, Index: leafIndex / BranchWidth}
	elements, err := t.leafElements(index.Index, t.outputCount)
	if err != nil {
		return nil, err
	}
	branch.Layers = append(branch.Layers, elements)

	for layer := uint32(1); layer < t.depth; layer++ {
		index = index.Parent()
		if elements, err = t.childElements(index, t.outputCount, false); err != nil {
			return nil, err
		}
		branch.Layers = append(branch.Layers, elements)
	}
	return branch, nil
}

// VerifyBranch Checks output sits at branch.LeafIndex in the tree with the given root.
// The output elements must be found at their slot on the leaf layer, and every recomputed
// hash at its slot on the layer above, up to a final hash equal to root.
func VerifyBranch(hasher *PedersenHash, output OutputTuple, branch *TreeBranch, root crypto.PublicKeyBytes) bool {
	if branch == nil || len(branch.Layers) == 0 || len(branch.Layers) > MaxDepth {
		return false
	}

	elements, err := output.FieldElements()
	if err != nil {
		return false
	}

	leaf := branch.Layers[0]
	slot := branch.LeafIndex % BranchWidth
	if len(leaf) > LeafLayerWidth || len(leaf)%ElementsPerOutput != 0 || uint64(len(leaf)) < (slot+1)*ElementsPerOutput {
		return false
	}
	for i := range elements {
		if !leaf[slot*ElementsPerOutput+uint64(i)].Equals(&elements[i]) {
			return false
		}
	}

	current, err := hasher.Hash(leaf)
	if err != nil {
		return false
	}

	index := branch.LeafIndex / BranchWidth
	for _, layer := range branch.Layers[1:] {
		slot = index % BranchWidth
		if len(layer) > BranchWidth || uint64(len(layer)) <= slot {
			return false
		}
		e := hashElement(current)
		if !layer[slot].Equals(&e) {
			return false
		}
		if current, err = hasher.Hash(layer); err != nil {
			return false
		}
		index /= BranchWidth
	}

	// the last layer must hold the single root node
	if index != 0 {
		return false
	}

	return current == root
}

func (b *TreeBranch) BufferLength() (n int) {
	n = 8 + utils.UVarInt64Size(len(b.Layers))
	for _, layer := range b.Layers {
		n += utils.UVarInt64Size(len(layer)) + len(layer)*crypto.PrivateKeySize
	}
	return n
}

func (b *TreeBranch) AppendBinary(preAllocatedBuf []byte) (data []byte, err error) {
	if len(b.Layers) > MaxDepth {
		return nil, ErrInvalidBranch
	}
	data = binary.LittleEndian.AppendUint64(preAllocatedBuf, b.LeafIndex)
	data = binary.AppendUvarint(data, uint64(len(b.Layers)))
	for _, layer := range b.Layers {
		data = binary.AppendUvarint(data, uint64(len(layer)))
		for i := range layer {
			e := layer[i].Bytes()
			data = append(data, e[:]...)
		}
	}
	return data, nil
}

func (b *TreeBranch) MarshalBinary() (data []byte, err error) {
	return utils.MarshalBinary(b)
}

func (b *TreeBranch) FromReader(reader utils.ReaderAndByteReader) (err error) {
	var buf [crypto.PrivateKeySize]byte
	if _, err = io.ReadFull(reader, buf[:8]); err != nil {
		return err
	}
	b.LeafIndex = binary.LittleEndian.Uint64(buf[:8])

	layers, err := utils.ReadLength(reader, MaxDepth)
	if err != nil {
		return err
	}
	b.Layers = make([][]crypto.Scalar, 0, layers)
	for l := 0; l < layers; l++ {
		limit := BranchWidth
		if l == 0 {
			limit = LeafLayerWidth
		}
		n, err := utils.ReadLength(reader, limit)
		if err != nil {
			return fmt.Errorf("layer %d: %w", l, err)
		}
		layer := make([]crypto.Scalar, n)
		for i := range layer {
			if _, err = io.ReadFull(reader, buf[:]); err != nil {
				return err
			}
			if overflow := layer[i].SetBytes(&buf); overflow != 0 {
				return fmt.Errorf("layer %d: %w", l, crypto.ErrInvalidScalar)
			}
		}
		b.Layers = append(b.Layers, layer)
	}
	return nil
}
