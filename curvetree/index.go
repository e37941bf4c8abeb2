package curvetree

import (
	"encoding/binary"
	"fmt"
	"io"

	"git.gammaspectra.live/WATTx/privacy/crypto"
)

// TreeIndex Position of a node. Layer 0 holds the leaf commitments.
type TreeIndex struct {
	Layer uint32 `json:"layer"`
	Index uint64 `json:"index"`
}

func (i TreeIndex) Parent() TreeIndex {
	return TreeIndex{
		Layer: i.Layer + 1,
		Index: i.Index / BranchWidth,
	}
}

// ChildOffset Slot of this node within its parent
func (i TreeIndex) ChildOffset() uint64 {
	return i.Index % BranchWidth
}

func (i TreeIndex) String() string {
	return fmt.Sprintf("%d/%d", i.Layer, i.Index)
}

const TreeNodeSize = crypto.PublicKeySize + 8

// TreeNode A Pedersen hash over up to BranchWidth children. Nodes at the growing edge are partial.
type TreeNode struct {
	Hash       crypto.PublicKeyBytes `json:"hash"`
	ChildCount uint64                `json:"child_count"`
}

// element Field element a parent hashes for this node, the x coordinate of Hash
func (n TreeNode) element() (s crypto.Scalar) {
	return hashElement(n.Hash)
}

func hashElement(hash crypto.PublicKeyBytes) (s crypto.Scalar) {
	s.SetByteSlice(hash[1:])
	return s
}

func (n TreeNode) MarshalBinary() (data []byte, err error) {
	data = make([]byte, 0, TreeNodeSize)
	data = append(data, n.Hash[:]...)
	return binary.LittleEndian.AppendUint64(data, n.ChildCount), nil
}

func (n *TreeNode) UnmarshalBinary(data []byte) error {
	if len(data) != TreeNodeSize {
		return io.ErrUnexpectedEOF
	}
	copy(n.Hash[:], data)
	n.ChildCount = binary.LittleEndian.Uint64(data[crypto.PublicKeySize:])
	return nil
}
