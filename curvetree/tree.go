package curvetree

import (
	"errors"
	"fmt"
	"sync"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/utils"
)

// NodeCacheSize Amount of nodes kept in memory by a CurveTree
const NodeCacheSize = 4096

// RebuildThreshold Batches larger than this rebuild every node instead of updating one path per output
const RebuildThreshold = 100

const metadataKey = "tree"

var ErrIntegrity = errors.New("tree integrity check failed")

type treeMetadata struct {
	OutputCount uint64                `json:"output_count"`
	Depth       uint32                `json:"depth"`
	Root        crypto.PublicKeyBytes `json:"root"`
}

// CurveTree Append-only authenticated tree over OutputTuple leaves.
// Writers are serialized, readers may run concurrently with each other.
type CurveTree struct {
	lock sync.RWMutex

	storage   Storage
	hasher    *PedersenHash
	nodeCache utils.Cache[TreeIndex, TreeNode]

	outputCount uint64
	depth       uint32

	rootLock  sync.Mutex
	root      crypto.PublicKeyBytes
	rootDirty bool
}

// NewCurveTree Opens the tree held in storage, which may be empty
func NewCurveTree(storage Storage, hasher *PedersenHash) (*CurveTree, error) {
	t := &CurveTree{
		storage:   storage,
		hasher:    hasher,
		nodeCache: utils.NewLRUCache[TreeIndex, TreeNode](NodeCacheSize),
		rootDirty: true,
	}
	if err := t.Load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *CurveTree) Hasher() *PedersenHash {
	return t.hasher
}

func (t *CurveTree) Storage() Storage {
	return t.storage
}

func (t *CurveTree) OutputCount() uint64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.outputCount
}

func (t *CurveTree) Depth() uint32 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.depth
}

func (t *CurveTree) IsEmpty() bool {
	return t.OutputCount() == 0
}

// Root Hash of the top node, or the hasher init point when empty
func (t *CurveTree) Root() (crypto.PublicKeyBytes, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.rootLocked()
}

func (t *CurveTree) rootLocked() (crypto.PublicKeyBytes, error) {
	t.rootLock.Lock()
	defer t.rootLock.Unlock()
	if !t.rootDirty {
		return t.root, nil
	}

	if t.outputCount == 0 {
		t.root = t.hasher.Init()
	} else {
		node, err := t.getNode(TreeIndex{Layer: t.depth - 1, Index: 0})
		if err != nil {
			return crypto.ZeroPublicKeyBytes, fmt.Errorf("root node: %w", err)
		}
		t.root = node.Hash
	}
	t.rootDirty = false
	return t.root, nil
}

func (t *CurveTree) markRootDirty() {
	t.rootLock.Lock()
	defer t.rootLock.Unlock()
	t.rootDirty = true
}

func (t *CurveTree) getNode(index TreeIndex) (TreeNode, error) {
	if n, ok := t.nodeCache.Get(index); ok {
		return n, nil
	}
	n, err := t.storage.GetNode(index)
	if err != nil {
		return n, err
	}
	t.nodeCache.Set(index, n)
	return n, nil
}

func (t *CurveTree) storeNode(index TreeIndex, node TreeNode) error {
	if err := t.storage.StoreNode(index, node); err != nil {
		return err
	}
	t.nodeCache.Set(index, node)
	return nil
}

func (t *CurveTree) deleteNode(index TreeIndex) error {
	t.nodeCache.Delete(index)
	return t.storage.DeleteNode(index)
}

// batch Runs do inside a storage batch. On failure the batch is aborted and in-memory state restored.
func (t *CurveTree) batch(do func() error) error {
	if err := t.storage.BeginBatch(); err != nil {
		return err
	}

	outputCount, depth := t.outputCount, t.depth
	restore := func() {
		t.outputCount, t.depth = outputCount, depth
		t.nodeCache.Clear()
		t.markRootDirty()
	}

	err := do()
	if err == nil {
		t.markRootDirty()
		// metadata is written in the same batch so it always describes the committed nodes
		err = t.saveLocked()
	}
	if err != nil {
		restore()
		if abortErr := t.storage.AbortBatch(); abortErr != nil {
			return errors.Join(err, abortErr)
		}
		return err
	}
	if err = t.storage.CommitBatch(); err != nil {
		restore()
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AddOutput Appends output and returns its leaf index
func (t *CurveTree) AddOutput(output OutputTuple) (uint64, error) {
	elements, err := output.FieldElements()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	index := t.outputCount
	if CalculateDepth(index+1) > MaxDepth {
		return 0, ErrTreeFull
	}

	err = t.batch(func() error {
		if err := t.storage.StoreOutput(index, output); err != nil {
			return err
		}
		t.outputCount++
		t.depth = CalculateDepth(t.outputCount)
		return t.appendPath(index, elements[:])
	})
	if err != nil {
		return 0, err
	}
	return index, nil
}

// AddOutputs Appends outputs in one storage batch, either all or none of them
func (t *CurveTree) AddOutputs(outputs []OutputTuple) ([]uint64, error) {
	elements := make([][ElementsPerOutput]crypto.Scalar, len(outputs))
	for i := range outputs {
		var err error
		if elements[i], err = outputs[i].FieldElements(); err != nil {
			return nil, fmt.Errorf("%w: output %d: %w", ErrInvalidOutput, i, err)
		}
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	start := t.outputCount
	if CalculateDepth(start+uint64(len(outputs))) > MaxDepth {
		return nil, ErrTreeFull
	}

	indices := make([]uint64, 0, len(outputs))
	err := t.batch(func() error {
		for i := range outputs {
			if err := t.storage.StoreOutput(start+uint64(i), outputs[i]); err != nil {
				return err
			}
			indices = append(indices, start+uint64(i))
		}

		if len(outputs) > RebuildThreshold {
			t.outputCount += uint64(len(outputs))
			t.depth = CalculateDepth(t.outputCount)
			return t.rebuildLocked()
		}

		for i := range outputs {
			t.outputCount++
			t.depth = CalculateDepth(t.outputCount)
			if err := t.appendPath(start+uint64(i), elements[i][:]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return indices, nil
}

// appendPath Updates every node from the leaf commitment holding the new output at index up to the root.
// outputCount and depth must already account for the new output.
// Hashes are additive, so a node changes by delta * G_slot when one of its inputs changes by delta.
func (t *CurveTree) appendPath(index uint64, elements []crypto.Scalar) error {
	child := TreeIndex{Layer: 0, Index: index / BranchWidth}
	slot := index % BranchWidth

	var oldElement crypto.Scalar
	base := t.hasher.Init()
	if slot > 0 {
		leaf, err := t.getNode(child)
		if err != nil {
			return fmt.Errorf("leaf %s: %w", child, err)
		}
		base = leaf.Hash
		oldElement = leaf.element()
	}
	hash, err := t.hasher.Update(base, int(slot*ElementsPerOutput), elements)
	if err != nil {
		return err
	}
	childNode := TreeNode{Hash: hash, ChildCount: slot + 1}
	if err = t.storeNode(child, childNode); err != nil {
		return err
	}
	newElement := childNode.element()

	for layer := uint32(1); layer < t.depth; layer++ {
		parent := child.Parent()
		parentNode, err := t.getNode(parent)
		if errors.Is(err, ErrNotFound) {
			// new node at the growing edge, possibly a new root over existing children
			oldElement.Zero()
			if parentNode, err = t.computeInternalNode(parent, t.outputCount); err != nil {
				return err
			}
		} else if err != nil {
			return fmt.Errorf("node %s: %w", parent, err)
		} else {
			var delta crypto.Scalar
			crypto.ScalarSubtract(&delta, &newElement, &oldElement)
			oldElement = parentNode.element()
			if parentNode.Hash, err = t.hasher.Update(parentNode.Hash, int(child.ChildOffset()), []crypto.Scalar{delta}); err != nil {
				return err
			}
			parentNode.ChildCount = max(parentNode.ChildCount, child.ChildOffset()+1)
		}

		if err = t.storeNode(parent, parentNode); err != nil {
			return err
		}
		newElement = parentNode.element()
		child = parent
	}
	return nil
}

// leafElements Field elements of every output under the leaf commitment at leafIndex
func (t *CurveTree) leafElements(leafIndex, outputCount uint64) ([]crypto.Scalar, error) {
	start := leafIndex * BranchWidth
	end := min(start+BranchWidth, outputCount)
	if start >= end {
		return nil, nil
	}
	elements := make([]crypto.Scalar, 0, (end-start)*ElementsPerOutput)
	for i := start; i < end; i++ {
		output, err := t.storage.GetOutput(i)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		e, err := output.FieldElements()
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		elements = append(elements, e[:]...)
	}
	return elements, nil
}

// childElements Field elements of the existing children of the internal node at index
func (t *CurveTree) childElements(index TreeIndex, outputCount uint64, fromStorage bool) ([]crypto.Scalar, error) {
	start := index.Index * BranchWidth
	end := min(start+BranchWidth, layerWidth(outputCount, index.Layer-1))
	if start >= end {
		return nil, nil
	}
	elements := make([]crypto.Scalar, 0, end-start)
	for i := start; i < end; i++ {
		childIndex := TreeIndex{Layer: index.Layer - 1, Index: i}
		var child TreeNode
		var err error
		if fromStorage {
			child, err = t.storage.GetNode(childIndex)
		} else {
			child, err = t.getNode(childIndex)
		}
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", childIndex, err)
		}
		elements = append(elements, child.element())
	}
	return elements, nil
}

func (t *CurveTree) computeLeafNode(leafIndex, outputCount uint64) (node TreeNode, err error) {
	elements, err := t.leafElements(leafIndex, outputCount)
	if err != nil {
		return node, err
	}
	if node.Hash, err = t.hasher.Hash(elements); err != nil {
		return node, err
	}
	node.ChildCount = uint64(len(elements) / ElementsPerOutput)
	return node, nil
}

func (t *CurveTree) computeInternalNode(index TreeIndex, outputCount uint64) (node TreeNode, err error) {
	elements, err := t.childElements(index, outputCount, false)
	if err != nil {
		return node, err
	}
	if node.Hash, err = t.hasher.Hash(elements); err != nil {
		return node, err
	}
	node.ChildCount = uint64(len(elements))
	return node, nil
}

func (t *CurveTree) GetOutput(index uint64) (OutputTuple, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if index >= t.outputCount {
		return OutputTuple{}, ErrNotFound
	}
	return t.storage.GetOutput(index)
}

func (t *CurveTree) HasOutput(index uint64) bool {
	_, err := t.GetOutput(index)
	return err == nil
}

// Rebuild Recomputes every node from the stored outputs
func (t *CurveTree) Rebuild() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.batch(t.rebuildLocked)
}

func (t *CurveTree) rebuildLocked() error {
	t.nodeCache.Clear()
	if t.outputCount == 0 {
		return nil
	}

	utils.Logf("CurveTree", "Rebuilding %d outputs, depth %d", t.outputCount, t.depth)

	for layer := uint32(0); layer < t.depth; layer++ {
		nodes := make([]TreeNode, layerWidth(t.outputCount, layer))
		err := utils.SplitWork(-1, uint64(len(nodes)), func(workIndex uint64, _ int) (err error) {
			if layer == 0 {
				nodes[workIndex], err = t.computeLeafNode(workIndex, t.outputCount)
			} else {
				nodes[workIndex], err = t.computeInternalNode(TreeIndex{Layer: layer, Index: workIndex}, t.outputCount)
			}
			return err
		}, nil)
		if err != nil {
			return fmt.Errorf("layer %d: %w", layer, err)
		}
		for i := range nodes {
			if err = t.storeNode(TreeIndex{Layer: layer, Index: uint64(i)}, nodes[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// VerifyIntegrity Recomputes every stored node from its stored inputs.
// Returns an error wrapping ErrIntegrity on the first mismatch found.
func (t *CurveTree) VerifyIntegrity() error {
	t.lock.RLock()
	defer t.lock.RUnlock()

	for layer := uint32(0); layer < t.depth; layer++ {
		err := utils.SplitWork(-1, layerWidth(t.outputCount, layer), func(workIndex uint64, _ int) error {
			index := TreeIndex{Layer: layer, Index: workIndex}
			stored, err := t.storage.GetNode(index)
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: node %s missing", ErrIntegrity, index)
			} else if err != nil {
				return err
			}

			var elements []crypto.Scalar
			if layer == 0 {
				elements, err = t.leafElements(workIndex, t.outputCount)
			} else {
				elements, err = t.childElements(index, t.outputCount, true)
			}
			if err != nil {
				return err
			}
			expected, err := t.hasher.Hash(elements)
			if err != nil {
				return err
			}
			childCount := uint64(len(elements))
			if layer == 0 {
				childCount /= ElementsPerOutput
			}
			if stored.Hash != expected || stored.ChildCount != childCount {
				return fmt.Errorf("%w: node %s hash %s expected %s", ErrIntegrity, index, stored.Hash, expected)
			}
			return nil
		}, nil)
		if err != nil {
			return err
		}
	}
	return nil
}

// Truncate Removes every output with index >= count, restoring the tree exactly as it was when it held count outputs
func (t *CurveTree) Truncate(count uint64) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if count > t.outputCount {
		return ErrInvalidTruncate
	} else if count == t.outputCount {
		return nil
	}

	oldCount, oldDepth := t.outputCount, t.depth
	err := t.batch(func() error {
		for i := count; i < oldCount; i++ {
			if err := t.storage.DeleteOutput(i); err != nil {
				return err
			}
		}
		t.outputCount = count
		t.depth = CalculateDepth(count)

		for layer := uint32(0); layer < oldDepth; layer++ {
			var from uint64
			if layer < t.depth {
				from = layerWidth(count, layer)
			}
			for i := from; i < layerWidth(oldCount, layer); i++ {
				if err := t.deleteNode(TreeIndex{Layer: layer, Index: i}); err != nil {
					return err
				}
			}
		}

		if count == 0 {
			return nil
		}

		// recompute the now partial path of the last remaining output
		index := TreeIndex{Layer: 0, Index: (count - 1) / BranchWidth}
		node, err := t.computeLeafNode(index.Index, count)
		if err != nil {
			return err
		}
		if err = t.storeNode(index, node); err != nil {
			return err
		}
		for layer := uint32(1); layer < t.depth; layer++ {
			index = index.Parent()
			if node, err = t.computeInternalNode(index, count); err != nil {
				return err
			}
			if err = t.storeNode(index, node); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	utils.Logf("CurveTree", "Truncated from %d to %d outputs, depth %d", oldCount, count, t.depth)
	return nil
}

// Save Stores output count, depth and root as metadata
func (t *CurveTree) Save() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.saveLocked()
}

func (t *CurveTree) saveLocked() error {
	root, err := t.rootLocked()
	if err != nil {
		return err
	}
	data, err := utils.MarshalJSON(treeMetadata{
		OutputCount: t.outputCount,
		Depth:       t.depth,
		Root:        root,
	})
	if err != nil {
		return err
	}
	return t.storage.StoreMetadata(metadataKey, data)
}

// Load Reads tree state from storage. Without metadata, state is derived from the stored outputs.
// A root differing from the saved one triggers a Rebuild.
func (t *CurveTree) Load() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.nodeCache.Clear()
	t.markRootDirty()

	var meta treeMetadata
	data, err := t.storage.GetMetadata(metadataKey)
	if errors.Is(err, ErrNotFound) {
		if t.outputCount, err = t.storage.OutputCount(); err != nil {
			return err
		}
		t.depth = CalculateDepth(t.outputCount)
		if t.outputCount > 0 {
			utils.Logf("CurveTree", "Loaded %d outputs without metadata, rebuilding", t.outputCount)
			return t.batch(t.rebuildLocked)
		}
		return nil
	} else if err != nil {
		return err
	}

	if err = utils.UnmarshalJSON(data, &meta); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptMetadata, err)
	}
	if meta.Depth != CalculateDepth(meta.OutputCount) {
		return fmt.Errorf("%w: depth %d for %d outputs", ErrCorruptMetadata, meta.Depth, meta.OutputCount)
	}
	t.outputCount, t.depth = meta.OutputCount, meta.Depth

	root, err := t.rootLocked()
	if err != nil || root != meta.Root {
		utils.Noticef("CurveTree", "Stored root %s does not match metadata root %s, rebuilding", root, meta.Root)
		if err = t.batch(t.rebuildLocked); err != nil {
			return err
		}
		if root, err = t.rootLocked(); err != nil {
			return err
		} else if root != meta.Root {
			return fmt.Errorf("%w: root %s expected %s", ErrCorruptMetadata, root, meta.Root)
		}
	}

	utils.Logf("CurveTree", "Loaded %d outputs, depth %d, root %s", t.outputCount, t.depth, root)
	return nil
}
