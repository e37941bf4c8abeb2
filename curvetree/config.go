package curvetree

import "errors"

const (
	// ElementsPerOutput Field elements an OutputTuple flattens to: x and y of each of its three points
	ElementsPerOutput = 6
	// BranchWidth Children per node, on both the leaf layer (outputs) and internal layers (nodes)
	BranchWidth = 38
	// LeafLayerWidth Field elements hashed by one leaf commitment
	LeafLayerWidth = ElementsPerOutput * BranchWidth
	// MaxDepth Maximum amount of layers, root included
	MaxDepth = 32
)

var ErrNotFound = errors.New("not found")
var ErrInvalidOutput = errors.New("invalid output tuple")
var ErrTooManyElements = errors.New("too many elements for hasher")
var ErrTreeFull = errors.New("tree depth exceeds maximum")
var ErrCorruptMetadata = errors.New("corrupt tree metadata")
var ErrInvalidTruncate = errors.New("invalid truncate count")

// CalculateDepth Amount of layers a tree holding outputCount outputs has.
// Layer 0 holds leaf commitments and the last layer holds the single root node.
func CalculateDepth(outputCount uint64) uint32 {
	if outputCount == 0 {
		return 0
	}

	nodes := layerWidth(outputCount, 0)
	depth := uint32(1)
	for nodes > 1 {
		nodes = ceilDiv(nodes, BranchWidth)
		depth++
	}
	return depth
}

// layerWidth Amount of nodes present at layer for outputCount outputs
func layerWidth(outputCount uint64, layer uint32) uint64 {
	nodes := ceilDiv(outputCount, BranchWidth)
	for l := uint32(0); l < layer; l++ {
		nodes = ceilDiv(nodes, BranchWidth)
	}
	return nodes
}

func ceilDiv(a, b uint64) uint64 {
	if a%b != 0 {
		return a/b + 1
	}
	return a / b
}
