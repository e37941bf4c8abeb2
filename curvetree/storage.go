package curvetree

// Storage Persistence for tree nodes, outputs and metadata.
// Writes done between BeginBatch and CommitBatch become visible to other readers atomically, or not at all after AbortBatch.
// Reads done inside a batch see its pending writes.
// Getters return ErrNotFound when the key is absent.
type Storage interface {
	StoreNode(index TreeIndex, node TreeNode) error
	GetNode(index TreeIndex) (TreeNode, error)
	DeleteNode(index TreeIndex) error

	StoreOutput(index uint64, output OutputTuple) error
	GetOutput(index uint64) (OutputTuple, error)
	DeleteOutput(index uint64) error
	// OutputCount Amount of stored outputs. Outputs are stored contiguously from index 0.
	OutputCount() (uint64, error)

	StoreMetadata(key string, value []byte) error
	GetMetadata(key string) ([]byte, error)

	BeginBatch() error
	CommitBatch() error
	AbortBatch() error

	Close() error
}
