package curvetree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"git.gammaspectra.live/WATTx/privacy/utils"
	"go.etcd.io/bbolt"
)

var boltBucket = []byte("curvetree")

var ErrForeignTx = errors.New("not a write transaction on the storage database")

const (
	boltPrefixNode     = 'N'
	boltPrefixOutput   = 'O'
	boltPrefixMetadata = 'M'
)

func boltNodeKey(index TreeIndex) []byte {
	k := make([]byte, 0, 1+4+8)
	k = append(k, boltPrefixNode)
	k = binary.BigEndian.AppendUint32(k, index.Layer)
	return binary.BigEndian.AppendUint64(k, index.Index)
}

func boltOutputKey(index uint64) []byte {
	k := make([]byte, 0, 1+8)
	k = append(k, boltPrefixOutput)
	return binary.BigEndian.AppendUint64(k, index)
}

func boltMetadataKey(key string) []byte {
	return append([]byte{boltPrefixMetadata}, key...)
}

// BoltStorage Persistent Storage on a bbolt database. All entries live in one bucket under prefixed keys.
// A batch is a single bbolt write transaction, or the caller transaction set by RunInTx.
type BoltStorage struct {
	db    *bbolt.DB
	owned bool

	lock  sync.Mutex
	batch *bbolt.Tx
	// shared Caller owned write transaction, see RunInTx
	shared *bbolt.Tx
}

// OpenBoltStorage Opens or creates the database at path, closed together with the storage
func OpenBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second * 5})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s, err := NewBoltStorage(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	utils.Logf("CurveTree", "Opened bolt storage at %s", path)
	return s, nil
}

// NewBoltStorage Uses an already open database. Close does not close db.
func NewBoltStorage(db *bbolt.DB) (*BoltStorage, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltStorage{db: db}, nil
}

// current Transaction every access must go through, if any. Must hold lock.
func (s *BoltStorage) current() *bbolt.Tx {
	if s.batch != nil {
		return s.batch
	}
	return s.shared
}

func (s *BoltStorage) view(fn func(b *bbolt.Bucket) error) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if tx := s.current(); tx != nil {
		return fn(tx.Bucket(boltBucket))
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(tx.Bucket(boltBucket))
	})
}

func (s *BoltStorage) update(fn func(b *bbolt.Bucket) error) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if tx := s.current(); tx != nil {
		return fn(tx.Bucket(boltBucket))
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(tx.Bucket(boltBucket))
	})
}

func (s *BoltStorage) get(key []byte) (value []byte, err error) {
	err = s.view(func(b *bbolt.Bucket) error {
		if v := b.Get(key); v != nil {
			// bolt values are only valid during the transaction
			value = slices.Clone(v)
			return nil
		}
		return ErrNotFound
	})
	return value, err
}

func (s *BoltStorage) put(key, value []byte) error {
	return s.update(func(b *bbolt.Bucket) error {
		return b.Put(key, value)
	})
}

func (s *BoltStorage) delete(key []byte) error {
	return s.update(func(b *bbolt.Bucket) error {
		return b.Delete(key)
	})
}

func (s *BoltStorage) StoreNode(index TreeIndex, node TreeNode) error {
	data, _ := node.MarshalBinary()
	return s.put(boltNodeKey(index), data)
}

func (s *BoltStorage) GetNode(index TreeIndex) (node TreeNode, err error) {
	data, err := s.get(boltNodeKey(index))
	if err != nil {
		return node, err
	}
	if err = node.UnmarshalBinary(data); err != nil {
		return node, fmt.Errorf("node %s: %w", index, err)
	}
	return node, nil
}

func (s *BoltStorage) DeleteNode(index TreeIndex) error {
	return s.delete(boltNodeKey(index))
}

func (s *BoltStorage) StoreOutput(index uint64, output OutputTuple) error {
	data, _ := output.MarshalBinary()
	return s.put(boltOutputKey(index), data)
}

func (s *BoltStorage) GetOutput(index uint64) (output OutputTuple, err error) {
	data, err := s.get(boltOutputKey(index))
	if err != nil {
		return output, err
	}
	if err = output.UnmarshalBinary(data); err != nil {
		return output, fmt.Errorf("output %d: %w", index, err)
	}
	return output, nil
}

func (s *BoltStorage) DeleteOutput(index uint64) error {
	return s.delete(boltOutputKey(index))
}

// OutputCount Reads the last output key, outputs being contiguous
func (s *BoltStorage) OutputCount() (count uint64, err error) {
	err = s.view(func(b *bbolt.Bucket) error {
		c := b.Cursor()
		k, _ := c.Seek([]byte{boltPrefixOutput + 1})
		if k == nil {
			k, _ = c.Last()
		} else {
			k, _ = c.Prev()
		}
		if len(k) == 9 && k[0] == boltPrefixOutput {
			count = binary.BigEndian.Uint64(k[1:]) + 1
		}
		return nil
	})
	return count, err
}

func (s *BoltStorage) StoreMetadata(key string, value []byte) error {
	return s.put(boltMetadataKey(key), value)
}

func (s *BoltStorage) GetMetadata(key string) ([]byte, error) {
	return s.get(boltMetadataKey(key))
}

// RunInTx Runs fn with every storage access inside tx, which must be a write transaction on the same database.
// Batches begun by fn neither commit nor roll back tx, that is left to the caller.
// A failed batch leaves its writes in tx, so the caller must roll tx back when fn fails.
func (s *BoltStorage) RunInTx(tx *bbolt.Tx, fn func() error) error {
	if tx.DB() != s.db || !tx.Writable() {
		return ErrForeignTx
	}
	s.lock.Lock()
	if s.batch != nil || s.shared != nil {
		s.lock.Unlock()
		return ErrBatchInProgress
	}
	s.shared = tx
	s.lock.Unlock()

	defer func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		s.shared = nil
		s.batch = nil
	}()
	return fn()
}

func (s *BoltStorage) BeginBatch() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.batch != nil {
		return ErrBatchInProgress
	}
	if s.shared != nil {
		s.batch = s.shared
		return nil
	}
	tx, err := s.db.Begin(true)
	if err != nil {
		return err
	}
	s.batch = tx
	return nil
}

func (s *BoltStorage) CommitBatch() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.batch == nil {
		return ErrNoBatch
	}
	tx := s.batch
	s.batch = nil
	if tx == s.shared {
		return nil
	}
	return tx.Commit()
}

func (s *BoltStorage) AbortBatch() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.batch == nil {
		return ErrNoBatch
	}
	tx := s.batch
	s.batch = nil
	if tx == s.shared {
		return nil
	}
	return tx.Rollback()
}

func (s *BoltStorage) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.batch != nil && s.batch != s.shared {
		_ = s.batch.Rollback()
	}
	s.batch = nil
	if s.owned {
		return s.db.Close()
	}
	return nil
}
