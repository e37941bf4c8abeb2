package curvetree

import (
	"errors"
	"slices"
	"sync"

	"github.com/dolthub/swiss"
)

var ErrNoBatch = errors.New("no batch in progress")
var ErrBatchInProgress = errors.New("batch already in progress")

type pendingEntry[V any] struct {
	Value   V
	Deleted bool
}

// stagedMap A swiss map with a write overlay that is either merged or dropped
type stagedMap[K comparable, V any] struct {
	committed *swiss.Map[K, V]
	pending   *swiss.Map[K, pendingEntry[V]]
}

func newStagedMap[K comparable, V any](size uint32) stagedMap[K, V] {
	return stagedMap[K, V]{
		committed: swiss.NewMap[K, V](size),
	}
}

func (m *stagedMap[K, V]) get(key K) (v V, ok bool) {
	if m.pending != nil {
		if e, ok := m.pending.Get(key); ok {
			if e.Deleted {
				return v, false
			}
			return e.Value, true
		}
	}
	return m.committed.Get(key)
}

func (m *stagedMap[K, V]) put(key K, value V) {
	if m.pending != nil {
		m.pending.Put(key, pendingEntry[V]{Value: value})
		return
	}
	m.committed.Put(key, value)
}

func (m *stagedMap[K, V]) delete(key K) {
	if m.pending != nil {
		m.pending.Put(key, pendingEntry[V]{Deleted: true})
		return
	}
	m.committed.Delete(key)
}

func (m *stagedMap[K, V]) begin() {
	m.pending = swiss.NewMap[K, pendingEntry[V]](64)
}

func (m *stagedMap[K, V]) commit() {
	m.pending.Iter(func(k K, e pendingEntry[V]) (stop bool) {
		if e.Deleted {
			m.committed.Delete(k)
		} else {
			m.committed.Put(k, e.Value)
		}
		return false
	})
	m.pending = nil
}

func (m *stagedMap[K, V]) abort() {
	m.pending = nil
}

// MemoryStorage Volatile Storage. Batches are staged and merged on commit.
type MemoryStorage struct {
	lock    sync.RWMutex
	batch   bool
	nodes   stagedMap[TreeIndex, TreeNode]
	outputs stagedMap[uint64, OutputTuple]
	meta    stagedMap[string, []byte]
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		nodes:   newStagedMap[TreeIndex, TreeNode](1024),
		outputs: newStagedMap[uint64, OutputTuple](1024),
		meta:    newStagedMap[string, []byte](4),
	}
}

func (s *MemoryStorage) StoreNode(index TreeIndex, node TreeNode) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.nodes.put(index, node)
	return nil
}

func (s *MemoryStorage) GetNode(index TreeIndex) (TreeNode, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if n, ok := s.nodes.get(index); ok {
		return n, nil
	}
	return TreeNode{}, ErrNotFound
}

func (s *MemoryStorage) DeleteNode(index TreeIndex) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.nodes.delete(index)
	return nil
}

func (s *MemoryStorage) StoreOutput(index uint64, output OutputTuple) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.outputs.put(index, output)
	return nil
}

func (s *MemoryStorage) GetOutput(index uint64) (OutputTuple, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if o, ok := s.outputs.get(index); ok {
		return o, nil
	}
	return OutputTuple{}, ErrNotFound
}

func (s *MemoryStorage) DeleteOutput(index uint64) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.outputs.delete(index)
	return nil
}

func (s *MemoryStorage) OutputCount() (uint64, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	// outputs are contiguous, probe upwards from the committed count to account for staged entries
	count := uint64(s.outputs.committed.Count())
	for count > 0 {
		if _, ok := s.outputs.get(count - 1); ok {
			break
		}
		count--
	}
	for {
		if _, ok := s.outputs.get(count); !ok {
			return count, nil
		}
		count++
	}
}

func (s *MemoryStorage) StoreMetadata(key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.meta.put(key, slices.Clone(value))
	return nil
}

func (s *MemoryStorage) GetMetadata(key string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if v, ok := s.meta.get(key); ok {
		return slices.Clone(v), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) BeginBatch() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.batch {
		return ErrBatchInProgress
	}
	s.batch = true
	s.nodes.begin()
	s.outputs.begin()
	s.meta.begin()
	return nil
}

func (s *MemoryStorage) CommitBatch() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.batch {
		return ErrNoBatch
	}
	s.batch = false
	s.nodes.commit()
	s.outputs.commit()
	s.meta.commit()
	return nil
}

func (s *MemoryStorage) AbortBatch() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.batch {
		return ErrNoBatch
	}
	s.batch = false
	s.nodes.abort()
	s.outputs.abort()
	s.meta.abort()
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
