package utils

import (
	"sync"

	"github.com/dolthub/swiss"
	"github.com/floatdrop/lru"
)

// Cache is a concurrency-safe key/value cache
type Cache[K comparable, V any] interface {
	Get(key K) (value V, ok bool)
	Set(key K, value V)
	Delete(key K)
	Len() int
	Clear()
}

type lruCache[K comparable, V any] struct {
	lock   sync.Mutex
	size   int
	values *lru.LRU[K, V]
}

// NewLRUCache returns a cache that evicts the least recently used entry past size entries
func NewLRUCache[K comparable, V any](size int) Cache[K, V] {
	return &lruCache[K, V]{
		size:   size,
		values: lru.New[K, V](size),
	}
}

func (c *lruCache[K, V]) Get(key K) (value V, ok bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if v := c.values.Get(key); v != nil {
		return *v, true
	}
	return value, false
}

func (c *lruCache[K, V]) Set(key K, value V) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.values.Set(key, value)
}

func (c *lruCache[K, V]) Delete(key K) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.values.Remove(key)
}

func (c *lruCache[K, V]) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.values.Len()
}

func (c *lruCache[K, V]) Clear() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.values = lru.New[K, V](c.size)
}

type mapCache[K comparable, V any] struct {
	lock   sync.RWMutex
	size   int
	values *swiss.Map[K, V]
}

// NewMapCache returns an unbounded cache preallocated for size entries
func NewMapCache[K comparable, V any](size int) Cache[K, V] {
	return &mapCache[K, V]{
		size:   size,
		values: swiss.NewMap[K, V](uint32(size)),
	}
}

func (c *mapCache[K, V]) Get(key K) (value V, ok bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.values.Get(key)
}

func (c *mapCache[K, V]) Set(key K, value V) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.values.Put(key, value)
}

func (c *mapCache[K, V]) Delete(key K) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.values.Delete(key)
}

func (c *mapCache[K, V]) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.values.Count()
}

func (c *mapCache[K, V]) Clear() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.values = swiss.NewMap[K, V](uint32(c.size))
}

type nilCache[K comparable, V any] struct{}

// NewNilCache returns a cache that never stores anything
func NewNilCache[K comparable, V any]() Cache[K, V] {
	return nilCache[K, V]{}
}

func (nilCache[K, V]) Get(K) (value V, ok bool) {
	return value, false
}

func (nilCache[K, V]) Set(K, V) {}

func (nilCache[K, V]) Delete(K) {}

func (nilCache[K, V]) Len() int {
	return 0
}

func (nilCache[K, V]) Clear() {}
