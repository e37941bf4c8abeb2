package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int, string](2)
	c.Set(1, "a")
	c.Set(2, "b")

	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	// 2 is now least recently used
	c.Set(3, "c")
	_, ok = c.Get(2)
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Delete(1)
	_, ok = c.Get(1)
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestMapCache(t *testing.T) {
	c := NewMapCache[uint64, int](16)
	for i := range uint64(100) {
		c.Set(i, int(i)*2)
	}
	assert.Equal(t, 100, c.Len())

	v, ok := c.Get(42)
	require.True(t, ok)
	assert.Equal(t, 84, v)

	c.Delete(42)
	_, ok = c.Get(42)
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestNilCache(t *testing.T) {
	c := NewNilCache[string, int]()
	c.Set("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
