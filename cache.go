package forge

import "fmt"

// Cache is a bounded append-only registry of named items with stable integer
// indices.
type Cache[T any] interface {
	GetIndex(string) (int, bool)
	GetItem(int) *T
	GetItem32(uint32) *T
	Register(string, T) (int, error)
}

var _ Cache[any] = &SimpleCache[any]{}

// SimpleCache implements Cache over a slice and a name index.
type SimpleCache[T any] struct {
	items       []T
	itemIndices map[string]int
	maxCapacity int
}

// FactoryNewCache creates a new Cache with the specified capacity.
func FactoryNewCache[T any](capacity int) Cache[T] {
	return &SimpleCache[T]{
		itemIndices: make(map[string]int),
		maxCapacity: capacity,
	}
}

// GetIndex returns the index registered for key.
func (c *SimpleCache[T]) GetIndex(key string) (int, bool) {
	index, ok := c.itemIndices[key]
	return index, ok
}

// GetItem returns the item at index.
func (c *SimpleCache[T]) GetItem(index int) *T {
	return &c.items[index]
}

// GetItem32 returns the item at index.
func (c *SimpleCache[T]) GetItem32(index uint32) *T {
	return &c.items[index]
}

// Register stores an item under key and returns its index.
func (c *SimpleCache[T]) Register(key string, item T) (int, error) {
	if len(c.itemIndices) >= c.maxCapacity {
		return -1, fmt.Errorf("cache at maximum capacity (%d)", c.maxCapacity)
	}
	index := len(c.items)
	c.itemIndices[key] = index
	c.items = append(c.items, item)
	return index, nil
}
