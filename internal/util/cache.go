package util

import (
	"container/list"
	"sync"
)

type (
	// LRUCache is a bounded cache with least-recently-used eviction
	LRUCache[K comparable, T any] struct {
		cache   map[K]*list.Element
		lru     *list.List
		maxSize int
		mu      sync.Mutex
	}

	// Constructor produces a value for a cache miss
	Constructor[T any] func() (T, error)

	cacheEntry[K comparable, T any] struct {
		value T
		key   K
	}
)

func NewLRUCache[K comparable, T any](maxSize int) *LRUCache[K, T] {
	return &LRUCache[K, T]{
		cache:   map[K]*list.Element{},
		lru:     list.New(),
		maxSize: maxSize,
	}
}

// Get returns the cached value for key, invoking create on a miss and
// caching the result. A create error is returned without caching
func (c *LRUCache[K, T]) Get(key K, create Constructor[T]) (T, error) {
	c.mu.Lock()
	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		c.mu.Unlock()
		return elem.Value.(*cacheEntry[K, T]).value, nil
	}
	c.mu.Unlock()

	value, err := create()
	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry[K, T]).value, nil
	}

	entry := &cacheEntry[K, T]{key: key, value: value}
	c.cache[key] = c.lru.PushFront(entry)

	for c.lru.Len() > c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.lru.Remove(oldest)
		delete(c.cache, oldest.Value.(*cacheEntry[K, T]).key)
	}
	return value, nil
}

// Remove evicts a single key if present
func (c *LRUCache[K, T]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		c.lru.Remove(elem)
		delete(c.cache, key)
	}
}

// Purge evicts every entry
func (c *LRUCache[K, T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = map[K]*list.Element{}
	c.lru.Init()
}

// Len returns the number of cached entries
func (c *LRUCache[K, T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
