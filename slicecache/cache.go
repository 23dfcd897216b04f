// Package slicecache fetches, caches and prefetches 2-D slices of a volume.
//
// The cache is a small bounded LRU keyed by slice key; touching an entry
// (read or write) makes it most recently used, and inserting beyond
// capacity evicts the least recently touched entry, so the slices around
// the current scroll position survive while abandoned ones age out.
//
// The [Engine] adds request de-duplication, forward-biased prefetch and
// explicit cancellation on top of the cache. Entries belong to exactly one
// viewing context; a context switch clears everything.
package slicecache

import "sync"

// DefaultCapacity is the default number of slices kept per context: the
// displayed slice plus the prefetch fan-out on both sides.
const DefaultCapacity = 7

// Slice is one fetched 2-D cross-section. Once inserted the cache owns the
// entry; readers share it and must not mutate Data.
type Slice struct {
	// Key uniquely identifies the slice within its context.
	Key string

	// Index is the position along the scroll axis.
	Index int

	// Rows and Cols are the slice dimensions.
	Rows int
	Cols int

	// Data is the row-major float buffer, len = Rows*Cols.
	Data []float32
}

// Cache is a bounded LRU mapping slice keys to slices.
// Cache is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*cacheEntry
	lru      lruList
}

type cacheEntry struct {
	slice *Slice
	node  *lruNode
}

// NewCache creates a cache holding at most capacity slices.
// capacity <= 0 selects DefaultCapacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*cacheEntry),
	}
}

// Get returns the cached slice and touches it (most recently used).
func (c *Cache) Get(key string) (*Slice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(e.node)
	return e.slice, true
}

// Put inserts or replaces a slice and touches it. If the cache grows past
// capacity the least recently touched entry is evicted.
func (c *Cache) Put(key string, s *Slice) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.slice = s
		c.lru.MoveToFront(e.node)
		return
	}
	c.entries[key] = &cacheEntry{slice: s, node: c.lru.PushFront(key)}
	if len(c.entries) > c.capacity {
		if oldest, ok := c.lru.RemoveOldest(); ok {
			delete(c.entries, oldest)
		}
	}
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.lru.Clear()
}

// Len returns the number of cached slices.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the cache capacity.
func (c *Cache) Capacity() int { return c.capacity }
