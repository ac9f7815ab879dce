package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// LRU is a byte-budgeted LRU cache. Entries are immutable once set; the
// cache only appends and evicts, so a single mutex around the index is the
// only locking required.
type LRU[V any] struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[string]*list.Element
	evictList *list.List
	sizeOf    func(V) int64

	hits   atomic.Int64
	misses atomic.Int64
}

type entry[V any] struct {
	key   string
	value V
	size  int64
}

// NewLRU creates an LRU with the given capacity in bytes. sizeOf reports
// the byte weight of a value; entries larger than the whole capacity are
// not cached.
func NewLRU[V any](capacity int64, sizeOf func(V) int64) *LRU[V] {
	return &LRU[V]{
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
		sizeOf:    sizeOf,
	}
}

// Get returns a cached value.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry[V]).value, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// Set caches a value. Setting an existing key refreshes its recency but
// keeps the original value; cached entries are immutable.
func (c *LRU[V]) Set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		return
	}

	itemSize := c.sizeOf(v)
	if itemSize > c.capacity {
		return
	}

	for c.size+itemSize > c.capacity {
		oldest := c.evictList.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
	}

	ent := &entry[V]{key: key, value: v, size: itemSize}
	c.items[key] = c.evictList.PushFront(ent)
	c.size += itemSize
}

// Len returns the number of cached entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Size returns the current size of the cache in bytes.
func (c *LRU[V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns hit and miss counters.
func (c *LRU[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *LRU[V]) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	ent := e.Value.(*entry[V])
	delete(c.items, ent.key)
	c.size -= ent.size
}
