package cache

import "github.com/cespare/xxhash/v2"

const numShards = 16

// Sharded spreads an LRU over a fixed number of shards to reduce mutex
// contention under concurrent readers. Shard selection hashes the key with
// xxhash.
type Sharded[V any] struct {
	shards [numShards]*LRU[V]
}

// NewSharded creates a sharded LRU with the given total capacity in bytes,
// split evenly across shards.
func NewSharded[V any](capacity int64, sizeOf func(V) int64) *Sharded[V] {
	s := &Sharded[V]{}
	perShard := capacity / numShards
	if perShard < 1 {
		perShard = 1
	}
	for i := range s.shards {
		s.shards[i] = NewLRU(perShard, sizeOf)
	}
	return s
}

func (s *Sharded[V]) shard(key string) *LRU[V] {
	return s.shards[xxhash.Sum64String(key)%numShards]
}

// Get returns a cached value.
func (s *Sharded[V]) Get(key string) (V, bool) {
	return s.shard(key).Get(key)
}

// Set caches a value.
func (s *Sharded[V]) Set(key string, v V) {
	s.shard(key).Set(key, v)
}

// Len returns the number of cached entries across all shards.
func (s *Sharded[V]) Len() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.Len()
	}
	return n
}

// Size returns the cached bytes across all shards.
func (s *Sharded[V]) Size() int64 {
	var n int64
	for _, sh := range s.shards {
		n += sh.Size()
	}
	return n
}

// Stats returns hit and miss counters summed across all shards.
func (s *Sharded[V]) Stats() (hits, misses int64) {
	for _, sh := range s.shards {
		h, m := sh.Stats()
		hits += h
		misses += m
	}
	return hits, misses
}
