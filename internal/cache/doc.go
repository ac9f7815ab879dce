// Package cache provides byte-budgeted LRU caching for decoded trie nodes
// and shard indexes.
//
// Cached entries are immutable content-addressed units, so the caches never
// invalidate; they only append and evict oldest-first once the byte budget
// is exceeded. The Sharded variant hashes keys across 16 shards to keep
// mutex contention low under concurrent lookups.
package cache
