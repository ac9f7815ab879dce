package blockstore

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Memory is an in-memory Getter implementation for testing.
// Thread-safe for concurrent reads and writes.
type Memory struct {
	mu     sync.RWMutex
	blocks map[string][]byte
}

// NewMemory creates a new in-memory block store.
func NewMemory() *Memory {
	return &Memory{blocks: make(map[string][]byte)}
}

// GetBlock returns the block addressed by c.
func (m *Memory) GetBlock(_ context.Context, c cid.Cid) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blocks[c.KeyString()]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy to prevent external mutation.
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

// Add stores data under its own content address and returns the CID. codec
// is the CID codec tag, e.g. cid.Raw or cid.DagCBOR.
func (m *Memory) Add(data []byte, codec uint64) (cid.Cid, error) {
	h, err := multihash.Sum(data, multihash.BLAKE3, 32)
	if err != nil {
		return cid.Undef, err
	}
	c := cid.NewCidV1(codec, h)

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]byte, len(data))
	copy(copied, data)
	m.blocks[c.KeyString()] = copied
	return c, nil
}

// Len returns the number of stored blocks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}
