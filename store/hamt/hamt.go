// Package hamt implements a read-only key/value chunk store over a
// hash-array-mapped trie of content-addressed nodes.
//
// Keys are hashed with blake3; byte d of the hash addresses one of 256
// slots at depth d. Decoded nodes are immutable and cached by content id
// under a byte budget; concurrent loads of the same uncached node collapse
// into a single fetch.
package hamt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ipfs/go-cid"
	"golang.org/x/sync/singleflight"
	"lukechampine.com/blake3"

	"github.com/dClimate/jaxray-go/blockstore"
	"github.com/dClimate/jaxray-go/internal/cache"
	"github.com/dClimate/jaxray-go/store"
)

// defaultNodeCacheBytes bounds the decoded-node cache.
const defaultNodeCacheBytes = 32 << 20

// Store is a read-only HAMT chunk store.
type Store struct {
	blocks blockstore.Getter
	root   cid.Cid

	cache  *cache.Sharded[*node]
	flight singleflight.Group

	log *slog.Logger
}

var _ store.Store = (*Store)(nil)
var _ store.Haser = (*Store)(nil)
var _ store.RangeGetter = (*Store)(nil)

// Option configures a Store.
type Option func(*opts)

type opts struct {
	cacheBytes int64
	log        *slog.Logger
}

// WithNodeCacheBytes sets the decoded-node cache budget in bytes.
func WithNodeCacheBytes(n int64) Option {
	return func(o *opts) { o.cacheBytes = n }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *opts) { o.log = log }
}

// New creates a store reading the trie rooted at root.
func New(blocks blockstore.Getter, root cid.Cid, options ...Option) *Store {
	o := &opts{
		cacheBytes: defaultNodeCacheBytes,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range options {
		opt(o)
	}
	return &Store{
		blocks: blocks,
		root:   root,
		cache:  cache.NewSharded(o.cacheBytes, func(n *node) int64 { return n.approxSize }),
		log:    o.log,
	}
}

// Get returns the value stored under key, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ref, err := s.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.resolveRef(ctx, ref)
}

// Has reports whether key exists, walking the trie without fetching the
// value.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.lookup(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetRange returns a byte window of the value stored under key. The
// referenced value's total size is resolved first so suffix and
// past-the-end windows compute an absolute range.
func (s *Store) GetRange(ctx context.Context, key string, r store.ByteRange) ([]byte, error) {
	ref, err := s.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := s.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	start, end := r.Resolve(int64(len(data)))
	return data[start:end], nil
}

// lookup descends the trie to the reference stored under key.
func (s *Store) lookup(ctx context.Context, key string) (cid.Cid, error) {
	key = strings.TrimLeft(key, "/")
	sum := blake3.Sum256([]byte(key))

	c := s.root
	for depth := 0; depth < len(sum); depth++ {
		n, err := s.loadNode(ctx, c)
		if err != nil {
			return cid.Undef, err
		}
		sl := n.slots[sum[depth]]
		switch sl.kind {
		case slotEmpty:
			return cid.Undef, store.ErrNotFound
		case slotBucket:
			ref, ok := sl.bucket[key]
			if !ok {
				return cid.Undef, store.ErrNotFound
			}
			return ref, nil
		case slotLink:
			c = sl.link
		}
	}
	return cid.Undef, store.NewCorruptStructure("trie deeper than key hash", nil)
}

// loadNode returns the decoded node for c, deduplicating concurrent loads
// so every waiter observes the same outcome.
func (s *Store) loadNode(ctx context.Context, c cid.Cid) (*node, error) {
	key := c.KeyString()
	if n, ok := s.cache.Get(key); ok {
		return n, nil
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		if n, ok := s.cache.Get(key); ok {
			return n, nil
		}
		data, err := s.blocks.GetBlock(ctx, c)
		if err != nil {
			return nil, err
		}
		n, err := decodeNode(data)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, n)
		s.log.DebugContext(ctx, "loaded trie node", "cid", c.String(), "bytes", n.approxSize)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*node), nil
}

// resolveRef resolves a bucket's stored reference to the bytes it
// addresses. Resolution depends on the reference's codec; only raw blocks
// are supported here.
func (s *Store) resolveRef(ctx context.Context, ref cid.Cid) ([]byte, error) {
	if ref.Prefix().Codec != cid.Raw {
		return nil, fmt.Errorf("hamt: unsupported value codec %#x for %s", ref.Prefix().Codec, ref)
	}
	data, err := s.blocks.GetBlock(ctx, ref)
	if err != nil {
		if errors.Is(err, blockstore.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}
