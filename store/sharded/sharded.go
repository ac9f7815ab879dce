// Package sharded implements a read-only chunk store whose chunk index is
// split across fixed-size, content-addressed shards.
//
// A manifest maps the array's chunk grid onto shards; each shard is a
// decoded list of chunk CIDs (or nulls for absent chunks). Shards are
// cached under a byte budget and concurrent loads of the same shard
// collapse into a single fetch.
package sharded

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/ipfs/go-cid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dClimate/jaxray-go/blockstore"
	"github.com/dClimate/jaxray-go/codec"
	"github.com/dClimate/jaxray-go/internal/cache"
	"github.com/dClimate/jaxray-go/internal/dagcbor"
	"github.com/dClimate/jaxray-go/store"
)

// defaultShardCacheBytes bounds the decoded-shard cache.
const defaultShardCacheBytes = 32 << 20

// prefetchConcurrency bounds parallel shard loads during Prefetch.
const prefetchConcurrency = 8

// shard is a decoded chunk-index shard. Entries are cid.Undef where the
// chunk is absent.
type shard struct {
	entries    []cid.Cid
	approxSize int64
}

// Store is a read-only sharded chunk store for one array.
type Store struct {
	blocks    blockstore.Getter
	manifest  *Manifest
	arrayPath string

	cache  *cache.Sharded[*shard]
	flight singleflight.Group

	chunkCodec codec.Codec
	log        *slog.Logger
}

var _ store.Store = (*Store)(nil)
var _ store.Haser = (*Store)(nil)
var _ store.MetadataLister = (*Store)(nil)

// Option configures a Store.
type Option func(*opts)

type opts struct {
	arrayPath  string
	cacheBytes int64
	chunkCodec codec.Codec
	log        *slog.Logger
}

// WithArrayPath sets the key prefix chunk keys are addressed under,
// i.e. "<arrayPath>/c/<i0>/.../<iN>".
func WithArrayPath(path string) Option {
	return func(o *opts) { o.arrayPath = strings.Trim(path, "/") }
}

// WithShardCacheBytes sets the decoded-shard cache budget in bytes.
func WithShardCacheBytes(n int64) Option {
	return func(o *opts) { o.cacheBytes = n }
}

// WithChunkCodec decompresses chunk bytes with c after fetching. Metadata
// values are never decompressed.
func WithChunkCodec(c codec.Codec) Option {
	return func(o *opts) { o.chunkCodec = c }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *opts) { o.log = log }
}

// New creates a store over an already-decoded manifest.
func New(blocks blockstore.Getter, m *Manifest, options ...Option) *Store {
	o := &opts{
		cacheBytes: defaultShardCacheBytes,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range options {
		opt(o)
	}
	return &Store{
		blocks:     blocks,
		manifest:   m,
		arrayPath:  o.arrayPath,
		cache:      cache.NewSharded(o.cacheBytes, func(s *shard) int64 { return s.approxSize }),
		chunkCodec: o.chunkCodec,
		log:        o.log,
	}
}

// Open fetches and decodes the manifest at manifestCID, then creates a
// store over it.
func Open(ctx context.Context, blocks blockstore.Getter, manifestCID cid.Cid, options ...Option) (*Store, error) {
	data, err := blocks.GetBlock(ctx, manifestCID)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest %s: %w", manifestCID, err)
	}
	m, err := DecodeManifest(data)
	if err != nil {
		return nil, err
	}
	return New(blocks, m, options...), nil
}

// Manifest returns the store's manifest.
func (s *Store) Manifest() *Manifest { return s.manifest }

// Get returns the value stored under key. Keys of the form
// "<arrayPath>/c/<i0>/.../<iN>" address chunks; any other key is served
// from the manifest's flat metadata map, bypassing chunk math.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if coords, ok := s.parseChunkKey(key); ok {
		return s.GetChunk(ctx, coords)
	}
	c, ok := s.manifest.Metadata[strings.TrimLeft(key, "/")]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.resolveBlock(ctx, c)
}

// Has reports whether key exists. Chunk presence is answered from the
// shard index without fetching the chunk.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	if coords, ok := s.parseChunkKey(key); ok {
		_, err := s.chunkCID(ctx, coords)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
	_, ok := s.manifest.Metadata[strings.TrimLeft(key, "/")]
	return ok, nil
}

// ListMetadataKeys returns the manifest's metadata keys, sorted.
func (s *Store) ListMetadataKeys() []string {
	keys := make([]string, 0, len(s.manifest.Metadata))
	for key := range s.manifest.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// GetChunk returns the chunk at the given grid coordinates, or
// store.ErrNotFound for absent chunks.
func (s *Store) GetChunk(ctx context.Context, coords []int) ([]byte, error) {
	c, err := s.chunkCID(ctx, coords)
	if err != nil {
		return nil, err
	}
	data, err := s.resolveBlock(ctx, c)
	if err != nil {
		return nil, err
	}
	if s.chunkCodec != nil {
		decoded, err := s.chunkCodec.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decompressing chunk %v with %s: %w", coords, s.chunkCodec.Name(), err)
		}
		return decoded, nil
	}
	return data, nil
}

// Prefetch warms the shard cache for the given chunk coordinates.
func (s *Store) Prefetch(ctx context.Context, coordsList [][]int) error {
	shardIdxs := make(map[int]struct{})
	for _, coords := range coordsList {
		linear, err := s.manifest.linearIndex(coords)
		if err != nil {
			return err
		}
		shardIdxs[linear/s.manifest.ChunksPerShard] = struct{}{}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchConcurrency)
	for idx := range shardIdxs {
		idx := idx
		g.Go(func() error {
			_, err := s.loadShard(ctx, idx)
			return err
		})
	}
	return g.Wait()
}

// chunkCID resolves chunk coordinates to the chunk's CID via the shard
// index.
func (s *Store) chunkCID(ctx context.Context, coords []int) (cid.Cid, error) {
	linear, err := s.manifest.linearIndex(coords)
	if err != nil {
		return cid.Undef, err
	}
	shardIdx := linear / s.manifest.ChunksPerShard
	offset := linear % s.manifest.ChunksPerShard

	if shardIdx >= s.manifest.numShards {
		return cid.Undef, store.ErrNotFound
	}

	sh, err := s.loadShard(ctx, shardIdx)
	if err != nil {
		return cid.Undef, err
	}
	c := sh.entries[offset]
	if !c.Defined() {
		// Null slot: the chunk was never written. Distinct from a decode
		// failure, which surfaces as ErrCorruptStructure from loadShard.
		return cid.Undef, store.ErrNotFound
	}
	return c, nil
}

// linearIndex validates coords against the chunk grid and flattens them
// row-major, most-significant dimension first.
func (m *Manifest) linearIndex(coords []int) (int, error) {
	if len(coords) != len(m.chunksPerDim) {
		return 0, fmt.Errorf("got %d chunk coordinates, grid has %d dims", len(coords), len(m.chunksPerDim))
	}
	linear := 0
	for i, c := range coords {
		if c < 0 || c >= m.chunksPerDim[i] {
			return 0, fmt.Errorf("chunk coordinate %d out of bounds in dim %d (grid %v)", c, i, m.chunksPerDim)
		}
		linear = linear*m.chunksPerDim[i] + c
	}
	return linear, nil
}

// loadShard returns the decoded shard at idx, deduplicating concurrent
// loads. A null manifest entry synthesizes an all-null shard without any
// fetch.
func (s *Store) loadShard(ctx context.Context, idx int) (*shard, error) {
	c := s.manifest.ShardCIDs[idx]
	if !c.Defined() {
		return &shard{entries: make([]cid.Cid, s.manifest.ChunksPerShard)}, nil
	}

	key := strconv.Itoa(idx)
	if sh, ok := s.cache.Get(key); ok {
		return sh, nil
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		if sh, ok := s.cache.Get(key); ok {
			return sh, nil
		}
		data, err := s.blocks.GetBlock(ctx, c)
		if err != nil {
			return nil, err
		}
		sh, err := decodeShard(data, s.manifest.ChunksPerShard)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, sh)
		s.log.DebugContext(ctx, "loaded shard", "index", idx, "bytes", sh.approxSize)
		return sh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*shard), nil
}

// decodeShard parses a shard block: a list of exactly chunksPerShard
// entries, each a chunk CID or null.
func decodeShard(data []byte, chunksPerShard int) (*shard, error) {
	v, err := dagcbor.Decode(data)
	if err != nil {
		return nil, store.NewCorruptStructure("shard is not valid cbor", err)
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, store.NewCorruptStructure("shard is not an array", nil)
	}
	if len(arr) != chunksPerShard {
		return nil, store.NewCorruptStructure(
			fmt.Sprintf("shard has %d entries, want %d", len(arr), chunksPerShard), nil)
	}

	sh := &shard{
		entries:    make([]cid.Cid, len(arr)),
		approxSize: int64(len(data)),
	}
	for i, raw := range arr {
		switch x := raw.(type) {
		case nil:
			sh.entries[i] = cid.Undef
		case cid.Cid:
			sh.entries[i] = x
		default:
			return nil, store.NewCorruptStructure(
				fmt.Sprintf("shard entry %d has unexpected shape %T", i, raw), nil)
		}
	}
	return sh, nil
}

// parseChunkKey recognizes "<arrayPath>/c/<i0>/.../<iN>" keys.
func (s *Store) parseChunkKey(key string) ([]int, bool) {
	key = strings.TrimLeft(key, "/")
	if s.arrayPath != "" {
		rest, ok := strings.CutPrefix(key, s.arrayPath+"/")
		if !ok {
			return nil, false
		}
		key = rest
	}
	rest, ok := strings.CutPrefix(key, "c/")
	if !ok {
		return nil, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != len(s.manifest.chunksPerDim) {
		return nil, false
	}
	coords := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		coords[i] = n
	}
	return coords, true
}

// resolveBlock fetches a raw content-addressed block.
func (s *Store) resolveBlock(ctx context.Context, c cid.Cid) ([]byte, error) {
	data, err := s.blocks.GetBlock(ctx, c)
	if err != nil {
		if errors.Is(err, blockstore.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}
