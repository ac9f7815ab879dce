package sharded

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/dClimate/jaxray-go/internal/dagcbor"
	"github.com/dClimate/jaxray-go/store"
)

// Manifest describes one array's chunk grid and the shards indexing it.
// A shard entry of cid.Undef marks a null shard: every chunk it would
// index is absent.
type Manifest struct {
	Version        int
	Metadata       map[string]cid.Cid
	ArrayShape     []int
	ChunkShape     []int
	ChunksPerShard int
	ShardCIDs      []cid.Cid

	chunksPerDim []int
	totalChunks  int
	numShards    int
}

// DecodeManifest parses and validates a manifest block. A shard-count
// mismatch against the derived grid is fatal.
func DecodeManifest(data []byte) (*Manifest, error) {
	v, err := dagcbor.Decode(data)
	if err != nil {
		return nil, store.NewCorruptStructure("manifest is not valid cbor", err)
	}
	root, ok := v.(map[string]any)
	if !ok {
		return nil, store.NewCorruptStructure("manifest is not a map", nil)
	}

	m := &Manifest{Metadata: make(map[string]cid.Cid)}

	if ver, ok := root["manifest_version"].(int64); ok {
		m.Version = int(ver)
	}

	if meta, ok := root["metadata"].(map[string]any); ok {
		for key, raw := range meta {
			c, ok := raw.(cid.Cid)
			if !ok {
				return nil, store.NewCorruptStructure(
					fmt.Sprintf("metadata entry %q is not a cid link", key), nil)
			}
			m.Metadata[key] = c
		}
	}

	chunks, ok := root["chunks"].(map[string]any)
	if !ok {
		return nil, store.NewCorruptStructure("manifest has no chunks section", nil)
	}

	if m.ArrayShape, err = intList(chunks["array_shape"]); err != nil {
		return nil, store.NewCorruptStructure("bad array_shape", err)
	}
	if m.ChunkShape, err = intList(chunks["chunk_shape"]); err != nil {
		return nil, store.NewCorruptStructure("bad chunk_shape", err)
	}

	cfg, ok := chunks["sharding_config"].(map[string]any)
	if !ok {
		return nil, store.NewCorruptStructure("manifest has no sharding_config", nil)
	}
	perShard, ok := cfg["chunks_per_shard"].(int64)
	if !ok || perShard <= 0 {
		return nil, store.NewCorruptStructure("bad chunks_per_shard", nil)
	}
	m.ChunksPerShard = int(perShard)

	rawCIDs, ok := chunks["shard_cids"].([]any)
	if !ok {
		return nil, store.NewCorruptStructure("manifest has no shard_cids", nil)
	}
	m.ShardCIDs = make([]cid.Cid, len(rawCIDs))
	for i, raw := range rawCIDs {
		switch x := raw.(type) {
		case nil:
			m.ShardCIDs[i] = cid.Undef
		case cid.Cid:
			m.ShardCIDs[i] = x
		default:
			return nil, store.NewCorruptStructure(
				fmt.Sprintf("shard_cids[%d] has unexpected shape %T", i, raw), nil)
		}
	}

	if err := m.derive(); err != nil {
		return nil, err
	}
	return m, nil
}

// derive computes the chunk grid and validates the manifest invariants.
func (m *Manifest) derive() error {
	if len(m.ArrayShape) == 0 {
		return store.NewCorruptStructure("array_shape is empty", nil)
	}
	if len(m.ArrayShape) != len(m.ChunkShape) {
		return store.NewCorruptStructure(
			fmt.Sprintf("array_shape has %d dims, chunk_shape has %d",
				len(m.ArrayShape), len(m.ChunkShape)), nil)
	}

	m.chunksPerDim = make([]int, len(m.ArrayShape))
	m.totalChunks = 1
	for i := range m.ArrayShape {
		if m.ArrayShape[i] <= 0 || m.ChunkShape[i] <= 0 {
			return store.NewCorruptStructure(
				fmt.Sprintf("non-positive extent in dim %d", i), nil)
		}
		m.chunksPerDim[i] = (m.ArrayShape[i] + m.ChunkShape[i] - 1) / m.ChunkShape[i]
		m.totalChunks *= m.chunksPerDim[i]
	}
	m.numShards = (m.totalChunks + m.ChunksPerShard - 1) / m.ChunksPerShard

	if len(m.ShardCIDs) != m.numShards {
		return store.NewCorruptStructure(
			fmt.Sprintf("manifest lists %d shards, grid derives %d",
				len(m.ShardCIDs), m.numShards), nil)
	}
	return nil
}

// EncodeManifest is the inverse of DecodeManifest. The store never writes;
// this exists to build fixtures.
func EncodeManifest(m *Manifest) ([]byte, error) {
	meta := make(map[string]any, len(m.Metadata))
	for key, c := range m.Metadata {
		meta[key] = c
	}
	shardCIDs := make([]any, len(m.ShardCIDs))
	for i, c := range m.ShardCIDs {
		if c.Defined() {
			shardCIDs[i] = c
		}
	}
	return dagcbor.Encode(map[string]any{
		"manifest_version": int64(m.Version),
		"metadata":         meta,
		"chunks": map[string]any{
			"array_shape":     toAnyList(m.ArrayShape),
			"chunk_shape":     toAnyList(m.ChunkShape),
			"sharding_config": map[string]any{"chunks_per_shard": int64(m.ChunksPerShard)},
			"shard_cids":      shardCIDs,
		},
	})
}

func intList(v any) ([]int, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil, fmt.Errorf("not a non-empty array: %T", v)
	}
	out := make([]int, len(arr))
	for i, raw := range arr {
		n, ok := raw.(int64)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, not an integer", i, raw)
		}
		out[i] = int(n)
	}
	return out, nil
}

func toAnyList(xs []int) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = int64(x)
	}
	return out
}
