package hamt

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/dClimate/jaxray-go/internal/dagcbor"
	"github.com/dClimate/jaxray-go/store"
)

// fanout is the trie branching factor: one slot per possible value of a
// hash byte.
const fanout = 256

type slotKind uint8

const (
	slotEmpty slotKind = iota
	slotBucket
	slotLink
)

// slot is one of the 256 entries of a node: empty, a bucket of
// key-to-reference entries, or a link to a child node.
type slot struct {
	kind   slotKind
	bucket map[string]cid.Cid
	link   cid.Cid
}

// node is a decoded trie node. Nodes are immutable once decoded and are
// cached by their content id.
type node struct {
	slots [fanout]slot
	// approxSize is the encoded size, used as the cache byte weight.
	approxSize int64
}

// decodeNode parses a content-addressed block into a node. Anything other
// than an exactly 256-element array is corrupt, not retryable.
func decodeNode(data []byte) (*node, error) {
	v, err := dagcbor.Decode(data)
	if err != nil {
		return nil, store.NewCorruptStructure("node is not valid cbor", err)
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, store.NewCorruptStructure("node is not an array", nil)
	}
	if len(arr) != fanout {
		return nil, store.NewCorruptStructure(
			fmt.Sprintf("node has %d slots, want %d", len(arr), fanout), nil)
	}

	n := &node{approxSize: int64(len(data))}
	for i, raw := range arr {
		switch x := raw.(type) {
		case nil:
			// slotEmpty
		case map[string]any:
			if len(x) == 0 {
				continue
			}
			bucket := make(map[string]cid.Cid, len(x))
			for key, ref := range x {
				c, ok := ref.(cid.Cid)
				if !ok {
					return nil, store.NewCorruptStructure(
						fmt.Sprintf("bucket entry %q is not a cid link", key), nil)
				}
				bucket[key] = c
			}
			n.slots[i] = slot{kind: slotBucket, bucket: bucket}
		case cid.Cid:
			n.slots[i] = slot{kind: slotLink, link: x}
		default:
			return nil, store.NewCorruptStructure(
				fmt.Sprintf("slot %d has unexpected shape %T", i, raw), nil)
		}
	}
	return n, nil
}

// encodeNode is the inverse of decodeNode. The store never writes; this
// exists to build fixtures.
func encodeNode(n *node) ([]byte, error) {
	arr := make([]any, fanout)
	for i, sl := range n.slots {
		switch sl.kind {
		case slotBucket:
			bucket := make(map[string]any, len(sl.bucket))
			for key, ref := range sl.bucket {
				bucket[key] = ref
			}
			arr[i] = bucket
		case slotLink:
			arr[i] = sl.link
		}
	}
	return dagcbor.Encode(arr)
}
