package dagcbor

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCID(t *testing.T, data string) cid.Cid {
	t.Helper()
	h, err := multihash.Sum([]byte(data), multihash.BLAKE3, 32)
	require.NoError(t, err)
	return cid.NewCidV1(cid.Raw, h)
}

func TestRoundTripLinks(t *testing.T) {
	c := testCID(t, "block-1")
	in := map[string]any{
		"version": int64(1),
		"name":    "precip",
		"cids":    []any{c, nil},
		"nested":  map[string]any{"link": c},
	}

	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)

	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(1), m["version"])
	assert.Equal(t, "precip", m["name"])

	cids, ok := m["cids"].([]any)
	require.True(t, ok)
	assert.Equal(t, c, cids[0])
	assert.Nil(t, cids[1])

	nested, ok := m["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, c, nested["link"])
}

func TestDeterministicEncoding(t *testing.T) {
	in := map[string]any{"b": int64(2), "a": int64(1), "c": []any{"x", "y"}}

	first, err := Encode(in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Encode(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDecodeIntegersAsSigned(t *testing.T) {
	data, err := Encode([]any{int64(0), int64(42), int64(-7)})
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0), int64(42), int64(-7)}, out)
}

func TestDecodeRejectsForeignTags(t *testing.T) {
	// Tag 0 (standard datetime string) is not part of the format.
	raw := []byte{0xc0, 0x61, 0x78} // 0("x")
	_, err := Decode(raw)
	assert.Error(t, err)
}

func TestDecodeRejectsBadLinkPrefix(t *testing.T) {
	c := testCID(t, "block-2")
	// A tag 42 whose content lacks the identity prefix byte is invalid.
	data, err := encMode.Marshal(cbor.Tag{Number: 42, Content: c.Bytes()})
	require.NoError(t, err)

	_, err = Decode(data)
	assert.Error(t, err)
}
