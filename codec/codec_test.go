package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("chunk payload with plenty of repetition "), 64)

	for _, name := range []string{"zstd", "lz4"} {
		t.Run(name, func(t *testing.T) {
			c, err := Get(name)
			require.NoError(t, err)

			encoded, err := c.Encode(payload)
			require.NoError(t, err)
			assert.Less(t, len(encoded), len(payload))

			decoded, err := c.Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, payload, decoded)
		})
	}
}

func TestRoundTripEmpty(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			c, err := Get(name)
			require.NoError(t, err)

			encoded, err := c.Encode(nil)
			require.NoError(t, err)
			decoded, err := c.Decode(encoded)
			require.NoError(t, err)
			assert.Empty(t, decoded)
		})
	}
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("snappy")
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"lz4", "zstd"}, Names())
}

func TestDecodeGarbage(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			c, err := Get(name)
			require.NoError(t, err)
			_, err = c.Decode([]byte("definitely not compressed"))
			assert.Error(t, err)
		})
	}
}
