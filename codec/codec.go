// Package codec provides the chunk compression codecs applied to chunk
// bytes after they are fetched from a store. Stores are read-only, so the
// Encode direction exists for building fixtures and round-trip tests.
package codec

import (
	"fmt"
	"sort"
	"sync"
)

// Codec compresses and decompresses one chunk worth of bytes.
type Codec interface {
	// Name is the identifier used in array metadata, e.g. "zstd".
	Name() string
	Encode(src []byte) ([]byte, error)
	Decode(src []byte) ([]byte, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Codec)
)

// Register makes a codec available by name. Registering a duplicate name
// panics; codecs are registered from init functions.
func Register(c Codec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[c.Name()]; exists {
		panic(fmt.Sprintf("codec: duplicate registration of %q", c.Name()))
	}
	registry[c.Name()] = c
}

// Get returns the codec registered under name.
func Get(name string) (Codec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
	return c, nil
}

// Names returns the registered codec names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
