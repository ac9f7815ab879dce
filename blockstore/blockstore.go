// Package blockstore provides access to immutable content-addressed blocks.
//
// Getter is the contract the chunk stores consume. The Memory
// implementation backs tests; Gateway fetches blocks from an HTTP gateway
// with bounded concurrency and retry.
package blockstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
)

// ErrNotFound is returned when a block does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("block not found")

// Getter resolves a content identifier to the block bytes it addresses.
// Implementations must be safe for concurrent use.
type Getter interface {
	GetBlock(ctx context.Context, c cid.Cid) ([]byte, error)
}

// ErrTransient is returned when a fetch kept failing with retryable errors
// until the attempt ceiling was reached. The last cause is available via
// errors.Unwrap.
type ErrTransient struct {
	CID      cid.Cid
	Attempts int
	cause    error
}

func (e *ErrTransient) Error() string {
	return fmt.Sprintf("fetching %s failed after %d attempts: %v", e.CID, e.Attempts, e.cause)
}

func (e *ErrTransient) Unwrap() error { return e.cause }
