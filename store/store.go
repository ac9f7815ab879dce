// Package store defines the contract shared by the content-addressed chunk
// stores. Stores resolve logical keys to bytes; they are read-only by
// design.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key has no value. Absence is an expected
// outcome, never a panic; callers decide whether it is fatal.
var ErrNotFound = errors.New("key not found")

// Store resolves a logical key to its bytes.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Haser is an optional interface for stores that can answer existence
// checks without fetching the value.
type Haser interface {
	Has(ctx context.Context, key string) (bool, error)
}

// RangeGetter is an optional interface for stores that serve byte
// sub-ranges of a value.
type RangeGetter interface {
	GetRange(ctx context.Context, key string, r ByteRange) ([]byte, error)
}

// MetadataLister is an optional interface for stores that hold a flat
// metadata map alongside chunk data.
type MetadataLister interface {
	ListMetadataKeys() []string
}

// ByteRange selects a byte window of a value: either an absolute
// {offset, length} pair or the last SuffixLength bytes. Construct with
// NewByteRange or Suffix.
type ByteRange struct {
	Offset       int64
	Length       int64
	SuffixLength int64
}

// NewByteRange selects length bytes starting at offset.
func NewByteRange(offset, length int64) ByteRange {
	return ByteRange{Offset: offset, Length: length}
}

// Suffix selects the last n bytes of the value.
func Suffix(n int64) ByteRange {
	return ByteRange{SuffixLength: n}
}

// Resolve computes the absolute [start, end) window within a value of the
// given total size. Windows are clipped to the value's extent.
func (r ByteRange) Resolve(size int64) (start, end int64) {
	if r.SuffixLength > 0 {
		start = size - r.SuffixLength
		if start < 0 {
			start = 0
		}
		return start, size
	}
	start = r.Offset
	if start > size {
		start = size
	}
	end = r.Offset + r.Length
	if end > size {
		end = size
	}
	if end < start {
		end = start
	}
	return start, end
}

// ErrCorruptStructure indicates a decoded node or manifest failed shape
// validation. It is fatal and never retried; content addressing means a
// refetch would yield the same bytes.
type ErrCorruptStructure struct {
	Reason string
	cause  error
}

// NewCorruptStructure creates an ErrCorruptStructure wrapping cause, which
// may be nil.
func NewCorruptStructure(reason string, cause error) *ErrCorruptStructure {
	return &ErrCorruptStructure{Reason: reason, cause: cause}
}

func (e *ErrCorruptStructure) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("corrupt structure: %s: %v", e.Reason, e.cause)
	}
	return "corrupt structure: " + e.Reason
}

func (e *ErrCorruptStructure) Unwrap() error { return e.cause }
