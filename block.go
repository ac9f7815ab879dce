package jaxray

import (
	"context"
	"fmt"
)

// Span is a per-dimension extent in a fetch request. A scalar span
// selects a single index and drops the dimension from the result; a
// slice span selects the half-open interval [start, stop).
type Span struct {
	scalar bool
	index  int
	start  int
	stop   int
}

// Index returns a scalar span selecting position i.
func Index(i int) Span {
	return Span{scalar: true, index: i}
}

// Slice returns a span selecting the half-open interval [start, stop).
func Slice(start, stop int) Span {
	return Span{start: start, stop: stop}
}

// IsScalar reports whether the span selects a single index.
func (s Span) IsScalar() bool { return s.scalar }

// Scalar returns the selected index of a scalar span.
func (s Span) Scalar() int { return s.index }

// Bounds returns the half-open interval of a slice span.
func (s Span) Bounds() (start, stop int) { return s.start, s.stop }

// Len returns the number of indices the span covers.
func (s Span) Len() int {
	if s.scalar {
		return 1
	}
	return s.stop - s.start
}

// FetchFunc loads data for the requested per-dimension spans.
// Dimensions absent from sel are fetched at full extent. The returned
// shape must list the slice-span dims in array order; scalar spans
// drop their dimension.
type FetchFunc func(ctx context.Context, sel map[string]Span) (Values, error)

// Block carries the data of an array. An eager block holds
// materialized values; a lazy block holds only its virtual shape and
// a fetch function, and materializes nothing until Compute runs.
type Block struct {
	eager bool
	vals  Values
	dims  []string
	shape []int
	fetch FetchFunc
}

// NewEagerBlock wraps already-materialized values.
func NewEagerBlock(v Values) *Block {
	return &Block{eager: true, vals: v, shape: append([]int(nil), v.Shape...)}
}

// NewLazyBlock describes a virtual array of the given dims and shape
// whose data is produced on demand by fetch.
func NewLazyBlock(dims []string, shape []int, fetch FetchFunc) (*Block, error) {
	if len(dims) != len(shape) {
		return nil, fmt.Errorf("jaxray: got %d dims for a %d-dimensional shape", len(dims), len(shape))
	}
	if fetch == nil {
		return nil, fmt.Errorf("jaxray: lazy block requires a fetch function")
	}
	return &Block{
		dims:  append([]string(nil), dims...),
		shape: append([]int(nil), shape...),
		fetch: fetch,
	}, nil
}

// Lazy reports whether the block has unmaterialized data.
func (b *Block) Lazy() bool { return !b.eager }

// Shape returns the block's extent per dimension.
func (b *Block) Shape() []int {
	return append([]int(nil), b.shape...)
}

// Values returns the materialized data. Lazy blocks fail with
// ErrNotComputed until Compute has run.
func (b *Block) Values() (Values, error) {
	if !b.eager {
		return Values{}, ErrNotComputed
	}
	return b.vals, nil
}

// Compute materializes the block with a single fetch over the full
// virtual extent and returns an eager block holding the result.
// Eager blocks return themselves.
func (b *Block) Compute(ctx context.Context) (*Block, error) {
	if b.eager {
		return b, nil
	}

	sel := make(map[string]Span, len(b.dims))
	for i, d := range b.dims {
		sel[d] = Slice(0, b.shape[i])
	}

	vals, err := b.fetch(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("jaxray: compute: %w", err)
	}

	if len(vals.Shape) != len(b.shape) {
		return nil, &ErrShapeMismatch{Want: b.Shape(), Got: vals.Shape}
	}
	for i := range b.shape {
		if vals.Shape[i] != b.shape[i] {
			return nil, &ErrShapeMismatch{Want: b.Shape(), Got: vals.Shape}
		}
	}
	if len(vals.Data) != shapeSize(vals.Shape) {
		return nil, &ErrShapeMismatch{Want: b.Shape(), Got: []int{len(vals.Data)}}
	}

	return NewEagerBlock(vals), nil
}
