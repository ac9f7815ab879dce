package jaxray

import (
	"context"
	"fmt"

	"github.com/dClimate/jaxray-go/coordindex"
)

// DataArray is an immutable labeled N-dimensional array. Its data
// lives in a Block, lazy or eager, and selections return new arrays
// without touching the old one.
//
// Lazy arrays remember, per dimension, which indices of the original
// array each of their positions corresponds to. Chained selections
// compose those mappings, so the eventual fetch always addresses the
// original loader in the original index space, never an intermediate
// view.
type DataArray struct {
	name   string
	dims   []string
	coords map[string]*coordindex.Axis
	attrs  map[string]any
	block  *Block

	rootFetch FetchFunc
	mapping   map[string][]int
	fixed     map[string]int

	log *Logger
}

// ArrayOption configures a DataArray at construction.
type ArrayOption func(*DataArray)

// WithAttrs attaches arbitrary metadata to the array.
func WithAttrs(attrs map[string]any) ArrayOption {
	return func(a *DataArray) {
		a.attrs = attrs
	}
}

// WithArrayLogger sets the logger used for selection and compute
// diagnostics.
func WithArrayLogger(log *Logger) ArrayOption {
	return func(a *DataArray) {
		a.log = log
	}
}

// NewDataArray builds an array over the given block. Dimensions
// without a coordinate axis get a positional one (0, 1, 2, ...).
func NewDataArray(name string, dims []string, coords map[string]*coordindex.Axis, block *Block, opts ...ArrayOption) (*DataArray, error) {
	if block == nil {
		return nil, fmt.Errorf("jaxray: array %q needs a block", name)
	}
	shape := block.Shape()
	if len(dims) != len(shape) {
		return nil, fmt.Errorf("jaxray: array %q has %d dims for a %d-dimensional block", name, len(dims), len(shape))
	}

	a := &DataArray{
		name:    name,
		dims:    append([]string(nil), dims...),
		coords:  make(map[string]*coordindex.Axis, len(dims)),
		mapping: make(map[string][]int, len(dims)),
		fixed:   make(map[string]int),
		log:     NoopLogger(),
	}

	seen := make(map[string]bool, len(dims))
	for i, d := range dims {
		if seen[d] {
			return nil, fmt.Errorf("jaxray: array %q repeats dim %q", name, d)
		}
		seen[d] = true

		ax, ok := coords[d]
		if !ok {
			ax = positionalAxis(d, shape[i])
		} else if ax.Len() != shape[i] {
			return nil, fmt.Errorf("jaxray: coordinate %q has %d values, dim size is %d", d, ax.Len(), shape[i])
		}
		a.coords[d] = ax

		m := make([]int, shape[i])
		for j := range m {
			m[j] = j
		}
		a.mapping[d] = m
	}

	if block.Lazy() {
		a.rootFetch = block.fetch
	}
	a.block = block

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// positionalAxis synthesizes integer coordinates for an unlabeled dim.
func positionalAxis(name string, n int) *coordindex.Axis {
	vals := make([]any, n)
	for i := range vals {
		vals[i] = float64(i)
	}
	return coordindex.NewAxis(name, vals, nil)
}

// Name returns the array's name.
func (a *DataArray) Name() string { return a.name }

// Dims returns the live dimension names in array order.
func (a *DataArray) Dims() []string {
	return append([]string(nil), a.dims...)
}

// Shape returns the extent per live dimension.
func (a *DataArray) Shape() []int { return a.block.Shape() }

// Attrs returns the array's metadata.
func (a *DataArray) Attrs() map[string]any { return a.attrs }

// Lazy reports whether the array's data is still unmaterialized.
func (a *DataArray) Lazy() bool { return a.block.Lazy() }

// Coords returns the coordinate axis of a live dimension.
func (a *DataArray) Coords(dim string) (*coordindex.Axis, bool) {
	ax, ok := a.coords[dim]
	return ax, ok
}

// FixedIndex returns the original-array index a scalar selection
// pinned the given dimension to.
func (a *DataArray) FixedIndex(dim string) (int, bool) {
	i, ok := a.fixed[dim]
	return i, ok
}

// Values returns the materialized data. Lazy arrays fail with
// ErrNotComputed until Compute has run.
func (a *DataArray) Values() (Values, error) {
	return a.block.Values()
}

// Compute materializes a lazy array with a single full-extent fetch
// and returns the eager result. Eager arrays return themselves.
func (a *DataArray) Compute(ctx context.Context) (*DataArray, error) {
	if !a.block.Lazy() {
		return a, nil
	}
	block, err := a.block.Compute(ctx)
	if err != nil {
		return nil, err
	}
	a.log.Debug("array computed", "array", a.name, "shape", block.Shape())

	out := a.clone()
	out.block = block
	out.rootFetch = nil
	return out, nil
}

// dimAction is one dimension's resolved selection: either pin it to a
// single index or narrow it to the inclusive window [lo, hi].
type dimAction struct {
	fix    bool
	idx    int
	lo, hi int
}

// Sel selects by coordinate value and returns a new array. Scalar
// selections drop their dimension; list and range selections keep a
// contiguous window of it. On lazy arrays no data moves: the result
// is another lazy array whose fetch addresses the original loader.
func (a *DataArray) Sel(sels map[string]Selection, opts ...SelOption) (*DataArray, error) {
	var o selOptions
	for _, opt := range opts {
		opt(&o)
	}

	actions := make(map[string]dimAction, len(sels))
	for dim, sel := range sels {
		ax, ok := a.coords[dim]
		if !ok {
			return nil, &ErrDimensionNotFound{Dim: dim}
		}
		act, err := resolveSelection(ax, sel, o)
		if err != nil {
			return nil, err
		}
		actions[dim] = act
	}

	return a.compose(actions)
}

// ISel selects by position and returns a new array. Scalar spans drop
// their dimension; slice spans keep the half-open window.
func (a *DataArray) ISel(sels map[string]Span) (*DataArray, error) {
	shape := a.block.Shape()
	size := make(map[string]int, len(a.dims))
	for i, d := range a.dims {
		size[d] = shape[i]
	}

	actions := make(map[string]dimAction, len(sels))
	for dim, sp := range sels {
		n, ok := size[dim]
		if !ok {
			return nil, &ErrDimensionNotFound{Dim: dim}
		}
		if sp.IsScalar() {
			i := sp.Scalar()
			if i < 0 || i >= n {
				return nil, fmt.Errorf("jaxray: index %d out of bounds for dim %q (size %d)", i, dim, n)
			}
			actions[dim] = dimAction{fix: true, idx: i}
			continue
		}
		start, stop := sp.Bounds()
		if start < 0 || stop > n || start >= stop {
			return nil, fmt.Errorf("jaxray: span [%d, %d) out of bounds for dim %q (size %d)", start, stop, dim, n)
		}
		actions[dim] = dimAction{lo: start, hi: stop - 1}
	}

	return a.compose(actions)
}

// resolveSelection turns one coordinate selection into index space.
func resolveSelection(ax *coordindex.Axis, sel Selection, o selOptions) (dimAction, error) {
	switch sel.kind {
	case selAt:
		i, err := coordindex.Resolve(ax, sel.value, o.resolveOptions(coordindex.MethodExact))
		if err != nil {
			return dimAction{}, err
		}
		return dimAction{fix: true, idx: i}, nil

	case selAmong:
		if len(sel.values) == 0 {
			return dimAction{}, fmt.Errorf("jaxray: empty list selection on %q", ax.Name)
		}
		lo, hi := -1, -1
		for _, v := range sel.values {
			i, err := coordindex.Resolve(ax, v, o.resolveOptions(coordindex.MethodExact))
			if err != nil {
				return dimAction{}, err
			}
			if lo == -1 || i < lo {
				lo = i
			}
			if i > hi {
				hi = i
			}
		}
		return dimAction{lo: lo, hi: hi}, nil

	case selBetween:
		lo := 0
		if sel.start != nil {
			i, err := coordindex.Resolve(ax, sel.start, o.resolveOptions(coordindex.MethodBfill))
			if err != nil {
				return dimAction{}, err
			}
			lo = i
		}
		hi := ax.Len() - 1
		if sel.stop != nil {
			i, err := coordindex.Resolve(ax, sel.stop, o.resolveOptions(coordindex.MethodFfill))
			if err != nil {
				return dimAction{}, err
			}
			hi = i
		}
		if lo > hi {
			return dimAction{}, fmt.Errorf("jaxray: range selection on %q is empty (resolved window [%d, %d])", ax.Name, lo, hi)
		}
		return dimAction{lo: lo, hi: hi}, nil

	default:
		return dimAction{}, fmt.Errorf("jaxray: unknown selection kind %d", sel.kind)
	}
}

// compose applies resolved per-dim actions and builds the new array.
// Window mappings are sliced from the current mapping, so they keep
// pointing at original-array indices regardless of chaining depth.
func (a *DataArray) compose(actions map[string]dimAction) (*DataArray, error) {
	out := a.clone()
	out.dims = out.dims[:0]

	var (
		newShape []int
		spans    []Span
	)
	shape := a.block.Shape()

	for i, d := range a.dims {
		act, selected := actions[d]
		if !selected {
			out.dims = append(out.dims, d)
			newShape = append(newShape, shape[i])
			spans = append(spans, Slice(0, shape[i]))
			continue
		}

		if act.fix {
			out.fixed[d] = a.mapping[d][act.idx]
			delete(out.coords, d)
			delete(out.mapping, d)
			spans = append(spans, Index(act.idx))
			continue
		}

		out.dims = append(out.dims, d)
		n := act.hi - act.lo + 1
		newShape = append(newShape, n)
		out.mapping[d] = append([]int(nil), a.mapping[d][act.lo:act.hi+1]...)
		out.coords[d] = a.coords[d].Slice(act.lo, act.hi+1)
		spans = append(spans, Slice(act.lo, act.hi+1))
	}

	if a.block.Lazy() {
		block, err := NewLazyBlock(out.dims, newShape, makeFetch(a.rootFetch, out.dims, out.mapping, out.fixed))
		if err != nil {
			return nil, err
		}
		out.block = block
	} else {
		vals, err := a.block.Values()
		if err != nil {
			return nil, err
		}
		out.block = NewEagerBlock(sliceEager(vals, spans))
		out.rootFetch = nil
	}

	a.log.Debug("selection composed", "array", a.name, "selected", len(actions), "dims", len(out.dims))
	return out, nil
}

// makeFetch builds a fetch that translates child-space spans into the
// original loader's index space. Window mappings are contiguous and
// ascending, so a slice span translates through its endpoints; scalar
// spans clamp into the window before translating; pinned dims always
// contribute their fixed original index.
func makeFetch(root FetchFunc, dims []string, mapping map[string][]int, fixed map[string]int) FetchFunc {
	dims = append([]string(nil), dims...)

	translated := make(map[string][]int, len(dims))
	for _, d := range dims {
		translated[d] = append([]int(nil), mapping[d]...)
	}
	pinned := make(map[string]int, len(fixed))
	for d, i := range fixed {
		pinned[d] = i
	}

	return func(ctx context.Context, sel map[string]Span) (Values, error) {
		rootSel := make(map[string]Span, len(dims)+len(pinned))
		for _, d := range dims {
			m := translated[d]
			sp, ok := sel[d]
			if !ok {
				sp = Slice(0, len(m))
			}
			if sp.IsScalar() {
				i := sp.Scalar()
				if i < 0 {
					i = 0
				}
				if i > len(m)-1 {
					i = len(m) - 1
				}
				rootSel[d] = Index(m[i])
				continue
			}
			start, stop := sp.Bounds()
			if start < 0 || stop > len(m) || start >= stop {
				return Values{}, fmt.Errorf("jaxray: span [%d, %d) out of bounds for dim %q (size %d)", start, stop, d, len(m))
			}
			rootSel[d] = Slice(m[start], m[stop-1]+1)
		}
		for d, i := range pinned {
			rootSel[d] = Index(i)
		}
		return root(ctx, rootSel)
	}
}

// sliceEager copies the window the per-source-dim spans describe out
// of materialized values. Scalar spans drop their dimension.
func sliceEager(v Values, spans []Span) Values {
	st := strides(v.Shape)

	base := 0
	var (
		outShape []int
		kept     []int
	)
	for i, sp := range spans {
		if sp.IsScalar() {
			base += sp.Scalar() * st[i]
			continue
		}
		start, stop := sp.Bounds()
		base += start * st[i]
		outShape = append(outShape, stop-start)
		kept = append(kept, i)
	}

	n := shapeSize(outShape)
	out := make([]float64, n)
	idx := make([]int, len(outShape))
	for k := 0; k < n; k++ {
		src := base
		for j, d := range kept {
			src += idx[j] * st[d]
		}
		out[k] = v.Data[src]

		for j := len(idx) - 1; j >= 0; j-- {
			idx[j]++
			if idx[j] < outShape[j] {
				break
			}
			idx[j] = 0
		}
	}
	return Values{Shape: outShape, Data: out}
}

// clone copies the array's bookkeeping without its block.
func (a *DataArray) clone() *DataArray {
	out := &DataArray{
		name:      a.name,
		dims:      append([]string(nil), a.dims...),
		coords:    make(map[string]*coordindex.Axis, len(a.coords)),
		attrs:     a.attrs,
		block:     a.block,
		rootFetch: a.rootFetch,
		mapping:   make(map[string][]int, len(a.mapping)),
		fixed:     make(map[string]int, len(a.fixed)),
		log:       a.log,
	}
	for d, ax := range a.coords {
		out.coords[d] = ax
	}
	for d, m := range a.mapping {
		out.mapping[d] = m
	}
	for d, i := range a.fixed {
		out.fixed[d] = i
	}
	return out
}
