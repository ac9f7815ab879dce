package jaxray

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dClimate/jaxray-go/coordindex"
)

// fetchRecorder plays the original loader: it serves slices of a
// materialized buffer and records every request it receives.
type fetchRecorder struct {
	mu    sync.Mutex
	calls []map[string]Span
	dims  []string
	root  Values
}

func newFetchRecorder(dims []string, shape []int) *fetchRecorder {
	data := make([]float64, shapeSize(shape))
	for i := range data {
		data[i] = float64(i)
	}
	return &fetchRecorder{dims: dims, root: Values{Shape: shape, Data: data}}
}

func (r *fetchRecorder) fetch(_ context.Context, sel map[string]Span) (Values, error) {
	r.mu.Lock()
	r.calls = append(r.calls, sel)
	r.mu.Unlock()

	spans := make([]Span, len(r.dims))
	for i, d := range r.dims {
		sp, ok := sel[d]
		if !ok {
			sp = Slice(0, r.root.Shape[i])
		}
		spans[i] = sp
	}
	return sliceEager(r.root, spans), nil
}

func (r *fetchRecorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fetchRecorder) lastCall() map[string]Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

// newLazyArray builds a lazy test array with positional coordinates.
func newLazyArray(t *testing.T, dims []string, shape []int) (*DataArray, *fetchRecorder) {
	t.Helper()
	rec := newFetchRecorder(dims, shape)
	block, err := NewLazyBlock(dims, shape, rec.fetch)
	require.NoError(t, err)
	arr, err := NewDataArray("test", dims, nil, block)
	require.NoError(t, err)
	return arr, rec
}

func TestLazyValuesRequireCompute(t *testing.T) {
	arr, rec := newLazyArray(t, []string{"x"}, []int{4})

	_, err := arr.Values()
	require.ErrorIs(t, err, ErrNotComputed)
	assert.Equal(t, 0, rec.callCount())
}

func TestComputeFetchesFullExtentOnce(t *testing.T) {
	arr, rec := newLazyArray(t, []string{"x", "y"}, []int{3, 4})

	out, err := arr.Compute(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rec.callCount())

	call := rec.lastCall()
	assert.Equal(t, Slice(0, 3), call["x"])
	assert.Equal(t, Slice(0, 4), call["y"])

	vals, err := out.Values()
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, vals.Shape)
	assert.Equal(t, float64(0), vals.Data[0])
	assert.Equal(t, float64(11), vals.Data[11])

	// The original array stays lazy.
	assert.True(t, arr.Lazy())
	assert.False(t, out.Lazy())
}

func TestChainedSelectionsTargetOriginalIndexSpace(t *testing.T) {
	arr, rec := newLazyArray(t, []string{"x", "y"}, []int{10, 5})

	// Narrow x to original indices 1..4, then within that view to
	// its indices 1..2. The fetch must address the original array at
	// indices 2..3, not the intermediate view.
	first, err := arr.Sel(map[string]Selection{"x": Between(1.0, 4.0)})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, first.Shape())

	second, err := first.Sel(map[string]Selection{"x": Between(2.0, 3.0)})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, second.Shape())

	// Selection alone moves no data.
	assert.Equal(t, 0, rec.callCount())

	out, err := second.Compute(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rec.callCount())

	call := rec.lastCall()
	assert.Equal(t, Slice(2, 4), call["x"])
	assert.Equal(t, Slice(0, 5), call["y"])

	vals, err := out.Values()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, vals.Shape)
	// Rows 2 and 3 of the original 10x5 buffer.
	assert.Equal(t, float64(10), vals.Data[0])
	assert.Equal(t, float64(19), vals.Data[9])
}

func TestScalarSelectionPinsDimension(t *testing.T) {
	arr, rec := newLazyArray(t, []string{"x", "y"}, []int{10, 5})

	sel, err := arr.Sel(map[string]Selection{"y": At(3.0)})
	require.NoError(t, err)

	assert.Equal(t, []string{"x"}, sel.Dims())
	assert.Equal(t, []int{10}, sel.Shape())
	idx, ok := sel.FixedIndex("y")
	require.True(t, ok)
	assert.Equal(t, 3, idx)
	_, ok = sel.Coords("y")
	assert.False(t, ok)

	out, err := sel.Compute(context.Background())
	require.NoError(t, err)

	call := rec.lastCall()
	assert.Equal(t, Index(3), call["y"])
	assert.Equal(t, Slice(0, 10), call["x"])

	vals, err := out.Values()
	require.NoError(t, err)
	assert.Equal(t, []int{10}, vals.Shape)
	assert.Equal(t, float64(3), vals.Data[0])
	assert.Equal(t, float64(48), vals.Data[9])
}

func TestScalarSelectionSurvivesChaining(t *testing.T) {
	arr, rec := newLazyArray(t, []string{"x", "y"}, []int{10, 5})

	sel, err := arr.Sel(map[string]Selection{"y": At(2.0)})
	require.NoError(t, err)
	sel, err = sel.Sel(map[string]Selection{"x": Between(4.0, 6.0)})
	require.NoError(t, err)

	_, err = sel.Compute(context.Background())
	require.NoError(t, err)

	call := rec.lastCall()
	assert.Equal(t, Index(2), call["y"])
	assert.Equal(t, Slice(4, 7), call["x"])
}

func TestDisjointSelectionsCommute(t *testing.T) {
	mk := func() (*DataArray, *fetchRecorder) {
		return newLazyArray(t, []string{"x", "y"}, []int{8, 6})
	}
	ctx := context.Background()

	xFirst, recA := mk()
	a, err := xFirst.Sel(map[string]Selection{"x": Between(2.0, 5.0)})
	require.NoError(t, err)
	a, err = a.Sel(map[string]Selection{"y": Between(1.0, 3.0)})
	require.NoError(t, err)
	outA, err := a.Compute(ctx)
	require.NoError(t, err)

	yFirst, recB := mk()
	b, err := yFirst.Sel(map[string]Selection{"y": Between(1.0, 3.0)})
	require.NoError(t, err)
	b, err = b.Sel(map[string]Selection{"x": Between(2.0, 5.0)})
	require.NoError(t, err)
	outB, err := b.Compute(ctx)
	require.NoError(t, err)

	merged, recC := mk()
	c, err := merged.Sel(map[string]Selection{
		"x": Between(2.0, 5.0),
		"y": Between(1.0, 3.0),
	})
	require.NoError(t, err)
	outC, err := c.Compute(ctx)
	require.NoError(t, err)

	assert.Equal(t, recA.lastCall(), recB.lastCall())
	assert.Equal(t, recA.lastCall(), recC.lastCall())

	valsA, err := outA.Values()
	require.NoError(t, err)
	valsB, err := outB.Values()
	require.NoError(t, err)
	valsC, err := outC.Values()
	require.NoError(t, err)
	assert.True(t, valsA.Equal(valsB))
	assert.True(t, valsA.Equal(valsC))
}

func TestLazyAndEagerSelectionAgree(t *testing.T) {
	ctx := context.Background()
	lazy, _ := newLazyArray(t, []string{"x", "y"}, []int{7, 4})

	sels := map[string]Selection{
		"x": Between(2.0, 5.0),
		"y": At(1.0),
	}

	lazySel, err := lazy.Sel(sels)
	require.NoError(t, err)
	lazyOut, err := lazySel.Compute(ctx)
	require.NoError(t, err)

	eager, err := lazy.Compute(ctx)
	require.NoError(t, err)
	eagerSel, err := eager.Sel(sels)
	require.NoError(t, err)
	require.False(t, eagerSel.Lazy())

	lazyVals, err := lazyOut.Values()
	require.NoError(t, err)
	eagerVals, err := eagerSel.Values()
	require.NoError(t, err)
	assert.True(t, lazyVals.Equal(eagerVals))
}

func TestAmongKeepsContiguousWindow(t *testing.T) {
	arr, rec := newLazyArray(t, []string{"x"}, []int{10})

	sel, err := arr.Sel(map[string]Selection{"x": Among(6.0, 2.0, 4.0)})
	require.NoError(t, err)
	assert.Equal(t, []int{5}, sel.Shape())

	ax, ok := sel.Coords("x")
	require.True(t, ok)
	assert.Equal(t, []any{2.0, 3.0, 4.0, 5.0, 6.0}, ax.Values)

	_, err = sel.Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Slice(2, 7), rec.lastCall()["x"])
}

func TestSelWithCoordinateAxes(t *testing.T) {
	rec := newFetchRecorder([]string{"time", "lat"}, []int{5, 3})
	block, err := NewLazyBlock([]string{"time", "lat"}, []int{5, 3}, rec.fetch)
	require.NoError(t, err)

	coords := map[string]*coordindex.Axis{
		"time": coordindex.NewAxis("time", []any{0.0, 6.0, 12.0, 18.0, 24.0},
			map[string]any{"units": "hours since 2021-01-01"}),
		"lat": coordindex.NewAxis("lat", []any{-10.0, 0.0, 10.0}, nil),
	}
	arr, err := NewDataArray("temp", []string{"time", "lat"}, coords, block)
	require.NoError(t, err)

	sel, err := arr.Sel(map[string]Selection{
		"time": At("2021-01-01T07:00:00Z"),
		"lat":  At(0.0),
	}, WithMethod(coordindex.MethodNearest))
	require.NoError(t, err)

	ti, ok := sel.FixedIndex("time")
	require.True(t, ok)
	assert.Equal(t, 1, ti)
	li, ok := sel.FixedIndex("lat")
	require.True(t, ok)
	assert.Equal(t, 1, li)
}

func TestSelErrors(t *testing.T) {
	arr, _ := newLazyArray(t, []string{"x"}, []int{5})

	t.Run("unknown dimension", func(t *testing.T) {
		_, err := arr.Sel(map[string]Selection{"z": At(1.0)})
		var dimErr *ErrDimensionNotFound
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, "z", dimErr.Dim)
	})

	t.Run("exact miss", func(t *testing.T) {
		_, err := arr.Sel(map[string]Selection{"x": At(1.5)})
		require.ErrorIs(t, err, coordindex.ErrNotFound)
	})

	t.Run("empty range", func(t *testing.T) {
		_, err := arr.Sel(map[string]Selection{"x": Between(2.4, 2.6)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})

	t.Run("empty list", func(t *testing.T) {
		_, err := arr.Sel(map[string]Selection{"x": Among()})
		require.Error(t, err)
	})
}

func TestISel(t *testing.T) {
	arr, rec := newLazyArray(t, []string{"x", "y"}, []int{6, 4})

	sel, err := arr.ISel(map[string]Span{
		"x": Slice(1, 4),
		"y": Index(2),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, sel.Dims())
	assert.Equal(t, []int{3}, sel.Shape())

	sel, err = sel.ISel(map[string]Span{"x": Slice(1, 3)})
	require.NoError(t, err)

	_, err = sel.Compute(context.Background())
	require.NoError(t, err)

	call := rec.lastCall()
	assert.Equal(t, Slice(2, 4), call["x"])
	assert.Equal(t, Index(2), call["y"])
}

func TestISelBounds(t *testing.T) {
	arr, _ := newLazyArray(t, []string{"x"}, []int{5})

	_, err := arr.ISel(map[string]Span{"x": Index(5)})
	require.Error(t, err)

	_, err = arr.ISel(map[string]Span{"x": Slice(2, 7)})
	require.Error(t, err)

	_, err = arr.ISel(map[string]Span{"z": Index(0)})
	var dimErr *ErrDimensionNotFound
	require.ErrorAs(t, err, &dimErr)
}

func TestOutOfRangeScalarFetchClamps(t *testing.T) {
	rec := newFetchRecorder([]string{"x"}, []int{10})
	fetch := makeFetch(rec.fetch, []string{"x"}, map[string][]int{"x": {3, 4, 5}}, nil)

	_, err := fetch(context.Background(), map[string]Span{"x": Index(7)})
	require.NoError(t, err)
	assert.Equal(t, Index(5), rec.lastCall()["x"])

	_, err = fetch(context.Background(), map[string]Span{"x": Index(-2)})
	require.NoError(t, err)
	assert.Equal(t, Index(3), rec.lastCall()["x"])
}

func TestComputeValidatesFetchedShape(t *testing.T) {
	badFetch := func(context.Context, map[string]Span) (Values, error) {
		return Values{Shape: []int{2}, Data: []float64{1, 2}}, nil
	}
	block, err := NewLazyBlock([]string{"x"}, []int{3}, badFetch)
	require.NoError(t, err)
	arr, err := NewDataArray("bad", []string{"x"}, nil, block)
	require.NoError(t, err)

	_, err = arr.Compute(context.Background())
	var shapeErr *ErrShapeMismatch
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, []int{3}, shapeErr.Want)
}

func TestNewDataArrayValidation(t *testing.T) {
	block := NewEagerBlock(Values{Shape: []int{2, 3}, Data: make([]float64, 6)})

	t.Run("dim count mismatch", func(t *testing.T) {
		_, err := NewDataArray("a", []string{"x"}, nil, block)
		require.Error(t, err)
	})

	t.Run("duplicate dims", func(t *testing.T) {
		_, err := NewDataArray("a", []string{"x", "x"}, nil, block)
		require.Error(t, err)
	})

	t.Run("coordinate length mismatch", func(t *testing.T) {
		coords := map[string]*coordindex.Axis{
			"x": coordindex.NewAxis("x", []any{1.0}, nil),
		}
		_, err := NewDataArray("a", []string{"x", "y"}, coords, block)
		require.Error(t, err)
	})
}

func TestEagerSliceValues(t *testing.T) {
	// 2x3 buffer: [[0 1 2] [3 4 5]]
	block := NewEagerBlock(Values{Shape: []int{2, 3}, Data: []float64{0, 1, 2, 3, 4, 5}})
	arr, err := NewDataArray("a", []string{"x", "y"}, nil, block)
	require.NoError(t, err)

	sel, err := arr.ISel(map[string]Span{"x": Index(1), "y": Slice(1, 3)})
	require.NoError(t, err)

	vals, err := sel.Values()
	require.NoError(t, err)
	assert.Equal(t, []int{2}, vals.Shape)
	assert.Equal(t, []float64{4, 5}, vals.Data)
}
