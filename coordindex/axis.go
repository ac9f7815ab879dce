package coordindex

import "sync"

// Axis is one dimension's ordered coordinate sequence plus its metadata
// attributes. An Axis is immutable once constructed; the numeric view of
// its values is computed lazily and memoized.
type Axis struct {
	Name   string
	Values []any
	Attrs  map[string]any

	once    sync.Once
	numeric []float64
	isNum   bool
	tenc    *timeEncoding
}

// NewAxis creates an axis over the given coordinate values.
func NewAxis(name string, values []any, attrs map[string]any) *Axis {
	return &Axis{Name: name, Values: values, Attrs: attrs}
}

// Len returns the number of coordinates on the axis.
func (a *Axis) Len() int { return len(a.Values) }

// Slice returns a new axis over values[start:stop].
func (a *Axis) Slice(start, stop int) *Axis {
	return NewAxis(a.Name, a.Values[start:stop], a.Attrs)
}

// IsTime reports whether the axis is tagged as a time coordinate, either by
// name or by a CF-style "<unit> since <instant>" units attribute.
func (a *Axis) IsTime() bool {
	a.normalize()
	return a.tenc != nil
}

// numericValues returns the axis values normalized to float64 offsets. The
// second result is false when any value cannot be normalized; such axes
// only support exact lookups.
func (a *Axis) numericValues() ([]float64, bool) {
	a.normalize()
	return a.numeric, a.isNum
}

// convert normalizes a single target value the same way the axis values
// were normalized.
func (a *Axis) convert(v any) (float64, bool) {
	a.normalize()
	if a.tenc != nil {
		return a.tenc.offsetOf(v)
	}
	return toFloat(v)
}

func (a *Axis) normalize() {
	a.once.Do(func() {
		a.tenc = timeEncodingFromAttrs(a.Attrs)

		a.numeric = make([]float64, len(a.Values))
		a.isNum = true
		for i, v := range a.Values {
			var f float64
			var ok bool
			if a.tenc != nil {
				f, ok = a.tenc.offsetOf(v)
			} else {
				f, ok = toFloat(v)
			}
			if !ok {
				a.numeric = nil
				a.isNum = false
				return
			}
			a.numeric[i] = f
		}
	})
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}
