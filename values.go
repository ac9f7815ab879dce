package jaxray

import "fmt"

// Values holds materialized array data in row-major (C) order.
// Shape gives the extent per dimension; Data holds len(Shape) == 0
// scalars as a single element.
type Values struct {
	Shape []int
	Data  []float64
}

// NewValues constructs Values after checking that the data length
// matches the shape's element count.
func NewValues(shape []int, data []float64) (Values, error) {
	n := shapeSize(shape)
	if len(data) != n {
		return Values{}, &ErrShapeMismatch{Want: shape, Got: []int{len(data)}}
	}
	return Values{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Size returns the total number of elements.
func (v Values) Size() int {
	return shapeSize(v.Shape)
}

// At returns the element at the given multidimensional index.
func (v Values) At(idx ...int) (float64, error) {
	if len(idx) != len(v.Shape) {
		return 0, fmt.Errorf("jaxray: got %d indices, values have %d dims", len(idx), len(v.Shape))
	}
	flat := 0
	for d, i := range idx {
		if i < 0 || i >= v.Shape[d] {
			return 0, fmt.Errorf("jaxray: index %d out of bounds in dim %d (size %d)", i, d, v.Shape[d])
		}
		flat = flat*v.Shape[d] + i
	}
	return v.Data[flat], nil
}

// Scalar returns the single element of a zero-dimensional or
// one-element Values.
func (v Values) Scalar() (float64, error) {
	if len(v.Data) != 1 {
		return 0, fmt.Errorf("jaxray: values hold %d elements, want exactly 1", len(v.Data))
	}
	return v.Data[0], nil
}

// Equal reports whether two Values have identical shape and data.
func (v Values) Equal(o Values) bool {
	if len(v.Shape) != len(o.Shape) {
		return false
	}
	for i := range v.Shape {
		if v.Shape[i] != o.Shape[i] {
			return false
		}
	}
	if len(v.Data) != len(o.Data) {
		return false
	}
	for i := range v.Data {
		if v.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// shapeSize returns the element count of a shape. The empty shape is
// a scalar and counts as one element.
func shapeSize(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// strides returns row-major strides for a shape.
func strides(shape []int) []int {
	st := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= shape[i]
	}
	return st
}
