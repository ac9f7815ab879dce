package jaxray

import (
	"errors"
	"fmt"
)

var (
	// ErrNotComputed is returned when lazy values are read outside an
	// explicit Compute step. Materialization points must be visible and
	// awaited; there is no implicit synchronous fetch.
	ErrNotComputed = errors.New("lazy values require an explicit execution step: call Compute")
)

// ErrDimensionNotFound indicates a selection referenced a dimension the
// array does not have.
type ErrDimensionNotFound struct {
	Dim string
}

func (e *ErrDimensionNotFound) Error() string {
	return fmt.Sprintf("dimension %q not found", e.Dim)
}

// ErrShapeMismatch indicates a fetch returned values of an unexpected
// shape.
type ErrShapeMismatch struct {
	Want []int
	Got  []int
}

func (e *ErrShapeMismatch) Error() string {
	return fmt.Sprintf("shape mismatch: want %v, got %v", e.Want, e.Got)
}
