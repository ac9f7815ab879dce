package jaxray

import "github.com/dClimate/jaxray-go/coordindex"

type selKind int

const (
	selAt selKind = iota
	selAmong
	selBetween
)

// Selection picks coordinates along one dimension. Build one with At,
// Among or Between.
type Selection struct {
	kind   selKind
	value  any
	values []any
	start  any
	stop   any
}

// At selects a single coordinate. The dimension is dropped from the
// result.
func At(v any) Selection {
	return Selection{kind: selAt, value: v}
}

// Among selects the contiguous window spanning the given coordinates,
// from the lowest resolved index to the highest.
func Among(vs ...any) Selection {
	return Selection{kind: selAmong, values: vs}
}

// Between selects the coordinate range [start, stop], inclusive of
// both resolved endpoints. A nil start or stop leaves that side open.
func Between(start, stop any) Selection {
	return Selection{kind: selBetween, start: start, stop: stop}
}

// selOptions collects per-call selection behavior.
type selOptions struct {
	method    coordindex.Method
	methodSet bool
	tolerance float64
}

// SelOption configures a Sel call.
type SelOption func(*selOptions)

// WithMethod overrides the lookup method for every selection in the
// call. Without it, scalar and list selections resolve exactly while
// range boundaries snap inward (bfill at start, ffill at stop).
func WithMethod(m coordindex.Method) SelOption {
	return func(o *selOptions) {
		o.method = m
		o.methodSet = true
	}
}

// WithTolerance bounds how far an inexact match may sit from its
// target. Zero or negative disables the check.
func WithTolerance(t float64) SelOption {
	return func(o *selOptions) {
		o.tolerance = t
	}
}

// resolveOptions returns the coordindex options for one lookup,
// falling back to def when no method override was given.
func (o selOptions) resolveOptions(def coordindex.Method) coordindex.Options {
	m := def
	if o.methodSet {
		m = o.method
	}
	return coordindex.Options{Method: m, Tolerance: o.tolerance}
}
