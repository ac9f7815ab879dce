package coordindex

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// binarySearchMin is the axis length above which sorted axes switch from a
// linear scan to binary search.
const binarySearchMin = 20

// evenStepTolerance is the relative tolerance (against one step) used to
// decide whether an axis is evenly spaced.
const evenStepTolerance = 1e-6

// defaultIndexTolerance is the fraction of one step an exact match may be
// off by on the evenly-spaced fast path when the caller supplies no
// tolerance of their own.
const defaultIndexTolerance = 1e-3

// Method selects how a target value is matched against an axis.
type Method int

const (
	// MethodExact requires the target to match a coordinate exactly.
	MethodExact Method = iota
	// MethodNearest picks the closest coordinate. Equidistant targets
	// resolve to the lower index.
	MethodNearest
	// MethodFfill picks the nearest coordinate at or before the target.
	MethodFfill
	// MethodBfill picks the nearest coordinate at or after the target.
	MethodBfill
)

// Aliases for the xarray-style method names.
const (
	MethodPad      = MethodFfill
	MethodBackfill = MethodBfill
)

func (m Method) String() string {
	switch m {
	case MethodExact:
		return "exact"
	case MethodNearest:
		return "nearest"
	case MethodFfill:
		return "ffill"
	case MethodBfill:
		return "bfill"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// Options control how Resolve matches a target against an axis.
type Options struct {
	Method Method
	// Tolerance is the maximum allowed distance between the target and the
	// matched coordinate, in (normalized) coordinate units. Values <= 0
	// disable the check.
	Tolerance float64
}

// ErrNotFound is returned when an exact lookup has no matching coordinate.
var ErrNotFound = errors.New("coordinate not found")

// ErrOutOfRange indicates the target lies outside the axis, or no
// coordinate exists in the direction the method requires.
type ErrOutOfRange struct {
	Dim    string
	Method Method
	Target any
}

func (e *ErrOutOfRange) Error() string {
	switch e.Method {
	case MethodFfill:
		return fmt.Sprintf("dimension %q: no coordinate at or before %v", e.Dim, e.Target)
	case MethodBfill:
		return fmt.Sprintf("dimension %q: no coordinate at or after %v", e.Dim, e.Target)
	default:
		return fmt.Sprintf("dimension %q: coordinate %v out of bounds", e.Dim, e.Target)
	}
}

// ErrToleranceExceeded indicates a coordinate was matched but lies farther
// from the target than the caller allowed.
type ErrToleranceExceeded struct {
	Dim     string
	Allowed float64
	Actual  float64
}

func (e *ErrToleranceExceeded) Error() string {
	return fmt.Sprintf("dimension %q: matched coordinate is %g away, tolerance is %g", e.Dim, e.Actual, e.Allowed)
}

// Resolve maps a target coordinate value to an integer index within the
// axis. Time-tagged axes normalize both sides to numeric offsets from the
// reference instant before comparing. Axes that cannot be normalized fall
// back to exact comparison regardless of the requested method.
func Resolve(a *Axis, target any, opts Options) (int, error) {
	if a.Len() == 0 {
		return 0, &ErrOutOfRange{Dim: a.Name, Method: opts.Method, Target: target}
	}

	nums, numOK := a.numericValues()
	tgt, tgtOK := a.convert(target)
	if !numOK || !tgtOK {
		return resolveEqual(a, target)
	}

	idx, err := resolveNumeric(a.Name, nums, tgt, target, opts)
	if err != nil {
		return 0, err
	}
	if opts.Tolerance > 0 {
		if d := math.Abs(nums[idx] - tgt); d > opts.Tolerance {
			return 0, &ErrToleranceExceeded{Dim: a.Name, Allowed: opts.Tolerance, Actual: d}
		}
	}
	return idx, nil
}

func resolveNumeric(dim string, nums []float64, tgt float64, target any, opts Options) (int, error) {
	n := len(nums)
	if n == 1 {
		return resolveSingle(dim, nums[0], tgt, target, opts.Method)
	}

	if step, ok := evenStep(nums); ok {
		return resolveEven(dim, nums, tgt, target, step, opts)
	}
	if opts.Method == MethodExact {
		return scanExact(nums, tgt)
	}
	if asc, desc := sortedness(nums); (asc || desc) && n > binarySearchMin {
		return resolveSorted(dim, nums, tgt, target, desc, opts.Method)
	}
	return resolveLinear(dim, nums, tgt, target, opts.Method)
}

func resolveSingle(dim string, coord, tgt float64, target any, method Method) (int, error) {
	switch method {
	case MethodExact:
		if coord != tgt {
			return 0, ErrNotFound
		}
	case MethodFfill:
		if coord > tgt {
			return 0, &ErrOutOfRange{Dim: dim, Method: method, Target: target}
		}
	case MethodBfill:
		if coord < tgt {
			return 0, &ErrOutOfRange{Dim: dim, Method: method, Target: target}
		}
	}
	return 0, nil
}

// resolveEven is the O(1) arithmetic path for evenly-spaced axes.
func resolveEven(dim string, nums []float64, tgt float64, target any, step float64, opts Options) (int, error) {
	n := len(nums)
	raw := (tgt - nums[0]) / step

	switch opts.Method {
	case MethodExact:
		idxTol := defaultIndexTolerance
		if opts.Tolerance > 0 {
			idxTol = opts.Tolerance / math.Abs(step)
		}
		r := math.Round(raw)
		if math.Abs(raw-r) > idxTol {
			return 0, ErrNotFound
		}
		idx := int(r)
		if idx < 0 || idx >= n {
			return 0, &ErrOutOfRange{Dim: dim, Method: opts.Method, Target: target}
		}
		return idx, nil

	case MethodNearest:
		return clampIndex(roundHalfDown(raw), n), nil

	case MethodFfill:
		if step > 0 {
			idx := int(math.Floor(raw))
			if idx < 0 {
				return 0, &ErrOutOfRange{Dim: dim, Method: opts.Method, Target: target}
			}
			return clampIndex(idx, n), nil
		}
		idx := int(math.Ceil(raw))
		if idx > n-1 {
			return 0, &ErrOutOfRange{Dim: dim, Method: opts.Method, Target: target}
		}
		return clampIndex(idx, n), nil

	case MethodBfill:
		if step > 0 {
			idx := int(math.Ceil(raw))
			if idx > n-1 {
				return 0, &ErrOutOfRange{Dim: dim, Method: opts.Method, Target: target}
			}
			return clampIndex(idx, n), nil
		}
		idx := int(math.Floor(raw))
		if idx < 0 {
			return 0, &ErrOutOfRange{Dim: dim, Method: opts.Method, Target: target}
		}
		return clampIndex(idx, n), nil
	}
	return 0, fmt.Errorf("unknown method %v", opts.Method)
}

// resolveSorted binary-searches a sorted (but unevenly spaced) axis.
func resolveSorted(dim string, nums []float64, tgt float64, target any, desc bool, method Method) (int, error) {
	n := len(nums)
	if desc {
		// First index whose coordinate is <= target.
		i := sort.Search(n, func(j int) bool { return nums[j] <= tgt })
		switch method {
		case MethodFfill:
			if i == n {
				return 0, &ErrOutOfRange{Dim: dim, Method: method, Target: target}
			}
			return i, nil
		case MethodBfill:
			if i < n && nums[i] == tgt {
				return i, nil
			}
			if i == 0 {
				return 0, &ErrOutOfRange{Dim: dim, Method: method, Target: target}
			}
			return i - 1, nil
		case MethodNearest:
			return nearestOf(nums, tgt, i), nil
		}
	} else {
		// First index whose coordinate is >= target.
		i := sort.SearchFloat64s(nums, tgt)
		switch method {
		case MethodBfill:
			if i == n {
				return 0, &ErrOutOfRange{Dim: dim, Method: method, Target: target}
			}
			return i, nil
		case MethodFfill:
			if i < n && nums[i] == tgt {
				return i, nil
			}
			if i == 0 {
				return 0, &ErrOutOfRange{Dim: dim, Method: method, Target: target}
			}
			return i - 1, nil
		case MethodNearest:
			return nearestOf(nums, tgt, i), nil
		}
	}
	return 0, fmt.Errorf("unknown method %v", method)
}

// nearestOf picks between the two candidates straddling the insertion point
// i, breaking equidistant ties toward the lower index.
func nearestOf(nums []float64, tgt float64, i int) int {
	n := len(nums)
	if i == 0 {
		return 0
	}
	if i == n {
		return n - 1
	}
	dLo := math.Abs(tgt - nums[i-1])
	dHi := math.Abs(nums[i] - tgt)
	if dLo <= dHi {
		return i - 1
	}
	return i
}

// resolveLinear is the O(n) fallback for short or unsorted axes.
func resolveLinear(dim string, nums []float64, tgt float64, target any, method Method) (int, error) {
	best := -1
	var bestDist float64
	for i, v := range nums {
		switch method {
		case MethodFfill:
			if v > tgt {
				continue
			}
		case MethodBfill:
			if v < tgt {
				continue
			}
		}
		d := math.Abs(v - tgt)
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best == -1 {
		return 0, &ErrOutOfRange{Dim: dim, Method: method, Target: target}
	}
	return best, nil
}

func scanExact(nums []float64, tgt float64) (int, error) {
	for i, v := range nums {
		if v == tgt {
			return i, nil
		}
	}
	return 0, ErrNotFound
}

// resolveEqual compares values that could not be normalized to numbers.
// Every method degrades to an equality lookup here.
func resolveEqual(a *Axis, target any) (int, error) {
	want := fmt.Sprint(target)
	for i, v := range a.Values {
		if v == target || fmt.Sprint(v) == want {
			return i, nil
		}
	}
	return 0, ErrNotFound
}

// evenStep reports the constant step of an evenly-spaced axis.
func evenStep(nums []float64) (float64, bool) {
	n := len(nums)
	if n < 2 {
		return 0, false
	}
	step := (nums[n-1] - nums[0]) / float64(n-1)
	if step == 0 {
		return 0, false
	}
	tol := evenStepTolerance * math.Abs(step)
	for i := 1; i < n; i++ {
		if math.Abs(nums[i]-nums[i-1]-step) > tol {
			return 0, false
		}
	}
	return step, true
}

func sortedness(nums []float64) (asc, desc bool) {
	asc, desc = true, true
	for i := 1; i < len(nums); i++ {
		if nums[i] < nums[i-1] {
			asc = false
		}
		if nums[i] > nums[i-1] {
			desc = false
		}
	}
	return asc, desc
}

// roundHalfDown rounds to the nearest integer, breaking .5 ties downward so
// equidistant nearest matches land on the lower index.
func roundHalfDown(raw float64) int {
	f := math.Floor(raw)
	if raw-f == 0.5 {
		return int(f)
	}
	return int(math.Round(raw))
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}
