package evaluation

import "math"

// Value is the outcome of a metric on one split: either a defined number
// or Undefined. It never carries NaN.
type Value struct {
	v       float64
	defined bool
}

// Defined wraps v. Non-finite inputs yield Undefined.
func Defined(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined()
	}
	return Value{v: v, defined: true}
}

// Undefined is the result of a metric that cannot be computed on a split.
func Undefined() Value { return Value{} }

// Get returns the number and whether it is defined.
func (v Value) Get() (float64, bool) { return v.v, v.defined }

// IsDefined reports whether v holds a number.
func (v Value) IsDefined() bool { return v.defined }
