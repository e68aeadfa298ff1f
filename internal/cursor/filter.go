// Package cursor turns hand landmarks into a smoothed 2D cursor position.
package cursor

import (
	"math"

	"github.com/golang/geo/r2"
)

// Filter is an exponential moving average over a 2D point with a deadzone.
// The filtered value only moves when a sample differs from it by more than
// the deadzone on at least one axis.
type Filter struct {
	alpha    float64
	deadzone float64
	value    r2.Point
	primed   bool
}

// NewFilter creates an empty Filter. alpha is the weight of the new sample.
func NewFilter(alpha, deadzone float64) *Filter {
	return &Filter{alpha: alpha, deadzone: deadzone}
}

// Update feeds raw into the filter and returns the filtered value. The first
// sample after creation or Reset is returned unchanged.
func (f *Filter) Update(raw r2.Point) r2.Point {
	if !f.primed {
		f.value = raw
		f.primed = true
		return f.value
	}

	d := raw.Sub(f.value)
	if math.Abs(d.X) > f.deadzone || math.Abs(d.Y) > f.deadzone {
		f.value = raw.Mul(f.alpha).Add(f.value.Mul(1 - f.alpha))
	}
	return f.value
}

// Value returns the current filtered value. ok is false until the first Update.
func (f *Filter) Value() (p r2.Point, ok bool) {
	return f.value, f.primed
}

// Reset forgets the filtered value.
func (f *Filter) Reset() {
	f.value = r2.Point{}
	f.primed = false
}
