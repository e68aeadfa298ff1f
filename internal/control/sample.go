package control

import "github.com/golang/geo/r2"

// Sample is the per-frame control output relayed to game clients.
// X and Y are nil when there is no cursor estimate.
type Sample struct {
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	Armed bool     `json:"armed"`
	Shoot bool     `json:"shoot"`
}

func newSample(p r2.Point, armed, shoot bool) Sample {
	x, y := p.X, p.Y
	return Sample{X: &x, Y: &y, Armed: armed, Shoot: shoot}
}

// HasCursor reports whether s carries a cursor position.
func (s Sample) HasCursor() bool {
	return s.X != nil && s.Y != nil
}

// Point returns the cursor position. ok is false when s has none.
func (s Sample) Point() (p r2.Point, ok bool) {
	if !s.HasCursor() {
		return r2.Point{}, false
	}
	return r2.Point{X: *s.X, Y: *s.Y}, true
}
