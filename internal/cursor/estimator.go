package cursor

import (
	"github.com/golang/geo/r2"

	"github.com/ayusman/fingergun/internal/detector"
)

// minDirectionNorm is the shortest wrist to index-tip vector that is normalized.
const minDirectionNorm = 0.01

// Config holds the smoothing factors of an Estimator.
type Config struct {
	Alpha          float64 `yaml:"alpha"`
	Deadzone       float64 `yaml:"deadzone"`
	DirectionAlpha float64 `yaml:"direction_alpha"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Alpha:          0.7,
		Deadzone:       0.001,
		DirectionAlpha: 0.6,
	}
}

// Estimator computes the cursor from the index fingertip.
//
// While armed it also tracks a smoothed pointing direction (wrist to index
// tip). The direction does not move the emitted cursor; it is kept for aim
// assist and for the debug overlay.
type Estimator struct {
	position  *Filter
	direction *Filter
}

// NewEstimator creates an Estimator with empty filters.
func NewEstimator(cfg Config) *Estimator {
	return &Estimator{
		position:  NewFilter(cfg.Alpha, cfg.Deadzone),
		direction: NewFilter(cfg.DirectionAlpha, 0),
	}
}

// Update returns the smoothed cursor for h.
func (e *Estimator) Update(h *detector.HandLandmarks, armed bool) r2.Point {
	tip := h.Points[detector.IndexTip]
	raw := r2.Point{X: tip.X, Y: tip.Y}

	if armed {
		wrist := h.Points[detector.Wrist]
		dir := raw.Sub(r2.Point{X: wrist.X, Y: wrist.Y})
		if dir.Norm() > minDirectionNorm {
			dir = dir.Normalize()
		}
		e.direction.Update(dir)
	} else {
		e.direction.Reset()
	}

	return e.position.Update(raw)
}

// Direction returns the smoothed pointing direction. ok is false when the
// hand was not armed on the last update.
func (e *Estimator) Direction() (r2.Point, bool) {
	return e.direction.Value()
}

// Position returns the last smoothed cursor. ok is false before the first
// update and after Reset.
func (e *Estimator) Position() (r2.Point, bool) {
	return e.position.Value()
}

// Reset clears both filters so the next update starts from the raw sample.
func (e *Estimator) Reset() {
	e.position.Reset()
	e.direction.Reset()
}
