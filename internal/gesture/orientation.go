package gesture

import (
	"github.com/golang/geo/r3"

	"github.com/ayusman/fingergun/internal/detector"
)

// Orientation is the palm orientation relative to the camera.
type Orientation int

const (
	OrientationFront Orientation = iota
	OrientationSide
)

const (
	// OrientationHistorySize is the number of raw labels the majority vote runs over.
	OrientationHistorySize = 5

	// frontNormalZ is the minimum palm-normal Z component still classified as FRONT.
	frontNormalZ = -0.3
	// sideAngleMultiplier loosens flexion thresholds for a hand seen edge-on.
	sideAngleMultiplier = 1.2
)

func (o Orientation) String() string {
	if o == OrientationSide {
		return "side"
	}
	return "front"
}

// AngleMultiplier returns the factor applied to flexion thresholds for o.
func (o Orientation) AngleMultiplier() float64 {
	if o == OrientationSide {
		return sideAngleMultiplier
	}
	return 1.0
}

// PalmNormal returns the unit normal of the plane spanned by wrist→index-MCP
// and wrist→pinky-MCP. ok is false when the two edges are parallel or empty.
func PalmNormal(h *detector.HandLandmarks) (n r3.Vector, ok bool) {
	wrist := h.Vec(detector.Wrist)
	v1 := h.Vec(detector.IndexMCP).Sub(wrist)
	v2 := h.Vec(detector.PinkyMCP).Sub(wrist)

	normal := v1.Cross(v2)
	if normal.Norm() == 0 {
		return r3.Vector{}, false
	}
	return normal.Normalize(), true
}

// ClassifyOrientation returns the raw, unsmoothed orientation of h.
// Degenerate palms are reported as FRONT.
func ClassifyOrientation(h *detector.HandLandmarks) Orientation {
	n, ok := PalmNormal(h)
	if !ok || n.Z > frontNormalZ {
		return OrientationFront
	}
	return OrientationSide
}

// OrientationClassifier smooths raw orientation labels by majority vote over
// the most recent frames.
type OrientationClassifier struct {
	history *ring[Orientation]
}

// NewOrientationClassifier creates a classifier with an empty history.
func NewOrientationClassifier() *OrientationClassifier {
	return &OrientationClassifier{history: newRing[Orientation](OrientationHistorySize)}
}

// Classify records the raw orientation of h and returns the majority label.
func (c *OrientationClassifier) Classify(h *detector.HandLandmarks) Orientation {
	c.history.push(ClassifyOrientation(h))
	return c.majority()
}

// majority returns the most frequent label. On a tie the label seen first
// (oldest) wins.
func (c *OrientationClassifier) majority() Orientation {
	values := c.history.values()

	var counts [2]int
	for _, o := range values {
		counts[o]++
	}

	best, bestCount := OrientationFront, 0
	for _, o := range values {
		if counts[o] > bestCount {
			best, bestCount = o, counts[o]
		}
	}
	return best
}

// Reset clears the history.
func (c *OrientationClassifier) Reset() {
	c.history.clear()
}
