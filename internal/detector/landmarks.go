// Package detector provides hand landmark types and the adapters that produce them.
package detector

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// MinHandScale is the floor applied to the wrist to middle-MCP distance.
const MinHandScale = 0.01

// Point3D is a landmark position. X and Y are normalized image coordinates
// in [0,1] (Y grows downward), Z is a signed depth relative to the wrist.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec returns the point as an r3 vector.
func (p Point3D) Vec() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// HandLandmarks is one frame of the 21 ordered hand joints for a single hand.
// It is treated as immutable once produced by a Detector.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// FromPoints builds a HandLandmarks from an ordered slice of joints.
// It panics when the slice does not hold exactly NumLandmarks points:
// a wrong-sized frame is a programming error, not a runtime condition.
func FromPoints(points []Point3D) HandLandmarks {
	if len(points) != NumLandmarks {
		panic(fmt.Sprintf("detector: hand frame needs %d landmarks, got %d", NumLandmarks, len(points)))
	}

	var h HandLandmarks
	copy(h.Points[:], points)
	return h
}

// Vec returns landmark i as an r3 vector.
func (h *HandLandmarks) Vec(i int) r3.Vector {
	return h.Points[i].Vec()
}

// distance3D calculates the Euclidean distance between two 3D points.
func distance3D(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// PalmCenter returns the mean of the wrist and the four finger MCP joints.
func (h *HandLandmarks) PalmCenter() Point3D {
	joints := [...]int{Wrist, IndexMCP, MiddleMCP, RingMCP, PinkyMCP}

	var c Point3D
	for _, j := range joints {
		c.X += h.Points[j].X
		c.Y += h.Points[j].Y
		c.Z += h.Points[j].Z
	}

	n := float64(len(joints))
	return Point3D{X: c.X / n, Y: c.Y / n, Z: c.Z / n}
}

// Scale returns the wrist to middle-MCP distance, floored at MinHandScale
// so callers can divide by it.
func (h *HandLandmarks) Scale() float64 {
	return math.Max(distance3D(h.Points[Wrist], h.Points[MiddleMCP]), MinHandScale)
}
