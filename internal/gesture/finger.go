// Package gesture turns per-frame hand landmarks into the armed/shoot control
// signals: finger pose and palm orientation classification, the distance and
// velocity heuristics, and the debouncing state machine.
//
// Nothing in this package is safe for concurrent use. One Rules value (and the
// StateMachine and OrientationClassifier it owns) belongs to exactly one
// tracked hand and must be driven from a single goroutine.
package gesture

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/ayusman/fingergun/internal/detector"
)

// FingerState is the 3-way flexion state of a finger.
type FingerState int

const (
	FingerExtended FingerState = iota
	FingerNeutral
	FingerFolded
)

func (s FingerState) String() string {
	switch s {
	case FingerExtended:
		return "EXTENDED"
	case FingerFolded:
		return "FOLDED"
	default:
		return "NEUTRAL"
	}
}

// Finger identifies one of the five fingers.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
	numFingers
)

func (f Finger) String() string {
	return [...]string{"thumb", "index", "middle", "ring", "pinky"}[f]
}

// FingerThresholds are the average joint-angle limits, in radians, used to
// classify a finger. A straight finger has joint angles near π and so reads
// as FOLDED.
type FingerThresholds struct {
	Extended float64 // below: EXTENDED
	Folded   float64 // above: FOLDED
}

var (
	// DefaultFingerThresholds applies to index, middle, ring and pinky.
	DefaultFingerThresholds = FingerThresholds{Extended: 0.5, Folded: 1.0}
	// DefaultThumbThresholds applies to the thumb.
	DefaultThumbThresholds = FingerThresholds{Extended: 0.6, Folded: 0.9}
)

// fingerJoints lists MCP, PIP, DIP, TIP for each non-thumb finger.
var fingerJoints = [numFingers][4]int{
	Index:  {detector.IndexMCP, detector.IndexPIP, detector.IndexDIP, detector.IndexTip},
	Middle: {detector.MiddleMCP, detector.MiddlePIP, detector.MiddleDIP, detector.MiddleTip},
	Ring:   {detector.RingMCP, detector.RingPIP, detector.RingDIP, detector.RingTip},
	Pinky:  {detector.PinkyMCP, detector.PinkyPIP, detector.PinkyDIP, detector.PinkyTip},
}

// JointAngle returns the angle at joint b between the vectors b→a and b→c.
// A straight chain gives π and a chain folded back onto itself gives 0.
// A zero-length segment gives π/2.
func JointAngle(a, b, c r3.Vector) float64 {
	v1 := a.Sub(b)
	v2 := c.Sub(b)

	n1, n2 := v1.Norm(), v2.Norm()
	if n1 == 0 || n2 == 0 {
		return math.Pi / 2
	}

	cos := v1.Dot(v2) / (n1 * n2)
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}

// FingerBend returns the averaged joint angle of the two distal joints of f.
// For the thumb these are the MCP (wrist–MCP–IP) and IP (MCP–IP–TIP) joints,
// for the other fingers the PIP and DIP joints.
func FingerBend(h *detector.HandLandmarks, f Finger) float64 {
	if f == Thumb {
		wrist, mcp := h.Vec(detector.Wrist), h.Vec(detector.ThumbMCP)
		ip, tip := h.Vec(detector.ThumbIP), h.Vec(detector.ThumbTip)
		return (JointAngle(wrist, mcp, ip) + JointAngle(mcp, ip, tip)) / 2
	}

	j := fingerJoints[f]
	mcp, pip, dip, tip := h.Vec(j[0]), h.Vec(j[1]), h.Vec(j[2]), h.Vec(j[3])
	return (JointAngle(mcp, pip, dip) + JointAngle(pip, dip, tip)) / 2
}

// ClassifyFinger classifies f. The thresholds for f are multiplied by
// adjust, so values above 1 loosen them; pass 1 for no adjustment.
func ClassifyFinger(h *detector.HandLandmarks, f Finger, adjust float64) FingerState {
	th := DefaultFingerThresholds
	if f == Thumb {
		th = DefaultThumbThresholds
	}

	bend := FingerBend(h, f)
	switch {
	case bend < th.Extended*adjust:
		return FingerExtended
	case bend > th.Folded*adjust:
		return FingerFolded
	default:
		return FingerNeutral
	}
}

// HandPose holds the state of every finger, indexed by Finger.
type HandPose [numFingers]FingerState

// ClassifyHand classifies all five fingers.
func ClassifyHand(h *detector.HandLandmarks, adjust float64) HandPose {
	var pose HandPose
	for f := Thumb; f < numFingers; f++ {
		pose[f] = ClassifyFinger(h, f, adjust)
	}
	return pose
}

// Get returns the state of f.
func (p HandPose) Get(f Finger) FingerState {
	return p[f]
}
