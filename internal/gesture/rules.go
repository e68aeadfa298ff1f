package gesture

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/fingergun/internal/detector"
)

// Params configures the armed and shoot heuristics.
type Params struct {
	// ShootThreshold is the per-frame wrist Y displacement that counts as a shot.
	ShootThreshold float64 `yaml:"shoot_threshold"`
	// MinVelocity is the buffered peak velocity reported as sufficient in Motion.
	MinVelocity float64 `yaml:"min_velocity"`
	// ShootCooldown is the minimum time between two accepted shots.
	ShootCooldown time.Duration `yaml:"shoot_cooldown"`
	// VelocityBufferSize bounds the wrist velocity history.
	VelocityBufferSize int `yaml:"velocity_buffer_size"`
	// ShootPulseFrames is how many consecutive frames an accepted shot is reported for.
	ShootPulseFrames int `yaml:"shoot_pulse_frames"`
	// BentTipMid is the tip-below-PIP margin for a curled finger.
	BentTipMid float64 `yaml:"bent_tip_mid"`
	// BentTipBase is the tip-below-MCP margin for a curled finger.
	BentTipBase float64 `yaml:"bent_tip_base"`
	// MinBentFingers is how many of middle/ring/pinky must be curled.
	MinBentFingers int `yaml:"min_bent_fingers"`

	State StateParams `yaml:"state"`
}

// DefaultParams returns the tuned defaults.
func DefaultParams() Params {
	return Params{
		ShootThreshold:     0.002,
		MinVelocity:        0.0015,
		ShootCooldown:      300 * time.Millisecond,
		VelocityBufferSize: 5,
		ShootPulseFrames:   2,
		BentTipMid:         0.003,
		BentTipBase:        0.002,
		MinBentFingers:     2,
		State:              DefaultStateParams(),
	}
}

// ArmedSignal is the full per-frame armed classification.
type ArmedSignal struct {
	// Raw is the authoritative distance-based decision.
	Raw bool
	// Angle is the joint-angle decision. It is advisory only and never
	// gates Raw.
	Angle bool
	// Pose holds the per-finger states behind Angle.
	Pose HandPose
	// Orientation is the smoothed palm orientation used to scale Angle's thresholds.
	Orientation Orientation
	// Transition is the state machine output after feeding Raw.
	Transition Transition
}

// Motion holds the wrist velocity statistics of the last processed frame.
type Motion struct {
	DeltaY       float64
	MaxVelocity  float64
	StdVelocity  float64
	Sufficient   bool
	Consistent   bool
	Accelerating bool
	Samples      int
}

// Palm is the palm center and hand scale of the last armed check.
type Palm struct {
	Center detector.Point3D
	Scale  float64
	Valid  bool
}

// Rules evaluates the armed and shoot heuristics for one tracked hand.
type Rules struct {
	params      Params
	machine     *StateMachine
	orientation *OrientationClassifier

	prevWristY float64
	prevIndexY float64
	hasPrev    bool
	velocity   *ring[float64]

	pulseActive bool
	pulseFrames int
	lastShoot   time.Time

	signal ArmedSignal
	motion Motion
	palm   Palm
}

// NewRules creates Rules with its own state machine and orientation history.
func NewRules(params Params) *Rules {
	return &Rules{
		params:      params,
		machine:     NewStateMachine(params.State),
		orientation: NewOrientationClassifier(),
		velocity:    newRing[float64](params.VelocityBufferSize),
	}
}

// IsArmed reports whether h is in the finger-gun pose.
//
// The returned value is the raw, undebounced distance heuristic so that
// callers get minimum-latency feedback. It is also fed to the state machine
// for bookkeeping.
func (r *Rules) IsArmed(now time.Time, h *detector.HandLandmarks) bool {
	r.palm = Palm{Center: h.PalmCenter(), Scale: h.Scale(), Valid: true}

	orientation := r.orientation.Classify(h)
	pose := ClassifyHand(h, orientation.AngleMultiplier())

	raw := r.armedByDistance(h)
	r.signal = ArmedSignal{
		Raw:         raw,
		Angle:       armedByAngle(pose),
		Pose:        pose,
		Orientation: orientation,
		Transition:  r.machine.Update(now, raw, false),
	}

	return raw
}

// armedByDistance: index tip strictly above its PIP joint and at least
// MinBentFingers of middle/ring/pinky with the tip folded below PIP or MCP.
func (r *Rules) armedByDistance(h *detector.HandLandmarks) bool {
	p := h.Points
	if p[detector.IndexTip].Y >= p[detector.IndexPIP].Y {
		return false
	}

	bent := 0
	for _, f := range [...]Finger{Middle, Ring, Pinky} {
		j := fingerJoints[f]
		tip, pip, mcp := p[j[3]].Y, p[j[1]].Y, p[j[0]].Y
		if tip-pip > r.params.BentTipMid || tip-mcp > r.params.BentTipBase {
			bent++
		}
	}
	return bent >= r.params.MinBentFingers
}

// armedByAngle: index not FOLDED and at least two of middle/ring/pinky
// FOLDED or NEUTRAL.
func armedByAngle(pose HandPose) bool {
	if pose[Index] == FingerFolded {
		return false
	}

	curled := 0
	for _, f := range [...]Finger{Middle, Ring, Pinky} {
		if pose[f] != FingerExtended {
			curled++
		}
	}
	return curled >= 2
}

// DetectShoot reports whether a shot is fired on this frame.
//
// An accepted shot is reported for ShootPulseFrames consecutive calls; the
// call after that returns false and ends the pulse without looking at
// motion. A shot needs a wrist Y displacement beyond ShootThreshold in either
// direction, an elapsed cooldown, and armed to be true.
func (r *Rules) DetectShoot(now time.Time, h *detector.HandLandmarks, armed bool) bool {
	if r.pulseActive {
		r.pulseFrames++
		if r.pulseFrames >= r.params.ShootPulseFrames {
			r.pulseActive = false
			r.pulseFrames = 0
			return false
		}
		return true
	}

	wristY := h.Points[detector.Wrist].Y
	indexY := h.Points[detector.IndexTip].Y

	if !r.hasPrev {
		r.remember(wristY, indexY)
		return false
	}

	deltaY := r.prevWristY - wristY
	r.velocity.push(math.Abs(deltaY))
	r.motion = r.measure(deltaY)

	moving := deltaY > r.params.ShootThreshold || deltaY < -r.params.ShootThreshold
	shootRaw := moving && r.cooldownElapsed(now)

	r.machine.Update(now, armed, shootRaw)

	r.remember(wristY, indexY)

	if !shootRaw || !armed {
		return false
	}

	r.lastShoot = now
	r.velocity.clear()
	r.pulseActive = true
	r.pulseFrames = 0
	return true
}

func (r *Rules) remember(wristY, indexY float64) {
	r.prevWristY = wristY
	r.prevIndexY = indexY
	r.hasPrev = true
}

// measure computes the velocity diagnostics over the buffer.
func (r *Rules) measure(deltaY float64) Motion {
	v := r.velocity.values()
	m := Motion{DeltaY: deltaY, Samples: len(v)}

	if len(v) >= 3 {
		m.MaxVelocity = floats.Max(v)
		m.StdVelocity = math.Sqrt(stat.PopVariance(v, nil))
	} else {
		m.MaxVelocity = math.Abs(deltaY)
	}

	m.Sufficient = m.MaxVelocity > r.params.MinVelocity
	m.Consistent = len(v) < 3 || m.StdVelocity < m.MaxVelocity*0.7
	if len(v) >= 2 {
		m.Accelerating = v[len(v)-1] > v[len(v)-2]*1.2
	}
	return m
}

func (r *Rules) cooldownElapsed(now time.Time) bool {
	return r.lastShoot.IsZero() || now.Sub(r.lastShoot) > r.params.ShootCooldown
}

// Reset clears motion tracking, the shot pulse and the state machine.
// The last shot time is kept so the cooldown still holds across a reset.
func (r *Rules) Reset() {
	r.prevWristY = 0
	r.prevIndexY = 0
	r.hasPrev = false
	r.velocity.clear()
	r.pulseActive = false
	r.pulseFrames = 0
	r.motion = Motion{}
	r.machine.Reset()
}

// ResetTracking is Reset plus the per-hand orientation history and palm,
// for when the tracked hand is lost.
func (r *Rules) ResetTracking() {
	r.Reset()
	r.orientation.Reset()
	r.palm = Palm{}
	r.signal = ArmedSignal{}
}

// Clear is ResetTracking plus the last shot time, for a restart of the
// whole session.
func (r *Rules) Clear() {
	r.ResetTracking()
	r.lastShoot = time.Time{}
}

// State returns the debounced state.
func (r *Rules) State() State {
	return r.machine.State()
}

// Signal returns the armed classification of the last IsArmed call.
func (r *Rules) Signal() ArmedSignal {
	return r.signal
}

// Motion returns the velocity statistics of the last DetectShoot call.
func (r *Rules) Motion() Motion {
	return r.motion
}

// Palm returns the palm center and scale of the last IsArmed call.
func (r *Rules) Palm() Palm {
	return r.palm
}

// LastShoot returns the time of the last accepted shot, zero if none.
func (r *Rules) LastShoot() time.Time {
	return r.lastShoot
}
