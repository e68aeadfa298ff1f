package gesture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ayusman/fingergun/internal/detector"
)

// feed runs one frame the way the control session does and returns
// (armed, shoot).
func feed(r *Rules, now time.Time, h detector.HandLandmarks) (bool, bool) {
	armed := r.IsArmed(now, &h)
	if !armed {
		r.Reset()
		return false, false
	}
	return true, r.DetectShoot(now, &h, armed)
}

// straighten moves the tip of f above its PIP joint.
func straighten(h detector.HandLandmarks, f Finger) detector.HandLandmarks {
	j := fingerJoints[f]
	h.Points[j[3]].Y = h.Points[j[1]].Y - 0.05
	return h
}

func TestRules_IsArmed(t *testing.T) {
	t.Parallel()

	clk := newClock()
	r := NewRules(DefaultParams())

	gun := detector.GunPoseLandmarks()
	require.True(t, r.IsArmed(clk.tick(), &gun))

	open := detector.OpenPalmLandmarks()
	require.False(t, r.IsArmed(clk.tick(), &open))

	thumbsUp := detector.ThumbsUpLandmarks()
	require.False(t, r.IsArmed(clk.tick(), &thumbsUp), "index tip below its PIP joint")
}

func TestRules_IsArmed_TwoOfThree(t *testing.T) {
	t.Parallel()

	for _, first := range []Finger{Middle, Ring, Pinky} {
		for _, second := range []Finger{Middle, Ring, Pinky} {
			if first == second {
				continue
			}

			clk := newClock()
			r := NewRules(DefaultParams())

			one := straighten(detector.GunPoseLandmarks(), first)
			require.True(t, r.IsArmed(clk.tick(), &one), "%s straight", first)

			two := straighten(one, second)
			require.False(t, r.IsArmed(clk.tick(), &two), "%s and %s straight", first, second)
		}
	}
}

func TestRules_IsArmed_BentBelowMCP(t *testing.T) {
	t.Parallel()

	clk := newClock()
	r := NewRules(DefaultParams())

	// Tips level with their PIP joints but just below the MCP joints still count as bent.
	h := detector.GunPoseLandmarks()
	for _, f := range []Finger{Middle, Ring, Pinky} {
		j := fingerJoints[f]
		h.Points[j[1]].Y = h.Points[j[0]].Y
		h.Points[j[3]].Y = h.Points[j[0]].Y + 0.0025
	}
	require.True(t, r.IsArmed(clk.tick(), &h))
}

func TestRules_IsArmed_IndexRising(t *testing.T) {
	t.Parallel()

	clk := newClock()
	r := NewRules(DefaultParams())

	// Index tip rises 0.40 to 0.30 over five frames while the other fingers stay curled.
	for i := 0; i < 5; i++ {
		h := detector.GunPoseLandmarks()
		h.Points[detector.IndexTip].Y = 0.40 - 0.025*float64(i)
		for _, f := range []Finger{Middle, Ring, Pinky} {
			j := fingerJoints[f]
			h.Points[j[3]].Y = h.Points[j[1]].Y + 0.01
		}

		require.True(t, r.IsArmed(clk.tick(), &h), "frame %d", i)
		require.Equal(t, StateArmed, r.State(), "frame %d", i)
	}
}

func TestRules_Signal(t *testing.T) {
	t.Parallel()

	clk := newClock()
	r := NewRules(DefaultParams())

	gun := detector.GunPoseLandmarks()
	r.IsArmed(clk.tick(), &gun)

	sig := r.Signal()
	require.True(t, sig.Raw)
	require.False(t, sig.Angle, "a straight index reads as folded")
	require.Equal(t, OrientationSide, sig.Orientation)
	require.Equal(t, FingerFolded, sig.Pose.Get(Index))
	require.Equal(t, StateArmed, sig.Transition.State)

	palm := r.Palm()
	require.True(t, palm.Valid)
	require.InDelta(t, gun.Scale(), palm.Scale, 1e-12)
	require.Equal(t, gun.PalmCenter(), palm.Center)
}

func TestRules_AngleSignalDoesNotGate(t *testing.T) {
	t.Parallel()

	clk := newClock()
	r := NewRules(DefaultParams())

	gun := detector.GunPoseLandmarks()
	require.True(t, r.IsArmed(clk.tick(), &gun))
	require.False(t, r.Signal().Angle)

	// Double the index back so the angle signal accepts the pose while its
	// tip drops below the PIP joint.
	h := detector.GunPoseLandmarks()
	h.Points[detector.IndexDIP] = detector.Point3D{X: 0.555, Y: 0.62}
	h.Points[detector.IndexTip] = detector.Point3D{X: 0.56, Y: 0.57}

	require.False(t, r.IsArmed(clk.tick(), &h))
	require.True(t, r.Signal().Angle)
}

func TestRules_ShootPulse(t *testing.T) {
	t.Parallel()

	clk := newClock()
	r := NewRules(DefaultParams())
	gun := detector.GunPoseLandmarks()
	fired := detector.Shift(gun, 0, -0.01)

	armed, shoot := feed(r, clk.tick(), gun)
	require.True(t, armed)
	require.False(t, shoot)

	_, shoot = feed(r, clk.tick(), gun)
	require.False(t, shoot, "no motion")

	_, shoot = feed(r, clk.tick(), fired)
	require.True(t, shoot, "wrist moved 0.01")
	require.Equal(t, StateShooting, r.State())

	_, shoot = feed(r, clk.tick(), fired)
	require.True(t, shoot, "second pulse frame")
	require.Equal(t, StateCooldown, r.State())

	_, shoot = feed(r, clk.tick(), fired)
	require.False(t, shoot, "pulse over")

	_, shoot = feed(r, clk.tick(), fired)
	require.False(t, shoot, "no motion")
}

func TestRules_ShootCooldown(t *testing.T) {
	t.Parallel()

	clk := newClock()
	r := NewRules(DefaultParams())
	up := detector.GunPoseLandmarks()
	down := detector.Shift(up, 0, 0.01)

	feed(r, clk.tick(), up)
	_, shoot := feed(r, clk.tick(), down)
	require.True(t, shoot)
	first := r.LastShoot()

	feed(r, clk.tick(), down)
	feed(r, clk.tick(), down)

	// Moving back up within the cooldown does not fire.
	_, shoot = feed(r, clk.tick(), up)
	require.False(t, shoot)
	require.Equal(t, first, r.LastShoot())

	clk.now = first.Add(310 * time.Millisecond)
	_, shoot = feed(r, clk.now, down)
	require.True(t, shoot)
	require.Greater(t, r.LastShoot().Sub(first), 300*time.Millisecond)
}

func TestRules_NoShootWhileUnarmed(t *testing.T) {
	t.Parallel()

	clk := newClock()
	r := NewRules(DefaultParams())
	gun := detector.GunPoseLandmarks()

	require.False(t, r.DetectShoot(clk.tick(), &gun, false))

	moved := detector.Shift(gun, 0, -0.05)
	require.False(t, r.DetectShoot(clk.tick(), &moved, false))
	require.True(t, r.LastShoot().IsZero())
}

func TestRules_SmallMotionIgnored(t *testing.T) {
	t.Parallel()

	clk := newClock()
	r := NewRules(DefaultParams())
	h := detector.GunPoseLandmarks()

	for i := 0; i < 10; i++ {
		_, shoot := feed(r, clk.tick(), detector.Shift(h, 0, 0.001*float64(i%2)))
		require.False(t, shoot, "frame %d", i)
	}
}

func TestRules_ResetKeepsCooldown(t *testing.T) {
	t.Parallel()

	clk := newClock()
	r := NewRules(DefaultParams())
	up := detector.GunPoseLandmarks()
	down := detector.Shift(up, 0, 0.01)

	feed(r, clk.tick(), up)
	_, shoot := feed(r, clk.tick(), down)
	require.True(t, shoot)

	r.ResetTracking()
	require.Equal(t, StateIdle, r.State())
	require.False(t, r.Palm().Valid)

	feed(r, clk.tick(), up)
	_, shoot = feed(r, clk.tick(), down)
	require.False(t, shoot, "still inside the cooldown of the previous shot")
}

func TestRules_Motion(t *testing.T) {
	t.Parallel()

	clk := newClock()
	r := NewRules(DefaultParams())
	h := detector.GunPoseLandmarks()

	deltas := []float64{0, 0.0005, 0.0015, 0.001}
	y := 0.0
	for _, d := range deltas {
		y += d
		feed(r, clk.tick(), detector.Shift(h, 0, y))
	}

	m := r.Motion()
	require.Equal(t, 3, m.Samples)
	require.InDelta(t, 0.0015, m.MaxVelocity, 1e-12)
	require.InDelta(t, -0.001, m.DeltaY, 1e-12)
	require.True(t, m.StdVelocity > 0)
	require.False(t, m.Accelerating)
}

func TestRules_ClearDropsCooldown(t *testing.T) {
	t.Parallel()

	clk := newClock()
	r := NewRules(DefaultParams())
	up := detector.GunPoseLandmarks()
	down := detector.Shift(up, 0, 0.01)

	feed(r, clk.tick(), up)
	_, shoot := feed(r, clk.tick(), down)
	require.True(t, shoot)

	r.Clear()
	require.True(t, r.LastShoot().IsZero())

	feed(r, clk.tick(), up)
	_, shoot = feed(r, clk.tick(), down)
	require.True(t, shoot, "a cleared session has no cooldown to wait for")
}
