package control

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ayusman/fingergun/internal/detector"
	"github.com/ayusman/fingergun/internal/gesture"
)

// frameClock advances by one frame on every read.
type frameClock struct {
	now time.Time
}

func (c *frameClock) Now() time.Time {
	c.now = c.now.Add(33 * time.Millisecond)
	return c.now
}

func newTestSession() (*Session, *frameClock) {
	clk := &frameClock{now: time.Unix(1_700_000_000, 0)}
	cfg := DefaultConfig()
	cfg.Now = clk.Now
	return NewSession(cfg), clk
}

func hand(h detector.HandLandmarks) *detector.HandLandmarks {
	return &h
}

func TestSession_NoHandYet(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession()

	for i := 0; i < 8; i++ {
		got := s.Process(nil)
		require.False(t, got.HasCursor())
		require.False(t, got.Armed)
		require.False(t, got.Shoot)
	}
}

func TestSession_ArmedFromFirstFrame(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession()
	gun := detector.GunPoseLandmarks()

	got := s.Process(&gun)
	require.True(t, got.Armed)
	require.True(t, got.HasCursor())
	require.InDelta(t, gun.Points[detector.IndexTip].X, *got.X, 1e-12)
	require.InDelta(t, gun.Points[detector.IndexTip].Y, *got.Y, 1e-12)
	require.Equal(t, gesture.StateArmed, s.State())
}

func TestSession_ShootScenario(t *testing.T) {
	t.Parallel()

	s, clk := newTestSession()
	gun := detector.GunPoseLandmarks()
	fired := detector.Shift(gun, 0, -0.01)

	require.False(t, s.Process(&gun).Shoot)
	require.False(t, s.Process(&gun).Shoot)

	var shots []bool
	for i := 0; i < 4; i++ {
		shots = append(shots, s.Process(&fired).Shoot)
	}
	require.Equal(t, []bool{true, true, false, false}, shots)

	// Flicking back inside the cooldown does nothing.
	require.False(t, s.Process(&gun).Shoot)

	clk.now = clk.now.Add(300 * time.Millisecond)
	require.True(t, s.Process(&fired).Shoot)
}

func TestSession_ShotsRespectCooldown(t *testing.T) {
	t.Parallel()

	s, clk := newTestSession()
	up := detector.GunPoseLandmarks()
	down := detector.Shift(up, 0, 0.01)

	var starts []time.Time
	prev := false
	for i := 0; i < 60; i++ {
		h := up
		if i%2 == 1 {
			h = down
		}
		shoot := s.Process(&h).Shoot
		if shoot && !prev {
			starts = append(starts, clk.now)
		}
		prev = shoot
	}

	require.GreaterOrEqual(t, len(starts), 2)
	for i := 1; i < len(starts); i++ {
		require.Greater(t, starts[i].Sub(starts[i-1]), 300*time.Millisecond)
	}
}

func TestSession_UnarmedNeverShoots(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession()
	open := detector.OpenPalmLandmarks()

	for i := 0; i < 10; i++ {
		got := s.Process(hand(detector.Shift(open, 0, 0.02*float64(i%2))))
		require.False(t, got.Armed)
		require.False(t, got.Shoot)
		require.Equal(t, gesture.StateIdle, s.State())
	}
}

func TestSession_ShortLossReplays(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession()
	gun := detector.GunPoseLandmarks()
	fired := detector.Shift(gun, 0, -0.01)

	s.Process(&gun)
	last := s.Process(&fired)
	require.True(t, last.Shoot)

	for i := 1; i <= 5; i++ {
		got := s.Process(nil)
		require.Equal(t, *last.X, *got.X, "lost frame %d", i)
		require.Equal(t, *last.Y, *got.Y, "lost frame %d", i)
		require.True(t, got.Armed)
		require.False(t, got.Shoot, "shoot is never replayed")
		require.Equal(t, i, s.Diagnostics().LossFrames)
	}

	// Hand back: loss counter clears and the EMA carries on from the old value.
	moved := detector.Shift(gun, 0.1, 0)
	got := s.Process(&moved)
	require.Zero(t, s.Diagnostics().LossFrames)
	rawX := moved.Points[detector.IndexTip].X
	require.InDelta(t, 0.7*rawX+0.3*(*last.X), *got.X, 1e-9)
}

func TestSession_LongLossResets(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession()
	gun := detector.GunPoseLandmarks()
	s.Process(&gun)
	s.Process(&gun)

	for i := 0; i < 5; i++ {
		require.True(t, s.Process(nil).HasCursor())
	}

	got := s.Process(nil)
	require.False(t, got.HasCursor())
	require.False(t, got.Armed)
	require.Equal(t, gesture.StateIdle, s.State())

	got = s.Process(nil)
	require.False(t, got.HasCursor())

	// The next frame starts the EMA fresh.
	moved := detector.Shift(gun, 0.2, 0.1)
	got = s.Process(&moved)
	require.Equal(t, moved.Points[detector.IndexTip].X, *got.X)
	require.Equal(t, moved.Points[detector.IndexTip].Y, *got.Y)
}

func TestSession_Tracking(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession()
	require.False(t, s.Tracking())

	gun := detector.GunPoseLandmarks()
	s.Process(&gun)
	require.True(t, s.Tracking())

	for i := 0; i < 5; i++ {
		s.Process(nil)
	}
	require.True(t, s.Tracking(), "short loss keeps the hand")

	s.Process(nil)
	require.False(t, s.Tracking())
}

func TestSession_Reset(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession()
	gun := detector.GunPoseLandmarks()
	s.Process(&gun)

	s.Reset()
	require.Equal(t, gesture.StateIdle, s.State())
	require.False(t, s.Process(nil).HasCursor())

	moved := detector.Shift(gun, 0.2, 0)
	got := s.Process(&moved)
	require.Equal(t, moved.Points[detector.IndexTip].X, *got.X)
}

func TestSession_ResetClearsCooldown(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession()
	gun := detector.GunPoseLandmarks()
	fired := detector.Shift(gun, 0, -0.01)

	s.Process(&gun)
	require.True(t, s.Process(&fired).Shoot)

	s.Reset()

	// The next shot is one frame after the first, well inside the cooldown.
	require.False(t, s.Process(&fired).Shoot)
	require.True(t, s.Process(&gun).Shoot)
}

func TestSession_Diagnostics(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession()
	gun := detector.GunPoseLandmarks()
	s.Process(&gun)

	d := s.Diagnostics()
	require.Equal(t, gesture.StateArmed, d.State)
	require.True(t, d.Signal.Raw)
	require.False(t, d.Signal.Angle)
	require.True(t, d.Palm.Valid)
	require.True(t, d.HasDirection)

	open := detector.OpenPalmLandmarks()
	s.Process(&open)
	require.False(t, s.Diagnostics().HasDirection)
}

func TestSample_JSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Sample{})
	require.NoError(t, err)
	require.JSONEq(t, `{"x":null,"y":null,"armed":false,"shoot":false}`, string(data))

	x, y := 0.25, 0.5
	data, err = json.Marshal(Sample{X: &x, Y: &y, Armed: true, Shoot: true})
	require.NoError(t, err)
	require.JSONEq(t, `{"x":0.25,"y":0.5,"armed":true,"shoot":true}`, string(data))
}
