package cursor

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/fingergun/internal/detector"
)

func TestFilter_FirstSampleIsRaw(t *testing.T) {
	t.Parallel()

	f := NewFilter(0.7, 0.001)

	_, ok := f.Value()
	require.False(t, ok)

	got := f.Update(r2.Point{X: 0.4, Y: 0.6})
	require.Equal(t, r2.Point{X: 0.4, Y: 0.6}, got)
}

func TestFilter_Smoothing(t *testing.T) {
	t.Parallel()

	f := NewFilter(0.7, 0.001)
	f.Update(r2.Point{X: 0, Y: 0})

	got := f.Update(r2.Point{X: 1, Y: 0})
	require.InDelta(t, 0.7, got.X, 1e-12)
	require.InDelta(t, 0.0, got.Y, 1e-12)

	got = f.Update(r2.Point{X: 1, Y: 0})
	require.InDelta(t, 0.91, got.X, 1e-12)
}

func TestFilter_Deadzone(t *testing.T) {
	t.Parallel()

	f := NewFilter(0.7, 0.001)
	f.Update(r2.Point{X: 0.5, Y: 0.5})

	got := f.Update(r2.Point{X: 0.5009, Y: 0.4991})
	require.Equal(t, r2.Point{X: 0.5, Y: 0.5}, got)

	// One axis outside the deadzone moves both.
	got = f.Update(r2.Point{X: 0.502, Y: 0.5005})
	require.InDelta(t, 0.5014, got.X, 1e-12)
	require.InDelta(t, 0.50035, got.Y, 1e-12)
}

func TestFilter_IdempotentOnceConverged(t *testing.T) {
	t.Parallel()

	f := NewFilter(0.7, 0.001)
	f.Update(r2.Point{X: 0.1, Y: 0.1})

	raw := r2.Point{X: 0.8, Y: 0.3}
	var settled r2.Point
	for i := 0; i < 20; i++ {
		settled = f.Update(raw)
	}

	for i := 0; i < 10; i++ {
		require.Equal(t, settled, f.Update(raw))
	}
	require.InDelta(t, raw.X, settled.X, 0.001)
	require.InDelta(t, raw.Y, settled.Y, 0.001)
}

func TestFilter_Reset(t *testing.T) {
	t.Parallel()

	f := NewFilter(0.7, 0.001)
	f.Update(r2.Point{X: 0.1, Y: 0.1})
	f.Reset()

	require.Equal(t, r2.Point{X: 0.9, Y: 0.9}, f.Update(r2.Point{X: 0.9, Y: 0.9}))
}

func TestEstimator_EmitsIndexTip(t *testing.T) {
	t.Parallel()

	e := NewEstimator(DefaultConfig())
	h := detector.GunPoseLandmarks()
	tip := h.Points[detector.IndexTip]

	got := e.Update(&h, true)
	require.Equal(t, r2.Point{X: tip.X, Y: tip.Y}, got)

	pos, ok := e.Position()
	require.True(t, ok)
	require.Equal(t, got, pos)
}

func TestEstimator_DirectionOnlyWhileArmed(t *testing.T) {
	t.Parallel()

	e := NewEstimator(DefaultConfig())
	h := detector.GunPoseLandmarks()

	e.Update(&h, true)
	dir, ok := e.Direction()
	require.True(t, ok)
	require.InDelta(t, 1.0, dir.Norm(), 1e-9)
	require.Less(t, dir.Y, 0.0, "index points up the image")

	e.Update(&h, false)
	_, ok = e.Direction()
	require.False(t, ok)
}

func TestEstimator_ShortDirectionNotNormalized(t *testing.T) {
	t.Parallel()

	e := NewEstimator(DefaultConfig())

	var h detector.HandLandmarks
	h.Points[detector.Wrist] = detector.Point3D{X: 0.5, Y: 0.5}
	h.Points[detector.IndexTip] = detector.Point3D{X: 0.505, Y: 0.5}

	e.Update(&h, true)
	dir, ok := e.Direction()
	require.True(t, ok)
	require.InDelta(t, 0.005, dir.X, 1e-9)
}

func TestEstimator_DirectionSmoothed(t *testing.T) {
	t.Parallel()

	e := NewEstimator(DefaultConfig())

	var h detector.HandLandmarks
	h.Points[detector.Wrist] = detector.Point3D{X: 0.5, Y: 0.8}
	h.Points[detector.IndexTip] = detector.Point3D{X: 0.5, Y: 0.4}
	e.Update(&h, true)

	h.Points[detector.IndexTip] = detector.Point3D{X: 0.9, Y: 0.8}
	e.Update(&h, true)

	dir, _ := e.Direction()
	require.InDelta(t, 0.6, dir.X, 1e-9)
	require.InDelta(t, -0.4, dir.Y, 1e-9)
}
