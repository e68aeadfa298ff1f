package tray

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// The menu items only exist once systray is running, so these tests cover the
// state kept before that.

func TestTray_Running(t *testing.T) {
	t.Parallel()

	tr := New()
	require.False(t, tr.IsRunning())

	tr.SetRunning(true)
	require.True(t, tr.IsRunning())
}

func TestTray_ToggleCallsBack(t *testing.T) {
	t.Parallel()

	tr := New()
	var got []bool
	tr.OnToggle(func(running bool) {
		got = append(got, running)
	})

	tr.handleToggle()
	tr.handleToggle()
	require.Equal(t, []bool{true, false}, got)
	require.False(t, tr.IsRunning())
}

func TestTray_OpenCallsBack(t *testing.T) {
	t.Parallel()

	tr := New()
	opened := false
	tr.OnOpen(func() { opened = true })

	tr.handleOpen()
	require.True(t, opened)
}

func TestTray_LastShotTitle(t *testing.T) {
	t.Parallel()

	tr := New()
	require.Equal(t, "Last shot: none", tr.lastShotTitle())

	tr.SetLastShot(time.Date(2026, 5, 1, 14, 3, 9, 0, time.UTC), 0.5, 0.25)
	require.Equal(t, "Last shot: 14:03:09 at (0.50, 0.25)", tr.lastShotTitle())
}

func TestToggleTitle(t *testing.T) {
	t.Parallel()

	require.Equal(t, "▶ Start", toggleTitle(false))
	require.Equal(t, "■ Pause", toggleTitle(true))
}
