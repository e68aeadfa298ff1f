// Package tray provides the system tray menu for fingergun.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle func(running bool)
	onOpen   func()
	onQuit   func()
	running  bool
	lastShot string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuLastShot *systray.MenuItem
}

// New creates a new Tray in the paused state.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback called when the user starts or pauses play.
func (t *Tray) OnToggle(fn func(running bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback called when the open browser item is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray event loop.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Fingergun")
	systray.SetTooltip("Fingergun hand controller")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.running), "Start or pause play")
	systray.AddSeparator()

	t.menuLastShot = systray.AddMenuItem(t.lastShotTitle(), "Last accepted shot")
	t.menuLastShot.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open in Browser...", "Open the game page")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Fingergun")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips the running state and notifies the callback.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.running = !t.running
	running := t.running
	t.refresh()
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(running)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetRunning syncs the toggle with a state change made elsewhere, such as a
// websocket client. It does not call the toggle callback.
func (t *Tray) SetRunning(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = running
	t.refresh()
}

// SetLastShot shows the time and cursor position of the latest shot.
func (t *Tray) SetLastShot(at time.Time, x, y float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastShot = fmt.Sprintf("%s at (%.2f, %.2f)", at.Format(time.TimeOnly), x, y)
	t.refresh()
}

// IsRunning returns the current running state.
func (t *Tray) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// refresh updates the menu titles. Callers hold t.mu.
func (t *Tray) refresh() {
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(t.running))
	}
	if t.menuLastShot != nil {
		t.menuLastShot.SetTitle(t.lastShotTitle())
	}
}

func (t *Tray) lastShotTitle() string {
	if t.lastShot == "" {
		return "Last shot: none"
	}
	return "Last shot: " + t.lastShot
}

func toggleTitle(running bool) string {
	if running {
		return "■ Pause"
	}
	return "▶ Start"
}
