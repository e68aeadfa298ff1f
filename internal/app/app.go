// Package app runs the fingergun pipeline: camera frames go through the hand
// landmark estimator and the control session, and the resulting samples are
// relayed to game clients, the session history and the event publisher.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/fingergun/internal/capture"
	"github.com/ayusman/fingergun/internal/control"
	"github.com/ayusman/fingergun/internal/detector"
	"github.com/ayusman/fingergun/internal/logger"
	"github.com/ayusman/fingergun/internal/plugin"
	"github.com/ayusman/fingergun/internal/publish"
	"github.com/ayusman/fingergun/internal/server"
	"github.com/ayusman/fingergun/internal/store"
)

// framesFlushInterval is how many relayed frames accumulate before the
// session frame counter is written to the store.
const framesFlushInterval = 300

const defaultPreviewQuality = 80

// Broadcaster relays samples to game clients.
type Broadcaster interface {
	Broadcast(s control.Sample) error
}

// EventPublisher fans shot and state events out to other programs.
type EventPublisher interface {
	PublishShot(ev publish.ShotEvent) error
	PublishState(ev publish.StateEvent) error
}

// ActionDispatcher runs the plugin actions bound to gesture events.
type ActionDispatcher interface {
	Fire(ev plugin.Event, s control.Sample)
}

// Config holds the collaborators and options of an App. Only Camera and
// Detector are required.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	Session  control.Config

	// Mirror flips frames horizontally before landmark estimation.
	Mirror bool
	// Gate skips the estimator on still frames while no hand is tracked.
	Gate *capture.MotionGate

	Store       *store.Store
	Broadcaster Broadcaster
	Publisher   EventPublisher
	Actions     ActionDispatcher

	Preview        *server.Preview
	PreviewQuality int

	// OnShot and OnRunning let a UI such as the tray follow the pipeline.
	OnShot    func(at time.Time, x, y float64)
	OnRunning func(running bool)
}

// App owns the control session and the play state.
type App struct {
	cfg     Config
	session *control.Session
	now     func() time.Time

	// pipeline goroutine only
	prevShoot bool

	mu           sync.Mutex
	running      bool
	playID       string
	frames       int
	resetPending bool
	// debounced state and armed flag of the last frame
	lastState string
	lastArmed bool
}

// New creates an App. The pipeline does not run until Run is called and
// samples are not relayed until Start.
func New(cfg Config) *App {
	if cfg.PreviewQuality <= 0 {
		cfg.PreviewQuality = defaultPreviewQuality
	}
	now := cfg.Session.Now
	if now == nil {
		now = time.Now
	}
	s := control.NewSession(cfg.Session)
	return &App{
		cfg:       cfg,
		session:   s,
		now:       now,
		lastState: s.State().String(),
	}
}

// HandleControl executes a control command from a game client.
func (a *App) HandleControl(ctx context.Context, action server.Action) error {
	switch action {
	case server.ActionStart:
		return a.Start(ctx)
	case server.ActionPause:
		return a.Pause(ctx)
	case server.ActionReset:
		a.RequestReset(ctx)
		return nil
	default:
		return fmt.Errorf("unknown control action %q", action)
	}
}

// Start begins relaying samples and opens a new play session in the store.
// Starting a running App does nothing.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}

	if a.cfg.Store != nil {
		sess, err := a.cfg.Store.Sessions().Create(a.now())
		if err != nil {
			a.mu.Unlock()
			return fmt.Errorf("create play session: %w", err)
		}
		a.playID = sess.ID
	}
	a.running = true
	a.frames = 0
	playID := a.playID
	a.mu.Unlock()

	logger.InfoKV(ctx, "play started", "session_id", playID)
	a.runningChanged(ctx, true)
	return nil
}

// Pause stops relaying samples and closes the current play session.
func (a *App) Pause(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}

	err := a.endPlayLocked()
	a.running = false
	a.mu.Unlock()

	logger.InfoKV(ctx, "play paused")
	a.runningChanged(ctx, false)
	return err
}

// endPlayLocked flushes the frame counter and ends the play session.
// Callers hold a.mu.
func (a *App) endPlayLocked() error {
	if a.cfg.Store == nil || a.playID == "" {
		return nil
	}

	id := a.playID
	a.playID = ""

	if err := a.flushFramesLocked(id); err != nil {
		return err
	}
	if err := a.cfg.Store.Sessions().End(id, a.now()); err != nil {
		return fmt.Errorf("end play session %s: %w", id, err)
	}
	return nil
}

func (a *App) flushFramesLocked(id string) error {
	if a.frames == 0 {
		return nil
	}
	if err := a.cfg.Store.Sessions().AddFrames(id, a.frames); err != nil {
		return fmt.Errorf("record frames for session %s: %w", id, err)
	}
	a.frames = 0
	return nil
}

// RequestReset clears the control session before the next frame.
func (a *App) RequestReset(ctx context.Context) {
	a.mu.Lock()
	a.resetPending = true
	a.mu.Unlock()

	logger.InfoKV(ctx, "control reset requested")
}

// Running reports whether samples are being relayed.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// PlayID returns the id of the open play session, or "" when there is none.
func (a *App) PlayID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playID
}

func (a *App) runningChanged(ctx context.Context, running bool) {
	if a.cfg.OnRunning != nil {
		a.cfg.OnRunning(running)
	}

	a.mu.Lock()
	ev := publish.StateEvent{State: a.lastState, Armed: a.lastArmed, Running: running}
	a.mu.Unlock()

	a.publishState(ctx, ev)
}

func (a *App) publishState(ctx context.Context, ev publish.StateEvent) {
	if a.cfg.Publisher == nil {
		return
	}
	ev.At = a.now()
	if err := a.cfg.Publisher.PublishState(ev); err != nil {
		logger.DebugKV(ctx, "state event not published", "error", err)
	}
}
