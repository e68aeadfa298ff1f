// Package control drives the gesture rules and the cursor estimator for one
// tracked hand and applies the tracking-loss policy.
//
// A Session is not safe for concurrent use. Hosts that track several hands or
// serve several clients create one Session each.
package control

import (
	"time"

	"github.com/golang/geo/r2"

	"github.com/ayusman/fingergun/internal/cursor"
	"github.com/ayusman/fingergun/internal/detector"
	"github.com/ayusman/fingergun/internal/gesture"
)

// Config holds the parameters of a Session.
type Config struct {
	Gesture gesture.Params
	Cursor  cursor.Config
	// MaxLossFrames is how many consecutive no-hand frames replay the last
	// sample before all state is dropped.
	MaxLossFrames int
	// Now is read once per Process call. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Gesture:       gesture.DefaultParams(),
		Cursor:        cursor.DefaultConfig(),
		MaxLossFrames: 5,
		Now:           time.Now,
	}
}

// Diagnostics is a snapshot of the internal signals behind the last sample.
type Diagnostics struct {
	State        gesture.State
	Signal       gesture.ArmedSignal
	Motion       gesture.Motion
	Palm         gesture.Palm
	Direction    r2.Point
	HasDirection bool
	LossFrames   int
}

// Session turns a stream of per-frame hand landmarks into control samples.
type Session struct {
	cfg    Config
	rules  *gesture.Rules
	cursor *cursor.Estimator

	lossFrames int
	// last valid cursor and armed flag, replayed during short losses
	lastPos   r2.Point
	lastArmed bool
	hasLast   bool
}

// NewSession creates a Session with cold state.
func NewSession(cfg Config) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Session{
		cfg:    cfg,
		rules:  gesture.NewRules(cfg.Gesture),
		cursor: cursor.NewEstimator(cfg.Cursor),
	}
}

// Process consumes one frame. A nil h means no hand was detected.
func (s *Session) Process(h *detector.HandLandmarks) Sample {
	if h == nil {
		return s.lost()
	}

	now := s.cfg.Now()
	s.lossFrames = 0

	armed := s.rules.IsArmed(now, h)
	pos := s.cursor.Update(h, armed)

	shoot := false
	if armed {
		shoot = s.rules.DetectShoot(now, h, armed)
	} else {
		s.rules.Reset()
	}

	s.lastPos, s.lastArmed, s.hasLast = pos, armed, true

	return newSample(pos, armed, shoot)
}

// lost applies the tracking-loss policy to a no-hand frame.
func (s *Session) lost() Sample {
	s.lossFrames++

	if s.lossFrames <= s.cfg.MaxLossFrames {
		if s.hasLast {
			return newSample(s.lastPos, s.lastArmed, false)
		}
		return Sample{}
	}

	s.rules.ResetTracking()
	s.cursor.Reset()
	s.hasLast = false
	return Sample{}
}

// Reset drops all state, including the shot cooldown, as if the Session had
// just been created.
func (s *Session) Reset() {
	s.rules.Clear()
	s.cursor.Reset()
	s.lossFrames = 0
	s.hasLast = false
}

// State returns the debounced gesture state.
func (s *Session) State() gesture.State {
	return s.rules.State()
}

// Diagnostics returns the signals behind the last processed frame.
func (s *Session) Diagnostics() Diagnostics {
	dir, ok := s.cursor.Direction()
	return Diagnostics{
		State:        s.rules.State(),
		Signal:       s.rules.Signal(),
		Motion:       s.rules.Motion(),
		Palm:         s.rules.Palm(),
		Direction:    dir,
		HasDirection: ok,
		LossFrames:   s.lossFrames,
	}
}

// Tracking reports whether the Session holds a hand, including one that is
// only briefly lost.
func (s *Session) Tracking() bool {
	return s.hasLast
}
