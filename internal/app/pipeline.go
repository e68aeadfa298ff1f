package app

import (
	"context"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/fingergun/internal/capture"
	"github.com/ayusman/fingergun/internal/control"
	"github.com/ayusman/fingergun/internal/detector"
	"github.com/ayusman/fingergun/internal/logger"
	"github.com/ayusman/fingergun/internal/plugin"
	"github.com/ayusman/fingergun/internal/publish"
)

// Run opens the camera and processes one frame per camera tick until ctx is
// cancelled. The open play session, if any, is ended on return.
func (a *App) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "pipeline")

	if err := a.cfg.Camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer func() {
		if err := a.cfg.Camera.Close(); err != nil {
			logger.WarnKV(ctx, "error closing camera", "error", err)
		}
		if a.cfg.Gate != nil {
			a.cfg.Gate.Close()
		}
		if err := a.cfg.Detector.Close(); err != nil {
			logger.WarnKV(ctx, "error closing detector", "error", err)
		}
	}()

	fps := a.cfg.Camera.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	logger.InfoKV(ctx, "pipeline started", "fps", fps, "mirror", a.cfg.Mirror, "motion_gate", a.cfg.Gate != nil)

	for {
		select {
		case <-ctx.Done():
			a.mu.Lock()
			err := a.endPlayLocked()
			a.running = false
			a.mu.Unlock()

			logger.InfoKV(ctx, "pipeline stopped")
			return err
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// tick reads, processes and relays one frame.
func (a *App) tick(ctx context.Context) {
	frame, err := a.cfg.Camera.ReadFrame()
	if err != nil {
		logger.WarnKV(ctx, "error reading frame", "error", err)
		return
	}
	defer frame.Close()

	if a.cfg.Mirror {
		capture.Mirror(frame)
	}

	a.mu.Lock()
	reset := a.resetPending
	a.resetPending = false
	a.mu.Unlock()

	if reset {
		a.session.Reset()
		a.prevShoot = false
		logger.DebugKV(ctx, "control session reset")
	}

	wasTracking := a.session.Tracking()
	sample := a.session.Process(a.detect(ctx, frame))
	if wasTracking && !a.session.Tracking() {
		logger.DebugKV(ctx, "hand lost, tracking state cleared")
	}

	a.relay(ctx, sample)
	a.drawPreview(ctx, frame, sample)
}

// detect returns the hand to control with, or nil. Estimator errors count as
// a frame without a hand so the tracking-loss policy keeps its cadence.
func (a *App) detect(ctx context.Context, frame *gocv.Mat) *detector.HandLandmarks {
	if a.cfg.Gate != nil && !a.session.Tracking() {
		if moved, _ := a.cfg.Gate.Moved(frame); !moved {
			return nil
		}
	}

	hands, err := a.cfg.Detector.Detect(frame)
	if err != nil {
		logger.WarnKV(ctx, "error detecting hands", "error", err)
		return nil
	}
	return detector.First(hands)
}

// relay hands the sample to the clients, the store and the publisher.
func (a *App) relay(ctx context.Context, sample control.Sample) {
	// A shoot pulse spans several frames; only its first frame is a shot.
	shot := sample.Shoot && !a.prevShoot
	a.prevShoot = sample.Shoot

	state := a.session.State().String()

	a.mu.Lock()
	running := a.running
	playID := a.playID
	armedChanged := sample.Armed != a.lastArmed
	stateChanged := state != a.lastState || armedChanged
	a.lastState, a.lastArmed = state, sample.Armed
	var flushErr error
	if running {
		a.frames++
		if a.cfg.Store != nil && playID != "" && a.frames >= framesFlushInterval {
			flushErr = a.flushFramesLocked(playID)
		}
	}
	a.mu.Unlock()

	if flushErr != nil {
		logger.WarnKV(ctx, "error recording frames", "error", flushErr)
	}

	if stateChanged {
		a.publishState(ctx, publish.StateEvent{State: state, Armed: sample.Armed, Running: running})
	}

	if !running {
		return
	}

	if a.cfg.Broadcaster != nil {
		if err := a.cfg.Broadcaster.Broadcast(sample); err != nil {
			logger.WarnKV(ctx, "error broadcasting sample", "error", err)
		}
	}

	if a.cfg.Actions != nil && armedChanged {
		ev := plugin.EventDisarmed
		if sample.Armed {
			ev = plugin.EventArmed
		}
		a.cfg.Actions.Fire(ev, sample)
	}

	if shot {
		a.recordShot(ctx, playID, sample)
		if a.cfg.Actions != nil {
			a.cfg.Actions.Fire(plugin.EventShot, sample)
		}
	}
}

func (a *App) recordShot(ctx context.Context, playID string, sample control.Sample) {
	p, _ := sample.Point()
	at := a.now()

	logger.DebugKV(ctx, "shot", "x", p.X, "y", p.Y, "session_id", playID)

	if a.cfg.Store != nil && playID != "" {
		if _, err := a.cfg.Store.Shots().Record(playID, p.X, p.Y, at); err != nil {
			logger.WarnKV(ctx, "error recording shot", "error", err)
		}
	}

	if a.cfg.Publisher != nil {
		ev := publish.ShotEvent{SessionID: playID, X: p.X, Y: p.Y, FiredAt: at}
		if err := a.cfg.Publisher.PublishShot(ev); err != nil {
			logger.DebugKV(ctx, "shot event not published", "error", err)
		}
	}

	if a.cfg.OnShot != nil {
		a.cfg.OnShot(at, p.X, p.Y)
	}
}

// drawPreview annotates frame with the cursor and publishes it as JPEG.
func (a *App) drawPreview(ctx context.Context, frame *gocv.Mat, sample control.Sample) {
	if a.cfg.Preview == nil {
		return
	}

	m := capture.Marker{
		Armed: sample.Armed,
		Shoot: sample.Shoot,
		Label: a.session.State().String(),
	}
	if p, ok := sample.Point(); ok {
		m.X, m.Y, m.Valid = p.X, p.Y, true
	}
	capture.DrawCursor(frame, m)

	jpeg, err := capture.EncodeJPEG(frame, a.cfg.PreviewQuality)
	if err != nil {
		logger.WarnKV(ctx, "error encoding preview", "error", err)
		return
	}
	a.cfg.Preview.Publish(jpeg)
}
