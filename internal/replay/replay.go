// Package replay feeds recorded landmark frames through a control session
// without a camera.
//
// A recording is JSON Lines. Each line is one frame:
//
//	{"points":[{"x":0.5,"y":0.4,"z":0}, ...21 points], "t_ms":1033}
//	{"hand":null,"t_ms":1066}
//
// t_ms is the capture time in milliseconds and drives the session clock.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ayusman/fingergun/internal/control"
	"github.com/ayusman/fingergun/internal/detector"
)

// maxLineSize bounds a single recorded frame.
const maxLineSize = 1 << 20

// Frame is one recorded line. Points is empty when no hand was seen.
type Frame struct {
	Points []detector.Point3D `json:"points"`
	TimeMs int64              `json:"t_ms"`
}

// Stats summarizes a replay.
type Stats struct {
	Frames int
	Hands  int
	Shots  int
}

// Run replays the frames read from r through a fresh session built from cfg
// and writes one control sample per frame to w as JSON Lines. cfg.Now is
// replaced by the recorded timestamps.
func Run(ctx context.Context, r io.Reader, w io.Writer, cfg control.Config) (Stats, error) {
	var (
		stats     Stats
		frameTime time.Time
		prevShoot bool
	)

	cfg.Now = func() time.Time { return frameTime }
	session := control.NewSession(cfg)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	enc := json.NewEncoder(w)

	line := 0
	for scanner.Scan() {
		line++

		if err := ctx.Err(); err != nil {
			return stats, err
		}

		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		hand, ts, err := decodeFrame(data)
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		frameTime = ts

		sample := session.Process(hand)

		stats.Frames++
		if hand != nil {
			stats.Hands++
		}
		if sample.Shoot && !prevShoot {
			stats.Shots++
		}
		prevShoot = sample.Shoot

		if err := enc.Encode(sample); err != nil {
			return stats, fmt.Errorf("write sample: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read recording: %w", err)
	}

	return stats, nil
}

// decodeFrame parses one line into a hand (nil for none) and its time.
func decodeFrame(data []byte) (*detector.HandLandmarks, time.Time, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode frame: %w", err)
	}

	ts := time.UnixMilli(f.TimeMs)

	if len(f.Points) == 0 {
		return nil, ts, nil
	}
	if len(f.Points) != detector.NumLandmarks {
		return nil, ts, fmt.Errorf("frame has %d landmarks, want %d", len(f.Points), detector.NumLandmarks)
	}

	h := detector.FromPoints(f.Points)
	return &h, ts, nil
}
