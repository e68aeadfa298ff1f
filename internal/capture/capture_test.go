package capture

import (
	"bytes"
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestNewCamera_Defaults(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantFPS int
	}{
		{name: "zero fps uses default", cfg: Config{DeviceID: 0}, wantFPS: DefaultFPS},
		{name: "explicit fps", cfg: Config{DeviceID: 1, FPS: 15}, wantFPS: 15},
		{name: "negative fps uses default", cfg: Config{DeviceID: 2, FPS: -3, Mirror: true}, wantFPS: DefaultFPS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.cfg)

			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
			if cam.IsOpen() {
				t.Error("camera should not be open initially")
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(Config{})

	cam.SetFPS(10)
	if got := cam.FPS(); got != 10 {
		t.Errorf("FPS() = %d, want 10", got)
	}

	cam.SetFPS(0)
	cam.SetFPS(-5)
	if got := cam.FPS(); got != 10 {
		t.Errorf("FPS() = %d, want previous value 10", got)
	}
}

func TestCamera_NotOpened(t *testing.T) {
	cam := NewCamera(Config{})

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
	if err := cam.Close(); err != nil {
		t.Errorf("Close() on closed camera = %v, want nil", err)
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(Config{Mirror: true})
	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}
	defer cam.Close()

	mat, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() failed: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		t.Error("ReadFrame() returned empty mat")
	}
}

func TestMirror(t *testing.T) {
	m := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC1)
	defer m.Close()
	m.SetUCharAt(0, 0, 200)

	Mirror(&m)

	if got := m.GetUCharAt(0, 1); got != 200 {
		t.Errorf("mirrored pixel = %d, want 200", got)
	}
	if got := m.GetUCharAt(0, 0); got != 0 {
		t.Errorf("original pixel = %d, want 0", got)
	}
}

func TestMockCamera_Playback(t *testing.T) {
	frame1 := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame1, &frame2}, false)

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Fatalf("ReadFrame() before Open error = %v, want ErrCameraNotOpen", err)
	}

	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	for i := 0; i < 2; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() %d error = %v", i, err)
		}
		f.Close()
	}

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrNoFrames) {
		t.Errorf("ReadFrame() after playback error = %v, want ErrNoFrames", err)
	}
}

func TestMockCamera_Loop(t *testing.T) {
	cam := NewBlankCamera()
	cam.Open()
	defer cam.Close()

	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() iteration %d error = %v", i, err)
		}
		if f.Cols() != DefaultWidth || f.Rows() != DefaultHeight {
			t.Errorf("frame size = %dx%d", f.Cols(), f.Rows())
		}
		f.Close()
	}
}

func TestMotionGate(t *testing.T) {
	g := NewMotionGate(0)
	defer g.Close()

	if g.threshold != DefaultMotionThreshold {
		t.Errorf("threshold = %f, want default", g.threshold)
	}

	black := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer white.Close()
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))

	if moved, _ := g.Moved(&black); !moved {
		t.Error("first frame should count as motion")
	}
	if moved, pct := g.Moved(&black); moved {
		t.Errorf("identical frames reported motion (%f%%)", pct)
	}
	if moved, pct := g.Moved(&white); !moved || pct < 50 {
		t.Errorf("black to white: moved=%v pct=%f", moved, pct)
	}

	g.Reset()
	if moved, _ := g.Moved(&white); !moved {
		t.Error("first frame after Reset should count as motion")
	}

	if moved, _ := g.Moved(nil); moved {
		t.Error("nil frame reported motion")
	}
}

func TestMarkerColor(t *testing.T) {
	if MarkerColor(false, false) != ColorIdle {
		t.Error("idle color")
	}
	if MarkerColor(true, false) != ColorArmed {
		t.Error("armed color")
	}
	if MarkerColor(true, true) != ColorShoot {
		t.Error("shoot color")
	}
}

func TestDrawCursorAndEncode(t *testing.T) {
	img := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	defer img.Close()

	DrawCursor(&img, Marker{X: 0.5, Y: 0.5, Valid: true, Armed: true, Shoot: true, Label: "shooting"})

	center := img.GetVecbAt(DefaultHeight/2, DefaultWidth/2)
	// BGR order.
	if center[2] != ColorShoot.R || center[0] != ColorShoot.B {
		t.Errorf("center pixel = %v, want shoot color", center)
	}

	data, err := EncodeJPEG(&img, 80)
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Error("encoded data is not a JPEG")
	}
}
