package capture

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Overlay colors, by control state.
var (
	ColorIdle  = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	ColorArmed = color.RGBA{R: 40, G: 220, B: 60, A: 255}
	ColorShoot = color.RGBA{R: 235, G: 40, B: 40, A: 255}
)

const (
	crosshairRadius = 14
	crosshairArm    = 22
)

// Marker is what the overlay draws for one frame. X and Y are normalized
// image coordinates.
type Marker struct {
	X, Y  float64
	Valid bool
	Armed bool
	Shoot bool
	Label string
}

// MarkerColor returns the crosshair color for the armed and shoot flags.
func MarkerColor(armed, shoot bool) color.RGBA {
	switch {
	case shoot:
		return ColorShoot
	case armed:
		return ColorArmed
	default:
		return ColorIdle
	}
}

// DrawCursor draws m onto img in place.
func DrawCursor(img *gocv.Mat, m Marker) {
	if img == nil || img.Empty() {
		return
	}

	c := MarkerColor(m.Armed, m.Shoot)

	if m.Valid {
		p := image.Pt(int(m.X*float64(img.Cols())), int(m.Y*float64(img.Rows())))

		thickness := 2
		if m.Shoot {
			gocv.Circle(img, p, crosshairRadius/2, c, -1)
			thickness = 3
		}
		gocv.Circle(img, p, crosshairRadius, c, thickness)
		gocv.Line(img, image.Pt(p.X-crosshairArm, p.Y), image.Pt(p.X+crosshairArm, p.Y), c, 1)
		gocv.Line(img, image.Pt(p.X, p.Y-crosshairArm), image.Pt(p.X, p.Y+crosshairArm), c, 1)
	}

	if m.Label != "" {
		gocv.PutText(img, m.Label, image.Pt(10, 24), gocv.FontHersheySimplex, 0.6, c, 2)
	}
}

// EncodeJPEG encodes img at the given quality (1-100).
func EncodeJPEG(img *gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory that Close frees.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
