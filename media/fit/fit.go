// Package fit computes where a source image lands on a fixed-size canvas.
package fit

import (
	"fmt"
	"math"
	"strings"
)

// Mode defines how a source image is fitted to the target canvas.
type Mode string

const (
	// Cover scales the source until it fills the canvas; overflow is cropped by the canvas edges.
	Cover Mode = "cover"
	// Contain scales the source until it fits inside the canvas; the rest shows the background.
	Contain Mode = "contain"
)

func (m Mode) String() string {
	return string(m)
}

func (m Mode) Valid() bool {
	return m == Cover || m == Contain
}

// ParseMode accepts "cover" or "contain" in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// DrawRect is the placement of the scaled source in canvas coordinates.
// X and Y are negative when a cover fit overflows the canvas.
type DrawRect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Scale is the factor applied to a source of width srcW.
func (r DrawRect) Scale(srcW int) float64 {
	return r.Width / float64(srcW)
}

func (r DrawRect) String() string {
	return fmt.Sprintf("%gx%g@(%g,%g)", r.Width, r.Height, r.X, r.Y)
}

// ComputeDrawRect returns the aspect-preserving, centered placement of a
// sourceW x sourceH image on a targetW x targetH canvas.
//
// A contain rect never exceeds the canvas and a cover rect never underfills it,
// whatever the floating-point rounding of the aspect ratios.
func ComputeDrawRect(sourceW, sourceH, targetW, targetH int, mode Mode) (DrawRect, error) {
	if sourceW <= 0 || sourceH <= 0 {
		return DrawRect{}, fmt.Errorf("%w: source %dx%d", ErrInvalidDimensions, sourceW, sourceH)
	}
	if targetW <= 0 || targetH <= 0 {
		return DrawRect{}, fmt.Errorf("%w: target %dx%d", ErrInvalidDimensions, targetW, targetH)
	}

	imgAspect := float64(sourceW) / float64(sourceH)
	tw, th := float64(targetW), float64(targetH)
	targetAspect := tw / th

	var w, h float64
	switch mode {
	case Contain:
		if imgAspect > targetAspect {
			w = tw
			h = w / imgAspect
		} else {
			h = th
			w = h * imgAspect
		}
		w = math.Min(w, tw)
		h = math.Min(h, th)
	case Cover:
		if imgAspect > targetAspect {
			h = th
			w = h * imgAspect
		} else {
			w = tw
			h = w / imgAspect
		}
		w = math.Max(w, tw)
		h = math.Max(h, th)
	default:
		return DrawRect{}, fmt.Errorf("%w: %q", ErrUnknownMode, string(mode))
	}

	return DrawRect{
		Width:  w,
		Height: h,
		X:      (tw - w) / 2,
		Y:      (th - h) / 2,
	}, nil
}
