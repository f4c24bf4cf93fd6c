package processor

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/leeforge/instafit/media/fit"
)

// Engine names
const (
	EngineLanczos    = "lanczos"
	EngineCatmullRom = "catmullrom"
	EngineNfnt       = "nfnt"
)

// Engine draws a source onto a pre-filled canvas at rect. Implementations must
// be deterministic and must not use nearest-neighbour sampling.
type Engine interface {
	Name() string
	Compose(canvas *image.NRGBA, src image.Image, rect fit.DrawRect) (*image.NRGBA, error)
}

// NewEngine returns the engine registered under name.
func NewEngine(name string) (Engine, error) {
	switch name {
	case "", EngineLanczos:
		return LanczosEngine{}, nil
	case EngineCatmullRom:
		return CatmullRomEngine{}, nil
	case EngineNfnt:
		return NewNativeProcessor(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// filterMargin is the number of extra source pixels kept around a crop so the
// resampling kernel sees real neighbours at interior crop edges.
const filterMargin = 3

// placement describes the part of a source that lands on the canvas and where
// its resized copy goes.
type placement struct {
	crop   image.Rectangle // in source coordinates
	size   image.Point     // resized crop dimensions
	offset image.Point     // top-left of the resized crop on the canvas
}

// place restricts rendering to the visible part of the source, so a cover
// fit of a thin column into a large canvas never allocates the full
// overflowing scaled image.
func place(src image.Rectangle, canvas image.Rectangle, rect fit.DrawRect) (placement, bool) {
	sx := rect.Width / float64(src.Dx())
	sy := rect.Height / float64(src.Dy())

	vx0 := math.Max(rect.X, 0)
	vy0 := math.Max(rect.Y, 0)
	vx1 := math.Min(rect.X+rect.Width, float64(canvas.Dx()))
	vy1 := math.Min(rect.Y+rect.Height, float64(canvas.Dy()))
	if vx1 <= vx0 || vy1 <= vy0 {
		return placement{}, false
	}

	cx0 := clampInt(int(math.Floor((vx0-rect.X)/sx))-filterMargin, 0, src.Dx())
	cy0 := clampInt(int(math.Floor((vy0-rect.Y)/sy))-filterMargin, 0, src.Dy())
	cx1 := clampInt(int(math.Ceil((vx1-rect.X)/sx))+filterMargin, 0, src.Dx())
	cy1 := clampInt(int(math.Ceil((vy1-rect.Y)/sy))+filterMargin, 0, src.Dy())

	left := math.Round(rect.X + float64(cx0)*sx)
	top := math.Round(rect.Y + float64(cy0)*sy)
	right := math.Round(rect.X + float64(cx1)*sx)
	bottom := math.Round(rect.Y + float64(cy1)*sy)

	return placement{
		crop:   image.Rect(cx0, cy0, cx1, cy1).Add(src.Min),
		size:   image.Pt(max(int(right-left), 1), max(int(bottom-top), 1)),
		offset: image.Pt(int(left), int(top)),
	}, true
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// LanczosEngine resamples with imaging's Lanczos filter.
type LanczosEngine struct{}

func (LanczosEngine) Name() string { return EngineLanczos }

func (LanczosEngine) Compose(canvas *image.NRGBA, src image.Image, rect fit.DrawRect) (*image.NRGBA, error) {
	p, ok := place(src.Bounds(), canvas.Bounds(), rect)
	if !ok {
		return canvas, nil
	}

	part := imaging.Crop(src, p.crop)
	scaled := imaging.Resize(part, p.size.X, p.size.Y, imaging.Lanczos)
	return imaging.Overlay(canvas, scaled, p.offset, 1.0), nil
}

// CatmullRomEngine maps the source through an affine transform at sub-pixel
// precision. Only canvas pixels are visited, so it needs no crop.
type CatmullRomEngine struct{}

func (CatmullRomEngine) Name() string { return EngineCatmullRom }

func (CatmullRomEngine) Compose(canvas *image.NRGBA, src image.Image, rect fit.DrawRect) (*image.NRGBA, error) {
	sr := src.Bounds()
	sx := rect.Width / float64(sr.Dx())
	sy := rect.Height / float64(sr.Dy())

	s2d := f64.Aff3{
		sx, 0, rect.X - sx*float64(sr.Min.X),
		0, sy, rect.Y - sy*float64(sr.Min.Y),
	}
	draw.CatmullRom.Transform(canvas, s2d, src, sr, draw.Over, nil)
	return canvas, nil
}
