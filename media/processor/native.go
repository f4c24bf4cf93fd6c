package processor

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/leeforge/instafit/media/fit"
)

// NativeProcessor implements Engine with nfnt/resize's Lanczos3 filter.
// It shares the crop placement of LanczosEngine and differs only in the kernel.
type NativeProcessor struct{}

func NewNativeProcessor() *NativeProcessor {
	return &NativeProcessor{}
}

func (p *NativeProcessor) Name() string { return EngineNfnt }

func (p *NativeProcessor) Compose(canvas *image.NRGBA, src image.Image, rect fit.DrawRect) (*image.NRGBA, error) {
	pl, ok := place(src.Bounds(), canvas.Bounds(), rect)
	if !ok {
		return canvas, nil
	}

	part := imaging.Crop(src, pl.crop)
	scaled := resize.Resize(uint(pl.size.X), uint(pl.size.Y), part, resize.Lanczos3)
	return imaging.Overlay(canvas, scaled, pl.offset, 1.0), nil
}
