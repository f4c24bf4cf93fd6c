package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	apperrors "github.com/leeforge/instafit/errors"
	"github.com/leeforge/instafit/media/fit"
)

// Render fills a target-sized canvas with background, draws src at rect with
// engine and encodes the canvas as JPEG. The background is painted even for a
// cover fit so rounding at the edges never leaves uninitialized pixels.
//
// Every failure, including a panic inside the engine, is returned as a
// render_failure AppError.
func Render(ctx context.Context, src *Source, target Target, rect fit.DrawRect, background color.Color, engine Engine) (*ProcessedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewRenderFailure("render cancelled", err)
	}
	if src == nil || src.Image == nil {
		return nil, apperrors.NewRenderFailure("no source image", nil)
	}
	if target.Width <= 0 || target.Height <= 0 {
		return nil, apperrors.NewRenderFailure(fmt.Sprintf("invalid surface %dx%d", target.Width, target.Height), nil).
			WithDetail("target", target.Key)
	}
	if engine == nil {
		engine = LanczosEngine{}
	}

	var out *image.NRGBA
	err := apperrors.Safely(func() error {
		canvas := imaging.New(target.Width, target.Height, background)
		var err error
		out, err = engine.Compose(canvas, src.Image, rect)
		return err
	})
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeRenderFailure) {
			return nil, err
		}
		return nil, apperrors.NewRenderFailure("drawing failed", err).WithDetail("engine", engine.Name())
	}

	if out == nil {
		return nil, apperrors.NewRenderFailure("engine returned no surface", nil).WithDetail("engine", engine.Name())
	}
	if b := out.Bounds(); b.Dx() != target.Width || b.Dy() != target.Height {
		return nil, apperrors.NewRenderFailure(
			fmt.Sprintf("surface is %dx%d, want %dx%d", b.Dx(), b.Dy(), target.Width, target.Height), nil).
			WithDetail("engine", engine.Name())
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, apperrors.NewRenderFailure("encoding failed", err)
	}
	if buf.Len() == 0 {
		return nil, apperrors.NewRenderFailure("encoder produced no output", nil)
	}

	return &ProcessedImage{
		Data:        buf.Bytes(),
		Size:        buf.Len(),
		Width:       target.Width,
		Height:      target.Height,
		ContentType: ContentType,
		Format:      target.Key,
		Engine:      engine.Name(),
		Rect:        rect,
	}, nil
}
