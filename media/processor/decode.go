package processor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // Register WebP decoder

	apperrors "github.com/leeforge/instafit/errors"
)

// Blob is a handle to encoded source bytes. Every Open must be paired with a Close.
type Blob interface {
	Open() (io.ReadCloser, error)
}

// BytesBlob serves an in-memory upload.
type BytesBlob []byte

func (b BytesBlob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// FileBlob serves an upload stored on disk.
type FileBlob string

func (f FileBlob) Open() (io.ReadCloser, error) {
	return os.Open(string(f))
}

// DecodeOptions controls Decode.
type DecodeOptions struct {
	// MaxPixels rejects sources whose width*height exceeds it. Zero disables the check.
	MaxPixels int
	// AutoOrient applies the EXIF orientation tag.
	AutoOrient bool
}

// withHandle opens blob, hands the reader to fn and always releases the handle.
func withHandle(blob Blob, fn func(r io.Reader) error) error {
	rc, err := blob.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	return fn(rc)
}

// Decode reads the header first so oversized sources are rejected before any
// pixel buffer is allocated.
func Decode(blob Blob, opts DecodeOptions) (*Source, error) {
	if blob == nil {
		return nil, apperrors.NewDecodeFailure(fmt.Errorf("no source"))
	}

	width, height, format, err := GetImageInfo(blob)
	if err != nil {
		return nil, apperrors.NewDecodeFailure(err)
	}

	if width <= 0 || height <= 0 {
		return nil, apperrors.NewDecodeFailure(fmt.Errorf("image has no pixels (%dx%d)", width, height)).
			WithDetail("format", format)
	}
	if opts.MaxPixels > 0 && int64(width)*int64(height) > int64(opts.MaxPixels) {
		return nil, apperrors.NewDecodeFailure(fmt.Errorf("image of %dx%d exceeds %d pixels", width, height, opts.MaxPixels)).
			WithDetail("width", width).
			WithDetail("height", height).
			WithDetail("max_pixels", opts.MaxPixels)
	}

	var img image.Image
	err = withHandle(blob, func(r io.Reader) error {
		var err error
		img, err = imaging.Decode(r, imaging.AutoOrientation(opts.AutoOrient))
		return err
	})
	if err != nil {
		return nil, apperrors.NewDecodeFailure(err).WithDetail("format", format)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, apperrors.NewDecodeFailure(fmt.Errorf("decoded image is empty")).WithDetail("format", format)
	}

	return &Source{
		Image:  img,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
	}, nil
}

// GetImageInfo reads only the header of blob and returns the dimensions and
// the name the decoder registered under.
func GetImageInfo(blob Blob) (width, height int, format string, err error) {
	err = withHandle(blob, func(r io.Reader) error {
		var cfg image.Config
		cfg, format, err = image.DecodeConfig(r)
		width, height = cfg.Width, cfg.Height
		return err
	})
	if err != nil {
		return 0, 0, "", err
	}
	return width, height, format, nil
}
