package processor

import (
	"fmt"
	"image"

	"github.com/leeforge/instafit/media/fit"
)

const (
	// JPEGQuality is the fixed output encoding quality.
	JPEGQuality = 95
	// ContentType of every ProcessedImage.
	ContentType = "image/jpeg"
	// FileExtension of every download.
	FileExtension = ".jpg"
	// MaxUploadBytes is the largest upload accepted (10 MiB).
	MaxUploadBytes int64 = 10 * 1024 * 1024
)

// Target is a fixed output canvas.
type Target struct {
	Key    string `json:"key"`
	// Name is the English display name; optimizer.Formats localizes it.
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (t Target) String() string {
	return fmt.Sprintf("%s (%dx%d)", t.Key, t.Width, t.Height)
}

// Standard canvases
var (
	Square   = Target{Key: "square", Name: "Square post", Width: 1080, Height: 1080}
	Vertical = Target{Key: "vertical", Name: "Vertical post", Width: 1080, Height: 1350}
	Story    = Target{Key: "story", Name: "Story", Width: 1080, Height: 1920}
)

var targets = map[string]Target{
	Square.Key:   Square,
	Vertical.Key: Vertical,
	Story.Key:    Story,
}

// LookupTarget returns the canvas registered under key.
func LookupTarget(key string) (Target, error) {
	t, ok := targets[key]
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrUnknownTarget, key)
	}
	return t, nil
}

// Targets lists every canvas in display order.
func Targets() []Target {
	return []Target{Square, Vertical, Story}
}

// Source is a decoded upload. It is never modified after decoding.
type Source struct {
	Image  image.Image
	Width  int
	Height int
	// Format is the name the decoder registered under (jpeg, png, webp, ...).
	Format string
}

// ProcessedImage is an encoded render at exactly the target dimensions.
type ProcessedImage struct {
	Data        []byte       `json:"-"`
	Size        int          `json:"size"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	ContentType string       `json:"contentType"`
	Format      string       `json:"format"`
	FitMode     fit.Mode     `json:"fitMode"`
	Background  string       `json:"background"`
	Engine      string       `json:"engine"`
	Rect        fit.DrawRect `json:"rect"`
	Seq         uint64       `json:"seq"`
}
