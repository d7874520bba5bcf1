package converter

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	ico "github.com/sergeymakinen/go-ico"

	"ico-maker-go/internal/icon"
)

// Encoder packs an image into a multi-resolution icon container.
type Encoder interface {
	Encode(w io.Writer, img image.Image, sizes icon.Selection) error
}

// ICOEncoder resamples the source once per size and writes all frames into one ICO file.
type ICOEncoder struct {
	Filter imaging.ResampleFilter
}

// NewICOEncoder returns an encoder using the Lanczos filter.
func NewICOEncoder() *ICOEncoder {
	return &ICOEncoder{Filter: imaging.Lanczos}
}

// Encode writes one icon holding a frame for each size.
func (e *ICOEncoder) Encode(w io.Writer, img image.Image, sizes icon.Selection) error {
	if len(sizes) == 0 {
		return fmt.Errorf("no sizes to encode")
	}

	frames := make([]image.Image, 0, len(sizes))
	for _, s := range sizes {
		frames = append(frames, e.frame(img, s))
	}

	if err := ico.EncodeAll(w, frames); err != nil {
		return fmt.Errorf("ico encode: %w", err)
	}
	return nil
}

// frame fits the source into the size, keeping its aspect ratio, centered on a transparent canvas.
func (e *ICOEncoder) frame(img image.Image, s icon.Size) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == s.Width && b.Dy() == s.Height {
		return imaging.Clone(img)
	}

	var fitted *image.NRGBA
	if b.Dx() <= s.Width && b.Dy() <= s.Height {
		// imaging.Fit never enlarges, so upscale explicitly.
		fitted = upscale(img, s, e.Filter)
	} else {
		fitted = imaging.Fit(img, s.Width, s.Height, e.Filter)
	}

	canvas := imaging.New(s.Width, s.Height, color.NRGBA{})
	return imaging.PasteCenter(canvas, fitted)
}

func upscale(img image.Image, s icon.Size, filter imaging.ResampleFilter) *image.NRGBA {
	b := img.Bounds()
	if b.Dx()*s.Height >= b.Dy()*s.Width {
		return imaging.Resize(img, s.Width, 0, filter)
	}
	return imaging.Resize(img, 0, s.Height, filter)
}
