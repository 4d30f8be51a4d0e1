package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // JPEG format support
	_ "image/png"  // PNG format support

	"github.com/disintegration/imaging"
	"github.com/genricoloni/reelplay/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultBlurRadius = 15.0
	defaultTintAlpha  = 40
	// tintSampleSize bounds the work done to average a frame every tick
	tintSampleSize = 16
)

// BackdropConfig holds configuration for background effects
type BackdropConfig struct {
	BlurRadius float64
	TintAlpha  uint8
}

// Backdrop derives background effects (tint colour, blurred fill) from covers and video frames
type Backdrop struct {
	logger *zap.Logger
	config BackdropConfig
}

// NewBackdrop creates a backdrop processor with default settings
func NewBackdrop(logger *zap.Logger) *Backdrop {
	return &Backdrop{
		logger: logger,
		config: BackdropConfig{
			BlurRadius: defaultBlurRadius,
			TintAlpha:  defaultTintAlpha,
		},
	}
}

// Tint returns the average colour of img with the configured alpha
func (b *Backdrop) Tint(img image.Image) (color.NRGBA, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return color.NRGBA{}, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	sample := img
	if bounds.Dx() > tintSampleSize || bounds.Dy() > tintSampleSize {
		sample = imaging.Resize(img, tintSampleSize, tintSampleSize, imaging.Box)
	}

	var r, g, bl, n uint64
	sb := sample.Bounds()
	for y := sb.Min.Y; y < sb.Max.Y; y++ {
		for x := sb.Min.X; x < sb.Max.X; x++ {
			c := color.NRGBAModel.Convert(sample.At(x, y)).(color.NRGBA)
			r += uint64(c.R)
			g += uint64(c.G)
			bl += uint64(c.B)
			n++
		}
	}

	return color.NRGBA{
		R: uint8(r / n),
		G: uint8(g / n),
		B: uint8(bl / n),
		A: b.config.TintAlpha,
	}, nil
}

// Render creates a blurred background covering size from img
func (b *Backdrop) Render(img image.Image, size domain.Size) (*image.NRGBA, error) {
	bounds := img.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}
	if !size.Valid() {
		return nil, fmt.Errorf("invalid target size: %s", size)
	}

	b.logger.Debug("Creating blurred background", zap.Int("w", size.Width), zap.Int("h", size.Height))
	background := imaging.Fill(img, size.Width, size.Height, imaging.Center, imaging.Linear)
	return imaging.Blur(background, b.config.BlurRadius), nil
}

// RenderBytes decodes encoded image data (cover files, thumbnails) and renders a backdrop
func (b *Backdrop) RenderBytes(imageData []byte, size domain.Size) (*image.NRGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return b.Render(img, size)
}
