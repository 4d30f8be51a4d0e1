package display

import (
	"image"

	"github.com/genricoloni/reelplay/internal/domain"
	"github.com/kbinani/screenshot"
	"go.uber.org/zap"
)

// fallbackResolution is used when no display can be queried (headless sessions)
var fallbackResolution = domain.ScreenResolution{Width: 1920, Height: 1080}

var (
	numDisplays   = screenshot.NumActiveDisplays
	displayBounds = screenshot.GetDisplayBounds
)

// NewScreenResolution detects the primary screen resolution at startup
func NewScreenResolution(logger *zap.Logger) *domain.ScreenResolution {
	n := numDisplays()
	if n <= 0 {
		logger.Warn("No active displays detected, falling back to default resolution",
			zap.Int("width", fallbackResolution.Width),
			zap.Int("height", fallbackResolution.Height))
		res := fallbackResolution
		return &res
	}

	// Primary monitor is index 0
	bounds := displayBounds(0)
	if bounds.Empty() {
		res := fallbackResolution
		return &res
	}
	res := &domain.ScreenResolution{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}

	logger.Info("Screen resolution detected",
		zap.Int("displays", n),
		zap.Int("width", res.Width),
		zap.Int("height", res.Height))

	return res
}

// FullscreenSize is the video rectangle for fullscreen playback
func FullscreenSize(res *domain.ScreenResolution) domain.Size {
	return domain.Size{Width: res.Width, Height: res.Height}
}

// Fit returns the largest rectangle with the aspect ratio of src that fits in bounds
func Fit(src image.Rectangle, bounds domain.Size) domain.Size {
	if src.Empty() || !bounds.Valid() {
		return domain.Size{}
	}
	w, h := src.Dx(), src.Dy()
	if w*bounds.Height > h*bounds.Width {
		return domain.Size{Width: bounds.Width, Height: max(1, h*bounds.Width/w)}
	}
	return domain.Size{Width: max(1, w*bounds.Height/h), Height: bounds.Height}
}
