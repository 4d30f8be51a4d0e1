package engine

import (
	"sync"

	"github.com/genricoloni/reelplay/internal/display"
	"github.com/genricoloni/reelplay/internal/domain"
	"go.uber.org/zap"
)

// HeadlessRenderer stands in for a window. It asks for one fullscreen output and
// records what it was given, logging track and end-of-video transitions.
type HeadlessRenderer struct {
	logger *zap.Logger
	size   domain.Size

	mu       sync.Mutex
	focused  bool
	frames   int
	fitted   domain.Size
	last     domain.FrameView
	lastPath string
}

// NewHeadlessRenderer creates a renderer requesting frames at the screen size
func NewHeadlessRenderer(logger *zap.Logger, res *domain.ScreenResolution) *HeadlessRenderer {
	return &HeadlessRenderer{
		logger:  logger,
		size:    display.FullscreenSize(res),
		focused: true,
	}
}

// SetFocused simulates the window gaining or losing focus
func (r *HeadlessRenderer) SetFocused(focused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.focused = focused
}

// Request implements domain.Renderer
func (r *HeadlessRenderer) Request() domain.FrameRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	req := domain.FrameRequest{Focused: r.focused}
	if r.focused && r.size.Valid() {
		req.Sizes = []domain.Size{r.size}
	}
	return req
}

// Render implements domain.Renderer
func (r *HeadlessRenderer) Render(view domain.FrameView) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := ""
	if view.Track != nil {
		path = view.Track.RealPath
	}
	if path != r.lastPath {
		r.logger.Info("Now showing", zap.String("track", path))
		r.lastPath = path
	}
	if view.Ended && !r.last.Ended {
		r.logger.Debug("Video reached its end", zap.String("track", path))
	}
	if view.Frame != nil {
		r.frames++
		if view.Frame.Raw != nil {
			r.fitted = display.Fit(view.Frame.Raw.Bounds(), r.size)
		}
	}
	r.last = view
}

// Frames returns how many views carried a video frame
func (r *HeadlessRenderer) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Fitted returns the letterboxed size of the last video frame
func (r *HeadlessRenderer) Fitted() domain.Size {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fitted
}

// Last returns the most recent view
func (r *HeadlessRenderer) Last() domain.FrameView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
