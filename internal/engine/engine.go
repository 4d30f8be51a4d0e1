package engine

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/genricoloni/reelplay/internal/domain"
	"go.uber.org/zap"
)

// unfocusedFramerate is the tick rate while nobody looks at a video
const unfocusedFramerate = 10

// Player is the playback surface the engine drives once per tick
type Player interface {
	BeginFrame()
	VideoFrame(req domain.FrameRequest) domain.FrameView
	HandleAudioEvent(ev domain.AudioEvent)
	Backdrop() (color.NRGBA, bool)
}

// Covers provides cover art for tracks without video frames
type Covers interface {
	Ensure(ctx context.Context, t *domain.Track) error
	Load(t *domain.Track) (image.Image, bool)
}

// Backdrops derives background effects from an image
type Backdrops interface {
	Tint(img image.Image) (color.NRGBA, error)
	Render(img image.Image, size domain.Size) (*image.NRGBA, error)
}

// coverBackdrop is the background computed for one track's cover
type coverBackdrop struct {
	trackID    string
	tint       color.NRGBA
	background image.Image
	ok         bool
}

// Engine runs the render loop. It ticks at the target framerate, forwards audio
// events to the player and hands every frame view to the renderer.
type Engine struct {
	logger   *zap.Logger
	settings domain.Settings
	player   Player
	events   <-chan domain.AudioEvent
	renderer domain.Renderer
	covers   Covers
	effects  Backdrops

	ticks     atomic.Uint64
	lastTrack *domain.Track
	lastSize  domain.Size

	mu     sync.Mutex
	cover  coverBackdrop
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewEngine creates a new render loop engine
func NewEngine(
	logger *zap.Logger,
	settings domain.Settings,
	player Player,
	events <-chan domain.AudioEvent,
	renderer domain.Renderer,
	covers Covers,
	effects Backdrops,
) *Engine {
	return &Engine{
		logger:   logger,
		settings: settings,
		player:   player,
		events:   events,
		renderer: renderer,
		covers:   covers,
		effects:  effects,
	}
}

// Start launches the loop in a goroutine.
// It returns immediately (non-blocking).
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Engine starting...")

	loopCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	go e.runLoop(loopCtx, done)
	return nil
}

// Stop ends the loop and waits for pending cover work
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("Engine stopping...")

	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel = nil
	e.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	e.wg.Wait()

	e.logger.Info("Engine stopped", zap.Uint64("ticks", e.ticks.Load()))
	return nil
}

// Ticks returns how many frames were rendered
func (e *Engine) Ticks() uint64 {
	return e.ticks.Load()
}

func (e *Engine) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	events := e.events
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine loop stopped")
			return

		case ev, ok := <-events:
			if !ok {
				e.logger.Info("Audio events channel closed")
				events = nil
				continue
			}
			e.logger.Debug("Audio event received", zap.String("path", ev.Path))
			e.player.HandleAudioEvent(ev)

		case <-timer.C:
			timer.Reset(e.Tick(ctx))
		}
	}
}

// Tick renders one frame and returns the delay until the next one
func (e *Engine) Tick(ctx context.Context) time.Duration {
	e.player.BeginFrame()

	req := e.renderer.Request()
	view := e.player.VideoFrame(req)
	if size := largest(req.Sizes); size.Valid() {
		e.lastSize = size
	}

	if view.Track != e.lastTrack {
		e.lastTrack = view.Track
		if view.Track != nil {
			e.loadCover(ctx, view.Track, e.lastSize)
		}
	}
	e.applyBackdrop(&view)

	e.renderer.Render(view)
	e.ticks.Add(1)

	return e.interval(req, view)
}

// interval drops to a low rate when unfocused and no video is shown
func (e *Engine) interval(req domain.FrameRequest, view domain.FrameView) time.Duration {
	fps := e.settings.TargetFramerate()
	if !req.Focused && (view.Track == nil || !view.Track.IsVideo()) {
		fps = unfocusedFramerate
	}
	if fps <= 0 {
		fps = unfocusedFramerate
	}
	return time.Duration(float64(time.Second) / fps)
}

// applyBackdrop prefers the live video tint and falls back to the cover
func (e *Engine) applyBackdrop(view *domain.FrameView) {
	if view.Frame != nil {
		if tint, ok := e.player.Backdrop(); ok {
			view.Backdrop = &tint
			return
		}
	}
	if view.Track == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.cover.ok || e.cover.trackID != view.Track.ID.String() {
		return
	}
	tint := e.cover.tint
	view.Backdrop = &tint
	if view.Frame == nil {
		view.Background = e.cover.background
	}
}

func largest(sizes []domain.Size) domain.Size {
	var best domain.Size
	for _, s := range sizes {
		if s.Area() > best.Area() {
			best = s
		}
	}
	return best
}

// loadCover makes sure the track has a cover and derives its backdrop off the loop
func (e *Engine) loadCover(ctx context.Context, t *domain.Track, size domain.Size) {
	if e.covers == nil || e.effects == nil {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		if err := e.covers.Ensure(ctx, t); err != nil {
			e.logger.Warn("Failed to prepare cover", zap.String("track", t.RealPath), zap.Error(err))
		}
		img, ok := e.covers.Load(t)
		if !ok {
			return
		}
		tint, err := e.effects.Tint(img)
		if err != nil {
			e.logger.Debug("Failed to tint cover", zap.Error(err))
			return
		}
		cb := coverBackdrop{trackID: t.ID.String(), tint: tint, ok: true}
		if size.Valid() {
			if bg, err := e.effects.Render(img, size); err == nil {
				cb.background = bg
			} else {
				e.logger.Debug("Failed to blur cover", zap.Error(err))
			}
		}

		e.mu.Lock()
		e.cover = cb
		e.mu.Unlock()
	}()
}
