package engine

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/reelplay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSettings struct {
	fps float64
}

func (s fakeSettings) Threaded() bool { return true }
func (s fakeSettings) TargetFramerate() float64 { return s.fps }
func (s fakeSettings) SetThreaded(bool) {}

// fakePlayer records the per-tick calls in order
type fakePlayer struct {
	mu       sync.Mutex
	calls    []string
	view     domain.FrameView
	tint     color.NRGBA
	hasTint  bool
	events   []domain.AudioEvent
	requests []domain.FrameRequest
}

func (p *fakePlayer) BeginFrame() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "begin")
}

func (p *fakePlayer) VideoFrame(req domain.FrameRequest) domain.FrameView {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "frame")
	p.requests = append(p.requests, req)
	return p.view
}

func (p *fakePlayer) HandleAudioEvent(ev domain.AudioEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *fakePlayer) Backdrop() (color.NRGBA, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tint, p.hasTint
}

func (p *fakePlayer) eventCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fakeCovers struct {
	mu      sync.Mutex
	ensured []string
	img     image.Image
	err     error
}

func (c *fakeCovers) Ensure(ctx context.Context, t *domain.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensured = append(c.ensured, t.RealPath)
	return c.err
}

func (c *fakeCovers) Load(t *domain.Track) (image.Image, bool) {
	return c.img, c.img != nil
}

type fixedEffects struct {
	tint color.NRGBA
}

func (f fixedEffects) Tint(img image.Image) (color.NRGBA, error) {
	return f.tint, nil
}

func (f fixedEffects) Render(img image.Image, size domain.Size) (*image.NRGBA, error) {
	return image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height)), nil
}

func headless(focused bool) *HeadlessRenderer {
	r := NewHeadlessRenderer(zap.NewNop(), &domain.ScreenResolution{Width: 1280, Height: 720})
	r.SetFocused(focused)
	return r
}

func TestEngine_TickOrder(t *testing.T) {
	player := &fakePlayer{}
	renderer := headless(true)
	e := NewEngine(zap.NewNop(), fakeSettings{fps: 60}, player, nil, renderer, nil, nil)

	e.Tick(context.Background())
	e.Tick(context.Background())

	assert.Equal(t, []string{"begin", "frame", "begin", "frame"}, player.calls)
	assert.Equal(t, uint64(2), e.Ticks())
	require.Len(t, player.requests, 2)
	assert.Equal(t, []domain.Size{{Width: 1280, Height: 720}}, player.requests[0].Sizes)
	assert.True(t, player.requests[0].Focused)
}

func TestEngine_Interval(t *testing.T) {
	video := domain.NewTrack("/videos/clip.mp4", "mix")
	song := domain.NewTrack("/music/song.mp3", "mix")

	tests := []struct {
		name     string
		focused  bool
		track    *domain.Track
		fps      float64
		expected time.Duration
	}{
		{"Focused video at target", true, video, 50, 20 * time.Millisecond},
		{"Focused audio at target", true, song, 50, 20 * time.Millisecond},
		{"Unfocused video keeps target", false, video, 50, 20 * time.Millisecond},
		{"Unfocused audio drops to idle", false, song, 50, 100 * time.Millisecond},
		{"Unfocused and stopped drops to idle", false, nil, 50, 100 * time.Millisecond},
		{"Invalid framerate falls back", true, video, 0, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := &fakePlayer{view: domain.FrameView{Track: tt.track}}
			e := NewEngine(zap.NewNop(), fakeSettings{fps: tt.fps}, player, nil, headless(tt.focused), nil, nil)
			assert.Equal(t, tt.expected, e.Tick(context.Background()))
		})
	}
}

func TestEngine_Backdrop(t *testing.T) {
	video := domain.NewTrack("/videos/clip.mp4", "mix")
	frameTint := color.NRGBA{R: 10, G: 20, B: 30, A: 40}
	coverTintValue := color.NRGBA{R: 1, G: 2, B: 3, A: 40}

	t.Run("Video frame tint wins", func(t *testing.T) {
		player := &fakePlayer{
			view:    domain.FrameView{Track: video, Frame: &domain.Snapshot{}},
			tint:    frameTint,
			hasTint: true,
		}
		renderer := headless(true)
		e := NewEngine(zap.NewNop(), fakeSettings{fps: 60}, player, nil, renderer, nil, nil)
		e.Tick(context.Background())

		require.NotNil(t, renderer.Last().Backdrop)
		assert.Equal(t, frameTint, *renderer.Last().Backdrop)
		assert.Nil(t, renderer.Last().Background)
		assert.Equal(t, 1, renderer.Frames())
	})

	t.Run("Cover tint as fallback", func(t *testing.T) {
		song := domain.NewTrack("/music/song.mp3", "mix")
		player := &fakePlayer{view: domain.FrameView{Track: song}}
		covers := &fakeCovers{img: image.NewNRGBA(image.Rect(0, 0, 2, 2))}
		renderer := headless(true)
		e := NewEngine(zap.NewNop(), fakeSettings{fps: 60}, player, nil, renderer, covers, fixedEffects{tint: coverTintValue})

		e.Tick(context.Background())
		e.wg.Wait()
		e.Tick(context.Background())

		require.NotNil(t, renderer.Last().Backdrop)
		assert.Equal(t, coverTintValue, *renderer.Last().Backdrop)
		require.NotNil(t, renderer.Last().Background)
		assert.Equal(t, image.Rect(0, 0, 1280, 720), renderer.Last().Background.Bounds())
		assert.Equal(t, []string{"/music/song.mp3"}, covers.ensured, "cover prepared once per track change")
	})

	t.Run("Cover of another track is not used", func(t *testing.T) {
		first := domain.NewTrack("/music/a.mp3", "mix")
		second := domain.NewTrack("/music/b.mp3", "mix")
		player := &fakePlayer{view: domain.FrameView{Track: first}}
		covers := &fakeCovers{img: image.NewNRGBA(image.Rect(0, 0, 2, 2))}
		renderer := headless(true)
		e := NewEngine(zap.NewNop(), fakeSettings{fps: 60}, player, nil, renderer, covers, fixedEffects{tint: coverTintValue})

		e.Tick(context.Background())
		e.wg.Wait()

		covers.img = nil
		player.view = domain.FrameView{Track: second}
		e.Tick(context.Background())
		e.wg.Wait()
		e.Tick(context.Background())

		assert.Nil(t, renderer.Last().Backdrop)
	})

	t.Run("Cover failure leaves no backdrop", func(t *testing.T) {
		song := domain.NewTrack("/music/song.mp3", "mix")
		player := &fakePlayer{view: domain.FrameView{Track: song}}
		covers := &fakeCovers{err: errors.New("fetch failed")}
		renderer := headless(true)
		e := NewEngine(zap.NewNop(), fakeSettings{fps: 60}, player, nil, renderer, covers, fixedEffects{tint: coverTintValue})

		e.Tick(context.Background())
		e.wg.Wait()
		e.Tick(context.Background())
		assert.Nil(t, renderer.Last().Backdrop)
	})

	t.Run("Unfocused start blurs nothing", func(t *testing.T) {
		song := domain.NewTrack("/music/song.mp3", "mix")
		player := &fakePlayer{view: domain.FrameView{Track: song}}
		covers := &fakeCovers{img: image.NewNRGBA(image.Rect(0, 0, 2, 2))}
		renderer := headless(false)
		e := NewEngine(zap.NewNop(), fakeSettings{fps: 60}, player, nil, renderer, covers, fixedEffects{tint: coverTintValue})

		e.Tick(context.Background())
		e.wg.Wait()
		e.Tick(context.Background())

		require.NotNil(t, renderer.Last().Backdrop)
		assert.Nil(t, renderer.Last().Background)
	})
}

func TestEngine_LoopForwardsAudioEvents(t *testing.T) {
	player := &fakePlayer{}
	events := make(chan domain.AudioEvent, 2)
	e := NewEngine(zap.NewNop(), fakeSettings{fps: 100}, player, events, headless(true), nil, nil)

	require.NoError(t, e.Start(context.Background()))
	events <- domain.AudioEvent{Kind: domain.AudioTrackEnded, Path: "/music/a.mp3"}
	close(events)

	assert.Eventually(t, func() bool { return player.eventCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return e.Ticks() >= 3 }, 2*time.Second, 5*time.Millisecond, "loop keeps ticking after events close")

	require.NoError(t, e.Stop(context.Background()))
	stopped := e.Ticks()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, e.Ticks())
}

func TestEngine_StopWithoutStart(t *testing.T) {
	e := NewEngine(zap.NewNop(), fakeSettings{fps: 60}, &fakePlayer{}, nil, headless(true), nil, nil)
	assert.NoError(t, e.Stop(context.Background()))
}

func TestHeadlessRenderer_Request(t *testing.T) {
	r := headless(false)
	req := r.Request()
	assert.False(t, req.Focused)
	assert.Empty(t, req.Sizes, "unfocused window requests no outputs")

	r.SetFocused(true)
	req = r.Request()
	assert.True(t, req.Focused)
	assert.Equal(t, []domain.Size{{Width: 1280, Height: 720}}, req.Sizes)
}

func TestHeadlessRenderer_FitsFrames(t *testing.T) {
	r := headless(true)
	assert.Equal(t, domain.Size{}, r.Fitted())

	r.Render(domain.FrameView{Frame: &domain.Snapshot{Raw: image.NewNRGBA(image.Rect(0, 0, 400, 400))}})
	assert.Equal(t, domain.Size{Width: 720, Height: 720}, r.Fitted())

	r.Render(domain.FrameView{Frame: &domain.Snapshot{Raw: image.NewNRGBA(image.Rect(0, 0, 640, 360))}})
	assert.Equal(t, domain.Size{Width: 1280, Height: 720}, r.Fitted())
	assert.Equal(t, 2, r.Frames())
}
