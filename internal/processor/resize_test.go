package processor

import (
	"image"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/genricoloni/reelplay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFit(t *testing.T) {
	tests := []struct {
		name   string
		src    image.Rectangle
		target domain.Size
		want   domain.Size
	}{
		{"Downscale wide", image.Rect(0, 0, 1920, 1080), domain.Size{Width: 320, Height: 320}, domain.Size{Width: 320, Height: 180}},
		{"Downscale tall", image.Rect(0, 0, 1080, 1920), domain.Size{Width: 320, Height: 320}, domain.Size{Width: 180, Height: 320}},
		{"Upscale", image.Rect(0, 0, 64, 48), domain.Size{Width: 640, Height: 640}, domain.Size{Width: 640, Height: 480}},
		{"Exact", image.Rect(0, 0, 100, 50), domain.Size{Width: 100, Height: 50}, domain.Size{Width: 100, Height: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fit(image.NewNRGBA(tt.src), tt.target, imaging.Linear)
			assert.Equal(t, tt.want, domain.Size{Width: got.Bounds().Dx(), Height: got.Bounds().Dy()})
		})
	}
}

func TestResizeCache_MemoizesPerFrame(t *testing.T) {
	cache := NewResizeCache(imaging.Linear)
	raw := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	a := domain.Size{Width: 32, Height: 24}

	first := cache.Resize(1, raw, a)
	second := cache.Resize(1, raw, a)
	assert.Same(t, first, second, "same frame and size must hit the cache")

	hits, misses := cache.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)

	third := cache.Resize(2, raw, a)
	assert.NotSame(t, first, third, "a new frame must replace every entry")
	_, misses = cache.Stats()
	assert.Equal(t, uint64(2), misses)
}

func TestResizeCache_ScaleDropsUnrequestedSizes(t *testing.T) {
	cache := NewResizeCache(imaging.Linear)
	raw := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	a := domain.Size{Width: 32, Height: 24}
	b := domain.Size{Width: 16, Height: 12}

	scaled, small := cache.Scale(1, raw, []domain.Size{a, b})
	require.Len(t, scaled, 2)
	assert.Same(t, scaled[b], small, "smallest area wins")
	assert.Equal(t, 2, cache.Len())

	scaled, small = cache.Scale(1, raw, []domain.Size{a})
	require.Len(t, scaled, 1)
	assert.Contains(t, scaled, a)
	assert.NotContains(t, scaled, b)
	assert.Same(t, scaled[a], small)
	assert.Equal(t, 1, cache.Len())
}

func TestResizeCache_ScaleSkipsInvalidAndDuplicates(t *testing.T) {
	cache := NewResizeCache(imaging.Linear)
	raw := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	a := domain.Size{Width: 5, Height: 5}

	scaled, small := cache.Scale(7, raw, []domain.Size{a, a, {Width: 0, Height: 4}})
	assert.Len(t, scaled, 1)
	assert.NotNil(t, small)

	scaled, small = cache.Scale(7, raw, nil)
	assert.Empty(t, scaled)
	assert.Nil(t, small)
	assert.Equal(t, 0, cache.Len())
}
