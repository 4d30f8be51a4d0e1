package processor

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/genricoloni/reelplay/internal/domain"
)

// ResizeCache memoizes fitted copies of one raw frame per exact target size.
// All entries are dropped as soon as a frame with a different sequence number arrives.
// Not safe for concurrent use: it belongs to whoever runs the decode step.
type ResizeCache struct {
	filter  imaging.ResampleFilter
	seq     uint64
	valid   bool
	entries map[domain.Size]image.Image
	hits    uint64
	misses  uint64
}

// NewResizeCache creates an empty cache using the given resampling filter
func NewResizeCache(filter imaging.ResampleFilter) *ResizeCache {
	return &ResizeCache{
		filter:  filter,
		entries: make(map[domain.Size]image.Image),
	}
}

// Resize returns raw fitted inside size, computing it at most once per frame
func (c *ResizeCache) Resize(seq uint64, raw image.Image, size domain.Size) image.Image {
	if !c.valid || c.seq != seq {
		c.entries = make(map[domain.Size]image.Image, len(c.entries))
		c.seq = seq
		c.valid = true
	}

	if img, ok := c.entries[size]; ok {
		c.hits++
		return img
	}

	c.misses++
	img := Fit(raw, size, c.filter)
	c.entries[size] = img
	return img
}

// Scale resizes raw to every valid requested size and returns a fresh map plus the
// smallest-area copy. Sizes not requested are evicted from the cache.
func (c *ResizeCache) Scale(seq uint64, raw image.Image, sizes []domain.Size) (map[domain.Size]image.Image, image.Image) {
	scaled := make(map[domain.Size]image.Image, len(sizes))
	var small image.Image
	smallest := math.MaxInt

	for _, size := range sizes {
		if !size.Valid() {
			continue
		}
		if _, done := scaled[size]; done {
			continue
		}
		img := c.Resize(seq, raw, size)
		scaled[size] = img
		if size.Area() < smallest {
			smallest = size.Area()
			small = img
		}
	}

	c.Retain(sizes)
	return scaled, small
}

// Retain evicts every entry whose size is not in sizes
func (c *ResizeCache) Retain(sizes []domain.Size) {
	keep := make(map[domain.Size]bool, len(sizes))
	for _, s := range sizes {
		keep[s] = true
	}
	for s := range c.entries {
		if !keep[s] {
			delete(c.entries, s)
		}
	}
}

// Len returns the number of cached sizes
func (c *ResizeCache) Len() int {
	return len(c.entries)
}

// Stats returns cache hits and misses since creation
func (c *ResizeCache) Stats() (hits, misses uint64) {
	return c.hits, c.misses
}

// Fit scales img up or down so it fits inside size while keeping its aspect ratio
func Fit(img image.Image, size domain.Size, filter imaging.ResampleFilter) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || !size.Valid() {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}

	scale := math.Min(float64(size.Width)/float64(b.Dx()), float64(size.Height)/float64(b.Dy()))
	w := max(1, int(math.Round(float64(b.Dx())*scale)))
	h := max(1, int(math.Round(float64(b.Dy())*scale)))
	w = min(w, size.Width)
	h = min(h, size.Height)

	return imaging.Resize(img, w, h, filter)
}
