package playlist

import (
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/genricoloni/reelplay/internal/domain"
)

// Playlist is an ordered, named list of tracks. Safe for concurrent use.
type Playlist struct {
	name string

	mu     sync.RWMutex
	tracks []*domain.Track
}

// New creates an empty playlist
func New(name string) *Playlist {
	return &Playlist{name: name}
}

// Name returns the playlist name
func (p *Playlist) Name() string {
	return p.name
}

// Add appends a track for path. Unsupported formats, missing files and duplicates
// (same real or audio path) are rejected.
func (p *Playlist) Add(path string) (*domain.Track, error) {
	return p.Insert(path, -1)
}

// Insert places a track for path at index, or appends it when index is out of range
func (p *Playlist) Insert(path string, index int) (*domain.Track, error) {
	if !domain.IsSupportedFormat(path) {
		return nil, fmt.Errorf("unsupported format: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingFile, path)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.indexOfPathLocked(path) >= 0 {
		return nil, fmt.Errorf("already in playlist %q: %s", p.name, path)
	}

	track := domain.NewTrack(path, p.name)
	if index < 0 || index >= len(p.tracks) {
		p.tracks = append(p.tracks, track)
	} else {
		p.tracks = slices.Insert(p.tracks, index, track)
	}
	return track, nil
}

// Len returns the number of tracks
func (p *Playlist) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tracks)
}

// At returns the track at index i
func (p *Playlist) At(i int) (*domain.Track, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i < 0 || i >= len(p.tracks) {
		return nil, false
	}
	return p.tracks[i], true
}

// Index returns the position of t, -1 when absent
func (p *Playlist) Index(t *domain.Track) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Index(p.tracks, t)
}

// Tracks returns a copy of the track list
func (p *Playlist) Tracks() []*domain.Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.tracks)
}

// Lookup finds a track by audio path, falling back to the real path
func (p *Playlist) Lookup(path string) (*domain.Track, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i := p.indexOfPathLocked(path); i >= 0 {
		return p.tracks[i], true
	}
	return nil, false
}

// Remove drops the track whose audio path (or real path) matches
func (p *Playlist) Remove(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.indexOfPathLocked(path)
	if i < 0 {
		return false
	}
	p.tracks = slices.Delete(p.tracks, i, i+1)
	return true
}

// Move reorders a track
func (p *Playlist) Move(from, to int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if from < 0 || from >= len(p.tracks) || to < 0 || to >= len(p.tracks) {
		return false
	}
	t := p.tracks[from]
	p.tracks = slices.Delete(p.tracks, from, from+1)
	p.tracks = slices.Insert(p.tracks, to, t)
	return true
}

func (p *Playlist) indexOfPathLocked(path string) int {
	for i, t := range p.tracks {
		if t.AudioPath() == path || t.RealPath == path {
			return i
		}
	}
	return -1
}
