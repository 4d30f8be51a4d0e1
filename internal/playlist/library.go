package playlist

import (
	"fmt"
	"slices"
	"sync"

	"github.com/genricoloni/reelplay/internal/domain"
	"go.uber.org/zap"
)

// Library holds every playlist by name
type Library struct {
	logger *zap.Logger

	mu        sync.RWMutex
	playlists []*Playlist
}

// NewLibrary creates an empty library
func NewLibrary(logger *zap.Logger) *Library {
	return &Library{logger: logger}
}

// Create adds an empty playlist; names are unique
func (l *Library) Create(name string) (*Playlist, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.getLocked(name) != nil {
		return nil, fmt.Errorf("playlist %q already exists", name)
	}
	p := New(name)
	l.playlists = append(l.playlists, p)
	l.logger.Debug("Playlist created", zap.String("playlist", name))
	return p, nil
}

// Load creates a playlist from file paths, skipping the ones that cannot be added
func (l *Library) Load(name string, paths []string) (*Playlist, error) {
	p, err := l.Create(name)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if _, err := p.Add(path); err != nil {
			l.logger.Warn("Skipping track", zap.String("playlist", name), zap.Error(err))
		}
	}
	return p, nil
}

// Get returns the playlist called name
func (l *Library) Get(name string) (*Playlist, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p := l.getLocked(name)
	return p, p != nil
}

// Playlist implements domain.PlaylistStore
func (l *Library) Playlist(name string) (domain.TrackList, bool) {
	p, ok := l.Get(name)
	if !ok {
		return nil, false
	}
	return p, true
}

// Playlists returns every playlist in creation order
func (l *Library) Playlists() []*Playlist {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.playlists)
}

// Delete removes a playlist
func (l *Library) Delete(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := slices.IndexFunc(l.playlists, func(p *Playlist) bool { return p.Name() == name })
	if i < 0 {
		return false
	}
	l.playlists = slices.Delete(l.playlists, i, i+1)
	return true
}

// FindByPath returns every track whose real or audio path equals path
func (l *Library) FindByPath(path string) []*domain.Track {
	var found []*domain.Track
	for _, p := range l.Playlists() {
		if t, ok := p.Lookup(path); ok {
			found = append(found, t)
		}
	}
	return found
}

// RemoveTrack drops t from its owning playlist
func (l *Library) RemoveTrack(t *domain.Track) bool {
	p, ok := l.Get(t.Playlist)
	if !ok {
		return false
	}
	return p.Remove(t.AudioPath())
}

func (l *Library) getLocked(name string) *Playlist {
	for _, p := range l.playlists {
		if p.Name() == name {
			return p
		}
	}
	return nil
}
