package history

import (
	"slices"
	"sync"
	"time"

	"github.com/genricoloni/reelplay/internal/domain"
)

const (
	// DefaultLimit is the number of tracks remembered
	DefaultLimit = 100
	// finishedMargin treats positions this close to the end as finished
	finishedMargin = 0.01
)

// Entry records where playback of a track stopped
type Entry struct {
	Track    *domain.Track
	Position float64
	Duration domain.Duration
	At       time.Time
}

// History keeps one resume entry per track, oldest first
type History struct {
	limit int

	mu      sync.RWMutex
	entries []Entry
}

// New creates a history bounded to limit entries
func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{limit: limit}
}

// Add records track at position, replacing any older entry for the same track.
// Positions compare in whole seconds, so one in the final second of the track
// resets to 0.
func (h *History) Add(track *domain.Track, position float64, duration domain.Duration, at time.Time) {
	if duration.Known() && int(position) >= int(duration.Seconds-finishedMargin) {
		position = 0
	}
	if position < 0 {
		position = 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = slices.DeleteFunc(h.entries, func(e Entry) bool { return e.Track == track })
	h.entries = append(h.entries, Entry{Track: track, Position: position, Duration: duration, At: at})
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = slices.Delete(h.entries, 0, over)
	}
}

// Restore appends entries loaded from disk without position normalization
func (h *History) Restore(entries []Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entries...)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = slices.Delete(h.entries, 0, over)
	}
}

// Remove forgets track
func (h *History) Remove(track *domain.Track) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = slices.DeleteFunc(h.entries, func(e Entry) bool { return e.Track == track })
}

// Resume returns the stored position for track
func (h *History) Resume(track *domain.Track) (float64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.entries {
		if e.Track == track {
			return e.Position, true
		}
	}
	return 0, false
}

// Entries returns a copy, oldest first
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.entries)
}

// Len returns the number of entries
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
