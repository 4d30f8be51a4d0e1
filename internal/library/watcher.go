package library

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/genricoloni/reelplay/internal/domain"
	"github.com/genricoloni/reelplay/internal/playlist"
	"go.uber.org/zap"
)

// Watcher drops tracks whose files disappear from disk. The track that is
// currently playing is kept; playback handles its disappearance itself.
type Watcher struct {
	logger  *zap.Logger
	lib     *playlist.Library
	playing func() *domain.Track
	removed func(*domain.Track)

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	dirs    map[string]bool
	cancel  context.CancelFunc
	done    chan struct{}
	dropped int
}

// NewWatcher creates a watcher over lib's track directories. playing reports the
// current track; removed, if set, runs after a track was dropped.
func NewWatcher(logger *zap.Logger, lib *playlist.Library, playing func() *domain.Track, removed func(*domain.Track)) *Watcher {
	return &Watcher{
		logger:  logger,
		lib:     lib,
		playing: playing,
		removed: removed,
		dirs:    make(map[string]bool),
	}
}

// Start begins watching and returns immediately
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()
	w.fsw = fsw
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	w.Sync()

	go w.run(loopCtx, fsw)
	w.logger.Info("Library watcher started")
	return nil
}

// Stop ends the loop and releases the watcher
func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	fsw, cancel, done := w.fsw, w.cancel, w.done
	w.fsw = nil
	w.dirs = make(map[string]bool)
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	cancel()
	err := fsw.Close()
	<-done
	w.logger.Info("Library watcher stopped")
	return err
}

// Sync watches every directory holding a track and forgets directories no longer used
func (w *Watcher) Sync() {
	wanted := make(map[string]bool)
	for _, p := range w.lib.Playlists() {
		for _, t := range p.Tracks() {
			wanted[filepath.Dir(t.RealPath)] = true
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return
	}

	for dir := range w.dirs {
		if !wanted[dir] {
			if err := w.fsw.Remove(dir); err != nil {
				w.logger.Debug("Failed to unwatch directory", zap.String("dir", dir), zap.Error(err))
			}
			delete(w.dirs, dir)
		}
	}
	for dir := range wanted {
		if w.dirs[dir] {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			w.logger.Warn("Failed to watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		w.dirs[dir] = true
	}
}

// Dropped returns how many tracks were removed because their file vanished
func (w *Watcher) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				w.handleGone(ev.Name)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleGone(path string) {
	var current *domain.Track
	if w.playing != nil {
		current = w.playing()
	}

	for _, t := range w.lib.FindByPath(path) {
		// A converted copy vanishing does not make the source unplayable
		if t.RealPath != path {
			continue
		}
		if t == current {
			w.logger.Debug("Playing track vanished, leaving it to playback", zap.String("path", path))
			continue
		}
		if !w.lib.RemoveTrack(t) {
			continue
		}

		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()

		w.logger.Info("Track file vanished, removed from playlist",
			zap.String("path", path),
			zap.String("playlist", t.Playlist))
		if w.removed != nil {
			w.removed(t)
		}
	}
}
