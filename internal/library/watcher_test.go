package library

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/reelplay/internal/domain"
	"github.com/genricoloni/reelplay/internal/playlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupLibrary(t *testing.T, names ...string) (*playlist.Library, *playlist.Playlist, []string) {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		paths = append(paths, p)
	}
	lib := playlist.NewLibrary(zap.NewNop())
	p, err := lib.Load("mix", paths)
	require.NoError(t, err)
	require.Equal(t, len(names), p.Len())
	return lib, p, paths
}

func TestWatcher_RemovesVanishedTrack(t *testing.T) {
	lib, p, paths := setupLibrary(t, "a.mp3", "b.flac")

	var mu sync.Mutex
	var removed []*domain.Track
	w := NewWatcher(zap.NewNop(), lib, nil, func(tr *domain.Track) {
		mu.Lock()
		defer mu.Unlock()
		removed = append(removed, tr)
	})
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	require.NoError(t, os.Remove(paths[0]))

	assert.Eventually(t, func() bool { return p.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	remaining, _ := p.At(0)
	assert.Equal(t, paths[1], remaining.RealPath)
	assert.Equal(t, 1, w.Dropped())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, removed, 1)
	assert.Equal(t, paths[0], removed[0].RealPath)
}

func TestWatcher_RenameCountsAsGone(t *testing.T) {
	lib, p, paths := setupLibrary(t, "a.mp3")

	w := NewWatcher(zap.NewNop(), lib, nil, nil)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	require.NoError(t, os.Rename(paths[0], paths[0]+".bak"))
	assert.Eventually(t, func() bool { return p.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_KeepsPlayingTrack(t *testing.T) {
	lib, p, paths := setupLibrary(t, "a.mp3", "b.mp3")
	playing, _ := p.At(0)

	w := NewWatcher(zap.NewNop(), lib, func() *domain.Track { return playing }, nil)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	require.NoError(t, os.Remove(paths[0]))
	require.NoError(t, os.Remove(paths[1]))

	assert.Eventually(t, func() bool { return w.Dropped() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, p.Len())
	remaining, _ := p.At(0)
	assert.Same(t, playing, remaining)
}

func TestWatcher_SyncFollowsLibrary(t *testing.T) {
	lib, _, _ := setupLibrary(t, "a.mp3")
	w := NewWatcher(zap.NewNop(), lib, nil, nil)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop(context.Background()) })
	assert.Len(t, w.dirs, 1)

	other := t.TempDir()
	song := filepath.Join(other, "c.ogg")
	require.NoError(t, os.WriteFile(song, []byte("x"), 0o644))
	_, err := lib.Load("second", []string{song})
	require.NoError(t, err)
	w.Sync()
	assert.Len(t, w.dirs, 2)

	require.True(t, lib.Delete("mix"))
	w.Sync()
	assert.Len(t, w.dirs, 1)
	assert.True(t, w.dirs[other])
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w := NewWatcher(zap.NewNop(), playlist.NewLibrary(zap.NewNop()), nil, nil)
	assert.NoError(t, w.Stop(context.Background()))
}
