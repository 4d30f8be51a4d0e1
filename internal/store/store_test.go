package store

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/genricoloni/reelplay/internal/domain"
	"github.com/genricoloni/reelplay/internal/history"
	"github.com/genricoloni/reelplay/internal/playlist"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := NewStore(zap.NewNop(), t.TempDir())
	st, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, State{Version: stateVersion}, st)
}

func TestStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		expectedError string
	}{
		{"Corrupt JSON", "{not json", "failed to parse state"},
		{"Future version", `{"version": 99}`, "newer than supported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, stateFile), []byte(tt.content), 0o644))

			_, err := NewStore(zap.NewNop(), dir).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s := NewStore(zap.NewNop(), dir)

	want := State{
		Version: stateVersion,
		Playlists: []PlaylistState{
			{Name: "mix", Tracks: []TrackState{{Path: "/music/a.mp3"}, {Path: "/videos/b.mp4", Converted: true}}},
		},
		History: []HistoryState{
			{Playlist: "mix", Path: "/music/a.mp3", Position: 12.5, Duration: 200, At: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)},
		},
		Settings: SettingsState{Threaded: true, TargetFramerate: 60, Volume: 0.8, Shuffle: true},
	}

	require.NoError(t, s.Save(want))
	assert.NoFileExists(t, s.Path()+".tmp")

	got, err := s.Load()
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestCaptureAndApply(t *testing.T) {
	media := t.TempDir()
	song := touch(t, media, "song.mp3")
	clip := touch(t, media, "clip.mp4")
	gone := filepath.Join(media, "gone.ogg")

	st := State{
		Version: stateVersion,
		Playlists: []PlaylistState{
			{Name: "mix", Tracks: []TrackState{
				{Path: song, Thumbnail: "https://example.com/t.jpg"},
				{Path: gone},
				{Path: clip, Converted: true},
			}},
		},
		History: []HistoryState{
			{Playlist: "mix", Path: song, Position: 30, Duration: 180, At: time.Unix(100, 0).UTC()},
			{Playlist: "mix", Path: gone, Position: 5, At: time.Unix(200, 0).UTC()},
			{Playlist: "other", Path: clip, Position: 1, At: time.Unix(300, 0).UTC()},
		},
	}

	lib := playlist.NewLibrary(zap.NewNop())
	hist := history.New(history.DefaultLimit)
	var prepared []string
	Apply(zap.NewNop(), st, lib, hist, func(tr *domain.Track) { prepared = append(prepared, tr.RealPath) })

	p, ok := lib.Get("mix")
	require.True(t, ok)
	require.Equal(t, 2, p.Len(), "missing files are skipped")
	assert.Equal(t, []string{song, clip}, prepared)

	restoredSong, _ := p.Lookup(song)
	assert.Equal(t, "https://example.com/t.jpg", restoredSong.ThumbnailURL)
	assert.Equal(t, domain.KnownDuration(180), restoredSong.Duration())
	restoredClip, _ := p.Lookup(clip)
	assert.True(t, restoredClip.Converted())

	pos, ok := hist.Resume(restoredSong)
	require.True(t, ok)
	assert.Equal(t, 30.0, pos)
	assert.Equal(t, 1, hist.Len(), "entries for unknown tracks are dropped")

	captured := Capture(lib, hist, SettingsState{Volume: 0.5})
	want := State{
		Version: stateVersion,
		Playlists: []PlaylistState{
			{Name: "mix", Tracks: []TrackState{
				{Path: song, Thumbnail: "https://example.com/t.jpg"},
				{Path: clip, Converted: true},
			}},
		},
		History: []HistoryState{
			{Playlist: "mix", Path: song, Position: 30, Duration: 180, At: time.Unix(100, 0).UTC()},
		},
		Settings: SettingsState{Volume: 0.5},
	}
	if diff := cmp.Diff(want, captured); diff != "" {
		t.Errorf("captured state mismatch (-want +got):\n%s", diff)
	}
}

func TestSaver_PeriodicAndFinalSave(t *testing.T) {
	s := NewStore(zap.NewNop(), t.TempDir())

	var calls atomic.Int32
	saver := NewSaver(zap.NewNop(), s, func() State {
		calls.Add(1)
		return State{Version: stateVersion, Settings: SettingsState{Volume: 0.3}}
	})
	saver.interval = 50 * time.Millisecond

	require.NoError(t, saver.Start())
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.FileExists(t, s.Path())

	before := calls.Load()
	require.NoError(t, saver.Stop())
	assert.Greater(t, calls.Load(), before, "stop writes a final snapshot")

	st, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 0.3, st.Settings.Volume)
}

func TestSaver_StopWithoutStart(t *testing.T) {
	s := NewStore(zap.NewNop(), t.TempDir())
	saver := NewSaver(zap.NewNop(), s, func() State { return State{Version: stateVersion} })
	require.NoError(t, saver.Stop())
	assert.FileExists(t, s.Path())
}
