package store

import (
	"time"

	"github.com/genricoloni/reelplay/internal/domain"
	"github.com/genricoloni/reelplay/internal/history"
	"github.com/genricoloni/reelplay/internal/playlist"
	"go.uber.org/zap"
)

// stateVersion is bumped on incompatible layout changes
const stateVersion = 1

// State is the persisted application document
type State struct {
	Version   int             `json:"version"`
	Playlists []PlaylistState `json:"playlists"`
	History   []HistoryState  `json:"history"`
	Settings  SettingsState   `json:"settings"`
}

// PlaylistState is one playlist in order
type PlaylistState struct {
	Name   string       `json:"name"`
	Tracks []TrackState `json:"tracks"`
}

// TrackState is what survives a restart for a track
type TrackState struct {
	Path      string `json:"path"`
	Converted bool   `json:"converted,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// HistoryState is a resume entry; Duration is zero when unknown
type HistoryState struct {
	Playlist string    `json:"playlist"`
	Path     string    `json:"path"`
	Position float64   `json:"position"`
	Duration float64   `json:"duration,omitempty"`
	At       time.Time `json:"at"`
}

// SettingsState holds user preferences
type SettingsState struct {
	Threaded        bool    `json:"threaded"`
	TargetFramerate float64 `json:"target_framerate"`
	Volume          float64 `json:"volume"`
	LoopTrack       bool    `json:"loop_track,omitempty"`
	Shuffle         bool    `json:"shuffle,omitempty"`
	LoopPlaylist    bool    `json:"loop_playlist,omitempty"`
}

// Capture builds the document from the live library and history
func Capture(lib *playlist.Library, hist *history.History, settings SettingsState) State {
	st := State{Version: stateVersion, Settings: settings}

	for _, p := range lib.Playlists() {
		ps := PlaylistState{Name: p.Name()}
		for _, t := range p.Tracks() {
			ps.Tracks = append(ps.Tracks, TrackState{
				Path:      t.RealPath,
				Converted: t.Converted(),
				Thumbnail: t.ThumbnailURL,
			})
		}
		st.Playlists = append(st.Playlists, ps)
	}

	for _, e := range hist.Entries() {
		hs := HistoryState{
			Playlist: e.Track.Playlist,
			Path:     e.Track.RealPath,
			Position: e.Position,
			At:       e.At,
		}
		if e.Duration.Known() {
			hs.Duration = e.Duration.Seconds
		}
		st.History = append(st.History, hs)
	}
	return st
}

// Apply loads st into an empty library and history. prepare runs once per restored
// track after its flags are set, so conversions can be resumed.
func Apply(logger *zap.Logger, st State, lib *playlist.Library, hist *history.History, prepare func(*domain.Track)) {
	for _, ps := range st.Playlists {
		paths := make([]string, 0, len(ps.Tracks))
		for _, ts := range ps.Tracks {
			paths = append(paths, ts.Path)
		}
		p, err := lib.Load(ps.Name, paths)
		if err != nil {
			logger.Warn("Skipping playlist", zap.String("playlist", ps.Name), zap.Error(err))
			continue
		}
		for _, ts := range ps.Tracks {
			t, ok := p.Lookup(ts.Path)
			if !ok {
				continue
			}
			t.SetConverted(ts.Converted)
			t.ThumbnailURL = ts.Thumbnail
			if prepare != nil {
				prepare(t)
			}
		}
	}

	entries := make([]history.Entry, 0, len(st.History))
	for _, hs := range st.History {
		p, ok := lib.Get(hs.Playlist)
		if !ok {
			continue
		}
		t, ok := p.Lookup(hs.Path)
		if !ok {
			continue
		}
		e := history.Entry{Track: t, Position: hs.Position, At: hs.At}
		if hs.Duration > 0 {
			e.Duration = domain.KnownDuration(hs.Duration)
			t.SetDuration(e.Duration)
		}
		entries = append(entries, e)
	}
	hist.Restore(entries)

	logger.Info("State restored",
		zap.Int("playlists", len(lib.Playlists())),
		zap.Int("history", hist.Len()))
}
