package domain

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// PlayerStatus represents the current state of the media player
type PlayerStatus string

const (
	// StatusPlaying indicates the media is currently playing
	StatusPlaying PlayerStatus = "Playing"
	// StatusPaused indicates the media is paused
	StatusPaused PlayerStatus = "Paused"
	// StatusStopped indicates the media is stopped
	StatusStopped PlayerStatus = "Stopped"
)

// TrackKind is decided once when a track is loaded
type TrackKind int

const (
	// KindPlainAudio is played directly from its real path
	KindPlainAudio TrackKind = iota
	// KindConvertibleAudio is converted to mp3 before playback
	KindConvertibleAudio
	// KindVideo has its soundtrack extracted and frames decoded while playing
	KindVideo
)

func (k TrackKind) String() string {
	switch k {
	case KindPlainAudio:
		return "audio"
	case KindConvertibleAudio:
		return "convertible"
	case KindVideo:
		return "video"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	videoFormats = map[string]bool{
		"mp4": true, "webm": true, "avi": true, "mkv": true, "mov": true,
		"flv": true, "wmv": true, "m4v": true, "3gp": true, "mpeg": true,
		"mpg": true, "ogv": true, "mts": true, "ts": true,
	}
	convertibleFormats = map[string]bool{
		"aac": true, "m4a": true, "wma": true, "alac": true, "amr": true, "au": true,
		"snd": true, "mpc": true, "tta": true, "caf": true, "webm": true,
	}
	plainFormats = map[string]bool{
		"wav": true, "mp3": true, "ogg": true, "flac": true,
		"opus": true, "wv": true, "mod": true, "aiff": true,
	}
	posUnsupported = map[string]bool{"wav": true, "opus": true, "wv": true, "aiff": true}
)

// noVideoSuffix marks a file with a video extension that should be treated as audio only
const noVideoSuffix = "novideo"

func extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// ClassifyPath returns the kind of a media file based on its extension
func ClassifyPath(path string) TrackKind {
	ext := extension(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if videoFormats[ext] && !strings.HasSuffix(stem, noVideoSuffix) {
		return KindVideo
	}
	if convertibleFormats[ext] {
		return KindConvertibleAudio
	}
	return KindPlainAudio
}

// IsSupportedFormat reports whether the extension is one the player can load
func IsSupportedFormat(path string) bool {
	ext := extension(path)
	return videoFormats[ext] || convertibleFormats[ext] || plainFormats[ext]
}

// DurationState tags the cached duration of a track
type DurationState int

const (
	// DurationNotCached means nobody probed the file yet
	DurationNotCached DurationState = iota
	// DurationUnavailable means probing failed
	DurationUnavailable
	// DurationKnown means Seconds holds the value
	DurationKnown
)

// Duration is the cached length of a track
type Duration struct {
	State   DurationState
	Seconds float64
}

// KnownDuration builds a known duration
func KnownDuration(seconds float64) Duration {
	return Duration{State: DurationKnown, Seconds: seconds}
}

// Known reports whether the duration can be used for seeking
func (d Duration) Known() bool {
	return d.State == DurationKnown
}

// Track identifies a playable media item inside a playlist
type Track struct {
	// ID is stable for the lifetime of the process
	ID uuid.UUID
	// RealPath is the file the user added
	RealPath string
	// Kind is decided once at load time
	Kind TrackKind
	// Playlist owns the track
	Playlist string
	// ThumbnailURL is an optional remote cover
	ThumbnailURL string

	mu        sync.RWMutex
	audioPath string
	duration  Duration
	converted bool
	pending   atomic.Bool
}

// NewTrack creates a track for the given file; the audio path defaults to the real path
func NewTrack(realPath, playlist string) *Track {
	return &Track{
		ID:        uuid.New(),
		RealPath:  realPath,
		Kind:      ClassifyPath(realPath),
		Playlist:  playlist,
		audioPath: realPath,
	}
}

// AudioPath returns the file handed to the audio engine
func (t *Track) AudioPath() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.audioPath
}

// SetAudioPath updates the playable path (converted copy or fallback)
func (t *Track) SetAudioPath(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.audioPath = path
}

// Duration returns the cached duration
func (t *Track) Duration() Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.duration
}

// SetDuration stores the probed duration
func (t *Track) SetDuration(d Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.duration = d
}

// Converted reports whether the audio path points to a converted copy
func (t *Track) Converted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.converted
}

// SetConverted records that a conversion produced the audio path
func (t *Track) SetConverted(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.converted = v
}

// Pending reports whether the track is still being converted
func (t *Track) Pending() bool {
	return t.pending.Load()
}

// SetPending marks conversion start or end
func (t *Track) SetPending(v bool) {
	t.pending.Store(v)
}

// IsVideo reports whether frames should be decoded while playing
func (t *Track) IsVideo() bool {
	return t.Kind == KindVideo
}

// PosSupported reports whether the audio engine can seek inside this format
func (t *Track) PosSupported() bool {
	return !posUnsupported[extension(t.RealPath)]
}

// Stem is the file name without extension
func (t *Track) Stem() string {
	return strings.TrimSuffix(filepath.Base(t.RealPath), filepath.Ext(t.RealPath))
}

// Size is an output rectangle size in pixels
type Size struct {
	Width  int
	Height int
}

// Area returns the pixel count
func (s Size) Area() int {
	return s.Width * s.Height
}

// Valid reports whether both sides are positive
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// FrameRequest is what the render loop asks for on each tick
type FrameRequest struct {
	// Sizes are the rectangles currently visible on screen
	Sizes []Size
	// HoverPosition previews another timestamp (track bar hover), if set
	HoverPosition *float64
	// Focused is false when neither the window nor the mini player has focus
	Focused bool
}

// Snapshot is an immutable bundle of the latest decoded frame and its resized copies
type Snapshot struct {
	// Raw is the full resolution frame
	Raw image.Image
	// Scaled maps each requested size to a resized copy of Raw
	Scaled map[Size]image.Image
	// Small is the scaled copy with the smallest area, nil without requested sizes
	Small image.Image
	// Timestamp is the position Raw was decoded at
	Timestamp float64
	// Seq increases with every decoded frame
	Seq uint64
}

// FrameView is what the render loop receives for the current tick
type FrameView struct {
	// Track is nil when nothing is playing
	Track *Track
	// Position is the playback position in seconds
	Position float64
	// Paused mirrors the transport state
	Paused bool
	// Frame is the video snapshot, nil for audio tracks or before the first decode
	Frame *Snapshot
	// Ended is true when the position reached the end of a video
	Ended bool
	// Backdrop is the background tint, nil when neither a frame nor a cover is available
	Backdrop *color.NRGBA
	// Background is the blurred cover shown behind tracks without a video frame
	Background image.Image
}

// NowPlaying is published to desktop integrations
type NowPlaying struct {
	// TrackID identifies the track
	TrackID string
	// Title of the current track
	Title string
	// Playlist name
	Playlist string
	// Length in seconds, zero when unknown
	Length float64
	// Status is the current playback status
	Status PlayerStatus
}

// ScreenResolution holds the display dimensions
type ScreenResolution struct {
	Width  int
	Height int
}
